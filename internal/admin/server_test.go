package admin

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"codevolt/internal/alert"
	"codevolt/internal/clock"
	"codevolt/internal/engine"
	"codevolt/internal/logging"
	"codevolt/internal/metrics"
	"codevolt/internal/scenario"
	"codevolt/internal/sensor"
	"codevolt/internal/sim"
	"codevolt/internal/sos"
)

var _ Backend = (*sim.Session)(nil)

type fixture struct {
	session *sim.Session
	fake    *clock.Fake
	server  *Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fake := clock.NewFake(time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC))
	eng, err := engine.New(nil, engine.WithClock(fake), engine.WithRand(rand.New(rand.NewSource(1))),
		engine.WithLogger(logging.Discard()))
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	sc := scenario.BuiltIn()[scenario.DefaultName]
	m, err := sos.New(&sc, sos.WithClock(fake), sos.WithLogger(logging.Discard()))
	if err != nil {
		t.Fatalf("sos: %v", err)
	}
	mc := metrics.New()
	s := sim.NewSession(eng, m, sim.WithSessionID("ride-1"), sim.WithMetrics(mc))
	t.Cleanup(s.Close)
	srv := NewServer(s, WithMetrics(mc.Handler()), WithLogger(logging.Discard()))
	return &fixture{session: s, fake: fake, server: srv}
}

func (f *fixture) do(method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(w, req)
	return w
}

func TestIndexRendersChannels(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{"ride-1", "ch-gyroscope", "40.0 °/s", "Normal operation"} {
		if !strings.Contains(body, want) {
			t.Fatalf("index missing %q", want)
		}
	}
}

func TestSnapshotAndControls(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodPost, "/demo/start")
	if w.Code != http.StatusOK {
		t.Fatalf("start: %d", w.Code)
	}
	if !f.session.Engine().Running() {
		t.Fatal("engine should be running")
	}
	f.fake.Advance(500 * time.Millisecond)

	w = f.do(http.MethodGet, "/snapshot")
	var snap engine.Snapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if !snap.DemoActive || snap.Tick != 5 || len(snap.Channels) != len(sensor.Kinds) {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	f.do(http.MethodPost, "/demo/stop")
	if f.session.Engine().Running() {
		t.Fatal("engine should be stopped")
	}
	w = f.do(http.MethodPost, "/sensors/reset")
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("decode reset: %v", err)
	}
	if snap.Tick != 0 || snap.Channels[sensor.Gyroscope].Value != 40 {
		t.Fatalf("reset did not restore initial values: %+v", snap.Channels[sensor.Gyroscope])
	}
}

func TestSensorsEndpoint(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/sensors?kind=barometer")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var ch sensor.Channel
	if err := json.NewDecoder(w.Body).Decode(&ch); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ch.Kind != sensor.Barometer || ch.Unit != "hPa" {
		t.Fatalf("unexpected channel %+v", ch)
	}

	if w := f.do(http.MethodGet, "/sensors?kind=lidar"); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown kind, got %d", w.Code)
	}

	w = f.do(http.MethodGet, "/sensors")
	var all []sensor.Channel
	if err := json.NewDecoder(w.Body).Decode(&all); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(all) != len(sensor.Kinds) || all[0].Kind != sensor.Gyroscope {
		t.Fatalf("unexpected list %+v", all)
	}
}

func TestAlertEndpoint(t *testing.T) {
	f := newFixture(t)
	w := f.do(http.MethodGet, "/alert")
	var a struct {
		Level   string `json:"level"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(w.Body).Decode(&a); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if a.Level != alert.LevelNormal.String() {
		t.Fatalf("level = %s", a.Level)
	}
}

func TestSOSEndpoints(t *testing.T) {
	f := newFixture(t)
	if w := f.do(http.MethodPost, "/sos/cancel"); w.Code != http.StatusConflict {
		t.Fatalf("cancel while idle should conflict, got %d", w.Code)
	}
	w := f.do(http.MethodPost, "/sos/activate")
	var res struct {
		Activated bool       `json:"activated"`
		Status    sos.Status `json:"status"`
	}
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Activated || res.Status.Phase != "countdown" {
		t.Fatalf("unexpected activation %+v", res)
	}
	if w := f.do(http.MethodPost, "/sos/cancel"); w.Code != http.StatusOK {
		t.Fatalf("cancel during countdown: %d", w.Code)
	}
	w = f.do(http.MethodGet, "/sos")
	var st sos.Status
	if err := json.NewDecoder(w.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.State != sos.StateCanceled {
		t.Fatalf("state = %s", st.State)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t)
	if w := f.do(http.MethodGet, "/demo/start"); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
	if w := f.do(http.MethodPost, "/snapshot"); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(http.MethodPost, "/sos/activate")
	w := f.do(http.MethodGet, "/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "codevolt_sos_activations_total 1") {
		t.Fatalf("metrics missing activation counter")
	}
}

func TestWebSocketStream(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg struct {
		Snapshot engine.Snapshot `json:"snapshot"`
		SOS      sos.Status      `json:"sos"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read initial: %v", err)
	}
	if msg.Snapshot.Cause != engine.CauseInit || msg.SOS.State != sos.StateIdle {
		t.Fatalf("unexpected initial frame %+v", msg)
	}

	if err := conn.WriteJSON(command{Action: "start"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read start: %v", err)
	}
	if msg.Snapshot.Cause != engine.CauseStart || !msg.Snapshot.DemoActive {
		t.Fatalf("expected start frame, got %+v", msg.Snapshot)
	}
	f.fake.Advance(100 * time.Millisecond)
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read tick: %v", err)
	}
	if msg.Snapshot.Cause != engine.CauseTick || msg.Snapshot.Tick != 1 {
		t.Fatalf("expected tick frame, got %+v", msg.Snapshot)
	}
}

func TestWebSocketStreamsSOSWhileStopped(t *testing.T) {
	f := newFixture(t)
	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg struct {
		Snapshot engine.Snapshot `json:"snapshot"`
		SOS      sos.Status      `json:"sos"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read initial: %v", err)
	}

	if !f.session.ActivateSOS() {
		t.Fatal("activation failed")
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read activation: %v", err)
	}
	if msg.SOS.State != "countdown" || msg.Snapshot.DemoActive {
		t.Fatalf("expected countdown frame with demo stopped, got %+v", msg)
	}

	f.fake.Advance(time.Second)
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read countdown step: %v", err)
	}
	if msg.SOS.State != "countdown" || msg.SOS.Remaining != 9*time.Second {
		t.Fatalf("expected 9s remaining, got %+v", msg.SOS)
	}
}

type failingConn struct {
	writes int
	closed bool
}

func (c *failingConn) SetWriteDeadline(time.Time) error { return nil }
func (c *failingConn) WriteJSON(any) error {
	c.writes++
	return errors.New("broken pipe")
}
func (c *failingConn) Close() error {
	c.closed = true
	return nil
}

func TestPumpReleasesSubscriptionsOnWriteError(t *testing.T) {
	f := newFixture(t)
	sub := f.session.Subscribe(2)
	sosC, stopSOS := f.session.SubscribeSOS(2)
	conn := &failingConn{}

	f.server.pump(conn, sub, sosC, stopSOS)

	if conn.writes != 1 || !conn.closed {
		t.Fatalf("expected one failed write and a closed conn, got %+v", conn)
	}
	if _, ok := <-sub.C; ok {
		t.Fatal("snapshot subscription left open")
	}
	if _, ok := <-sosC; ok {
		t.Fatal("SOS subscription left open")
	}

	f.session.StartDemo()
	f.fake.Advance(time.Second)
	if n := f.session.Engine().Dropped(); n != 0 {
		t.Fatalf("released subscriber still counted %d drops", n)
	}
	stopSOS()
}

func TestStartShutsDownOnCancel(t *testing.T) {
	f := newFixture(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	statuses := make(chan bool, 2)
	srv := NewServer(f.session, WithLogger(logging.Discard()), WithStatusListener(func(on bool) { statuses <- on }))
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx, addr) }()

	select {
	case on := <-statuses:
		if !on {
			t.Fatal("expected listening status")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not start")
	}
	resp, err := http.Get("http://" + addr + "/sos")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Start returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	if on := <-statuses; on {
		t.Fatal("expected stopped status")
	}
}

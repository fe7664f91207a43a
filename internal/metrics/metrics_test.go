package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"codevolt/internal/alert"
	"codevolt/internal/engine"
	"codevolt/internal/sensor"
)

func snapshot(tick uint64, gyro float64, active bool) engine.Snapshot {
	specs := sensor.DefaultSpecs()
	snap := engine.Snapshot{Channels: map[sensor.Kind]sensor.Channel{}, Tick: tick, DemoActive: active}
	for _, k := range sensor.Kinds {
		snap.Channels[k] = specs[k].Channel()
	}
	snap.Channels[sensor.Gyroscope] = specs[sensor.Gyroscope].At(gyro)
	for _, ch := range snap.Channels {
		if ch.Status == sensor.StatusCritical {
			snap.CriticalCount++
		}
	}
	return snap
}

func TestObserve(t *testing.T) {
	c := New()
	s1 := snapshot(3, 100, true)
	c.Observe(s1, alert.Evaluate(s1))
	s2 := snapshot(5, 320, true)
	c.Observe(s2, alert.Evaluate(s2))

	if got := testutil.ToFloat64(c.ticks); got != 5 {
		t.Fatalf("ticks = %v, want 5", got)
	}
	if got := testutil.ToFloat64(c.criticalCount); got != 1 {
		t.Fatalf("critical = %v", got)
	}
	if got := testutil.ToFloat64(c.channelValue.WithLabelValues("gyroscope")); got != 320 {
		t.Fatalf("gyroscope value = %v", got)
	}
	if got := testutil.ToFloat64(c.channelStatus.WithLabelValues("gyroscope")); got != 2 {
		t.Fatalf("gyroscope status = %v", got)
	}
	if got := testutil.ToFloat64(c.alertLevel); got != float64(alert.LevelCaution) {
		t.Fatalf("alert level = %v", got)
	}

	// reset restarts the tick counter without counting backwards
	s3 := snapshot(0, 40, false)
	c.Observe(s3, alert.Evaluate(s3))
	s4 := snapshot(2, 60, true)
	c.Observe(s4, alert.Evaluate(s4))
	if got := testutil.ToFloat64(c.ticks); got != 7 {
		t.Fatalf("ticks after reset = %v, want 7", got)
	}
	if got := testutil.ToFloat64(c.demoActive); got != 1 {
		t.Fatalf("demo active = %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	c := New()
	c.RegisterDropped(func() uint64 { return 4 })
	c.SOSActivated()
	c.Event("demo_started")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		"codevolt_sos_activations_total 1",
		"codevolt_subscriber_dropped_total 4",
		`codevolt_events_total{type="demo_started"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("missing %q in metrics output", want)
		}
	}
}

func TestRegisterDroppedTwiceKeepsFirst(t *testing.T) {
	c := New()
	c.RegisterDropped(func() uint64 { return 2 })
	c.RegisterDropped(func() uint64 { return 9 })

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if body := rec.Body.String(); !strings.Contains(body, "codevolt_subscriber_dropped_total 2") {
		t.Fatalf("expected first registration to win, got:\n%s", body)
	}
}

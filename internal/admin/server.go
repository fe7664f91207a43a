package admin

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"codevolt/internal/alert"
	"codevolt/internal/engine"
	"codevolt/internal/sensor"
	"codevolt/internal/sos"
)

// Backend is the session surface the admin server drives.
type Backend interface {
	ID() string
	Snapshot() engine.Snapshot
	Assessment() alert.Assessment
	SOSStatus() sos.Status
	Subscribe(buffer int) *engine.Subscription
	SubscribeSOS(buffer int) (<-chan sos.Status, func())
	StartDemo()
	StopDemo()
	ResetSensors()
	ActivateSOS() bool
	CancelSOS() error
}

const (
	streamBuffer    = 16
	writeTimeout    = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

//go:embed templates/index.html
var content embed.FS

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// Server exposes the session over HTTP and a websocket stream.
type Server struct {
	backend  Backend
	metrics  http.Handler
	log      *slog.Logger
	onStatus func(bool)
	tpl      *template.Template
	mux      *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithMetrics serves h on /metrics.
func WithMetrics(h http.Handler) Option { return func(s *Server) { s.metrics = h } }

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option { return func(s *Server) { s.log = l } }

// WithStatusListener is told when the server starts and stops listening.
func WithStatusListener(fn func(listening bool)) Option { return func(s *Server) { s.onStatus = fn } }

func NewServer(b Backend, opts ...Option) *Server {
	s := &Server{
		backend: b,
		log:     slog.Default(),
		tpl:     template.Must(template.New("index.html").ParseFS(content, "templates/index.html")),
		mux:     http.NewServeMux(),
	}
	for _, o := range opts {
		o(s)
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /snapshot", s.handleSnapshot)
	s.mux.HandleFunc("GET /sensors", s.handleSensors)
	s.mux.HandleFunc("GET /alert", s.handleAlert)
	s.mux.HandleFunc("POST /demo/start", s.handleControl(s.backend.StartDemo))
	s.mux.HandleFunc("POST /demo/stop", s.handleControl(s.backend.StopDemo))
	s.mux.HandleFunc("POST /sensors/reset", s.handleControl(s.backend.ResetSensors))
	s.mux.HandleFunc("GET /sos", s.handleSOS)
	s.mux.HandleFunc("POST /sos/activate", s.handleSOSActivate)
	s.mux.HandleFunc("POST /sos/cancel", s.handleSOSCancel)
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics)
	}
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler { return s.mux }

// Start listens on addr and serves until ctx is canceled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: s.mux, ReadHeaderTimeout: 5 * time.Second}
	s.status(true)
	defer s.status(false)
	s.log.Info("admin server listening", "addr", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	}
}

func (s *Server) status(listening bool) {
	if s.onStatus != nil {
		s.onStatus(listening)
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

type indexData struct {
	SessionID  string
	Channels   []sensor.Channel
	Assessment alert.Assessment
	SOS        sos.Status
	DemoActive bool
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.backend.Snapshot()
	data := indexData{
		SessionID:  s.backend.ID(),
		Channels:   snap.Ordered(),
		Assessment: alert.Evaluate(snap),
		SOS:        s.backend.SOSStatus(),
		DemoActive: snap.DemoActive,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tpl.Execute(w, data); err != nil {
		s.log.Error("render index", "err", err)
	}
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.backend.Snapshot())
}

func (s *Server) handleSensors(w http.ResponseWriter, r *http.Request) {
	snap := s.backend.Snapshot()
	name := r.URL.Query().Get("kind")
	if name == "" {
		writeJSON(w, http.StatusOK, snap.Ordered())
		return
	}
	kind, err := sensor.ParseKind(name)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	ch, err := snap.Channel(kind)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, ch)
}

func (s *Server) handleAlert(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.backend.Assessment())
}

func (s *Server) handleControl(fn func()) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fn()
		writeJSON(w, http.StatusOK, s.backend.Snapshot())
	}
}

func (s *Server) handleSOS(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.backend.SOSStatus())
}

func (s *Server) handleSOSActivate(w http.ResponseWriter, r *http.Request) {
	activated := s.backend.ActivateSOS()
	writeJSON(w, http.StatusOK, map[string]any{"activated": activated, "status": s.backend.SOSStatus()})
}

func (s *Server) handleSOSCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.backend.CancelSOS(); err != nil {
		if errors.Is(err, sos.ErrNotCancelable) {
			writeError(w, http.StatusConflict, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, s.backend.SOSStatus())
}

// streamMessage is one websocket frame.
type streamMessage struct {
	Snapshot engine.Snapshot  `json:"snapshot"`
	Alert    alert.Assessment `json:"alert"`
	SOS      sos.Status       `json:"sos"`
}

type command struct {
	Action string `json:"action"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	sub := s.backend.Subscribe(streamBuffer)
	sosC, stopSOS := s.backend.SubscribeSOS(streamBuffer)
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.pump(conn, sub, sosC, stopSOS)
	}()

	for {
		var cmd command
		if err := conn.ReadJSON(&cmd); err != nil {
			break
		}
		if !s.dispatch(cmd.Action) {
			s.log.Debug("unknown websocket action", "action", cmd.Action)
		}
	}
	sub.Close()
	stopSOS()
	<-done
}

// frameConn is the write side of a websocket connection.
type frameConn interface {
	SetWriteDeadline(t time.Time) error
	WriteJSON(v any) error
	Close() error
}

// pump streams frames to conn, then releases both subscriptions and closes
// conn so the read loop ends too.
func (s *Server) pump(conn frameConn, sub *engine.Subscription, sosC <-chan sos.Status, stopSOS func()) {
	defer conn.Close()
	defer stopSOS()
	defer sub.Close()
	if err := s.stream(conn, sub, sosC); err != nil {
		s.log.Debug("websocket stream ended", "err", err)
	}
}

// stream writes a frame for every engine snapshot and every SOS status until
// the subscription closes or a write fails.
func (s *Server) stream(conn frameConn, sub *engine.Subscription, sosC <-chan sos.Status) error {
	last := s.backend.Snapshot()
	for {
		var msg streamMessage
		select {
		case snap, ok := <-sub.C:
			if !ok {
				return nil
			}
			last = snap
			msg = streamMessage{Snapshot: snap, Alert: alert.Evaluate(snap), SOS: s.backend.SOSStatus()}
		case st, ok := <-sosC:
			if !ok {
				sosC = nil
				continue
			}
			msg = streamMessage{Snapshot: last, Alert: alert.Evaluate(last), SOS: st}
		}
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(msg); err != nil {
			return err
		}
	}
}

func (s *Server) dispatch(action string) bool {
	switch action {
	case "start":
		s.backend.StartDemo()
	case "stop":
		s.backend.StopDemo()
	case "reset":
		s.backend.ResetSensors()
	case "activate":
		s.backend.ActivateSOS()
	case "cancel":
		if err := s.backend.CancelSOS(); err != nil {
			s.log.Debug("websocket cancel rejected", "err", err)
		}
	default:
		return false
	}
	return true
}

// Session wires one engine and SOS machine to the configured writers
package sim

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"codevolt/internal/alert"
	"codevolt/internal/engine"
	"codevolt/internal/logging"
	"codevolt/internal/metrics"
	"codevolt/internal/sos"
	"codevolt/internal/telemetry"
)

const (
	subscriptionBuffer = 256
	sosBuffer          = 64
)

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionID overrides the generated session ID.
func WithSessionID(id string) SessionOption {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// WithWriter sets the sink for live snapshots, events and incidents.
func WithWriter(w *MultiWriter) SessionOption {
	return func(s *Session) {
		if w != nil {
			s.writer = w
		}
	}
}

// WithMetrics records session state on c.
func WithMetrics(c *metrics.Collector) SessionOption { return func(s *Session) { s.metrics = c } }

// WithAutoSOS arms the SOS flow once minCritical channels are critical.
func WithAutoSOS(enabled bool, minCritical int) SessionOption {
	return func(s *Session) {
		s.autoSOS = enabled
		s.minCritical = minCritical
	}
}

// Session owns the engine and SOS machine for one run. Create it with
// NewSession, drive it with Run and release it with Close.
type Session struct {
	id          string
	eng         *engine.Engine
	machine     *sos.Machine
	gen         *telemetry.Generator
	writer      *MultiWriter
	metrics     *metrics.Collector
	autoSOS     bool
	minCritical int

	sub   *engine.Subscription
	sosCh chan sos.Status

	mu         sync.RWMutex
	last       engine.Snapshot
	assessment alert.Assessment

	sosMu   sync.Mutex
	sosSubs map[chan sos.Status]struct{}

	// owned by the Run goroutine
	level       alert.Level
	exceeded    bool
	latched     bool
	sosState    string
	reportedInc string
}

// NewSession subscribes to eng and machine. Control operations issued before
// Run are buffered and handled once Run starts.
func NewSession(eng *engine.Engine, machine *sos.Machine, opts ...SessionOption) *Session {
	s := &Session{
		id:          uuid.New().String(),
		eng:         eng,
		machine:     machine,
		writer:      NewMultiWriter(),
		minCritical: alert.DefaultMinCritical,
		sosCh:       make(chan sos.Status, sosBuffer),
		sosState:    sos.StateIdle,
		sosSubs:     make(map[chan sos.Status]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.gen = telemetry.NewGenerator(s.id)
	s.last = eng.Snapshot()
	s.assessment = alert.Evaluate(s.last)
	if s.metrics != nil {
		s.metrics.RegisterDropped(eng.Dropped)
	}
	s.sub = eng.Subscribe(subscriptionBuffer)
	machine.OnTransition(func(st sos.Status) {
		select {
		case s.sosCh <- st:
		default:
		}
		s.publishSOS(st)
	})
	s.writer.SetControls(s)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Engine returns the engine driven by this session.
func (s *Session) Engine() *engine.Engine { return s.eng }

// Run consumes engine snapshots and SOS transitions until ctx is done or the
// engine is closed.
func (s *Session) Run(ctx context.Context) {
	log := logging.FromContext(ctx).With("session", s.id)
	log.Info("session started", "interval", s.eng.Interval(), "auto_sos", s.autoSOS)
	for {
		select {
		case <-ctx.Done():
			log.Info("session stopping")
			return
		case snap, ok := <-s.sub.C:
			if !ok {
				log.Info("engine closed")
				return
			}
			s.handleSnapshot(log, snap)
		case st := <-s.sosCh:
			s.handleSOS(log, st)
		}
	}
}

// Close tears down the SOS machine and the engine.
func (s *Session) Close() {
	s.sub.Close()
	s.machine.Close()
	s.eng.Close()
}

// Snapshot returns the current engine state.
func (s *Session) Snapshot() engine.Snapshot { return s.eng.Snapshot() }

// Assessment evaluates the current engine state.
func (s *Session) Assessment() alert.Assessment { return alert.Evaluate(s.eng.Snapshot()) }

// Subscribe registers an extra snapshot consumer on the session's engine.
func (s *Session) Subscribe(buffer int) *engine.Subscription { return s.eng.Subscribe(buffer) }

// SubscribeSOS delivers every SOS transition and countdown step until stop is
// called. A full buffer drops the status. stop closes the channel and is safe
// to call more than once.
func (s *Session) SubscribeSOS(buffer int) (<-chan sos.Status, func()) {
	if buffer < 1 {
		buffer = 1
	}
	c := make(chan sos.Status, buffer)
	s.sosMu.Lock()
	s.sosSubs[c] = struct{}{}
	s.sosMu.Unlock()
	var once sync.Once
	return c, func() {
		once.Do(func() {
			s.sosMu.Lock()
			delete(s.sosSubs, c)
			s.sosMu.Unlock()
			close(c)
		})
	}
}

func (s *Session) publishSOS(st sos.Status) {
	s.sosMu.Lock()
	defer s.sosMu.Unlock()
	for c := range s.sosSubs {
		select {
		case c <- st:
		default:
		}
	}
}

// SOSStatus returns the dispatch flow state.
func (s *Session) SOSStatus() sos.Status { return s.machine.Status() }

// StartDemo starts the engine.
func (s *Session) StartDemo() { s.eng.StartDemo() }

// StopDemo stops the engine.
func (s *Session) StopDemo() { s.eng.StopDemo() }

// ResetSensors resets the engine and abandons any SOS flow.
func (s *Session) ResetSensors() {
	s.machine.Reset()
	s.eng.ResetSensors()
}

// ActivateSOS starts the dispatch flow with the current readings.
func (s *Session) ActivateSOS() bool {
	ok := s.machine.Activate(sos.NewIncident(s.eng.Snapshot()))
	if ok && s.metrics != nil {
		s.metrics.SOSActivated()
	}
	return ok
}

// CancelSOS aborts the countdown.
func (s *Session) CancelSOS() error {
	if err := s.machine.Cancel(); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.SOSCanceled()
	}
	return nil
}

func (s *Session) handleSnapshot(log *slog.Logger, snap engine.Snapshot) {
	a := alert.Evaluate(snap)
	s.mu.Lock()
	s.last, s.assessment = snap, a
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.Observe(snap, a)
	}

	if err := s.writer.WriteLive(s.gen.State(snap, a, s.sosState), s.gen.Readings(snap)); err != nil {
		log.Error("live write failed", "seq", snap.Seq, "err", err)
	}

	var events []telemetry.EventRow
	switch snap.Cause {
	case engine.CauseStart:
		events = append(events, s.gen.Event(snap, telemetry.EventDemoStarted, a.Level.String(), "Demo started"))
	case engine.CauseStop:
		events = append(events, s.gen.Event(snap, telemetry.EventDemoStopped, a.Level.String(), "Demo stopped"))
	case engine.CauseReset:
		events = append(events, s.gen.Event(snap, telemetry.EventSensorsReset, a.Level.String(), "Sensors reset to initial values"))
	}
	if a.Level != s.level && snap.Cause != engine.CauseInit {
		events = append(events, s.gen.Event(snap, telemetry.EventAlertLevel, a.Level.String(), a.Message))
		log.Info("alert level changed", "from", s.level, "to", a.Level, "tick", snap.Tick)
	}
	s.level = a.Level
	if snap.ThresholdExceeded && !s.exceeded {
		events = append(events, s.gen.Event(snap, telemetry.EventThresholdExceeded, a.Level.String(), "Sensor threshold exceeded"))
		log.Warn("threshold exceeded", "critical", snap.Critical(), "tick", snap.Tick)
	}
	s.exceeded = snap.ThresholdExceeded
	s.emit(log, events)

	should := alert.ShouldDispatch(snap, s.minCritical)
	if !should {
		s.latched = false
		return
	}
	if s.autoSOS && snap.DemoActive && !s.latched {
		s.latched = true
		if s.machine.Activate(sos.NewIncident(snap)) && s.metrics != nil {
			s.metrics.SOSActivated()
		}
	}
}

func (s *Session) handleSOS(log *slog.Logger, st sos.Status) {
	s.mu.RLock()
	snap, a := s.last, s.assessment
	s.mu.RUnlock()

	if err := s.writer.WriteLive(s.gen.State(snap, a, st.State), s.gen.Readings(snap)); err != nil {
		log.Error("live write failed", "err", err)
	}
	if st.State == s.sosState {
		return
	}
	s.sosState = st.State

	switch st.State {
	case sos.StateIdle:
		return
	case sos.StateCanceled:
		s.emit(log, []telemetry.EventRow{s.gen.Event(snap, telemetry.EventSOSCanceled, a.Level.String(), "SOS canceled by rider")})
		return
	}
	s.emit(log, []telemetry.EventRow{s.gen.Event(snap, telemetry.EventSOSPhase, st.State, "SOS "+st.State)})

	if !st.Dispatched || st.Incident == nil || st.Incident.ID == s.reportedInc {
		return
	}
	row, ok := s.gen.Incident(st)
	if !ok {
		return
	}
	s.reportedInc = st.Incident.ID
	if err := s.writer.WriteIncident(row); err != nil {
		log.Error("incident write failed", "incident", row.IncidentID, "err", err)
	}
	if s.metrics != nil {
		s.metrics.IncidentReported()
	}
	log.Warn("incident reported", "incident", row.IncidentID, "service", row.Service, "eta", row.ETA)
}

func (s *Session) emit(log *slog.Logger, events []telemetry.EventRow) {
	if len(events) == 0 {
		return
	}
	if s.metrics != nil {
		for _, ev := range events {
			s.metrics.Event(ev.EventType)
		}
	}
	if err := s.writer.WriteEvents(events); err != nil {
		log.Error("event write failed", "count", len(events), "err", err)
	}
}

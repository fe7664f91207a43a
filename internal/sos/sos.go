// Package sos runs the emergency dispatch flow once an accident is detected:
// a cancelable countdown followed by the scenario's contact phases.
package sos

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"codevolt/internal/clock"
	"codevolt/internal/scenario"
)

// Fixed states outside the scenario's phases.
const (
	StateIdle     = "idle"
	StateCanceled = "canceled"
)

// ErrNotCancelable is returned by Cancel outside a cancelable phase.
var ErrNotCancelable = errors.New("sos: not in a cancelable phase")

// Status is a point-in-time view of the dispatch flow.
type Status struct {
	State      string        `json:"state"`
	Phase      string        `json:"phase,omitempty"`
	Cancelable bool          `json:"cancelable"`
	Dispatched bool          `json:"dispatched"`
	Terminal   bool          `json:"terminal"`
	Remaining  time.Duration `json:"remaining"`
	Service    string        `json:"service,omitempty"`
	ETA        string        `json:"eta,omitempty"`
	Location   string        `json:"location,omitempty"`
	Incident   *Incident     `json:"incident,omitempty"`
	Since      time.Time     `json:"since"`
}

// Active reports whether a dispatch flow is in progress or finished but not reset.
func (s Status) Active() bool { return s.State != StateIdle && s.State != StateCanceled }

// Machine drives one SOS flow at a time.
type Machine struct {
	mu        sync.Mutex
	sc        *scenario.Scenario
	clock     clock.Clock
	log       *slog.Logger
	state     string
	phase     scenario.Phase
	elapsed   time.Duration
	since     time.Time
	incident  *Incident
	service   string
	eta       string
	gen       uint64
	timer     clock.Timer
	closed    bool
	observers []func(Status)
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock replaces the wall clock.
func WithClock(c clock.Clock) Option { return func(m *Machine) { m.clock = c } }

// WithLogger sets the logger for transitions.
func WithLogger(l *slog.Logger) Option { return func(m *Machine) { m.log = l } }

// New creates an idle machine for the given scenario.
func New(sc *scenario.Scenario, opts ...Option) (*Machine, error) {
	if sc == nil {
		return nil, errors.New("sos: nil scenario")
	}
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("sos: %w", err)
	}
	m := &Machine{sc: sc, clock: clock.Real{}, log: slog.Default(), state: StateIdle}
	for _, opt := range opts {
		opt(m)
	}
	m.since = m.clock.Now()
	return m, nil
}

// OnTransition registers fn to receive the status after every transition and
// countdown step. fn runs without the machine lock held.
func (m *Machine) OnTransition(fn func(Status)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// Activate starts the flow for inc. It does nothing unless the machine is idle
// or canceled and reports whether the flow started.
func (m *Machine) Activate(inc Incident) bool {
	m.mu.Lock()
	if m.closed || m.statusLocked().Active() {
		m.mu.Unlock()
		return false
	}
	m.incident = &inc
	m.service, m.eta = "", ""
	m.log.Warn("sos activated", "incident", inc.ID, "critical", inc.Critical)
	m.enter(m.sc.Phases[0])
	st, obs := m.statusLocked(), m.observers
	m.mu.Unlock()
	notify(obs, st)
	return true
}

// Cancel aborts the flow during a cancelable phase.
func (m *Machine) Cancel() error {
	m.mu.Lock()
	if m.closed || m.state == StateIdle || m.state == StateCanceled || !m.phase.Cancelable {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w (state %s)", ErrNotCancelable, state)
	}
	m.stopTimer()
	m.state = StateCanceled
	m.phase = scenario.Phase{}
	m.since = m.clock.Now()
	m.log.Info("sos canceled by rider")
	st, obs := m.statusLocked(), m.observers
	m.mu.Unlock()
	notify(obs, st)
	return nil
}

// Reset returns the machine to idle from any state.
func (m *Machine) Reset() {
	m.mu.Lock()
	if m.closed || m.state == StateIdle {
		m.mu.Unlock()
		return
	}
	m.stopTimer()
	m.state = StateIdle
	m.phase = scenario.Phase{}
	m.incident = nil
	m.service, m.eta = "", ""
	m.since = m.clock.Now()
	st, obs := m.statusLocked(), m.observers
	m.mu.Unlock()
	notify(obs, st)
}

// Close cancels any pending step. Later calls are no-ops.
func (m *Machine) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopTimer()
	m.closed = true
}

// Status returns the current view.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.statusLocked()
}

func (m *Machine) statusLocked() Status {
	st := Status{
		State:      m.state,
		Phase:      m.phase.Name,
		Cancelable: m.phase.Cancelable,
		Terminal:   m.phase.Name != "" && m.phase.Terminal(),
		Dispatched: m.service != "",
		Service:    m.service,
		ETA:        m.eta,
		Since:      m.since,
	}
	if d := m.phase.Duration(); d > m.elapsed {
		st.Remaining = d - m.elapsed
	}
	if m.incident != nil {
		inc := *m.incident
		st.Incident = &inc
		st.Location = inc.Location
	}
	return st
}

// enter switches to p and arms its first step. Caller holds m.mu.
func (m *Machine) enter(p scenario.Phase) {
	m.stopTimer()
	m.state = p.Name
	m.phase = p
	m.elapsed = 0
	m.since = m.clock.Now()
	if p.Dispatch {
		m.service, m.eta = p.Service, p.ETA
		m.log.Warn("emergency services dispatched", "service", p.Service, "eta", p.ETA)
	}
	if p.Terminal() {
		return
	}
	m.arm()
}

func (m *Machine) stepLength() time.Duration {
	if m.phase.Step > 0 {
		return m.phase.Step
	}
	return m.phase.Duration()
}

// arm schedules the next step for the current generation. Caller holds m.mu.
func (m *Machine) arm() {
	d := m.stepLength()
	if d <= 0 {
		m.log.Error("sos phase has no step length, holding", "phase", m.phase.Name)
		return
	}
	gen := m.gen
	m.timer = m.clock.AfterFunc(d, func() { m.onStep(gen) })
}

// stopTimer invalidates the pending step. Caller holds m.mu.
func (m *Machine) stopTimer() {
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Machine) onStep(gen uint64) {
	m.mu.Lock()
	if m.closed || gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.elapsed += m.stepLength()
	ev := scenario.Event{Type: scenario.EventTimeElapsed, Value: int(m.elapsed / time.Second)}
	if name, ok := m.sc.NextPhase(m.phase.Name, ev); ok {
		next, _ := m.sc.Phase(name)
		m.log.Info("sos phase", "from", m.phase.Name, "to", name)
		m.enter(next)
	} else {
		m.arm()
	}
	st, obs := m.statusLocked(), m.observers
	m.mu.Unlock()
	notify(obs, st)
}

func notify(obs []func(Status), st Status) {
	for _, fn := range obs {
		fn(st)
	}
}

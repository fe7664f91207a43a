// Package engine runs the sensor demo: a fixed set of channels that trend
// towards their thresholds on a recurring tick while the demo is active.
package engine

import (
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"codevolt/internal/clock"
	"codevolt/internal/sensor"
)

// DefaultInterval is the tick period used when none is configured.
const DefaultInterval = 100 * time.Millisecond

// Rand supplies the per-tick step draws in [0,1).
type Rand interface {
	Float64() float64
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clock.Clock) Option { return func(e *Engine) { e.clock = c } }

// WithRand injects the random source used for step sizes.
func WithRand(r Rand) Option { return func(e *Engine) { e.rng = r } }

// WithInterval sets the tick period.
func WithInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.interval = d
		}
	}
}

// WithLogger sets the logger for lifecycle messages.
func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.log = l } }

// Engine owns the channel state. It is Idle until StartDemo and returns to
// Idle on StopDemo or ResetSensors. All methods are safe for concurrent use.
type Engine struct {
	mu       sync.RWMutex
	clock    clock.Clock
	rng      Rand
	interval time.Duration
	log      *slog.Logger

	specs    map[sensor.Kind]sensor.Spec
	channels map[sensor.Kind]sensor.Channel
	running  bool
	closed   bool
	gen      uint64
	timer    clock.Timer
	tick     uint64
	seq      uint64

	subs    map[*Subscription]struct{}
	dropped atomic.Uint64
}

// New builds an Idle engine with every channel at its initial value. A nil
// specs map selects sensor.DefaultSpecs.
func New(specs map[sensor.Kind]sensor.Spec, opts ...Option) (*Engine, error) {
	if specs == nil {
		specs = sensor.DefaultSpecs()
	}
	e := &Engine{
		clock:    clock.Real{},
		interval: DefaultInterval,
		log:      slog.Default(),
		specs:    make(map[sensor.Kind]sensor.Spec, len(sensor.Kinds)),
		subs:     make(map[*Subscription]struct{}),
	}
	for _, k := range sensor.Kinds {
		s, ok := specs[k]
		if !ok {
			return nil, fmt.Errorf("missing spec for channel %s", k)
		}
		s.Kind = k
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("invalid spec: %w", err)
		}
		e.specs[k] = s
	}
	for k := range specs {
		if !k.Valid() {
			return nil, fmt.Errorf("%w: %q", sensor.ErrUnknownKind, k)
		}
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	e.channels = e.initialChannels()
	return e, nil
}

func (e *Engine) initialChannels() map[sensor.Kind]sensor.Channel {
	out := make(map[sensor.Kind]sensor.Channel, len(e.specs))
	for k, s := range e.specs {
		out[k] = s.Channel()
	}
	return out
}

// Interval returns the tick period.
func (e *Engine) Interval() time.Duration { return e.interval }

// Specs returns a copy of the channel definitions.
func (e *Engine) Specs() map[sensor.Kind]sensor.Spec {
	out := make(map[sensor.Kind]sensor.Spec, len(e.specs))
	for k, s := range e.specs {
		out[k] = s
	}
	return out
}

// StartDemo moves Idle to Running and arms the first tick. Calling it while
// Running does nothing.
func (e *Engine) StartDemo() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running || e.closed {
		return
	}
	e.running = true
	e.gen++
	e.schedule(e.gen)
	e.log.Info("demo started", "interval", e.interval)
	e.publish(CauseStart)
}

// StopDemo moves Running to Idle and cancels the pending tick. Values keep
// their last state. Calling it while Idle does nothing.
func (e *Engine) StopDemo() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running || e.closed {
		return
	}
	e.cancelTick()
	e.running = false
	e.log.Info("demo stopped", "tick", e.tick)
	e.publish(CauseStop)
}

// ResetSensors returns every channel to its initial value and leaves the
// engine Idle, whatever its previous state.
func (e *Engine) ResetSensors() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.cancelTick()
	e.running = false
	e.channels = e.initialChannels()
	e.tick = 0
	e.log.Info("sensors reset")
	e.publish(CauseReset)
}

// Close stops the engine for good and closes every subscription.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.cancelTick()
	e.running = false
	e.publish(CauseClose)
	e.closed = true
	for s := range e.subs {
		delete(e.subs, s)
		close(s.c)
	}
}

// Running reports whether the demo is active.
func (e *Engine) Running() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshotLocked(CauseRead)
}

// Channel returns the current state of one channel.
func (e *Engine) Channel(kind sensor.Kind) (sensor.Channel, error) {
	if !kind.Valid() {
		return sensor.Channel{}, fmt.Errorf("%w: %q", sensor.ErrUnknownKind, kind)
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.channels[kind], nil
}

// Subscribe registers a listener with the given buffer size. The current
// state is delivered immediately. On a closed engine the returned
// subscription's channel is already closed.
func (e *Engine) Subscribe(buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	c := make(chan Snapshot, buffer)
	s := &Subscription{C: c, c: c, e: e}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		close(c)
		return s
	}
	e.subs[s] = struct{}{}
	s.deliver(e.snapshotLocked(CauseInit))
	return s
}

// Dropped returns the number of snapshots discarded across all subscribers.
func (e *Engine) Dropped() uint64 { return e.dropped.Load() }

// TicksToBreach is the number of ticks after which at least one channel is
// guaranteed to be critical once the demo starts from initial values.
func (e *Engine) TicksToBreach() int {
	best := -1
	for _, s := range e.specs {
		n := sensor.TicksToBreach(s)
		if n < 0 {
			continue
		}
		if best < 0 || n < best {
			best = n
		}
	}
	return best
}

// schedule arms a single tick for generation gen. Caller holds e.mu.
func (e *Engine) schedule(gen uint64) {
	e.timer = e.clock.AfterFunc(e.interval, func() { e.onTick(gen) })
}

// cancelTick invalidates any in-flight callback. Caller holds e.mu.
func (e *Engine) cancelTick() {
	e.gen++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func (e *Engine) onTick(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running || e.closed || gen != e.gen {
		return
	}
	e.advance()
	e.publish(CauseTick)
	e.schedule(gen)
}

// advance computes one tick. Caller holds e.mu.
func (e *Engine) advance() {
	next := make(map[sensor.Kind]sensor.Channel, len(e.channels))
	for _, k := range sensor.Kinds {
		ch := e.channels[k]
		spec := e.specs[k]
		if k.Numeric() {
			ch = spec.At(sensor.NextValue(spec, ch.Value, e.rng.Float64()))
		}
		next[k] = ch
	}
	e.channels = next
	e.tick++
}

func (e *Engine) snapshotLocked(cause Cause) Snapshot {
	return newSnapshot(e.channels, e.running, e.tick, e.seq, cause, e.clock.Now())
}

// publish bumps the sequence number and fans the new snapshot out to
// subscribers without blocking. Caller holds e.mu.
func (e *Engine) publish(cause Cause) {
	e.seq++
	snap := e.snapshotLocked(cause)
	for s := range e.subs {
		if !s.deliver(snap) {
			e.dropped.Add(1)
		}
	}
}

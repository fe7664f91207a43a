package engine

import (
	"sync"
	"sync/atomic"
)

// Subscription delivers snapshots in publication order. A subscriber that
// falls behind loses snapshots instead of stalling the engine.
type Subscription struct {
	C <-chan Snapshot

	c       chan Snapshot
	e       *Engine
	dropped atomic.Uint64
	once    sync.Once
}

// Dropped returns how many snapshots were discarded for this subscriber.
func (s *Subscription) Dropped() uint64 { return s.dropped.Load() }

// Close detaches the subscription and closes C. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.e.mu.Lock()
		defer s.e.mu.Unlock()
		if _, ok := s.e.subs[s]; ok {
			delete(s.e.subs, s)
			close(s.c)
		}
	})
}

// deliver must be called with e.mu held.
func (s *Subscription) deliver(snap Snapshot) bool {
	select {
	case s.c <- snap:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

package engine

import (
	"fmt"
	"time"

	"codevolt/internal/sensor"
)

// Cause records which operation produced a snapshot.
type Cause string

const (
	CauseInit  Cause = "init"
	CauseTick  Cause = "tick"
	CauseStart Cause = "start"
	CauseStop  Cause = "stop"
	CauseReset Cause = "reset"
	CauseClose Cause = "close"
	CauseRead  Cause = "read"
)

// Snapshot is an immutable copy of the engine state. Aggregates are derived
// from Channels when the snapshot is built.
type Snapshot struct {
	Channels          map[sensor.Kind]sensor.Channel `json:"channels"`
	DemoActive        bool                           `json:"demo_active"`
	ThresholdExceeded bool                           `json:"threshold_exceeded"`
	CriticalCount     int                            `json:"critical_count"`
	Tick              uint64                         `json:"tick"`
	Seq               uint64                         `json:"seq"`
	Cause             Cause                          `json:"cause"`
	Timestamp         time.Time                      `json:"timestamp"`
}

func newSnapshot(channels map[sensor.Kind]sensor.Channel, active bool, tick, seq uint64, cause Cause, ts time.Time) Snapshot {
	cp := make(map[sensor.Kind]sensor.Channel, len(channels))
	critical := 0
	for k, ch := range channels {
		cp[k] = ch
		if ch.Status == sensor.StatusCritical {
			critical++
		}
	}
	return Snapshot{
		Channels:          cp,
		DemoActive:        active,
		ThresholdExceeded: critical > 0,
		CriticalCount:     critical,
		Tick:              tick,
		Seq:               seq,
		Cause:             cause,
		Timestamp:         ts.UTC(),
	}
}

// Channel returns the channel of the given kind.
func (s Snapshot) Channel(kind sensor.Kind) (sensor.Channel, error) {
	if !kind.Valid() {
		return sensor.Channel{}, fmt.Errorf("%w: %q", sensor.ErrUnknownKind, kind)
	}
	ch, ok := s.Channels[kind]
	if !ok {
		return sensor.Channel{}, fmt.Errorf("%w: %q", sensor.ErrUnknownKind, kind)
	}
	return ch, nil
}

// Ordered returns the channels in sensor.Kinds order.
func (s Snapshot) Ordered() []sensor.Channel {
	out := make([]sensor.Channel, 0, len(s.Channels))
	for _, k := range sensor.Kinds {
		if ch, ok := s.Channels[k]; ok {
			out = append(out, ch)
		}
	}
	return out
}

// Critical returns the kinds currently in the critical state, in display order.
func (s Snapshot) Critical() []sensor.Kind {
	var out []sensor.Kind
	for _, k := range sensor.Kinds {
		if ch, ok := s.Channels[k]; ok && ch.Status == sensor.StatusCritical {
			out = append(out, k)
		}
	}
	return out
}

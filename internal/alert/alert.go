// Package alert derives the rider-facing alert level from an engine snapshot.
package alert

import (
	"fmt"

	"codevolt/internal/engine"
	"codevolt/internal/sensor"
)

// Level orders alert severities from normal to emergency.
type Level int

const (
	LevelNormal Level = iota
	LevelCaution
	LevelImminent
	LevelEmergency
)

func (l Level) String() string {
	switch l {
	case LevelCaution:
		return "caution"
	case LevelImminent:
		return "imminent"
	case LevelEmergency:
		return "emergency"
	default:
		return "normal"
	}
}

// MarshalText lets Level render as its name in JSON.
func (l Level) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// MotionKinds are the channels the alert level is computed over.
var MotionKinds = []sensor.Kind{sensor.Gyroscope, sensor.Accelerometer, sensor.Barometer, sensor.Speed}

// DefaultMinCritical is the critical channel count that arms SOS dispatch.
const DefaultMinCritical = 2

// Assessment is the alert derived from one snapshot.
type Assessment struct {
	Level          Level                   `json:"level"`
	Message        string                  `json:"message"`
	MotionCritical int                     `json:"motion_critical"`
	Percents       map[sensor.Kind]float64 `json:"percents"`
}

// Percent returns how far a channel is along its gauge, 100 at the threshold.
// Battery reports its charge; GPS has no gauge.
func Percent(ch sensor.Channel) float64 {
	switch {
	case !ch.Kind.Numeric():
		return 0
	case ch.Kind.Inverted():
		return ch.Value
	}
	base := sensor.Baseline(ch.Kind)
	span := ch.Threshold - base
	if span <= 0 {
		return 0
	}
	p := (ch.Value - base) / span * 100
	if p < 0 {
		return 0
	}
	return p
}

// Evaluate computes the alert level over the motion channels.
func Evaluate(snap engine.Snapshot) Assessment {
	a := Assessment{Percents: make(map[sensor.Kind]float64, len(snap.Channels))}
	allAboveHalf := true
	anyAboveHalf := false
	for _, k := range MotionKinds {
		ch, ok := snap.Channels[k]
		if !ok {
			allAboveHalf = false
			continue
		}
		p := Percent(ch)
		a.Percents[k] = p
		if ch.Status == sensor.StatusCritical {
			a.MotionCritical++
		}
		if p > 50 {
			anyAboveHalf = true
		} else {
			allAboveHalf = false
		}
	}
	if b, ok := snap.Channels[sensor.Battery]; ok {
		a.Percents[sensor.Battery] = Percent(b)
	}

	switch {
	case a.MotionCritical >= 2:
		a.Level = LevelEmergency
		a.Message = fmt.Sprintf("EMERGENCY: %d sensors in CRITICAL state! SOS activation imminent...", a.MotionCritical)
	case allAboveHalf:
		a.Level = LevelImminent
		a.Message = "Warning: All sensors above 50% threshold! SOS activation imminent..."
	case a.MotionCritical == 1 || anyAboveHalf:
		a.Level = LevelCaution
		a.Message = "Caution: Some sensors approaching critical thresholds"
	default:
		a.Level = LevelNormal
		a.Message = "Normal operation: All sensors within safe parameters"
	}
	return a
}

// ShouldDispatch reports whether the snapshot warrants arming SOS.
func ShouldDispatch(snap engine.Snapshot, minCritical int) bool {
	if minCritical <= 0 {
		minCritical = DefaultMinCritical
	}
	return snap.CriticalCount >= minCritical
}

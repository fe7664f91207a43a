package sensor

import (
	"errors"
	"fmt"
)

// Spec is the immutable definition of one channel: display unit, breach
// threshold, starting value and per-tick step range.
type Spec struct {
	Kind      Kind
	Unit      string
	Threshold float64
	Initial   float64
	StepMin   float64
	StepMax   float64
	Max       float64
	Location  string // GPS only
}

// DefaultLocation is the static GPS fix reported by the demo.
const DefaultLocation = "Main St & Broadway, Downtown (40.7128° N, 74.0060° W)"

// DefaultSpecs returns the built-in channel table. Every channel starts in the
// normal band and the gyroscope is the first to breach.
func DefaultSpecs() map[Kind]Spec {
	return map[Kind]Spec{
		Gyroscope:     {Kind: Gyroscope, Unit: "°/s", Threshold: 300, Initial: 40, StepMin: 10, StepMax: 20, Max: 2000},
		Accelerometer: {Kind: Accelerometer, Unit: "m/s²", Threshold: 20, Initial: 2.5, StepMin: 0.5, StepMax: 1, Max: 160},
		Barometer:     {Kind: Barometer, Unit: "hPa", Threshold: 1030, Initial: 1008, StepMin: 0.5, StepMax: 1.2, Max: 1100},
		GPS:           {Kind: GPS, Location: DefaultLocation},
		Speed:         {Kind: Speed, Unit: "km/h", Threshold: 80, Initial: 18, StepMin: 1.5, StepMax: 3, Max: 120},
		Battery:       {Kind: Battery, Unit: "%", Threshold: 20, Initial: 85, StepMin: 0.5, StepMax: 1.5, Max: 100},
	}
}

// Validate rejects specs that could never trend towards a breach.
func (s Spec) Validate() error {
	if !s.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownKind, s.Kind)
	}
	if !s.Kind.Numeric() {
		if s.Location == "" {
			return errors.New("gps: location required")
		}
		return nil
	}
	if s.StepMin <= 0 {
		return fmt.Errorf("%s: step_min must be > 0", s.Kind)
	}
	if s.StepMax < s.StepMin {
		return fmt.Errorf("%s: step_max must be >= step_min", s.Kind)
	}
	if s.Initial < 0 || s.Threshold < 0 {
		return fmt.Errorf("%s: initial and threshold must be non-negative", s.Kind)
	}
	if s.Max < s.Initial {
		return fmt.Errorf("%s: max must be >= initial", s.Kind)
	}
	if !s.Kind.Inverted() && s.Max < s.Threshold {
		return fmt.Errorf("%s: max %.2f below threshold %.2f", s.Kind, s.Max, s.Threshold)
	}
	return nil
}

// Channel builds the channel at its initial value.
func (s Spec) Channel() Channel {
	if !s.Kind.Numeric() {
		return Channel{Kind: s.Kind, Text: s.Location, Status: StatusNormal}
	}
	return s.At(s.Initial)
}

// At builds the channel holding value.
func (s Spec) At(value float64) Channel {
	return Channel{
		Kind:      s.Kind,
		Value:     value,
		Unit:      s.Unit,
		Threshold: s.Threshold,
		Status:    Classify(s.Kind, value, s.Threshold),
	}
}

// TicksToBreach returns the number of ticks after which the channel is
// guaranteed to be critical, replaying the smallest possible step from the
// initial value. It returns -1 for GPS or an invalid spec.
func TicksToBreach(s Spec) int {
	if !s.Kind.Numeric() || s.Validate() != nil {
		return -1
	}
	v := s.Initial
	n := 0
	for Classify(s.Kind, v, s.Threshold) != StatusCritical {
		next := NextValue(s, v, 0)
		if next == v {
			return -1
		}
		v = next
		n++
	}
	return n
}

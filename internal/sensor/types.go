// Sensor channel types shared by the engine and its consumers
package sensor

import (
	"errors"
	"fmt"
)

// Kind identifies one simulated sensor feed.
type Kind string

const (
	Gyroscope     Kind = "gyroscope"
	Accelerometer Kind = "accelerometer"
	Barometer     Kind = "barometer"
	GPS           Kind = "gps"
	Speed         Kind = "speed"
	Battery       Kind = "battery"
)

// Kinds lists every channel kind in display order.
var Kinds = []Kind{Gyroscope, Accelerometer, Barometer, GPS, Speed, Battery}

// ErrUnknownKind is returned when a channel kind outside Kinds is requested.
var ErrUnknownKind = errors.New("unknown sensor kind")

// ParseKind validates s against the fixed kind set.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
	return k, nil
}

// Valid reports whether k is one of Kinds.
func (k Kind) Valid() bool {
	switch k {
	case Gyroscope, Accelerometer, Barometer, GPS, Speed, Battery:
		return true
	}
	return false
}

// Numeric reports whether the channel carries a numeric reading.
func (k Kind) Numeric() bool { return k.Valid() && k != GPS }

// Inverted reports whether severity grows as the value falls.
func (k Kind) Inverted() bool { return k == Battery }

// Status is the derived severity of a channel.
type Status string

const (
	StatusNormal   Status = "normal"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
)

// Channel is the current state of one sensor feed.
type Channel struct {
	Kind      Kind    `json:"kind"`
	Value     float64 `json:"value"`
	Text      string  `json:"text,omitempty"` // GPS location
	Unit      string  `json:"unit"`
	Threshold float64 `json:"threshold"`
	Status    Status  `json:"status"`
}

// Display returns the reading the way the dashboards print it.
func (c Channel) Display() string {
	switch c.Kind {
	case GPS:
		return c.Text
	case Battery:
		return fmt.Sprintf("%.0f %s", c.Value, c.Unit)
	default:
		return fmt.Sprintf("%.1f %s", c.Value, c.Unit)
	}
}

package sos

import (
	"time"

	"github.com/google/uuid"

	"codevolt/internal/engine"
	"codevolt/internal/sensor"
)

// Incident is the data packet transmitted to emergency services.
type Incident struct {
	ID          string           `json:"id"`
	Location    string           `json:"location"`
	Critical    []sensor.Kind    `json:"critical"`
	Readings    []sensor.Channel `json:"readings"`
	Tick        uint64           `json:"tick"`
	TriggeredAt time.Time        `json:"triggered_at"`
}

// NewIncident captures the snapshot that triggered an SOS.
func NewIncident(snap engine.Snapshot) Incident {
	inc := Incident{
		ID:          uuid.New().String(),
		Critical:    snap.Critical(),
		Readings:    snap.Ordered(),
		Tick:        snap.Tick,
		TriggeredAt: snap.Timestamp,
	}
	if gps, ok := snap.Channels[sensor.GPS]; ok {
		inc.Location = gps.Text
	}
	return inc
}

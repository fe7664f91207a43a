// Telemetry rows exported by the session writers, with greptime tags
package telemetry

import (
	"os"
	"time"

	"codevolt/internal/sensor"
)

// ReadingRow is one channel reading from a live snapshot. Readings are only
// streamed to live sinks, never archived.
type ReadingRow struct {
	SessionID string        `json:"session_id"` // TAG
	Kind      sensor.Kind   `json:"kind"`       // TAG
	Value     float64       `json:"value"`      // FIELD
	Text      string        `json:"text,omitempty"`
	Unit      string        `json:"unit"`
	Threshold float64       `json:"threshold"`
	Status    sensor.Status `json:"status"`
	Tick      uint64        `json:"tick"`
	Seq       uint64        `json:"seq"`
	Timestamp time.Time     `json:"ts"` // TIME INDEX
}

// StateRow summarises a snapshot for live dashboards.
type StateRow struct {
	SessionID         string    `json:"session_id"`
	DemoActive        bool      `json:"demo_active"`
	ThresholdExceeded bool      `json:"threshold_exceeded"`
	CriticalCount     int       `json:"critical_count"`
	AlertLevel        string    `json:"alert_level"`
	AlertMessage      string    `json:"alert_message"`
	SOSState          string    `json:"sos_state"`
	Tick              uint64    `json:"tick"`
	Seq               uint64    `json:"seq"`
	Timestamp         time.Time `json:"ts"`
}

// Event types written to the event log.
const (
	EventDemoStarted       = "demo_started"
	EventDemoStopped       = "demo_stopped"
	EventSensorsReset      = "sensors_reset"
	EventThresholdExceeded = "threshold_exceeded"
	EventAlertLevel        = "alert_level"
	EventSOSPhase          = "sos_phase"
	EventSOSCanceled       = "sos_canceled"
)

// EventRow is one lifecycle event of a session.
type EventRow struct {
	SessionID string    `json:"session_id"` // TAG
	EventType string    `json:"event_type"` // TAG
	Level     string    `json:"level"`      // FIELD
	Message   string    `json:"message"`    // FIELD
	Critical  []string  `json:"critical,omitempty"`
	Tick      uint64    `json:"tick"`
	Timestamp time.Time `json:"ts"` // TIME INDEX
}

// IncidentRow is the dispatch report sent to emergency services.
type IncidentRow struct {
	SessionID  string           `json:"session_id"`  // TAG
	IncidentID string           `json:"incident_id"` // TAG
	Location   string           `json:"location"`
	Critical   []string         `json:"critical"`
	Readings   []sensor.Channel `json:"readings"`
	Service    string           `json:"service"`
	ETA        string           `json:"eta"`
	Phase      string           `json:"phase"`
	Tick       uint64           `json:"tick"`
	Timestamp  time.Time        `json:"ts"` // TIME INDEX
}

func envOr(key, def string) string {
	if env := os.Getenv(key); env != "" {
		return env
	}
	return def
}

// EventTableName holds the GreptimeDB table for events. It defaults to
// "codevolt_events" and can be overridden via GREPTIMEDB_EVENTS_TABLE.
var EventTableName = envOr("GREPTIMEDB_EVENTS_TABLE", "codevolt_events")

// IncidentTableName holds the GreptimeDB table for incidents. It defaults to
// "codevolt_incidents" and can be overridden via GREPTIMEDB_INCIDENTS_TABLE.
var IncidentTableName = envOr("GREPTIMEDB_INCIDENTS_TABLE", "codevolt_incidents")

func (EventRow) TableName() string { return EventTableName }

func (IncidentRow) TableName() string { return IncidentTableName }

package telemetry

import (
	"codevolt/internal/alert"
	"codevolt/internal/engine"
	"codevolt/internal/sensor"
	"codevolt/internal/sos"
)

// Generator turns engine snapshots and SOS transitions into rows for one session.
type Generator struct {
	SessionID string
}

// NewGenerator creates a new row generator for a given session.
func NewGenerator(sessionID string) *Generator {
	return &Generator{SessionID: sessionID}
}

// Readings returns one row per channel in display order.
func (g *Generator) Readings(snap engine.Snapshot) []ReadingRow {
	chans := snap.Ordered()
	rows := make([]ReadingRow, 0, len(chans))
	for _, ch := range chans {
		rows = append(rows, ReadingRow{
			SessionID: g.SessionID,
			Kind:      ch.Kind,
			Value:     ch.Value,
			Text:      ch.Text,
			Unit:      ch.Unit,
			Threshold: ch.Threshold,
			Status:    ch.Status,
			Tick:      snap.Tick,
			Seq:       snap.Seq,
			Timestamp: snap.Timestamp,
		})
	}
	return rows
}

// State summarises a snapshot together with its alert assessment and the
// current SOS state.
func (g *Generator) State(snap engine.Snapshot, a alert.Assessment, sosState string) StateRow {
	return StateRow{
		SessionID:         g.SessionID,
		DemoActive:        snap.DemoActive,
		ThresholdExceeded: snap.ThresholdExceeded,
		CriticalCount:     snap.CriticalCount,
		AlertLevel:        a.Level.String(),
		AlertMessage:      a.Message,
		SOSState:          sosState,
		Tick:              snap.Tick,
		Seq:               snap.Seq,
		Timestamp:         snap.Timestamp,
	}
}

// Event builds an event row stamped with the snapshot's tick and time.
func (g *Generator) Event(snap engine.Snapshot, eventType, level, message string) EventRow {
	return EventRow{
		SessionID: g.SessionID,
		EventType: eventType,
		Level:     level,
		Message:   message,
		Critical:  kindNames(snap.Critical()),
		Tick:      snap.Tick,
		Timestamp: snap.Timestamp,
	}
}

// Incident builds the dispatch report from an SOS status. ok is false when the
// status carries no incident.
func (g *Generator) Incident(st sos.Status) (IncidentRow, bool) {
	if st.Incident == nil {
		return IncidentRow{}, false
	}
	inc := st.Incident
	return IncidentRow{
		SessionID:  g.SessionID,
		IncidentID: inc.ID,
		Location:   inc.Location,
		Critical:   kindNames(inc.Critical),
		Readings:   inc.Readings,
		Service:    st.Service,
		ETA:        st.ETA,
		Phase:      st.Phase,
		Tick:       inc.Tick,
		Timestamp:  st.Since.UTC(),
	}, true
}

func kindNames(kinds []sensor.Kind) []string {
	if len(kinds) == 0 {
		return nil
	}
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}

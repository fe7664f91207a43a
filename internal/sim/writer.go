package sim

import (
	"codevolt/internal/telemetry"
)

// LiveWriter receives every published snapshot as a state summary plus one
// reading per channel. Live sinks only; readings are never archived.
type LiveWriter interface {
	WriteLive(state telemetry.StateRow, readings []telemetry.ReadingRow) error
}

// EventWriter handles session lifecycle events.
type EventWriter interface {
	WriteEvent(telemetry.EventRow) error
}

// IncidentWriter handles dispatch reports.
type IncidentWriter interface {
	WriteIncident(telemetry.IncidentRow) error
}

// Optional: Event writers may support batch mode
type batchEventWriter interface {
	WriteEvents([]telemetry.EventRow) error
}

// writeEvents uses the batch path when w supports it.
func writeEvents(w EventWriter, rows []telemetry.EventRow) error {
	if len(rows) == 0 {
		return nil
	}
	if bw, ok := w.(batchEventWriter); ok {
		return bw.WriteEvents(rows)
	}
	for _, r := range rows {
		if err := w.WriteEvent(r); err != nil {
			return err
		}
	}
	return nil
}

package sim

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"codevolt/internal/telemetry"
)

// JSONStdoutWriter prints state rows, events and incidents as JSON lines.
type JSONStdoutWriter struct {
	out      io.Writer
	readings bool
}

// NewJSONStdoutWriter creates a JSONStdoutWriter writing to os.Stdout.
// With readings set every channel reading is printed after its state row.
func NewJSONStdoutWriter(readings bool) *JSONStdoutWriter {
	return &JSONStdoutWriter{out: os.Stdout, readings: readings}
}

func (w *JSONStdoutWriter) print(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w.out, string(data))
	return err
}

// WriteLive prints the state summary and optionally each reading.
func (w *JSONStdoutWriter) WriteLive(state telemetry.StateRow, readings []telemetry.ReadingRow) error {
	if err := w.print(state); err != nil {
		return err
	}
	if !w.readings {
		return nil
	}
	for _, r := range readings {
		if err := w.print(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteEvent prints a lifecycle event.
func (w *JSONStdoutWriter) WriteEvent(row telemetry.EventRow) error {
	return w.print(row)
}

// WriteIncident prints a dispatch report.
func (w *JSONStdoutWriter) WriteIncident(row telemetry.IncidentRow) error {
	return w.print(row)
}

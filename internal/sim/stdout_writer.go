// Writer implementation printing telemetry to STDOUT
package sim

import (
	"codevolt/internal/sensor"
	"codevolt/internal/telemetry"
)

// StdoutWriter prints telemetry either colorized for terminals or as JSON
// lines for pipes.
type StdoutWriter struct {
	colorize bool
	color    *ColorStdoutWriter
	json     *JSONStdoutWriter
}

// NewStdoutWriter picks the colorized or JSON rendering.
func NewStdoutWriter(specs map[sensor.Kind]sensor.Spec, colorize bool) *StdoutWriter {
	return &StdoutWriter{
		colorize: colorize,
		color:    NewColorStdoutWriter(specs),
		json:     NewJSONStdoutWriter(false),
	}
}

// WriteLive outputs a live state update.
func (w *StdoutWriter) WriteLive(state telemetry.StateRow, readings []telemetry.ReadingRow) error {
	if w.colorize {
		return w.color.WriteLive(state, readings)
	}
	return w.json.WriteLive(state, readings)
}

// WriteEvent outputs a lifecycle event.
func (w *StdoutWriter) WriteEvent(e telemetry.EventRow) error {
	if w.colorize {
		return w.color.WriteEvent(e)
	}
	return w.json.WriteEvent(e)
}

// WriteIncident outputs a dispatch report.
func (w *StdoutWriter) WriteIncident(inc telemetry.IncidentRow) error {
	if w.colorize {
		return w.color.WriteIncident(inc)
	}
	return w.json.WriteIncident(inc)
}

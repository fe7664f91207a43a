// ColorStdoutWriter prints human-friendly, colorized telemetry to STDOUT.
package sim

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"codevolt/internal/sensor"
	"codevolt/internal/telemetry"
)

const (
	colorReset   = "\x1b[0m"
	colorRed     = "\x1b[31m"
	colorGreen   = "\x1b[32m"
	colorYellow  = "\x1b[33m"
	colorBlue    = "\x1b[34m"
	colorMagenta = "\x1b[35m"
	colorCyan    = "\x1b[36m"
	colorGray    = "\x1b[90m"
)

// DefaultPrintEvery is how many ticks the colour writer skips between
// unchanged state lines.
const DefaultPrintEvery = 10

// ColorStdoutWriter prints state changes and events using ANSI colors.
// Steady ticks are thinned to one line every PrintEvery ticks.
type ColorStdoutWriter struct {
	specs      map[sensor.Kind]sensor.Spec
	out        io.Writer
	once       sync.Once
	PrintEvery uint64

	mu   sync.Mutex
	last telemetry.StateRow
	seen bool
}

// NewColorStdoutWriter creates a ColorStdoutWriter writing to os.Stdout.
func NewColorStdoutWriter(specs map[sensor.Kind]sensor.Spec) *ColorStdoutWriter {
	return &ColorStdoutWriter{specs: specs, out: os.Stdout, PrintEvery: DefaultPrintEvery}
}

func statusColor(s sensor.Status) string {
	switch s {
	case sensor.StatusCritical:
		return colorRed
	case sensor.StatusWarning:
		return colorYellow
	}
	return colorGreen
}

func levelColor(level string) string {
	switch level {
	case "emergency":
		return colorRed
	case "imminent":
		return colorMagenta
	case "caution":
		return colorYellow
	}
	return colorGreen
}

func (w *ColorStdoutWriter) printOverview() {
	if len(w.specs) == 0 {
		return
	}
	fmt.Fprintln(w.out, "Sensor Channels:")
	tw := tabwriter.NewWriter(w.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Kind\tUnit\tThreshold\tInitial\tStep\n")
	for _, kind := range sensor.Kinds {
		s, ok := w.specs[kind]
		if !ok {
			continue
		}
		if !s.Kind.Numeric() {
			fmt.Fprintf(tw, "%s%s%s\t-\t-\t%s\t-\n", colorCyan, s.Kind, colorReset, s.Location)
			continue
		}
		fmt.Fprintf(tw, "%s%s%s\t%s\t%.1f\t%.1f\t%.1f-%.1f\n", colorCyan, s.Kind, colorReset, s.Unit, s.Threshold, s.Initial, s.StepMin, s.StepMax)
	}
	tw.Flush()
	fmt.Fprintln(w.out)
}

func (w *ColorStdoutWriter) changed(state telemetry.StateRow) bool {
	if !w.seen {
		return true
	}
	if state.DemoActive != w.last.DemoActive || state.CriticalCount != w.last.CriticalCount ||
		state.AlertLevel != w.last.AlertLevel || state.SOSState != w.last.SOSState {
		return true
	}
	every := w.PrintEvery
	if every == 0 {
		every = 1
	}
	return state.Tick != w.last.Tick && state.Tick%every == 0
}

// WriteLive prints a state line with every numeric reading when the state
// changed or the tick falls on the print interval.
func (w *ColorStdoutWriter) WriteLive(state telemetry.StateRow, readings []telemetry.ReadingRow) error {
	w.once.Do(w.printOverview)
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.changed(state) {
		w.last = state
		return nil
	}
	w.last, w.seen = state, true

	run := "idle"
	if state.DemoActive {
		run = "running"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%s]%s %stick=%d%s %s ", colorGray, state.Timestamp.Format(time.RFC3339), colorReset, colorBlue, state.Tick, colorReset, run)
	for _, r := range readings {
		if !r.Kind.Numeric() {
			continue
		}
		fmt.Fprintf(&b, "%s%s=%.1f%s ", statusColor(r.Status), r.Kind, r.Value, colorReset)
	}
	fmt.Fprintf(&b, "%salert=%s%s", levelColor(state.AlertLevel), state.AlertLevel, colorReset)
	if state.SOSState != "" && state.SOSState != "idle" {
		fmt.Fprintf(&b, " %ssos=%s%s", colorMagenta, state.SOSState, colorReset)
	}
	fmt.Fprintln(w.out, b.String())
	return nil
}

// WriteEvent prints a lifecycle event.
func (w *ColorStdoutWriter) WriteEvent(e telemetry.EventRow) error {
	w.once.Do(w.printOverview)
	fmt.Fprintf(w.out, "%s[%s]%s %sEVENT%s type=%s level=%s%s%s %s",
		colorGray, e.Timestamp.Format(time.RFC3339), colorReset,
		colorCyan, colorReset, e.EventType, levelColor(e.Level), e.Level, colorReset, e.Message)
	if len(e.Critical) > 0 {
		fmt.Fprintf(w.out, " %scritical=%v%s", colorRed, e.Critical, colorReset)
	}
	fmt.Fprintln(w.out)
	return nil
}

// WriteIncident prints a dispatch report.
func (w *ColorStdoutWriter) WriteIncident(inc telemetry.IncidentRow) error {
	w.once.Do(w.printOverview)
	fmt.Fprintf(w.out, "%s[%s]%s %sSOS DISPATCH%s incident=%s service=%q eta=%q location=%q critical=%v\n",
		colorGray, inc.Timestamp.Format(time.RFC3339), colorReset,
		colorRed, colorReset, inc.IncidentID, inc.Service, inc.ETA, inc.Location, inc.Critical)
	return nil
}

package sim

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"codevolt/internal/sensor"
	"codevolt/internal/telemetry"
)

func testStdout(buf *bytes.Buffer, colorize bool) *StdoutWriter {
	w := NewStdoutWriter(sensor.DefaultSpecs(), colorize)
	w.color.out = buf
	w.json.out = buf
	return w
}

func TestStdoutWriterJSONFallback(t *testing.T) {
	buf := &bytes.Buffer{}
	w := testStdout(buf, false)
	state := telemetry.StateRow{SessionID: "s1", AlertLevel: "normal", Timestamp: time.Unix(0, 0)}
	if err := w.WriteLive(state, nil); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(buf.String()), "{") {
		t.Fatalf("expected JSON output, got %q", buf.String())
	}
	if !strings.Contains(buf.String(), `"alert_level":"normal"`) {
		t.Fatalf("missing alert level: %q", buf.String())
	}
}

func TestJSONStdoutWriterReadings(t *testing.T) {
	buf := &bytes.Buffer{}
	w := &JSONStdoutWriter{out: buf, readings: true}
	readings := []telemetry.ReadingRow{{Kind: sensor.Gyroscope, Value: 40}, {Kind: sensor.Speed, Value: 18}}
	if err := w.WriteLive(telemetry.StateRow{}, readings); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if n := strings.Count(buf.String(), "\n"); n != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", n, buf.String())
	}
}

func TestStdoutWriterColorized(t *testing.T) {
	buf := &bytes.Buffer{}
	w := testStdout(buf, true)
	state := telemetry.StateRow{AlertLevel: "normal", SOSState: "idle", Timestamp: time.Unix(0, 0)}
	readings := []telemetry.ReadingRow{
		{Kind: sensor.Gyroscope, Value: 310, Status: sensor.StatusCritical},
		{Kind: sensor.GPS, Text: sensor.DefaultLocation},
	}
	if err := w.WriteLive(state, readings); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	output := buf.String()
	if !strings.Contains(output, "Sensor Channels:") || !strings.Contains(output, "barometer") {
		t.Fatalf("overview not printed: %q", output)
	}
	if !strings.Contains(output, colorRed+"gyroscope=310.0") {
		t.Fatalf("expected critical reading in red: %q", output)
	}

	buf.Reset()
	if err := w.WriteEvent(telemetry.EventRow{EventType: telemetry.EventDemoStarted, Level: "normal", Timestamp: time.Unix(0, 0)}); err != nil {
		t.Fatalf("event write failed: %v", err)
	}
	if strings.Contains(buf.String(), "Sensor Channels:") {
		t.Fatalf("overview printed more than once")
	}
	if !strings.Contains(buf.String(), "type=demo_started") {
		t.Fatalf("event not printed: %q", buf.String())
	}
}

func TestColorStdoutWriterThinsSteadyTicks(t *testing.T) {
	buf := &bytes.Buffer{}
	w := &ColorStdoutWriter{out: buf, PrintEvery: 10}
	state := telemetry.StateRow{DemoActive: true, AlertLevel: "normal"}
	for tick := uint64(1); tick <= 20; tick++ {
		state.Tick = tick
		if err := w.WriteLive(state, nil); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}
	// first line, tick 10 and tick 20
	if n := strings.Count(buf.String(), "\n"); n != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", n, buf.String())
	}

	buf.Reset()
	state.Tick = 21
	state.CriticalCount = 1
	if err := w.WriteLive(state, nil); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("state change should always print")
	}
}

func TestColorStdoutWriterIncident(t *testing.T) {
	buf := &bytes.Buffer{}
	w := &ColorStdoutWriter{out: buf}
	inc := telemetry.IncidentRow{IncidentID: "i1", Service: "Ambulance Service", ETA: "8 minutes", Location: sensor.DefaultLocation}
	if err := w.WriteIncident(inc); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if !strings.Contains(buf.String(), "SOS DISPATCH") || !strings.Contains(buf.String(), `service="Ambulance Service"`) {
		t.Fatalf("unexpected output %q", buf.String())
	}
}

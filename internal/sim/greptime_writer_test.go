package sim

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"

	"codevolt/internal/sensor"
	"codevolt/internal/telemetry"
)

type mockGreptimeClient struct {
	table  *table.Table
	calls  int
	err    error
	closed bool
}

func (m *mockGreptimeClient) Close() error {
	m.closed = true
	return nil
}

func (m *mockGreptimeClient) Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error) {
	m.calls++
	if len(tables) > 0 {
		m.table = tables[0]
	}
	if m.err != nil {
		return nil, m.err
	}
	return &gpb.GreptimeResponse{}, nil
}

func TestGreptimeWriterEvents(t *testing.T) {
	ts := time.Unix(0, 0).UTC()
	rows := []telemetry.EventRow{
		{SessionID: "s1", EventType: telemetry.EventThresholdExceeded, Level: "caution", Message: "m", Critical: []string{"gyroscope", "speed"}, Tick: 26, Timestamp: ts},
		{SessionID: "s1", EventType: telemetry.EventDemoStopped, Level: "normal", Timestamp: ts},
	}
	m := &mockGreptimeClient{}
	w := &GreptimeDBWriter{client: m, eventTable: "events"}

	if err := w.WriteEvents(rows); err != nil {
		t.Fatalf("WriteEvents: %v", err)
	}
	if m.calls != 1 {
		t.Fatalf("expected one batched write, got %d", m.calls)
	}
	got := m.table.GetRows()
	if len(got.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got.Rows))
	}
	if v := got.Rows[0].Values[1].GetStringValue(); v != telemetry.EventThresholdExceeded {
		t.Fatalf("event_type = %s", v)
	}
	if v := got.Rows[0].Values[4].GetStringValue(); v != `["gyroscope","speed"]` {
		t.Fatalf("critical = %s", v)
	}
	if v := got.Rows[1].Values[4].GetStringValue(); v != `[]` {
		t.Fatalf("empty critical = %s", v)
	}
}

func TestGreptimeWriterIncident(t *testing.T) {
	row := telemetry.IncidentRow{
		SessionID:  "s1",
		IncidentID: "i1",
		Location:   sensor.DefaultLocation,
		Critical:   []string{"gyroscope"},
		Readings:   []sensor.Channel{{Kind: sensor.Gyroscope, Value: 310, Unit: "°/s", Threshold: 300, Status: sensor.StatusCritical}},
		Service:    "Ambulance Service",
		ETA:        "8 minutes",
		Phase:      "transmitting",
		Timestamp:  time.Unix(0, 0).UTC(),
	}
	m := &mockGreptimeClient{}
	w := &GreptimeDBWriter{client: m, incidentTable: "incidents"}
	if err := w.WriteIncident(row); err != nil {
		t.Fatalf("WriteIncident: %v", err)
	}
	vals := m.table.GetRows().Rows[0].Values
	if vals[1].GetStringValue() != "i1" || vals[5].GetStringValue() != "Ambulance Service" {
		t.Fatalf("unexpected values %v", vals)
	}
}

func TestGreptimeWriterPropagatesError(t *testing.T) {
	m := &mockGreptimeClient{err: errors.New("unavailable")}
	w := &GreptimeDBWriter{client: m, eventTable: "events"}
	err := w.WriteEvent(telemetry.EventRow{SessionID: "s1", Timestamp: time.Unix(0, 0)})
	if !errors.Is(err, m.err) {
		t.Fatalf("expected wrapped client error, got %v", err)
	}
	if err := w.WriteEvents(nil); err != nil || m.calls != 1 {
		t.Fatalf("empty batch should not write: err=%v calls=%d", err, m.calls)
	}
}

func TestGreptimeWriterLogsOnlySuccess(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	m := &mockGreptimeClient{err: errors.New("unavailable")}
	w := &GreptimeDBWriter{client: m, eventTable: "events", incidentTable: "incidents", log: log}

	if err := w.WriteIncident(telemetry.IncidentRow{IncidentID: "inc-1", Timestamp: time.Unix(0, 0)}); err == nil {
		t.Fatal("expected error")
	}
	if buf.Len() != 0 {
		t.Fatalf("failed write was logged by the writer: %s", buf.String())
	}
}

func TestGreptimeWriterCloseThroughMultiWriter(t *testing.T) {
	m := &mockGreptimeClient{}
	mw := NewMultiWriter(&GreptimeDBWriter{client: m, eventTable: "events"})
	if err := mw.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !m.closed {
		t.Fatal("greptime client not closed")
	}
}

package sim

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"codevolt/internal/telemetry"
)

type execCall struct {
	sql  string
	args []any
}

type mockExecer struct {
	calls []execCall
	err   error
}

func (m *mockExecer) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.calls = append(m.calls, execCall{sql: sql, args: args})
	if m.err != nil {
		return pgconn.CommandTag{}, m.err
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func TestPostgresWriterEnsureSchema(t *testing.T) {
	m := &mockExecer{}
	w := &PostgresWriter{db: m}
	if err := w.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	if len(m.calls) != 1 || !strings.Contains(m.calls[0].sql, "codevolt_incidents") {
		t.Fatalf("unexpected calls %+v", m.calls)
	}
}

func TestPostgresWriterEvent(t *testing.T) {
	m := &mockExecer{}
	w := &PostgresWriter{db: m}
	ts := time.Unix(0, 0).UTC()
	if err := w.WriteEvent(telemetry.EventRow{SessionID: "s1", EventType: telemetry.EventDemoStarted, Level: "normal", Tick: 3, Timestamp: ts}); err != nil {
		t.Fatalf("WriteEvent: %v", err)
	}
	args := m.calls[0].args
	if len(args) != 7 {
		t.Fatalf("expected 7 args, got %d", len(args))
	}
	if string(args[4].([]byte)) != "[]" {
		t.Fatalf("critical = %s", args[4])
	}
	if args[5].(int64) != 3 || !args[6].(time.Time).Equal(ts) {
		t.Fatalf("unexpected args %v", args)
	}
}

func TestPostgresWriterIncident(t *testing.T) {
	m := &mockExecer{}
	w := &PostgresWriter{db: m}
	row := telemetry.IncidentRow{SessionID: "s1", IncidentID: "i1", Critical: []string{"speed"}, Service: "Ambulance Service"}
	if err := w.WriteIncident(row); err != nil {
		t.Fatalf("WriteIncident: %v", err)
	}
	if !strings.Contains(m.calls[0].sql, "ON CONFLICT") {
		t.Fatal("incident insert should be idempotent")
	}
	if m.calls[0].args[0] != "i1" || string(m.calls[0].args[3].([]byte)) != `["speed"]` {
		t.Fatalf("unexpected args %v", m.calls[0].args)
	}
}

func TestPostgresWriterError(t *testing.T) {
	m := &mockExecer{err: errors.New("conn refused")}
	w := &PostgresWriter{db: m}
	if err := w.WriteEvent(telemetry.EventRow{}); err == nil {
		t.Fatal("expected error")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

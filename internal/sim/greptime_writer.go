package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"
	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"

	"codevolt/internal/telemetry"
)

type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
	Close() error
}

// GreptimeDBWriter archives session events and dispatch reports in GreptimeDB.
// Failed writes are returned to the caller, which logs them.
type GreptimeDBWriter struct {
	client        greptimeClient
	eventTable    string
	incidentTable string
	log           *slog.Logger
}

// NewGreptimeDBWriter connects to GreptimeDB on host:port using the given database.
func NewGreptimeDBWriter(host string, port int, database string, log *slog.Logger) (*GreptimeDBWriter, error) {
	cfg := greptime.NewConfig(host).WithPort(port).WithDatabase(database)
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("greptime client: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &GreptimeDBWriter{
		client:        client,
		eventTable:    telemetry.EventTableName,
		incidentTable: telemetry.IncidentTableName,
		log:           log,
	}, nil
}

func (w *GreptimeDBWriter) logger() *slog.Logger {
	if w.log == nil {
		return slog.Default()
	}
	return w.log
}

func jsonString(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(data)
}

// WriteEvent inserts a single event row.
func (w *GreptimeDBWriter) WriteEvent(row telemetry.EventRow) error {
	return w.WriteEvents([]telemetry.EventRow{row})
}

// WriteEvents inserts multiple event rows in one request.
func (w *GreptimeDBWriter) WriteEvents(rows []telemetry.EventRow) error {
	if len(rows) == 0 {
		return nil
	}
	tbl, err := table.New(w.eventTable)
	if err != nil {
		return err
	}
	tbl.AddTagColumn("session_id", types.STRING)
	tbl.AddTagColumn("event_type", types.STRING)
	tbl.AddFieldColumn("level", types.STRING)
	tbl.AddFieldColumn("message", types.STRING)
	tbl.AddFieldColumn("critical", types.STRING)
	tbl.AddFieldColumn("tick", types.INT64)
	tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND)

	for _, r := range rows {
		crit := r.Critical
		if crit == nil {
			crit = []string{}
		}
		if err := tbl.AddRow(r.SessionID, r.EventType, r.Level, r.Message, jsonString(crit), int64(r.Tick), r.Timestamp); err != nil {
			return err
		}
	}
	if _, err := w.client.Write(context.Background(), tbl); err != nil {
		return fmt.Errorf("greptime write %s: %w", w.eventTable, err)
	}
	w.logger().Debug("greptime wrote events", "rows", len(rows))
	return nil
}

// WriteIncident inserts a dispatch report. Critical kinds and readings are
// stored as JSON strings.
func (w *GreptimeDBWriter) WriteIncident(row telemetry.IncidentRow) error {
	tbl, err := table.New(w.incidentTable)
	if err != nil {
		return err
	}
	tbl.AddTagColumn("session_id", types.STRING)
	tbl.AddTagColumn("incident_id", types.STRING)
	tbl.AddFieldColumn("location", types.STRING)
	tbl.AddFieldColumn("critical", types.STRING)
	tbl.AddFieldColumn("readings", types.STRING)
	tbl.AddFieldColumn("service", types.STRING)
	tbl.AddFieldColumn("eta", types.STRING)
	tbl.AddFieldColumn("phase", types.STRING)
	tbl.AddFieldColumn("tick", types.INT64)
	tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND)

	if err := tbl.AddRow(row.SessionID, row.IncidentID, row.Location, jsonString(row.Critical),
		jsonString(row.Readings), row.Service, row.ETA, row.Phase, int64(row.Tick), row.Timestamp); err != nil {
		return err
	}
	if _, err := w.client.Write(context.Background(), tbl); err != nil {
		return fmt.Errorf("greptime write %s: %w", w.incidentTable, err)
	}
	w.logger().Debug("greptime wrote incident", "incident", row.IncidentID)
	return nil
}

// Close releases the client connection.
func (w *GreptimeDBWriter) Close() error {
	return w.client.Close()
}

package sim

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"codevolt/internal/telemetry"
)

type pgExecer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS codevolt_events (
  id BIGSERIAL PRIMARY KEY,
  session_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  level TEXT NOT NULL,
  message TEXT NOT NULL,
  critical JSONB NOT NULL DEFAULT '[]',
  tick BIGINT NOT NULL,
  ts TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS codevolt_incidents (
  incident_id TEXT PRIMARY KEY,
  session_id TEXT NOT NULL,
  location TEXT NOT NULL,
  critical JSONB NOT NULL,
  readings JSONB NOT NULL,
  service TEXT NOT NULL,
  eta TEXT NOT NULL,
  phase TEXT NOT NULL,
  tick BIGINT NOT NULL,
  ts TIMESTAMPTZ NOT NULL
);`

const insertEventSQL = `INSERT INTO codevolt_events
  (session_id, event_type, level, message, critical, tick, ts)
  VALUES ($1, $2, $3, $4, $5, $6, $7)`

const insertIncidentSQL = `INSERT INTO codevolt_incidents
  (incident_id, session_id, location, critical, readings, service, eta, phase, tick, ts)
  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
  ON CONFLICT (incident_id) DO NOTHING`

// PostgresWriter archives events and incidents in Postgres.
type PostgresWriter struct {
	db    pgExecer
	close func()
}

// NewPostgresWriter connects with connStr, pings and ensures the schema.
func NewPostgresWriter(ctx context.Context, connStr string) (*PostgresWriter, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create db pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}
	w := &PostgresWriter{db: pool, close: pool.Close}
	if err := w.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return w, nil
}

// EnsureSchema creates the event and incident tables when missing.
func (w *PostgresWriter) EnsureSchema(ctx context.Context) error {
	if _, err := w.db.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// WriteEvent inserts one event row.
func (w *PostgresWriter) WriteEvent(row telemetry.EventRow) error {
	crit := row.Critical
	if crit == nil {
		crit = []string{}
	}
	critJSON, err := json.Marshal(crit)
	if err != nil {
		return err
	}
	_, err = w.db.Exec(context.Background(), insertEventSQL,
		row.SessionID, row.EventType, row.Level, row.Message, critJSON, int64(row.Tick), row.Timestamp)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// WriteIncident inserts a dispatch report once per incident ID.
func (w *PostgresWriter) WriteIncident(row telemetry.IncidentRow) error {
	critJSON, err := json.Marshal(row.Critical)
	if err != nil {
		return err
	}
	readingsJSON, err := json.Marshal(row.Readings)
	if err != nil {
		return err
	}
	_, err = w.db.Exec(context.Background(), insertIncidentSQL,
		row.IncidentID, row.SessionID, row.Location, critJSON, readingsJSON,
		row.Service, row.ETA, row.Phase, int64(row.Tick), row.Timestamp)
	if err != nil {
		return fmt.Errorf("insert incident: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (w *PostgresWriter) Close() error {
	if w.close != nil {
		w.close()
	}
	return nil
}

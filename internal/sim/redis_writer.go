package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"codevolt/internal/telemetry"
)

// DefaultStateTTL expires the live state hash once a session goes quiet.
const DefaultStateTTL = 30 * time.Second

type redisClient interface {
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// RedisWriter keeps the latest session state in a hash and publishes
// snapshots, events and incidents on pub/sub channels.
type RedisWriter struct {
	client redisClient
	prefix string
	ttl    time.Duration
}

// NewRedisWriter connects to addr and verifies the connection.
func NewRedisWriter(ctx context.Context, addr, password string, db int) (*RedisWriter, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisWriter{client: client, prefix: "codevolt", ttl: DefaultStateTTL}, nil
}

func (w *RedisWriter) stateKey(session string) string {
	return fmt.Sprintf("%s:session:%s:state", w.prefix, session)
}

func (w *RedisWriter) channel(session, name string) string {
	return fmt.Sprintf("%s:session:%s:%s", w.prefix, session, name)
}

type liveMessage struct {
	State    telemetry.StateRow     `json:"state"`
	Readings []telemetry.ReadingRow `json:"readings"`
}

// WriteLive updates the state hash and publishes the snapshot.
func (w *RedisWriter) WriteLive(state telemetry.StateRow, readings []telemetry.ReadingRow) error {
	ctx := context.Background()
	stateData := map[string]interface{}{
		"demo_active":        state.DemoActive,
		"threshold_exceeded": state.ThresholdExceeded,
		"critical_count":     state.CriticalCount,
		"alert_level":        state.AlertLevel,
		"sos_state":          state.SOSState,
		"tick":               state.Tick,
		"seq":                state.Seq,
		"timestamp":          state.Timestamp.UnixMilli(),
	}
	for _, r := range readings {
		if r.Kind.Numeric() {
			stateData[string(r.Kind)] = r.Value
		} else {
			stateData[string(r.Kind)] = r.Text
		}
		stateData[string(r.Kind)+"_status"] = string(r.Status)
	}

	payload, err := json.Marshal(liveMessage{State: state, Readings: readings})
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	key := w.stateKey(state.SessionID)
	if err := w.client.HSet(ctx, key, stateData).Err(); err != nil {
		return fmt.Errorf("redis hset failed: %w", err)
	}
	if err := w.client.Expire(ctx, key, w.ttl).Err(); err != nil {
		return fmt.Errorf("redis expire failed: %w", err)
	}
	return w.client.Publish(ctx, w.channel(state.SessionID, "snapshots"), payload).Err()
}

// WriteEvent publishes a lifecycle event.
func (w *RedisWriter) WriteEvent(row telemetry.EventRow) error {
	payload, err := json.Marshal(row)
	if err != nil {
		return err
	}
	return w.client.Publish(context.Background(), w.channel(row.SessionID, "events"), payload).Err()
}

// WriteIncident publishes a dispatch report.
func (w *RedisWriter) WriteIncident(row telemetry.IncidentRow) error {
	payload, err := json.Marshal(row)
	if err != nil {
		return err
	}
	return w.client.Publish(context.Background(), w.channel(row.SessionID, "incidents"), payload).Err()
}

// Close closes the redis connection.
func (w *RedisWriter) Close() error {
	return w.client.Close()
}

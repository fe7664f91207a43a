package telemetry

import (
	"testing"
	"time"

	"codevolt/internal/alert"
	"codevolt/internal/engine"
	"codevolt/internal/sensor"
	"codevolt/internal/sos"
)

func testSnapshot() engine.Snapshot {
	specs := sensor.DefaultSpecs()
	snap := engine.Snapshot{
		Channels:  map[sensor.Kind]sensor.Channel{},
		Tick:      27,
		Seq:       30,
		Timestamp: time.Date(2024, 5, 1, 8, 0, 2, 0, time.UTC),
	}
	for _, k := range sensor.Kinds {
		snap.Channels[k] = specs[k].Channel()
	}
	snap.Channels[sensor.Gyroscope] = specs[sensor.Gyroscope].At(310)
	snap.CriticalCount = 1
	snap.ThresholdExceeded = true
	return snap
}

func TestReadings(t *testing.T) {
	gen := NewGenerator("session-1")
	rows := gen.Readings(testSnapshot())
	if len(rows) != len(sensor.Kinds) {
		t.Fatalf("expected %d rows, got %d", len(sensor.Kinds), len(rows))
	}
	for i, row := range rows {
		if row.SessionID != "session-1" || row.Kind != sensor.Kinds[i] {
			t.Errorf("row %d: %+v", i, row)
		}
		if row.Tick != 27 || row.Seq != 30 {
			t.Errorf("row %d missing tick/seq: %+v", i, row)
		}
	}
	if rows[0].Status != sensor.StatusCritical {
		t.Errorf("gyroscope row status %s", rows[0].Status)
	}
	if rows[3].Text != sensor.DefaultLocation {
		t.Errorf("gps row text %q", rows[3].Text)
	}
}

func TestStateAndEvent(t *testing.T) {
	gen := NewGenerator("session-1")
	snap := testSnapshot()
	a := alert.Evaluate(snap)
	st := gen.State(snap, a, sos.StateIdle)
	if st.AlertLevel != "caution" || st.CriticalCount != 1 || st.SOSState != "idle" {
		t.Fatalf("unexpected state row %+v", st)
	}
	ev := gen.Event(snap, EventThresholdExceeded, a.Level.String(), a.Message)
	if len(ev.Critical) != 1 || ev.Critical[0] != "gyroscope" || ev.Tick != 27 {
		t.Fatalf("unexpected event row %+v", ev)
	}
	if ev.TableName() != EventTableName {
		t.Fatalf("table name %s", ev.TableName())
	}
}

func TestIncident(t *testing.T) {
	gen := NewGenerator("session-1")
	if _, ok := gen.Incident(sos.Status{State: sos.StateIdle}); ok {
		t.Fatal("expected no incident for idle status")
	}
	inc := sos.NewIncident(testSnapshot())
	row, ok := gen.Incident(sos.Status{
		State: "transmitting", Phase: "transmitting", Service: "Ambulance Service", ETA: "8 minutes",
		Incident: &inc, Since: time.Date(2024, 5, 1, 8, 0, 15, 0, time.UTC),
	})
	if !ok {
		t.Fatal("expected incident row")
	}
	if row.IncidentID != inc.ID || row.Location != sensor.DefaultLocation || row.Service != "Ambulance Service" {
		t.Fatalf("unexpected incident row %+v", row)
	}
	if len(row.Readings) != len(sensor.Kinds) || row.Critical[0] != "gyroscope" {
		t.Fatalf("incident readings %+v", row.Readings)
	}
}

package persistence

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/MDylan95/sma-trafic/internal/scheduler"
	"github.com/MDylan95/sma-trafic/internal/vehicle"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	s, err := NewStore(db)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBegin_InsertsSimulationHeader(t *testing.T) {
	s := newTestStore(t)
	if err := s.Begin(Header{ID: "sim1", Name: "test run", Scenario: "rush_hour", Config: "{}"}); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	var name string
	if err := s.db.QueryRow(`SELECT name FROM simulations WHERE id = ?`, "sim1").Scan(&name); err != nil {
		t.Fatalf("query: %v", err)
	}
	if name != "test run" {
		t.Errorf("name = %q, want %q", name, "test run")
	}
}

func TestRun_RecordsSnapshotAndAggregates(t *testing.T) {
	s := newTestStore(t)
	if err := s.Begin(Header{ID: "sim1", Name: "test"}); err != nil {
		t.Fatalf("Begin: %v", err)
	}

	var hook scheduler.PersistenceHook = s.Run("sim1")
	if err := hook.RecordSnapshot(scheduler.Snapshot{Tick: 5, ActiveVehicles: 3}); err != nil {
		t.Fatalf("RecordSnapshot: %v", err)
	}
	if err := hook.RecordVehicleAggregate(vehicle.Stats{ID: "v1", Type: vehicle.Standard, ReachedDestination: true}); err != nil {
		t.Fatalf("RecordVehicleAggregate: %v", err)
	}
	if err := hook.RecordIntersectionAggregate("i1", 12, 4.5); err != nil {
		t.Fatalf("RecordIntersectionAggregate: %v", err)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM kpi_snapshots WHERE simulation_id = ?`, "sim1").Scan(&count); err != nil {
		t.Fatalf("query snapshots: %v", err)
	}
	if count != 1 {
		t.Errorf("kpi_snapshots count = %d, want 1", count)
	}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM vehicle_aggregates WHERE vehicle_id = ?`, "v1").Scan(&count); err != nil {
		t.Fatalf("query vehicle aggregates: %v", err)
	}
	if count != 1 {
		t.Errorf("vehicle_aggregates count = %d, want 1", count)
	}
}

func TestEnd_SetsEndedAtAndDuration(t *testing.T) {
	s := newTestStore(t)
	if err := s.Begin(Header{ID: "sim1", Name: "test"}); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if err := s.End("sim1", 3600); err != nil {
		t.Fatalf("End: %v", err)
	}

	var duration float64
	var endedAt sql.NullTime
	if err := s.db.QueryRow(`SELECT duration_seconds, ended_at FROM simulations WHERE id = ?`, "sim1").Scan(&duration, &endedAt); err != nil {
		t.Fatalf("query: %v", err)
	}
	if duration != 3600 {
		t.Errorf("duration_seconds = %v, want 3600", duration)
	}
	if !endedAt.Valid {
		t.Error("expected ended_at to be set")
	}
}

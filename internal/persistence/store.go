// Package persistence is the optional SQLite sink for a simulation run:
// a header row on start, one row per KPI snapshot, final per-vehicle
// and per-intersection aggregates, and an end timestamp on finish. A
// core simulation never depends on this package being reachable —
// every call returns an error the caller is expected to log and
// ignore, per spec.md's external-collaborator-unavailable handling.
package persistence

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/MDylan95/sma-trafic/internal/scheduler"
	"github.com/MDylan95/sma-trafic/internal/vehicle"
)

// Store persists simulation runs to SQLite.
type Store struct {
	db *sql.DB
}

// NewStore wraps an already-opened SQLite database and migrates its
// schema. Opening the database is left to the caller.
func NewStore(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate persistence schema: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS simulations (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			scenario TEXT,
			config_json TEXT,
			started_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			ended_at TIMESTAMP,
			duration_seconds REAL
		);
		CREATE TABLE IF NOT EXISTS kpi_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			simulation_id TEXT NOT NULL REFERENCES simulations(id),
			tick INTEGER,
			sim_time REAL,
			average_travel_time REAL,
			average_queue_length REAL,
			messages_routed INTEGER,
			active_vehicles INTEGER,
			vehicles_arrived INTEGER,
			average_speed REAL,
			congestion_level REAL
		);
		CREATE INDEX IF NOT EXISTS idx_kpi_snapshots_simulation
			ON kpi_snapshots(simulation_id);
		CREATE TABLE IF NOT EXISTS vehicle_aggregates (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			simulation_id TEXT NOT NULL REFERENCES simulations(id),
			vehicle_id TEXT,
			vehicle_type TEXT,
			distance_traveled REAL,
			travel_time REAL,
			stops_count INTEGER,
			route_changes INTEGER,
			reached_destination BOOLEAN
		);
		CREATE TABLE IF NOT EXISTS intersection_aggregates (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			simulation_id TEXT NOT NULL REFERENCES simulations(id),
			intersection_id TEXT,
			total_vehicles_processed INTEGER,
			average_waiting_time REAL
		);
	`)
	return err
}

// Header is the simulation-start record: {id, name, scenario, config}
// per spec.md §6.
type Header struct {
	ID       string
	Name     string
	Scenario string
	Config   string // opaque, caller-serialized (e.g. JSON of the loaded config)
}

// Begin records a simulation header on start.
func (s *Store) Begin(h Header) error {
	_, err := s.db.Exec(
		`INSERT INTO simulations (id, name, scenario, config_json) VALUES (?, ?, ?, ?)`,
		h.ID, h.Name, h.Scenario, h.Config,
	)
	return err
}

// run binds a Store to one simulation id, satisfying
// scheduler.PersistenceHook for that run.
type run struct {
	store *Store
	id    string
}

// Run returns a scheduler.PersistenceHook scoped to the given
// simulation id, for passing directly into scheduler.New.
func (s *Store) Run(simulationID string) scheduler.PersistenceHook {
	return &run{store: s, id: simulationID}
}

func (r *run) RecordSnapshot(snap scheduler.Snapshot) error {
	_, err := r.store.db.Exec(
		`INSERT INTO kpi_snapshots
			(simulation_id, tick, sim_time, average_travel_time, average_queue_length,
			 messages_routed, active_vehicles, vehicles_arrived, average_speed, congestion_level)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.id, snap.Tick, snap.SimTime, snap.AverageTravelTime, snap.AverageQueueLength,
		snap.MessagesRouted, snap.ActiveVehicles, snap.VehiclesArrived, snap.AverageSpeed, snap.CongestionLevel,
	)
	return err
}

func (r *run) RecordVehicleAggregate(st vehicle.Stats) error {
	_, err := r.store.db.Exec(
		`INSERT INTO vehicle_aggregates
			(simulation_id, vehicle_id, vehicle_type, distance_traveled, travel_time,
			 stops_count, route_changes, reached_destination)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.id, st.ID, string(st.Type), st.DistanceTraveled, st.TravelTime,
		st.StopsCount, st.RouteChanges, st.ReachedDestination,
	)
	return err
}

func (r *run) RecordIntersectionAggregate(id string, processed int, avgWait float64) error {
	_, err := r.store.db.Exec(
		`INSERT INTO intersection_aggregates
			(simulation_id, intersection_id, total_vehicles_processed, average_waiting_time)
		 VALUES (?, ?, ?, ?)`,
		r.id, id, processed, avgWait,
	)
	return err
}

// End marks a simulation's end time and total elapsed simulated
// duration.
func (s *Store) End(simulationID string, durationSeconds float64) error {
	_, err := s.db.Exec(
		`UPDATE simulations SET ended_at = ?, duration_seconds = ? WHERE id = ?`,
		time.Now().UTC(), durationSeconds, simulationID,
	)
	return err
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

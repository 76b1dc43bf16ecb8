// Package scheduler drives a simulation one tick at a time: it
// activates every agent in a seeded random order, routes the messages
// they queued, harvests vehicles that have arrived, runs scenario
// hooks, and periodically snapshots run-wide KPIs.
package scheduler

import "github.com/MDylan95/sma-trafic/internal/vehicle"

// Snapshot is one KPI sample, taken every SnapshotInterval ticks.
type Snapshot struct {
	Tick                int
	SimTime             float64
	AverageTravelTime   float64
	AverageQueueLength  float64
	MessagesRouted      int
	ActiveVehicles      int
	VehiclesArrived     int
	AverageSpeed        float64
	CongestionLevel     float64
}

// PersistenceHook receives KPI snapshots and final per-agent
// aggregates. A nil hook, or any individual call returning an error, is
// non-fatal: persistence is an optional side channel, never load-bearing
// for the simulation itself.
type PersistenceHook interface {
	RecordSnapshot(Snapshot) error
	RecordVehicleAggregate(vehicle.Stats) error
	RecordIntersectionAggregate(id string, processed int, avgWait float64) error
}

// MicrosimHook mirrors simulation state to an external collaborator
// (e.g. a SUMO bridge) once per tick. Like PersistenceHook, failures are
// logged and ignored — the core simulation never depends on it.
type MicrosimHook interface {
	Step(tick int, simTime float64) error
}

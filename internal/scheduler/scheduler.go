package scheduler

import (
	"log/slog"
	"sync"

	"github.com/MDylan95/sma-trafic/internal/scenario"
	"github.com/MDylan95/sma-trafic/internal/world"
)

// DefaultSnapshotInterval is how many ticks elapse between KPI
// snapshots when Scheduler.SnapshotInterval is left at zero.
const DefaultSnapshotInterval = 10

// Scheduler runs a World forward one tick at a time. It owns no agent
// state itself — World does — only the activation order, the hook
// wiring, and the cumulative counters a data collector needs.
type Scheduler struct {
	logger *slog.Logger

	SnapshotInterval int
	Scenarios        []scenario.Scenario
	Persistence      PersistenceHook
	Microsim         MicrosimHook

	mu              sync.Mutex
	tick            int
	vehiclesArrived int
	totalTravelTime float64
	snapshots       []Snapshot
	running         bool
}

// New creates a scheduler. Scenarios are run in the order given; a nil
// PersistenceHook or MicrosimHook disables that side channel.
func New(logger *slog.Logger, scenarios []scenario.Scenario, persistence PersistenceHook, microsim MicrosimHook) *Scheduler {
	return &Scheduler{
		logger:           logger,
		SnapshotInterval: DefaultSnapshotInterval,
		Scenarios:        scenarios,
		Persistence:      persistence,
		Microsim:         microsim,
	}
}

// Setup runs every scenario's one-time setup hook against w. Call once
// before the first Tick.
func (s *Scheduler) Setup(w *world.World) {
	for _, sc := range s.Scenarios {
		sc.Setup(w)
	}
}

// Tick advances the world by one time step: activate every agent in a
// random order seeded from w.RNG, route the outboxes that order
// produced, harvest arrivals, run scenario hooks, then (every
// SnapshotInterval ticks) record a KPI snapshot.
func (s *Scheduler) Tick(w *world.World) {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	order := w.AgentIDs()
	w.RNG.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	for _, id := range order {
		if agent, ok := w.Agent(id); ok {
			agent.Step()
		}
	}

	routeOrder := append(append([]string{}, order...), world.SystemAgentID)
	w.Bus.Route(routeOrder, w.BusPositioner())

	arrived := w.HarvestArrivals()
	s.mu.Lock()
	s.vehiclesArrived += len(arrived)
	for _, a := range arrived {
		s.totalTravelTime += a.TravelTime
	}
	s.mu.Unlock()

	if s.Persistence != nil {
		for _, a := range arrived {
			if err := s.Persistence.RecordVehicleAggregate(a); err != nil {
				s.logf("persist vehicle aggregate failed", "id", a.ID, "error", err)
			}
		}
	}

	w.Now += w.TimeStep
	simTime := w.Now

	for _, sc := range s.Scenarios {
		sc.Step(w, s.tick, simTime)
	}

	if s.Microsim != nil {
		if err := s.Microsim.Step(s.tick, simTime); err != nil {
			s.logf("microsim step failed", "error", err)
		}
	}

	interval := s.SnapshotInterval
	if interval <= 0 {
		interval = DefaultSnapshotInterval
	}
	if s.tick%interval == 0 {
		snap := s.snapshot(w, simTime)
		s.mu.Lock()
		s.snapshots = append(s.snapshots, snap)
		s.mu.Unlock()
		if s.Persistence != nil {
			if err := s.Persistence.RecordSnapshot(snap); err != nil {
				s.logf("persist snapshot failed", "tick", s.tick, "error", err)
			}
		}
	}

	s.tick++
}

// Run advances the world steps ticks, calling Setup first.
func (s *Scheduler) Run(w *world.World, steps int) {
	s.Setup(w)
	for i := 0; i < steps; i++ {
		s.Tick(w)
	}
}

func (s *Scheduler) snapshot(w *world.World, simTime float64) Snapshot {
	active := w.ActiveVehicles()

	var travelTotal, speedTotal float64
	for _, v := range active {
		travelTotal += v.TravelTime
		speedTotal += v.Speed
	}
	avgTravel, avgSpeed := 0.0, 0.0
	if len(active) > 0 {
		avgTravel = travelTotal / float64(len(active))
		avgSpeed = speedTotal / float64(len(active))
	}

	intersections := w.ActiveIntersections()
	avgQueue := 0.0
	if len(intersections) > 0 {
		totalQueue := 0
		for _, ix := range intersections {
			for _, q := range ix.QueueLengths {
				totalQueue += q
			}
		}
		avgQueue = float64(totalQueue) / float64(len(intersections))
	}

	maxSpeed := 0.0
	for _, v := range active {
		if v.MaxSpeed > maxSpeed {
			maxSpeed = v.MaxSpeed
		}
	}
	congestion := 0.0
	if maxSpeed > 0 {
		congestion = 1.0 - avgSpeed/maxSpeed
	}

	s.mu.Lock()
	arrived := s.vehiclesArrived
	s.mu.Unlock()

	return Snapshot{
		Tick:               s.tick,
		SimTime:            simTime,
		AverageTravelTime:  avgTravel,
		AverageQueueLength: avgQueue,
		MessagesRouted:     w.Bus.Stats().Delivered,
		ActiveVehicles:     len(active),
		VehiclesArrived:    arrived,
		AverageSpeed:       avgSpeed,
		CongestionLevel:    congestion,
	}
}

// Finish persists final per-agent aggregates for every intersection
// still in the world. Call once after the last Tick.
func (s *Scheduler) Finish(w *world.World) {
	if s.Persistence == nil {
		return
	}
	for _, ix := range w.ActiveIntersections() {
		st := ix.Stats()
		if err := s.Persistence.RecordIntersectionAggregate(st.ID, st.TotalVehiclesProcessed, st.AverageWaitingTime); err != nil {
			s.logf("persist intersection aggregate failed", "id", ix.ID, "error", err)
		}
	}
}

// Stats returns scheduler-level counters for an observability snapshot.
func (s *Scheduler) Stats() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]any{
		"running":          s.running,
		"tick":             s.tick,
		"vehicles_arrived": s.vehiclesArrived,
		"snapshots_taken":  len(s.snapshots),
	}
}

// Snapshots returns every KPI snapshot recorded so far.
func (s *Scheduler) Snapshots() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Snapshot, len(s.snapshots))
	copy(out, s.snapshots)
	return out
}

func (s *Scheduler) logf(msg string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Warn(msg, args...)
}

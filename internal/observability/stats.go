package observability

import (
	"github.com/MDylan95/sma-trafic/internal/scheduler"
	"github.com/MDylan95/sma-trafic/internal/world"
)

// BusStats is the message bus slice of the observability surface.
type BusStats struct {
	TotalMessages          int            `json:"total_messages"`
	MessagesByPerformative map[string]int `json:"messages_by_performative"`
}

// IntersectionStats is one intersection's slice of the observability
// surface.
type IntersectionStats struct {
	ID                     string  `json:"id"`
	TotalVehiclesProcessed int     `json:"total_vehicles_processed"`
	AverageWaitingTime     float64 `json:"avg_waiting_time"`
	PhaseChanges           int     `json:"phase_changes"`
	CoordinationMessages   int     `json:"coordination_messages"`
	GreenWaveActive        bool    `json:"green_wave_active"`
}

// CrisisStats is the crisis manager's slice of the observability
// surface.
type CrisisStats struct {
	Interventions     int `json:"interventions"`
	GreenWavesCreated int `json:"green_waves_created"`
	ActiveIncidents   int `json:"active_incidents"`
}

// RouterStats is the router's slice of the observability surface.
type RouterStats struct {
	PathsCalculated int     `json:"paths_calculated"`
	CacheHits       int     `json:"cache_hits"`
	CacheMisses     int     `json:"cache_misses"`
	HitRate         float64 `json:"hit_rate"`
}

// Snapshot is the full GET /stats response: the spec.md §6
// observability surface plus the scheduler's most recent KPI sample.
type Snapshot struct {
	Bus           BusStats            `json:"bus"`
	Intersections []IntersectionStats `json:"intersections"`
	Crisis        *CrisisStats        `json:"crisis,omitempty"`
	Router        RouterStats         `json:"router"`
	LatestKPI     *scheduler.Snapshot `json:"latest_kpi,omitempty"`
}

// buildSnapshot gathers the current counters from w and sched. It is
// read-only: called from an HTTP handler goroutine against state the
// scheduler only mutates between ticks (Design Notes §5,
// "observation monotonicity").
func buildSnapshot(w *world.World, sched *scheduler.Scheduler) Snapshot {
	busStats := w.Bus.Stats()
	byPerf := make(map[string]int, len(busStats.ByPerformative))
	for perf, count := range busStats.ByPerformative {
		byPerf[string(perf)] = count
	}

	intersections := w.ActiveIntersections()
	ixStats := make([]IntersectionStats, 0, len(intersections))
	for _, ix := range intersections {
		s := ix.Stats()
		ixStats = append(ixStats, IntersectionStats{
			ID:                     ix.ID,
			TotalVehiclesProcessed: s.TotalVehiclesProcessed,
			AverageWaitingTime:     s.AverageWaitingTime,
			PhaseChanges:           s.PhaseChanges,
			CoordinationMessages:   s.CoordinationMessages,
			GreenWaveActive:        s.GreenWaveActive,
		})
	}

	snap := Snapshot{
		Bus: BusStats{
			TotalMessages:          busStats.Delivered,
			MessagesByPerformative: byPerf,
		},
		Intersections: ixStats,
		Router:        routerStats(w),
	}

	if cs, ok := w.CrisisStats(); ok {
		snap.Crisis = &CrisisStats{
			Interventions:     cs.InterventionsCount,
			GreenWavesCreated: cs.GreenWavesCreated,
			ActiveIncidents:   cs.ActiveIncidents,
		}
	}

	if sched != nil {
		snaps := sched.Snapshots()
		if n := len(snaps); n > 0 {
			latest := snaps[n-1]
			snap.LatestKPI = &latest
		}
	}

	return snap
}

func routerStats(w *world.World) RouterStats {
	s := w.Router.Stats()
	return RouterStats{
		PathsCalculated: s.PathsComputed,
		CacheHits:       s.Hits,
		CacheMisses:     s.Misses,
		HitRate:         s.HitRatePercent,
	}
}

package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/MDylan95/sma-trafic/internal/config"
	"github.com/MDylan95/sma-trafic/internal/crisis"
	"github.com/MDylan95/sma-trafic/internal/intersection"
	"github.com/MDylan95/sma-trafic/internal/messaging"
	"github.com/MDylan95/sma-trafic/internal/microsim"
	"github.com/MDylan95/sma-trafic/internal/observability"
	"github.com/MDylan95/sma-trafic/internal/persistence"
	"github.com/MDylan95/sma-trafic/internal/roadnet"
	"github.com/MDylan95/sma-trafic/internal/routing"
	"github.com/MDylan95/sma-trafic/internal/scenario"
	"github.com/MDylan95/sma-trafic/internal/scheduler"
	"github.com/MDylan95/sma-trafic/internal/vehicle"
	"github.com/MDylan95/sma-trafic/internal/world"

	_ "github.com/mattn/go-sqlite3"
)

// runRun loads configPath, builds the simulation, and drives it to
// completion (or until a shutdown signal arrives).
func runRun(logger *slog.Logger, configPath string) error {
	cfgPath, err := config.FindConfig(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config %s: %w", cfgPath, err)
	}

	if cfg.LogLevel != "" {
		level, err := config.ParseLogLevel(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid log_level in config: %w", err)
		}
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: config.ReplaceLogLevelNames,
		}))
	}

	logger.Info("config loaded",
		"path", cfgPath,
		"num_vehicles", cfg.NumVehicles,
		"duration", cfg.Duration,
		"routing", cfg.Algorithms.Routing.Algorithm,
		"traffic_light", cfg.Algorithms.TrafficLight.Algorithm,
	)

	if cfg.DataDir != "" {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return fmt.Errorf("create data directory %s: %w", cfg.DataDir, err)
		}
	}

	w, scenarios := buildWorld(cfg, logger)

	var store *persistence.Store
	var persistHook scheduler.PersistenceHook
	simulationID := fmt.Sprintf("run_%d", time.Now().UnixNano())
	if cfg.Persistence.Enabled {
		db, err := sql.Open("sqlite3", cfg.Persistence.Path)
		if err != nil {
			return fmt.Errorf("open persistence database %s: %w", cfg.Persistence.Path, err)
		}
		defer db.Close()

		store, err = persistence.NewStore(db)
		if err != nil {
			return fmt.Errorf("migrate persistence schema: %w", err)
		}
		defer store.Close()

		if err := store.Begin(persistence.Header{ID: simulationID, Name: "trafficsim"}); err != nil {
			logger.Error("persistence begin failed", "error", err)
		} else {
			persistHook = store.Run(simulationID)
			logger.Info("persistence enabled", "path", cfg.Persistence.Path, "simulation_id", simulationID)
		}
	}

	var pub *microsim.Publisher
	var microsimHook scheduler.MicrosimHook
	if cfg.Microsim.Enabled {
		pub = microsim.New(cfg.Microsim, w, logger)
		microsimHook = pub
	}

	sched := scheduler.New(logger, scenarios, persistHook, microsimHook)

	var obsServer *observability.Server
	if cfg.Observability.Enabled {
		obsServer = observability.NewServer(cfg.Observability.Address, cfg.Observability.Port, w, sched, logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()
	}()

	if pub != nil {
		go func() {
			if err := pub.Start(ctx); err != nil {
				logger.Error("microsim publisher failed to start", "error", err)
			}
		}()
		defer pub.Stop(context.Background())
	}

	if obsServer != nil {
		go func() {
			if err := obsServer.Start(ctx); err != nil {
				logger.Error("observability server failed", "error", err)
			}
		}()
		defer obsServer.Shutdown(context.Background())
	}

	logger.Info("starting simulation", "ticks", cfg.Ticks(), "time_step", cfg.TimeStep)
	runTicks(ctx, logger, w, sched, obsServer, cfg.Ticks())

	if store != nil && persistHook != nil {
		for _, ix := range w.ActiveIntersections() {
			st := ix.Stats()
			if err := persistHook.RecordIntersectionAggregate(ix.ID, st.TotalVehiclesProcessed, st.AverageWaitingTime); err != nil {
				logger.Error("persist intersection aggregate failed", "id", ix.ID, "error", err)
			}
		}
		if err := store.End(simulationID, w.Now); err != nil {
			logger.Error("persistence end failed", "error", err)
		}
	}

	logger.Info("simulation finished", "ticks_run", len(sched.Snapshots())*sched.SnapshotInterval)
	return nil
}

// runTicks drives sched one tick at a time, restoring network blockages
// each step and pushing newly produced KPI snapshots to obs, until
// steps ticks have run or ctx is cancelled.
func runTicks(ctx context.Context, logger *slog.Logger, w *world.World, sched *scheduler.Scheduler, obs *observability.Server, steps int) {
	sched.Setup(w)
	lastPublished := 0
	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			logger.Info("simulation interrupted", "tick", i)
			return
		default:
		}

		sched.Tick(w)
		w.Network.Tick(w.Now)

		if obs != nil {
			if snaps := sched.Snapshots(); len(snaps) > lastPublished {
				obs.Publish(snaps[len(snaps)-1])
				lastPublished = len(snaps)
			}
		}
	}
}

// buildWorld constructs the road network, router, message bus, initial
// agent population and scenario set described by cfg.
func buildWorld(cfg *config.Config, logger *slog.Logger) (*world.World, []scenario.Scenario) {
	net := roadnet.New()
	net.BuildGrid(cfg.Environment.Width, cfg.Environment.Height, cfg.Environment.CellSize)

	router := routing.New(net, routing.Algorithm(cfg.Algorithms.Routing.Algorithm), cfg.Algorithms.Routing.CacheSize)
	bus := messaging.New(0)

	w := world.New(net, router, bus, cfg.TimeStep, cfg.RandomSeed, logger)

	useQLearning := cfg.Algorithms.TrafficLight.Algorithm == config.QLearning
	nodes := net.Nodes()
	for _, n := range nodes {
		id := "intersection_" + n.ID
		mailbox := messaging.NewMailbox(id, 0)
		ix := intersection.New(id, n.Position, intersection.AllDirections, cfg.TimeStep, useQLearning, w, mailbox, logger, w.RNG)
		w.AddIntersection(ix)
	}
	logger.Info("intersections created", "count", len(nodes))

	crisisMailbox := messaging.NewMailbox("crisis_manager", 0)
	cm := crisis.New("crisis_manager", cfg.TimeStep, w, crisisMailbox, logger)
	cm.Position = roadnet.Point{X: cfg.Environment.Width / 2, Y: cfg.Environment.Height / 2}
	w.SetCrisisManager(cm)

	createInitialVehicles(w, cfg, net, logger)

	scenarios := buildScenarios(cfg)
	return w, scenarios
}

// createInitialVehicles seeds cfg.NumVehicles vehicles with random
// origins/destinations on net, using the type distribution original to
// this simulation (roughly 75% standard, 10% bus, 5% each emergency
// type).
func createInitialVehicles(w *world.World, cfg *config.Config, net *roadnet.Network, logger *slog.Logger) {
	nodes := net.Nodes()
	if len(nodes) == 0 {
		return
	}
	rng := rand.New(rand.NewSource(cfg.RandomSeed))
	counts := map[vehicle.Type]int{}
	for i := 0; i < cfg.NumVehicles; i++ {
		origin := nodes[rng.Intn(len(nodes))].Position
		destination := nodes[rng.Intn(len(nodes))].Position
		vtype := sampleInitialVehicleType(rng)
		counts[vtype]++

		id := fmt.Sprintf("vehicle_%d", i)
		mailbox := messaging.NewMailbox(id, 0)
		v := vehicle.New(id, vtype, origin, destination, cfg.TimeStep, w, mailbox, logger)
		w.AddVehicle(v)
	}
	logger.Info("initial vehicles created", "count", cfg.NumVehicles, "by_type", counts)
}

// sampleInitialVehicleType draws a vehicle type from a realistic mix:
// 70% standard, 10% bus, 5% ambulance, 5% fire, 5% police, and a final
// 5% standard.
func sampleInitialVehicleType(rng *rand.Rand) vehicle.Type {
	r := rng.Float64()
	switch {
	case r < 0.70:
		return vehicle.Standard
	case r < 0.80:
		return vehicle.Bus
	case r < 0.85:
		return vehicle.Ambulance
	case r < 0.90:
		return vehicle.Fire
	case r < 0.95:
		return vehicle.Police
	default:
		return vehicle.Standard
	}
}

// buildScenarios turns cfg.Scenarios into running Scenario instances. A
// scenario whose zones map has a "corridor" key is treated as a road
// closure (scenario.Incident); anything else is treated as a demand
// generator (scenario.RushHour) with zones split by their
// "origin_"/"destination_" key prefix.
func buildScenarios(cfg *config.Config) []scenario.Scenario {
	out := make([]scenario.Scenario, 0, len(cfg.Scenarios))
	for name, sc := range cfg.Scenarios {
		if corridor, ok := sc.Zones["corridor"]; ok {
			out = append(out, buildIncident(name, sc, corridor, cfg.Environment))
			continue
		}
		out = append(out, buildRushHour(name, sc, cfg))
	}
	return out
}

func buildIncident(name string, sc config.ScenarioConfig, corridor string, env config.EnvironmentConfig) *scenario.Incident {
	from := roadnet.Point{X: 0, Y: env.Height / 2}
	to := roadnet.Point{X: env.Width, Y: env.Height / 2}
	return scenario.NewIncident(name, sc.StartTime, sc.Duration, corridor, corridor+"_alt", from, to)
}

func buildRushHour(name string, sc config.ScenarioConfig, cfg *config.Config) *scenario.RushHour {
	var origins, destinations []scenario.Zone
	for key, box := range sc.Zones {
		zone, err := parseZone(key, box)
		if err != nil {
			continue
		}
		switch {
		case strings.HasPrefix(key, "origin"):
			origins = append(origins, zone)
		case strings.HasPrefix(key, "destination"):
			destinations = append(destinations, zone)
		}
	}
	if len(origins) == 0 {
		origins = []scenario.Zone{{Name: "default_origin", Weight: 1, Min: roadnet.Point{}, Max: roadnet.Point{X: cfg.Environment.Width, Y: cfg.Environment.Height}}}
	}
	if len(destinations) == 0 {
		destinations = []scenario.Zone{{Name: "default_destination", Weight: 1, Min: roadnet.Point{}, Max: roadnet.Point{X: cfg.Environment.Width, Y: cfg.Environment.Height}}}
	}

	baseRate := 2 * float64(cfg.NumVehicles) / sc.Duration
	return scenario.NewRushHour(name, sc.StartTime, sc.Duration, baseRate, origins, destinations)
}

// parseZone parses a "x1,y1,x2,y2" bounding box into a Zone with unit
// weight.
func parseZone(name, box string) (scenario.Zone, error) {
	parts := strings.Split(box, ",")
	if len(parts) != 4 {
		return scenario.Zone{}, fmt.Errorf("zone %q: expected \"x1,y1,x2,y2\", got %q", name, box)
	}
	coords := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return scenario.Zone{}, fmt.Errorf("zone %q: %w", name, err)
		}
		coords[i] = v
	}
	return scenario.Zone{
		Name:   name,
		Weight: 1,
		Min:    roadnet.Point{X: coords[0], Y: coords[1]},
		Max:    roadnet.Point{X: coords[2], Y: coords[3]},
	}, nil
}

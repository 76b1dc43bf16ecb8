package scenario

import (
	"fmt"
	"math/rand"

	"github.com/MDylan95/sma-trafic/internal/messaging"
	"github.com/MDylan95/sma-trafic/internal/vehicle"
	"github.com/MDylan95/sma-trafic/internal/world"
)

// RushHour generates vehicles at a rate that rises, peaks, and falls
// across its window — a bell curve over [StartTime, StartTime+Duration]
// rather than a flat arrival rate — sampling origins and destinations
// from weighted zones (e.g. outlying residential districts feeding a
// central business district).
type RushHour struct {
	ScenarioName     string
	StartTime        float64
	Duration         float64
	BaseRate         float64 // vehicles/second at peak, before time_step scaling
	OriginZones      []Zone
	DestinationZones []Zone

	vehiclesCreated int
}

// NewRushHour creates a rush-hour vehicle-generation scenario.
func NewRushHour(name string, startTime, duration, baseRate float64, origins, destinations []Zone) *RushHour {
	return &RushHour{
		ScenarioName:     name,
		StartTime:        startTime,
		Duration:         duration,
		BaseRate:         baseRate,
		OriginZones:      origins,
		DestinationZones: destinations,
	}
}

func (s *RushHour) Name() string { return s.ScenarioName }

// Setup is a no-op; rush hour has nothing to prepare beyond the
// zones and rate already configured on construction.
func (s *RushHour) Setup(w *world.World) {}

// Step injects at most one vehicle per tick, biased toward the window's
// middle by a trapezoidal rate curve: a linear rise over the first
// third, a flat peak, and a linear fall over the last third.
func (s *RushHour) Step(w *world.World, tick int, simTime float64) {
	if !s.shouldGenerate(simTime, w.TimeStep, w.RNG) {
		return
	}

	origin := samplePosition(s.OriginZones, w.RNG)
	destination := samplePosition(s.DestinationZones, w.RNG)
	vtype := sampleRushHourVehicleType(w.RNG)

	id := fmt.Sprintf("%s_vehicle_%d", s.ScenarioName, s.vehiclesCreated)
	mailbox := messaging.NewMailbox(id, 0)
	v := vehicle.New(id, vtype, origin, destination, w.TimeStep, w, mailbox, nil)
	w.AddVehicle(v)
	s.vehiclesCreated++
}

func (s *RushHour) shouldGenerate(simTime, timeStep float64, rng *rand.Rand) bool {
	elapsed := simTime - s.StartTime
	if elapsed < 0 || elapsed > s.Duration || s.Duration <= 0 {
		return false
	}

	progress := elapsed / s.Duration
	var rateMultiplier float64
	switch {
	case progress < 0.33:
		rateMultiplier = progress / 0.33
	case progress < 0.66:
		rateMultiplier = 1.0
	default:
		rateMultiplier = (1.0 - progress) / 0.34
	}

	adjustedRate := s.BaseRate * rateMultiplier * timeStep
	return rng.Float64() < adjustedRate
}

func sampleRushHourVehicleType(rng *rand.Rand) vehicle.Type {
	r := rng.Float64()
	switch {
	case r < 0.80:
		return vehicle.Standard
	case r < 0.95:
		return vehicle.Bus
	case r < 0.97:
		return vehicle.Ambulance
	case r < 0.99:
		return vehicle.Fire
	default:
		return vehicle.Police
	}
}

// Statistics reports how many vehicles this scenario has injected so
// far, and the zones it draws from.
func (s *RushHour) Statistics() map[string]any {
	origins := make([]string, len(s.OriginZones))
	for i, z := range s.OriginZones {
		origins[i] = z.Name
	}
	destinations := make([]string, len(s.DestinationZones))
	for i, z := range s.DestinationZones {
		destinations[i] = z.Name
	}
	return map[string]any{
		"name":              s.ScenarioName,
		"vehicles_created":  s.vehiclesCreated,
		"generation_rate":   s.BaseRate,
		"origin_zones":      origins,
		"destination_zones": destinations,
	}
}

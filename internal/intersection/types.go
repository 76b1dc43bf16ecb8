// Package intersection implements the traffic-light intersection
// agent: phase control via Max-Pressure or Q-Learning, green-wave
// coordination between neighboring intersections, emergency
// pre-emption, and a Contract-Net contractor role for priority
// delegation. It drives the same bdi.Core cycle as internal/vehicle.
package intersection

import "github.com/MDylan95/sma-trafic/internal/roadnet"

// LightState is one traffic signal's current aspect.
type LightState string

const (
	Red    LightState = "red"
	Yellow LightState = "yellow"
	Green  LightState = "green"
)

// Direction names one of the four approaches to an intersection.
type Direction string

const (
	North Direction = "north"
	South Direction = "south"
	East  Direction = "east"
	West  Direction = "west"
)

// Phase groups the directions that share a green at the same time.
// The simulator only models the two-phase NS/EW cycle; Non-goals
// exclude protected left turns and pedestrian phases.
type Phase string

const (
	PhaseNS Phase = "NS"
	PhaseEW Phase = "EW"
)

// AllDirections is the default four-way approach set.
var AllDirections = []Direction{North, South, East, West}

// phaseOf reports which phase a direction belongs to.
func phaseOf(d Direction) Phase {
	if d == North || d == South {
		return PhaseNS
	}
	return PhaseEW
}

// directionsOf returns the directions belonging to phase p, restricted
// to the intersection's configured directions.
func directionsOf(p Phase, directions []Direction) []Direction {
	var out []Direction
	for _, d := range directions {
		if phaseOf(d) == p {
			out = append(out, d)
		}
	}
	return out
}

// VehicleSnapshot is the minimal view an intersection needs of a
// nearby vehicle to classify it into an approach queue.
type VehicleSnapshot struct {
	ID       string
	Position roadnet.Point
}

// Environment is the subset of the simulated world an intersection
// needs: the vehicles currently near it, and the position of another
// agent. Green-wave travel time is estimated from the position a
// neighbor reports in its own neighbor_state message, not from Position.
type Environment interface {
	// VehiclesNear returns vehicles within radius of pos.
	VehiclesNear(pos roadnet.Point, radius float64) []VehicleSnapshot
	// Position reports the world position of an agent.
	Position(agentID string) (roadnet.Point, bool)
}

// NeighborState is what one intersection tells its neighbors about
// itself, used to anticipate incoming flow and schedule a green wave.
type NeighborState struct {
	Phase           Phase
	PhaseTimerLeft  float64
	QueueLengths    map[Direction]int
	OutflowEstimate float64
	Position        roadnet.Point
	Timestamp       float64
}

const (
	// detectionRadius is how close a vehicle must be to be counted as
	// queued at this intersection.
	detectionRadius = 50.0

	minGreenTime     = 15.0
	maxGreenTime      = 90.0
	defaultGreenTime  = 30.0
	yellowTime        = 3.0
	congestionThreshold = 10

	neighborSyncInterval = 10.0
	maxNeighborStateAge  = 30.0

	pressureChangeThreshold = 5.0
	lowPressureThreshold    = 2.0

	saturationFlowPerHour = 1800.0 // vehicles/hour/lane
	greenWaveSpeed        = 8.33   // m/s, ~30 km/h urban travel assumption

	// Q-learning hyperparameters, named to match the alpha/gamma/epsilon
	// convention used by the tabular reinforcement learner this is
	// grounded on.
	learningRate     = 0.1
	discountFactor   = 0.9
	initialEpsilon   = 0.1
	epsilonDecay     = 0.995
	epsilonMin       = 0.01

	queueDiscretizeBucket = 3
	queueDiscretizeMax    = 5

	availabilityThreshold = 0.3
)

// qAction is one of the two actions available to the Q-Learning phase
// policy.
type qAction string

const (
	actionChange qAction = "change"
	actionKeep   qAction = "keep"
)

// qValues holds the learned value of each action in a given state.
type qValues map[qAction]float64

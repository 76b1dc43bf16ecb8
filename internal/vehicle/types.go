// Package vehicle implements the vehicle agent: kinematic stepping
// along a route, congestion-aware deliberation, and reroute requests
// driven by the BDI core in internal/bdi.
package vehicle

import "github.com/MDylan95/sma-trafic/internal/roadnet"

// Type identifies the kind of vehicle, which determines its top speed
// and its standing in emergency pre-emption decisions.
type Type string

const (
	Standard  Type = "standard"
	Ambulance Type = "ambulance"
	Police    Type = "police"
	Fire      Type = "fire"
	Bus       Type = "bus_sotra"
)

// DefaultMaxSpeed returns the top speed, in meters/second, for a
// vehicle of the given type.
func DefaultMaxSpeed(t Type) float64 {
	switch t {
	case Ambulance, Police:
		return 22.22
	case Fire:
		return 19.44
	case Bus:
		return 11.11
	default:
		return 13.89
	}
}

// IsEmergency reports whether vehicles of this type are eligible for
// intersection pre-emption.
func IsEmergency(t Type) bool {
	switch t {
	case Ambulance, Police, Fire:
		return true
	default:
		return false
	}
}

// Neighbor is a nearby vehicle as perceived by another vehicle.
type Neighbor struct {
	ID       string
	Position roadnet.Point
	Speed    float64
}

// Environment is the subset of the simulated world a vehicle needs:
// finding nearby traffic and computing a route to a destination.
type Environment interface {
	// NearbyVehicles returns active vehicles other than excludeID
	// within radius of pos.
	NearbyVehicles(pos roadnet.Point, radius float64, excludeID string) []Neighbor
	// FindRoute computes a path of waypoints from start to end. ok is
	// false if no path exists.
	FindRoute(start, end roadnet.Point) (path []roadnet.Point, ok bool)
}

const (
	// nearbyRadius is how far a vehicle looks for neighboring traffic.
	nearbyRadius = 100.0
	// nearbyCacheInterval throttles the nearby-vehicle scan, which
	// would otherwise run every tick for every vehicle.
	nearbyCacheInterval = 10.0
	// arrivalThreshold is how close a vehicle must be to its
	// destination to be considered arrived.
	arrivalThreshold = 10.0
	// waypointThreshold is how close a vehicle must be to its current
	// waypoint before advancing to the next one.
	waypointThreshold = 5.0
	// aheadThreshold is the distance within which a slower vehicle
	// ahead forces a deceleration.
	aheadThreshold = 20.0
	// vehicleAheadSlowdown is ignoring the lead vehicle and halving
	// speed, a coarse car-following model.
	vehicleAheadSlowdown = 0.5

	// routeRecalculationInterval is the minimum time between periodic
	// reroute checks; high congestion or an incident report bypasses it.
	routeRecalculationInterval = 30.0
	// highCongestionThreshold is the congestion index above which a
	// vehicle reroutes immediately, ignoring its cooldown.
	highCongestionThreshold = 0.7
	// congestionSaturation is the neighbor count treated as maximum
	// (index 1.0) congestion when scoring the local area.
	congestionSaturation = 15.0

	denseThreshold     = 5
	congestedThreshold = 10

	defaultAcceleration = 2.0 // m/s^2
	defaultDeceleration = 4.0 // m/s^2
)

// TrafficState categorizes the congestion a vehicle perceives around
// itself.
type TrafficState string

const (
	TrafficFree      TrafficState = "free"
	TrafficDense     TrafficState = "dense"
	TrafficCongested TrafficState = "congested"
)

func assessTrafficState(numNearby int) TrafficState {
	switch {
	case numNearby > congestedThreshold:
		return TrafficCongested
	case numNearby > denseThreshold:
		return TrafficDense
	default:
		return TrafficFree
	}
}

// Package bdi implements the Belief-Desire-Intention agent core shared
// by vehicles, intersections, and the crisis manager: a per-tick
// perceive/generate-desires/deliberate/execute cycle operating over a
// belief store, a desire queue, and a set of in-flight intentions.
package bdi

// BeliefType names a category of belief an agent can hold.
type BeliefType string

const (
	BeliefPosition     BeliefType = "position"
	BeliefTrafficState BeliefType = "traffic_state"
	BeliefRoute        BeliefType = "route"
	BeliefNeighbors    BeliefType = "neighbors"
	BeliefCongestion   BeliefType = "congestion"
	BeliefSpeed        BeliefType = "speed"
	BeliefDestination  BeliefType = "destination"
)

// Belief is a single piece of an agent's knowledge about the world,
// carrying how confident the agent is in it and when it was observed.
type Belief struct {
	Type       BeliefType
	Value      any
	Confidence float64
	Timestamp  float64
	Source     string // "self" or the sending agent's id
}

// IsValid reports whether the belief is still fresh at currentTime,
// given a validity window.
func (b Belief) IsValid(currentTime, validityDuration float64) bool {
	return currentTime-b.Timestamp < validityDuration
}

// DesireType names a goal an agent may pursue.
type DesireType string

const (
	DesireReachDestination       DesireType = "reach_destination"
	DesireMinimizeTravelTime     DesireType = "minimize_travel_time"
	DesireOptimizeFlow           DesireType = "optimize_flow"
	DesireAvoidCongestion        DesireType = "avoid_congestion"
	DesireCoordinateWithNeighbors DesireType = "coordinate_with_neighbors"
	DesirePrioritizeEmergency    DesireType = "prioritize_emergency"
)

// Desire is a goal an agent wants to satisfy, with a priority used to
// order deliberation.
type Desire struct {
	Type       DesireType
	Priority   float64
	Conditions map[string]any
	Satisfied  bool
}

// IntentionType names a concrete action an agent can commit to.
type IntentionType string

const (
	IntentionMoveForward         IntentionType = "move_forward"
	IntentionChangeRoute         IntentionType = "change_route"
	IntentionStop                IntentionType = "stop"
	IntentionChangeLightTiming   IntentionType = "change_light_timing"
	IntentionBroadcastCongestion IntentionType = "broadcast_congestion"
	IntentionNegotiateWithNeighbor IntentionType = "negotiate_with_neighbor"
	IntentionAccelerate          IntentionType = "accelerate"
	IntentionDecelerate          IntentionType = "decelerate"
)

// IntentionStatus tracks an intention through its execution lifecycle.
type IntentionStatus string

const (
	StatusPending   IntentionStatus = "pending"
	StatusExecuting IntentionStatus = "executing"
	StatusCompleted IntentionStatus = "completed"
	StatusFailed    IntentionStatus = "failed"
)

// Intention is a committed action, derived from a Desire during
// deliberation.
type Intention struct {
	Type         IntentionType
	Parameters   map[string]any
	Priority     float64
	Status       IntentionStatus
	ParentDesire DesireType
}

// ActionRecord logs one executed intention, for diagnostics and for the
// data collector's per-tick event trace.
type ActionRecord struct {
	Time       float64
	Intention  IntentionType
	Success    bool
	Parameters map[string]any
}

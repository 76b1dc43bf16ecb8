package vehicle

import (
	"log/slog"
	"math"

	"github.com/MDylan95/sma-trafic/internal/bdi"
	"github.com/MDylan95/sma-trafic/internal/messaging"
	"github.com/MDylan95/sma-trafic/internal/roadnet"
)

// Agent is one vehicle in the simulation. It owns the physical and
// navigation state and implements bdi.Behavior so a *bdi.Core can drive
// it through the perceive/generate-desires/deliberate/execute cycle.
type Agent struct {
	Core    *bdi.Core
	Mailbox *messaging.Mailbox

	ID       string
	Type     Type
	TimeStep float64

	Position    roadnet.Point
	Origin      roadnet.Point
	Destination roadnet.Point

	Speed        float64
	MaxSpeed     float64
	Acceleration float64
	Deceleration float64

	Route         []roadnet.Point
	WaypointIndex int

	RouteRecalcTimer float64
	RouteChanges     int

	IsStopped             bool
	WaitingAtIntersection bool

	DistanceTraveled float64
	TravelTime       float64
	StopsCount       int

	env    Environment
	logger *slog.Logger

	nearbyCache     []Neighbor
	nearbyCacheTime float64

	// reportedCongestion/reportedReason hold the most recently received
	// congestion_report/incident_report content, distinct from the
	// vehicle's own self-perceived BeliefCongestion: a message-reported
	// level >= highCongestionThreshold or reason "incident" bypasses the
	// reroute cooldown immediately, per the original's handle_message.
	reportedCongestion float64
	reportedReason     string
}

// New creates a vehicle agent of the given type, starting at origin
// and bound for destination.
func New(id string, vtype Type, origin, destination roadnet.Point, timeStep float64, env Environment, mailbox *messaging.Mailbox, logger *slog.Logger) *Agent {
	a := &Agent{
		Core:         bdi.NewCore(id),
		Mailbox:      mailbox,
		ID:           id,
		Type:         vtype,
		TimeStep:     timeStep,
		Position:     origin,
		Origin:       origin,
		Destination:  destination,
		MaxSpeed:     DefaultMaxSpeed(vtype),
		Acceleration: defaultAcceleration,
		Deceleration: defaultDeceleration,
		env:          env,
		logger:       logger,
	}
	a.Core.UpdateBelief(bdi.BeliefPosition, a.Position, 1.0, "self")
	a.Core.UpdateBelief(bdi.BeliefDestination, a.Destination, 1.0, "self")
	a.Core.UpdateBelief(bdi.BeliefSpeed, a.Speed, 1.0, "self")
	return a
}

// Step runs one BDI cycle for the vehicle.
func (a *Agent) Step() {
	a.Core.Step(a, a.TimeStep)
}

// Active reports whether the vehicle is still part of the simulation
// (false once it has reached its destination).
func (a *Agent) Active() bool {
	return a.Core.Active
}

// isAtDestination reports whether the vehicle has arrived.
func (a *Agent) isAtDestination() bool {
	return a.Position.Distance(a.Destination) < arrivalThreshold
}

// Stats is a point-in-time snapshot of one vehicle's trip statistics,
// used for per-run aggregates once the vehicle leaves the simulation.
type Stats struct {
	ID               string
	Type             Type
	DistanceTraveled float64
	TravelTime       float64
	StopsCount       int
	RouteChanges     int
	ReachedDestination bool
}

// Stats returns the vehicle's current statistics.
func (a *Agent) Stats() Stats {
	return Stats{
		ID:                 a.ID,
		Type:               a.Type,
		DistanceTraveled:   a.DistanceTraveled,
		TravelTime:         a.TravelTime,
		StopsCount:         a.StopsCount,
		RouteChanges:       a.RouteChanges,
		ReachedDestination: a.isAtDestination(),
	}
}

// ---- bdi.Behavior ----

// Perceive updates position/speed/route/neighbor/traffic beliefs and
// drains the vehicle's mailbox.
func (a *Agent) Perceive(c *bdi.Core) {
	c.UpdateBelief(bdi.BeliefPosition, a.Position, 1.0, "self")
	c.UpdateBelief(bdi.BeliefSpeed, a.Speed, 1.0, "self")
	c.UpdateBelief(bdi.BeliefDestination, a.Destination, 1.0, "self")
	c.UpdateBelief(bdi.BeliefRoute, a.Route, 1.0, "self")

	neighbors := a.nearbyVehicles(c.CurrentTime)
	c.UpdateBelief(bdi.BeliefNeighbors, neighbors, 1.0, "self")

	state := assessTrafficState(len(neighbors))
	c.UpdateBelief(bdi.BeliefTrafficState, state, 1.0, "self")

	congestionIndex := math.Min(float64(len(neighbors))/congestionSaturation, 1.0)
	c.UpdateBelief(bdi.BeliefCongestion, congestionIndex, 1.0, "self")

	a.processMessages(c)

	a.TravelTime += a.TimeStep
	a.RouteRecalcTimer += a.TimeStep
}

func (a *Agent) nearbyVehicles(now float64) []Neighbor {
	if now-a.nearbyCacheTime >= nearbyCacheInterval || a.nearbyCache == nil {
		a.nearbyCache = a.env.NearbyVehicles(a.Position, nearbyRadius, a.ID)
		a.nearbyCacheTime = now
	}
	return a.nearbyCache
}

func (a *Agent) processMessages(c *bdi.Core) {
	if a.Mailbox == nil {
		return
	}
	for _, m := range a.Mailbox.Drain() {
		switch m.Content.Type {
		case messaging.ContentCongestionReport:
			level, _ := m.Content.Float64("congestion_level")
			reason, _ := m.Content.String("reason")
			a.reportedCongestion = level
			a.reportedReason = reason
			if a.logger != nil {
				a.logger.Debug("vehicle received congestion report",
					"vehicle_id", a.ID, "sender", m.Sender, "congestion_level", level, "reason", reason)
			}
		case messaging.ContentIncidentReport:
			a.reportedCongestion = 1.0
			a.reportedReason = "incident"
			if a.logger != nil {
				a.logger.Debug("vehicle received incident report",
					"vehicle_id", a.ID, "sender", m.Sender)
			}
		}
	}
}

// GenerateDesires adds the vehicle's standing desires based on current
// beliefs.
func (a *Agent) GenerateDesires(c *bdi.Core) {
	if !a.isAtDestination() {
		c.AddDesire(bdi.Desire{Type: bdi.DesireReachDestination, Priority: 1.0})
	}
	c.AddDesire(bdi.Desire{Type: bdi.DesireMinimizeTravelTime, Priority: 0.8})

	state, _ := c.BeliefValue(bdi.BeliefTrafficState).(TrafficState)
	if state == TrafficDense || state == TrafficCongested {
		c.AddDesire(bdi.Desire{Type: bdi.DesireAvoidCongestion, Priority: 0.7})
	}
}

// Deliberate converts the vehicle's current desires into intentions:
// compute an initial route, stop on arrival, reroute when congested,
// or otherwise move forward/decelerate behind slower traffic.
func (a *Agent) Deliberate(c *bdi.Core) []bdi.Intention {
	if len(a.Route) == 0 {
		return []bdi.Intention{{
			Type:         bdi.IntentionChangeRoute,
			Priority:     1.0,
			ParentDesire: bdi.DesireReachDestination,
		}}
	}

	if a.isAtDestination() {
		c.Active = false
		return []bdi.Intention{{
			Type:         bdi.IntentionStop,
			Priority:     1.0,
			ParentDesire: bdi.DesireReachDestination,
		}}
	}

	var intentions []bdi.Intention

	state, _ := c.BeliefValue(bdi.BeliefTrafficState).(TrafficState)
	congestionIndex, _ := c.BeliefValue(bdi.BeliefCongestion).(float64)
	shouldReroute := (state == TrafficCongested && a.RouteRecalcTimer >= routeRecalculationInterval) ||
		congestionIndex >= highCongestionThreshold ||
		a.reportedCongestion >= highCongestionThreshold ||
		a.reportedReason == "incident"
	if shouldReroute {
		intentions = append(intentions, bdi.Intention{
			Type:         bdi.IntentionChangeRoute,
			Priority:     0.7,
			ParentDesire: bdi.DesireAvoidCongestion,
		})
	}

	if !a.WaitingAtIntersection {
		neighbors, _ := c.BeliefValue(bdi.BeliefNeighbors).([]Neighbor)
		if a.vehicleAhead(neighbors) {
			intentions = append(intentions, bdi.Intention{
				Type:       bdi.IntentionDecelerate,
				Priority:   0.9,
				Parameters: map[string]any{"target_speed": a.Speed * vehicleAheadSlowdown},
			})
		} else {
			intentions = append(intentions, bdi.Intention{
				Type:         bdi.IntentionMoveForward,
				Priority:     0.8,
				ParentDesire: bdi.DesireReachDestination,
			})
		}
	}

	return intentions
}

func (a *Agent) vehicleAhead(neighbors []Neighbor) bool {
	for _, n := range neighbors {
		if a.Position.Distance(n.Position) < aheadThreshold && n.Speed < a.Speed {
			return true
		}
	}
	return false
}

// ExecuteIntention carries out one deliberated intention.
func (a *Agent) ExecuteIntention(c *bdi.Core, in bdi.Intention) bool {
	switch in.Type {
	case bdi.IntentionMoveForward:
		return a.moveForward()
	case bdi.IntentionChangeRoute:
		return a.recalculateRoute(c)
	case bdi.IntentionStop:
		return a.stop()
	case bdi.IntentionAccelerate:
		target, _ := in.Parameters["target_speed"].(float64)
		if target == 0 {
			target = a.MaxSpeed
		}
		return a.accelerate(target)
	case bdi.IntentionDecelerate:
		target, _ := in.Parameters["target_speed"].(float64)
		return a.decelerate(target)
	default:
		return false
	}
}

func (a *Agent) moveForward() bool {
	if len(a.Route) == 0 || a.WaypointIndex >= len(a.Route) {
		return false
	}
	target := a.Route[a.WaypointIndex]

	if a.Speed < a.MaxSpeed {
		a.Speed = math.Min(a.Speed+a.Acceleration*a.TimeStep, a.MaxSpeed)
	}

	dx, dy := target.X-a.Position.X, target.Y-a.Position.Y
	dist := math.Hypot(dx, dy)
	displacement := a.Speed * a.TimeStep
	old := a.Position
	if dist > 0 {
		a.Position = roadnet.Point{
			X: a.Position.X + (dx/dist)*displacement,
			Y: a.Position.Y + (dy/dist)*displacement,
		}
	}
	a.DistanceTraveled += old.Distance(a.Position)

	if a.Position.Distance(target) < waypointThreshold {
		a.WaypointIndex++
	}
	return true
}

func (a *Agent) recalculateRoute(c *bdi.Core) bool {
	congestionIndex, _ := c.BeliefValue(bdi.BeliefCongestion).(float64)

	reason := "periodic_check"
	switch {
	case a.reportedReason == "incident":
		reason = "incident_alert"
	case a.reportedCongestion >= highCongestionThreshold:
		reason = "congestion_alert"
	case congestionIndex > highCongestionThreshold:
		reason = "high_congestion"
	}
	a.reportedCongestion = 0
	a.reportedReason = ""

	path, ok := a.env.FindRoute(a.Position, a.Destination)
	if !ok {
		if a.logger != nil {
			a.logger.Warn("reroute failed, no path found",
				"vehicle_id", a.ID, "reason", reason)
		}
		return false
	}

	oldLen := len(a.Route) - a.WaypointIndex
	a.Route = path
	a.WaypointIndex = 0
	a.RouteChanges++
	a.RouteRecalcTimer = 0
	c.UpdateBelief(bdi.BeliefRoute, a.Route, 1.0, "self")

	if a.logger != nil {
		a.logger.Info("vehicle rerouted",
			"vehicle_id", a.ID, "vehicle_type", a.Type, "reason", reason,
			"congestion_index", congestionIndex,
			"old_route_waypoints", oldLen, "new_route_waypoints", len(path),
			"route_changes", a.RouteChanges)
	}
	return true
}

func (a *Agent) stop() bool {
	a.Speed = 0
	a.IsStopped = true
	a.StopsCount++
	return true
}

func (a *Agent) accelerate(targetSpeed float64) bool {
	capped := math.Min(targetSpeed, a.MaxSpeed)
	a.Speed = math.Min(a.Speed+a.Acceleration*a.TimeStep, capped)
	return true
}

func (a *Agent) decelerate(targetSpeed float64) bool {
	floor := math.Max(targetSpeed, 0)
	a.Speed = math.Max(a.Speed-a.Deceleration*a.TimeStep, floor)
	return true
}

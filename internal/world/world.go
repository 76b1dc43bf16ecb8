// Package world owns every agent in a running simulation and exposes
// the narrow, per-package Environment interfaces (internal/vehicle,
// internal/intersection, internal/crisis) agents use to look up peers
// without holding a circular reference to the simulation itself. The
// scheduler drives ticks by asking World for the current agent set and
// position data; World never reaches back into the scheduler.
package world

import (
	"log/slog"
	"math/rand"

	"github.com/MDylan95/sma-trafic/internal/crisis"
	"github.com/MDylan95/sma-trafic/internal/intersection"
	"github.com/MDylan95/sma-trafic/internal/messaging"
	"github.com/MDylan95/sma-trafic/internal/roadnet"
	"github.com/MDylan95/sma-trafic/internal/routing"
	"github.com/MDylan95/sma-trafic/internal/vehicle"
)

// Stepper is satisfied by every agent kind; the scheduler activates
// agents through this single method regardless of their concrete type.
type Stepper interface {
	Step()
}

// SystemAgentID is the sender/mailbox identity scenarios use to inject
// messages (congestion alerts, incident reports) that originate from
// the world itself rather than from an agent's own deliberation.
const SystemAgentID = "scenario_manager"

// World is the concrete simulation state: the road network, the
// router, the message bus, and every live agent. It implements
// vehicle.Environment, intersection.Environment and crisis.Environment
// so each agent package only ever sees the slice of this state it
// needs.
type World struct {
	Network  *roadnet.Network
	Router   *routing.Router
	Bus      *messaging.Bus
	TimeStep float64
	Now      float64

	RNG *rand.Rand

	// SystemMailbox is registered with Bus under SystemAgentID; scenario
	// hooks queue messages here rather than holding their own mailbox.
	// The scheduler must include SystemAgentID in every Bus.Route order
	// for these to ever leave the outbox.
	SystemMailbox *messaging.Mailbox

	vehicles      map[string]*vehicle.Agent
	intersections map[string]*intersection.Agent
	crisisAgent   *crisis.Agent

	logger *slog.Logger
}

// New creates an empty World over the given network, router and bus.
func New(network *roadnet.Network, router *routing.Router, bus *messaging.Bus, timeStep float64, seed int64, logger *slog.Logger) *World {
	sys := messaging.NewMailbox(SystemAgentID, 0)
	bus.Register(sys)
	return &World{
		Network:       network,
		Router:        router,
		Bus:           bus,
		TimeStep:      timeStep,
		RNG:           rand.New(rand.NewSource(seed)),
		SystemMailbox: sys,
		vehicles:      make(map[string]*vehicle.Agent),
		intersections: make(map[string]*intersection.Agent),
		logger:        logger,
	}
}

// SendSystem queues a message from the world itself (SystemAgentID) to
// a named receiver, delivered on the next Bus.Route pass that includes
// SystemAgentID in its order.
func (w *World) SendSystem(receiver string, perf messaging.Performative, content messaging.Content) {
	w.SystemMailbox.Send(messaging.New(SystemAgentID, receiver, perf, content, w.Now))
}

// AddVehicle registers a vehicle agent and its mailbox with the bus.
func (w *World) AddVehicle(v *vehicle.Agent) {
	w.vehicles[v.ID] = v
	if v.Mailbox != nil {
		w.Bus.Register(v.Mailbox)
	}
}

// RemoveVehicle drops a vehicle from the world, unregistering its
// mailbox. Called once a vehicle's Active() becomes false.
func (w *World) RemoveVehicle(id string) {
	delete(w.vehicles, id)
	w.Bus.Unregister(id)
}

// AddIntersection registers an intersection agent and its mailbox.
func (w *World) AddIntersection(i *intersection.Agent) {
	w.intersections[i.ID] = i
	if i.Mailbox != nil {
		w.Bus.Register(i.Mailbox)
	}
}

// SetCrisisManager registers the zone-wide crisis manager agent.
func (w *World) SetCrisisManager(c *crisis.Agent) {
	w.crisisAgent = c
	if c.Mailbox != nil {
		w.Bus.Register(c.Mailbox)
	}
}

// CrisisManagerID returns the registered crisis manager's id, if any.
func (w *World) CrisisManagerID() (string, bool) {
	if w.crisisAgent == nil {
		return "", false
	}
	return w.crisisAgent.ID, true
}

// CrisisStats returns the registered crisis manager's cumulative
// counters, for the observability surface. ok is false if no crisis
// manager has been registered.
func (w *World) CrisisStats() (crisis.Stats, bool) {
	if w.crisisAgent == nil {
		return crisis.Stats{}, false
	}
	return w.crisisAgent.Stats(), true
}

// Vehicle looks up a vehicle agent by id.
func (w *World) Vehicle(id string) (*vehicle.Agent, bool) {
	v, ok := w.vehicles[id]
	return v, ok
}

// Intersection looks up an intersection agent by id.
func (w *World) Intersection(id string) (*intersection.Agent, bool) {
	i, ok := w.intersections[id]
	return i, ok
}

// ActiveVehicles returns every vehicle still in the simulation.
func (w *World) ActiveVehicles() []*vehicle.Agent {
	out := make([]*vehicle.Agent, 0, len(w.vehicles))
	for _, v := range w.vehicles {
		out = append(out, v)
	}
	return out
}

// ActiveIntersections returns every intersection agent.
func (w *World) ActiveIntersections() []*intersection.Agent {
	out := make([]*intersection.Agent, 0, len(w.intersections))
	for _, i := range w.intersections {
		out = append(out, i)
	}
	return out
}

// AgentIDs returns the id of every agent currently in the simulation
// (vehicles, intersections, and the crisis manager if registered), in
// no particular order. The scheduler shuffles this into an activation
// order each tick.
func (w *World) AgentIDs() []string {
	ids := make([]string, 0, len(w.vehicles)+len(w.intersections)+1)
	for id := range w.vehicles {
		ids = append(ids, id)
	}
	for id := range w.intersections {
		ids = append(ids, id)
	}
	if w.crisisAgent != nil {
		ids = append(ids, w.crisisAgent.ID)
	}
	return ids
}

// Agent resolves an id to its Stepper, regardless of kind. Unknown ids
// return ok=false; the scheduler skips them (an agent may have left
// the world since the activation order was built).
func (w *World) Agent(id string) (Stepper, bool) {
	if v, ok := w.vehicles[id]; ok {
		return v, true
	}
	if i, ok := w.intersections[id]; ok {
		return i, true
	}
	if w.crisisAgent != nil && w.crisisAgent.ID == id {
		return w.crisisAgent, true
	}
	return nil, false
}

// HarvestArrivals removes every vehicle whose Active() has gone false
// since the last tick and returns their final trip statistics.
func (w *World) HarvestArrivals() []vehicle.Stats {
	var arrived []vehicle.Stats
	for _, v := range w.vehicles {
		if !v.Active() {
			arrived = append(arrived, v.Stats())
		}
	}
	for _, s := range arrived {
		w.RemoveVehicle(s.ID)
	}
	return arrived
}

// Position resolves any agent's current position for peer lookups
// (intersection.Environment) and broadcast delivery (via the
// busPositions adapter below).
func (w *World) Position(agentID string) (roadnet.Point, bool) {
	if v, ok := w.vehicles[agentID]; ok {
		return v.Position, true
	}
	if i, ok := w.intersections[agentID]; ok {
		return i.Position, true
	}
	if w.crisisAgent != nil && w.crisisAgent.ID == agentID {
		return w.crisisAgent.Position, true
	}
	return roadnet.Point{}, false
}

// BusPositioner adapts World to messaging.Positioner, whose signature
// (x, y float64) differs from the roadnet.Point-returning Position
// method the agent Environment interfaces use.
func (w *World) BusPositioner() messaging.Positioner {
	return busPositions{w}
}

type busPositions struct{ w *World }

func (b busPositions) Position(agentID string) (x, y float64, ok bool) {
	p, ok := b.w.Position(agentID)
	return p.X, p.Y, ok
}

// ---- vehicle.Environment ----

// NearbyVehicles returns active vehicles other than excludeID within
// radius of pos.
func (w *World) NearbyVehicles(pos roadnet.Point, radius float64, excludeID string) []vehicle.Neighbor {
	var out []vehicle.Neighbor
	for id, v := range w.vehicles {
		if id == excludeID {
			continue
		}
		if pos.Distance(v.Position) > radius {
			continue
		}
		out = append(out, vehicle.Neighbor{ID: id, Position: v.Position, Speed: v.Speed})
	}
	return out
}

// FindRoute computes a path from start to end via the world's router.
func (w *World) FindRoute(start, end roadnet.Point) ([]roadnet.Point, bool) {
	return w.Router.FindPath(start, end)
}

// ---- intersection.Environment ----

// VehiclesNear returns a position-only snapshot of active vehicles
// within radius of pos, for approach-direction classification.
func (w *World) VehiclesNear(pos roadnet.Point, radius float64) []intersection.VehicleSnapshot {
	var out []intersection.VehicleSnapshot
	for id, v := range w.vehicles {
		if pos.Distance(v.Position) > radius {
			continue
		}
		out = append(out, intersection.VehicleSnapshot{ID: id, Position: v.Position})
	}
	return out
}

// ---- crisis.Environment ----

// ActiveEmergencyVehicles returns every emergency-type vehicle still in
// transit.
func (w *World) ActiveEmergencyVehicles() []crisis.EmergencyVehicleInfo {
	var out []crisis.EmergencyVehicleInfo
	for _, v := range w.vehicles {
		if !vehicle.IsEmergency(v.Type) {
			continue
		}
		out = append(out, crisis.EmergencyVehicleInfo{
			ID:          v.ID,
			Type:        string(v.Type),
			Position:    v.Position,
			Destination: v.Destination,
			Route:       v.Route,
		})
	}
	return out
}

// Intersections returns a load/topology snapshot of every intersection.
func (w *World) Intersections() []crisis.IntersectionInfo {
	out := make([]crisis.IntersectionInfo, 0, len(w.intersections))
	for _, i := range w.intersections {
		out = append(out, intersectionInfo(i))
	}
	return out
}

// IntersectionByID snapshots a single intersection.
func (w *World) IntersectionByID(id string) (crisis.IntersectionInfo, bool) {
	i, ok := w.intersections[id]
	if !ok {
		return crisis.IntersectionInfo{}, false
	}
	return intersectionInfo(i), true
}

// ---- microsim.StateSource ----

// VehicleSync is a position/type snapshot of one active vehicle, for
// mirroring into an external microsim.
type VehicleSync struct {
	ID          string
	Type        string
	Position    roadnet.Point
	Destination roadnet.Point
}

// IntersectionSync is a phase snapshot of one intersection.
type IntersectionSync struct {
	ID       string
	Position roadnet.Point
	Phase    string // "NS" or "EW"
}

// SyncVehicles returns a snapshot of every active vehicle for an
// external microsim sync hook.
func (w *World) SyncVehicles() []VehicleSync {
	out := make([]VehicleSync, 0, len(w.vehicles))
	for _, v := range w.vehicles {
		out = append(out, VehicleSync{ID: v.ID, Type: string(v.Type), Position: v.Position, Destination: v.Destination})
	}
	return out
}

// SyncIntersections returns a phase snapshot of every intersection.
func (w *World) SyncIntersections() []IntersectionSync {
	out := make([]IntersectionSync, 0, len(w.intersections))
	for _, i := range w.intersections {
		out = append(out, IntersectionSync{ID: i.ID, Position: i.Position, Phase: string(i.CurrentPhase())})
	}
	return out
}

// SyncBlockedEdges returns the endpoint pairs of every timed road
// closure currently active in the network.
func (w *World) SyncBlockedEdges() [][2]string {
	return w.Network.BlockedEdgeIDs()
}

func intersectionInfo(i *intersection.Agent) crisis.IntersectionInfo {
	queues := make(map[string]int, len(i.QueueLengths))
	for d, q := range i.QueueLengths {
		queues[string(d)] = q
	}
	return crisis.IntersectionInfo{
		ID:           i.ID,
		Position:     i.Position,
		QueueLengths: queues,
		Neighbors:    i.Neighbors,
	}
}

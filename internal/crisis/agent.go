package crisis

import (
	"log/slog"

	"github.com/MDylan95/sma-trafic/internal/bdi"
	"github.com/MDylan95/sma-trafic/internal/messaging"
	"github.com/MDylan95/sma-trafic/internal/roadnet"
)

// Agent is the zone-wide crisis manager: it has no vehicle or
// intersection of its own, only a virtual position at the center of
// the supervised area, and acts purely through messages.
type Agent struct {
	Core    *bdi.Core
	Mailbox *messaging.Mailbox

	ID       string
	Position roadnet.Point
	TimeStep float64

	ActiveGreenWaves []GreenWaveRecord
	ActiveIncidents  []Incident

	InterventionsCount int
	GreenWavesCreated  int

	emergencyVehicles []EmergencyVehicleInfo
	registered        []EmergencyVehicleInfo
	cnpProposals      map[string][]cnpProposal

	env    Environment
	logger *slog.Logger
}

// New creates a crisis manager agent.
func New(id string, timeStep float64, env Environment, mailbox *messaging.Mailbox, logger *slog.Logger) *Agent {
	a := &Agent{
		Core:         bdi.NewCore(id),
		Mailbox:      mailbox,
		ID:           id,
		Position:     roadnet.Point{X: 0, Y: 0},
		TimeStep:     timeStep,
		cnpProposals: make(map[string][]cnpProposal),
		env:          env,
		logger:       logger,
	}
	a.Core.UpdateBelief(bdi.BeliefPosition, a.Position, 1.0, "self")
	a.Core.UpdateBelief(bdi.BeliefTrafficState, "normal", 1.0, "self")
	return a
}

// Step runs one BDI cycle for the crisis manager.
func (a *Agent) Step() {
	a.Core.Step(a, a.TimeStep)
}

// RegisterEmergencyVehicle manually adds an emergency vehicle to the
// tracked fleet. The world normally surfaces these automatically via
// Environment.ActiveEmergencyVehicles; this exists for callers that
// create a priority vehicle mid-simulation and want it handled on the
// very next tick rather than waiting for the next Perceive scan.
func (a *Agent) RegisterEmergencyVehicle(v EmergencyVehicleInfo) {
	a.emergencyVehicles = append(a.emergencyVehicles, v)
	a.registered = append(a.registered, v)
}

// Stats is a point-in-time snapshot of the crisis manager's activity.
type Stats struct {
	ID                      string
	InterventionsCount      int
	GreenWavesCreated       int
	ActiveIncidents         int
	ActiveEmergencyVehicles int
}

// Stats returns the crisis manager's current statistics.
func (a *Agent) Stats() Stats {
	return Stats{
		ID:                      a.ID,
		InterventionsCount:      a.InterventionsCount,
		GreenWavesCreated:       a.GreenWavesCreated,
		ActiveIncidents:         len(a.ActiveIncidents),
		ActiveEmergencyVehicles: len(a.emergencyVehicles),
	}
}

// ---- bdi.Behavior ----

// Perceive detects active emergency vehicles, assesses global
// congestion across every intersection, and drains the mailbox.
func (a *Agent) Perceive(c *bdi.Core) {
	a.emergencyVehicles = a.env.ActiveEmergencyVehicles()
	for _, r := range a.registered {
		known := false
		for _, v := range a.emergencyVehicles {
			if v.ID == r.ID {
				known = true
				break
			}
		}
		if !known {
			a.emergencyVehicles = append(a.emergencyVehicles, r)
		}
	}
	a.registered = nil

	info := a.assessGlobalCongestion()
	c.UpdateBelief(bdi.BeliefCongestion, info, 1.0, "self")
	c.UpdateBelief(bdi.BeliefTrafficState, info.Level, 1.0, "self")

	a.processMessages(c)
}

func (a *Agent) assessGlobalCongestion() CongestionInfo {
	intersections := a.env.Intersections()

	totalQueue := 0
	var congested []CongestedIntersection
	for _, ix := range intersections {
		total := ix.QueueTotal()
		totalQueue += total
		if total > perIntersectionDirectionCapacity*directionsPerIntersection {
			congested = append(congested, CongestedIntersection{ID: ix.ID, Position: ix.Position, QueueTotal: total})
		}
	}

	numIntersections := len(intersections)
	if numIntersections == 0 {
		numIntersections = 1
	}
	avgQueue := float64(totalQueue) / float64(numIntersections)

	level := "low"
	switch {
	case avgQueue > avgQueueCritical:
		level = "critical"
	case avgQueue > avgQueueHigh:
		level = "high"
	case avgQueue > avgQueueMedium:
		level = "medium"
	}

	return CongestionInfo{Level: level, AverageQueue: avgQueue, CongestedIntersections: congested}
}

func (a *Agent) processMessages(c *bdi.Core) {
	if a.Mailbox == nil {
		return
	}
	for _, m := range a.Mailbox.Drain() {
		switch m.Performative {
		case messaging.Propose:
			a.evaluateCNPProposal(m)
		case messaging.Inform:
			switch m.Content.Type {
			case messaging.ContentIncidentReport:
				a.handleIncidentReport(m)
			case messaging.ContentEmergencyAck:
				// Confirmation received; nothing further to do.
			}
		}
	}
}

// GenerateDesires adds the crisis manager's standing desires: absolute
// priority for any active emergency vehicle, coordination when
// congestion is severe, and a background desire to optimize flow.
func (a *Agent) GenerateDesires(c *bdi.Core) {
	if len(a.emergencyVehicles) > 0 {
		c.AddDesire(bdi.Desire{
			Type:       bdi.DesirePrioritizeEmergency,
			Priority:   1.0,
			Conditions: map[string]any{"emergency_vehicles": len(a.emergencyVehicles)},
		})
	}

	info, _ := c.BeliefValue(bdi.BeliefCongestion).(CongestionInfo)
	if info.Level == "high" || info.Level == "critical" {
		c.AddDesire(bdi.Desire{Type: bdi.DesireCoordinateWithNeighbors, Priority: 0.8})
	}

	c.AddDesire(bdi.Desire{Type: bdi.DesireOptimizeFlow, Priority: 0.5})
}

// Deliberate dispatches one green-wave intention per active emergency
// vehicle, then a single Contract-Net delegation intention if any
// intersection is congested.
func (a *Agent) Deliberate(c *bdi.Core) []bdi.Intention {
	var intentions []bdi.Intention

	for _, ev := range a.emergencyVehicles {
		intentions = append(intentions, bdi.Intention{
			Type:     bdi.IntentionBroadcastCongestion,
			Priority: 1.0,
			Parameters: map[string]any{
				"action":               "create_green_wave",
				"vehicle_id":           ev.ID,
				"vehicle_type":         ev.Type,
				"vehicle_position":     ev.Position,
				"vehicle_destination":  ev.Destination,
				"route":                ev.Route,
			},
			ParentDesire: bdi.DesirePrioritizeEmergency,
		})
	}

	info, _ := c.BeliefValue(bdi.BeliefCongestion).(CongestionInfo)
	if len(info.CongestedIntersections) > 0 {
		intentions = append(intentions, bdi.Intention{
			Type:     bdi.IntentionNegotiateWithNeighbor,
			Priority: 0.8,
			Parameters: map[string]any{
				"action":    "delegate_priority",
				"congested": info.CongestedIntersections,
			},
			ParentDesire: bdi.DesireCoordinateWithNeighbors,
		})
	}

	return intentions
}

// ExecuteIntention carries out one deliberated intention.
func (a *Agent) ExecuteIntention(c *bdi.Core, in bdi.Intention) bool {
	action, _ := in.Parameters["action"].(string)
	switch action {
	case "create_green_wave":
		return a.createGreenWave(in.Parameters)
	case "delegate_priority":
		return a.delegatePriorityViaCNP(in.Parameters)
	default:
		return false
	}
}

// createGreenWave sends an emergency-priority request to every
// intersection within emergencyNotificationRadius of the vehicle's
// route (or its current position, if no route is known).
func (a *Agent) createGreenWave(params map[string]any) bool {
	if a.Mailbox == nil {
		return false
	}
	vehicleID, _ := params["vehicle_id"].(string)
	vehicleType, _ := params["vehicle_type"].(string)
	vehiclePos, _ := params["vehicle_position"].(roadnet.Point)
	route, _ := params["route"].([]roadnet.Point)

	notified := 0
	for _, ix := range a.env.Intersections() {
		minDistance := nearestDistance(ix.Position, route, vehiclePos)
		if minDistance >= emergencyNotificationRadius {
			continue
		}

		content := messaging.NewContent(messaging.ContentEmergencyPriority, map[string]any{
			"vehicle_id":       vehicleID,
			"vehicle_type":     vehicleType,
			"vehicle_position": vehiclePos,
			"priority":         "absolute",
		})
		msg := messaging.New(a.ID, ix.ID, messaging.Request, content, a.Core.CurrentTime).
			WithProtocol("emergency-management", vehicleID)
		a.Mailbox.Send(msg)
		notified++
	}

	if notified == 0 {
		return false
	}

	a.GreenWavesCreated++
	a.InterventionsCount++
	a.ActiveGreenWaves = append(a.ActiveGreenWaves, GreenWaveRecord{
		VehicleID:             vehicleID,
		VehicleType:           vehicleType,
		IntersectionsNotified: notified,
		Timestamp:             a.Core.CurrentTime,
	})
	return true
}

func nearestDistance(from roadnet.Point, route []roadnet.Point, fallback roadnet.Point) float64 {
	if len(route) == 0 {
		return from.Distance(fallback)
	}
	min := from.Distance(route[0])
	for _, wp := range route[1:] {
		if d := from.Distance(wp); d < min {
			min = d
		}
	}
	return min
}

// delegatePriorityViaCNP opens a Contract-Net call for proposals,
// directed at the neighbors of each congested intersection, asking
// them to take over its worst-queued direction.
func (a *Agent) delegatePriorityViaCNP(params map[string]any) bool {
	if a.Mailbox == nil {
		return false
	}
	congested, _ := params["congested"].([]CongestedIntersection)

	for _, c := range congested {
		info, ok := a.env.IntersectionByID(c.ID)
		direction := "unknown"
		if ok {
			direction = worstDirection(info.QueueLengths)
		}

		cfp := messaging.NewContent(messaging.ContentCallForProposals, map[string]any{
			"task":                   "priority_delegation",
			"congested_intersection": c.ID,
			"congestion_level":       c.QueueTotal,
			"direction":              direction,
		})

		if ok {
			for _, neighborID := range info.Neighbors {
				msg := messaging.New(a.ID, neighborID, messaging.Request, cfp, a.Core.CurrentTime).
					WithProtocol("contract-net", c.ID)
				a.Mailbox.Send(msg)
			}
		}
		a.InterventionsCount++
	}
	return true
}

func worstDirection(queues map[string]int) string {
	worst := "unknown"
	max := -1
	for d, q := range queues {
		if q > max {
			max = q
			worst = d
		}
	}
	return worst
}

// evaluateCNPProposal collects contractor bids per conversation and,
// once minProposalsToEvaluate have arrived, accepts the one with the
// highest availability and rejects the rest.
func (a *Agent) evaluateCNPProposal(m messaging.Message) {
	if a.Mailbox == nil {
		return
	}
	conversationID := m.ConversationID
	if conversationID == "" {
		conversationID = "default"
	}

	availability, _ := m.Content.Float64("availability")
	currentLoad, _ := m.Content.Float64("current_load")
	a.cnpProposals[conversationID] = append(a.cnpProposals[conversationID], cnpProposal{
		sender:       m.Sender,
		availability: availability,
		currentLoad:  int(currentLoad),
	})

	proposals := a.cnpProposals[conversationID]
	if len(proposals) < minProposalsToEvaluate {
		return
	}

	best := proposals[0]
	for _, p := range proposals[1:] {
		if p.availability > best.availability {
			best = p
		}
	}

	for _, p := range proposals {
		var reply messaging.Message
		if p.sender == best.sender {
			content := messaging.NewContent(messaging.ContentTaskAssignment, map[string]any{
				"task":              "priority_delegation",
				"priority_direction": "north",
			})
			reply = messaging.New(a.ID, p.sender, messaging.AcceptProposal, content, a.Core.CurrentTime).
				WithProtocol("contract-net", conversationID)
		} else {
			content := messaging.NewContent(messaging.ContentOpaque, map[string]any{"reason": "better_proposal_received"})
			reply = messaging.New(a.ID, p.sender, messaging.RejectProposal, content, a.Core.CurrentTime).
				WithProtocol("contract-net", conversationID)
		}
		a.Mailbox.Send(reply)
	}

	delete(a.cnpProposals, conversationID)
}

func (a *Agent) handleIncidentReport(m messaging.Message) {
	location, _ := m.Content.Fields["location"].(roadnet.Point)
	incidentType, ok := m.Content.String("incident_type")
	if !ok {
		incidentType = "unknown"
	}
	severity, ok := m.Content.String("severity")
	if !ok {
		severity = "medium"
	}

	a.ActiveIncidents = append(a.ActiveIncidents, Incident{
		Location:   location,
		Type:       incidentType,
		Severity:   severity,
		ReportedBy: m.Sender,
		Timestamp:  a.Core.CurrentTime,
	})
}

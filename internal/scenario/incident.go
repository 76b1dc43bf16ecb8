package scenario

import (
	"github.com/MDylan95/sma-trafic/internal/messaging"
	"github.com/MDylan95/sma-trafic/internal/roadnet"
	"github.com/MDylan95/sma-trafic/internal/world"
)

// notificationRadius is how far from the incident's center an
// intersection or vehicle must be to receive the congestion/incident
// inform broadcast.
const notificationRadius = 1000.0

// rebroadcastInterval re-notifies intersections while the incident is
// still active, so late-arriving intersections also learn of it.
const rebroadcastInterval = 60.0

type blockedEdge struct{ a, b string }

// Incident blocks a named road corridor for a fixed window, notifying
// the crisis manager and every nearby intersection/vehicle so they can
// reroute around it, then restores the corridor when the window ends.
type Incident struct {
	ScenarioName        string
	StartTime           float64
	Duration            float64
	BlockedRoadName     string
	AlternativeRoadName string
	From, To            roadnet.Point

	active             bool
	resolved           bool
	blockedEdges       []blockedEdge
	vehiclesRedirected int
	messagesSent       int
	lastRebroadcast    float64
}

// NewIncident creates an incident scenario blocking the corridor
// nearest (from, to) for [startTime, startTime+duration).
func NewIncident(name string, startTime, duration float64, blockedRoadName, alternativeRoadName string, from, to roadnet.Point) *Incident {
	return &Incident{
		ScenarioName:        name,
		StartTime:           startTime,
		Duration:            duration,
		BlockedRoadName:     blockedRoadName,
		AlternativeRoadName: alternativeRoadName,
		From:                from,
		To:                  to,
	}
}

func (s *Incident) Name() string { return s.ScenarioName }

// Setup is a no-op; the incident has nothing to prepare before its
// trigger time.
func (s *Incident) Setup(w *world.World) {}

func (s *Incident) Step(w *world.World, tick int, simTime float64) {
	end := s.StartTime + s.Duration

	if simTime < s.StartTime {
		return
	}
	if simTime >= s.StartTime && !s.active && !s.resolved {
		s.trigger(w, simTime)
	}
	if s.active && simTime < end {
		s.monitor(w, simTime)
	}
	if s.active && simTime >= end {
		s.resolve(w)
	}
}

func (s *Incident) trigger(w *world.World, simTime float64) {
	s.active = true

	startNode := w.Network.NearestNode(s.From)
	endNode := w.Network.NearestNode(s.To)
	if startNode == nil || endNode == nil {
		return
	}
	s.blockPathBetween(w, startNode, endNode, s.StartTime+s.Duration)

	if crisisID, ok := w.CrisisManagerID(); ok {
		center := midpoint(s.From, s.To)
		w.SendSystem(crisisID, messaging.Inform, messaging.NewContent(messaging.ContentIncidentReport, map[string]any{
			"location":        center,
			"incident_type":   "vehicle_breakdown",
			"severity":        "high",
			"road_name":       s.BlockedRoadName,
			"alternative_road": s.AlternativeRoadName,
		}))
	}

	s.broadcastCongestion(w, simTime, true)
}

// blockPathBetween closes the direct edge between start and end, plus
// every edge between nodes that fall in the corridor's bounding box
// (expanded by a margin), mirroring how a single road incident can
// sever more than one lane pairing at a junction. Closures go through
// Network.AddBlockage rather than a direct RemoveEdge, so the network's
// own expiry countdown restores them at expiresAt and external
// collaborators watching BlockedEdgeIDs see the closure too.
func (s *Incident) blockPathBetween(w *world.World, start, end *roadnet.Node, expiresAt float64) {
	const margin = 50.0
	minX, maxX := minF(start.Position.X, end.Position.X)-margin, maxF(start.Position.X, end.Position.X)+margin
	minY, maxY := minF(start.Position.Y, end.Position.Y)-margin, maxF(start.Position.Y, end.Position.Y)+margin

	var inZone []string
	for _, n := range w.Network.Nodes() {
		p := n.Position
		if p.X >= minX && p.X <= maxX && p.Y >= minY && p.Y <= maxY {
			inZone = append(inZone, n.ID)
		}
	}

	for i, a := range inZone {
		for _, b := range inZone[i+1:] {
			if _, ok := w.Network.EdgeWeight(a, b); ok {
				w.Network.AddBlockage(a, b, expiresAt)
				s.blockedEdges = append(s.blockedEdges, blockedEdge{a, b})
			}
		}
	}
}

func (s *Incident) monitor(w *world.World, simTime float64) {
	if simTime-s.lastRebroadcast < rebroadcastInterval {
		return
	}
	s.lastRebroadcast = simTime
	s.broadcastCongestion(w, simTime, false)
}

// broadcastCongestion notifies every intersection within
// notificationRadius of the incident's center, and — only on the
// initial trigger — every active vehicle in range, which is how the
// original scopes vehiclesRedirected to the triggering notification
// rather than every periodic re-announcement.
func (s *Incident) broadcastCongestion(w *world.World, simTime float64, notifyVehicles bool) {
	center := midpoint(s.From, s.To)
	content := messaging.NewContent(messaging.ContentCongestionReport, map[string]any{
		"congestion_level": 1.0,
		"location":         center,
		"reason":           "incident",
		"blocked_road":     s.BlockedRoadName,
	})

	for _, ix := range w.ActiveIntersections() {
		if center.Distance(ix.Position) > notificationRadius {
			continue
		}
		w.SendSystem(ix.ID, messaging.Inform, content)
		s.messagesSent++
	}

	if !notifyVehicles {
		return
	}
	for _, v := range w.ActiveVehicles() {
		if center.Distance(v.Position) > notificationRadius {
			continue
		}
		w.SendSystem(v.ID, messaging.Inform, content)
		s.vehiclesRedirected++
	}
}

// resolve marks the incident over. The blocked edges themselves are
// restored by Network.Tick once simTime passes their expiry, since
// they were closed via AddBlockage rather than a direct RemoveEdge;
// blockedEdges is kept so Statistics still reports the closure count
// for the run.
func (s *Incident) resolve(w *world.World) {
	s.active = false
	s.resolved = true
}

func midpoint(a, b roadnet.Point) roadnet.Point {
	return roadnet.Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// Statistics reports the incident's current state and cumulative
// notification counts.
func (s *Incident) Statistics() map[string]any {
	return map[string]any{
		"name":                s.ScenarioName,
		"incident_active":     s.active,
		"blocked_edges_count": len(s.blockedEdges),
		"vehicles_redirected": s.vehiclesRedirected,
		"messages_sent":       s.messagesSent,
	}
}

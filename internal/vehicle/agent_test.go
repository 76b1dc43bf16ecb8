package vehicle

import (
	"testing"

	"github.com/MDylan95/sma-trafic/internal/messaging"
	"github.com/MDylan95/sma-trafic/internal/roadnet"
)

// stubEnv is a minimal Environment for tests.
type stubEnv struct {
	neighbors []Neighbor
	route     []roadnet.Point
	routeOK   bool
}

func (s *stubEnv) NearbyVehicles(pos roadnet.Point, radius float64, excludeID string) []Neighbor {
	return s.neighbors
}

func (s *stubEnv) FindRoute(start, end roadnet.Point) ([]roadnet.Point, bool) {
	if !s.routeOK {
		return nil, false
	}
	return s.route, true
}

func newTestAgent(env Environment) *Agent {
	return New("v1", Standard, roadnet.Point{X: 0, Y: 0}, roadnet.Point{X: 100, Y: 0}, 1.0, env, nil, nil)
}

func TestDefaultMaxSpeed(t *testing.T) {
	cases := map[Type]float64{
		Standard:  13.89,
		Ambulance: 22.22,
		Police:    22.22,
		Fire:      19.44,
		Bus:       11.11,
	}
	for typ, want := range cases {
		if got := DefaultMaxSpeed(typ); got != want {
			t.Errorf("DefaultMaxSpeed(%v) = %v, want %v", typ, got, want)
		}
	}
}

func TestIsEmergency(t *testing.T) {
	if !IsEmergency(Ambulance) || !IsEmergency(Police) || !IsEmergency(Fire) {
		t.Error("expected ambulance/police/fire to be emergency types")
	}
	if IsEmergency(Standard) || IsEmergency(Bus) {
		t.Error("expected standard/bus not to be emergency types")
	}
}

func TestDeliberate_ComputesInitialRoute(t *testing.T) {
	env := &stubEnv{routeOK: true, route: []roadnet.Point{{X: 0, Y: 0}, {X: 100, Y: 0}}}
	a := newTestAgent(env)

	intentions := a.Deliberate(a.Core)
	if len(intentions) != 1 || intentions[0].Type != "change_route" {
		t.Fatalf("Deliberate() with no route = %+v, want single change_route intention", intentions)
	}
}

func TestStep_ComputesRouteThenMoves(t *testing.T) {
	env := &stubEnv{routeOK: true, route: []roadnet.Point{{X: 0, Y: 0}, {X: 100, Y: 0}}}
	a := newTestAgent(env)

	a.Step() // discovers route
	if len(a.Route) == 0 {
		t.Fatal("expected route to be set after first step")
	}

	for i := 0; i < 20 && a.Active(); i++ {
		a.Step()
	}
	if a.DistanceTraveled == 0 {
		t.Error("expected vehicle to have traveled some distance")
	}
}

func TestStep_StopsAtDestination(t *testing.T) {
	env := &stubEnv{routeOK: true, route: []roadnet.Point{{X: 0, Y: 0}, {X: 5, Y: 0}}}
	a := New("v1", Standard, roadnet.Point{X: 0, Y: 0}, roadnet.Point{X: 5, Y: 0}, 1.0, env, nil, nil)

	for i := 0; i < 5 && a.Active(); i++ {
		a.Step()
	}
	if a.Active() {
		t.Error("expected vehicle to be inactive after reaching destination")
	}
	if a.StopsCount == 0 {
		t.Error("expected StopsCount to increment on arrival")
	}
}

func TestVehicleAhead_TriggersDeceleration(t *testing.T) {
	env := &stubEnv{
		routeOK: true,
		route:   []roadnet.Point{{X: 0, Y: 0}, {X: 100, Y: 0}},
		neighbors: []Neighbor{
			{ID: "v2", Position: roadnet.Point{X: 10, Y: 0}, Speed: 0},
		},
	}
	a := newTestAgent(env)
	a.Route = env.route
	a.Speed = 10.0

	a.Perceive(a.Core)
	intentions := a.Deliberate(a.Core)

	found := false
	for _, in := range intentions {
		if in.Type == "decelerate" {
			found = true
		}
	}
	if !found {
		t.Errorf("Deliberate() = %+v, want a decelerate intention with a slower vehicle ahead", intentions)
	}
}

func TestHighCongestion_BypassesRerouteCooldown(t *testing.T) {
	neighbors := make([]Neighbor, 15)
	for i := range neighbors {
		neighbors[i] = Neighbor{ID: "x", Position: roadnet.Point{X: 1000, Y: 1000}, Speed: 5}
	}
	env := &stubEnv{routeOK: true, route: []roadnet.Point{{X: 0, Y: 0}, {X: 100, Y: 0}}, neighbors: neighbors}
	a := newTestAgent(env)
	a.Route = env.route
	a.RouteRecalcTimer = 0 // well under the 30s cooldown

	a.Perceive(a.Core)
	intentions := a.Deliberate(a.Core)

	found := false
	for _, in := range intentions {
		if in.Type == "change_route" {
			found = true
		}
	}
	if !found {
		t.Error("expected high congestion to trigger a reroute despite cooldown")
	}
}

func TestCongestionReportMessage_BypassesRerouteCooldown(t *testing.T) {
	env := &stubEnv{routeOK: true, route: []roadnet.Point{{X: 0, Y: 0}, {X: 100, Y: 0}}}
	mailbox := messaging.NewMailbox("v1", 0)
	a := New("v1", Standard, roadnet.Point{X: 0, Y: 0}, roadnet.Point{X: 100, Y: 0}, 1.0, env, mailbox, nil)
	a.Route = env.route
	a.RouteRecalcTimer = 0 // well under the 30s cooldown

	bus := messaging.New(0)
	bus.Register(mailbox)
	sender := messaging.NewMailbox("reporter", 0)
	bus.Register(sender)
	sender.Send(messaging.New("reporter", "v1", messaging.Inform, messaging.NewContent(messaging.ContentCongestionReport, map[string]any{
		"congestion_level": 0.9,
		"reason":           "incident",
	}), 0))
	bus.Route([]string{"reporter"}, nil)

	a.Perceive(a.Core)
	intentions := a.Deliberate(a.Core)

	found := false
	for _, in := range intentions {
		if in.Type == "change_route" {
			found = true
		}
	}
	if !found {
		t.Error("expected an inbound high-congestion report to trigger a reroute despite cooldown")
	}

	a.ExecuteIntention(a.Core, intentions[0])
	if a.reportedReason != "" || a.reportedCongestion != 0 {
		t.Errorf("expected reported congestion/reason to be cleared after rerouting, got %v/%q", a.reportedCongestion, a.reportedReason)
	}
}

func TestIncidentReportMessage_BypassesRerouteCooldown(t *testing.T) {
	env := &stubEnv{routeOK: true, route: []roadnet.Point{{X: 0, Y: 0}, {X: 100, Y: 0}}}
	mailbox := messaging.NewMailbox("v1", 0)
	a := New("v1", Standard, roadnet.Point{X: 0, Y: 0}, roadnet.Point{X: 100, Y: 0}, 1.0, env, mailbox, nil)
	a.Route = env.route
	a.RouteRecalcTimer = 0

	bus := messaging.New(0)
	bus.Register(mailbox)
	sender := messaging.NewMailbox("crisis1", 0)
	bus.Register(sender)
	sender.Send(messaging.New("crisis1", "v1", messaging.Inform, messaging.NewContent(messaging.ContentIncidentReport, map[string]any{
		"incident_type": "vehicle_breakdown",
	}), 0))
	bus.Route([]string{"crisis1"}, nil)

	a.Perceive(a.Core)
	intentions := a.Deliberate(a.Core)

	found := false
	for _, in := range intentions {
		if in.Type == "change_route" {
			found = true
		}
	}
	if !found {
		t.Error("expected an inbound incident report to trigger a reroute despite cooldown")
	}
}

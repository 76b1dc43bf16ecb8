package intersection

import (
	"testing"

	"github.com/MDylan95/sma-trafic/internal/messaging"
	"github.com/MDylan95/sma-trafic/internal/roadnet"
)

// stubEnv is a minimal Environment for tests.
type stubEnv struct {
	vehicles  []VehicleSnapshot
	positions map[string]roadnet.Point
}

func (s *stubEnv) VehiclesNear(pos roadnet.Point, radius float64) []VehicleSnapshot {
	return s.vehicles
}

func (s *stubEnv) Position(agentID string) (roadnet.Point, bool) {
	p, ok := s.positions[agentID]
	return p, ok
}

func newTestAgent(env Environment) *Agent {
	return New("i1", roadnet.Point{X: 0, Y: 0}, nil, 1.0, false, env, messaging.NewMailbox("i1", 0), nil, nil)
}

func TestNew_InitializesNSGreenEWRed(t *testing.T) {
	a := newTestAgent(&stubEnv{})
	if a.Lights[North] != Green || a.Lights[South] != Green {
		t.Errorf("expected NS green at start, got %v", a.Lights)
	}
	if a.Lights[East] != Red || a.Lights[West] != Red {
		t.Errorf("expected EW red at start, got %v", a.Lights)
	}
}

func TestCountVehicles_ClassifiesByApproach(t *testing.T) {
	env := &stubEnv{vehicles: []VehicleSnapshot{
		{ID: "v1", Position: roadnet.Point{X: 30, Y: 0}},  // east
		{ID: "v2", Position: roadnet.Point{X: -30, Y: 0}}, // west
		{ID: "v3", Position: roadnet.Point{X: 0, Y: 30}},  // north
	}}
	a := newTestAgent(env)
	a.Perceive(a.Core)

	if a.QueueLengths[East] != 1 || a.QueueLengths[West] != 1 || a.QueueLengths[North] != 1 {
		t.Errorf("QueueLengths = %+v, want 1 each for east/west/north", a.QueueLengths)
	}
}

func TestMaxPressureDecision_RespectsMinGreenTime(t *testing.T) {
	a := newTestAgent(&stubEnv{})
	a.Core.CurrentTime = 5
	if a.shouldChangePhase() {
		t.Error("expected no phase change before min_green_time elapses")
	}
}

func TestMaxPressureDecision_ChangesUnderPressure(t *testing.T) {
	vehicles := make([]VehicleSnapshot, 0, 20)
	for i := 0; i < 20; i++ {
		vehicles = append(vehicles, VehicleSnapshot{ID: "v", Position: roadnet.Point{X: 30, Y: 0}})
	}
	env := &stubEnv{vehicles: vehicles}
	a := newTestAgent(env)

	for i := 0; i < int(minGreenTime)+1; i++ {
		a.Step()
	}

	foundChange := false
	for _, rec := range a.Core.ActionHistory() {
		if rec.Intention == "change_light_timing" && rec.Success {
			foundChange = true
		}
	}
	if !foundChange {
		t.Error("expected heavy EW pressure to eventually force a phase change")
	}
	if a.Lights[East] != Green && a.Lights[West] != Green {
		t.Errorf("expected EW green after pressure-driven change, got %+v", a.Lights)
	}
}

func TestForceGreen_BlockedWithinMinGreenTime(t *testing.T) {
	a := newTestAgent(&stubEnv{})
	a.LightTimers[North] = 1.0 // NS just turned green

	if a.forceGreen(East) {
		t.Error("expected forceGreen to be blocked before min_green_time")
	}
	if a.Lights[East] == Green {
		t.Error("EW should still be red")
	}
}

func TestForceGreen_SucceedsAfterMinGreenTime(t *testing.T) {
	a := newTestAgent(&stubEnv{})
	a.LightTimers[North] = minGreenTime + 1
	a.LightTimers[South] = minGreenTime + 1

	if !a.forceGreen(East) {
		t.Fatal("expected forceGreen to succeed")
	}
	if a.Lights[East] != Green || a.Lights[West] != Green {
		t.Errorf("expected EW green after forceGreen, got %+v", a.Lights)
	}
	if a.Lights[North] != Red || a.Lights[South] != Red {
		t.Errorf("expected NS red after forceGreen, got %+v", a.Lights)
	}
}

func TestHandleEmergencyPriority_ForcesGreenAndAcks(t *testing.T) {
	bus := messaging.New(0)
	mbI1 := messaging.NewMailbox("i1", 0)
	mbV1 := messaging.NewMailbox("v1", 0)
	bus.Register(mbI1)
	bus.Register(mbV1)

	a := New("i1", roadnet.Point{X: 0, Y: 0}, nil, 1.0, false, &stubEnv{}, mbI1, nil, nil)
	a.LightTimers[North] = minGreenTime + 1
	a.LightTimers[South] = minGreenTime + 1

	content := messaging.NewContent(messaging.ContentEmergencyPriority, map[string]any{
		"vehicle_position": roadnet.Point{X: 40, Y: 0},
		"vehicle_type":     "ambulance",
	})
	mbV1.Send(messaging.New("v1", "i1", messaging.Request, content, 0))
	bus.Route([]string{"v1", "i1"}, nil)

	a.processMessages(a.Core)

	if a.Lights[East] != Green {
		t.Errorf("expected east approach forced green, got %+v", a.Lights)
	}

	bus.Route([]string{"i1"}, nil)
	acked := false
	for _, in := range mbV1.Drain() {
		if in.Content.Type == messaging.ContentEmergencyAck {
			acked = true
		}
	}
	if !acked {
		t.Error("expected an emergency_acknowledged reply delivered back to the vehicle")
	}
}

func TestHandleCFP_ProposesWhenAvailable(t *testing.T) {
	bus := messaging.New(0)
	mbI1 := messaging.NewMailbox("i1", 0)
	mbCrisis := messaging.NewMailbox("crisis", 0)
	bus.Register(mbI1)
	bus.Register(mbCrisis)

	a := New("i1", roadnet.Point{X: 0, Y: 0}, nil, 1.0, false, &stubEnv{}, mbI1, nil, nil)

	content := messaging.NewContent(messaging.ContentCallForProposals, map[string]any{"task": "priority_delegation"})
	mbCrisis.Send(messaging.New("crisis", "i1", messaging.Request, content, 0))
	bus.Route([]string{"crisis", "i1"}, nil)

	a.processMessages(a.Core)

	bus.Route([]string{"i1"}, nil)
	proposed := false
	for _, in := range mbCrisis.Drain() {
		if in.Performative == messaging.Propose {
			proposed = true
		}
	}
	if !proposed {
		t.Error("expected a proposal delivered back to the crisis manager")
	}
}

func TestBroadcastStateToNeighbors_QueuesOneMessagePerNeighbor(t *testing.T) {
	bus := messaging.New(0)
	mbI1 := messaging.NewMailbox("i1", 0)
	mbI2 := messaging.NewMailbox("i2", 0)
	bus.Register(mbI1)
	bus.Register(mbI2)

	env := &stubEnv{positions: map[string]roadnet.Point{"i2": {X: 100, Y: 0}}}
	a := New("i1", roadnet.Point{X: 0, Y: 0}, nil, 1.0, false, env, mbI1, nil, nil)
	a.AddNeighbor("i2")

	if !a.broadcastStateToNeighbors() {
		t.Fatal("broadcastStateToNeighbors() = false")
	}
	bus.Route([]string{"i1"}, nil)

	got := mbI2.Drain()
	if len(got) != 1 || got[0].Content.Type != messaging.ContentNeighborState {
		t.Errorf("i2 inbox = %+v, want one neighbor_state message", got)
	}
	if a.CoordinationMessages != 1 {
		t.Errorf("CoordinationMessages = %d, want 1", a.CoordinationMessages)
	}
}

func TestGreenWave_SchedulesWhenNeighborFlowArrivesSoon(t *testing.T) {
	a := newTestAgent(&stubEnv{})
	a.LightTimers[North] = minGreenTime + 1
	a.LightTimers[South] = minGreenTime + 1
	a.Core.CurrentTime = 100

	a.NeighborStates["i2"] = NeighborState{
		Phase:           PhaseEW,
		PhaseTimerLeft:  5,
		OutflowEstimate: 4,
		Position:        roadnet.Point{X: 10, Y: 0},
		Timestamp:       100,
	}
	a.Neighbors = []string{"i2"}

	a.applyNeighborCoordination()

	if !a.GreenWaveActive {
		t.Error("expected an imminent neighbor flow to force an immediate green wave")
	}
	if a.Lights[East] != Green {
		t.Errorf("expected EW green under the scheduled wave, got %+v", a.Lights)
	}
}

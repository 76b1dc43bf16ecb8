package crisis

import (
	"testing"

	"github.com/MDylan95/sma-trafic/internal/messaging"
	"github.com/MDylan95/sma-trafic/internal/roadnet"
)

type stubEnv struct {
	vehicles      []EmergencyVehicleInfo
	intersections []IntersectionInfo
}

func (s *stubEnv) ActiveEmergencyVehicles() []EmergencyVehicleInfo { return s.vehicles }
func (s *stubEnv) Intersections() []IntersectionInfo               { return s.intersections }
func (s *stubEnv) IntersectionByID(id string) (IntersectionInfo, bool) {
	for _, ix := range s.intersections {
		if ix.ID == id {
			return ix, true
		}
	}
	return IntersectionInfo{}, false
}

func TestAssessGlobalCongestion_Levels(t *testing.T) {
	cases := []struct {
		queueTotal int
		want       string
	}{
		{2, "low"},
		{6, "medium"},
		{10, "high"},
		{20, "critical"},
	}
	for _, tc := range cases {
		env := &stubEnv{intersections: []IntersectionInfo{{ID: "i1", QueueLengths: map[string]int{"north": tc.queueTotal}}}}
		a := New("crisis", 1.0, env, nil, nil)
		info := a.assessGlobalCongestion()
		if info.Level != tc.want {
			t.Errorf("queueTotal=%d: Level = %q, want %q", tc.queueTotal, info.Level, tc.want)
		}
	}
}

func TestDeliberate_EmergencyVehicleTriggersGreenWaveIntention(t *testing.T) {
	env := &stubEnv{vehicles: []EmergencyVehicleInfo{
		{ID: "amb1", Type: "ambulance", Position: roadnet.Point{X: 0, Y: 0}},
	}}
	a := New("crisis", 1.0, env, messaging.NewMailbox("crisis", 0), nil)
	a.Perceive(a.Core)
	intentions := a.Deliberate(a.Core)

	found := false
	for _, in := range intentions {
		if in.Type == "broadcast_congestion" && in.Parameters["action"] == "create_green_wave" {
			found = true
		}
	}
	if !found {
		t.Errorf("Deliberate() = %+v, want a create_green_wave intention", intentions)
	}
}

func TestCreateGreenWave_NotifiesNearbyIntersections(t *testing.T) {
	bus := messaging.New(0)
	mbCrisis := messaging.NewMailbox("crisis", 0)
	mbI1 := messaging.NewMailbox("i1", 0)
	mbI2 := messaging.NewMailbox("i2", 0)
	bus.Register(mbCrisis)
	bus.Register(mbI1)
	bus.Register(mbI2)

	env := &stubEnv{intersections: []IntersectionInfo{
		{ID: "i1", Position: roadnet.Point{X: 10, Y: 0}},  // within 300m
		{ID: "i2", Position: roadnet.Point{X: 1000, Y: 0}}, // far away
	}}
	a := New("crisis", 1.0, env, mbCrisis, nil)

	ok := a.createGreenWave(map[string]any{
		"vehicle_id":       "amb1",
		"vehicle_type":     "ambulance",
		"vehicle_position": roadnet.Point{X: 0, Y: 0},
		"route":            []roadnet.Point{},
	})
	if !ok {
		t.Fatal("createGreenWave() = false, want true")
	}
	bus.Route([]string{"crisis"}, nil)

	if len(mbI1.Drain()) != 1 {
		t.Error("expected i1 (within radius) to receive an emergency_priority request")
	}
	if len(mbI2.Drain()) != 0 {
		t.Error("expected i2 (out of radius) to receive nothing")
	}
	if a.GreenWavesCreated != 1 {
		t.Errorf("GreenWavesCreated = %d, want 1", a.GreenWavesCreated)
	}
}

func TestEvaluateCNPProposal_AcceptsBestAndRejectsRest(t *testing.T) {
	bus := messaging.New(0)
	mbCrisis := messaging.NewMailbox("crisis", 0)
	mbI1 := messaging.NewMailbox("i1", 0)
	mbI2 := messaging.NewMailbox("i2", 0)
	bus.Register(mbCrisis)
	bus.Register(mbI1)
	bus.Register(mbI2)

	a := New("crisis", 1.0, &stubEnv{}, mbCrisis, nil)

	p1 := messaging.New("i1", "crisis", messaging.Propose,
		messaging.NewContent(messaging.ContentProposal, map[string]any{"availability": 0.4, "current_load": 5.0}), 0).
		WithProtocol("contract-net", "conv1")
	p2 := messaging.New("i2", "crisis", messaging.Propose,
		messaging.NewContent(messaging.ContentProposal, map[string]any{"availability": 0.9, "current_load": 1.0}), 0).
		WithProtocol("contract-net", "conv1")

	a.evaluateCNPProposal(p1)
	a.evaluateCNPProposal(p2)
	bus.Route([]string{"crisis"}, nil)

	accepted := false
	for _, m := range mbI2.Drain() {
		if m.Performative == messaging.AcceptProposal {
			accepted = true
		}
	}
	rejected := false
	for _, m := range mbI1.Drain() {
		if m.Performative == messaging.RejectProposal {
			rejected = true
		}
	}
	if !accepted {
		t.Error("expected i2 (higher availability) to receive accept-proposal")
	}
	if !rejected {
		t.Error("expected i1 (lower availability) to receive reject-proposal")
	}
	if _, pending := a.cnpProposals["conv1"]; pending {
		t.Error("expected conversation to be cleared after evaluation")
	}
}

func TestHandleIncidentReport_RecordsIncident(t *testing.T) {
	a := New("crisis", 1.0, &stubEnv{}, nil, nil)
	content := messaging.NewContent(messaging.ContentIncidentReport, map[string]any{
		"location":      roadnet.Point{X: 5, Y: 5},
		"incident_type": "accident",
		"severity":      "high",
	})
	a.handleIncidentReport(messaging.New("sensor1", "crisis", messaging.Inform, content, 0))

	if len(a.ActiveIncidents) != 1 || a.ActiveIncidents[0].Severity != "high" {
		t.Errorf("ActiveIncidents = %+v, want one high-severity incident", a.ActiveIncidents)
	}
}

package messaging

import "testing"

func TestNew_SetsFields(t *testing.T) {
	c := NewContent(ContentIncidentReport, map[string]any{"severity": 0.8})
	m := New("vehicle-1", "intersection-5", Inform, c, 12.0)

	if m.Sender != "vehicle-1" || m.Receiver != "intersection-5" {
		t.Fatalf("sender/receiver = %q/%q", m.Sender, m.Receiver)
	}
	if m.Performative != Inform {
		t.Errorf("performative = %v, want inform", m.Performative)
	}
	if m.Timestamp != 12.0 {
		t.Errorf("timestamp = %v, want 12.0", m.Timestamp)
	}
	if m.ID == "" {
		t.Error("expected non-empty message id")
	}
}

func TestCreateReply_SwapsSenderReceiver(t *testing.T) {
	req := New("vehicle-1", "intersection-5", Request, NewContent(ContentOpaque, nil), 1.0)
	req = req.WithProtocol("contract-net", "conv-1")

	reply := req.CreateReply(Agree, NewContent(ContentOpaque, nil), 2.0)

	if reply.Sender != "intersection-5" || reply.Receiver != "vehicle-1" {
		t.Fatalf("reply sender/receiver = %q/%q, want swapped", reply.Sender, reply.Receiver)
	}
	if reply.ReplyTo != req.ID {
		t.Errorf("reply.ReplyTo = %q, want %q", reply.ReplyTo, req.ID)
	}
	if reply.Protocol != "contract-net" || reply.ConversationID != "conv-1" {
		t.Errorf("reply did not carry over protocol/conversation id: %+v", reply)
	}
}

func TestIsBroadcast(t *testing.T) {
	unicast := New("a", "b", Inform, NewContent(ContentOpaque, nil), 0)
	broadcast := New("a", Broadcast, Inform, NewContent(ContentOpaque, nil), 0)

	if unicast.IsBroadcast() {
		t.Error("unicast message reported as broadcast")
	}
	if !broadcast.IsBroadcast() {
		t.Error("broadcast message not reported as broadcast")
	}
}

func TestContent_TypedAccessors(t *testing.T) {
	c := NewContent(ContentCongestionReport, map[string]any{
		"index":   0.73,
		"road_id": "main_street",
		"severe":  true,
	})

	if v, ok := c.Float64("index"); !ok || v != 0.73 {
		t.Errorf("Float64(index) = %v, %v, want 0.73, true", v, ok)
	}
	if v, ok := c.String("road_id"); !ok || v != "main_street" {
		t.Errorf("String(road_id) = %v, %v, want main_street, true", v, ok)
	}
	if v, ok := c.Bool("severe"); !ok || !v {
		t.Errorf("Bool(severe) = %v, %v, want true, true", v, ok)
	}
	if _, ok := c.Float64("missing"); ok {
		t.Error("Float64(missing) ok = true, want false")
	}
}

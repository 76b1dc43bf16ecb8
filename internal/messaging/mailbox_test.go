package messaging

import "testing"

func TestMailbox_SendDoesNotDeliverImmediately(t *testing.T) {
	mb := NewMailbox("vehicle-1", 10)
	mb.Send(New("vehicle-1", "vehicle-2", Inform, NewContent(ContentOpaque, nil), 0))

	if got := mb.Drain(); len(got) != 0 {
		t.Fatalf("Drain() before routing = %d messages, want 0", len(got))
	}
}

func TestMailbox_DeliverAndDrain(t *testing.T) {
	mb := NewMailbox("vehicle-1", 10)
	m1 := New("a", "vehicle-1", Inform, NewContent(ContentOpaque, nil), 0)
	m2 := New("b", "vehicle-1", Inform, NewContent(ContentOpaque, nil), 1)

	mb.deliver(m1)
	mb.deliver(m2)

	got := mb.Drain()
	if len(got) != 2 {
		t.Fatalf("Drain() = %d messages, want 2", len(got))
	}
	if got[0].ID != m1.ID || got[1].ID != m2.ID {
		t.Error("Drain() did not preserve FIFO order")
	}
	if got2 := mb.Drain(); len(got2) != 0 {
		t.Errorf("second Drain() = %d messages, want 0 (inbox should be cleared)", len(got2))
	}
}

func TestMailbox_EvictsOldestWhenFull(t *testing.T) {
	mb := NewMailbox("vehicle-1", 2)
	oldest := New("a", "vehicle-1", Inform, NewContent(ContentOpaque, nil), 0)
	middle := New("b", "vehicle-1", Inform, NewContent(ContentOpaque, nil), 1)
	newest := New("c", "vehicle-1", Inform, NewContent(ContentOpaque, nil), 2)

	mb.deliver(oldest)
	mb.deliver(middle)
	mb.deliver(newest)

	got := mb.Drain()
	if len(got) != 2 {
		t.Fatalf("Drain() = %d messages, want 2", len(got))
	}
	if got[0].ID != middle.ID || got[1].ID != newest.ID {
		t.Error("expected oldest message to be evicted, keeping middle and newest")
	}
	if stats := mb.Stats(); stats.Evicted != 1 {
		t.Errorf("Stats().Evicted = %d, want 1", stats.Evicted)
	}
}

func TestMailbox_DrainOutboxClears(t *testing.T) {
	mb := NewMailbox("vehicle-1", 10)
	mb.Send(New("vehicle-1", "vehicle-2", Inform, NewContent(ContentOpaque, nil), 0))
	mb.Send(New("vehicle-1", "vehicle-3", Inform, NewContent(ContentOpaque, nil), 1))

	out := mb.drainOutbox()
	if len(out) != 2 {
		t.Fatalf("drainOutbox() = %d messages, want 2", len(out))
	}
	if out2 := mb.drainOutbox(); len(out2) != 0 {
		t.Errorf("second drainOutbox() = %d messages, want 0", len(out2))
	}
}

func TestMailbox_DefaultSize(t *testing.T) {
	mb := NewMailbox("vehicle-1", 0)
	if mb.maxInbox != DefaultMailboxSize {
		t.Errorf("maxInbox = %d, want %d", mb.maxInbox, DefaultMailboxSize)
	}
}

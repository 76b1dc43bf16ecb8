package messaging

import (
	"math"
	"sync"
)

// DefaultBroadcastRadius is the default spatial range, in simulation
// distance units (meters), within which a Broadcast message reaches
// other agents.
const DefaultBroadcastRadius = 500.0

// Positioner resolves an agent's current position so the bus can decide
// which agents fall within range of a broadcast. world.World provides
// one through its BusPositioner adapter.
type Positioner interface {
	Position(agentID string) (x, y float64, ok bool)
}

// Stats summarizes a bus's routing activity. The counters are cumulative
// over the bus's lifetime; nothing resets them.
type Stats struct {
	Delivered        int
	Dropped          int
	ByPerformative   map[Performative]int
}

// Bus routes messages between agent mailboxes once per tick, after every
// agent has run its execute phase and queued its outbound traffic. It
// does not own the mailboxes it routes between; agents register their
// own Mailbox and the bus looks it up by id at routing time.
type Bus struct {
	mu       sync.Mutex
	radius   float64
	mailboxes map[string]*Mailbox
	stats    Stats
}

// New creates a Bus with the given broadcast radius. A radius of 0 uses
// DefaultBroadcastRadius.
func New(radius float64) *Bus {
	if radius <= 0 {
		radius = DefaultBroadcastRadius
	}
	return &Bus{
		radius:    radius,
		mailboxes: make(map[string]*Mailbox),
		stats:     Stats{ByPerformative: make(map[Performative]int)},
	}
}

// Register adds mb to the set of mailboxes the bus can route to and
// from. Vehicles register on entering the simulation and unregister on
// exit.
func (b *Bus) Register(mb *Mailbox) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mailboxes[mb.AgentID()] = mb
}

// Unregister removes an agent's mailbox from the bus. Any messages
// already queued in its outbox are dropped; any message addressed to it
// after removal is silently dropped as an unknown receiver.
func (b *Bus) Unregister(agentID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.mailboxes, agentID)
}

// Route drains every mailbox's outbox, in the given activation order,
// and delivers each message to its destination mailbox(es). Within one
// agent's outbox, messages are delivered in FIFO send order; across
// agents, an earlier entry in order is fully routed before the next
// agent's outbox is drained, so earlier-activated agents' messages are
// always delivered first. positions is consulted only for Broadcast
// messages; it may be nil if no agent ever broadcasts.
func (b *Bus) Route(order []string, positions Positioner) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, senderID := range order {
		sender, ok := b.mailboxes[senderID]
		if !ok {
			continue
		}
		for _, m := range sender.drainOutbox() {
			b.stats.ByPerformative[m.Performative]++
			if m.IsBroadcast() {
				b.routeBroadcastLocked(m, positions)
				continue
			}
			dest, ok := b.mailboxes[m.Receiver]
			if !ok {
				b.stats.Dropped++
				continue
			}
			dest.deliver(m)
			b.stats.Delivered++
		}
	}
}

func (b *Bus) routeBroadcastLocked(m Message, positions Positioner) {
	if positions == nil {
		b.stats.Dropped++
		return
	}
	sx, sy, ok := positions.Position(m.Sender)
	if !ok {
		b.stats.Dropped++
		return
	}
	delivered := false
	for id, mb := range b.mailboxes {
		if id == m.Sender {
			continue
		}
		x, y, ok := positions.Position(id)
		if !ok {
			continue
		}
		if distance(sx, sy, x, y) > b.radius {
			continue
		}
		mb.deliver(m)
		delivered = true
	}
	if delivered {
		b.stats.Delivered++
	} else {
		b.stats.Dropped++
	}
}

func distance(x1, y1, x2, y2 float64) float64 {
	dx, dy := x1-x2, y1-y2
	return math.Sqrt(dx*dx + dy*dy)
}

// Stats returns a snapshot of the bus's cumulative routing counters.
func (b *Bus) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	cp := Stats{
		Delivered: b.stats.Delivered,
		Dropped:   b.stats.Dropped,
		ByPerformative: make(map[Performative]int, len(b.stats.ByPerformative)),
	}
	for k, v := range b.stats.ByPerformative {
		cp.ByPerformative[k] = v
	}
	return cp
}

// Package messaging implements the agent communication layer: FIPA-ACL
// style messages, per-agent mailboxes, and a tick-scoped bus that routes
// unicast and spatial-broadcast traffic between agents.
package messaging

import (
	"github.com/google/uuid"
)

// Performative names the illocutionary force of a message, following the
// subset of FIPA-ACL performatives the simulator's agents actually use.
type Performative string

const (
	Inform          Performative = "inform"
	QueryRef        Performative = "query-ref"
	Request         Performative = "request"
	Propose         Performative = "propose"
	AcceptProposal  Performative = "accept-proposal"
	RejectProposal  Performative = "reject-proposal"
	Agree           Performative = "agree"
	Refuse          Performative = "refuse"
	Failure         Performative = "failure"
)

// Broadcast, used as a Message's Receiver, asks the bus to deliver the
// message to every agent within the bus's broadcast radius (see New and
// DefaultBroadcastRadius) of the sender instead of to a single named
// receiver.
const Broadcast = "broadcast"

// ContentType tags the payload of a Message so handlers can switch on it
// without type-asserting into an untyped map.
type ContentType string

const (
	ContentNeighborState         ContentType = "neighbor_state"
	ContentCongestionReport      ContentType = "congestion_report"
	ContentIncidentReport        ContentType = "incident_report"
	ContentEmergencyPriority     ContentType = "emergency_priority"
	ContentEmergencyAck          ContentType = "emergency_acknowledged"
	ContentCallForProposals      ContentType = "call_for_proposals"
	ContentProposal              ContentType = "proposal"
	ContentTaskAssignment        ContentType = "task_assignment"
	ContentOpaque                ContentType = "opaque"
)

// Content is the payload carried by a Message. Fields holds the
// type-specific data as a flat key/value map; Type identifies which
// shape Fields is expected to have. Handlers should switch on Type and
// use the typed accessors below rather than indexing Fields directly.
type Content struct {
	Type   ContentType
	Fields map[string]any
}

// NewContent builds a Content value of the given type from a set of
// fields.
func NewContent(t ContentType, fields map[string]any) Content {
	if fields == nil {
		fields = map[string]any{}
	}
	return Content{Type: t, Fields: fields}
}

// Float64 returns Fields[key] as a float64, or ok=false if absent or of
// the wrong type.
func (c Content) Float64(key string) (float64, bool) {
	v, ok := c.Fields[key]
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

// String returns Fields[key] as a string, or ok=false if absent or of
// the wrong type.
func (c Content) String(key string) (string, bool) {
	v, ok := c.Fields[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Bool returns Fields[key] as a bool, or ok=false if absent or of the
// wrong type.
func (c Content) Bool(key string) (bool, bool) {
	v, ok := c.Fields[key]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// Message is an immutable unit of agent-to-agent communication. Once
// constructed, a Message is never mutated; replies are built with
// CreateReply.
type Message struct {
	ID             string
	Sender         string
	Receiver       string
	Performative   Performative
	Content        Content
	Protocol       string
	ConversationID string
	ReplyTo        string
	ReplyBy        *float64
	Timestamp      float64
}

// New constructs a Message. tick is the simulation time (seconds) at
// which the message is sent, recorded as Timestamp.
func New(sender, receiver string, perf Performative, content Content, tick float64) Message {
	return Message{
		ID:           uuid.New().String(),
		Sender:       sender,
		Receiver:     receiver,
		Performative: perf,
		Content:      content,
		Timestamp:    tick,
	}
}

// WithProtocol returns a copy of m tagged with a protocol name (e.g.
// "contract-net") and conversation id, used to correlate a multi-message
// exchange.
func (m Message) WithProtocol(protocol, conversationID string) Message {
	m.Protocol = protocol
	m.ConversationID = conversationID
	return m
}

// WithReplyBy returns a copy of m with a reply deadline, expressed as an
// absolute simulation timestamp.
func (m Message) WithReplyBy(deadline float64) Message {
	m.ReplyBy = &deadline
	return m
}

// CreateReply builds a reply to m: sender and receiver are swapped,
// ReplyTo is set to m's ID, and protocol/conversation id are carried
// over so the exchange remains correlated.
func (m Message) CreateReply(perf Performative, content Content, tick float64) Message {
	reply := New(m.Receiver, m.Sender, perf, content, tick)
	reply.ReplyTo = m.ID
	reply.Protocol = m.Protocol
	reply.ConversationID = m.ConversationID
	return reply
}

// IsBroadcast reports whether m targets every agent in range rather
// than a single named receiver.
func (m Message) IsBroadcast() bool {
	return m.Receiver == Broadcast
}

package bdi

import "sort"

// DefaultBeliefValidity is how long a belief remains trusted, in
// simulated seconds, before it is dropped as stale.
const DefaultBeliefValidity = 10.0

// Behavior supplies the domain-specific parts of the BDI cycle. Core
// drives perceive/generate-desires/deliberate/execute; each agent type
// (vehicle, intersection, crisis manager) implements Behavior to
// supply its own beliefs, desires, and intentions.
type Behavior interface {
	// Perceive updates beliefs on c from the environment and any
	// received messages.
	Perceive(c *Core)
	// GenerateDesires adds or updates desires on c based on current
	// beliefs.
	GenerateDesires(c *Core)
	// Deliberate returns new intentions derived from c's current
	// desires.
	Deliberate(c *Core) []Intention
	// ExecuteIntention carries out one intention and reports whether
	// it succeeded.
	ExecuteIntention(c *Core, in Intention) bool
}

// Core holds one agent's belief store, desire queue, and in-flight
// intentions, and drives the BDI cycle over a Behavior. It is not safe
// for concurrent use; each agent's Core is only ever stepped by the
// scheduler that owns it.
type Core struct {
	ID          string
	Active      bool
	CurrentTime float64

	beliefs       map[BeliefType]Belief
	desires       []Desire
	intentions    []Intention
	actionHistory []ActionRecord
}

// NewCore creates a Core for the given agent id, active from the
// start.
func NewCore(id string) *Core {
	return &Core{
		ID:      id,
		Active:  true,
		beliefs: make(map[BeliefType]Belief),
	}
}

// UpdateBelief records or overwrites a belief, timestamped at the
// core's current time.
func (c *Core) UpdateBelief(t BeliefType, value any, confidence float64, source string) {
	c.beliefs[t] = Belief{
		Type:       t,
		Value:      value,
		Confidence: confidence,
		Timestamp:  c.CurrentTime,
		Source:     source,
	}
}

// Belief returns the raw Belief for t and whether it is present.
func (c *Core) Belief(t BeliefType) (Belief, bool) {
	b, ok := c.beliefs[t]
	return b, ok
}

// BeliefValue returns the value of belief t, or nil if absent.
func (c *Core) BeliefValue(t BeliefType) any {
	b, ok := c.beliefs[t]
	if !ok {
		return nil
	}
	return b.Value
}

// RemoveOutdatedBeliefs drops any belief whose validity window has
// expired as of the core's current time.
func (c *Core) RemoveOutdatedBeliefs(validityDuration float64) {
	for t, b := range c.beliefs {
		if !b.IsValid(c.CurrentTime, validityDuration) {
			delete(c.beliefs, t)
		}
	}
}

// AddDesire appends d to the desire queue.
func (c *Core) AddDesire(d Desire) {
	c.desires = append(c.desires, d)
}

// Desires returns the current desire queue.
func (c *Core) Desires() []Desire {
	return c.desires
}

// FilterDesires drops satisfied desires and sorts the remainder by
// descending priority.
func (c *Core) FilterDesires() {
	kept := c.desires[:0]
	for _, d := range c.desires {
		if !d.Satisfied {
			kept = append(kept, d)
		}
	}
	c.desires = kept
	sort.SliceStable(c.desires, func(i, j int) bool {
		return c.desires[i].Priority > c.desires[j].Priority
	})
}

// AddIntention appends in to the pending intention set.
func (c *Core) AddIntention(in Intention) {
	in.Status = StatusPending
	c.intentions = append(c.intentions, in)
}

// Intentions returns the current intention set.
func (c *Core) Intentions() []Intention {
	return c.intentions
}

// ActionHistory returns the log of executed intentions.
func (c *Core) ActionHistory() []ActionRecord {
	return c.actionHistory
}

// executeIntentions runs every pending intention through behavior,
// records the outcome, and discards completed/failed intentions.
func (c *Core) executeIntentions(behavior Behavior) {
	for i := range c.intentions {
		in := &c.intentions[i]
		if in.Status != StatusPending {
			continue
		}
		in.Status = StatusExecuting
		success := behavior.ExecuteIntention(c, *in)
		if success {
			in.Status = StatusCompleted
		} else {
			in.Status = StatusFailed
		}
		c.actionHistory = append(c.actionHistory, ActionRecord{
			Time:       c.CurrentTime,
			Intention:  in.Type,
			Success:    success,
			Parameters: in.Parameters,
		})
	}

	remaining := c.intentions[:0]
	for _, in := range c.intentions {
		if in.Status != StatusCompleted && in.Status != StatusFailed {
			remaining = append(remaining, in)
		}
	}
	c.intentions = remaining
}

// Step runs one full BDI cycle: perceive, generate desires, deliberate,
// execute intentions, then advances CurrentTime by timeStep. It is a
// no-op if the core is inactive.
func (c *Core) Step(behavior Behavior, timeStep float64) {
	if !c.Active {
		return
	}

	behavior.Perceive(c)
	c.RemoveOutdatedBeliefs(DefaultBeliefValidity)

	behavior.GenerateDesires(c)
	c.FilterDesires()

	for _, in := range behavior.Deliberate(c) {
		c.AddIntention(in)
	}

	c.executeIntentions(behavior)

	c.CurrentTime += timeStep
}

package intersection

import (
	"log/slog"
	"math"
	"math/rand"
	"strconv"

	"github.com/MDylan95/sma-trafic/internal/bdi"
	"github.com/MDylan95/sma-trafic/internal/messaging"
	"github.com/MDylan95/sma-trafic/internal/roadnet"
)

// CongestionInfo summarizes queueing at an intersection, derived each
// tick from the vehicles detected near it.
type CongestionInfo struct {
	Level    string // "low", "medium", "high"
	MaxQueue int
	Queues   map[Direction]int
}

// LightSnapshot is the traffic-state belief content: the current
// aspect and elapsed timer for every controlled direction.
type LightSnapshot struct {
	Lights map[Direction]LightState
	Timers map[Direction]float64
}

// Agent controls one signalized intersection: a two-phase (NS/EW)
// light cycle chosen by Max-Pressure or Q-Learning, coordinated with
// neighboring intersections into green waves, and pre-empted by
// emergency vehicles or a Contract-Net delegation.
type Agent struct {
	Core    *bdi.Core
	Mailbox *messaging.Mailbox

	ID         string
	Position   roadnet.Point
	Directions []Direction
	TimeStep   float64

	Lights         map[Direction]LightState
	LightTimers    map[Direction]float64
	GreenDurations map[Direction]float64
	QueueLengths   map[Direction]int

	Neighbors      []string
	NeighborStates map[string]NeighborState

	GreenWaveOffset float64
	GreenWavePhase  Phase
	GreenWaveActive bool
	GreenWaveTimer  float64
	syncTimer       float64

	UseQLearning         bool
	QTable               map[string]qValues
	Epsilon              float64
	PreviousState        string
	PreviousAction       qAction
	PreviousTotalWaiting float64

	TotalVehiclesProcessed int
	TotalWaitingTime       float64
	PhaseChanges           int
	CoordinationMessages   int

	env    Environment
	logger *slog.Logger
	rng    *rand.Rand
}

// New creates an intersection agent at position, controlling
// directions (defaulting to all four approaches) and choosing its
// phase policy per useQLearning (Max-Pressure otherwise). rng drives
// the epsilon-greedy Q-Learning policy and should be the simulation's
// shared, config-seeded generator; a nil rng falls back to a fixed
// seed for callers that don't need reproducibility.
func New(id string, position roadnet.Point, directions []Direction, timeStep float64, useQLearning bool, env Environment, mailbox *messaging.Mailbox, logger *slog.Logger, rng *rand.Rand) *Agent {
	if directions == nil {
		directions = AllDirections
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}

	a := &Agent{
		Core:           bdi.NewCore(id),
		Mailbox:        mailbox,
		ID:             id,
		Position:       position,
		Directions:     directions,
		TimeStep:       timeStep,
		Lights:         make(map[Direction]LightState, len(directions)),
		LightTimers:    make(map[Direction]float64, len(directions)),
		GreenDurations: make(map[Direction]float64, len(directions)),
		QueueLengths:   make(map[Direction]int, len(directions)),
		NeighborStates: make(map[string]NeighborState),
		UseQLearning:   useQLearning,
		QTable:         make(map[string]qValues),
		Epsilon:        initialEpsilon,
		env:            env,
		logger:         logger,
		rng:            rng,
	}
	a.initializeLights()

	a.Core.UpdateBelief(bdi.BeliefPosition, a.Position, 1.0, "self")
	a.Core.UpdateBelief(bdi.BeliefTrafficState, "free", 1.0, "self")
	a.Core.UpdateBelief(bdi.BeliefNeighbors, []string{}, 1.0, "self")

	return a
}

func (a *Agent) initializeLights() {
	for _, d := range a.Directions {
		a.GreenDurations[d] = defaultGreenTime
		a.LightTimers[d] = 0.0
		if phaseOf(d) == PhaseNS {
			a.Lights[d] = Green
		} else {
			a.Lights[d] = Red
		}
	}
}

// Step runs one BDI cycle for the intersection.
func (a *Agent) Step() {
	a.Core.Step(a, a.TimeStep)
}

// AddNeighbor registers another intersection as adjacent, enabling
// green-wave coordination and state broadcasts between them.
func (a *Agent) AddNeighbor(neighborID string) {
	for _, n := range a.Neighbors {
		if n == neighborID {
			return
		}
	}
	a.Neighbors = append(a.Neighbors, neighborID)
	a.Core.UpdateBelief(bdi.BeliefNeighbors, append([]string{}, a.Neighbors...), 1.0, "self")
}

// RecordVehiclePassed accounts for a vehicle that has cleared the
// intersection, for throughput and average-wait statistics.
func (a *Agent) RecordVehiclePassed(waitTime float64) {
	a.TotalVehiclesProcessed++
	a.TotalWaitingTime += waitTime
}

// Stats is a point-in-time snapshot of the intersection's operation,
// used by the data collector.
type Stats struct {
	ID                   string
	Position             roadnet.Point
	TotalVehiclesProcessed int
	AverageWaitingTime   float64
	PhaseChanges         int
	CurrentQueues        map[Direction]int
	CoordinationMessages int
	NeighborsCount       int
	GreenWaveActive      bool
	NeighborStatesCount  int
}

// Stats returns the intersection's current statistics.
func (a *Agent) Stats() Stats {
	avg := 0.0
	if a.TotalVehiclesProcessed > 0 {
		avg = a.TotalWaitingTime / float64(a.TotalVehiclesProcessed)
	}
	return Stats{
		ID:                     a.ID,
		Position:               a.Position,
		TotalVehiclesProcessed: a.TotalVehiclesProcessed,
		AverageWaitingTime:     avg,
		PhaseChanges:           a.PhaseChanges,
		CurrentQueues:          cloneQueueLengths(a.QueueLengths),
		CoordinationMessages:   a.CoordinationMessages,
		NeighborsCount:         len(a.Neighbors),
		GreenWaveActive:        a.GreenWaveActive,
		NeighborStatesCount:    len(a.NeighborStates),
	}
}

// ---- bdi.Behavior ----

// Perceive counts vehicles queued on each approach, assesses the
// resulting congestion level, and drains the mailbox.
func (a *Agent) Perceive(c *bdi.Core) {
	a.countVehicles()

	maxQueue := maxOf(a.QueueLengths)
	level := "low"
	switch {
	case float64(maxQueue) > float64(congestionThreshold)*1.5:
		level = "high"
	case maxQueue > congestionThreshold:
		level = "medium"
	}
	c.UpdateBelief(bdi.BeliefCongestion, CongestionInfo{
		Level:    level,
		MaxQueue: maxQueue,
		Queues:   cloneQueueLengths(a.QueueLengths),
	}, 1.0, "self")

	c.UpdateBelief(bdi.BeliefTrafficState, LightSnapshot{
		Lights: cloneLights(a.Lights),
		Timers: cloneTimers(a.LightTimers),
	}, 1.0, "self")

	a.processMessages(c)
	a.syncTimer += a.TimeStep
}

func (a *Agent) countVehicles() {
	for _, d := range a.Directions {
		a.QueueLengths[d] = 0
	}
	for _, v := range a.env.VehiclesNear(a.Position, detectionRadius) {
		d := a.approachDirection(v.Position)
		if containsDirection(a.Directions, d) {
			a.QueueLengths[d]++
		}
	}
}

// approachDirection classifies which side of the intersection pos
// arrives from, based on the dominant axis of displacement.
func (a *Agent) approachDirection(pos roadnet.Point) Direction {
	dx := pos.X - a.Position.X
	dy := pos.Y - a.Position.Y
	if math.Abs(dx) > math.Abs(dy) {
		if dx > 0 {
			return East
		}
		return West
	}
	if dy > 0 {
		return North
	}
	return South
}

func (a *Agent) processMessages(c *bdi.Core) {
	if a.Mailbox == nil {
		return
	}
	for _, m := range a.Mailbox.Drain() {
		switch m.Performative {
		case messaging.Inform:
			switch m.Content.Type {
			case messaging.ContentNeighborState:
				a.storeNeighborState(m.Sender, m.Content)
			case messaging.ContentCongestionReport, messaging.ContentIncidentReport:
				a.storeCongestionReport(c, m.Content)
			}
		case messaging.Request:
			switch m.Content.Type {
			case messaging.ContentCallForProposals:
				a.handleCFP(m)
			case messaging.ContentEmergencyPriority:
				a.handleEmergencyPriority(m)
			}
		case messaging.AcceptProposal:
			a.executeCNPTask(m)
		case messaging.RejectProposal:
			// Our proposal lost; nothing to do.
		}
	}
}

func (a *Agent) storeNeighborState(sender string, content messaging.Content) {
	phase, _ := content.String("phase")
	timer, _ := content.Float64("phase_timer_remaining")
	outflow, _ := content.Float64("outflow_estimate")
	timestamp, _ := content.Float64("timestamp")
	pos, _ := content.Fields["position"].(roadnet.Point)
	queues, _ := content.Fields["queue_lengths"].(map[Direction]int)

	a.NeighborStates[sender] = NeighborState{
		Phase:           Phase(phase),
		PhaseTimerLeft:  timer,
		QueueLengths:    queues,
		OutflowEstimate: outflow,
		Position:        pos,
		Timestamp:       timestamp,
	}
}

func (a *Agent) storeCongestionReport(c *bdi.Core, content messaging.Content) {
	level := "low"
	if idx, ok := content.Float64("congestion_index"); ok {
		switch {
		case idx >= 0.8:
			level = "high"
		case idx >= 0.5:
			level = "medium"
		}
	}
	c.UpdateBelief(bdi.BeliefCongestion, CongestionInfo{Level: level}, 1.0, "neighbor")
}

// GenerateDesires adds the intersection's standing desires based on
// current beliefs.
func (a *Agent) GenerateDesires(c *bdi.Core) {
	c.AddDesire(bdi.Desire{Type: bdi.DesireOptimizeFlow, Priority: 1.0})

	info, _ := c.BeliefValue(bdi.BeliefCongestion).(CongestionInfo)
	if info.Level == "medium" || info.Level == "high" {
		c.AddDesire(bdi.Desire{Type: bdi.DesireAvoidCongestion, Priority: 0.9})
	}
	if len(a.Neighbors) > 0 {
		c.AddDesire(bdi.Desire{Type: bdi.DesireCoordinateWithNeighbors, Priority: 0.7})
	}
}

// Deliberate advances the light timers, decides whether to change
// phase, and schedules congestion broadcasts and neighbor syncs.
func (a *Agent) Deliberate(c *bdi.Core) []bdi.Intention {
	for _, d := range a.Directions {
		a.LightTimers[d] += a.TimeStep
	}

	var intentions []bdi.Intention

	if a.shouldChangePhase() {
		intentions = append(intentions, bdi.Intention{
			Type:         bdi.IntentionChangeLightTiming,
			Priority:     1.0,
			ParentDesire: bdi.DesireOptimizeFlow,
		})
	}

	info, _ := c.BeliefValue(bdi.BeliefCongestion).(CongestionInfo)
	if info.Level == "high" {
		intentions = append(intentions, bdi.Intention{
			Type:         bdi.IntentionBroadcastCongestion,
			Priority:     0.8,
			Parameters:   map[string]any{"congestion_level": 0.8, "location": a.Position},
			ParentDesire: bdi.DesireAvoidCongestion,
		})
	}

	if len(a.Neighbors) > 0 && a.syncTimer >= neighborSyncInterval {
		intentions = append(intentions, bdi.Intention{
			Type:         bdi.IntentionNegotiateWithNeighbor,
			Priority:     0.75,
			ParentDesire: bdi.DesireCoordinateWithNeighbors,
		})
		a.syncTimer = 0
	}

	return intentions
}

func (a *Agent) shouldChangePhase() bool {
	if a.GreenWaveActive {
		a.GreenWaveTimer -= a.TimeStep
		if a.GreenWaveTimer > 0 {
			return false
		}
		a.GreenWaveActive = false
	}

	if a.UseQLearning {
		return a.qLearningDecision()
	}
	return a.maxPressureDecision()
}

func (a *Agent) currentGreenTimer() float64 {
	timer := 0.0
	for _, d := range a.Directions {
		if a.Lights[d] == Green {
			timer = math.Max(timer, a.LightTimers[d])
		}
	}
	return timer
}

func (a *Agent) currentPhase() Phase {
	if a.Lights[North] == Green {
		return PhaseNS
	}
	return PhaseEW
}

// CurrentPhase returns which direction group currently has the green
// light (NS or EW), for collaborators outside this package (e.g. an
// external microsim sync hook) that need the phase without the rest of
// the intersection's internal state.
func (a *Agent) CurrentPhase() Phase {
	return a.currentPhase()
}

func (a *Agent) phaseTimer() float64 {
	for _, d := range a.Directions {
		if a.Lights[d] == Green {
			return math.Max(a.GreenDurations[d]-a.LightTimers[d], 0)
		}
	}
	return 0
}

// qLearningDecision chooses whether to change phase via an
// epsilon-greedy policy over a (queue-bucket, queue-bucket, phase)
// state, updated each step by the Bellman equation against the
// previous state/action/reward.
func (a *Agent) qLearningDecision() bool {
	if a.currentGreenTimer() < minGreenTime {
		return false
	}

	state := a.stateRepresentation()
	if _, ok := a.QTable[state]; !ok {
		a.QTable[state] = qValues{actionChange: 0, actionKeep: 0}
	}

	if a.PreviousState != "" {
		reward := a.computeReward()
		a.updateQTable(a.PreviousState, a.PreviousAction, reward, state)
	}

	var action qAction
	if a.rng.Float64() < a.Epsilon {
		if a.rng.Float64() < 0.5 {
			action = actionChange
		} else {
			action = actionKeep
		}
	} else {
		values := a.QTable[state]
		action = actionKeep
		if values[actionChange] > values[actionKeep] {
			action = actionChange
		}
	}

	a.PreviousState = state
	a.PreviousAction = action
	a.PreviousTotalWaiting = float64(sumQueues(a.QueueLengths))

	a.Epsilon = math.Max(a.Epsilon*epsilonDecay, epsilonMin)

	return action == actionChange
}

func (a *Agent) computeReward() float64 {
	currentTotal := float64(sumQueues(a.QueueLengths))
	waitingDiff := a.PreviousTotalWaiting - currentTotal

	maxQueue := maxOf(a.QueueLengths)
	congestionPenalty := -0.5 * math.Max(0, float64(maxQueue-congestionThreshold))

	throughputBonus := 0.1 * float64(a.TotalVehiclesProcessed)

	return waitingDiff + congestionPenalty + throughputBonus
}

// updateQTable applies Q(s,a) += alpha * (R + gamma*max(Q(s',*)) - Q(s,a)).
func (a *Agent) updateQTable(state string, action qAction, reward float64, nextState string) {
	if _, ok := a.QTable[nextState]; !ok {
		a.QTable[nextState] = qValues{actionChange: 0, actionKeep: 0}
	}
	currentQ := a.QTable[state][action]
	maxNextQ := math.Max(a.QTable[nextState][actionChange], a.QTable[nextState][actionKeep])
	a.QTable[state][action] = currentQ + learningRate*(reward+discountFactor*maxNextQ-currentQ)
}

func (a *Agent) stateRepresentation() string {
	nsQueue := a.QueueLengths[North] + a.QueueLengths[South]
	ewQueue := a.QueueLengths[East] + a.QueueLengths[West]

	nsDiscrete := nsQueue / queueDiscretizeBucket
	if nsDiscrete > queueDiscretizeMax {
		nsDiscrete = queueDiscretizeMax
	}
	ewDiscrete := ewQueue / queueDiscretizeBucket
	if ewDiscrete > queueDiscretizeMax {
		ewDiscrete = queueDiscretizeMax
	}

	return string(a.currentPhase()) + "_" + strconv.Itoa(nsDiscrete) + "_" + strconv.Itoa(ewDiscrete)
}

// maxPressureDecision implements Varaiya's Max-Pressure control:
// the phase whose directions have the greatest (queue_in - queue_out)
// is preferred, subject to min/max green-time bounds.
func (a *Agent) maxPressureDecision() bool {
	if a.currentGreenTimer() < minGreenTime {
		return false
	}

	nsDirs := directionsOf(PhaseNS, a.Directions)
	ewDirs := directionsOf(PhaseEW, a.Directions)

	phasePressures := map[Phase]float64{
		PhaseNS: a.phasePressure(nsDirs),
		PhaseEW: a.phasePressure(ewDirs),
	}

	current := a.currentPhase()
	best := PhaseNS
	if phasePressures[PhaseEW] > phasePressures[PhaseNS] {
		best = PhaseEW
	}

	if best != current && phasePressures[best]-phasePressures[current] > pressureChangeThreshold {
		return true
	}

	greenTimer := a.currentGreenTimer()
	if greenTimer > maxGreenTime {
		return true
	}

	refDirs := nsDirs
	if current == PhaseEW {
		refDirs = ewDirs
	}
	if len(refDirs) > 0 && greenTimer > a.GreenDurations[refDirs[0]] && phasePressures[current] < lowPressureThreshold {
		return true
	}

	return false
}

func (a *Agent) phasePressure(dirs []Direction) float64 {
	total := 0.0
	for _, d := range dirs {
		queueIn := float64(a.QueueLengths[d])
		queueOut := a.estimateDownstreamQueue(d)
		total += queueIn - queueOut
	}
	return total
}

// estimateDownstreamQueue approximates the queue a neighbor is
// holding back, from the first neighbor (in neighbor order) whose state
// is still fresh, falling back to a light-state-based guess when no
// fresh neighbor data exists.
func (a *Agent) estimateDownstreamQueue(d Direction) float64 {
	for _, nid := range a.Neighbors {
		st, ok := a.NeighborStates[nid]
		if !ok || len(st.QueueLengths) == 0 {
			continue
		}
		if a.Core.CurrentTime-st.Timestamp > maxNeighborStateAge {
			continue
		}
		total := 0
		for _, q := range st.QueueLengths {
			total += q
		}
		avg := float64(total) / float64(len(st.QueueLengths))
		return math.Min(avg, 10.0)
	}

	if a.Lights[d] == Green {
		return 2.0
	}
	return 5.0
}

// ExecuteIntention carries out one deliberated intention.
func (a *Agent) ExecuteIntention(c *bdi.Core, in bdi.Intention) bool {
	switch in.Type {
	case bdi.IntentionChangeLightTiming:
		return a.changePhase()
	case bdi.IntentionBroadcastCongestion:
		level, _ := in.Parameters["congestion_level"].(float64)
		location, _ := in.Parameters["location"].(roadnet.Point)
		return a.broadcastCongestion(level, location)
	case bdi.IntentionNegotiateWithNeighbor:
		return a.broadcastStateToNeighbors()
	default:
		return false
	}
}

// changePhase flips NS/EW, honoring a pending green-wave phase
// request if one is queued, and sizes the new green duration from the
// waiting queue plus any predicted neighbor inflow.
func (a *Agent) changePhase() bool {
	hasGreen := false
	for _, d := range a.Directions {
		if a.Lights[d] == Green {
			hasGreen = true
			break
		}
	}
	if !hasGreen {
		return false
	}

	current := a.currentPhase()
	next := PhaseEW
	if current == PhaseEW {
		next = PhaseNS
	}
	if a.GreenWavePhase != "" && !a.GreenWaveActive {
		next = a.GreenWavePhase
		a.GreenWavePhase = ""
		a.GreenWaveOffset = 0
	}

	nsGroup := directionsOf(PhaseNS, a.Directions)
	ewGroup := directionsOf(PhaseEW, a.Directions)
	newGreen, newRed := nsGroup, ewGroup
	if next == PhaseEW {
		newGreen, newRed = ewGroup, nsGroup
	}

	for _, d := range newRed {
		a.Lights[d] = Red
		a.LightTimers[d] = 0
	}
	for _, d := range newGreen {
		a.Lights[d] = Green
		a.LightTimers[d] = 0

		neighborBonus := 0.0
		for _, nid := range a.Neighbors {
			st, ok := a.NeighborStates[nid]
			if ok && st.Phase == next {
				neighborBonus = math.Min(st.OutflowEstimate*2.0, 20.0)
				break
			}
		}
		a.GreenDurations[d] = math.Min(minGreenTime+float64(a.QueueLengths[d])*2+neighborBonus, maxGreenTime)
	}

	a.PhaseChanges++
	return true
}

func (a *Agent) broadcastCongestion(level float64, location roadnet.Point) bool {
	if a.Mailbox == nil {
		return false
	}
	content := messaging.NewContent(messaging.ContentCongestionReport, map[string]any{
		"congestion_index": level,
		"location":          location,
	})
	a.Mailbox.Send(messaging.New(a.ID, messaging.Broadcast, messaging.Inform, content, a.Core.CurrentTime))
	return true
}

// broadcastStateToNeighbors shares this intersection's phase, timer,
// queues, and predicted outflow with every registered neighbor, then
// reassesses its own green-wave schedule from what neighbors have
// told it.
func (a *Agent) broadcastStateToNeighbors() bool {
	if a.Mailbox == nil {
		return false
	}

	phase := a.currentPhase()
	timer := a.phaseTimer()
	outflow := a.estimateOutflow()

	for _, nid := range a.Neighbors {
		content := messaging.NewContent(messaging.ContentNeighborState, map[string]any{
			"phase":                 string(phase),
			"phase_timer_remaining": timer,
			"queue_lengths":         cloneQueueLengths(a.QueueLengths),
			"outflow_estimate":      outflow,
			"position":              a.Position,
			"timestamp":             a.Core.CurrentTime,
		})
		msg := messaging.New(a.ID, nid, messaging.Inform, content, a.Core.CurrentTime).
			WithProtocol("green-wave-coordination", a.ID+"->"+nid)
		a.Mailbox.Send(msg)
		a.CoordinationMessages++
	}

	a.applyNeighborCoordination()
	return true
}

func (a *Agent) estimateOutflow() float64 {
	vehiclesPerStep := saturationFlowPerHour / 3600.0 * a.TimeStep
	remaining := a.phaseTimer()

	outflow := 0.0
	for _, d := range a.Directions {
		if a.Lights[d] == Green {
			outflow += math.Min(float64(a.QueueLengths[d]), vehiclesPerStep*remaining)
		}
	}
	return outflow
}

// applyNeighborCoordination looks for the freshest, strongest
// predicted inflow among neighbor states and schedules a green wave
// to receive it.
func (a *Agent) applyNeighborCoordination() {
	if len(a.NeighborStates) == 0 {
		return
	}

	bestFlow := 0.0
	var bestPhase Phase
	bestOffset := 0.0

	for _, nid := range a.Neighbors {
		st, ok := a.NeighborStates[nid]
		if !ok {
			continue
		}
		if a.Core.CurrentTime-st.Timestamp > maxNeighborStateAge {
			continue
		}
		if st.OutflowEstimate <= 0 {
			continue
		}

		distance := a.Position.Distance(st.Position)
		travelTime := distance / greenWaveSpeed
		arrivalIn := st.PhaseTimerLeft + travelTime

		if st.OutflowEstimate > bestFlow {
			bestFlow = st.OutflowEstimate
			bestPhase = st.Phase
			bestOffset = arrivalIn
		}
	}

	if bestPhase != "" && bestFlow >= 2.0 {
		a.scheduleGreenWave(bestPhase, bestOffset, bestFlow)
	}
}

// scheduleGreenWave arranges for targetPhase to be active when a
// predicted flow of expectedFlow vehicles arrives in offset seconds:
// extending the current green if already aligned, forcing it now if
// the flow is imminent, or remembering it for the next phase change.
func (a *Agent) scheduleGreenWave(targetPhase Phase, offset, expectedFlow float64) {
	current := a.currentPhase()

	if current == targetPhase {
		extra := math.Min(expectedFlow*2.0, maxGreenTime)
		for _, d := range a.Directions {
			if a.Lights[d] == Green {
				a.GreenDurations[d] = math.Min(a.GreenDurations[d]+extra, maxGreenTime)
			}
		}
		return
	}

	if offset <= minGreenTime && a.currentGreenTimer() >= minGreenTime {
		target := North
		if targetPhase == PhaseEW {
			target = East
		}
		if a.forceGreen(target) {
			a.GreenWaveActive = true
			a.GreenWavePhase = targetPhase
			a.GreenWaveTimer = math.Min(expectedFlow*2.0, maxGreenTime)
			return
		}
	}

	a.GreenWaveOffset = offset
	a.GreenWavePhase = targetPhase
}

// forceGreen pre-empts the current phase to put target on green
// immediately, honoring min_green_time on whatever is currently
// green. Used by emergency pre-emption and Contract-Net delegation.
func (a *Agent) forceGreen(target Direction) bool {
	for _, d := range a.Directions {
		if a.Lights[d] == Green && a.LightTimers[d] < minGreenTime {
			return false
		}
	}
	if a.Lights[target] == Green {
		return false
	}

	greenGroup := directionsOf(PhaseNS, a.Directions)
	redGroup := directionsOf(PhaseEW, a.Directions)
	if phaseOf(target) == PhaseEW {
		greenGroup, redGroup = redGroup, greenGroup
	}

	for _, d := range greenGroup {
		a.Lights[d] = Green
		a.LightTimers[d] = 0
	}
	for _, d := range redGroup {
		a.Lights[d] = Red
		a.LightTimers[d] = 0
	}

	a.PhaseChanges++
	return true
}

func (a *Agent) handleCFP(m messaging.Message) {
	if a.Mailbox == nil {
		return
	}
	task, ok := m.Content.String("task")
	if !ok {
		task = "priority_delegation"
	}

	currentLoad := sumQueues(a.QueueLengths)
	maxCapacity := congestionThreshold * len(a.Directions)
	if maxCapacity < 1 {
		maxCapacity = 1
	}
	availability := 1.0 - float64(currentLoad)/float64(maxCapacity)

	if availability > availabilityThreshold {
		content := messaging.NewContent(messaging.ContentProposal, map[string]any{
			"task":         task,
			"availability": availability,
			"current_load": currentLoad,
			"position":     a.Position,
		})
		reply := m.CreateReply(messaging.Propose, content, a.Core.CurrentTime)
		a.Mailbox.Send(reply)
		a.CoordinationMessages++
	}
}

func (a *Agent) executeCNPTask(m messaging.Message) {
	dirStr, ok := m.Content.String("priority_direction")
	if !ok || dirStr == "" {
		return
	}
	a.forceGreen(Direction(dirStr))
}

func (a *Agent) handleEmergencyPriority(m messaging.Message) {
	if a.Mailbox == nil {
		return
	}
	posAny, ok := m.Content.Fields["vehicle_position"]
	if !ok {
		return
	}
	pos, ok := posAny.(roadnet.Point)
	if !ok {
		return
	}

	approach := a.approachDirection(pos)
	a.forceGreen(approach)

	content := messaging.NewContent(messaging.ContentEmergencyAck, map[string]any{
		"green_direction": string(approach),
		"intersection":    a.ID,
	})
	reply := m.CreateReply(messaging.Inform, content, a.Core.CurrentTime)
	a.Mailbox.Send(reply)
}

// ---- helpers ----

func containsDirection(dirs []Direction, d Direction) bool {
	for _, x := range dirs {
		if x == d {
			return true
		}
	}
	return false
}

func sumQueues(q map[Direction]int) int {
	total := 0
	for _, v := range q {
		total += v
	}
	return total
}

func maxOf(q map[Direction]int) int {
	max := 0
	for _, v := range q {
		if v > max {
			max = v
		}
	}
	return max
}

func cloneQueueLengths(q map[Direction]int) map[Direction]int {
	out := make(map[Direction]int, len(q))
	for k, v := range q {
		out[k] = v
	}
	return out
}

func cloneLights(l map[Direction]LightState) map[Direction]LightState {
	out := make(map[Direction]LightState, len(l))
	for k, v := range l {
		out[k] = v
	}
	return out
}

func cloneTimers(t map[Direction]float64) map[Direction]float64 {
	out := make(map[Direction]float64, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

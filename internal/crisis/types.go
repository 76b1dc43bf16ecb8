// Package crisis implements the crisis manager agent: a zone-wide
// supervisor with no physical presence that pre-empts intersections
// for emergency vehicles ("green waves") and delegates congestion
// relief to neighboring intersections via the Contract Net Protocol.
package crisis

import "github.com/MDylan95/sma-trafic/internal/roadnet"

// EmergencyVehicleInfo is a snapshot of one active emergency vehicle,
// as reported by the world.
type EmergencyVehicleInfo struct {
	ID          string
	Type        string
	Position    roadnet.Point
	Destination roadnet.Point
	Route       []roadnet.Point
}

// IntersectionInfo is a snapshot of one intersection's load and
// topology, as reported by the world.
type IntersectionInfo struct {
	ID           string
	Position     roadnet.Point
	QueueLengths map[string]int // direction name -> queued vehicle count
	Neighbors    []string
}

// QueueTotal sums the queue lengths across every approach.
func (i IntersectionInfo) QueueTotal() int {
	total := 0
	for _, q := range i.QueueLengths {
		total += q
	}
	return total
}

// Environment is the subset of the simulated world the crisis manager
// needs: the active emergency fleet and every intersection's load.
type Environment interface {
	// ActiveEmergencyVehicles returns emergency-type vehicles still in
	// transit.
	ActiveEmergencyVehicles() []EmergencyVehicleInfo
	// Intersections returns a snapshot of every intersection.
	Intersections() []IntersectionInfo
	// IntersectionByID looks up a single intersection's snapshot.
	IntersectionByID(id string) (IntersectionInfo, bool)
}

// CongestedIntersection flags an intersection whose total queue
// exceeds its capacity, a candidate for Contract-Net delegation.
type CongestedIntersection struct {
	ID         string
	Position   roadnet.Point
	QueueTotal int
}

// CongestionInfo is the crisis manager's global-view belief content.
type CongestionInfo struct {
	Level                  string // "low", "medium", "high", "critical"
	AverageQueue           float64
	CongestedIntersections []CongestedIntersection
}

// GreenWaveRecord logs one emergency pre-emption dispatch.
type GreenWaveRecord struct {
	VehicleID            string
	VehicleType           string
	IntersectionsNotified int
	Timestamp             float64
}

// Incident is a reported road incident the crisis manager is tracking.
type Incident struct {
	Location   roadnet.Point
	Type       string
	Severity   string
	ReportedBy string
	Timestamp  float64
}

// cnpProposal is one contractor's bid, pending evaluation once enough
// bids have arrived for a conversation.
type cnpProposal struct {
	sender       string
	availability float64
	currentLoad  int
}

const (
	// perIntersectionDirectionCapacity mirrors the intersection
	// agent's congestion_threshold, used here to flag an intersection
	// as congested without importing internal/intersection.
	perIntersectionDirectionCapacity = 10
	directionsPerIntersection        = 4

	// emergencyNotificationRadius is how close an intersection must be
	// to an emergency vehicle's route (or position, if no route is
	// known yet) to receive a priority request.
	emergencyNotificationRadius = 300.0

	// minProposalsToEvaluate is how many Contract-Net bids the crisis
	// manager waits for before accepting the best one.
	minProposalsToEvaluate = 2

	avgQueueCritical = 15.0
	avgQueueHigh     = 8.0
	avgQueueMedium   = 4.0
)

package routing

import (
	"container/heap"

	"github.com/MDylan95/sma-trafic/internal/roadnet"
)

// osmCorrectionFactor scales the Euclidean-distance heuristic to
// account for real road networks rarely running in a straight line
// between two points. Shorter hops wind more (intersections, turns),
// so they get a larger correction; long hops are more likely to run
// along arterials or highways, so the correction shrinks.
func osmCorrectionFactor(euclidean float64) float64 {
	switch {
	case euclidean > 10000:
		return 1.10
	case euclidean > 5000:
		return 1.15
	default:
		return 1.30
	}
}

// pqItem is one entry in the A* open set.
type pqItem struct {
	nodeID string
	fScore float64
	index  int
}

type priorityQueue []*pqItem

func (pq priorityQueue) Len() int            { return len(pq) }
func (pq priorityQueue) Less(i, j int) bool  { return pq[i].fScore < pq[j].fScore }
func (pq priorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].index, pq[j].index = i, j
}
func (pq *priorityQueue) Push(x any) {
	item := x.(*pqItem)
	item.index = len(*pq)
	*pq = append(*pq, item)
}
func (pq *priorityQueue) Pop() any {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*pq = old[:n-1]
	return item
}

// edgeWeightFunc rescales a base edge weight, e.g. to reflect current
// congestion. A nil func is equivalent to the identity function.
type edgeWeightFunc func(aID, bID string, baseWeight float64) float64

// aStarSearch runs A* over network from startID to endID, using the
// OSM-correction heuristic. weightFn optionally rescales edge weights
// (nil uses the network's base weights unchanged). It returns the
// node-id path (inclusive of both endpoints), or nil if no path exists.
func aStarSearch(network *roadnet.Network, startID, endID string, weightFn edgeWeightFunc) []string {
	end := network.Node(endID)
	if end == nil {
		return nil
	}

	heuristic := func(nodeID string) float64 {
		node := network.Node(nodeID)
		if node == nil {
			return 0
		}
		d := node.Position.Distance(end.Position)
		return d * osmCorrectionFactor(d)
	}

	open := &priorityQueue{}
	heap.Init(open)
	heap.Push(open, &pqItem{nodeID: startID, fScore: heuristic(startID)})

	cameFrom := map[string]string{}
	gScore := map[string]float64{startID: 0}
	closed := map[string]bool{}

	for open.Len() > 0 {
		current := heap.Pop(open).(*pqItem)
		if closed[current.nodeID] {
			// stale entry left over from an earlier, worse g_score
			continue
		}
		if current.nodeID == endID {
			return reconstructPath(cameFrom, current.nodeID)
		}
		closed[current.nodeID] = true

		node := network.Node(current.nodeID)
		if node == nil {
			continue
		}
		for neighborID, weight := range node.Neighbors() {
			if closed[neighborID] {
				continue
			}
			if weightFn != nil {
				weight = weightFn(current.nodeID, neighborID, weight)
			}
			tentativeG := gScore[current.nodeID] + weight
			existingG, seen := gScore[neighborID]
			if !seen || tentativeG < existingG {
				cameFrom[neighborID] = current.nodeID
				gScore[neighborID] = tentativeG
				f := tentativeG + heuristic(neighborID)
				heap.Push(open, &pqItem{nodeID: neighborID, fScore: f})
			}
		}
	}
	return nil
}

func reconstructPath(cameFrom map[string]string, current string) []string {
	path := []string{current}
	for {
		prev, ok := cameFrom[current]
		if !ok {
			break
		}
		path = append(path, prev)
		current = prev
	}
	// reverse in place
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

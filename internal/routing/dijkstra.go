package routing

import (
	"container/heap"

	"github.com/MDylan95/sma-trafic/internal/roadnet"
)

// dijkstraSearch runs plain Dijkstra over network from startID to
// endID. It shares the A* priority queue implementation with a zero
// heuristic. weightFn optionally rescales edge weights.
func dijkstraSearch(network *roadnet.Network, startID, endID string, weightFn edgeWeightFunc) []string {
	open := &priorityQueue{}
	heap.Init(open)
	heap.Push(open, &pqItem{nodeID: startID, fScore: 0})

	cameFrom := map[string]string{}
	dist := map[string]float64{startID: 0}
	visited := map[string]bool{}

	for open.Len() > 0 {
		current := heap.Pop(open).(*pqItem)
		if visited[current.nodeID] {
			continue
		}
		visited[current.nodeID] = true
		if current.nodeID == endID {
			return reconstructPath(cameFrom, current.nodeID)
		}

		node := network.Node(current.nodeID)
		if node == nil {
			continue
		}
		for neighborID, weight := range node.Neighbors() {
			if visited[neighborID] {
				continue
			}
			if weightFn != nil {
				weight = weightFn(current.nodeID, neighborID, weight)
			}
			newDist := dist[current.nodeID] + weight
			if existing, seen := dist[neighborID]; !seen || newDist < existing {
				dist[neighborID] = newDist
				cameFrom[neighborID] = current.nodeID
				heap.Push(open, &pqItem{nodeID: neighborID, fScore: newDist})
			}
		}
	}
	return nil
}

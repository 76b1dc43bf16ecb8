// Package routing computes vehicle routes over a roadnet.Network using
// A* or Dijkstra, with an LRU cache for repeated start/end pairs and
// optional per-edge congestion weighting for dynamic rerouting.
package routing

import (
	"fmt"
	"sync"

	"github.com/MDylan95/sma-trafic/internal/roadnet"
)

// Algorithm selects which search Router uses for uncached lookups.
type Algorithm string

const (
	AStar    Algorithm = "A_STAR"
	Dijkstra Algorithm = "DIJKSTRA"
)

type congestionKey struct{ a, b string }

func sortedKey(a, b string) congestionKey {
	if a > b {
		a, b = b, a
	}
	return congestionKey{a, b}
}

// Router finds routes between two points in a road network.
type Router struct {
	mu        sync.Mutex
	network   *roadnet.Network
	algorithm Algorithm
	cache     *routeCache
	computed  int
	congestion map[congestionKey]float64
}

// New creates a Router over network using the given algorithm and
// cache capacity (0 uses DefaultCacheSize).
func New(network *roadnet.Network, algorithm Algorithm, cacheSize int) *Router {
	return &Router{
		network:    network,
		algorithm:  algorithm,
		cache:      newRouteCache(cacheSize),
		congestion: make(map[congestionKey]float64),
	}
}

// UpdateCongestion records a congestion multiplier (1.0 = free flow,
// >1.0 = congested) for the edge between a and b. A multiplier applies
// until overwritten or cleared with ClearCongestion. While any
// congestion weights are set, FindPath bypasses the route cache, since
// cached paths were computed under different edge costs.
func (r *Router) UpdateCongestion(aID, bID string, multiplier float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.congestion[sortedKey(aID, bID)] = multiplier
}

// ClearCongestion removes all recorded congestion multipliers,
// re-enabling the route cache for subsequent lookups.
func (r *Router) ClearCongestion() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.congestion = make(map[congestionKey]float64)
}

func (r *Router) congestionWeight(aID, bID string, base float64) float64 {
	if m, ok := r.congestion[sortedKey(aID, bID)]; ok {
		return base * m
	}
	return base
}

// FindPath returns the sequence of waypoints from start to end,
// beginning and ending at the exact requested points (snapped onto the
// nearest graph nodes in between). It returns false if no path exists
// or the network has no nodes.
func (r *Router) FindPath(start, end roadnet.Point) ([]roadnet.Point, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	startNode := r.network.NearestNode(start)
	endNode := r.network.NearestNode(end)
	if startNode == nil || endNode == nil {
		return nil, false
	}
	if startNode.ID == endNode.ID {
		return []roadnet.Point{start, end}, true
	}

	dynamic := len(r.congestion) > 0

	var nodePath []string
	if !dynamic {
		if cached, ok := r.cache.get(startNode.ID, endNode.ID); ok {
			nodePath = cached
		}
	} else {
		// a lookup that bypasses the cache counts as a miss
		r.cache.misses++
	}
	if nodePath == nil {
		var weightFn edgeWeightFunc
		if dynamic {
			weightFn = r.congestionWeight
		}
		switch r.algorithm {
		case Dijkstra:
			nodePath = dijkstraSearch(r.network, startNode.ID, endNode.ID, weightFn)
		default:
			nodePath = aStarSearch(r.network, startNode.ID, endNode.ID, weightFn)
		}
		if nodePath == nil {
			return nil, false
		}
		if !dynamic {
			r.cache.put(startNode.ID, endNode.ID, nodePath)
		}
	}

	r.computed++
	waypoints := make([]roadnet.Point, 0, len(nodePath))
	waypoints = append(waypoints, start)
	for _, id := range nodePath[1 : len(nodePath)-1] {
		if node := r.network.Node(id); node != nil {
			waypoints = append(waypoints, node.Position)
		}
	}
	waypoints = append(waypoints, end)
	return waypoints, true
}

// Stats reports the router's cumulative cache and computation
// statistics.
func (r *Router) Stats() CacheStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cache.stats(r.computed)
}

// String renders a router summary suitable for logging.
func (r *Router) String() string {
	s := r.Stats()
	return fmt.Sprintf("routing.Router{algorithm=%s paths=%d cache=%d/%d hit_rate=%.1f%%}",
		r.algorithm, s.PathsComputed, s.Size, s.Capacity, s.HitRatePercent)
}

package routing

import (
	"testing"

	"github.com/MDylan95/sma-trafic/internal/roadnet"
)

func gridNetwork() *roadnet.Network {
	n := roadnet.New()
	n.BuildGrid(400, 400, 100)
	return n
}

func TestFindPath_StraightLine(t *testing.T) {
	n := gridNetwork()
	r := New(n, AStar, 10)

	path, ok := r.FindPath(roadnet.Point{X: 0, Y: 0}, roadnet.Point{X: 300, Y: 0})
	if !ok {
		t.Fatal("FindPath returned false, want a path")
	}
	if len(path) < 2 {
		t.Fatalf("path has %d waypoints, want >= 2", len(path))
	}
	if path[0] != (roadnet.Point{X: 0, Y: 0}) {
		t.Errorf("path does not start at requested origin: %+v", path[0])
	}
	if path[len(path)-1] != (roadnet.Point{X: 300, Y: 0}) {
		t.Errorf("path does not end at requested destination: %+v", path[len(path)-1])
	}
}

func TestFindPath_SameNode(t *testing.T) {
	n := gridNetwork()
	r := New(n, AStar, 10)

	path, ok := r.FindPath(roadnet.Point{X: 1, Y: 1}, roadnet.Point{X: 2, Y: 2})
	if !ok || len(path) != 2 {
		t.Fatalf("FindPath for same nearest node = %v, %v, want 2-point direct path", path, ok)
	}
}

func TestFindPath_NoPathWhenDisconnected(t *testing.T) {
	n := roadnet.New()
	n.AddNode("a", roadnet.Point{X: 0, Y: 0})
	n.AddNode("b", roadnet.Point{X: 1000, Y: 1000})
	r := New(n, AStar, 10)

	if _, ok := r.FindPath(roadnet.Point{X: 0, Y: 0}, roadnet.Point{X: 1000, Y: 1000}); ok {
		t.Error("FindPath found a path between disconnected nodes")
	}
}

func TestFindPath_CacheHitOnRepeat(t *testing.T) {
	n := gridNetwork()
	r := New(n, AStar, 10)

	start, end := roadnet.Point{X: 0, Y: 0}, roadnet.Point{X: 300, Y: 300}
	r.FindPath(start, end)
	r.FindPath(start, end)

	stats := r.Stats()
	if stats.Hits != 1 || stats.Misses != 1 {
		t.Errorf("Stats = %+v, want 1 hit and 1 miss", stats)
	}
}

func TestFindPath_DijkstraAgreesWithAStar(t *testing.T) {
	n := gridNetwork()
	astarRouter := New(n, AStar, 10)
	dijkstraRouter := New(n, Dijkstra, 10)

	start, end := roadnet.Point{X: 0, Y: 0}, roadnet.Point{X: 300, Y: 300}
	astarPath, ok1 := astarRouter.FindPath(start, end)
	dijkstraPath, ok2 := dijkstraRouter.FindPath(start, end)

	if !ok1 || !ok2 {
		t.Fatalf("expected both routers to find a path: astar=%v dijkstra=%v", ok1, ok2)
	}
	if pathLength(astarPath) != pathLength(dijkstraPath) {
		t.Errorf("A* path length %.2f != Dijkstra path length %.2f", pathLength(astarPath), pathLength(dijkstraPath))
	}
}

func pathLength(path []roadnet.Point) float64 {
	total := 0.0
	for i := 1; i < len(path); i++ {
		total += path[i-1].Distance(path[i])
	}
	return total
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := newRouteCache(2)
	c.put("a", "b", []string{"a", "b"})
	c.put("c", "d", []string{"c", "d"})
	// touch a-b so c-d becomes least recently used
	c.get("a", "b")
	c.put("e", "f", []string{"e", "f"})

	if _, ok := c.get("c", "d"); ok {
		t.Error("expected c-d to be evicted as least recently used")
	}
	if _, ok := c.get("a", "b"); !ok {
		t.Error("expected a-b to remain cached (recently touched)")
	}
	if _, ok := c.get("e", "f"); !ok {
		t.Error("expected e-f to remain cached (just inserted)")
	}
}

func TestUpdateCongestion_BypassesCache(t *testing.T) {
	n := gridNetwork()
	r := New(n, AStar, 10)

	start, end := roadnet.Point{X: 0, Y: 0}, roadnet.Point{X: 300, Y: 0}
	r.FindPath(start, end)

	r.UpdateCongestion("0_0", "100_0", 5.0)
	path, ok := r.FindPath(start, end)
	if !ok {
		t.Fatal("expected a path even with congestion applied")
	}
	// with congestion bypassing the cache, misses should exceed 1
	if stats := r.Stats(); stats.Misses < 2 {
		t.Errorf("Misses = %d, want >= 2 (congestion bypasses cache)", stats.Misses)
	}
	_ = path
}

func TestClearCongestion_ReenablesCache(t *testing.T) {
	n := gridNetwork()
	r := New(n, AStar, 10)
	r.UpdateCongestion("0_0", "100_0", 5.0)
	r.ClearCongestion()

	start, end := roadnet.Point{X: 0, Y: 0}, roadnet.Point{X: 300, Y: 0}
	r.FindPath(start, end)
	r.FindPath(start, end)

	if stats := r.Stats(); stats.Hits != 1 {
		t.Errorf("Hits = %d, want 1 after clearing congestion", stats.Hits)
	}
}

func TestOSMCorrectionFactor(t *testing.T) {
	cases := []struct {
		dist float64
		want float64
	}{
		{1000, 1.30},
		{5000, 1.30},
		{7000, 1.15},
		{10000, 1.15},
		{15000, 1.10},
	}
	for _, c := range cases {
		if got := osmCorrectionFactor(c.dist); got != c.want {
			t.Errorf("osmCorrectionFactor(%v) = %v, want %v", c.dist, got, c.want)
		}
	}
}

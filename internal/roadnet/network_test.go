package roadnet

import "testing"

func TestAddEdge_ComputesEuclideanWeight(t *testing.T) {
	n := New()
	n.AddNode("a", Point{0, 0})
	n.AddNode("b", Point{3, 4})

	if !n.AddEdge("a", "b", -1) {
		t.Fatal("AddEdge returned false for known nodes")
	}
	w, ok := n.EdgeWeight("a", "b")
	if !ok || w != 5 {
		t.Errorf("EdgeWeight(a,b) = %v, %v, want 5, true", w, ok)
	}
	// Edge is undirected.
	w, ok = n.EdgeWeight("b", "a")
	if !ok || w != 5 {
		t.Errorf("EdgeWeight(b,a) = %v, %v, want 5, true", w, ok)
	}
}

func TestAddEdge_UnknownNode(t *testing.T) {
	n := New()
	n.AddNode("a", Point{0, 0})
	if n.AddEdge("a", "ghost", -1) {
		t.Error("AddEdge succeeded with unknown node")
	}
}

func TestRemoveEdge(t *testing.T) {
	n := New()
	n.AddNode("a", Point{0, 0})
	n.AddNode("b", Point{1, 0})
	n.AddEdge("a", "b", -1)
	n.RemoveEdge("a", "b")

	if _, ok := n.EdgeWeight("a", "b"); ok {
		t.Error("edge still present after RemoveEdge")
	}
}

func TestBuildGrid_ConnectsNeighbors(t *testing.T) {
	n := New()
	n.BuildGrid(200, 200, 100)

	if got := len(n.Nodes()); got != 4 {
		t.Fatalf("got %d nodes, want 4", got)
	}
	stats := n.Stats()
	if stats.NumNodes != 4 || stats.NumEdges != 4 {
		t.Errorf("stats = %+v, want 4 nodes and 4 edges (a 2x2 grid cycle)", stats)
	}
}

func TestNearestNode(t *testing.T) {
	n := New()
	n.AddNode("a", Point{0, 0})
	n.AddNode("b", Point{100, 100})

	got := n.NearestNode(Point{10, 10})
	if got == nil || got.ID != "a" {
		t.Errorf("NearestNode = %v, want a", got)
	}
}

func TestNodeAt_Tolerance(t *testing.T) {
	n := New()
	n.AddNode("a", Point{0, 0})

	if got := n.NodeAt(Point{5, 0}, 10); got == nil || got.ID != "a" {
		t.Errorf("NodeAt within tolerance = %v, want a", got)
	}
	if got := n.NodeAt(Point{50, 0}, 10); got != nil {
		t.Errorf("NodeAt outside tolerance = %v, want nil", got)
	}
}

func TestBlockage_RestoresAfterExpiry(t *testing.T) {
	n := New()
	n.AddNode("a", Point{0, 0})
	n.AddNode("b", Point{1, 0})
	n.AddEdge("a", "b", -1)

	n.AddBlockage("a", "b", 10.0)
	if _, ok := n.EdgeWeight("a", "b"); ok {
		t.Fatal("edge present immediately after blockage")
	}

	n.Tick(5.0)
	if _, ok := n.EdgeWeight("a", "b"); ok {
		t.Fatal("edge restored before expiry")
	}

	n.Tick(10.0)
	if _, ok := n.EdgeWeight("a", "b"); !ok {
		t.Error("edge not restored after expiry")
	}
}

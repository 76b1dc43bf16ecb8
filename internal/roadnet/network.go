// Package roadnet models the simulated road graph: nodes, weighted
// edges, and temporary blockages (incidents, closures).
package roadnet

import (
	"math"
	"strconv"
)

// Point is a 2D position in simulation distance units (meters).
type Point struct {
	X, Y float64
}

// Distance returns the Euclidean distance between p and q.
func (p Point) Distance(q Point) float64 {
	dx, dy := p.X-q.X, p.Y-q.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Node is an intersection or waypoint in the road graph.
type Node struct {
	ID        string
	Position  Point
	neighbors map[string]float64 // neighbor id -> edge weight
}

// Neighbors returns a snapshot of this node's adjacency (id -> weight).
func (n *Node) Neighbors() map[string]float64 {
	out := make(map[string]float64, len(n.neighbors))
	for id, w := range n.neighbors {
		out[id] = w
	}
	return out
}

type blockage struct {
	a, b    string
	expires float64
}

// Network is the road graph vehicles route over. It is not safe for
// concurrent mutation; the scheduler applies blockages and restores
// expired ones between ticks, never during routing.
type Network struct {
	nodes     map[string]*Node
	blockages []blockage
}

// New creates an empty road network.
func New() *Network {
	return &Network{nodes: make(map[string]*Node)}
}

// AddNode registers a node at the given position. If id already exists
// it is left unchanged (idempotent).
func (n *Network) AddNode(id string, pos Point) *Node {
	if existing, ok := n.nodes[id]; ok {
		return existing
	}
	node := &Node{ID: id, Position: pos, neighbors: make(map[string]float64)}
	n.nodes[id] = node
	return node
}

// Node returns the node with the given id, or nil if absent.
func (n *Network) Node(id string) *Node {
	return n.nodes[id]
}

// Nodes returns all nodes in the network, in no particular order.
func (n *Network) Nodes() []*Node {
	out := make([]*Node, 0, len(n.nodes))
	for _, node := range n.nodes {
		out = append(out, node)
	}
	return out
}

// AddEdge connects two existing nodes. If weight is negative, the
// Euclidean distance between their positions is used. Returns false if
// either node is unknown.
func (n *Network) AddEdge(aID, bID string, weight float64) bool {
	a, ok := n.nodes[aID]
	if !ok {
		return false
	}
	b, ok := n.nodes[bID]
	if !ok {
		return false
	}
	if weight < 0 {
		weight = a.Position.Distance(b.Position)
	}
	a.neighbors[bID] = weight
	b.neighbors[aID] = weight
	return true
}

// RemoveEdge disconnects two nodes, simulating a closed road.
func (n *Network) RemoveEdge(aID, bID string) {
	if a, ok := n.nodes[aID]; ok {
		delete(a.neighbors, bID)
	}
	if b, ok := n.nodes[bID]; ok {
		delete(b.neighbors, aID)
	}
}

// EdgeWeight returns the current weight of the edge between a and b,
// and whether it exists.
func (n *Network) EdgeWeight(aID, bID string) (float64, bool) {
	a, ok := n.nodes[aID]
	if !ok {
		return 0, false
	}
	w, ok := a.neighbors[bID]
	return w, ok
}

// BuildGrid lays out a rectangular grid network: width x height
// simulation units, nodes spaced cellSize apart, each node connected
// to its right and lower neighbor.
func (n *Network) BuildGrid(width, height, cellSize float64) {
	for x := 0.0; x < width; x += cellSize {
		for y := 0.0; y < height; y += cellSize {
			n.AddNode(gridID(x, y), Point{X: x, Y: y})
		}
	}
	for x := 0.0; x < width; x += cellSize {
		for y := 0.0; y < height; y += cellSize {
			id := gridID(x, y)
			if x+cellSize < width {
				n.AddEdge(id, gridID(x+cellSize, y), -1)
			}
			if y+cellSize < height {
				n.AddEdge(id, gridID(x, y+cellSize), -1)
			}
		}
	}
}

func gridID(x, y float64) string {
	return formatCoord(x) + "_" + formatCoord(y)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// NearestNode returns the node closest to pos, or nil if the network
// has no nodes.
func (n *Network) NearestNode(pos Point) *Node {
	var nearest *Node
	best := math.Inf(1)
	for _, node := range n.nodes {
		if d := pos.Distance(node.Position); d < best {
			best = d
			nearest = node
		}
	}
	return nearest
}

// NodeAt returns a node within tolerance of pos, or nil if none is
// that close.
func (n *Network) NodeAt(pos Point, tolerance float64) *Node {
	for _, node := range n.nodes {
		if pos.Distance(node.Position) < tolerance {
			return node
		}
	}
	return nil
}

// AddBlockage removes the edge between a and b and records it as
// temporarily closed until expiresAt (an absolute simulation time).
// Tick must be called every simulation step to restore edges whose
// blockage has expired.
func (n *Network) AddBlockage(aID, bID string, expiresAt float64) {
	n.RemoveEdge(aID, bID)
	n.blockages = append(n.blockages, blockage{a: aID, b: bID, expires: expiresAt})
}

// BlockedEdgeIDs returns the endpoint pairs of every edge currently
// closed via AddBlockage, for collaborators (e.g. an external microsim)
// that mirror road closures rather than routing decisions.
func (n *Network) BlockedEdgeIDs() [][2]string {
	out := make([][2]string, len(n.blockages))
	for i, bl := range n.blockages {
		out[i] = [2]string{bl.a, bl.b}
	}
	return out
}

// Tick restores any blockage whose expiry has passed as of now (an
// absolute simulation time).
func (n *Network) Tick(now float64) {
	if len(n.blockages) == 0 {
		return
	}
	remaining := n.blockages[:0]
	for _, bl := range n.blockages {
		if now >= bl.expires {
			n.AddEdge(bl.a, bl.b, -1)
			continue
		}
		remaining = append(remaining, bl)
	}
	n.blockages = remaining
}

// Stats summarizes the network's current shape.
type Stats struct {
	NumNodes      int
	NumEdges      int
	AverageDegree float64
}

// Stats computes summary statistics over the current graph.
func (n *Network) Stats() Stats {
	edges := 0
	for _, node := range n.nodes {
		edges += len(node.neighbors)
	}
	s := Stats{NumNodes: len(n.nodes), NumEdges: edges / 2}
	if len(n.nodes) > 0 {
		s.AverageDegree = float64(edges) / float64(len(n.nodes))
	}
	return s
}

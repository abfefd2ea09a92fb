// Package morph holds the creature body plan: a directed graph of limb
// archetypes joined by connections, and the traversal that unrolls it into
// an ordered list of limbs and joints to build.
package morph

import (
	"slices"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/creatures/expr"
	"github.com/pthm-cable/creatures/geom"
)

// NodeID identifies a node within one graph.
type NodeID int

// EdgeID identifies an edge within one graph.
type EdgeID int

// CreatureID identifies a creature across a training session.
type CreatureID uint64

// LimbNode is one limb archetype.
type LimbNode struct {
	Density      float32 `yaml:"density"`
	Friction     float32 `yaml:"friction"`
	Restitution  float32 `yaml:"restitution"`
	TerminalOnly bool    `yaml:"terminal_only"`
	// RecursiveLimit bounds how many times the node is unrolled along
	// self-referencing paths. Values below 1 are treated as 1.
	RecursiveLimit int    `yaml:"recursive_limit"`
	Name           string `yaml:"name,omitempty"`
}

// LimbConnection describes how a child limb hangs off its parent and the
// joint between them.
type LimbConnection struct {
	Placement Placement
	Locked    geom.AxisMask
	// Limits holds the {min, max} travel for each axis.
	Limits [geom.NumAxes][2]float64
	// Effectors holds one controller per axis; only unlocked axes carry one.
	Effectors [geom.NumAxes]expr.Node
}

// ActiveEffectors counts the non-nil effectors.
func (c *LimbConnection) ActiveEffectors() int {
	n := 0
	for _, e := range c.Effectors {
		if e != nil {
			n++
		}
	}
	return n
}

// SetEffector installs n on axis a. It refuses locked axes.
func (c *LimbConnection) SetEffector(a geom.Axis, n expr.Node) bool {
	if c.Locked.Has(a) && n != nil {
		return false
	}
	c.Effectors[a] = n
	return true
}

// Clone deep-copies the connection, including its expression trees.
func (c LimbConnection) Clone() LimbConnection {
	for i, e := range c.Effectors {
		if e != nil {
			c.Effectors[i] = expr.Clone(e)
		}
	}
	return c
}

// Edge is a connection between two nodes. Endpoints change only through
// Graph.Rewire.
type Edge struct {
	LimbConnection
	from, to NodeID
}

// From returns the parent node.
func (e *Edge) From() NodeID { return e.from }

// To returns the child node.
func (e *Edge) To() NodeID { return e.to }

type nodeEntry struct {
	LimbNode
	outs []EdgeID
}

// Graph is a creature body plan. Node and edge IDs come from one counter and
// are never reused. Removing a node or edge never removes anything else; Prune
// is the only way unreachable parts go away.
type Graph struct {
	ID   CreatureID
	Root NodeID
	// RootScale holds the half extents of the root limb.
	RootScale r3.Vec

	nodes  map[NodeID]*nodeEntry
	edges  map[EdgeID]*Edge
	nextID int
}

// New returns an empty graph.
func New(id CreatureID) *Graph {
	return &Graph{
		ID:        id,
		RootScale: geom.One,
		nodes:     make(map[NodeID]*nodeEntry),
		edges:     make(map[EdgeID]*Edge),
	}
}

// AddNode inserts n and returns its ID.
func (g *Graph) AddNode(n LimbNode) NodeID {
	id := NodeID(g.nextID)
	g.nextID++
	g.nodes[id] = &nodeEntry{LimbNode: n}
	return id
}

// AddEdge connects from to to. It reports false, adding nothing, when either
// endpoint does not exist. The ID counter advances either way.
func (g *Graph) AddEdge(from, to NodeID, c LimbConnection) (EdgeID, bool) {
	id := EdgeID(g.nextID)
	g.nextID++
	src, ok := g.nodes[from]
	if !ok {
		return 0, false
	}
	if _, ok := g.nodes[to]; !ok {
		return 0, false
	}
	g.edges[id] = &Edge{LimbConnection: c, from: from, to: to}
	src.outs = append(src.outs, id)
	return id, true
}

// RemoveNode deletes a node. Edges touching it are left in place.
func (g *Graph) RemoveNode(id NodeID) (LimbNode, bool) {
	n, ok := g.nodes[id]
	if !ok {
		return LimbNode{}, false
	}
	delete(g.nodes, id)
	return n.LimbNode, true
}

// RemoveEdge deletes an edge and unlinks it from its parent.
func (g *Graph) RemoveEdge(id EdgeID) (LimbConnection, bool) {
	e, ok := g.edges[id]
	if !ok {
		return LimbConnection{}, false
	}
	delete(g.edges, id)
	if src, ok := g.nodes[e.from]; ok {
		src.outs = slices.DeleteFunc(src.outs, func(o EdgeID) bool { return o == id })
	}
	return e.LimbConnection, true
}

// Rewire moves an edge to new endpoints, both of which must exist.
func (g *Graph) Rewire(id EdgeID, from, to NodeID) bool {
	e, ok := g.edges[id]
	if !ok {
		return false
	}
	dst, ok := g.nodes[from]
	if !ok {
		return false
	}
	if _, ok := g.nodes[to]; !ok {
		return false
	}
	if from != e.from {
		if src, ok := g.nodes[e.from]; ok {
			src.outs = slices.DeleteFunc(src.outs, func(o EdgeID) bool { return o == id })
		}
		dst.outs = append(dst.outs, id)
		e.from = from
	}
	e.to = to
	return true
}

// SetRoot designates the root node.
func (g *Graph) SetRoot(id NodeID) bool {
	if _, ok := g.nodes[id]; !ok {
		return false
	}
	g.Root = id
	return true
}

// Node returns the node with the given ID, or nil.
func (g *Graph) Node(id NodeID) *LimbNode {
	if n, ok := g.nodes[id]; ok {
		return &n.LimbNode
	}
	return nil
}

// Edge returns the edge with the given ID, or nil.
func (g *Graph) Edge(id EdgeID) *Edge {
	return g.edges[id]
}

// OutEdges returns the edges leaving id in insertion order.
func (g *Graph) OutEdges(id NodeID) []EdgeID {
	if n, ok := g.nodes[id]; ok {
		return slices.Clone(n.outs)
	}
	return nil
}

// NodeIDs returns all node IDs in ascending order.
func (g *Graph) NodeIDs() []NodeID {
	ids := make([]NodeID, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// EdgeIDs returns all edge IDs in ascending order.
func (g *Graph) EdgeIDs() []EdgeID {
	ids := make([]EdgeID, 0, len(g.edges))
	for id := range g.edges {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Clone returns a deep copy with the same IDs under a new creature ID.
func (g *Graph) Clone(id CreatureID) *Graph {
	c := &Graph{
		ID:        id,
		Root:      g.Root,
		RootScale: g.RootScale,
		nodes:     make(map[NodeID]*nodeEntry, len(g.nodes)),
		edges:     make(map[EdgeID]*Edge, len(g.edges)),
		nextID:    g.nextID,
	}
	for nid, n := range g.nodes {
		c.nodes[nid] = &nodeEntry{LimbNode: n.LimbNode, outs: slices.Clone(n.outs)}
	}
	for eid, e := range g.edges {
		c.edges[eid] = &Edge{LimbConnection: e.LimbConnection.Clone(), from: e.from, to: e.to}
	}
	return c
}

// Reachable returns the set of nodes reachable from the root.
func (g *Graph) Reachable() map[NodeID]bool {
	seen := make(map[NodeID]bool)
	if _, ok := g.nodes[g.Root]; !ok {
		return seen
	}
	stack := []NodeID{g.Root}
	seen[g.Root] = true
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, eid := range g.nodes[id].outs {
			e, ok := g.edges[eid]
			if !ok || seen[e.to] {
				continue
			}
			if _, ok := g.nodes[e.to]; !ok {
				continue
			}
			seen[e.to] = true
			stack = append(stack, e.to)
		}
	}
	return seen
}

// Prune removes every node not reachable from the root, every edge leaving
// such a node and every edge whose endpoints are gone. It returns the number
// of nodes and edges removed.
func (g *Graph) Prune() (nodes, edges int) {
	live := g.Reachable()
	for _, eid := range g.EdgeIDs() {
		e := g.edges[eid]
		if !live[e.from] || !live[e.to] {
			g.RemoveEdge(eid)
			edges++
		}
	}
	for _, nid := range g.NodeIDs() {
		if !live[nid] {
			g.RemoveNode(nid)
			nodes++
		}
	}
	for _, n := range g.nodes {
		n.outs = slices.DeleteFunc(n.outs, func(o EdgeID) bool {
			_, ok := g.edges[o]
			return !ok
		})
	}
	return nodes, edges
}

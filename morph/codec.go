package morph

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/creatures/expr"
	"github.com/pthm-cable/creatures/geom"
)

// ErrUnknownNode is returned when a record references a node it does not
// define.
var ErrUnknownNode = errors.New("unknown node")

// ErrInconsistent is returned when a record's node adjacency lists disagree
// with its edges.
var ErrInconsistent = errors.New("inconsistent adjacency")

type recordDoc struct {
	ID        CreatureID `yaml:"id"`
	Root      NodeID     `yaml:"root"`
	NextID    int        `yaml:"next_id"`
	RootScale [3]float64 `yaml:"root_scale,flow"`
	Nodes     []nodeDoc  `yaml:"nodes"`
	Edges     []edgeDoc  `yaml:"edges"`
}

type nodeDoc struct {
	ID       NodeID `yaml:"id"`
	LimbNode `yaml:",inline"`
	Outs     []EdgeID `yaml:"outs,flow"`
}

type edgeDoc struct {
	ID          EdgeID              `yaml:"id"`
	From        NodeID              `yaml:"from"`
	To          NodeID              `yaml:"to"`
	Face        geom.Face           `yaml:"face"`
	Position    [2]float64          `yaml:"position,flow"`
	Orientation [4]float64          `yaml:"orientation,flow"`
	Scale       [3]float64          `yaml:"scale,flow"`
	Locked      uint8               `yaml:"locked"`
	Limits      [][2]float64        `yaml:"limits,flow"`
	Effectors   map[string]expr.Doc `yaml:"effectors,omitempty"`
}

// Marshal encodes the graph as a YAML record. Node and edge IDs, out-edge
// order and the ID counter are all preserved.
func Marshal(g *Graph) ([]byte, error) {
	doc := recordDoc{
		ID:        g.ID,
		Root:      g.Root,
		NextID:    g.nextID,
		RootScale: vec3(g.RootScale),
	}
	for _, id := range g.NodeIDs() {
		n := g.nodes[id]
		doc.Nodes = append(doc.Nodes, nodeDoc{ID: id, LimbNode: n.LimbNode, Outs: n.outs})
	}
	for _, id := range g.EdgeIDs() {
		e := g.edges[id]
		q := e.Placement.Orientation
		ed := edgeDoc{
			ID:          id,
			From:        e.from,
			To:          e.to,
			Face:        e.Placement.Face,
			Position:    [2]float64{e.Placement.Position.X, e.Placement.Position.Y},
			Orientation: [4]float64{q.Real, q.Imag, q.Jmag, q.Kmag},
			Scale:       vec3(e.Placement.Scale),
			Locked:      uint8(e.Locked),
			Limits:      e.Limits[:],
		}
		for i, eff := range e.Effectors {
			if eff == nil {
				continue
			}
			if ed.Effectors == nil {
				ed.Effectors = make(map[string]expr.Doc)
			}
			ed.Effectors[geom.Axis(i).String()] = expr.ToDoc(eff)
		}
		doc.Edges = append(doc.Edges, ed)
	}
	return yaml.Marshal(&doc)
}

// Unmarshal decodes a record produced by Marshal.
func Unmarshal(data []byte) (*Graph, error) {
	var doc recordDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing creature record: %w", err)
	}

	g := New(doc.ID)
	g.Root = doc.Root
	g.RootScale = r3.Vec{X: doc.RootScale[0], Y: doc.RootScale[1], Z: doc.RootScale[2]}
	g.nextID = doc.NextID

	for _, nd := range doc.Nodes {
		g.nodes[nd.ID] = &nodeEntry{LimbNode: nd.LimbNode, outs: nd.Outs}
	}
	for _, ed := range doc.Edges {
		if _, ok := g.nodes[ed.From]; !ok {
			return nil, fmt.Errorf("edge %d: %w %d", ed.ID, ErrUnknownNode, ed.From)
		}
		if _, ok := g.nodes[ed.To]; !ok {
			return nil, fmt.Errorf("edge %d: %w %d", ed.ID, ErrUnknownNode, ed.To)
		}
		e := &Edge{from: ed.From, to: ed.To}
		e.Placement = Placement{
			Face:     ed.Face,
			Position: r2.Vec{X: ed.Position[0], Y: ed.Position[1]},
			Orientation: quat.Number{
				Real: ed.Orientation[0], Imag: ed.Orientation[1],
				Jmag: ed.Orientation[2], Kmag: ed.Orientation[3],
			},
			Scale: r3.Vec{X: ed.Scale[0], Y: ed.Scale[1], Z: ed.Scale[2]},
		}
		e.Locked = geom.AxisMask(ed.Locked) & geom.AllAxes
		copy(e.Limits[:], ed.Limits)
		for name, d := range ed.Effectors {
			axis, err := geom.ParseAxis(name)
			if err != nil {
				return nil, fmt.Errorf("edge %d: %w", ed.ID, err)
			}
			n, err := expr.FromDoc(d)
			if err != nil {
				return nil, fmt.Errorf("edge %d effector %s: %w", ed.ID, name, err)
			}
			e.Effectors[axis] = n
		}
		g.edges[ed.ID] = e
	}
	if len(g.nodes) > 0 {
		if _, ok := g.nodes[g.Root]; !ok {
			return nil, fmt.Errorf("root: %w %d", ErrUnknownNode, g.Root)
		}
	}
	listed := make(map[EdgeID]bool, len(g.edges))
	for id, n := range g.nodes {
		for _, eid := range n.outs {
			e, ok := g.edges[eid]
			if !ok || e.from != id || listed[eid] {
				return nil, fmt.Errorf("node %d: %w: lists edge %d", id, ErrInconsistent, eid)
			}
			listed[eid] = true
		}
	}
	for eid, e := range g.edges {
		if !listed[eid] {
			return nil, fmt.Errorf("edge %d: %w: missing from node %d", eid, ErrInconsistent, e.from)
		}
	}
	return g, nil
}

func vec3(v r3.Vec) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

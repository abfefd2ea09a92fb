package morph

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/creatures/expr"
	"github.com/pthm-cable/creatures/geom"
)

// LimbSpawn is an instruction to create one limb.
type LimbSpawn struct {
	Node        NodeID
	Transform   geom.Transform
	Density     float32
	Friction    float32
	Restitution float32
	Name        string
}

// JointSpawn is an instruction to join two limbs. Parent and Child index
// BuildResult.Limbs.
type JointSpawn struct {
	Edge         EdgeID
	Parent       int
	Child        int
	ParentAnchor r3.Vec
	ChildAnchor  r3.Vec
	Locked       geom.AxisMask
	Limits       [geom.NumAxes][2]float64
	Effectors    [geom.NumAxes]expr.Node
}

// BuildResult is the unrolled body plan, in spawn order.
type BuildResult struct {
	Limbs  []LimbSpawn
	Joints []JointSpawn
}

// Lowest returns the smallest world Y over every limb's corners, or 0 for
// an empty result.
func (r *BuildResult) Lowest() float64 {
	if len(r.Limbs) == 0 {
		return 0
	}
	lowest := math.Inf(1)
	for _, l := range r.Limbs {
		lowest = math.Min(lowest, l.Transform.Lowest())
	}
	return lowest
}

// Lift translates every limb vertically so the lowest corner sits at y.
// Anchors are limb-relative and need no change.
func (r *BuildResult) Lift(y float64) {
	dy := y - r.Lowest()
	for i := range r.Limbs {
		r.Limbs[i].Transform.Translation.Y += dy
	}
}

// RootTransform places the root limb at p with the graph's root scale.
func (g *Graph) RootTransform(p r3.Vec) geom.Transform {
	return geom.At(p, g.RootScale)
}

type frame struct {
	transform geom.Transform
	limb      int
}

type evaluator struct {
	g         *Graph
	res       *BuildResult
	history   map[NodeID][]frame
	remaining map[NodeID]int
}

// Evaluate unrolls the graph depth first from the root. Self references and
// cycles are expanded until each node's recursion limit is used up. A graph
// without a valid root yields an empty result.
func (g *Graph) Evaluate(root geom.Transform) *BuildResult {
	res := &BuildResult{}
	rootNode, ok := g.nodes[g.Root]
	if !ok {
		return res
	}
	ev := &evaluator{
		g:         g,
		res:       res,
		history:   make(map[NodeID][]frame),
		remaining: make(map[NodeID]int),
	}

	res.Limbs = append(res.Limbs, limbSpawn(g.Root, &rootNode.LimbNode, root))
	ev.push(g.Root, frame{transform: root, limb: 0})
	ev.remaining[g.Root] = recursionBudget(rootNode.RecursiveLimit)

	ev.descend(g.Root)
	ev.pop(g.Root)
	return res
}

func (ev *evaluator) descend(id NodeID) {
	n, ok := ev.g.nodes[id]
	if !ok {
		return
	}
	for _, eid := range n.outs {
		e, ok := ev.g.edges[eid]
		if !ok {
			continue
		}
		if ev.visit(eid, e) {
			ev.descend(e.to)
			ev.pop(e.to)
		}
	}
}

// visit handles arrival at e.to and reports whether to continue into it.
func (ev *evaluator) visit(eid EdgeID, e *Edge) bool {
	child, ok := ev.g.nodes[e.to]
	if !ok {
		return false
	}
	parent, ok := ev.top(e.from)
	if !ok {
		return false
	}

	remaining, seen := ev.remaining[e.to]
	terminal := seen && remaining == 0
	if terminal && !child.TerminalOnly {
		return false
	}

	if terminal == child.TerminalOnly {
		world, parentAnchor, childAnchor := e.Placement.CreateTransform(parent.transform)
		idx := len(ev.res.Limbs)
		ev.res.Limbs = append(ev.res.Limbs, limbSpawn(e.to, &child.LimbNode, world))
		js := JointSpawn{
			Edge:         eid,
			Parent:       parent.limb,
			Child:        idx,
			ParentAnchor: parentAnchor,
			ChildAnchor:  childAnchor,
			Locked:       e.Locked,
			Limits:       e.Limits,
		}
		for i, eff := range e.Effectors {
			if eff != nil && !e.Locked.Has(geom.Axis(i)) {
				js.Effectors[i] = expr.Clone(eff)
			}
		}
		ev.res.Joints = append(ev.res.Joints, js)
		if !child.TerminalOnly {
			ev.push(e.to, frame{transform: world, limb: idx})
		}
	}

	if terminal {
		return false
	}
	if seen {
		ev.remaining[e.to] = remaining - 1
	} else {
		ev.remaining[e.to] = recursionBudget(child.RecursiveLimit)
	}
	return true
}

func (ev *evaluator) push(id NodeID, f frame) {
	ev.history[id] = append(ev.history[id], f)
}

func (ev *evaluator) pop(id NodeID) {
	if h := ev.history[id]; len(h) > 0 {
		ev.history[id] = h[:len(h)-1]
	}
}

func (ev *evaluator) top(id NodeID) (frame, bool) {
	h := ev.history[id]
	if len(h) == 0 {
		return frame{}, false
	}
	return h[len(h)-1], true
}

func recursionBudget(limit int) int {
	return max(limit, 1) - 1
}

func limbSpawn(id NodeID, n *LimbNode, t geom.Transform) LimbSpawn {
	return LimbSpawn{
		Node:        id,
		Transform:   t,
		Density:     n.Density,
		Friction:    n.Friction,
		Restitution: n.Restitution,
		Name:        n.Name,
	}
}

package mutate

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/creatures/geom"
	"github.com/pthm-cable/creatures/morph"
)

// Stats counts what one mutation pass changed.
type Stats struct {
	EdgesRewired int
	EdgesAdded   int
	EdgesRemoved int
	NodesPruned  int
	EdgesPruned  int
	Effectors    int
}

// Node mutates one limb archetype in place.
func (p NodeParams) Node(rng *rand.Rand, n *morph.LimbNode) {
	n.Density = p.Density.Perturb32(rng, n.Density)
	n.Friction = p.Friction.Perturb32(rng, n.Friction)
	n.Restitution = p.Restitution.Perturb32(rng, n.Restitution)
	n.RecursiveLimit = max(1, p.RecursiveLimit.PerturbInt(rng, n.RecursiveLimit))
	if rng.Float64() < p.TerminalFreq {
		n.TerminalOnly = !n.TerminalOnly
	}
}

// Connection mutates the placement, limits and locked axes of one edge in
// place. Locking an axis drops its effector; unlocking one gives it a fresh
// controller built by newExpr.
func (p EdgeParams) Connection(rng *rand.Rand, c *morph.LimbConnection, newExpr ExprBuildParams) {
	pl := &c.Placement
	if rng.Float64() < p.FaceFreq {
		pl.Face = geom.Face(other(rng, int(pl.Face), geom.NumFaces))
	}
	pl.Position = r2.Vec{
		X: p.Position.Perturb(rng, pl.Position.X),
		Y: p.Position.Perturb(rng, pl.Position.Y),
	}
	if p.Rotation.Changes(rng) {
		pl.Orientation = swing(rng, pl.Orientation, p.Rotation.Sample(rng))
	}
	for i := 0; i < 3; i++ {
		v := geom.Component(pl.Scale, i)
		pl.Scale = geom.WithComponent(pl.Scale, i, p.Scale.Perturb(rng, v))
	}
	for i := range c.Limits {
		lo := p.Limits.Perturb(rng, c.Limits[i][0])
		hi := p.Limits.Perturb(rng, c.Limits[i][1])
		if lo > hi {
			lo, hi = hi, lo
		}
		c.Limits[i] = [2]float64{lo, hi}
	}
	for _, a := range geom.Axes {
		if rng.Float64() >= p.LockFreq {
			continue
		}
		c.Locked = c.Locked.Toggle(a)
		if c.Locked.Has(a) {
			c.Effectors[a] = nil
		} else {
			c.Effectors[a] = newExpr.Expr(rng)
		}
	}
}

// swing rotates q toward a target a quarter turn away, about an axis that is
// the current one tilted by a random perpendicular. The step is the sample
// magnitude, capped at a full slerp.
func swing(rng *rand.Rand, q quat.Number, sample float64) quat.Number {
	axis, angle := geom.ToAxisAngle(q)
	delta := math.Pi / 2
	if rng.Intn(2) == 0 {
		delta = -delta
	}
	toAngle := math.Mod(angle+delta+2*math.Pi, 2*math.Pi)
	perp := geom.Rotate(geom.AxisAngle(axis, randomAngle(rng)), geom.Perpendicular(axis))
	target := geom.AxisAngle(perp, toAngle)
	return geom.Slerp(geom.Normalize(q), target, min(math.Abs(sample), 1))
}

// Mutate runs one full structural and behavioral mutation pass over g:
// node fields, one new node, edge fields and rewiring, edge deletion and
// insertion, pruning of everything unreachable, expression trees and the
// root body shape, in that order.
func (p Params) Mutate(rng *rand.Rand, g *morph.Graph) Stats {
	var st Stats
	newExpr := p.Random.Expr
	newExpr.JointCount = jointCount(g)

	// Node fields.
	if n := g.NodeCount(); n > 0 {
		np := p.Node.Scaled(1 / float64(n))
		for _, id := range g.NodeIDs() {
			np.Node(rng, g.Node(id))
		}
	}

	// One fresh node; it survives only if an edge reaches it below.
	g.AddNode(p.Random.Node(rng))
	nodes := g.NodeIDs()

	// Edge fields and rewiring.
	if n := g.EdgeCount(); n > 0 {
		ep := p.Edge.Scaled(1 / float64(n))
		for _, id := range g.EdgeIDs() {
			e := g.Edge(id)
			ep.Connection(rng, &e.LimbConnection, newExpr)
			if rng.Float64() < ep.RewireFreq && p.rewire(rng, g, id, nodes) {
				st.EdgesRewired++
			}
		}
	}

	// Edge deletion and insertion.
	if n := g.EdgeCount(); n > 0 {
		del := p.Edge.DelFreq / float64(n)
		for _, id := range g.EdgeIDs() {
			if rng.Float64() < del && !lastRootEdge(g, id) {
				g.RemoveEdge(id)
				st.EdgesRemoved++
			}
		}
	}
	add := p.Edge.AddFreq / float64(len(nodes))
	for _, from := range nodes {
		if rng.Float64() < add {
			to := nodes[rng.Intn(len(nodes))]
			if _, ok := g.AddEdge(from, to, p.Random.Connection(rng, newExpr.JointCount)); ok {
				st.EdgesAdded++
			}
		}
	}

	st.NodesPruned, st.EdgesPruned = g.Prune()

	// Expression trees.
	xp := p.Expr
	xp.NewExpr.JointCount = jointCount(g)
	for _, id := range g.EdgeIDs() {
		e := g.Edge(id)
		active := e.ActiveEffectors()
		if active == 0 {
			continue
		}
		ep := xp.Scaled(1 / float64(active))
		for i, eff := range e.Effectors {
			if eff == nil {
				continue
			}
			e.Effectors[i] = ep.Expr(rng, eff)
			st.Effectors++
		}
	}

	p.rootScale(rng, g)
	return st
}

// jointCount is the number of joints g unrolls into. Global references
// index these, so repeated segments count once per repetition.
func jointCount(g *morph.Graph) int {
	return max(len(g.Evaluate(g.RootTransform(r3.Vec{})).Joints), 1)
}

// rewire moves one endpoint of edge id to another node.
func (p Params) rewire(rng *rand.Rand, g *morph.Graph, id morph.EdgeID, nodes []morph.NodeID) bool {
	if len(nodes) < 2 {
		return false
	}
	e := g.Edge(id)
	from, to := e.From(), e.To()
	if rng.Intn(2) == 0 {
		if lastRootEdge(g, id) {
			return false
		}
		from = pickOther(rng, nodes, from)
	} else {
		to = pickOther(rng, nodes, to)
	}
	return g.Rewire(id, from, to)
}

func pickOther(rng *rand.Rand, nodes []morph.NodeID, cur morph.NodeID) morph.NodeID {
	for {
		if n := nodes[rng.Intn(len(nodes))]; n != cur {
			return n
		}
	}
}

// lastRootEdge reports whether id is the only edge leaving the root.
func lastRootEdge(g *morph.Graph, id morph.EdgeID) bool {
	e := g.Edge(id)
	return e != nil && e.From() == g.Root && len(g.OutEdges(g.Root)) <= 1
}

// rootScale stretches one root half extent and shrinks a companion so the
// root volume is unchanged.
func (p Params) rootScale(rng *rand.Rand, g *morph.Graph) {
	if !p.RootScale.Changes(rng) {
		return
	}
	axis := rng.Intn(3)
	companion := (axis + 1 + rng.Intn(2)) % 3

	f := p.RootScale.Bound(1 + p.RootScale.Sample(rng))
	if f <= 0 {
		return
	}
	s := g.RootScale
	s = geom.WithComponent(s, axis, geom.Component(s, axis)*f)
	s = geom.WithComponent(s, companion, geom.Component(s, companion)/f)
	if geom.Finite(s) && s != (r3.Vec{}) {
		g.RootScale = s
	}
}

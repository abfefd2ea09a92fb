package mutate

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/creatures/expr"
	"github.com/pthm-cable/creatures/geom"
	"github.com/pthm-cable/creatures/morph"
)

// nodeWeight is the selection weight of an operator node against the leaf
// weights in ExprBuildParams. Operator arity is then split 40/40/20 between
// unary, binary and ternary.
const nodeWeight = 100

func uniform(rng *rand.Rand, r [2]float64) float64 {
	return r[0] + rng.Float64()*(r[1]-r[0])
}

func uniformInt(rng *rand.Rand, r [2]int) int {
	if r[1] <= r[0] {
		return r[0]
	}
	return r[0] + rng.Intn(r[1]-r[0]+1)
}

// Expr builds a random expression tree.
func (p ExprBuildParams) Expr(rng *rand.Rand) expr.Node {
	return p.build(rng, 0)
}

func (p ExprBuildParams) build(rng *rand.Rand, depth int) expr.Node {
	if depth >= p.MaxDepth {
		return p.leaf(rng)
	}
	if depth >= p.MinDepth {
		total := p.ValueWeight + p.ConstWeight + nodeWeight
		r := rng.Intn(total)
		switch {
		case r < p.ValueWeight:
			return expr.Value{Ref: p.Ref(rng)}
		case r < p.ValueWeight+p.ConstWeight:
			return p.constant(rng)
		}
	}

	r := rng.Intn(nodeWeight)
	switch {
	case r < 40:
		return expr.Unary{Op: RandomUnaryOp(rng), X: p.build(rng, depth+1)}
	case r < 80:
		return expr.Binary{Op: RandomBinaryOp(rng), X: p.build(rng, depth+1), Y: p.build(rng, depth+1)}
	default:
		return expr.Ternary{
			Op: RandomTernaryOp(rng),
			X:  p.build(rng, depth+1),
			Y:  p.build(rng, depth+1),
			Z:  p.build(rng, depth+1),
		}
	}
}

func (p ExprBuildParams) leaf(rng *rand.Rand) expr.Node {
	total := p.ValueWeight + p.ConstWeight
	if total <= 0 || rng.Intn(total) < p.ValueWeight {
		return expr.Value{Ref: p.Ref(rng)}
	}
	return p.constant(rng)
}

func (p ExprBuildParams) constant(rng *rand.Rand) expr.Node {
	return expr.Constant(uniform(rng, p.ConstRange))
}

// Ref draws a random context reference.
func (p ExprBuildParams) Ref(rng *rand.Rand) expr.Ref {
	switch expr.Source(rng.Intn(3)) {
	case expr.Local:
		return expr.LocalRef(RandomElement(rng))
	case expr.Global:
		return expr.GlobalRef(RandomElement(rng), p.joint(rng))
	default:
		return expr.TimeRef()
	}
}

func (p ExprBuildParams) joint(rng *rand.Rand) int {
	return rng.Intn(max(p.JointCount, 1))
}

// RandomElement draws a per-joint quantity.
func RandomElement(rng *rand.Rand) expr.Element {
	e := expr.Element{Kind: expr.ElementKind(rng.Intn(3))}
	if e.Kind == expr.JointAxis {
		e.Axis = geom.Axis(rng.Intn(geom.NumAxes))
	} else {
		e.Face = geom.Face(rng.Intn(geom.NumFaces))
	}
	return e
}

// RandomUnaryOp draws any unary operator.
func RandomUnaryOp(rng *rand.Rand) expr.UnaryOp {
	return expr.UnaryOp(rng.Intn(expr.NumUnaryOps))
}

// RandomBinaryOp draws any binary operator.
func RandomBinaryOp(rng *rand.Rand) expr.BinaryOp {
	return expr.BinaryOp(rng.Intn(expr.NumBinaryOps))
}

// RandomTernaryOp draws any ternary operator.
func RandomTernaryOp(rng *rand.Rand) expr.TernaryOp {
	return expr.TernaryOp(rng.Intn(expr.NumTernaryOps))
}

// Node builds a random limb archetype.
func (p RandomParams) Node(rng *rand.Rand) morph.LimbNode {
	return morph.LimbNode{
		Density:        float32(uniform(rng, p.Density)),
		Friction:       float32(uniform(rng, p.Friction)),
		Restitution:    float32(uniform(rng, p.Restitution)),
		TerminalOnly:   rng.Float64() < p.TerminalChance,
		RecursiveLimit: max(1, uniformInt(rng, p.RecursiveLimit)),
	}
}

func randomAxis(rng *rand.Rand) r3.Vec {
	for {
		v := r3.Vec{X: rng.NormFloat64(), Y: rng.NormFloat64(), Z: rng.NormFloat64()}
		if n := r3.Norm(v); n > 1e-6 {
			return r3.Scale(1/n, v)
		}
	}
}

// Connection builds a random limb connection whose effectors may address
// up to jointCount joints.
func (p RandomParams) Connection(rng *rand.Rand, jointCount int) morph.LimbConnection {
	axis := randomAxis(rng)
	c := morph.LimbConnection{
		Placement: morph.Placement{
			Face:        geom.Face(rng.Intn(geom.NumFaces)),
			Position:    r2.Vec{X: uniform(rng, [2]float64{-1, 1}), Y: uniform(rng, [2]float64{-1, 1})},
			Orientation: geom.AxisAngle(axis, uniform(rng, [2]float64{-p.MaxTilt, p.MaxTilt})),
			Scale: r3.Vec{
				X: uniform(rng, p.Scale),
				Y: uniform(rng, p.Scale),
				Z: uniform(rng, p.Scale),
			},
		},
	}
	for _, a := range geom.Axes {
		locked := rng.Float64() < p.LockChance
		if !a.Angular() && p.LockLinear {
			locked = true
		}
		if locked {
			c.Locked = c.Locked.With(a)
		}
	}
	for _, a := range geom.Axes {
		limit := p.AngularLimit
		if !a.Angular() {
			limit = p.LinearLimit
		}
		c.Limits[a] = [2]float64{-rng.Float64() * limit, rng.Float64() * limit}
	}
	ep := p.Expr
	ep.JointCount = max(jointCount, 1)
	for _, a := range geom.Axes {
		if !c.Locked.Has(a) && rng.Float64() < p.EffectorChance {
			c.Effectors[a] = ep.Expr(rng)
		}
	}
	return c
}

// Graph builds a random body plan: a spanning tree over the nodes rooted at
// the first one, plus a few extra edges that may close cycles.
func (p RandomParams) Graph(rng *rand.Rand, id morph.CreatureID) *morph.Graph {
	g := morph.New(id)
	n := max(1, uniformInt(rng, p.Nodes))
	extra := max(0, uniformInt(rng, p.ExtraEdges))
	joints := n - 1 + extra

	ids := make([]morph.NodeID, n)
	for i := range ids {
		ids[i] = g.AddNode(p.Node(rng))
	}
	g.SetRoot(ids[0])
	// The root always spawns; keep it a regular node.
	g.Node(ids[0]).TerminalOnly = false

	for i := 1; i < n; i++ {
		g.AddEdge(ids[rng.Intn(i)], ids[i], p.Connection(rng, joints))
	}
	for i := 0; i < extra; i++ {
		g.AddEdge(ids[rng.Intn(n)], ids[rng.Intn(n)], p.Connection(rng, joints))
	}
	g.RootScale = r3.Vec{
		X: uniform(rng, p.RootScale),
		Y: uniform(rng, p.RootScale),
		Z: uniform(rng, p.RootScale),
	}
	return g
}

// randomAngle returns a uniform angle in [0, 2π).
func randomAngle(rng *rand.Rand) float64 {
	return rng.Float64() * 2 * math.Pi
}

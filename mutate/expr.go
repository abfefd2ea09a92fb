package mutate

import (
	"math/rand"

	"github.com/pthm-cable/creatures/expr"
)

// Expr mutates a tree bottom-up and returns the new tree. Probabilities are
// divided by the tree size first, so larger trees see about as many changes
// as small ones. The input tree is not modified.
func (p ExprParams) Expr(rng *rand.Rand, n expr.Node) expr.Node {
	if n == nil {
		return nil
	}
	size := expr.Size(n)
	m := exprMutator{p: p.Scaled(1 / float64(size)), rng: rng}
	return m.node(n)
}

type exprMutator struct {
	p   ExprParams
	rng *rand.Rand
}

func (m *exprMutator) chance(p float64) bool {
	return m.rng.Float64() < p
}

func (m *exprMutator) coin() bool {
	return m.rng.Intn(2) == 0
}

func (m *exprMutator) fresh() expr.Node {
	return m.p.NewExpr.Expr(m.rng)
}

func (m *exprMutator) node(n expr.Node) expr.Node {
	switch n := n.(type) {
	case expr.Value:
		return m.wrap(expr.Value{Ref: m.ref(n.Ref)})
	case expr.Constant:
		v := n
		if m.p.Constant.Changes(m.rng) {
			v = expr.Constant(m.p.Constant.Bound(float64(n) + m.p.Constant.Sample(m.rng)))
		}
		return m.wrap(v)
	case expr.Unary:
		return m.unary(n.Op, m.node(n.X))
	case expr.Binary:
		return m.binary(n.Op, m.node(n.X), m.node(n.Y))
	case expr.Ternary:
		return m.ternary(n.Op, m.node(n.X), m.node(n.Y), m.node(n.Z))
	}
	return n
}

// wrap puts a leaf under a new unary operator.
func (m *exprMutator) wrap(leaf expr.Node) expr.Node {
	if m.chance(m.p.OpAdd) {
		return expr.Unary{Op: RandomUnaryOp(m.rng), X: leaf}
	}
	return leaf
}

func (m *exprMutator) ref(r expr.Ref) expr.Ref {
	if m.chance(m.p.ValueChangeType) {
		joints := m.p.NewExpr
		switch r.Source {
		case expr.Local:
			if m.coin() {
				return expr.GlobalRef(r.Element, joints.joint(m.rng))
			}
			return expr.TimeRef()
		case expr.Global:
			if m.coin() {
				return expr.LocalRef(r.Element)
			}
			return expr.TimeRef()
		default:
			if m.coin() {
				return expr.LocalRef(RandomElement(m.rng))
			}
			return expr.GlobalRef(RandomElement(m.rng), joints.joint(m.rng))
		}
	}
	if m.chance(m.p.ValueChange) && r.Source != expr.Time {
		r.Element = RandomElement(m.rng)
	}
	return r
}

func (m *exprMutator) unary(op expr.UnaryOp, x expr.Node) expr.Node {
	if m.chance(m.p.OpChangeType) && m.coin() {
		return expr.Binary{Op: RandomBinaryOp(m.rng), X: x, Y: m.fresh()}
	}
	if m.chance(m.p.OpDel) {
		return x
	}
	if m.chance(m.p.OpChange) {
		op = expr.UnaryOp(other(m.rng, int(op), expr.NumUnaryOps))
	}
	return expr.Unary{Op: op, X: x}
}

func (m *exprMutator) binary(op expr.BinaryOp, x, y expr.Node) expr.Node {
	if m.chance(m.p.OpChangeType) {
		if m.coin() {
			return expr.Unary{Op: RandomUnaryOp(m.rng), X: x}
		}
		return expr.Ternary{Op: RandomTernaryOp(m.rng), X: x, Y: y, Z: m.fresh()}
	}
	if m.chance(m.p.OpDel) {
		if m.coin() {
			return x
		}
		return y
	}
	if m.chance(m.p.OpChange) {
		op = expr.BinaryOp(other(m.rng, int(op), expr.NumBinaryOps))
	}
	return expr.Binary{Op: op, X: x, Y: y}
}

func (m *exprMutator) ternary(op expr.TernaryOp, x, y, z expr.Node) expr.Node {
	if m.chance(m.p.OpChangeType) && m.coin() {
		return expr.Binary{Op: RandomBinaryOp(m.rng), X: x, Y: y}
	}
	if m.chance(m.p.OpDel) {
		return []expr.Node{x, y, z}[m.rng.Intn(3)]
	}
	if m.chance(m.p.OpChange) {
		op = expr.TernaryOp(other(m.rng, int(op), expr.NumTernaryOps))
	}
	return expr.Ternary{Op: op, X: x, Y: y, Z: z}
}

// other draws a value in [0, n) different from cur when n > 1.
func other(rng *rand.Rand, cur, n int) int {
	if n < 2 {
		return cur
	}
	v := rng.Intn(n - 1)
	if v >= cur {
		v++
	}
	return v
}

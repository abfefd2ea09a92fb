package expr

// Eval evaluates n against ctx. It never panics and never returns a
// non-finite value; a nil node or context yields Fallback.
func Eval(n Node, ctx *CreatureContext) float32 {
	switch n := n.(type) {
	case Value:
		return finite(float64(ctx.Lookup(n.Ref)))
	case Constant:
		return finite(float64(n))
	case Unary:
		return n.Op.Apply(Eval(n.X, ctx))
	case Binary:
		return n.Op.Apply(Eval(n.X, ctx), Eval(n.Y, ctx))
	case Ternary:
		return n.Op.Apply(Eval(n.X, ctx), Eval(n.Y, ctx), Eval(n.Z, ctx))
	default:
		return Fallback
	}
}

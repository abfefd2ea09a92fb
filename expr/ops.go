package expr

import (
	"fmt"
	"math"
)

// UnaryOp is a one-argument operator.
type UnaryOp uint8

const (
	Sign UnaryOp = iota
	Abs
	Sin
	Cos
	Ln
	Exp
	Sigmoid
	numUnaryOps
)

// BinaryOp is a two-argument operator.
type BinaryOp uint8

const (
	Add BinaryOp = iota
	Sub
	Mul
	Div
	Mod
	Greater
	Min
	Max
	Atan2
	numBinaryOps
)

// TernaryOp is a three-argument operator.
type TernaryOp uint8

const (
	// IfElse yields its second argument when the first is non-negative and
	// its third otherwise.
	IfElse TernaryOp = iota
	// Lerp interpolates from the first argument to the second by the third.
	Lerp
	numTernaryOps
)

// Operator counts per arity.
const (
	NumUnaryOps   = int(numUnaryOps)
	NumBinaryOps  = int(numBinaryOps)
	NumTernaryOps = int(numTernaryOps)
)

var (
	unaryNames   = [...]string{"sign", "abs", "sin", "cos", "ln", "exp", "sigmoid"}
	binaryNames  = [...]string{"add", "sub", "mul", "div", "mod", "gt", "min", "max", "atan2"}
	ternaryNames = [...]string{"ifelse", "lerp"}
)

func (o UnaryOp) valid() bool   { return o < numUnaryOps }
func (o BinaryOp) valid() bool  { return o < numBinaryOps }
func (o TernaryOp) valid() bool { return o < numTernaryOps }

func (o UnaryOp) String() string {
	if o.valid() {
		return unaryNames[o]
	}
	return fmt.Sprintf("UnaryOp(%d)", uint8(o))
}

func (o BinaryOp) String() string {
	if o.valid() {
		return binaryNames[o]
	}
	return fmt.Sprintf("BinaryOp(%d)", uint8(o))
}

func (o TernaryOp) String() string {
	if o.valid() {
		return ternaryNames[o]
	}
	return fmt.Sprintf("TernaryOp(%d)", uint8(o))
}

// Apply computes the operator on a.
func (o UnaryOp) Apply(a float32) float32 {
	x := float64(a)
	var r float64
	switch o {
	case Sign:
		r = 1
		if x < 0 {
			r = -1
		}
	case Abs:
		r = math.Abs(x)
	case Sin:
		r = math.Sin(x)
	case Cos:
		r = math.Cos(x)
	case Ln:
		r = math.Log(x)
	case Exp:
		r = math.Exp(x)
	case Sigmoid:
		r = 1 / (1 + math.Exp(-x))
	}
	return finite(r)
}

// Apply computes the operator on a and b.
func (o BinaryOp) Apply(a, b float32) float32 {
	x, y := float64(a), float64(b)
	var r float64
	switch o {
	case Add:
		r = x + y
	case Sub:
		r = x - y
	case Mul:
		r = x * y
	case Div:
		r = x / y
	case Mod:
		r = math.Mod(x, y)
	case Greater:
		r = -1
		if x > y {
			r = 1
		}
	case Min:
		r = math.Min(x, y)
	case Max:
		r = math.Max(x, y)
	case Atan2:
		r = math.Atan2(x, y)
	}
	return finite(r)
}

// Apply computes the operator on a, b and c.
func (o TernaryOp) Apply(a, b, c float32) float32 {
	var r float64
	switch o {
	case IfElse:
		r = float64(c)
		if a >= 0 {
			r = float64(b)
		}
	case Lerp:
		x, y := float64(a), float64(b)
		r = x + (y-x)*float64(c)
	}
	return finite(r)
}

// Fallback is the value substituted for any non-finite result.
const Fallback float32 = 0

func finite(r float64) float32 {
	f := float32(r)
	if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
		return Fallback
	}
	return f
}

// ParseUnaryOp looks up a unary operator by name.
func ParseUnaryOp(s string) (UnaryOp, bool) {
	for i, name := range unaryNames {
		if name == s {
			return UnaryOp(i), true
		}
	}
	return 0, false
}

// ParseBinaryOp looks up a binary operator by name.
func ParseBinaryOp(s string) (BinaryOp, bool) {
	for i, name := range binaryNames {
		if name == s {
			return BinaryOp(i), true
		}
	}
	return 0, false
}

// ParseTernaryOp looks up a ternary operator by name.
func ParseTernaryOp(s string) (TernaryOp, bool) {
	for i, name := range ternaryNames {
		if name == s {
			return TernaryOp(i), true
		}
	}
	return 0, false
}

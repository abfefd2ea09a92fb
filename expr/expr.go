// Package expr implements the behavior expression language: small typed
// expression trees that drive one joint degree of freedom each, evaluated
// against a snapshot of the creature's physical state.
package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pthm-cable/creatures/geom"
)

// Node is an expression tree node. The concrete types are Value, Constant,
// Unary, Binary and Ternary. Trees are treated as immutable values: mutation
// builds new nodes and never edits children in place.
type Node interface {
	isNode()
	String() string
}

// Value reads one element of the creature context.
type Value struct {
	Ref Ref
}

// Constant is a literal.
type Constant float32

// Unary applies a one-argument operator.
type Unary struct {
	Op UnaryOp
	X  Node
}

// Binary applies a two-argument operator.
type Binary struct {
	Op   BinaryOp
	X, Y Node
}

// Ternary applies a three-argument operator.
type Ternary struct {
	Op      TernaryOp
	X, Y, Z Node
}

func (Value) isNode()    {}
func (Constant) isNode() {}
func (Unary) isNode()    {}
func (Binary) isNode()   {}
func (Ternary) isNode()  {}

func (v Value) String() string { return v.Ref.String() }

func (c Constant) String() string {
	return strconv.FormatFloat(float64(c), 'g', -1, 32)
}

func (u Unary) String() string {
	return fmt.Sprintf("%s(%s)", u.Op, u.X)
}

func (b Binary) String() string {
	return fmt.Sprintf("%s(%s, %s)", b.Op, b.X, b.Y)
}

func (t Ternary) String() string {
	return fmt.Sprintf("%s(%s, %s, %s)", t.Op, t.X, t.Y, t.Z)
}

// Source selects how a Value addresses the context.
type Source uint8

const (
	// Local reads from the joint the expression is attached to.
	Local Source = iota
	// Global reads from a joint chosen by index.
	Global
	// Time reads the elapsed simulation time.
	Time
)

var sourceNames = [...]string{"local", "global", "time"}

func (s Source) String() string {
	if int(s) < len(sourceNames) {
		return sourceNames[s]
	}
	return fmt.Sprintf("Source(%d)", uint8(s))
}

// ElementKind is the kind of per-joint quantity addressed by a Ref.
type ElementKind uint8

const (
	ParentContact ElementKind = iota
	ChildContact
	JointAxis
)

var elementNames = [...]string{"parent", "child", "axis"}

func (k ElementKind) String() string {
	if int(k) < len(elementNames) {
		return elementNames[k]
	}
	return fmt.Sprintf("ElementKind(%d)", uint8(k))
}

// Element is one per-joint quantity: a contact flag on a face of the parent
// or child limb, or the deviation along one joint axis.
type Element struct {
	Kind ElementKind
	Face geom.Face
	Axis geom.Axis
}

func (e Element) String() string {
	if e.Kind == JointAxis {
		return e.Kind.String() + "." + e.Axis.String()
	}
	return e.Kind.String() + "." + e.Face.String()
}

// Ref addresses a context value. Element is ignored for Time and Joint is
// only meaningful for Global.
type Ref struct {
	Source  Source
	Element Element
	Joint   int
}

// LocalRef addresses e on the owning joint.
func LocalRef(e Element) Ref { return Ref{Source: Local, Element: e} }

// GlobalRef addresses e on joint i.
func GlobalRef(e Element, i int) Ref { return Ref{Source: Global, Element: e, Joint: i} }

// TimeRef addresses the elapsed simulation time.
func TimeRef() Ref { return Ref{Source: Time} }

func (r Ref) String() string {
	switch r.Source {
	case Local:
		return "local." + r.Element.String()
	case Global:
		return fmt.Sprintf("joint[%d].%s", r.Joint, r.Element)
	default:
		return "time"
	}
}

// Clone returns a deep copy of n.
func Clone(n Node) Node {
	switch n := n.(type) {
	case Unary:
		return Unary{Op: n.Op, X: Clone(n.X)}
	case Binary:
		return Binary{Op: n.Op, X: Clone(n.X), Y: Clone(n.Y)}
	case Ternary:
		return Ternary{Op: n.Op, X: Clone(n.X), Y: Clone(n.Y), Z: Clone(n.Z)}
	default:
		return n
	}
}

// Children returns the direct children of n in argument order.
func Children(n Node) []Node {
	switch n := n.(type) {
	case Unary:
		return []Node{n.X}
	case Binary:
		return []Node{n.X, n.Y}
	case Ternary:
		return []Node{n.X, n.Y, n.Z}
	default:
		return nil
	}
}

// Size counts the nodes in the tree.
func Size(n Node) int {
	if n == nil {
		return 0
	}
	size := 1
	for _, c := range Children(n) {
		size += Size(c)
	}
	return size
}

// Depth is the number of nodes on the longest root-to-leaf path.
func Depth(n Node) int {
	if n == nil {
		return 0
	}
	depth := 0
	for _, c := range Children(n) {
		depth = max(depth, Depth(c))
	}
	return depth + 1
}

// WellFormed reports whether every operator has children of its arity and
// every leaf is a Value or a Constant.
func WellFormed(n Node) bool {
	switch n := n.(type) {
	case Value, Constant:
		return true
	case Unary:
		return n.Op.valid() && n.X != nil && WellFormed(n.X)
	case Binary:
		return n.Op.valid() && n.X != nil && n.Y != nil && WellFormed(n.X) && WellFormed(n.Y)
	case Ternary:
		return n.Op.valid() && n.X != nil && n.Y != nil && n.Z != nil &&
			WellFormed(n.X) && WellFormed(n.Y) && WellFormed(n.Z)
	default:
		return false
	}
}

// Format renders a tree over several lines, one node per line.
func Format(n Node) string {
	var sb strings.Builder
	format(&sb, n, 0)
	return sb.String()
}

func format(sb *strings.Builder, n Node, indent int) {
	sb.WriteString(strings.Repeat("  ", indent))
	switch n := n.(type) {
	case Unary:
		sb.WriteString(n.Op.String())
	case Binary:
		sb.WriteString(n.Op.String())
	case Ternary:
		sb.WriteString(n.Op.String())
	default:
		sb.WriteString(n.String())
	}
	sb.WriteByte('\n')
	for _, c := range Children(n) {
		format(sb, c, indent+1)
	}
}

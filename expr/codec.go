package expr

import (
	"errors"
	"fmt"

	"github.com/pthm-cable/creatures/geom"
)

// Doc is the serialized form of an expression tree. Exactly one of Const,
// Time, Local, Global or Op is set.
type Doc struct {
	Const  *float32    `yaml:"const,omitempty"`
	Time   bool        `yaml:"time,omitempty"`
	Local  *ElementDoc `yaml:"local,omitempty"`
	Global *ElementDoc `yaml:"global,omitempty"`
	Op     string      `yaml:"op,omitempty"`
	Args   []Doc       `yaml:"args,omitempty,flow"`
}

// ElementDoc is the serialized form of an Element, plus the joint index for
// global references.
type ElementDoc struct {
	Parent *geom.Face `yaml:"parent,omitempty"`
	Child  *geom.Face `yaml:"child,omitempty"`
	Axis   *geom.Axis `yaml:"axis,omitempty"`
	Joint  int        `yaml:"joint,omitempty"`
}

// ErrBadDoc is returned when a Doc does not describe a well-formed tree.
var ErrBadDoc = errors.New("malformed expression")

// ToDoc converts a tree into its serialized form.
func ToDoc(n Node) Doc {
	switch n := n.(type) {
	case Constant:
		v := float32(n)
		return Doc{Const: &v}
	case Value:
		switch n.Ref.Source {
		case Time:
			return Doc{Time: true}
		case Global:
			ed := elementDoc(n.Ref.Element)
			ed.Joint = n.Ref.Joint
			return Doc{Global: &ed}
		default:
			ed := elementDoc(n.Ref.Element)
			return Doc{Local: &ed}
		}
	case Unary:
		return Doc{Op: n.Op.String(), Args: []Doc{ToDoc(n.X)}}
	case Binary:
		return Doc{Op: n.Op.String(), Args: []Doc{ToDoc(n.X), ToDoc(n.Y)}}
	case Ternary:
		return Doc{Op: n.Op.String(), Args: []Doc{ToDoc(n.X), ToDoc(n.Y), ToDoc(n.Z)}}
	}
	return Doc{}
}

func elementDoc(e Element) ElementDoc {
	switch e.Kind {
	case ParentContact:
		f := e.Face
		return ElementDoc{Parent: &f}
	case ChildContact:
		f := e.Face
		return ElementDoc{Child: &f}
	default:
		a := e.Axis
		return ElementDoc{Axis: &a}
	}
}

// FromDoc rebuilds a tree from its serialized form.
func FromDoc(d Doc) (Node, error) {
	switch {
	case d.Const != nil:
		return Constant(*d.Const), nil
	case d.Time:
		return Value{Ref: TimeRef()}, nil
	case d.Local != nil:
		e, err := d.Local.element()
		if err != nil {
			return nil, err
		}
		return Value{Ref: LocalRef(e)}, nil
	case d.Global != nil:
		e, err := d.Global.element()
		if err != nil {
			return nil, err
		}
		return Value{Ref: GlobalRef(e, d.Global.Joint)}, nil
	case d.Op != "":
		return opFromDoc(d)
	}
	return nil, fmt.Errorf("%w: empty node", ErrBadDoc)
}

func (ed ElementDoc) element() (Element, error) {
	switch {
	case ed.Parent != nil:
		return Element{Kind: ParentContact, Face: *ed.Parent}, nil
	case ed.Child != nil:
		return Element{Kind: ChildContact, Face: *ed.Child}, nil
	case ed.Axis != nil:
		return Element{Kind: JointAxis, Axis: *ed.Axis}, nil
	}
	return Element{}, fmt.Errorf("%w: reference without element", ErrBadDoc)
}

func opFromDoc(d Doc) (Node, error) {
	args := make([]Node, len(d.Args))
	for i, a := range d.Args {
		n, err := FromDoc(a)
		if err != nil {
			return nil, err
		}
		args[i] = n
	}
	if op, ok := ParseUnaryOp(d.Op); ok && len(args) == 1 {
		return Unary{Op: op, X: args[0]}, nil
	}
	if op, ok := ParseBinaryOp(d.Op); ok && len(args) == 2 {
		return Binary{Op: op, X: args[0], Y: args[1]}, nil
	}
	if op, ok := ParseTernaryOp(d.Op); ok && len(args) == 3 {
		return Ternary{Op: op, X: args[0], Y: args[1], Z: args[2]}, nil
	}
	return nil, fmt.Errorf("%w: operator %q with %d arguments", ErrBadDoc, d.Op, len(args))
}

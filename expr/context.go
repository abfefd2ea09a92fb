package expr

import (
	"math"

	"gonum.org/v1/gonum/num/quat"

	"github.com/pthm-cable/creatures/geom"
)

// JointContext is the per-step state of one joint as seen by expressions.
type JointContext struct {
	ParentContacts [geom.NumFaces]bool
	ChildContacts  [geom.NumFaces]bool
	// Axes holds the deviation along each degree of freedom: the child's
	// position in the parent frame (in parent half extents) for the linear
	// axes and the relative rotation vector for the angular ones.
	Axes [geom.NumAxes]float32
}

// NewJointContext derives a joint snapshot from the two limb transforms and
// their per-face contact state.
func NewJointContext(parentContacts, childContacts [geom.NumFaces]bool, parent, child geom.Transform) JointContext {
	jc := JointContext{ParentContacts: parentContacts, ChildContacts: childContacts}

	local := parent.LocalPoint(child.Translation)
	for i := 0; i < 3; i++ {
		s := geom.Component(parent.Scale, i)
		if s != 0 {
			jc.Axes[i] = float32(geom.Component(local, i) / s)
		}
	}

	rot := geom.RotationVector(quat.Mul(quat.Conj(parent.Rotation), child.Rotation))
	for i := 0; i < 3; i++ {
		jc.Axes[3+i] = float32(geom.Component(rot, i))
	}
	for i, v := range jc.Axes {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			jc.Axes[i] = Fallback
		}
	}
	return jc
}

// Read returns the value of e on this joint.
func (jc JointContext) Read(e Element) float32 {
	switch e.Kind {
	case ParentContact:
		if int(e.Face) < geom.NumFaces {
			return contactValue(jc.ParentContacts[e.Face])
		}
	case ChildContact:
		if int(e.Face) < geom.NumFaces {
			return contactValue(jc.ChildContacts[e.Face])
		}
	case JointAxis:
		if int(e.Axis) < geom.NumAxes {
			return jc.Axes[e.Axis]
		}
	}
	return Fallback
}

func contactValue(in bool) float32 {
	if in {
		return 1
	}
	return -1
}

// CreatureContext is the state of a whole creature at one physics step.
// Current selects the joint that Local references read from.
type CreatureContext struct {
	Joints  []JointContext
	Current int
	Time    float32
}

// ForJoint returns a copy of the context whose local joint is i.
func (c CreatureContext) ForJoint(i int) CreatureContext {
	c.Current = i
	return c
}

// Lookup resolves a reference. Missing joints read as Fallback.
func (c *CreatureContext) Lookup(r Ref) float32 {
	if c == nil {
		return Fallback
	}
	switch r.Source {
	case Local:
		return c.joint(c.Current, r.Element)
	case Global:
		return c.joint(r.Joint, r.Element)
	case Time:
		return c.Time
	}
	return Fallback
}

func (c *CreatureContext) joint(i int, e Element) float32 {
	if i < 0 || i >= len(c.Joints) {
		return Fallback
	}
	return c.Joints[i].Read(e)
}

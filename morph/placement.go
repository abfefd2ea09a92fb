package morph

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/creatures/geom"
)

// Placement positions a child limb on a face of its parent.
type Placement struct {
	Face geom.Face
	// Position is the attach point on the face, each component in [-1, 1].
	Position r2.Vec
	// Orientation is applied on top of the face's own orientation.
	Orientation quat.Number
	// Scale multiplies the parent's half extents to give the child's.
	Scale r3.Vec
}

// CreateTransform places the child against parent. It returns the child's
// world transform, the attach point in the parent's frame and the matching
// anchor in the child's frame.
func (p Placement) CreateTransform(parent geom.Transform) (geom.Transform, r3.Vec, r3.Vec) {
	orient := geom.Normalize(quat.Mul(parent.Rotation, quat.Mul(p.Face.Orientation(), p.Orientation)))
	scale := geom.MulElem(parent.Scale, p.Scale)

	pos := r2.Vec{X: clampUnit(p.Position.X), Y: clampUnit(p.Position.Y)}
	parentAnchor := geom.MulElem(parent.Scale, r3.Add(p.Face.Direction(), p.Face.Tangent(pos)))
	childAnchor := r3.Vec{Y: -scale.Y}

	attach := parent.Point(parentAnchor)
	translation := r3.Add(attach, r3.Scale(scale.Y, geom.Rotate(orient, geom.UnitY)))

	return geom.Transform{Translation: translation, Rotation: orient, Scale: scale}, parentAnchor, childAnchor
}

func clampUnit(f float64) float64 {
	return max(-1, min(1, f))
}

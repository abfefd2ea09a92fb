// Package geom holds the small amount of rigid-body geometry shared by the
// morphology evaluator, the expression context and the reference simulator.
package geom

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	UnitX = r3.Vec{X: 1}
	UnitY = r3.Vec{Y: 1}
	UnitZ = r3.Vec{Z: 1}
	One   = r3.Vec{X: 1, Y: 1, Z: 1}
)

// Transform is a rigid placement plus the half extents of the box it carries.
type Transform struct {
	Translation r3.Vec      `yaml:"translation"`
	Rotation    quat.Number `yaml:"rotation"`
	Scale       r3.Vec      `yaml:"scale"`
}

// Identity returns a transform at the origin with unit scale.
func Identity() Transform {
	return Transform{Rotation: IdentityQuat(), Scale: One}
}

// At returns an unrotated transform at p with the given half extents.
func At(p, scale r3.Vec) Transform {
	return Transform{Translation: p, Rotation: IdentityQuat(), Scale: scale}
}

// Point maps a point in the transform's (unscaled) local frame to world space.
func (t Transform) Point(local r3.Vec) r3.Vec {
	return r3.Add(Rotate(t.Rotation, local), t.Translation)
}

// LocalPoint maps a world point into the transform's (unscaled) local frame.
func (t Transform) LocalPoint(world r3.Vec) r3.Vec {
	return Rotate(quat.Conj(t.Rotation), r3.Sub(world, t.Translation))
}

// Corners returns the eight world-space corners of the box.
func (t Transform) Corners() [8]r3.Vec {
	var out [8]r3.Vec
	for i := range out {
		local := t.Scale
		if i&1 != 0 {
			local.X = -local.X
		}
		if i&2 != 0 {
			local.Y = -local.Y
		}
		if i&4 != 0 {
			local.Z = -local.Z
		}
		out[i] = t.Point(local)
	}
	return out
}

// Lowest returns the smallest world Y over the box corners.
func (t Transform) Lowest() float64 {
	lowest := math.Inf(1)
	for _, c := range t.Corners() {
		lowest = math.Min(lowest, c.Y)
	}
	return lowest
}

// Highest returns the largest world Y over the box corners.
func (t Transform) Highest() float64 {
	highest := math.Inf(-1)
	for _, c := range t.Corners() {
		highest = math.Max(highest, c.Y)
	}
	return highest
}

// Volume is the full box volume (eight times the half-extent product).
func (t Transform) Volume() float64 {
	return 8 * math.Abs(t.Scale.X*t.Scale.Y*t.Scale.Z)
}

// MulElem multiplies two vectors component-wise.
func MulElem(a, b r3.Vec) r3.Vec {
	return r3.Vec{X: a.X * b.X, Y: a.Y * b.Y, Z: a.Z * b.Z}
}

// Component returns v[i] for i in 0..2.
func Component(v r3.Vec, i int) float64 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// WithComponent returns v with v[i] replaced.
func WithComponent(v r3.Vec, i int, f float64) r3.Vec {
	switch i {
	case 0:
		v.X = f
	case 1:
		v.Y = f
	default:
		v.Z = f
	}
	return v
}

// Finite reports whether every component of v is finite.
func Finite(v r3.Vec) bool {
	for i := 0; i < 3; i++ {
		f := Component(v, i)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}

package geom

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

const quatEpsilon = 1e-9

// IdentityQuat is the rotation that does nothing.
func IdentityQuat() quat.Number {
	return quat.Number{Real: 1}
}

// AxisAngle builds a unit quaternion rotating angle radians about axis.
func AxisAngle(axis r3.Vec, angle float64) quat.Number {
	n := r3.Norm(axis)
	if n < quatEpsilon || angle == 0 {
		return IdentityQuat()
	}
	s, c := math.Sincos(angle / 2)
	axis = r3.Scale(s/n, axis)
	return quat.Number{Real: c, Imag: axis.X, Jmag: axis.Y, Kmag: axis.Z}
}

// ToAxisAngle decomposes a rotation. The angle is in [0, 2π) and the axis is
// +X for the identity.
func ToAxisAngle(q quat.Number) (r3.Vec, float64) {
	q = Normalize(q)
	v := r3.Vec{X: q.Imag, Y: q.Jmag, Z: q.Kmag}
	s := r3.Norm(v)
	if s < quatEpsilon {
		return UnitX, 0
	}
	angle := 2 * math.Atan2(s, q.Real)
	return r3.Scale(1/s, v), angle
}

// Normalize scales q to unit length; a zero quaternion becomes the identity.
func Normalize(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n < quatEpsilon || math.IsNaN(n) || math.IsInf(n, 0) {
		return IdentityQuat()
	}
	return quat.Scale(1/n, q)
}

// Rotate applies the rotation q to v.
func Rotate(q quat.Number, v r3.Vec) r3.Vec {
	p := quat.Number{Imag: v.X, Jmag: v.Y, Kmag: v.Z}
	r := quat.Mul(quat.Mul(q, p), quat.Conj(q))
	return r3.Vec{X: r.Imag, Y: r.Jmag, Z: r.Kmag}
}

// RotationArc returns the shortest rotation taking unit vector from onto to.
func RotationArc(from, to r3.Vec) quat.Number {
	d := r3.Dot(from, to)
	switch {
	case d >= 1-quatEpsilon:
		return IdentityQuat()
	case d <= -1+quatEpsilon:
		axis := r3.Cross(UnitX, from)
		if r3.Norm(axis) < quatEpsilon {
			axis = r3.Cross(UnitY, from)
		}
		return AxisAngle(axis, math.Pi)
	}
	c := r3.Cross(from, to)
	s := math.Sqrt((1 + d) * 2)
	return Normalize(quat.Number{Real: s / 2, Imag: c.X / s, Jmag: c.Y / s, Kmag: c.Z / s})
}

// Slerp interpolates between two unit rotations along the shorter arc.
func Slerp(a, b quat.Number, t float64) quat.Number {
	cos := a.Real*b.Real + a.Imag*b.Imag + a.Jmag*b.Jmag + a.Kmag*b.Kmag
	if cos < 0 {
		b = quat.Scale(-1, b)
		cos = -cos
	}
	if cos > 1-1e-6 {
		return Normalize(quat.Add(a, quat.Scale(t, quat.Sub(b, a))))
	}
	theta := math.Acos(cos)
	sin := math.Sin(theta)
	wa := math.Sin((1-t)*theta) / sin
	wb := math.Sin(t*theta) / sin
	return Normalize(quat.Add(quat.Scale(wa, a), quat.Scale(wb, b)))
}

// AngleBetween returns the rotation angle in [0, π] separating a and b.
func AngleBetween(a, b quat.Number) float64 {
	_, angle := ToAxisAngle(quat.Mul(quat.Conj(a), b))
	if angle > math.Pi {
		angle = 2*math.Pi - angle
	}
	return angle
}

// Perpendicular returns some unit vector orthogonal to v.
func Perpendicular(v r3.Vec) r3.Vec {
	p := r3.Cross(v, UnitX)
	if r3.Norm(p) < 1e-6 {
		p = r3.Cross(v, UnitY)
	}
	return r3.Unit(p)
}

// RotationVector returns q as axis times angle, with the angle wrapped to
// (-π, π].
func RotationVector(q quat.Number) r3.Vec {
	axis, angle := ToAxisAngle(q)
	if angle > math.Pi {
		angle -= 2 * math.Pi
	}
	return r3.Scale(angle, axis)
}

// Spin advances q by the small rotation vector w (first order).
func Spin(q quat.Number, w r3.Vec) quat.Number {
	dq := quat.Mul(quat.Number{Imag: w.X, Jmag: w.Y, Kmag: w.Z}, q)
	return Normalize(quat.Add(q, quat.Scale(0.5, dq)))
}

package geom

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

const tol = 1e-9

func vecNear(a, b r3.Vec) bool {
	return r3.Norm(r3.Sub(a, b)) < 1e-7
}

func TestFaceOrientation(t *testing.T) {
	for _, f := range Faces {
		t.Run(f.String(), func(t *testing.T) {
			got := Rotate(f.Orientation(), UnitY)
			if !vecNear(got, f.Direction()) {
				t.Errorf("Orientation maps +Y to %v, want %v", got, f.Direction())
			}
		})
	}
}

func TestFaceTangent(t *testing.T) {
	p := r2.Vec{X: 0.25, Y: -0.5}
	tests := []struct {
		face Face
		want r3.Vec
	}{
		{PosX, r3.Vec{Y: 0.25, Z: -0.5}},
		{NegY, r3.Vec{X: 0.25, Z: -0.5}},
		{PosZ, r3.Vec{X: 0.25, Y: -0.5}},
	}
	for _, tt := range tests {
		if got := tt.face.Tangent(p); got != tt.want {
			t.Errorf("%v.Tangent = %v, want %v", tt.face, got, tt.want)
		}
	}
}

func TestParseFaceAndAxis(t *testing.T) {
	for _, f := range Faces {
		got, err := ParseFace(f.String())
		if err != nil || got != f {
			t.Errorf("ParseFace(%q) = %v, %v", f.String(), got, err)
		}
	}
	for _, a := range Axes {
		got, err := ParseAxis(a.String())
		if err != nil || got != a {
			t.Errorf("ParseAxis(%q) = %v, %v", a.String(), got, err)
		}
	}
	if _, err := ParseFace("up"); err == nil {
		t.Error("ParseFace(up) should fail")
	}
}

func TestAxisAngleRoundTrip(t *testing.T) {
	axis := r3.Unit(r3.Vec{X: 1, Y: 2, Z: -1})
	q := AxisAngle(axis, 1.2)
	gotAxis, gotAngle := ToAxisAngle(q)
	if math.Abs(gotAngle-1.2) > tol {
		t.Errorf("angle = %v, want 1.2", gotAngle)
	}
	if !vecNear(gotAxis, axis) {
		t.Errorf("axis = %v, want %v", gotAxis, axis)
	}
}

func TestSlerpEndpoints(t *testing.T) {
	a := IdentityQuat()
	b := AxisAngle(UnitZ, math.Pi/2)
	if AngleBetween(Slerp(a, b, 0), a) > 1e-6 {
		t.Error("Slerp(t=0) should equal a")
	}
	if AngleBetween(Slerp(a, b, 1), b) > 1e-6 {
		t.Error("Slerp(t=1) should equal b")
	}
	mid := Slerp(a, b, 0.5)
	if got := AngleBetween(a, mid); math.Abs(got-math.Pi/4) > 1e-6 {
		t.Errorf("midpoint angle = %v, want π/4", got)
	}
}

func TestRotationArcOpposite(t *testing.T) {
	q := RotationArc(UnitY, r3.Scale(-1, UnitY))
	if got := Rotate(q, UnitY); !vecNear(got, r3.Vec{Y: -1}) {
		t.Errorf("Rotate = %v, want -Y", got)
	}
	if n := quat.Abs(q); math.Abs(n-1) > tol {
		t.Errorf("|q| = %v, want 1", n)
	}
}

func TestTransformLowest(t *testing.T) {
	tr := At(r3.Vec{Y: 2}, r3.Vec{X: 1, Y: 0.5, Z: 1})
	if got := tr.Lowest(); math.Abs(got-1.5) > tol {
		t.Errorf("Lowest = %v, want 1.5", got)
	}
	tr.Rotation = AxisAngle(UnitZ, math.Pi/2)
	if got := tr.Lowest(); math.Abs(got-1) > tol {
		t.Errorf("rotated Lowest = %v, want 1", got)
	}
}

func TestAxisMask(t *testing.T) {
	var m AxisMask
	m = m.With(AxisAngY)
	if !m.Has(AxisAngY) || m.Has(AxisX) {
		t.Errorf("mask = %06b", m)
	}
	if m.Toggle(AxisAngY) != 0 {
		t.Error("Toggle should clear the bit")
	}
	if AllAxes.Without(AxisZ).Has(AxisZ) {
		t.Error("Without should clear the bit")
	}
}

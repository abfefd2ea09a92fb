package geom

import (
	"fmt"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Face names one of the six faces of a limb box.
type Face uint8

const (
	PosX Face = iota
	NegX
	PosY
	NegY
	PosZ
	NegZ
)

// NumFaces is the number of box faces.
const NumFaces = 6

// Faces lists every face in index order.
var Faces = [NumFaces]Face{PosX, NegX, PosY, NegY, PosZ, NegZ}

var faceNames = [NumFaces]string{"+X", "-X", "+Y", "-Y", "+Z", "-Z"}

func (f Face) String() string {
	if int(f) < NumFaces {
		return faceNames[f]
	}
	return fmt.Sprintf("Face(%d)", uint8(f))
}

// ParseFace is the inverse of Face.String.
func ParseFace(s string) (Face, error) {
	for i, name := range faceNames {
		if name == s {
			return Face(i), nil
		}
	}
	return 0, fmt.Errorf("unknown face %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (f Face) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Face) UnmarshalText(b []byte) error {
	v, err := ParseFace(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// Direction is the outward unit normal of the face in the box's frame.
func (f Face) Direction() r3.Vec {
	switch f {
	case PosX:
		return UnitX
	case NegX:
		return r3.Scale(-1, UnitX)
	case PosY:
		return UnitY
	case NegY:
		return r3.Scale(-1, UnitY)
	case PosZ:
		return UnitZ
	default:
		return r3.Scale(-1, UnitZ)
	}
}

// Orientation rotates +Y onto the face normal.
func (f Face) Orientation() quat.Number {
	if f == PosY {
		return IdentityQuat()
	}
	return RotationArc(UnitY, f.Direction())
}

// Tangent lifts a 2D position on the face into the face's plane through the
// box center.
func (f Face) Tangent(p r2.Vec) r3.Vec {
	switch f {
	case PosX, NegX:
		return r3.Vec{Y: p.X, Z: p.Y}
	case PosY, NegY:
		return r3.Vec{X: p.X, Z: p.Y}
	default:
		return r3.Vec{X: p.X, Y: p.Y}
	}
}

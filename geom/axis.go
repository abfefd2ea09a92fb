package geom

import "fmt"

// Axis is one of the six degrees of freedom of a joint.
type Axis uint8

const (
	AxisX Axis = iota
	AxisY
	AxisZ
	AxisAngX
	AxisAngY
	AxisAngZ
)

// NumAxes is the number of joint degrees of freedom.
const NumAxes = 6

// Axes lists every axis in index order.
var Axes = [NumAxes]Axis{AxisX, AxisY, AxisZ, AxisAngX, AxisAngY, AxisAngZ}

var axisNames = [NumAxes]string{"X", "Y", "Z", "AngX", "AngY", "AngZ"}

func (a Axis) String() string {
	if int(a) < NumAxes {
		return axisNames[a]
	}
	return fmt.Sprintf("Axis(%d)", uint8(a))
}

// Angular reports whether a is a rotational degree of freedom.
func (a Axis) Angular() bool { return a >= AxisAngX }

// ParseAxis is the inverse of Axis.String.
func ParseAxis(s string) (Axis, error) {
	for i, name := range axisNames {
		if name == s {
			return Axis(i), nil
		}
	}
	return 0, fmt.Errorf("unknown axis %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (a Axis) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Axis) UnmarshalText(b []byte) error {
	v, err := ParseAxis(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// AxisMask is a bit set over the six joint axes.
type AxisMask uint8

// AllAxes has every axis set.
const AllAxes AxisMask = 1<<NumAxes - 1

// Has reports whether a is in the mask.
func (m AxisMask) Has(a Axis) bool { return m&(1<<a) != 0 }

// With returns m with a set.
func (m AxisMask) With(a Axis) AxisMask { return m | 1<<a }

// Without returns m with a cleared.
func (m AxisMask) Without(a Axis) AxisMask { return m &^ (1 << a) }

// Toggle flips a.
func (m AxisMask) Toggle(a Axis) AxisMask { return m ^ 1<<a }

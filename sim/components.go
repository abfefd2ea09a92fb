// Package sim is a small fixed-step rigid-body world used to test creatures:
// box limbs, joints solved by position projection, gravity
// and a ground plane at y = 0.
package sim

import (
	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/creatures/expr"
	"github.com/pthm-cable/creatures/geom"
)

// Pose is a limb's placement, plus the placement at the start of the step.
type Pose struct {
	Pos     r3.Vec
	Rot     quat.Number
	PrevPos r3.Vec
	PrevRot quat.Number
}

// Motion holds velocities and the accelerations accumulated for this step.
type Motion struct {
	Lin    r3.Vec
	Ang    r3.Vec
	LinAcc r3.Vec
	AngAcc r3.Vec
	// PreLin is the linear velocity before the step, used for bounces.
	PreLin r3.Vec
}

// Body holds a limb's fixed physical properties.
type Body struct {
	Half        r3.Vec
	Mass        float64
	Inertia     float64 // scalar approximation of the box inertia
	Friction    float64
	Restitution float64
	Index       int // position in the build order
}

// Contact records which faces touch the ground.
type Contact struct {
	Faces  [geom.NumFaces]bool
	Ground bool
}

// Joint links two limb entities.
type Joint struct {
	Parent       ecs.Entity
	Child        ecs.Entity
	ParentAnchor r3.Vec // in the parent's rotated frame
	ChildAnchor  r3.Vec // in the child's rotated frame
	// Rest is the child's rotation relative to the parent at spawn.
	Rest      quat.Number
	Locked    geom.AxisMask
	Limits    [geom.NumAxes][2]float64
	Effectors [geom.NumAxes]expr.Node
}

func (p *Pose) transform(b *Body) geom.Transform {
	return geom.Transform{Translation: p.Pos, Rotation: p.Rot, Scale: b.Half}
}

// anchor returns a limb-relative anchor in world space.
func (p *Pose) anchor(local r3.Vec) r3.Vec {
	return r3.Add(p.Pos, geom.Rotate(p.Rot, local))
}

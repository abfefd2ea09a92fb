package sim

import (
	"math"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/creatures/config"
	"github.com/pthm-cable/creatures/geom"
)

var up = geom.UnitY

// IntegrateSystem advances limbs under gravity and accumulated
// accelerations, then recovers velocities from the corrected poses.
type IntegrateSystem struct {
	filter *ecs.Filter2[Pose, Motion]

	gravity        float64
	linearDamping  float64
	angularDamping float64
	settleDamping  float64

	Settling bool
}

// NewIntegrateSystem creates a new integration system.
func NewIntegrateSystem(w *ecs.World, cfg config.SimConfig) *IntegrateSystem {
	return &IntegrateSystem{
		filter:         ecs.NewFilter2[Pose, Motion](w),
		gravity:        cfg.Gravity,
		linearDamping:  cfg.LinearDamping,
		angularDamping: cfg.AngularDamping,
		settleDamping:  cfg.SettleDamping,
	}
}

// Predict applies accelerations and moves every limb freely.
func (s *IntegrateSystem) Predict(w *ecs.World, dt float64) {
	linDamp, angDamp := s.linearDamping, s.angularDamping
	if s.Settling {
		linDamp, angDamp = s.settleDamping, s.settleDamping
	}

	query := s.filter.Query()
	for query.Next() {
		pose, motion := query.Get()

		motion.PreLin = motion.Lin
		acc := r3.Add(motion.LinAcc, r3.Scale(-s.gravity, up))
		motion.Lin = r3.Scale(damping(linDamp, dt), r3.Add(motion.Lin, r3.Scale(dt, acc)))
		motion.Ang = r3.Scale(damping(angDamp, dt), r3.Add(motion.Ang, r3.Scale(dt, motion.AngAcc)))
		motion.LinAcc, motion.AngAcc = r3.Vec{}, r3.Vec{}

		pose.PrevPos, pose.PrevRot = pose.Pos, pose.Rot
		pose.Pos = r3.Add(pose.Pos, r3.Scale(dt, motion.Lin))
		pose.Rot = geom.Spin(pose.Rot, r3.Scale(dt, motion.Ang))
	}
}

// Derive sets velocities from the distance each limb actually moved.
func (s *IntegrateSystem) Derive(w *ecs.World, dt float64) {
	query := s.filter.Query()
	for query.Next() {
		pose, motion := query.Get()

		motion.Lin = r3.Scale(1/dt, r3.Sub(pose.Pos, pose.PrevPos))
		dq := quat.Mul(pose.Rot, quat.Conj(pose.PrevRot))
		if dq.Real < 0 {
			dq = quat.Scale(-1, dq)
		}
		motion.Ang = r3.Scale(2/dt, r3.Vec{X: dq.Imag, Y: dq.Jmag, Z: dq.Kmag})
	}
}

func damping(rate, dt float64) float64 {
	return math.Max(0, 1-rate*dt)
}

// GroundSystem keeps limbs above the plane y = 0 and handles contact
// response.
type GroundSystem struct {
	filter  *ecs.Filter3[Pose, Body, Contact]
	respond *ecs.Filter3[Motion, Body, Contact]

	gravity float64
	slop    float64

	Settling bool
}

// NewGroundSystem creates a new ground system.
func NewGroundSystem(w *ecs.World, cfg config.SimConfig) *GroundSystem {
	return &GroundSystem{
		filter:  ecs.NewFilter3[Pose, Body, Contact](w),
		respond: ecs.NewFilter3[Motion, Body, Contact](w),
		gravity: cfg.Gravity,
		slop:    cfg.ContactSlop,
	}
}

// Project pushes penetrating corners back to the surface. Each corner is
// corrected at its own lever arm so resting boxes tip over.
func (s *GroundSystem) Project(w *ecs.World) {
	query := s.filter.Query()
	for query.Next() {
		pose, body, _ := query.Get()
		for i := 0; i < 8; i++ {
			corner := pose.transform(body).Corners()[i]
			if corner.Y >= 0 {
				continue
			}
			r := r3.Sub(corner, pose.Pos)
			rn := r3.Cross(r, up)
			weight := 1/body.Mass + r3.Dot(rn, rn)/body.Inertia
			lambda := -corner.Y / weight
			pose.Pos = r3.Add(pose.Pos, r3.Scale(lambda/body.Mass, up))
			pose.Rot = geom.Spin(pose.Rot, r3.Scale(lambda/body.Inertia, rn))
		}
	}
}

// Update refreshes per-face contact flags.
func (s *GroundSystem) Update(w *ecs.World) {
	query := s.filter.Query()
	for query.Next() {
		pose, body, contact := query.Get()
		*contact = Contact{}
		for i, corner := range pose.transform(body).Corners() {
			if corner.Y > s.slop {
				continue
			}
			contact.Ground = true
			for _, f := range cornerFaces(i) {
				contact.Faces[f] = true
			}
		}
	}
}

// cornerFaces returns the three faces meeting at corner i of
// geom.Transform.Corners.
func cornerFaces(i int) [3]geom.Face {
	var faces [3]geom.Face
	for axis := 0; axis < 3; axis++ {
		faces[axis] = geom.Face(2*axis + (i>>axis)&1)
	}
	return faces
}

// Respond applies restitution and Coulomb friction to touching limbs.
func (s *GroundSystem) Respond(w *ecs.World, dt float64) {
	query := s.respond.Query()
	for query.Next() {
		motion, body, contact := query.Get()
		if !contact.Ground {
			continue
		}

		restitution, friction := body.Restitution, body.Friction
		if s.Settling {
			restitution, friction = 0, 0
		}

		if motion.PreLin.Y < 0 && motion.Lin.Y < -restitution*motion.PreLin.Y {
			motion.Lin.Y = -restitution * motion.PreLin.Y
		}

		horizontal := math.Hypot(motion.Lin.X, motion.Lin.Z)
		drop := friction * s.gravity * dt
		if horizontal <= drop {
			motion.Lin.X, motion.Lin.Z = 0, 0
		} else if horizontal > 0 {
			k := (horizontal - drop) / horizontal
			motion.Lin.X *= k
			motion.Lin.Z *= k
		}
		motion.Ang = r3.Scale(damping(friction, dt), motion.Ang)
	}
}

package sim

import (
	"errors"
	"fmt"
	"math"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/creatures/config"
	"github.com/pthm-cable/creatures/fitness"
	"github.com/pthm-cable/creatures/geom"
	"github.com/pthm-cable/creatures/morph"
)

const minMass = 1e-6

// ErrBadBuild is returned when a build result cannot be instantiated.
var ErrBadBuild = errors.New("invalid build")

// World holds one creature at a time.
type World struct {
	world *ecs.World
	cfg   config.SimConfig
	dt    float64

	limbMapper *ecs.Map4[Pose, Motion, Body, Contact]
	jointMap   *ecs.Map1[Joint]
	poseMap    *ecs.Map1[Pose]
	motionMap  *ecs.Map1[Motion]
	bodyMap    *ecs.Map1[Body]
	contactMap *ecs.Map1[Contact]

	integrate *IntegrateSystem
	ground    *GroundSystem

	// Build order, used for snapshots, joint solving and expression
	// contexts.
	limbs  []ecs.Entity
	joints []ecs.Entity

	time     float64
	settling bool
}

// New creates an empty world stepping dt seconds at a time.
func New(cfg config.SimConfig, dt float64) *World {
	world := ecs.NewWorld()
	return &World{
		world:      world,
		cfg:        cfg,
		dt:         dt,
		limbMapper: ecs.NewMap4[Pose, Motion, Body, Contact](world),
		jointMap:   ecs.NewMap1[Joint](world),
		poseMap:    ecs.NewMap1[Pose](world),
		motionMap:  ecs.NewMap1[Motion](world),
		bodyMap:    ecs.NewMap1[Body](world),
		contactMap: ecs.NewMap1[Contact](world),
		integrate:  NewIntegrateSystem(world, cfg),
		ground:     NewGroundSystem(world, cfg),
	}
}

// DT returns the step length.
func (w *World) DT() float64 { return w.dt }

// Time returns the simulated time since the last Build.
func (w *World) Time() float64 { return w.time }

// LimbCount returns the number of limbs in the world.
func (w *World) LimbCount() int { return len(w.limbs) }

// Build instantiates a creature. Any previous creature is removed first.
func (w *World) Build(res *morph.BuildResult) error {
	w.Clear()
	if res == nil || len(res.Limbs) == 0 {
		return fmt.Errorf("%w: no limbs", ErrBadBuild)
	}
	for i, j := range res.Joints {
		if j.Parent < 0 || j.Parent >= len(res.Limbs) || j.Child < 0 || j.Child >= len(res.Limbs) {
			return fmt.Errorf("%w: joint %d links limbs %d and %d of %d", ErrBadBuild, i, j.Parent, j.Child, len(res.Limbs))
		}
	}

	for i, l := range res.Limbs {
		t := l.Transform
		mass := math.Max(float64(l.Density)*t.Volume(), minMass)
		half := t.Scale
		pose := Pose{Pos: t.Translation, Rot: geom.Normalize(t.Rotation)}
		pose.PrevPos, pose.PrevRot = pose.Pos, pose.Rot
		body := Body{
			Half:        half,
			Mass:        mass,
			Inertia:     math.Max(mass*2*r3.Dot(half, half)/9, minMass),
			Friction:    float64(l.Friction),
			Restitution: float64(l.Restitution),
			Index:       i,
		}
		w.limbs = append(w.limbs, w.limbMapper.NewEntity(&pose, &Motion{}, &body, &Contact{}))
	}

	for _, j := range res.Joints {
		parent, child := res.Limbs[j.Parent].Transform, res.Limbs[j.Child].Transform
		joint := Joint{
			Parent:       w.limbs[j.Parent],
			Child:        w.limbs[j.Child],
			ParentAnchor: j.ParentAnchor,
			ChildAnchor:  j.ChildAnchor,
			Rest:         geom.Normalize(quat.Mul(quat.Conj(parent.Rotation), child.Rotation)),
			Locked:       j.Locked,
			Limits:       j.Limits,
			Effectors:    j.Effectors,
		}
		w.joints = append(w.joints, w.jointMap.NewEntity(&joint))
	}
	w.time = 0
	w.ground.Update(w.world)
	return nil
}

// Clear removes the current creature.
func (w *World) Clear() {
	for _, e := range w.joints {
		if w.world.Alive(e) {
			w.world.RemoveEntity(e)
		}
	}
	for _, e := range w.limbs {
		if w.world.Alive(e) {
			w.world.RemoveEntity(e)
		}
	}
	w.joints = w.joints[:0]
	w.limbs = w.limbs[:0]
	w.time = 0
}

// SetSettling turns the settle phase on or off. While settling, effectors
// are off, contacts neither bounce nor grip and motion is strongly damped.
func (w *World) SetSettling(on bool) {
	w.settling = on
	w.integrate.Settling = on
	w.ground.Settling = on
}

// Step advances the world by one fixed step.
func (w *World) Step() {
	if len(w.limbs) == 0 {
		w.time += w.dt
		return
	}
	if !w.settling {
		w.applyEffectors()
	}
	w.integrate.Predict(w.world, w.dt)
	for i := 0; i < w.cfg.Iterations; i++ {
		w.solveJoints()
		w.ground.Project(w.world)
	}
	w.integrate.Derive(w.world, w.dt)
	w.ground.Update(w.world)
	w.ground.Respond(w.world, w.dt)
	w.time += w.dt
}

// Snapshot returns the state of every limb in build order.
func (w *World) Snapshot() fitness.StepState {
	state := fitness.StepState{Limbs: make([]fitness.LimbState, len(w.limbs)), Time: w.time}
	for i, e := range w.limbs {
		pose := w.poseMap.Get(e)
		motion := w.motionMap.Get(e)
		body := w.bodyMap.Get(e)
		contact := w.contactMap.Get(e)
		state.Limbs[i] = fitness.LimbState{
			Transform: pose.transform(body),
			LinVel:    motion.Lin,
			AngVel:    motion.Ang,
			Contacts:  contact.Faces,
		}
	}
	return state
}

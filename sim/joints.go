package sim

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/creatures/expr"
	"github.com/pthm-cable/creatures/geom"
)

const solveEpsilon = 1e-12

// Context returns what effector expressions see this step, one joint
// context per joint in build order.
func (w *World) Context() expr.CreatureContext {
	ctx := expr.CreatureContext{
		Joints: make([]expr.JointContext, len(w.joints)),
		Time:   float32(w.time),
	}
	for i, e := range w.joints {
		j := w.jointMap.Get(e)
		ctx.Joints[i] = expr.NewJointContext(
			w.contactMap.Get(j.Parent).Faces,
			w.contactMap.Get(j.Child).Faces,
			w.poseMap.Get(j.Parent).transform(w.bodyMap.Get(j.Parent)),
			w.poseMap.Get(j.Child).transform(w.bodyMap.Get(j.Child)),
		)
	}
	return ctx
}

// applyEffectors evaluates every joint's expressions and turns the clamped
// outputs into equal and opposite accelerations on the two limbs.
func (w *World) applyEffectors() {
	ctx := w.Context()
	for i, e := range w.joints {
		j := w.jointMap.Get(e)
		local := ctx.ForJoint(i)

		parentPose := w.poseMap.Get(j.Parent)
		parent, child := w.bodyMap.Get(j.Parent), w.bodyMap.Get(j.Child)
		pm, cm := w.motionMap.Get(j.Parent), w.motionMap.Get(j.Child)

		for a, eff := range j.Effectors {
			axis := geom.Axis(a)
			if eff == nil || j.Locked.Has(axis) {
				continue
			}
			out := float64(expr.Eval(eff, &local))
			out = max(-1, min(1, out))
			dir := geom.Rotate(parentPose.Rot, unitAxis(a%3))

			if axis.Angular() {
				acc := r3.Scale(out*w.cfg.AngularGain, dir)
				cm.AngAcc = r3.Add(cm.AngAcc, acc)
				pm.AngAcc = r3.Sub(pm.AngAcc, r3.Scale(child.Inertia/parent.Inertia, acc))
			} else {
				acc := r3.Scale(out*w.cfg.LinearGain, dir)
				cm.LinAcc = r3.Add(cm.LinAcc, acc)
				pm.LinAcc = r3.Sub(pm.LinAcc, r3.Scale(child.Mass/parent.Mass, acc))
			}
		}
	}
}

func unitAxis(i int) r3.Vec {
	return geom.WithComponent(r3.Vec{}, i, 1)
}

// solveJoints runs one projection pass over every joint: angular limits
// first, then the anchor constraint with its linear limits.
func (w *World) solveJoints() {
	for _, e := range w.joints {
		j := w.jointMap.Get(e)
		pp, cp := w.poseMap.Get(j.Parent), w.poseMap.Get(j.Child)
		pb, cb := w.bodyMap.Get(j.Parent), w.bodyMap.Get(j.Child)

		// Rotation of the child away from its rest pose, in the parent frame.
		dev := geom.RotationVector(quat.Mul(quat.Mul(quat.Conj(pp.Rot), cp.Rot), quat.Conj(j.Rest)))
		excess := j.excess(dev, geom.AxisAngX)
		correctAngle(pp, pb, cp, cb, geom.Rotate(pp.Rot, excess))

		pa, ca := pp.anchor(j.ParentAnchor), cp.anchor(j.ChildAnchor)
		gap := geom.Rotate(quat.Conj(pp.Rot), r3.Sub(ca, pa))
		excess = j.excess(gap, geom.AxisX)
		correctPoint(pp, pb, r3.Sub(pa, pp.Pos), cp, cb, r3.Sub(ca, cp.Pos), geom.Rotate(pp.Rot, excess))
	}
}

// excess returns how far v (indexed from first) lies outside the allowed
// range on each axis. Locked axes allow nothing.
func (j *Joint) excess(v r3.Vec, first geom.Axis) r3.Vec {
	var out r3.Vec
	for i := 0; i < 3; i++ {
		axis := first + geom.Axis(i)
		val := geom.Component(v, i)
		target := 0.0
		if !j.Locked.Has(axis) {
			lim := j.Limits[axis]
			lo, hi := min(lim[0], lim[1]), max(lim[0], lim[1])
			target = max(lo, min(hi, val))
		}
		out = geom.WithComponent(out, i, val-target)
	}
	return out
}

// correctPoint moves two attachment points, at lever arms ra and rb, toward
// each other by dx (pointing from a to b), splitting the work by
// generalized inverse mass.
func correctPoint(pa *Pose, ba *Body, ra r3.Vec, pb *Pose, bb *Body, rb r3.Vec, dx r3.Vec) {
	c := r3.Norm(dx)
	if c < solveEpsilon {
		return
	}
	n := r3.Scale(1/c, dx)
	ran, rbn := r3.Cross(ra, n), r3.Cross(rb, n)
	wa := 1/ba.Mass + r3.Dot(ran, ran)/ba.Inertia
	wb := 1/bb.Mass + r3.Dot(rbn, rbn)/bb.Inertia
	p := r3.Scale(c/(wa+wb), n)

	pa.Pos = r3.Add(pa.Pos, r3.Scale(1/ba.Mass, p))
	pb.Pos = r3.Sub(pb.Pos, r3.Scale(1/bb.Mass, p))
	pa.Rot = geom.Spin(pa.Rot, r3.Scale(1/ba.Inertia, r3.Cross(ra, p)))
	pb.Rot = geom.Spin(pb.Rot, r3.Scale(-1/bb.Inertia, r3.Cross(rb, p)))
}

// correctAngle removes the rotation theta of b relative to a.
func correctAngle(pa *Pose, ba *Body, pb *Pose, bb *Body, theta r3.Vec) {
	if r3.Norm(theta) < solveEpsilon {
		return
	}
	wa, wb := 1/ba.Inertia, 1/bb.Inertia
	pa.Rot = geom.Spin(pa.Rot, r3.Scale(wa/(wa+wb), theta))
	pb.Rot = geom.Spin(pb.Rot, r3.Scale(-wb/(wa+wb), theta))
}

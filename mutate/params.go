// Package mutate holds the genetic operators: random generation of body
// plans and controllers, and the per-generation mutation pass.
package mutate

import (
	"math"
	"math/rand"
)

// FieldParams describes how one continuous field mutates: the chance that
// it changes, the Gaussian perturbation added when it does and an optional
// clamp range.
type FieldParams struct {
	Freq   float64 `yaml:"freq"`
	Mean   float64 `yaml:"mean"`
	StdDev float64 `yaml:"std_dev"`
	// Clamp bounds the result when non-nil.
	Clamp *[2]float64 `yaml:"clamp,omitempty,flow"`
}

// Field is shorthand for an unclamped FieldParams.
func Field(freq, mean, stdDev float64) FieldParams {
	return FieldParams{Freq: freq, Mean: mean, StdDev: stdDev}
}

// Within returns p clamped to [lo, hi].
func (p FieldParams) Within(lo, hi float64) FieldParams {
	p.Clamp = &[2]float64{lo, hi}
	return p
}

// Scaled returns a copy whose change probability is multiplied by f. The
// receiver is left untouched.
func (p FieldParams) Scaled(f float64) FieldParams {
	p.Freq *= f
	return p
}

// Changes draws whether the field mutates this time.
func (p FieldParams) Changes(rng *rand.Rand) bool {
	return rng.Float64() < p.Freq
}

// Sample draws one perturbation.
func (p FieldParams) Sample(rng *rand.Rand) float64 {
	return p.Mean + p.StdDev*rng.NormFloat64()
}

// Bound applies the clamp range, if any.
func (p FieldParams) Bound(v float64) float64 {
	if p.Clamp == nil {
		return v
	}
	return max(p.Clamp[0], min(p.Clamp[1], v))
}

// Perturb returns v, possibly shifted by a sample and clamped.
func (p FieldParams) Perturb(rng *rand.Rand, v float64) float64 {
	if !p.Changes(rng) {
		return v
	}
	return p.Bound(v + p.Sample(rng))
}

// Perturb32 is Perturb for float32 fields.
func (p FieldParams) Perturb32(rng *rand.Rand, v float32) float32 {
	return float32(p.Perturb(rng, float64(v)))
}

// PerturbInt perturbs an integer field, rounding the sample.
func (p FieldParams) PerturbInt(rng *rand.Rand, v int) int {
	if !p.Changes(rng) {
		return v
	}
	return int(p.Bound(float64(v) + math.Round(p.Sample(rng))))
}

// NodeParams controls mutation of limb nodes.
type NodeParams struct {
	Density        FieldParams `yaml:"density"`
	Friction       FieldParams `yaml:"friction"`
	Restitution    FieldParams `yaml:"restitution"`
	RecursiveLimit FieldParams `yaml:"recursive_limit"`
	TerminalFreq   float64     `yaml:"terminal_freq"`
}

// Scaled returns p with every probability multiplied by f.
func (p NodeParams) Scaled(f float64) NodeParams {
	p.Density = p.Density.Scaled(f)
	p.Friction = p.Friction.Scaled(f)
	p.Restitution = p.Restitution.Scaled(f)
	p.RecursiveLimit = p.RecursiveLimit.Scaled(f)
	p.TerminalFreq *= f
	return p
}

// EdgeParams controls mutation of limb connections.
type EdgeParams struct {
	FaceFreq float64     `yaml:"face_freq"`
	Position FieldParams `yaml:"position"`
	// Rotation's sample magnitude is the slerp fraction toward a target
	// orientation a quarter turn away.
	Rotation   FieldParams `yaml:"rotation"`
	Scale      FieldParams `yaml:"scale"`
	Limits     FieldParams `yaml:"limits"`
	LockFreq   float64     `yaml:"lock_freq"`
	RewireFreq float64     `yaml:"rewire_freq"`
	DelFreq    float64     `yaml:"del_freq"`
	AddFreq    float64     `yaml:"add_freq"`
}

// Scaled returns p with the per-edge field probabilities multiplied by f.
// DelFreq and AddFreq are normalized separately by the caller.
func (p EdgeParams) Scaled(f float64) EdgeParams {
	p.FaceFreq *= f
	p.Position = p.Position.Scaled(f)
	p.Rotation = p.Rotation.Scaled(f)
	p.Scale = p.Scale.Scaled(f)
	p.Limits = p.Limits.Scaled(f)
	p.LockFreq *= f
	p.RewireFreq *= f
	return p
}

// ExprParams controls mutation of expression trees.
type ExprParams struct {
	OpChange        float64     `yaml:"op_change"`
	OpChangeType    float64     `yaml:"op_change_type"`
	ValueChange     float64     `yaml:"value_change"`
	ValueChangeType float64     `yaml:"value_change_type"`
	OpAdd           float64     `yaml:"op_add"`
	OpDel           float64     `yaml:"op_del"`
	Constant        FieldParams `yaml:"constant"`
	// NewExpr builds the subtrees introduced when an operator gains arity.
	NewExpr ExprBuildParams `yaml:"new_expr"`
}

// Scaled returns p with every probability multiplied by f.
func (p ExprParams) Scaled(f float64) ExprParams {
	p.OpChange *= f
	p.OpChangeType *= f
	p.ValueChange *= f
	p.ValueChangeType *= f
	p.OpAdd *= f
	p.OpDel *= f
	p.Constant = p.Constant.Scaled(f)
	return p
}

// ExprBuildParams controls random expression generation.
type ExprBuildParams struct {
	ValueWeight int        `yaml:"value_weight"`
	ConstWeight int        `yaml:"const_weight"`
	ConstRange  [2]float64 `yaml:"const_range,flow"`
	MinDepth    int        `yaml:"min_depth"`
	MaxDepth    int        `yaml:"max_depth"`
	JointCount  int        `yaml:"joint_count"`
}

// RandomParams controls random generation of whole body plans and of the
// parts added during mutation.
type RandomParams struct {
	Nodes          [2]int          `yaml:"nodes,flow"`
	ExtraEdges     [2]int          `yaml:"extra_edges,flow"`
	Density        [2]float64      `yaml:"density,flow"`
	Friction       [2]float64      `yaml:"friction,flow"`
	Restitution    [2]float64      `yaml:"restitution,flow"`
	RecursiveLimit [2]int          `yaml:"recursive_limit,flow"`
	TerminalChance float64         `yaml:"terminal_chance"`
	Scale          [2]float64      `yaml:"scale,flow"`
	RootScale      [2]float64      `yaml:"root_scale,flow"`
	MaxTilt        float64         `yaml:"max_tilt"`
	LockLinear     bool            `yaml:"lock_linear"`
	LockChance     float64         `yaml:"lock_chance"`
	LinearLimit    float64         `yaml:"linear_limit"`
	AngularLimit   float64         `yaml:"angular_limit"`
	EffectorChance float64         `yaml:"effector_chance"`
	Expr           ExprBuildParams `yaml:"expr"`
}

// Params is the full mutation configuration for one creature.
type Params struct {
	Node NodeParams `yaml:"node"`
	Edge EdgeParams `yaml:"edge"`
	Expr ExprParams `yaml:"expr"`
	// RootScale perturbs one root half extent multiplicatively while a
	// companion axis compensates to keep the volume.
	RootScale FieldParams  `yaml:"root_scale"`
	Random    RandomParams `yaml:"random"`
}

// DefaultExprBuildParams matches the generator used for fresh controllers.
func DefaultExprBuildParams() ExprBuildParams {
	return ExprBuildParams{
		ValueWeight: 20,
		ConstWeight: 20,
		ConstRange:  [2]float64{-10, 10},
		MinDepth:    1,
		MaxDepth:    3,
		JointCount:  1,
	}
}

// DefaultParams returns the stock mutation settings.
func DefaultParams() Params {
	return Params{
		Node: NodeParams{
			Density:        Field(0.25, 0, 0.25).Within(0.1, 10),
			Friction:       Field(0.25, 0, 0.1).Within(0, 1),
			Restitution:    Field(0.25, 0, 0.1).Within(0, 1),
			RecursiveLimit: Field(0.1, 0, 1).Within(1, 5),
			TerminalFreq:   0.05,
		},
		Edge: EdgeParams{
			FaceFreq:   0.05,
			Position:   Field(0.25, 0, 0.25).Within(-1, 1),
			Rotation:   Field(0.2, 0, 0.25),
			Scale:      Field(0.25, 0, 0.1).Within(0.2, 2),
			Limits:     Field(0.2, 0, 0.1).Within(-math.Pi, math.Pi),
			LockFreq:   0.02,
			RewireFreq: 0.05,
			DelFreq:    0.1,
			AddFreq:    0.1,
		},
		Expr: ExprParams{
			OpChange:        0.2,
			OpChangeType:    0.1,
			ValueChange:     0.2,
			ValueChangeType: 0.15,
			OpAdd:           0.03,
			OpDel:           0.1,
			Constant:        Field(0.25, 0, 0.25),
			NewExpr: ExprBuildParams{
				ValueWeight: 100,
				ConstWeight: 100,
				ConstRange:  [2]float64{-10, 10},
				MinDepth:    0,
				MaxDepth:    1,
				JointCount:  1,
			},
		},
		RootScale: Field(0.1, 0, 0.1).Within(0.5, 2),
		Random: RandomParams{
			Nodes:          [2]int{2, 5},
			ExtraEdges:     [2]int{0, 3},
			Density:        [2]float64{0.5, 2},
			Friction:       [2]float64{0.2, 1},
			Restitution:    [2]float64{0, 0.5},
			RecursiveLimit: [2]int{1, 3},
			TerminalChance: 0.1,
			Scale:          [2]float64{0.3, 1.2},
			RootScale:      [2]float64{0.5, 1.5},
			MaxTilt:        math.Pi / 4,
			LockLinear:     true,
			LockChance:     0.3,
			LinearLimit:    0.1,
			AngularLimit:   math.Pi / 2,
			EffectorChance: 0.8,
			Expr:           DefaultExprBuildParams(),
		},
	}
}

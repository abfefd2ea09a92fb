// Package fitness defines the scoring contract used while a creature is
// under test, and the stock jump and walk objectives.
package fitness

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/creatures/geom"
)

// Sentinel is the score given to a creature whose fitness is not finite.
const Sentinel float32 = -1e12

// LimbState is the physical state of one limb at one step.
type LimbState struct {
	Transform geom.Transform
	LinVel    r3.Vec
	AngVel    r3.Vec
	Contacts  [geom.NumFaces]bool
}

// StepState is the physical state of the whole creature at one step.
type StepState struct {
	Limbs []LimbState
	Time  float64
}

// Evaluator accumulates a score over one test. Start is called once with
// the settled state, Continuous once per step and Final once at the end.
type Evaluator interface {
	Start(initial StepState)
	Continuous(step StepState)
	Final(final StepState) float32
}

// Factory returns a fresh Evaluator for one test.
type Factory func() Evaluator

// Params carries the tuning of every stock objective.
type Params struct {
	Walk WalkParams `yaml:"walk"`
}

var builders = map[string]func(Params) Factory{
	"jump": func(Params) Factory {
		return func() Evaluator { return &Jump{} }
	},
	"walk": func(p Params) Factory {
		return func() Evaluator { return &Walk{Params: p.Walk} }
	},
}

// Register makes an objective available to New under name.
func Register(name string, build func(Params) Factory) {
	builders[name] = build
}

// New returns the factory for the named objective.
func New(name string, p Params) (Factory, error) {
	build, ok := builders[name]
	if !ok {
		return nil, fmt.Errorf("unknown fitness function %q (have %v)", name, Names())
	}
	return build(p), nil
}

// Names lists the registered objectives.
func Names() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Finalize converts a score to float32, replacing non-finite values with
// Sentinel.
func Finalize(score float64) float32 {
	f := float32(score)
	if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
		return Sentinel
	}
	return f
}

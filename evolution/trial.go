package evolution

import (
	"errors"
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/creatures/fitness"
	"github.com/pthm-cable/creatures/morph"
)

// World is the physics collaborator a creature is tested in. The caller
// advances it one fixed step between calls to Trainer.Tick.
type World interface {
	Build(res *morph.BuildResult) error
	Clear()
	Snapshot() fitness.StepState
	SetSettling(on bool)
}

// Stepper is a World that can advance itself.
type Stepper interface {
	World
	Step()
}

// TestParams controls how a single creature is tested.
type TestParams struct {
	Fitness     fitness.Factory
	Steps       int
	Settle      bool
	SettleSteps int
	SettleSpeed float64
	// SpawnHeight is the clearance between the creature's lowest corner
	// and the ground at spawn.
	SpawnHeight float64
	// Trace logs every scored step at debug level.
	Trace bool
}

func (p TestParams) validate() error {
	if p.Fitness == nil {
		return errors.New("no fitness function")
	}
	if p.Steps < 1 {
		return fmt.Errorf("test steps must be positive, got %d", p.Steps)
	}
	return nil
}

// trial is the test of one creature: an optional settle phase followed by
// a fixed number of scored steps.
type trial struct {
	params     TestParams
	id         morph.CreatureID
	eval       fitness.Evaluator
	settling   bool
	settleStep int
	step       int
	limbs      int
}

// begin spawns g in w and starts its test.
func (t *trial) begin(w World, g *morph.Graph, p TestParams) error {
	res := g.Evaluate(g.RootTransform(r3.Vec{}))
	res.Lift(p.SpawnHeight)
	if err := w.Build(res); err != nil {
		return fmt.Errorf("building creature %d: %w", g.ID, err)
	}
	*t = trial{params: p, id: g.ID, eval: p.Fitness(), limbs: len(res.Limbs)}
	if p.Settle {
		t.settling = true
		w.SetSettling(true)
	} else {
		w.SetSettling(false)
		t.eval.Start(w.Snapshot())
	}
	return nil
}

// observe consumes one world step. Returns true once the test is over.
func (t *trial) observe(w World) bool {
	s := w.Snapshot()
	if t.settling {
		t.settleStep++
		if settled(s, t.params.SettleSpeed) || t.settleStep >= t.params.SettleSteps {
			t.settling = false
			w.SetSettling(false)
			t.eval.Start(s)
			slog.Debug("creature_settled", "id", t.id, "steps", t.settleStep)
		}
		return false
	}

	t.eval.Continuous(s)
	t.step++
	if t.params.Trace && len(s.Limbs) > 0 {
		root := s.Limbs[0].Transform.Translation
		slog.Debug("step", "id", t.id, "step", t.step, "t", s.Time,
			"x", root.X, "y", root.Y, "z", root.Z)
	}
	return t.step >= t.params.Steps
}

// finish scores the test and removes the creature.
func (t *trial) finish(w World) float32 {
	score := t.eval.Final(w.Snapshot())
	w.Clear()
	return fitness.Finalize(float64(score))
}

func settled(s fitness.StepState, speed float64) bool {
	for _, l := range s.Limbs {
		if r3.Norm(l.LinVel) > speed || r3.Norm(l.AngVel) > speed {
			return false
		}
	}
	return true
}

// Score runs one complete test of g in w and returns its fitness and limb
// count.
func Score(w Stepper, g *morph.Graph, p TestParams) (float32, int, error) {
	if err := p.validate(); err != nil {
		return fitness.Sentinel, 0, err
	}
	var t trial
	if err := t.begin(w, g, p); err != nil {
		return fitness.Sentinel, 0, err
	}
	for {
		w.Step()
		if t.observe(w) {
			break
		}
	}
	return t.finish(w), t.limbs, nil
}

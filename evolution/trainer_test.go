package evolution

import (
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/creatures/fitness"
	"github.com/pthm-cable/creatures/morph"
	"github.com/pthm-cable/creatures/mutate"
	"github.com/pthm-cable/creatures/telemetry"
)

// fakeWorld holds built limbs still; velocities read as speed.
type fakeWorld struct {
	res      *morph.BuildResult
	builds   int
	steps    int
	speed    float64
	settling []bool
	fail     func(*morph.BuildResult) bool
}

func (w *fakeWorld) Build(res *morph.BuildResult) error {
	if w.fail != nil && w.fail(res) {
		return errors.New("cannot build")
	}
	w.res = res
	w.builds++
	return nil
}

func (w *fakeWorld) Clear() { w.res = nil }
func (w *fakeWorld) SetSettling(on bool) { w.settling = append(w.settling, on) }
func (w *fakeWorld) Step() { w.steps++ }

func (w *fakeWorld) Snapshot() fitness.StepState {
	var s fitness.StepState
	if w.res == nil {
		return s
	}
	for _, l := range w.res.Limbs {
		s.Limbs = append(s.Limbs, fitness.LimbState{Transform: l.Transform, LinVel: r3.Vec{X: w.speed}})
	}
	return s
}

// rootWidth scores a creature by its root's X half extent, which differs
// between random creatures and survives cloning.
type rootWidth struct{ started, steps int }

func (r *rootWidth) Start(fitness.StepState) { r.started++ }
func (r *rootWidth) Continuous(fitness.StepState) { r.steps++ }
func (r *rootWidth) Final(s fitness.StepState) float32 {
	if len(s.Limbs) == 0 || r.started != 1 {
		return fitness.Sentinel
	}
	return float32(s.Limbs[0].Transform.Scale.X)
}

func testOptions() Options {
	return Options{
		Selection: selection(10, 0.3, 0.2),
		Mutation:  mutate.DefaultParams(),
		Test: TestParams{
			Fitness:     func() fitness.Evaluator { return &rootWidth{} },
			Steps:       3,
			SpawnHeight: 0.5,
		},
	}
}

// runGeneration ticks until generation gen has been persisted.
func runGeneration(t *testing.T, tr *Trainer, w *fakeWorld, gen int) {
	t.Helper()
	for i := 0; tr.Session().Generation < gen; i++ {
		if i > 10000 {
			t.Fatalf("generation %d never finished", gen)
		}
		if err := tr.Tick(w); err != nil {
			t.Fatalf("Tick: %v", err)
		}
		if tr.Session().Generation >= gen {
			break
		}
		w.Step()
	}
}

func TestTrainerEndToEnd(t *testing.T) {
	store := newStore(t)
	opts := testOptions()
	hall := telemetry.NewHallOfFame(5)
	out, err := telemetry.NewOutputManager(store.Dir())
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()
	opts.Hall, opts.Output = hall, out
	opts.Perf = telemetry.NewPerfCollector(4)

	tr, err := NewTrainer(opts, rand.New(rand.NewSource(8)), store)
	if err != nil {
		t.Fatalf("NewTrainer: %v", err)
	}
	w := &fakeWorld{}

	runGeneration(t, tr, w, 0)
	if tr.State() != StatePopulate {
		t.Errorf("state after a generation = %v, want Populate", tr.State())
	}
	if w.builds != 10 {
		t.Errorf("built %d creatures, want 10", w.builds)
	}
	if w.steps != 30 {
		t.Errorf("stepped %d times, want 30", w.steps)
	}

	gen0, err := store.ReadGeneration(0)
	if err != nil {
		t.Fatalf("ReadGeneration(0): %v", err)
	}
	for i, e := range gen0 {
		if e.ID != morph.CreatureID(i) || e.Flag != Spawned {
			t.Errorf("gen 0 entry %d = %+v, want id %d Spawned", i, e, i)
		}
		if e.Fitness <= 0 {
			t.Errorf("gen 0 creature %d scored %v", e.ID, e.Fitness)
		}
		if _, err := os.Stat(store.CreaturePath(e.ID)); err != nil {
			t.Errorf("creature %d not saved: %v", e.ID, err)
		}
	}
	sess, _, err := store.ReadSession()
	if err != nil {
		t.Fatal(err)
	}
	if sess.Generation != 0 || sess.NextID != 10 {
		t.Errorf("session after gen 0 = %+v", sess)
	}

	runGeneration(t, tr, w, 1)
	gen1, err := store.ReadGeneration(1)
	if err != nil {
		t.Fatalf("ReadGeneration(1): %v", err)
	}

	var prev []Member
	for _, e := range gen0 {
		prev = append(prev, Member{Graph: morph.New(e.ID), Fitness: e.Fitness})
	}
	ranked, _ := Rank(prev)

	var gotIDs []morph.CreatureID
	var gotFlags []Flag
	for _, e := range gen1 {
		gotIDs = append(gotIDs, e.ID)
		gotFlags = append(gotFlags, e.Flag)
	}
	wantIDs := append(ids(ranked[:3]), 10, 11, 12, 13, 14, 15, 16)
	if diff := cmp.Diff(wantIDs, gotIDs); diff != "" {
		t.Errorf("gen 1 IDs mismatch (-want +got):\n%s", diff)
	}
	wantFlags := []Flag{Retained, Retained, Retained, Mutated, Mutated, Mutated, Mutated, Mutated, Spawned, Spawned}
	if diff := cmp.Diff(wantFlags, gotFlags); diff != "" {
		t.Errorf("gen 1 flags mismatch (-want +got):\n%s", diff)
	}
	for i := 0; i < 3; i++ {
		if gen1[i].Fitness != ranked[i].Fitness {
			t.Errorf("retained %d rescored %v, want %v", gen1[i].ID, gen1[i].Fitness, ranked[i].Fitness)
		}
	}

	if hall.Size() != 5 || hall.TopFitness() < ranked[0].Fitness {
		t.Errorf("hall of fame size %d top %v", hall.Size(), hall.TopFitness())
	}
	for _, name := range []string{"history.csv", "hall_of_fame.json"} {
		if _, err := os.Stat(filepath.Join(store.Dir(), name)); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}
}

func TestTrainerResume(t *testing.T) {
	store := newStore(t)
	w := &fakeWorld{}
	tr, err := NewTrainer(testOptions(), rand.New(rand.NewSource(9)), store)
	if err != nil {
		t.Fatal(err)
	}
	runGeneration(t, tr, w, 0)
	want := tr.Population()

	resumed, err := NewTrainer(testOptions(), rand.New(rand.NewSource(10)), store)
	if err != nil {
		t.Fatalf("NewTrainer on existing session: %v", err)
	}
	if resumed.Session().Generation != 0 || resumed.Session().NextID != 10 {
		t.Errorf("resumed session = %+v", resumed.Session())
	}
	got := resumed.Population()
	if diff := cmp.Diff(ids(want), ids(got)); diff != "" {
		t.Errorf("resumed IDs mismatch (-want +got):\n%s", diff)
	}
	for i := range got {
		if got[i].Fitness != want[i].Fitness {
			t.Errorf("resumed fitness %d = %v, want %v", i, got[i].Fitness, want[i].Fitness)
		}
	}

	runGeneration(t, resumed, w, 1)
	if resumed.Generation() != 1 {
		t.Errorf("Generation = %d, want 1", resumed.Generation())
	}
	gen1, err := store.ReadGeneration(1)
	if err != nil {
		t.Fatal(err)
	}
	if gen1[3].ID != 10 {
		t.Errorf("first new ID after resume = %d, want 10", gen1[3].ID)
	}
}

func TestTrainerSettles(t *testing.T) {
	base := testOptions()
	base.Selection.Population = 1
	base.Test.Settle = true
	base.Test.SettleSteps = 5
	base.Test.SettleSpeed = 0.1

	tests := []struct {
		name        string
		speed       float64
		settleSteps int
	}{
		{"settles at once", 0, 1},
		{"times out", 1, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var eval *rootWidth
			opts := base
			opts.Test.Fitness = func() fitness.Evaluator {
				eval = &rootWidth{}
				return eval
			}
			tr, err := NewTrainer(opts, rand.New(rand.NewSource(11)), newStore(t))
			if err != nil {
				t.Fatal(err)
			}
			w := &fakeWorld{speed: tt.speed}
			runGeneration(t, tr, w, 0)

			if w.steps != tt.settleSteps+3 {
				t.Errorf("stepped %d times, want %d", w.steps, tt.settleSteps+3)
			}
			if diff := cmp.Diff([]bool{true, false}, w.settling); diff != "" {
				t.Errorf("settling calls mismatch (-want +got):\n%s", diff)
			}
			if eval.started != 1 || eval.steps != 3 {
				t.Errorf("evaluator started %d times, scored %d steps", eval.started, eval.steps)
			}
		})
	}
}

func TestTrainerSkipsUnbuildable(t *testing.T) {
	attempts := 0
	w := &fakeWorld{fail: func(*morph.BuildResult) bool {
		attempts++
		return attempts%2 == 0
	}}
	tr, err := NewTrainer(testOptions(), rand.New(rand.NewSource(12)), newStore(t))
	if err != nil {
		t.Fatal(err)
	}
	runGeneration(t, tr, w, 0)

	if attempts != 10 {
		t.Errorf("attempted %d builds, want 10", attempts)
	}
	for i, m := range tr.Population() {
		failed := i%2 == 1
		if got := m.Fitness == fitness.Sentinel; got != failed {
			t.Errorf("creature %d fitness %v, unbuildable %v", m.ID(), m.Fitness, failed)
		}
	}
	if w.builds != 5 {
		t.Errorf("built %d creatures, want 5", w.builds)
	}
}

func TestTrainerRejectsBadOptions(t *testing.T) {
	store := newStore(t)
	opts := testOptions()
	opts.Test.Fitness = nil
	if _, err := NewTrainer(opts, rand.New(rand.NewSource(1)), store); err == nil {
		t.Error("expected error without a fitness function")
	}
	opts = testOptions()
	opts.Test.Steps = 0
	if _, err := NewTrainer(opts, rand.New(rand.NewSource(1)), store); err == nil {
		t.Error("expected error for zero test steps")
	}
}

func TestTrainerMalformedSession(t *testing.T) {
	store := newStore(t)
	if err := os.WriteFile(filepath.Join(store.Dir(), "session.dat"), []byte("garbage\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewTrainer(testOptions(), rand.New(rand.NewSource(1)), store); !errors.Is(err, ErrMalformed) {
		t.Errorf("err = %v, want ErrMalformed", err)
	}
}

func TestScore(t *testing.T) {
	g := mutate.DefaultParams().Random.Graph(rand.New(rand.NewSource(13)), 1)
	w := &fakeWorld{}
	p := testOptions().Test
	p.Settle = true
	p.SettleSteps = 10
	p.SettleSpeed = 0.1

	score, limbs, err := Score(w, g, p)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if score != float32(g.RootScale.X) {
		t.Errorf("score = %v, want root width %v", score, g.RootScale.X)
	}
	if limbs != len(g.Evaluate(g.RootTransform(r3.Vec{})).Limbs) {
		t.Errorf("limbs = %d", limbs)
	}
	if w.steps != 4 {
		t.Errorf("stepped %d times, want 1 settle + 3 scored", w.steps)
	}
	if w.res != nil {
		t.Error("Score left the creature in the world")
	}

	p.Fitness = nil
	if _, _, err := Score(w, g, p); err == nil {
		t.Error("expected error without a fitness function")
	}
}

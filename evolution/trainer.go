package evolution

import (
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/pthm-cable/creatures/fitness"
	"github.com/pthm-cable/creatures/mutate"
	"github.com/pthm-cable/creatures/telemetry"
)

// State is the trainer's position in the generation cycle.
type State uint8

const (
	StatePopulate State = iota
	StateEvaluating
	StateTesting
	StateWritePersist
)

func (s State) String() string {
	switch s {
	case StatePopulate:
		return "Populate"
	case StateEvaluating:
		return "EvaluatingCreature"
	case StateTesting:
		return "TestingCreature"
	case StateWritePersist:
		return "WritePersist"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Options configures a Trainer.
type Options struct {
	Selection SelectionParams
	Mutation  mutate.Params
	Test      TestParams

	// Optional outputs; nil disables each.
	Output *telemetry.OutputManager
	Hall   *telemetry.HallOfFame
	Perf   *telemetry.PerfCollector
}

// Trainer evolves a population one creature test at a time. It owns no
// physics: an external fixed-step loop steps the world and calls Tick.
type Trainer struct {
	opts    Options
	rng     *rand.Rand
	store   *Store
	session *Session

	state      State
	generation int
	population []Member
	current    int
	trial      trial
}

// NewTrainer opens the session kept in store. A session that has completed
// generations resumes from the last roster; otherwise training starts from
// a random population.
func NewTrainer(opts Options, rng *rand.Rand, store *Store) (*Trainer, error) {
	if err := opts.Test.validate(); err != nil {
		return nil, err
	}
	if opts.Selection.Population < 1 {
		return nil, fmt.Errorf("population must be positive, got %d", opts.Selection.Population)
	}

	t := &Trainer{opts: opts, rng: rng, store: store, state: StatePopulate}

	sess, ok, err := store.ReadSession()
	if err != nil {
		return nil, err
	}
	if !ok {
		t.session = NewSession(store.Name())
		slog.Info("session_created", "name", t.session.Name, "dir", store.Dir())
		return t, nil
	}

	t.session = sess
	if sess.Generation >= 0 {
		t.population, err = store.LoadPopulation(sess.Generation)
		if err != nil {
			return nil, err
		}
	}
	slog.Info("session_resumed",
		"name", sess.Name,
		"generation", sess.Generation,
		"next_id", uint64(sess.NextID),
		"best_fitness", sess.BestFitness,
		"best_creature", uint64(sess.BestCreature),
		"population", len(t.population),
	)
	return t, nil
}

// State returns the current state.
func (t *Trainer) State() State { return t.state }

// Session returns the live session counters.
func (t *Trainer) Session() *Session { return t.session }

// Generation returns the generation being tested, or the last completed one
// while populating.
func (t *Trainer) Generation() int { return t.generation }

// Population returns the current generation.
func (t *Trainer) Population() []Member { return t.population }

// Tick advances the trainer after one world step. It runs the instantaneous
// states until a creature is under test in w or a generation has been
// persisted, so every call either consumes the step or ends a generation.
func (t *Trainer) Tick(w World) error {
	for {
		switch t.state {
		case StatePopulate:
			if err := t.populate(); err != nil {
				return err
			}
		case StateEvaluating:
			t.evaluate(w)
			if t.state == StateTesting {
				return nil
			}
		case StateTesting:
			scored := t.trial.step
			done := t.trial.observe(w)
			if t.trial.step != scored {
				t.opts.Perf.CountStep()
			}
			if !done {
				return nil
			}
			t.state = StateEvaluating
		case StateWritePersist:
			return t.persist()
		}
	}
}

func (t *Trainer) populate() error {
	t.opts.Perf.StartGeneration()
	t.opts.Perf.StartPhase(telemetry.PhasePopulate)

	next, err := Populate(t.rng, t.population, t.session, t.opts.Selection, t.opts.Mutation)
	if err != nil {
		return fmt.Errorf("generation %d: %w", t.session.Generation+1, err)
	}
	t.population = next
	t.generation = t.session.Generation + 1
	t.current = -1
	t.state = StateEvaluating

	slog.Info("generation_start",
		"generation", t.generation,
		"population", len(next),
		"next_id", uint64(t.session.NextID),
	)
	t.opts.Perf.StartPhase(telemetry.PhaseTest)
	return nil
}

// evaluate scores the creature that just finished and spawns the next one.
func (t *Trainer) evaluate(w World) {
	if t.current >= 0 && t.current < len(t.population) {
		m := &t.population[t.current]
		m.Fitness = t.trial.finish(w)
		slog.Debug("creature_tested", "generation", t.generation, "id", uint64(m.ID()),
			"flag", m.Flag.String(), "fitness", m.Fitness, "limbs", m.Limbs)
	}

	for t.current++; t.current < len(t.population); t.current++ {
		m := &t.population[t.current]
		if err := t.trial.begin(w, m.Graph, t.opts.Test); err != nil {
			slog.Warn("creature_skipped", "id", uint64(m.ID()), "error", err)
			m.Fitness = fitness.Sentinel
			continue
		}
		m.Limbs = t.trial.limbs
		t.state = StateTesting
		return
	}

	t.state = StateWritePersist
	t.opts.Perf.StartPhase(telemetry.PhasePersist)
}

func (t *Trainer) persist() error {
	gen := t.generation
	for _, m := range t.population {
		if t.session.Record(m.ID(), m.Fitness) {
			slog.Info("session_best", "generation", gen, "id", uint64(m.ID()), "fitness", m.Fitness)
		}
		if _, err := t.store.SaveCreature(m.Graph); err != nil {
			return err
		}
	}
	if err := t.store.WriteGeneration(gen, t.population); err != nil {
		return err
	}
	t.session.Generation = gen
	if err := t.store.WriteSession(t.session); err != nil {
		return err
	}

	if t.opts.Hall != nil {
		for _, m := range t.population {
			t.opts.Hall.Consider(telemetry.HallEntry{
				ID:         uint64(m.ID()),
				Fitness:    m.Fitness,
				Generation: gen,
				Limbs:      m.Limbs,
			})
		}
		if err := t.opts.Output.WriteHallOfFame(t.opts.Hall); err != nil {
			return err
		}
	}

	duration := t.opts.Perf.EndGeneration()
	stats := GenerationStats(gen, t.population, t.session)
	stats.DurationSec = duration.Seconds()
	stats.LogStats()
	if err := t.opts.Output.WriteGeneration(stats); err != nil {
		return err
	}
	if t.opts.Perf != nil {
		slog.Info("perf", "stats", t.opts.Perf.Stats())
	}

	t.state = StatePopulate
	return nil
}

// GenerationStats summarizes a tested generation.
func GenerationStats(gen int, members []Member, sess *Session) telemetry.GenerationStats {
	stats := telemetry.GenerationStats{
		Generation:    gen,
		Population:    len(members),
		SessionBest:   float64(sess.BestFitness),
		SessionBestID: uint64(sess.BestCreature),
	}
	if len(members) == 0 {
		return stats
	}

	scores := make([]float64, 0, len(members))
	limbs := make([]int, 0, len(members))
	best := members[0]
	for _, m := range members {
		switch m.Flag {
		case Retained:
			stats.Retained++
		case Mutated:
			stats.Mutated++
		case Spawned:
			stats.Spawned++
		}
		if m.Fitness <= fitness.Sentinel {
			stats.Sentinels++
		}
		if m.Fitness > best.Fitness {
			best = m
		}
		scores = append(scores, float64(m.Fitness))
		limbs = append(limbs, m.Limbs)
	}
	stats.BestID = uint64(best.ID())
	stats.Best = float64(best.Fitness)
	stats.Mean, stats.Std, stats.P10, stats.P50, stats.P90 = telemetry.ComputeFitnessStats(scores)
	stats.LimbsMean, stats.LimbsMax = telemetry.ComputeLimbStats(limbs)
	return stats
}

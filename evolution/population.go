// Package evolution runs training sessions: selection and reproduction of
// a creature population, the per-creature test loop and the on-disk
// session state.
package evolution

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/pthm-cable/creatures/fitness"
	"github.com/pthm-cable/creatures/morph"
	"github.com/pthm-cable/creatures/mutate"
)

// ErrNaNFitness aborts selection when a fitness value is NaN.
var ErrNaNFitness = errors.New("NaN fitness")

// Flag records how a creature entered its generation.
type Flag uint8

const (
	Retained Flag = iota
	Mutated
	Spawned
)

var flagNames = [...]string{"Retained", "Mutated", "Spawned"}

func (f Flag) String() string {
	if int(f) < len(flagNames) {
		return flagNames[f]
	}
	return fmt.Sprintf("Flag(%d)", uint8(f))
}

// ParseFlag parses the names written by Flag.String.
func ParseFlag(s string) (Flag, error) {
	for i, name := range flagNames {
		if name == s {
			return Flag(i), nil
		}
	}
	return 0, fmt.Errorf("unknown flag %q", s)
}

// Member is one creature of a generation.
type Member struct {
	Graph   *morph.Graph
	Fitness float32
	Flag    Flag
	// Limbs is the number of limbs spawned for the last test; it is not
	// persisted.
	Limbs int
}

// ID returns the creature's ID.
func (m Member) ID() morph.CreatureID { return m.Graph.ID }

// Session holds the counters that persist across generations.
type Session struct {
	Name string
	// Generation is the last completed generation, -1 before the first.
	Generation   int
	NextID       morph.CreatureID
	BestFitness  float32
	BestCreature morph.CreatureID
}

// NewSession returns the state of a session that has not run yet.
func NewSession(name string) *Session {
	return &Session{Name: name, Generation: -1, BestFitness: fitness.Sentinel}
}

// AllocID hands out the next creature ID.
func (s *Session) AllocID() morph.CreatureID {
	id := s.NextID
	s.NextID++
	return id
}

// Record updates the session best. Returns true if it improved.
func (s *Session) Record(id morph.CreatureID, score float32) bool {
	if score <= s.BestFitness {
		return false
	}
	s.BestFitness = score
	s.BestCreature = id
	return true
}

// SelectionParams shapes one generation.
type SelectionParams struct {
	Population   int
	Elitism      float64
	RandPercent  float64
	MaxMutations int
	// Exponent bends the mutation count across the offspring: the i-th of
	// n offspring gets ceil(MaxMutations * (i/(n-1))^Exponent) passes.
	Exponent float64
}

// Counts returns how many creatures of the next generation are retained,
// mutated and freshly spawned when the previous one had prev members.
func (p SelectionParams) Counts(prev int) (retained, mutated, spawned int) {
	retained = min(fraction(p.Elitism, p.Population), prev)
	spawned = min(fraction(p.RandPercent, p.Population), p.Population-retained)
	mutated = p.Population - retained - spawned
	return retained, mutated, spawned
}

// fraction is ceil(f*n), tolerant of representation error in f.
func fraction(f float64, n int) int {
	return max(0, int(math.Ceil(f*float64(n)-1e-9)))
}

// Passes returns the number of mutation passes for offspring i of n. Every
// mutated offspring gets at least one.
func (p SelectionParams) Passes(i, n int) int {
	ratio := 0.0
	if n > 1 {
		ratio = float64(i) / float64(n-1)
	}
	return max(1, int(math.Ceil(float64(p.MaxMutations)*math.Pow(ratio, p.Exponent)-1e-9)))
}

// Rank returns prev sorted by descending fitness. Ties keep roster order.
func Rank(prev []Member) ([]Member, error) {
	for _, m := range prev {
		if math.IsNaN(float64(m.Fitness)) {
			return nil, fmt.Errorf("creature %d: %w", m.ID(), ErrNaNFitness)
		}
	}
	ranked := append([]Member(nil), prev...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Fitness > ranked[j].Fitness
	})
	return ranked, nil
}

// Populate builds the next generation. An empty prev yields a fully random
// population. Otherwise the best creatures are kept under their own IDs,
// the remainder is filled with mutated clones of the elites, round robin,
// and fresh random creatures. The result is ordered Retained, Mutated,
// Spawned. New IDs come from s.
func Populate(rng *rand.Rand, prev []Member, s *Session, sel SelectionParams, mp mutate.Params) ([]Member, error) {
	next := make([]Member, 0, sel.Population)
	if len(prev) == 0 {
		for i := 0; i < sel.Population; i++ {
			next = append(next, Member{Graph: mp.Random.Graph(rng, s.AllocID()), Flag: Spawned})
		}
		return next, nil
	}

	ranked, err := Rank(prev)
	if err != nil {
		return nil, err
	}
	s.Record(ranked[0].ID(), ranked[0].Fitness)

	retained, mutated, spawned := sel.Counts(len(ranked))
	for _, m := range ranked[:retained] {
		next = append(next, Member{Graph: m.Graph.Clone(m.ID()), Fitness: m.Fitness, Flag: Retained})
	}

	parents := ranked[:max(retained, 1)]
	for i := 0; i < mutated; i++ {
		child := parents[i%len(parents)].Graph.Clone(s.AllocID())
		for n := sel.Passes(i, mutated); n > 0; n-- {
			mp.Mutate(rng, child)
		}
		next = append(next, Member{Graph: child, Flag: Mutated})
	}

	for i := 0; i < spawned; i++ {
		next = append(next, Member{Graph: mp.Random.Graph(rng, s.AllocID()), Flag: Spawned})
	}
	return next, nil
}

package evolution

import (
	"errors"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/pthm-cable/creatures/fitness"
	"github.com/pthm-cable/creatures/morph"
	"github.com/pthm-cable/creatures/mutate"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(t.TempDir(), "walker")
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	return s
}

func TestOpenStoreRejectsPaths(t *testing.T) {
	for _, name := range []string{"", "..", "a/b", "../escape"} {
		if _, err := OpenStore(t.TempDir(), name); err == nil {
			t.Errorf("OpenStore(%q) succeeded", name)
		}
	}
}

func TestGenerationFileFormat(t *testing.T) {
	s := newStore(t)
	members := []Member{
		{Graph: morph.New(3), Fitness: 1.25, Flag: Retained},
		{Graph: morph.New(10), Fitness: -0.5, Flag: Mutated},
		{Graph: morph.New(7), Fitness: fitness.Sentinel, Flag: Spawned},
	}
	if err := s.WriteGeneration(4, members); err != nil {
		t.Fatalf("WriteGeneration: %v", err)
	}

	data, err := os.ReadFile(s.GenerationPath(4))
	if err != nil {
		t.Fatal(err)
	}
	want := "--- Generation 4 ---\n\n" +
		"id: [3]  fitness: [1.25]  flags: [Retained]\n" +
		"id: [10]  fitness: [-0.5]  flags: [Mutated]\n" +
		"id: [7]  fitness: [-1e+12]  flags: [Spawned]\n"
	if diff := cmp.Diff(want, string(data)); diff != "" {
		t.Errorf("generation file mismatch (-want +got):\n%s", diff)
	}

	roster, err := s.ReadGeneration(4)
	if err != nil {
		t.Fatalf("ReadGeneration: %v", err)
	}
	wantRoster := []RosterEntry{
		{ID: 3, Fitness: 1.25, Flag: Retained},
		{ID: 10, Fitness: -0.5, Flag: Mutated},
		{ID: 7, Fitness: fitness.Sentinel, Flag: Spawned},
	}
	if diff := cmp.Diff(wantRoster, roster); diff != "" {
		t.Errorf("roster mismatch (-want +got):\n%s", diff)
	}
}

func TestFitnessSurvivesText(t *testing.T) {
	s := newStore(t)
	scores := []float32{0.1, 1.0 / 3, -123456.79, 3.4e38, 1e-30}
	var members []Member
	for i, f := range scores {
		members = append(members, Member{Graph: morph.New(morph.CreatureID(i)), Fitness: f})
	}
	if err := s.WriteGeneration(0, members); err != nil {
		t.Fatal(err)
	}
	roster, err := s.ReadGeneration(0)
	if err != nil {
		t.Fatal(err)
	}
	for i, e := range roster {
		if e.Fitness != scores[i] {
			t.Errorf("fitness %d = %v, want %v", i, e.Fitness, scores[i])
		}
	}
}

func TestSessionFileFormat(t *testing.T) {
	s := newStore(t)
	sess := &Session{Name: "walker", Generation: 12, NextID: 3120, BestFitness: 4.5, BestCreature: 2999}
	if err := s.WriteSession(sess); err != nil {
		t.Fatalf("WriteSession: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(s.Dir(), "session.dat"))
	if err != nil {
		t.Fatal(err)
	}
	want := "--- Session data file ---\n\n" +
		"name = [walker]\n" +
		"current_generation = [12]\n" +
		"current_id = [3120]\n" +
		"best_fitness = [4.5]\n" +
		"best_creature = [2999]\n"
	if diff := cmp.Diff(want, string(data)); diff != "" {
		t.Errorf("session file mismatch (-want +got):\n%s", diff)
	}

	got, ok, err := s.ReadSession()
	if err != nil || !ok {
		t.Fatalf("ReadSession = %v, %v", ok, err)
	}
	if diff := cmp.Diff(sess, got); diff != "" {
		t.Errorf("session mismatch (-want +got):\n%s", diff)
	}
}

// Text as written by earlier versions of the trainer, with no trailing
// newline on the session file and Rust-style float formatting.
func TestReadLegacyFiles(t *testing.T) {
	s := newStore(t)
	gen := "--- Generation 0 ---\n\n" +
		"id: [3]  fitness: [1.5]  flags: [Retained]\n" +
		"id: [11]  fitness: [-1000000000000.0]  flags: [Spawned]\n"
	if err := os.WriteFile(s.GenerationPath(0), []byte(gen), 0644); err != nil {
		t.Fatal(err)
	}
	roster, err := s.ReadGeneration(0)
	if err != nil {
		t.Fatalf("ReadGeneration: %v", err)
	}
	wantRoster := []RosterEntry{
		{ID: 3, Fitness: 1.5, Flag: Retained},
		{ID: 11, Fitness: fitness.Sentinel, Flag: Spawned},
	}
	if diff := cmp.Diff(wantRoster, roster); diff != "" {
		t.Errorf("roster mismatch (-want +got):\n%s", diff)
	}

	tests := []struct {
		name string
		text string
		want *Session
	}{
		{
			"after a generation",
			"--- Session data file ---\n\nname = [walker]\ncurrent_generation = [0]\ncurrent_id = [250]\nbest_fitness = [3.25]\nbest_creature = [17]",
			&Session{Name: "walker", Generation: 0, NextID: 250, BestFitness: 3.25, BestCreature: 17},
		},
		{
			"never run",
			"--- Session data file ---\n\nname = [walker]\ncurrent_generation = [-1]\ncurrent_id = [-1]\nbest_fitness = [-1000000000000.0]\nbest_creature = [0]",
			NewSession("walker"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := os.WriteFile(filepath.Join(s.Dir(), "session.dat"), []byte(tt.text), 0644); err != nil {
				t.Fatal(err)
			}
			got, ok, err := s.ReadSession()
			if err != nil || !ok {
				t.Fatalf("ReadSession = %v, %v", ok, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("session mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReadSessionAbsent(t *testing.T) {
	sess, ok, err := newStore(t).ReadSession()
	if sess != nil || ok || err != nil {
		t.Errorf("ReadSession on a new store = %v, %v, %v", sess, ok, err)
	}
}

func TestFreshSessionRoundTrip(t *testing.T) {
	s := newStore(t)
	if err := s.WriteSession(NewSession("walker")); err != nil {
		t.Fatal(err)
	}
	got, _, err := s.ReadSession()
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(NewSession("walker"), got); diff != "" {
		t.Errorf("session mismatch (-want +got):\n%s", diff)
	}
}

func TestMalformedGeneration(t *testing.T) {
	tests := []struct {
		name string
		text string
		line string
	}{
		{"empty", "", ":0:"},
		{"wrong generation", "--- Generation 2 ---\n\n", ":1:"},
		{"no blank line", "--- Generation 1 ---\nid: [1]  fitness: [0]  flags: [Spawned]\n", ":2:"},
		{"missing field", "--- Generation 1 ---\n\nid: [1]  fitness: [0]\n", ":3:"},
		{"bad id", "--- Generation 1 ---\n\nid: [x]  fitness: [0]  flags: [Spawned]\n", ":3:"},
		{"bad fitness", "--- Generation 1 ---\n\nid: [1]  fitness: [high]  flags: [Spawned]\n", ":3:"},
		{"bad flag", "--- Generation 1 ---\n\nid: [1]  fitness: [0]  flags: [Spawned]\nid: [2]  fitness: [0]  flags: [Born]\n", ":4:"},
		{"wrong label", "--- Generation 1 ---\n\nkey: [1]  fitness: [0]  flags: [Spawned]\n", ":3:"},
		{"unbracketed", "--- Generation 1 ---\n\nid: 1  fitness: 0  flags: Spawned\n", ":3:"},
		{"half bracketed", "--- Generation 1 ---\n\nid: [1  fitness: [0]  flags: [Spawned]\n", ":3:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			if err := os.WriteFile(s.GenerationPath(1), []byte(tt.text), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := s.ReadGeneration(1)
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("err = %v, want ErrMalformed", err)
			}
			if !strings.Contains(err.Error(), tt.line) {
				t.Errorf("error %q does not name line %s", err, tt.line)
			}
		})
	}
}

func TestMissingGeneration(t *testing.T) {
	_, err := newStore(t).ReadGeneration(9)
	if err == nil || errors.Is(err, ErrMalformed) {
		t.Errorf("err = %v, want a plain I/O error", err)
	}
}

func TestMalformedSession(t *testing.T) {
	valid := "name = [w]\ncurrent_generation = [0]\ncurrent_id = [5]\nbest_fitness = [1]\nbest_creature = [2]\n"
	tests := []struct {
		name string
		text string
	}{
		{"no header", valid},
		{"missing key", "--- Session data file ---\n\nname = w\ncurrent_generation = 0\n"},
		{"unknown key", "--- Session data file ---\n\n" + valid + "colour = [blue]\n"},
		{"duplicate key", "--- Session data file ---\n\n" + valid + "current_id = [6]\n"},
		{"no equals", "--- Session data file ---\n\nname [w]\n"},
		{"bad number", "--- Session data file ---\n\n" + strings.Replace(valid, "current_id = [5]", "current_id = [five]", 1)},
		{"bad generation", "--- Session data file ---\n\n" + strings.Replace(valid, "current_generation = [0]", "current_generation = [-4]", 1)},
		{"unbracketed", "--- Session data file ---\n\n" + strings.Replace(valid, "current_id = [5]", "current_id = 5", 1)},
		{"negative id", "--- Session data file ---\n\n" + strings.Replace(valid, "current_id = [5]", "current_id = [-2]", 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			if err := os.WriteFile(filepath.Join(s.Dir(), "session.dat"), []byte(tt.text), 0644); err != nil {
				t.Fatal(err)
			}
			if _, _, err := s.ReadSession(); !errors.Is(err, ErrMalformed) {
				t.Errorf("err = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestSaveCreatureOnce(t *testing.T) {
	s := newStore(t)
	rng := rand.New(rand.NewSource(5))
	g := mutate.DefaultParams().Random.Graph(rng, 42)

	written, err := s.SaveCreature(g)
	if err != nil || !written {
		t.Fatalf("first SaveCreature = %v, %v", written, err)
	}
	first, _ := os.ReadFile(s.CreaturePath(42))

	g.RootScale.X *= 2
	written, err = s.SaveCreature(g)
	if err != nil || written {
		t.Fatalf("second SaveCreature = %v, %v; want no write", written, err)
	}
	second, _ := os.ReadFile(s.CreaturePath(42))
	if string(first) != string(second) {
		t.Error("existing creature record was overwritten")
	}
}

func TestLoadCreature(t *testing.T) {
	s := newStore(t)
	rng := rand.New(rand.NewSource(6))
	g := mutate.DefaultParams().Random.Graph(rng, 7)
	if _, err := s.SaveCreature(g); err != nil {
		t.Fatal(err)
	}

	got, err := s.LoadCreature(7)
	if err != nil {
		t.Fatalf("LoadCreature: %v", err)
	}
	want, _ := morph.Marshal(g)
	have, _ := morph.Marshal(got)
	if diff := cmp.Diff(string(want), string(have)); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}

	// A record filed under the wrong ID is rejected.
	if err := os.WriteFile(s.CreaturePath(8), want, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.LoadCreature(8); !errors.Is(err, ErrMalformed) {
		t.Errorf("mismatched ID: err = %v, want ErrMalformed", err)
	}
	if err := os.WriteFile(s.CreaturePath(9), []byte("::: not yaml"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.LoadCreature(9); !errors.Is(err, ErrMalformed) {
		t.Errorf("garbage record: err = %v, want ErrMalformed", err)
	}
}

func TestLoadPopulation(t *testing.T) {
	s := newStore(t)
	rng := rand.New(rand.NewSource(7))
	sess := NewSession("walker")
	pop, err := Populate(rng, nil, sess, selection(4, 0.5, 0), mutate.DefaultParams())
	if err != nil {
		t.Fatal(err)
	}
	for i := range pop {
		pop[i].Fitness = float32(i) / 2
		if _, err := s.SaveCreature(pop[i].Graph); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.WriteGeneration(0, pop); err != nil {
		t.Fatal(err)
	}

	got, err := s.LoadPopulation(0)
	if err != nil {
		t.Fatalf("LoadPopulation: %v", err)
	}
	if diff := cmp.Diff(ids(pop), ids(got)); diff != "" {
		t.Errorf("IDs mismatch (-want +got):\n%s", diff)
	}
	for i := range got {
		if got[i].Fitness != pop[i].Fitness || got[i].Flag != pop[i].Flag {
			t.Errorf("member %d = %v/%v, want %v/%v", i, got[i].Fitness, got[i].Flag, pop[i].Fitness, pop[i].Flag)
		}
	}

	if err := os.Remove(s.CreaturePath(pop[2].ID())); err != nil {
		t.Fatal(err)
	}
	if _, err := s.LoadPopulation(0); err == nil {
		t.Error("expected error for a missing creature record")
	}
}

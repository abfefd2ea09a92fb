package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"

	"github.com/pthm-cable/creatures/config"
	"github.com/pthm-cable/creatures/evolution"
	"github.com/pthm-cable/creatures/morph"
	"github.com/pthm-cable/creatures/telemetry"
)

func TestTrainFlagsApply(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	var a trainFlags
	cmd := &cobra.Command{}
	cmd.Flags().IntVar(&a.population, "population", 0, "")
	cmd.Flags().Float64Var(&a.elitism, "elitism", 0, "")
	cmd.Flags().Float64Var(&a.testTime, "test-time", 0, "")
	cmd.Flags().StringVar(&a.fitness, "fitness", "", "")
	for name, value := range map[string]string{"population": "12", "test-time": "2", "fitness": "walk"} {
		if err := cmd.Flags().Set(name, value); err != nil {
			t.Fatal(err)
		}
	}

	if err := a.apply(cmd, cfg); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if cfg.Evolution.Population != 12 {
		t.Errorf("Population = %d, want 12", cfg.Evolution.Population)
	}
	if cfg.Evolution.Elitism != 0.25 {
		t.Errorf("Elitism = %v, want the default 0.25", cfg.Evolution.Elitism)
	}
	if cfg.Derived.TestSteps != 120 {
		t.Errorf("TestSteps = %d, want 120", cfg.Derived.TestSteps)
	}
	if cfg.Fitness.Name != "walk" {
		t.Errorf("Fitness = %q, want walk", cfg.Fitness.Name)
	}

	if err := cmd.Flags().Set("population", "0"); err != nil {
		t.Fatal(err)
	}
	if err := a.apply(cmd, cfg); err == nil {
		t.Error("expected error for an empty population")
	}
}

func TestSelectCreatures(t *testing.T) {
	store, err := evolution.OpenStore(t.TempDir(), "walker")
	if err != nil {
		t.Fatal(err)
	}
	members := []evolution.Member{
		{Graph: morph.New(4), Fitness: 2, Flag: evolution.Retained},
		{Graph: morph.New(9), Fitness: 5, Flag: evolution.Mutated},
	}
	if err := store.WriteGeneration(3, members); err != nil {
		t.Fatal(err)
	}
	sess := &evolution.Session{Name: "walker", Generation: 3, NextID: 10, BestFitness: 6, BestCreature: 1}

	out, err := telemetry.NewOutputManager(store.Dir())
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()
	hall := telemetry.NewHallOfFame(3)
	hall.Consider(telemetry.HallEntry{ID: 1, Fitness: 6})
	hall.Consider(telemetry.HallEntry{ID: 9, Fitness: 5})
	if err := out.WriteHallOfFame(hall); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		set  map[string]string
		args playFlags
		want []playEntry
	}{
		{"default last generation", nil, playFlags{},
			[]playEntry{{id: 4, recorded: 2, known: true}, {id: 9, recorded: 5, known: true}}},
		{"creature", map[string]string{"creature": "7"}, playFlags{creature: 7},
			[]playEntry{{id: 7}}},
		{"best", nil, playFlags{best: true},
			[]playEntry{{id: 1, recorded: 6, known: true}}},
		{"rank", map[string]string{"rank": "2"}, playFlags{rank: 2},
			[]playEntry{{id: 9, recorded: 5, known: true}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{}
			var sink playFlags
			cmd.Flags().Uint64Var(&sink.creature, "creature", 0, "")
			cmd.Flags().IntVar(&sink.rank, "rank", 0, "")
			for name, value := range tt.set {
				if err := cmd.Flags().Set(name, value); err != nil {
					t.Fatal(err)
				}
			}

			got, err := selectCreatures(cmd, tt.args, store, sess)
			if err != nil {
				t.Fatalf("selectCreatures: %v", err)
			}
			if diff := cmp.Diff(tt.want, got, cmp.AllowUnexported(playEntry{})); diff != "" {
				t.Errorf("selection mismatch (-want +got):\n%s", diff)
			}
		})
	}

	cmd := &cobra.Command{}
	cmd.Flags().Int("rank", 0, "")
	if err := cmd.Flags().Set("rank", "5"); err != nil {
		t.Fatal(err)
	}
	if _, err := selectCreatures(cmd, playFlags{rank: 5}, store, sess); err == nil {
		t.Error("expected error for a rank beyond the hall of fame")
	}
}

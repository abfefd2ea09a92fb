package main

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/creatures/config"
	"github.com/pthm-cable/creatures/evolution"
	"github.com/pthm-cable/creatures/sim"
	"github.com/pthm-cable/creatures/telemetry"
)

// trainFlags override the loaded configuration when set.
type trainFlags struct {
	testTime    float64
	population  int
	elitism     float64
	randPercent float64
	fitness     string
	seed        int64
	generations int
}

var trainArgs trainFlags

var trainCmd = &cobra.Command{
	Use:   "train <session>",
	Short: "Evolve creatures in a named session",
	Long: `Train runs generations until interrupted (or until --generations have
completed). Each generation is written to the session directory as soon as
every creature in it has been tested, so training resumes from the last
completed generation.`,
	Args: cobra.ExactArgs(1),
	RunE: runTrain,
}

func init() {
	f := trainCmd.Flags()
	f.Float64Var(&trainArgs.testTime, "test-time", 0, "Simulated seconds each creature is scored for")
	f.IntVar(&trainArgs.population, "population", 0, "Creatures per generation")
	f.Float64Var(&trainArgs.elitism, "elitism", 0, "Fraction of the population retained unchanged")
	f.Float64Var(&trainArgs.randPercent, "rand-percent", 0, "Fraction of the population spawned fresh")
	f.StringVar(&trainArgs.fitness, "fitness", "", "Fitness function (jump or walk)")
	f.Int64Var(&trainArgs.seed, "seed", 0, "RNG seed (0 = time-based)")
	f.IntVar(&trainArgs.generations, "generations", 0, "Stop after N generations (0 = unlimited)")
}

// apply copies the flags the user set onto cfg and recomputes derived values.
func (a trainFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("test-time") {
		cfg.Testing.TestTime = a.testTime
	}
	if flags.Changed("population") {
		cfg.Evolution.Population = a.population
	}
	if flags.Changed("elitism") {
		cfg.Evolution.Elitism = a.elitism
	}
	if flags.Changed("rand-percent") {
		cfg.Evolution.RandPercent = a.randPercent
	}
	if flags.Changed("fitness") {
		cfg.Fitness.Name = a.fitness
	}
	if flags.Changed("seed") {
		cfg.Evolution.Seed = a.seed
	}
	return cfg.Finalize()
}

func selectionParams(cfg *config.Config) evolution.SelectionParams {
	return evolution.SelectionParams{
		Population:   cfg.Evolution.Population,
		Elitism:      cfg.Evolution.Elitism,
		RandPercent:  cfg.Evolution.RandPercent,
		MaxMutations: cfg.Evolution.MaxMutations,
		Exponent:     cfg.Evolution.Exponent,
	}
}

// openHallOfFame resumes the session's hall of fame, or starts an empty one.
func openHallOfFame(dir string, size int) (*telemetry.HallOfFame, error) {
	hof, err := telemetry.LoadHallOfFameFromFile(telemetry.HallOfFamePath(dir))
	if errors.Is(err, os.ErrNotExist) {
		return telemetry.NewHallOfFame(size), nil
	}
	if err != nil {
		return nil, err
	}
	return hof, nil
}

func runTrain(cmd *cobra.Command, args []string) error {
	cfg := config.Cfg()
	if err := trainArgs.apply(cmd, cfg); err != nil {
		return err
	}

	test, err := testParams(cfg, cfg.Derived.TestSteps)
	if err != nil {
		return err
	}
	store, err := evolution.OpenStore(cfg.Derived.StorageRoot, args[0])
	if err != nil {
		return err
	}

	out, err := telemetry.NewOutputManager(store.Dir())
	if err != nil {
		return err
	}
	defer out.Close()
	if err := out.WriteConfig(cfg); err != nil {
		return err
	}
	hall, err := openHallOfFame(store.Dir(), cfg.Telemetry.HallOfFameSize)
	if err != nil {
		return err
	}

	seed := cfg.Evolution.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	trainer, err := evolution.NewTrainer(evolution.Options{
		Selection: selectionParams(cfg),
		Mutation:  cfg.Mutation,
		Test:      test,
		Output:    out,
		Hall:      hall,
		Perf:      telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
	}, rand.New(rand.NewSource(seed)), store)
	if err != nil {
		return fmt.Errorf("opening session %q: %w", args[0], err)
	}

	slog.Info("starting training",
		"session", args[0],
		"dir", store.Dir(),
		"seed", seed,
		"fitness", cfg.Fitness.Name,
		"population", cfg.Evolution.Population,
		"test_steps", cfg.Derived.TestSteps,
		"generations", trainArgs.generations,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	world := sim.New(cfg.Sim, cfg.Testing.DT)
	start := trainer.Session().Generation
	for ctx.Err() == nil {
		if err := trainer.Tick(world); err != nil {
			return err
		}
		if trainArgs.generations > 0 && trainer.Session().Generation-start >= trainArgs.generations {
			slog.Info("generation limit reached", "generation", trainer.Session().Generation)
			return nil
		}
		world.Step()
	}

	slog.Info("training interrupted",
		"state", trainer.State().String(),
		"last_completed", trainer.Session().Generation,
	)
	return nil
}

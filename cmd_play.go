package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/creatures/config"
	"github.com/pthm-cable/creatures/evolution"
	"github.com/pthm-cable/creatures/expr"
	"github.com/pthm-cable/creatures/geom"
	"github.com/pthm-cable/creatures/morph"
	"github.com/pthm-cable/creatures/sim"
	"github.com/pthm-cable/creatures/telemetry"
)

// playFlags choose which creatures to replay. At most one selector is set;
// with none, the last generation is played.
type playFlags struct {
	creature   uint64
	generation bool
	best       bool
	rank       int
	autoCycle  float64
}

var playArgs playFlags

var playCmd = &cobra.Command{
	Use:   "play <session>",
	Short: "Replay creatures from a session",
	Long: `Play rebuilds saved creatures in the physics world and scores them again
with the configured fitness function.

Selectors:
  -c ID     a single creature
  -g        the last completed generation, in roster order (default)
  -b        the session's best creature
  --rank N  the N-th best creature in the hall of fame`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

func init() {
	f := playCmd.Flags()
	f.Uint64VarP(&playArgs.creature, "creature", "c", 0, "Creature ID to play")
	f.BoolVarP(&playArgs.generation, "generation", "g", false, "Play the last generation")
	f.BoolVarP(&playArgs.best, "best", "b", false, "Play the best creature")
	f.IntVar(&playArgs.rank, "rank", 0, "Play the N-th best creature of the hall of fame (1 = best)")
	f.Float64Var(&playArgs.autoCycle, "auto-cycle", 0, "Simulated seconds per creature (0 = test time)")
	playCmd.MarkFlagsMutuallyExclusive("creature", "generation", "best", "rank")
}

// playEntry is one creature to replay and the score it was saved with.
type playEntry struct {
	id       morph.CreatureID
	recorded float32
	known    bool
}

// selectCreatures resolves the selector flags against the session.
func selectCreatures(cmd *cobra.Command, a playFlags, store *evolution.Store, sess *evolution.Session) ([]playEntry, error) {
	flags := cmd.Flags()
	switch {
	case flags.Changed("creature"):
		return []playEntry{{id: morph.CreatureID(a.creature)}}, nil
	case a.best:
		return []playEntry{{id: sess.BestCreature, recorded: sess.BestFitness, known: true}}, nil
	case flags.Changed("rank"):
		hall, err := telemetry.LoadHallOfFameFromFile(telemetry.HallOfFamePath(store.Dir()))
		if err != nil {
			return nil, err
		}
		e, ok := hall.Rank(a.rank - 1)
		if !ok {
			return nil, fmt.Errorf("rank %d out of range (hall of fame holds %d)", a.rank, hall.Size())
		}
		return []playEntry{{id: morph.CreatureID(e.ID), recorded: e.Fitness, known: true}}, nil
	}

	roster, err := store.ReadGeneration(sess.Generation)
	if err != nil {
		return nil, err
	}
	entries := make([]playEntry, len(roster))
	for i, r := range roster {
		entries[i] = playEntry{id: r.ID, recorded: r.Fitness, known: true}
	}
	return entries, nil
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg := config.Cfg()
	if cmd.Flags().Changed("auto-cycle") {
		cfg.Play.AutoCycle = playArgs.autoCycle
	}
	if err := cfg.Finalize(); err != nil {
		return err
	}

	store, err := evolution.OpenStore(cfg.Derived.StorageRoot, args[0])
	if err != nil {
		return err
	}
	sess, ok, err := store.ReadSession()
	if err != nil {
		return err
	}
	if !ok || sess.Generation < 0 {
		return fmt.Errorf("session %q has no completed generations", args[0])
	}

	entries, err := selectCreatures(cmd, playArgs, store, sess)
	if err != nil {
		return err
	}
	test, err := testParams(cfg, cfg.Derived.PlaySteps)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	world := sim.New(cfg.Sim, cfg.Testing.DT)
	for _, e := range entries {
		if ctx.Err() != nil {
			slog.Info("playback interrupted")
			return nil
		}
		g, err := store.LoadCreature(e.id)
		if err != nil {
			return err
		}
		logControllers(ctx, g)
		score, limbs, err := evolution.Score(world, g, test)
		if err != nil {
			slog.Warn("creature_unplayable", "id", uint64(e.id), "error", err)
			continue
		}
		attrs := []any{"id", uint64(e.id), "fitness", score, "limbs", limbs, "steps", test.Steps}
		if e.known {
			attrs = append(attrs, "recorded", e.recorded)
		}
		slog.Info("creature_played", attrs...)
	}
	return nil
}

// logControllers prints every joint controller of g at debug level.
func logControllers(ctx context.Context, g *morph.Graph) {
	if !slog.Default().Enabled(ctx, slog.LevelDebug) {
		return
	}
	for _, eid := range g.EdgeIDs() {
		e := g.Edge(eid)
		for a, n := range e.Effectors {
			if n == nil {
				continue
			}
			slog.Debug("controller",
				"id", uint64(g.ID),
				"edge", eid,
				"axis", geom.Axis(a).String(),
				"expr", expr.Format(n),
			)
		}
	}
}

// Command creatures evolves block creatures and replays the results.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pthm-cable/creatures/config"
	"github.com/pthm-cable/creatures/evolution"
	"github.com/pthm-cable/creatures/fitness"
)

var (
	// Global flags
	configPath string
	visual     bool
	silent     bool
)

var rootCmd = &cobra.Command{
	Use:   "creatures",
	Short: "Evolve block creatures in a physics sandbox",
	Long: `creatures breeds rigid-body creatures whose joints are driven by
evolved expressions, testing one creature at a time against a fitness
function and keeping the fittest.

Sessions are stored under the storage root (see --config) and can be
resumed at any time by training again under the same name.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if visual && silent {
			return fmt.Errorf("--visual and --silent are mutually exclusive")
		}
		level := slog.LevelInfo
		switch {
		case silent:
			level = slog.LevelWarn
		case visual:
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

		// Initialize config before anything else
		return config.Init(configPath)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.yaml (empty = use defaults)")
	rootCmd.PersistentFlags().BoolVar(&visual, "visual", false, "Log every simulated step of the creature under test")
	rootCmd.PersistentFlags().BoolVar(&silent, "silent", false, "Only log warnings and errors")

	rootCmd.AddCommand(trainCmd, playCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// testParams builds the per-creature test from the effective config.
func testParams(cfg *config.Config, steps int) (evolution.TestParams, error) {
	factory, err := fitness.New(cfg.Fitness.Name, cfg.Fitness.Params)
	if err != nil {
		return evolution.TestParams{}, err
	}
	return evolution.TestParams{
		Fitness:     factory,
		Steps:       steps,
		Settle:      cfg.Testing.Settle,
		SettleSteps: cfg.Derived.SettleSteps,
		SettleSpeed: cfg.Testing.SettleSpeed,
		SpawnHeight: cfg.Testing.SpawnHeight,
		Trace:       visual,
	}, nil
}

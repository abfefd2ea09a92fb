// Package config provides configuration loading and access for training and
// playback.
package config

import (
	_ "embed"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/creatures/fitness"
	"github.com/pthm-cable/creatures/mutate"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all configuration parameters.
type Config struct {
	Evolution EvolutionConfig `yaml:"evolution"`
	Testing   TestingConfig   `yaml:"testing"`
	Sim       SimConfig       `yaml:"sim"`
	Fitness   FitnessConfig   `yaml:"fitness"`
	Mutation  mutate.Params   `yaml:"mutation"`
	Storage   StorageConfig   `yaml:"storage"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Play      PlayConfig      `yaml:"play"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// EvolutionConfig holds population and selection parameters.
type EvolutionConfig struct {
	Population   int     `yaml:"population"`
	Elitism      float64 `yaml:"elitism"`       // Fraction of the population retained as-is
	RandPercent  float64 `yaml:"rand_percent"`  // Fraction replaced by fresh random creatures
	MaxMutations int     `yaml:"max_mutations"` // Passes given to the last offspring
	Exponent     float64 `yaml:"exponent"`      // Shape of the per-offspring mutation curve
	Seed         int64   `yaml:"seed"`          // 0 = seed from the clock
}

// TestingConfig holds per-creature test parameters. Times are in simulated
// seconds.
type TestingConfig struct {
	TestTime      float64 `yaml:"test_time"`
	DT            float64 `yaml:"dt"`
	Settle        bool    `yaml:"settle"`
	SettleTimeout float64 `yaml:"settle_timeout"`
	SettleSpeed   float64 `yaml:"settle_speed"` // Creature is settled once every limb is slower than this
	SpawnHeight   float64 `yaml:"spawn_height"` // Clearance between the root's lowest corner and the ground
}

// SimConfig holds reference physics parameters.
type SimConfig struct {
	Gravity        float64 `yaml:"gravity"`
	Iterations     int     `yaml:"iterations"`      // Constraint solver passes per step
	LinearDamping  float64 `yaml:"linear_damping"`  // Velocity fraction lost per second
	AngularDamping float64 `yaml:"angular_damping"` // Spin fraction lost per second
	SettleDamping  float64 `yaml:"settle_damping"`  // Replaces both while settling
	LinearGain     float64 `yaml:"linear_gain"`     // Acceleration from a unit linear effector
	AngularGain    float64 `yaml:"angular_gain"`    // Angular acceleration from a unit angular effector
	ContactSlop    float64 `yaml:"contact_slop"`    // Corners this close to the ground count as touching
}

// FitnessConfig selects and tunes the objective.
type FitnessConfig struct {
	Name   string         `yaml:"name"`
	Params fitness.Params `yaml:",inline"`
}

// StorageConfig holds persistence parameters.
type StorageConfig struct {
	Root string `yaml:"root"` // Empty = $HOME/.local/share/evolved-creatures/training
}

// TelemetryConfig holds statistics parameters.
type TelemetryConfig struct {
	HallOfFameSize int `yaml:"hall_of_fame_size"`
	PerfWindow     int `yaml:"perf_window"` // Generations averaged by the phase timer
}

// PlayConfig holds playback parameters.
type PlayConfig struct {
	AutoCycle float64 `yaml:"auto_cycle"` // Simulated seconds per creature; 0 = test_time
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	TestSteps   int    // Testing.TestTime / Testing.DT
	SettleSteps int    // Testing.SettleTimeout / Testing.DT
	PlaySteps   int    // Play.AutoCycle / Testing.DT
	StorageRoot string // Storage.Root with the default applied
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	// Mutation and fitness tables start from their package defaults; the
	// embedded file covers everything else.
	cfg := &Config{
		Mutation: mutate.DefaultParams(),
		Fitness:  FitnessConfig{Params: fitness.Params{Walk: fitness.DefaultWalkParams()}},
	}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	// Load user config if provided
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Finalize validates the configuration and recomputes derived values. Call
// it again after overriding fields.
func (c *Config) Finalize() error {
	if err := c.validate(); err != nil {
		return err
	}
	c.computeDerived()
	return nil
}

func (c *Config) validate() error {
	e := c.Evolution
	switch {
	case e.Population < 1:
		return fmt.Errorf("evolution.population must be positive, got %d", e.Population)
	case e.Elitism < 0 || e.Elitism > 1:
		return fmt.Errorf("evolution.elitism must be in [0, 1], got %v", e.Elitism)
	case e.RandPercent < 0 || e.RandPercent > 1:
		return fmt.Errorf("evolution.rand_percent must be in [0, 1], got %v", e.RandPercent)
	case e.MaxMutations < 1:
		return fmt.Errorf("evolution.max_mutations must be at least 1, got %d", e.MaxMutations)
	case c.Testing.DT <= 0:
		return fmt.Errorf("testing.dt must be positive, got %v", c.Testing.DT)
	case c.Testing.TestTime <= 0:
		return fmt.Errorf("testing.test_time must be positive, got %v", c.Testing.TestTime)
	case c.Sim.Iterations < 1:
		return fmt.Errorf("sim.iterations must be at least 1, got %d", c.Sim.Iterations)
	}
	if _, err := fitness.New(c.Fitness.Name, c.Fitness.Params); err != nil {
		return fmt.Errorf("fitness.name: %w", err)
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.TestSteps = steps(c.Testing.TestTime, c.Testing.DT)
	c.Derived.SettleSteps = steps(c.Testing.SettleTimeout, c.Testing.DT)
	playTime := c.Play.AutoCycle
	if playTime <= 0 {
		playTime = c.Testing.TestTime
	}
	c.Derived.PlaySteps = steps(playTime, c.Testing.DT)

	c.Derived.StorageRoot = c.Storage.Root
	if c.Derived.StorageRoot == "" {
		c.Derived.StorageRoot = DefaultStorageRoot()
	}
}

func steps(seconds, dt float64) int {
	return max(1, int(math.Round(seconds/dt)))
}

// DefaultStorageRoot returns where sessions live when storage.root is unset.
func DefaultStorageRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".local", "share", "evolved-creatures", "training")
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Package telemetry records per-generation statistics of a training session.
package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// GenerationStats holds aggregated statistics for one tested generation.
type GenerationStats struct {
	Generation int `csv:"generation"`
	Population int `csv:"population"`

	// Provenance counts
	Retained int `csv:"retained"`
	Mutated  int `csv:"mutated"`
	Spawned  int `csv:"spawned"`

	// Fitness distribution
	BestID    uint64  `csv:"best_id"`
	Best      float64 `csv:"best"`
	Mean      float64 `csv:"mean"`
	Std       float64 `csv:"std"`
	P10       float64 `csv:"p10"`
	P50       float64 `csv:"p50"`
	P90       float64 `csv:"p90"`
	Sentinels int     `csv:"sentinels"` // creatures whose score was not finite

	// Body size
	LimbsMean float64 `csv:"limbs_mean"`
	LimbsMax  int     `csv:"limbs_max"`

	SessionBest   float64 `csv:"session_best"`
	SessionBestID uint64  `csv:"session_best_id"`
	DurationSec   float64 `csv:"duration_sec"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	// Linear interpolation
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}

	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// ComputeFitnessStats calculates mean, std, and percentiles from fitness values.
func ComputeFitnessStats(values []float64) (mean, std, p10, p50, p90 float64) {
	n := len(values)
	if n == 0 {
		return 0, 0, 0, 0, 0
	}

	mean, std = stat.MeanStdDev(values, nil)
	if n < 2 {
		std = 0
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	p10 = Percentile(sorted, 0.10)
	p50 = Percentile(sorted, 0.50)
	p90 = Percentile(sorted, 0.90)

	return mean, std, p10, p50, p90
}

// ComputeLimbStats returns the mean and maximum limb count.
func ComputeLimbStats(counts []int) (mean float64, maxCount int) {
	if len(counts) == 0 {
		return 0, 0
	}
	values := make([]float64, len(counts))
	for i, c := range counts {
		values[i] = float64(c)
	}
	return stat.Mean(values, nil), int(floats.Max(values))
}

// LogValue implements slog.LogValuer for structured logging.
func (s GenerationStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("generation", s.Generation),
		slog.Int("population", s.Population),
		slog.Int("retained", s.Retained),
		slog.Int("mutated", s.Mutated),
		slog.Int("spawned", s.Spawned),
		slog.Uint64("best_id", s.BestID),
		slog.Float64("best", s.Best),
		slog.Float64("mean", s.Mean),
		slog.Float64("std", s.Std),
		slog.Float64("p10", s.P10),
		slog.Float64("p50", s.P50),
		slog.Float64("p90", s.P90),
		slog.Int("sentinels", s.Sentinels),
		slog.Float64("limbs_mean", s.LimbsMean),
		slog.Int("limbs_max", s.LimbsMax),
		slog.Float64("session_best", s.SessionBest),
		slog.Uint64("session_best_id", s.SessionBestID),
		slog.Float64("duration_sec", s.DurationSec),
	)
}

// LogStats logs the generation stats using slog.
func (s GenerationStats) LogStats() {
	slog.Info("generation", "stats", s)
}

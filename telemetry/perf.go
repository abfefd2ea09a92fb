package telemetry

import (
	"log/slog"
	"time"
)

// Phase names for one generation.
const (
	PhasePopulate = "populate"
	PhaseTest     = "test"
	PhasePersist  = "persist"
)

var phases = []string{PhasePopulate, PhaseTest, PhasePersist}

// PerfSample holds timing data for a single generation.
type PerfSample struct {
	Duration time.Duration
	Steps    int
	Phases   map[string]time.Duration
}

// PerfCollector tracks wall-clock timing of generations over a rolling
// window.
type PerfCollector struct {
	windowSize    int
	samples       []PerfSample
	writeIndex    int
	sampleCount   int
	currentPhases map[string]time.Duration
	currentSteps  int
	genStart      time.Time
	phaseStart    time.Time
	lastPhase     string
	now           func() time.Time
}

// NewPerfCollector creates a new collector averaging over windowSize
// generations.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 10
	}
	return &PerfCollector{
		windowSize:    windowSize,
		samples:       make([]PerfSample, windowSize),
		currentPhases: make(map[string]time.Duration),
		now:           time.Now,
	}
}

// StartGeneration begins timing a new generation.
func (p *PerfCollector) StartGeneration() {
	if p == nil {
		return
	}
	p.genStart = p.now()
	p.currentPhases = make(map[string]time.Duration)
	p.currentSteps = 0
	p.lastPhase = ""
}

// StartPhase begins timing a specific phase, ending the previous one.
func (p *PerfCollector) StartPhase(phase string) {
	if p == nil {
		return
	}
	now := p.now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}
	p.phaseStart = now
	p.lastPhase = phase
}

// CountStep records one physics step of testing.
func (p *PerfCollector) CountStep() {
	if p == nil {
		return
	}
	p.currentSteps++
}

// EndGeneration finishes timing the current generation and records the
// sample. It returns the generation's duration.
func (p *PerfCollector) EndGeneration() time.Duration {
	if p == nil {
		return 0
	}
	now := p.now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}
	p.lastPhase = ""

	sample := PerfSample{
		Duration: now.Sub(p.genStart),
		Steps:    p.currentSteps,
		Phases:   p.currentPhases,
	}

	p.samples[p.writeIndex] = sample
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
	return sample.Duration
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	AvgGeneration time.Duration
	PhaseAvg      map[string]time.Duration
	PhasePct      map[string]float64
	StepsPerSec   float64
}

// Stats computes aggregated statistics over the current window.
func (p *PerfCollector) Stats() PerfStats {
	stats := PerfStats{
		PhaseAvg: make(map[string]time.Duration),
		PhasePct: make(map[string]float64),
	}
	if p == nil || p.sampleCount == 0 {
		return stats
	}

	var total time.Duration
	var steps int
	phaseSum := make(map[string]time.Duration)
	for i := 0; i < p.sampleCount; i++ {
		s := p.samples[i]
		total += s.Duration
		steps += s.Steps
		for phase, dur := range s.Phases {
			phaseSum[phase] += dur
		}
	}

	stats.AvgGeneration = total / time.Duration(p.sampleCount)
	for phase, sum := range phaseSum {
		stats.PhaseAvg[phase] = sum / time.Duration(p.sampleCount)
		if stats.AvgGeneration > 0 {
			stats.PhasePct[phase] = float64(stats.PhaseAvg[phase]) / float64(stats.AvgGeneration) * 100
		}
	}
	if total > 0 {
		stats.StepsPerSec = float64(steps) / total.Seconds()
	}
	return stats
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_generation_ms", s.AvgGeneration.Milliseconds()),
		slog.Float64("steps_per_sec", s.StepsPerSec),
	}
	for _, phase := range phases {
		if pct, ok := s.PhasePct[phase]; ok {
			attrs = append(attrs, slog.Float64(phase+"_pct", pct))
		}
	}
	return slog.GroupValue(attrs...)
}

package telemetry

import (
	"testing"
	"time"
)

// fakeClock advances by a fixed step on every read.
type fakeClock struct {
	t    time.Time
	step time.Duration
}

func (c *fakeClock) now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

func TestPerfCollector_BasicTiming(t *testing.T) {
	pc := NewPerfCollector(10)
	clock := &fakeClock{step: time.Millisecond}
	pc.now = clock.now

	for i := 0; i < 5; i++ {
		pc.StartGeneration()
		pc.StartPhase(PhasePopulate)
		pc.StartPhase(PhaseTest)
		pc.CountStep()
		pc.CountStep()
		pc.StartPhase(PhasePersist)
		if d := pc.EndGeneration(); d != 4*time.Millisecond {
			t.Errorf("generation %d duration = %v, want 4ms", i, d)
		}
	}

	stats := pc.Stats()
	if stats.AvgGeneration != 4*time.Millisecond {
		t.Errorf("AvgGeneration = %v, want 4ms", stats.AvgGeneration)
	}
	for _, phase := range phases {
		if stats.PhaseAvg[phase] != time.Millisecond {
			t.Errorf("PhaseAvg[%s] = %v, want 1ms", phase, stats.PhaseAvg[phase])
		}
		if stats.PhasePct[phase] != 25 {
			t.Errorf("PhasePct[%s] = %v, want 25", phase, stats.PhasePct[phase])
		}
	}
	if stats.StepsPerSec != 500 {
		t.Errorf("StepsPerSec = %v, want 500", stats.StepsPerSec)
	}
}

func TestPerfCollector_RollingWindow(t *testing.T) {
	pc := NewPerfCollector(3)
	clock := &fakeClock{step: time.Millisecond}
	pc.now = clock.now

	// Two slow generations followed by three fast ones: only the fast ones
	// stay in the window.
	for i := 0; i < 5; i++ {
		if i < 2 {
			clock.step = 10 * time.Millisecond
		} else {
			clock.step = time.Millisecond
		}
		pc.StartGeneration()
		pc.StartPhase(PhaseTest)
		pc.EndGeneration()
	}

	stats := pc.Stats()
	if stats.AvgGeneration != 2*time.Millisecond {
		t.Errorf("AvgGeneration = %v, want 2ms", stats.AvgGeneration)
	}
}

func TestPerfCollector_Empty(t *testing.T) {
	pc := NewPerfCollector(5)
	stats := pc.Stats()
	if stats.AvgGeneration != 0 || stats.StepsPerSec != 0 {
		t.Errorf("empty collector stats = %+v", stats)
	}
}

func TestPerfCollector_Nil(t *testing.T) {
	var pc *PerfCollector
	pc.StartGeneration()
	pc.StartPhase(PhaseTest)
	pc.CountStep()
	if d := pc.EndGeneration(); d != 0 {
		t.Errorf("nil EndGeneration = %v", d)
	}
	if s := pc.Stats(); s.AvgGeneration != 0 {
		t.Errorf("nil Stats = %+v", s)
	}
}

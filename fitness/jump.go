package fitness

import "math"

// Jump scores the highest the creature's lowest point reaches during the
// test.
type Jump struct {
	best    float64
	started bool
}

func (j *Jump) observe(s StepState) {
	lowest := math.Inf(1)
	for _, l := range s.Limbs {
		lowest = math.Min(lowest, l.Transform.Lowest())
	}
	if math.IsInf(lowest, 1) {
		return
	}
	if !j.started || lowest > j.best {
		j.best = lowest
		j.started = true
	}
}

func (j *Jump) Start(initial StepState) {
	j.started = false
	j.observe(initial)
}

func (j *Jump) Continuous(step StepState) { j.observe(step) }

func (j *Jump) Final(final StepState) float32 {
	j.observe(final)
	if !j.started {
		return Sentinel
	}
	return Finalize(j.best)
}

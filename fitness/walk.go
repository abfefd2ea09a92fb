package fitness

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// WalkParams tunes the walk objective.
type WalkParams struct {
	// HeightThreshold is how far the creature's top may rise above its
	// starting height before the penalty starts.
	HeightThreshold float64 `yaml:"height_threshold"`
	// ExtentThreshold is how far the horizontal span may grow.
	ExtentThreshold float64 `yaml:"extent_threshold"`
	// Penalty multiplies the squared excess.
	Penalty float64 `yaml:"penalty"`
}

// DefaultWalkParams returns the stock walk tuning.
func DefaultWalkParams() WalkParams {
	return WalkParams{HeightThreshold: 1, ExtentThreshold: 1, Penalty: 4}
}

// Walk scores net horizontal travel of the limb centroid, penalized
// quadratically for jumping or sprawling beyond the thresholds.
type Walk struct {
	Params WalkParams

	startX, startZ float64
	baseHeight     float64
	baseExtent     float64
	peakHeight     float64
	peakExtent     float64
	started        bool
}

type walkSample struct {
	x, z   float64
	height float64
	extent float64
}

func measure(s StepState) (walkSample, bool) {
	if len(s.Limbs) == 0 {
		return walkSample{}, false
	}
	xs := make([]float64, len(s.Limbs))
	zs := make([]float64, len(s.Limbs))
	var cornersX, cornersZ []float64
	height := math.Inf(-1)
	for i, l := range s.Limbs {
		xs[i] = l.Transform.Translation.X
		zs[i] = l.Transform.Translation.Z
		height = math.Max(height, l.Transform.Highest())
		for _, c := range l.Transform.Corners() {
			cornersX = append(cornersX, c.X)
			cornersZ = append(cornersZ, c.Z)
		}
	}
	extent := math.Hypot(
		floats.Max(cornersX)-floats.Min(cornersX),
		floats.Max(cornersZ)-floats.Min(cornersZ),
	)
	return walkSample{x: stat.Mean(xs, nil), z: stat.Mean(zs, nil), height: height, extent: extent}, true
}

func (w *Walk) Start(initial StepState) {
	m, ok := measure(initial)
	w.started = ok
	if !ok {
		return
	}
	w.startX, w.startZ = m.x, m.z
	w.baseHeight, w.peakHeight = m.height, m.height
	w.baseExtent, w.peakExtent = m.extent, m.extent
}

func (w *Walk) Continuous(step StepState) {
	if !w.started {
		w.Start(step)
		return
	}
	m, ok := measure(step)
	if !ok {
		return
	}
	w.peakHeight = math.Max(w.peakHeight, m.height)
	w.peakExtent = math.Max(w.peakExtent, m.extent)
}

func (w *Walk) Final(final StepState) float32 {
	if !w.started {
		return Sentinel
	}
	w.Continuous(final)
	m, ok := measure(final)
	if !ok {
		return Sentinel
	}
	travel := math.Hypot(m.x-w.startX, m.z-w.startZ)
	overHeight := math.Max(0, w.peakHeight-w.baseHeight-w.Params.HeightThreshold)
	overExtent := math.Max(0, w.peakExtent-w.baseExtent-w.Params.ExtentThreshold)
	return Finalize(travel - w.Params.Penalty*(overHeight*overHeight+overExtent*overExtent))
}

package crowdsafe

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// AnomalyModel scores how far a sample sits from the running means.
// Every sample is kept when Window is 0.
type AnomalyModel struct {
	Warmup  int
	Window  int
	motion  []float64
	density []float64
}

func NewAnomalyModel(c AnomalyConfig) *AnomalyModel {
	return &AnomalyModel{
		Warmup: c.Warmup,
		Window: c.Window,
	}
}

// Score appends the sample first, then scores it against the means
// that now include it. Scores are 0 until Warmup samples exist.
func (am *AnomalyModel) Score(motion, density float64) float64 {
	am.motion = append(am.motion, motion)
	am.density = append(am.density, density)

	if am.Window > 0 && len(am.motion) > am.Window {
		drop := len(am.motion) - am.Window
		am.motion = append(am.motion[:0], am.motion[drop:]...)
		am.density = append(am.density[:0], am.density[drop:]...)
	}

	if len(am.motion) < am.Warmup {
		return 0
	}

	dm := math.Abs(motion - stat.Mean(am.motion, nil))
	dd := math.Abs(density - stat.Mean(am.density, nil))
	score := (dm + dd) / 2
	if math.IsNaN(score) {
		return 0
	}
	return clamp(score, 0, 1)
}

// Samples is the number of retained samples
func (am *AnomalyModel) Samples() int {
	return len(am.motion)
}

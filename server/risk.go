package crowdsafe

import (
	"math"

	Ct "github.com/maroda/crowdsafe/types"
)

// RiskClassifier is pure, all thresholds come from RiskConfig
type RiskClassifier struct {
	cfg RiskConfig
}

func NewRiskClassifier(c RiskConfig) *RiskClassifier {
	return &RiskClassifier{cfg: c}
}

// Classify maps a composite score to a band.
// Monotonic, total, NaN is LOW.
func (rc *RiskClassifier) Classify(score float64) Ct.RiskBand {
	switch {
	case math.IsNaN(score):
		return Ct.RiskLow
	case score < rc.cfg.LowThreshold:
		return Ct.RiskLow
	case score < rc.cfg.HighThreshold:
		return Ct.RiskMedium
	default:
		return Ct.RiskHigh
	}
}

// MotionNorm scales raw motion into [0,1]
func (rc *RiskClassifier) MotionNorm(motion float64) float64 {
	if rc.cfg.MotionScale <= 0 {
		return 0
	}
	return clamp(motion/rc.cfg.MotionScale, 0, 1)
}

// Composite is the score fed to Classify
func (rc *RiskClassifier) Composite(density, motion float64) float64 {
	return density*rc.cfg.DensityWeight + rc.MotionNorm(motion)*rc.cfg.MotionWeight
}

var bandBase = map[Ct.RiskBand]float64{
	Ct.RiskLow:    0.25,
	Ct.RiskMedium: 0.5,
	Ct.RiskHigh:   0.75,
}

// Normalize turns a band plus the raw metrics into a continuous risk in [0,1]
func (rc *RiskClassifier) Normalize(band Ct.RiskBand, density, motion float64) float64 {
	base, ok := bandBase[band]
	if !ok {
		base = bandBase[Ct.RiskLow]
	}
	return math.Min(base+density*0.3+rc.MotionNorm(motion)*0.2, 1.0)
}

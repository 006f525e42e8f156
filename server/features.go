package crowdsafe

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	Cp "github.com/maroda/crowdsafe/plugin"
	Ct "github.com/maroda/crowdsafe/types"
	"gonum.org/v1/gonum/stat"
)

var ErrNonFinite = errors.New("kernel returned a non-finite value")

// FeatureExtractor turns frames into FrameMetrics.
// It keeps no reference to any frame after Extract returns.
type FeatureExtractor struct {
	Density Cp.DensityKernel
	Motion  Cp.MotionKernel
	Rows    int
	Cols    int
}

func NewFeatureExtractor(c *Config) (*FeatureExtractor, error) {
	dk, err := Cp.DensityKernelLookup(c.DensityKernel)
	if err != nil {
		return nil, err
	}
	mk, err := Cp.MotionKernelLookup(c.MotionKernel)
	if err != nil {
		return nil, err
	}
	return &FeatureExtractor{
		Density: dk,
		Motion:  mk,
		Rows:    c.GridRows,
		Cols:    c.GridCols,
	}, nil
}

// Extract computes density over curr and motion from prev to curr.
// prev is nil for the first frame and motion is then 0.
// A change of resolution is treated like a first frame.
func (fe *FeatureExtractor) Extract(prev, curr *Ct.Frame, ts float64) (Ct.FrameMetrics, error) {
	if prev != nil && curr != nil && (prev.Width != curr.Width || prev.Height != curr.Height) {
		slog.Info("Frame size changed, motion restarts",
			slog.String("from", fmt.Sprintf("%dx%d", prev.Width, prev.Height)),
			slog.String("to", fmt.Sprintf("%dx%d", curr.Width, curr.Height)))
		prev = nil
	}

	grid, err := fe.Density.Density(curr, fe.Rows, fe.Cols)
	if err != nil {
		return Ct.FrameMetrics{}, fmt.Errorf("density: %w", err)
	}
	density := stat.Mean(grid.RawMatrix().Data, nil)
	if math.IsNaN(density) || math.IsInf(density, 0) {
		return Ct.FrameMetrics{}, fmt.Errorf("density: %w", ErrNonFinite)
	}

	var motion float64
	if prev != nil {
		motion, err = fe.Motion.Motion(prev, curr)
		if err != nil {
			return Ct.FrameMetrics{}, fmt.Errorf("motion: %w", err)
		}
		if math.IsNaN(motion) || math.IsInf(motion, 0) {
			return Ct.FrameMetrics{}, fmt.Errorf("motion: %w", ErrNonFinite)
		}
	}

	return Ct.FrameMetrics{
		Density:   clamp(density, 0, 1),
		Motion:    math.Max(motion, 0),
		Timestamp: ts,
	}, nil
}

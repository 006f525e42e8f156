package crowdsafe_test

import (
	"errors"
	"math"
	"testing"

	Cs "github.com/maroda/crowdsafe/server"
	Ct "github.com/maroda/crowdsafe/types"
	"gonum.org/v1/gonum/mat"
)

func flatFrame(seq uint64, w, h int, v uint8) *Ct.Frame {
	pix := make([]uint8, w*h)
	for i := range pix {
		pix[i] = v
	}
	return &Ct.Frame{Seq: seq, Width: w, Height: h, Pix: pix}
}

// fixedDensity reports the same density for every cell
type fixedDensity struct{ v float64 }

func (fd fixedDensity) Density(f *Ct.Frame, rows, cols int) (*mat.Dense, error) {
	dm := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			dm.Set(i, j, fd.v)
		}
	}
	return dm, nil
}
func (fd fixedDensity) Type() string { return "fixed" }

// fixedMotion reports the same motion, or an error, or panics
type fixedMotion struct {
	v     float64
	err   error
	panic bool
}

func (fm fixedMotion) Motion(prev, curr *Ct.Frame) (float64, error) {
	if fm.panic {
		panic("kernel blew up")
	}
	return fm.v, fm.err
}
func (fm fixedMotion) Type() string { return "fixed" }

func TestFeatureExtractor_Extract(t *testing.T) {
	fe, err := Cs.NewFeatureExtractor(Cs.DefaultConfig())
	assertError(t, err, nil)

	t.Run("First frame has no motion", func(t *testing.T) {
		m, err := fe.Extract(nil, flatFrame(1, 100, 100, 51), 0.5)
		assertError(t, err, nil)
		assertFloat(t, m.Density, 0.2)
		assertFloat(t, m.Motion, 0)
		assertFloat(t, m.Timestamp, 0.5)
	})

	t.Run("Identical frames have no motion", func(t *testing.T) {
		f := flatFrame(1, 64, 48, 128)
		m, err := fe.Extract(f, f, 1)
		assertError(t, err, nil)
		assertFloat(t, m.Motion, 0)
	})

	t.Run("Resolution change restarts motion", func(t *testing.T) {
		m, err := fe.Extract(flatFrame(1, 32, 32, 51), flatFrame(2, 48, 48, 51), 1)
		assertError(t, err, nil)
		assertFloat(t, m.Motion, 0)
		assertFloat(t, m.Density, 0.2)
	})

	t.Run("Tiny frame degrades the grid", func(t *testing.T) {
		m, err := fe.Extract(nil, flatFrame(1, 3, 3, 255), 0)
		assertError(t, err, nil)
		assertFloat(t, m.Density, 1)
	})

	t.Run("Kernel errors are returned", func(t *testing.T) {
		boom := errors.New("boom")
		bad := &Cs.FeatureExtractor{Density: fixedDensity{0.5}, Motion: fixedMotion{err: boom}, Rows: 2, Cols: 2}
		f := flatFrame(1, 8, 8, 0)
		_, err := bad.Extract(f, f, 0)
		assertError(t, err, boom)
	})

	t.Run("NaN is an error", func(t *testing.T) {
		bad := &Cs.FeatureExtractor{Density: fixedDensity{0.5}, Motion: fixedMotion{v: math.NaN()}, Rows: 2, Cols: 2}
		f := flatFrame(1, 8, 8, 0)
		_, err := bad.Extract(f, f, 0)
		assertError(t, err, Cs.ErrNonFinite)
	})

	t.Run("Out of range values are clamped", func(t *testing.T) {
		odd := &Cs.FeatureExtractor{Density: fixedDensity{1.7}, Motion: fixedMotion{v: -3}, Rows: 2, Cols: 2}
		f := flatFrame(1, 8, 8, 0)
		m, err := odd.Extract(f, f, 0)
		assertError(t, err, nil)
		assertFloat(t, m.Density, 1)
		assertFloat(t, m.Motion, 0)
	})
}

package plugin_test

import (
	"errors"
	"math"
	"strings"
	"testing"

	Cp "github.com/maroda/crowdsafe/plugin"
	Ct "github.com/maroda/crowdsafe/types"
)

func TestGridMeanDensity_Density(t *testing.T) {
	kernel := &Cp.GridMeanDensity{}

	t.Run("Uniform white frame is fully dense", func(t *testing.T) {
		frame := makeFlatFrame(40, 30, 255)
		dm, err := kernel.Density(frame, 10, 10)
		assertError(t, err, nil)

		r, c := dm.Dims()
		assertInt(t, r, 10)
		assertInt(t, c, 10)
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				assertFloat(t, dm.At(i, j), 1.0)
			}
		}
	})

	t.Run("Quadrants are averaged per cell", func(t *testing.T) {
		frame := makeFlatFrame(4, 4, 0)
		// top right quadrant white
		for y := 0; y < 2; y++ {
			for x := 2; x < 4; x++ {
				frame.Pix[y*4+x] = 255
			}
		}
		dm, err := kernel.Density(frame, 2, 2)
		assertError(t, err, nil)
		assertFloat(t, dm.At(0, 0), 0)
		assertFloat(t, dm.At(0, 1), 1)
		assertFloat(t, dm.At(1, 0), 0)
		assertFloat(t, dm.At(1, 1), 0)
	})

	t.Run("Remainder pixels are dropped", func(t *testing.T) {
		frame := makeFlatFrame(5, 5, 0)
		for i := 0; i < 5; i++ {
			frame.Pix[4*5+i] = 255 // last row
			frame.Pix[i*5+4] = 255 // last column
		}
		dm, err := kernel.Density(frame, 2, 2)
		assertError(t, err, nil)
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				assertFloat(t, dm.At(i, j), 0)
			}
		}
	})

	t.Run("Grid larger than frame is clamped", func(t *testing.T) {
		frame := makeFlatFrame(3, 2, 128)
		dm, err := kernel.Density(frame, 10, 10)
		assertError(t, err, nil)
		r, c := dm.Dims()
		assertInt(t, r, 2)
		assertInt(t, c, 3)
		assertFloat(t, dm.At(1, 2), 128.0/255.0)
	})

	t.Run("Nil frame is an error", func(t *testing.T) {
		_, err := kernel.Density(nil, 2, 2)
		assertError(t, err, Cp.ErrEmptyFrame)
	})

	t.Run("Short pixel buffer is an error", func(t *testing.T) {
		frame := &Ct.Frame{Width: 10, Height: 10, Pix: make([]uint8, 50)}
		_, err := kernel.Density(frame, 2, 2)
		assertGotError(t, err)
	})

	t.Run("Returns Type", func(t *testing.T) {
		assertStringContains(t, kernel.Type(), "grid_mean")
	})
}

func TestFitGrid(t *testing.T) {
	tests := []struct {
		name               string
		w, h, rows, cols   int
		wantRows, wantCols int
	}{
		{"fits", 100, 100, 10, 10, 10, 10},
		{"too many rows", 20, 4, 10, 10, 4, 10},
		{"zero grid", 20, 20, 0, -1, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, c := Cp.FitGrid(tt.w, tt.h, tt.rows, tt.cols)
			assertInt(t, r, tt.wantRows)
			assertInt(t, c, tt.wantCols)
		})
	}
}

/// Helpers

func makeFlatFrame(w, h int, v uint8) *Ct.Frame {
	pix := make([]uint8, w*h)
	for i := range pix {
		pix[i] = v
	}
	return &Ct.Frame{Width: w, Height: h, Pix: pix}
}

func assertError(t testing.TB, got, want error) {
	t.Helper()
	if !errors.Is(got, want) {
		t.Errorf("got error %q want %q", got, want)
	}
}

func assertGotError(t testing.TB, got error) {
	t.Helper()
	if got == nil {
		t.Errorf("Expected an error but got %q", got)
	}
}

func assertInt(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("did not get correct value, got %d, want %d", got, want)
	}
}

func assertFloat(t *testing.T, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Errorf("did not get correct value, got %f, want %f", got, want)
	}
}

func assertStringContains(t *testing.T, full, want string) {
	t.Helper()
	if !strings.Contains(full, want) {
		t.Errorf("Did not find %q, expected string contains %q", want, full)
	}
}

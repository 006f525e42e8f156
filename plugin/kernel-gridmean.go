package plugin

/*
	GridMean

	Density as normalized mean intensity per grid cell.

	~~~ Kernel Reference Implementation ~~~
*/

import (
	"errors"
	"fmt"

	Ct "github.com/maroda/crowdsafe/types"
	"gonum.org/v1/gonum/mat"
)

var ErrEmptyFrame = errors.New("empty frame")

type GridMeanDensity struct{}

// Density computes the grid. Cell size is the floor of width/cols and height/rows,
// so trailing pixels are never padded, they are dropped.
// A grid larger than the frame degrades to one pixel per cell.
func (g *GridMeanDensity) Density(frame *Ct.Frame, rows, cols int) (*mat.Dense, error) {
	if frame == nil || frame.Width <= 0 || frame.Height <= 0 {
		return nil, ErrEmptyFrame
	}
	if len(frame.Pix) < frame.Width*frame.Height {
		return nil, fmt.Errorf("short frame: have %d bytes, want %d", len(frame.Pix), frame.Width*frame.Height)
	}

	rows, cols = FitGrid(frame.Width, frame.Height, rows, cols)
	cellH := frame.Height / rows
	cellW := frame.Width / cols
	cellPx := float64(cellH * cellW)

	dm := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			var sum uint64
			for y := i * cellH; y < (i+1)*cellH; y++ {
				row := frame.Pix[y*frame.Width : (y+1)*frame.Width]
				for x := j * cellW; x < (j+1)*cellW; x++ {
					sum += uint64(row[x])
				}
			}
			dm.Set(i, j, float64(sum)/cellPx/255.0)
		}
	}

	return dm, nil
}

// FitGrid clamps the requested grid to the frame so a cell is at least one pixel
func FitGrid(width, height, rows, cols int) (int, int) {
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	if rows > height {
		rows = height
	}
	if cols > width {
		cols = width
	}
	return rows, cols
}

func (g *GridMeanDensity) Type() string { return "grid_mean" }

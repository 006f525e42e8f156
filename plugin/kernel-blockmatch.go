package plugin

/*
	BlockMatch

	A pure Go stand-in for dense optical flow.
	Each block of the current frame searches the previous frame
	within Radius pixels for the lowest sum of absolute differences.
	Every pixel in a block shares the block's vector, so the mean over
	blocks is the mean per-pixel magnitude over the covered area.
*/

import (
	"fmt"
	"math"

	Ct "github.com/maroda/crowdsafe/types"
	"gonum.org/v1/gonum/floats"
)

const (
	defaultBlock  = 8
	defaultRadius = 4
	defaultStep   = 2
)

type BlockMatchMotion struct {
	Block  int // block edge in pixels
	Radius int // search radius in pixels
	Step   int // pixel stride inside a block when summing differences
}

func (bm *BlockMatchMotion) params() (int, int, int) {
	block, radius, step := bm.Block, bm.Radius, bm.Step
	if block <= 0 {
		block = defaultBlock
	}
	if radius < 0 {
		radius = 0
	} else if radius == 0 {
		radius = defaultRadius
	}
	if step <= 0 {
		step = defaultStep
	}
	return block, radius, step
}

func (bm *BlockMatchMotion) Motion(prev, curr *Ct.Frame) (float64, error) {
	if prev == nil || curr == nil || len(prev.Pix) == 0 || len(curr.Pix) == 0 {
		return 0, ErrEmptyFrame
	}
	if prev.Width != curr.Width || prev.Height != curr.Height {
		return 0, fmt.Errorf("frame size changed: %dx%d -> %dx%d",
			prev.Width, prev.Height, curr.Width, curr.Height)
	}

	block, radius, step := bm.params()
	w, h := curr.Width, curr.Height

	mags := make([]float64, 0, (w/block)*(h/block))
	for by := 0; by+block <= h; by += block {
		for bx := 0; bx+block <= w; bx += block {
			best := sad(prev, curr, bx, by, 0, 0, block, step)
			bdx, bdy := 0, 0
			for dy := -radius; dy <= radius; dy++ {
				if by+dy < 0 || by+dy+block > h {
					continue
				}
				for dx := -radius; dx <= radius; dx++ {
					if bx+dx < 0 || bx+dx+block > w || (dx == 0 && dy == 0) {
						continue
					}
					s := sad(prev, curr, bx, by, dx, dy, block, step)
					// ties go to the shorter vector so flat regions read as still
					if s < best || (s == best && dx*dx+dy*dy < bdx*bdx+bdy*bdy) {
						best, bdx, bdy = s, dx, dy
					}
				}
			}
			mags = append(mags, math.Hypot(float64(bdx), float64(bdy)))
		}
	}

	if len(mags) == 0 {
		return 0, nil
	}
	return floats.Sum(mags) / float64(len(mags)), nil
}

// sad compares the block at (bx, by) in curr against (bx+dx, by+dy) in prev
func sad(prev, curr *Ct.Frame, bx, by, dx, dy, block, step int) int {
	total := 0
	for y := by; y < by+block; y += step {
		for x := bx; x < bx+block; x += step {
			d := int(curr.Pix[y*curr.Width+x]) - int(prev.Pix[(y+dy)*prev.Width+x+dx])
			if d < 0 {
				d = -d
			}
			total += d
		}
	}
	return total
}

func (bm *BlockMatchMotion) Type() string { return "block_match" }

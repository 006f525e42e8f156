//go:build gocv

package plugin

/*
	Farneback

	Dense optical flow through OpenCV.
	Only built with -tags gocv, it needs the OpenCV shared libraries.
*/

import (
	"fmt"

	Ct "github.com/maroda/crowdsafe/types"
	"gocv.io/x/gocv"
)

func init() {
	MotionKernels["farneback"] = func() MotionKernel {
		return &FarnebackMotion{}
	}
}

type FarnebackMotion struct{}

func (fm *FarnebackMotion) Motion(prev, curr *Ct.Frame) (float64, error) {
	if prev == nil || curr == nil {
		return 0, ErrEmptyFrame
	}
	if prev.Width != curr.Width || prev.Height != curr.Height {
		return 0, fmt.Errorf("frame size changed: %dx%d -> %dx%d",
			prev.Width, prev.Height, curr.Width, curr.Height)
	}

	prevMat, err := gocv.NewMatFromBytes(prev.Height, prev.Width, gocv.MatTypeCV8U, prev.Pix)
	if err != nil {
		return 0, fmt.Errorf("prev frame to mat: %w", err)
	}
	defer prevMat.Close()

	currMat, err := gocv.NewMatFromBytes(curr.Height, curr.Width, gocv.MatTypeCV8U, curr.Pix)
	if err != nil {
		return 0, fmt.Errorf("curr frame to mat: %w", err)
	}
	defer currMat.Close()

	flow := gocv.NewMat()
	defer flow.Close()
	gocv.CalcOpticalFlowFarneback(prevMat, currMat, &flow, 0.5, 3, 15, 3, 5, 1.2, 0)

	channels := gocv.Split(flow)
	defer func() {
		for _, c := range channels {
			c.Close()
		}
	}()
	if len(channels) != 2 {
		return 0, fmt.Errorf("flow has %d channels, want 2", len(channels))
	}

	magnitude := gocv.NewMat()
	defer magnitude.Close()
	angle := gocv.NewMat()
	defer angle.Close()
	gocv.CartToPolar(channels[0], channels[1], &magnitude, &angle, false)

	return magnitude.Mean().Val1, nil
}

func (fm *FarnebackMotion) Type() string { return "farneback" }

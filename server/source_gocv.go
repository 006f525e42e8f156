//go:build gocv

package crowdsafe

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"time"

	Ct "github.com/maroda/crowdsafe/types"
	"gocv.io/x/gocv"
)

func init() {
	openVideo = func(path string, c *Config) (FrameSource, error) {
		return NewVideoSource(path, c)
	}
}

// VideoSource decodes a file or device with OpenCV
type VideoSource struct {
	Cap    *gocv.VideoCapture
	Skip   int
	Width  int
	Height int
	Rate   float64
	Prep   PreprocessConfig
	img    gocv.Mat
	gray   gocv.Mat
	sized  gocv.Mat
	smooth gocv.Mat
	normed gocv.Mat
	seq    uint64
}

func NewVideoSource(path string, c *Config) (*VideoSource, error) {
	vc, err := gocv.OpenVideoCapture(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSourceOpen, path, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: %s", ErrSourceOpen, path)
	}
	vc.Set(gocv.VideoCaptureBufferSize, 1)

	rate := vc.Get(gocv.VideoCaptureFPS)
	if rate <= 0 {
		rate = c.SourceFPS
	}
	skip := c.FrameSkip
	if skip < 1 {
		skip = 1
	}

	slog.Info("Opened video",
		slog.String("path", path),
		slog.Float64("fps", rate),
		slog.Float64("frames", vc.Get(gocv.VideoCaptureFrameCount)))

	return &VideoSource{
		Cap:    vc,
		Skip:   skip,
		Width:  c.FrameWidth,
		Height: c.FrameHeight,
		Rate:   rate,
		Prep:   c.Preprocess,
		img:    gocv.NewMat(),
		gray:   gocv.NewMat(),
		sized:  gocv.NewMat(),
		smooth: gocv.NewMat(),
		normed: gocv.NewMat(),
	}, nil
}

// Read grabs Skip frames and keeps the last, converted to grayscale,
// blurred and stretched to the full intensity range
func (vs *VideoSource) Read(ctx context.Context) (*Ct.Frame, error) {
	for i := 0; i < vs.Skip; i++ {
		if ok := vs.Cap.Read(&vs.img); !ok {
			return nil, io.EOF
		}
	}
	if vs.img.Empty() {
		return nil, fmt.Errorf("%w: empty frame", ErrBadFrame)
	}
	vs.seq++

	gocv.CvtColor(vs.img, &vs.gray, gocv.ColorBGRToGray)
	out := vs.gray
	if vs.Width > 0 && vs.Height > 0 {
		gocv.Resize(vs.gray, &vs.sized, image.Pt(vs.Width, vs.Height), 0, 0, gocv.InterpolationLinear)
		out = vs.sized
	}

	if k := vs.Prep.BlurKernel; k > 1 {
		if err := gocv.GaussianBlur(out, &vs.smooth, image.Pt(k, k), vs.Prep.BlurSigma, vs.Prep.BlurSigma, gocv.BorderDefault); err != nil {
			return nil, fmt.Errorf("%w: blur: %w", ErrBadFrame, err)
		}
		out = vs.smooth
	}
	if vs.Prep.Normalize {
		// a uniform frame is kept as is, matching the pure Go stretch
		if lo, hi, _, _ := gocv.MinMaxLoc(out); hi > lo {
			if err := gocv.Normalize(out, &vs.normed, 0, 255, gocv.NormMinMax); err != nil {
				return nil, fmt.Errorf("%w: normalize: %w", ErrBadFrame, err)
			}
			out = vs.normed
		}
	}

	pix, err := out.DataPtrUint8()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadFrame, err)
	}
	buf := make([]uint8, len(pix))
	copy(buf, pix)

	return &Ct.Frame{
		Seq:       vs.seq,
		Timestamp: time.Now(),
		Width:     out.Cols(),
		Height:    out.Rows(),
		Pix:       buf,

		Preprocessed: true,
	}, nil
}

func (vs *VideoSource) FPS() float64 { return vs.Rate }

func (vs *VideoSource) Close() error {
	vs.img.Close()
	vs.gray.Close()
	vs.sized.Close()
	vs.smooth.Close()
	vs.normed.Close()
	return vs.Cap.Close()
}

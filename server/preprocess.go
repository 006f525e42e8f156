package crowdsafe

import (
	"math"

	Ct "github.com/maroda/crowdsafe/types"
	"gonum.org/v1/gonum/floats"
)

// Preprocessor smooths a grayscale frame and stretches its contrast
// to the full 0..255 range before any kernel sees it.
type Preprocessor struct {
	Kernel    []float64 // separable gaussian weights, nil when blur is off
	Normalize bool
}

func NewPreprocessor(c PreprocessConfig) *Preprocessor {
	p := &Preprocessor{Normalize: c.Normalize}
	if c.BlurKernel > 1 && c.BlurSigma > 0 {
		p.Kernel = GaussianKernel(c.BlurKernel, c.BlurSigma)
	}
	return p
}

// GaussianKernel returns size weights centred on size/2 that sum to 1
func GaussianKernel(size int, sigma float64) []float64 {
	k := make([]float64, size)
	r := size / 2
	for i := range k {
		x := float64(i - r)
		k[i] = math.Exp(-x * x / (2 * sigma * sigma))
	}
	floats.Scale(1/floats.Sum(k), k)
	return k
}

// Process returns a new frame, the input is left untouched.
// Frames already marked Preprocessed, and frames too malformed
// for the kernels to accept, pass through as they are.
func (p *Preprocessor) Process(f *Ct.Frame) *Ct.Frame {
	if p == nil || f == nil || f.Preprocessed || (p.Kernel == nil && !p.Normalize) {
		return f
	}
	n := f.Width * f.Height
	if f.Width <= 0 || f.Height <= 0 || len(f.Pix) < n {
		return f
	}

	out := *f
	out.Pix = make([]uint8, n)
	copy(out.Pix, f.Pix[:n])

	if p.Kernel != nil {
		blur(out.Pix, f.Width, f.Height, p.Kernel)
	}
	if p.Normalize {
		stretch(out.Pix)
	}
	out.Preprocessed = true
	return &out
}

// blur convolves rows then columns, mirroring at the edges without repeating the border pixel
func blur(pix []uint8, w, h int, k []float64) {
	r := len(k) / 2
	tmp := make([]float64, len(pix))

	for y := 0; y < h; y++ {
		row := pix[y*w : (y+1)*w]
		for x := 0; x < w; x++ {
			var sum float64
			for i, wt := range k {
				sum += wt * float64(row[reflect101(x+i-r, w)])
			}
			tmp[y*w+x] = sum
		}
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum float64
			for i, wt := range k {
				sum += wt * tmp[reflect101(y+i-r, h)*w+x]
			}
			pix[y*w+x] = uint8(math.Round(clamp(sum, 0, 255)))
		}
	}
}

func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return i
}

// stretch maps the darkest pixel to 0 and the brightest to 255.
// A uniform frame has no contrast to stretch and is kept as is.
func stretch(pix []uint8) {
	lo, hi := pix[0], pix[0]
	for _, v := range pix {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if lo == hi {
		return
	}
	scale := 255.0 / float64(hi-lo)
	for i, v := range pix {
		pix[i] = uint8(math.Round(float64(v-lo) * scale))
	}
}

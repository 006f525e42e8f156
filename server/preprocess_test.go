package crowdsafe_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	Cs "github.com/maroda/crowdsafe/server"
	Ct "github.com/maroda/crowdsafe/types"
)

func TestGaussianKernel(t *testing.T) {
	k := Cs.GaussianKernel(15, 1.0)
	assertInt(t, len(k), 15)

	var sum float64
	for _, w := range k {
		sum += w
	}
	assertFloat(t, sum, 1)

	for i := 0; i < 7; i++ {
		assertFloat(t, k[i], k[14-i])
		if k[i] >= k[i+1] {
			t.Errorf("weights should rise toward the centre, k[%d]=%f k[%d]=%f", i, k[i], i+1, k[i+1])
		}
	}
}

func TestPreprocessor_Process(t *testing.T) {
	defaults := Cs.NewPreprocessor(Cs.DefaultConfig().Preprocess)

	t.Run("Input frame is not modified", func(t *testing.T) {
		in := halfFrame(1, 30, 30, 50, 100)
		before := append([]uint8(nil), in.Pix...)

		out := defaults.Process(in)
		if out == in {
			t.Fatal("expected a new frame")
		}
		if diff := cmp.Diff(before, in.Pix); diff != "" {
			t.Errorf("input changed (-want +got):\n%s", diff)
		}
		if !out.Preprocessed {
			t.Error("output should be marked preprocessed")
		}
		assertInt(t, out.Width, 30)
		assertInt(t, len(out.Pix), 900)
	})

	t.Run("Uniform frame is unchanged", func(t *testing.T) {
		out := defaults.Process(flatFrame(1, 20, 20, 51))
		for i, v := range out.Pix {
			if v != 51 {
				t.Fatalf("pixel %d = %d, want 51", i, v)
			}
		}
	})

	t.Run("Stretch spans the full range", func(t *testing.T) {
		p := Cs.NewPreprocessor(Cs.PreprocessConfig{Normalize: true})
		out := p.Process(halfFrame(1, 4, 2, 50, 100))
		want := []uint8{0, 0, 255, 255, 0, 0, 255, 255}
		if diff := cmp.Diff(want, out.Pix); diff != "" {
			t.Errorf("stretch mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Blur spreads an edge", func(t *testing.T) {
		p := Cs.NewPreprocessor(Cs.PreprocessConfig{BlurKernel: 5, BlurSigma: 1})
		out := p.Process(halfFrame(1, 10, 3, 0, 200))

		row := out.Pix[10:20]
		if row[4] == 0 || row[5] == 200 {
			t.Errorf("edge was not softened: %v", row)
		}
		if row[0] != 0 || row[9] != 200 {
			t.Errorf("far pixels should keep their value: %v", row)
		}
		for x := 1; x < 10; x++ {
			if row[x] < row[x-1] {
				t.Errorf("blurred edge should stay monotone: %v", row)
			}
		}
	})

	t.Run("Disabled config passes frames through", func(t *testing.T) {
		p := Cs.NewPreprocessor(Cs.PreprocessConfig{})
		in := halfFrame(1, 4, 4, 10, 20)
		if p.Process(in) != in {
			t.Error("expected the same frame back")
		}
	})

	t.Run("Preprocessed frames are left alone", func(t *testing.T) {
		in := halfFrame(1, 4, 4, 10, 20)
		in.Preprocessed = true
		if defaults.Process(in) != in {
			t.Error("expected the same frame back")
		}
	})

	t.Run("Malformed frames are left for the kernels", func(t *testing.T) {
		short := &Ct.Frame{Seq: 1, Width: 10, Height: 10, Pix: make([]uint8, 20)}
		if defaults.Process(short) != short {
			t.Error("expected the same frame back")
		}
		if defaults.Process(nil) != nil {
			t.Error("nil should stay nil")
		}
	})
}

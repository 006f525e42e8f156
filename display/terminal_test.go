package crowdsafe_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	Cd "github.com/maroda/crowdsafe/display"
	Co "github.com/maroda/crowdsafe/obvy"
	Cs "github.com/maroda/crowdsafe/server"
	Ct "github.com/maroda/crowdsafe/types"
	"gonum.org/v1/gonum/mat"
)

func TestScreen(t *testing.T) {
	s := mkTestScreen(t, "")
	defer s.Fini()
	s.Clear()

	t.Run("Check test screen", func(t *testing.T) {
		b, x, y := s.GetContents()
		if len(b) != x*y || x != 80 || y != 25 {
			t.Fatalf("Contents (%v, %v, %v) wrong", len(b), x, y)
		}
	})
}

func TestNewView(t *testing.T) {
	t.Run("Needs a pipeline", func(t *testing.T) {
		_, err := Cd.NewView(nil, nil)
		assertGotError(t, err)
	})

	t.Run("Headless view has no screen", func(t *testing.T) {
		o := makeTestPipeline(t, 1, 0.2)
		view, err := Cd.NewView(o, nil)
		assertError(t, err, nil)

		// nothing to draw on, but the snapshot is kept
		err = view.Render(Cs.Snapshot{FrameCount: 7})
		assertError(t, err, nil)
		assertInt(t, view.Last().FrameCount, 7)
	})
}

func TestView_Render(t *testing.T) {
	t.Run("Quiet scene shows SAFE and no alerts", func(t *testing.T) {
		o := makeTestPipeline(t, 5, 0.2)
		s := mkTestScreen(t, "")
		defer s.Fini()
		s.SetSize(100, 30)

		view, err := Cd.NewView(o, s)
		assertError(t, err, nil)
		o.AddRenderer(view)
		assertError(t, o.Run(context.Background()), nil)

		text := screenText(s)
		assertStringContains(t, text, "CROWD SAFETY MONITORING")
		assertStringContains(t, text, "STATUS: SAFE")
		assertStringContains(t, text, "All systems normal - No alerts")
		assertStringContains(t, text, "SYSTEM STATISTICS")
		// stats panel is built on the first frame and held by the cache
		assertStringContains(t, text, "Frames:    1")
		assertStringContains(t, text, "DENSITY SCALE")
		assertStringContains(t, text, "motion 0.0px (0.00)")
		assertInt(t, view.Last().FrameCount, 5)
	})

	t.Run("Crowded scene shows DANGER and alerts", func(t *testing.T) {
		o := makeTestPipeline(t, 3, 0.95)
		s := mkTestScreen(t, "")
		defer s.Fini()
		s.SetSize(100, 30)

		view, err := Cd.NewView(o, s)
		assertError(t, err, nil)
		o.AddRenderer(view)
		assertError(t, o.Run(context.Background()), nil)

		// panels refresh on the first frame, the screen shows frame 3
		text := screenText(s)
		assertStringContains(t, text, "STATUS: DANGER")
		assertStringContains(t, text, "ACTIVE ALERTS")
		if strings.Contains(text, "All systems normal") {
			t.Errorf("alert panel should not be empty")
		}
	})
}

func TestView_HandleKey(t *testing.T) {
	o := makeTestPipeline(t, 1, 0.2)
	s := mkTestScreen(t, "")
	defer s.Fini()

	view, err := Cd.NewView(o, s)
	assertError(t, err, nil)

	t.Run("p toggles pause", func(t *testing.T) {
		stop := view.HandleKey(tcell.NewEventKey(tcell.KeyRune, 'p', tcell.ModNone))
		if stop {
			t.Errorf("pause should not stop the view")
		}
		if !o.Paused() {
			t.Errorf("pipeline should be paused")
		}
		assertStringContains(t, screenText(s), "PAUSED")

		view.HandleKey(tcell.NewEventKey(tcell.KeyRune, 'p', tcell.ModNone))
		if o.Paused() {
			t.Errorf("pipeline should be running again")
		}
	})

	t.Run("q and ESC stop the view", func(t *testing.T) {
		if !view.HandleKey(tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone)) {
			t.Errorf("q should stop the view")
		}
		if !view.HandleKey(tcell.NewEventKey(tcell.KeyEscape, 0, tcell.ModNone)) {
			t.Errorf("ESC should stop the view")
		}
	})

	t.Run("Other keys are ignored", func(t *testing.T) {
		if view.HandleKey(tcell.NewEventKey(tcell.KeyRune, 'x', tcell.ModNone)) {
			t.Errorf("x should do nothing")
		}
	})
}

func TestStatusColor(t *testing.T) {
	tests := []struct {
		level float64
		want  tcell.Color
	}{
		{0.1, tcell.ColorMediumSeaGreen},
		{0.5, tcell.ColorOrange},
		{0.69, tcell.ColorOrange},
		{0.7, tcell.ColorRed},
	}
	for _, tt := range tests {
		if got := Cd.StatusColor(tt.level); got != tt.want {
			t.Errorf("StatusColor(%v) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

// Helpers //

func mkTestScreen(t *testing.T, charset string) tcell.SimulationScreen {
	s := tcell.NewSimulationScreen(charset)
	if s == nil {
		t.Fatalf("Failed to get SimulationScreen")
	}
	if err := s.Init(); err != nil {
		t.Fatalf("Failed to init screen: %v", err)
	}
	return s
}

// screenText joins the visible runes row by row
func screenText(s tcell.SimulationScreen) string {
	cells, w, h := s.GetContents()
	var b strings.Builder
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := cells[y*w+x]
			if len(c.Runes) > 0 {
				b.WriteRune(c.Runes[0])
			} else {
				b.WriteRune(' ')
			}
		}
		b.WriteRune('\n')
	}
	return b.String()
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

func flatFrame(seq uint64, w, h int, v uint8) *Ct.Frame {
	pix := make([]uint8, w*h)
	for i := range pix {
		pix[i] = v
	}
	return &Ct.Frame{Seq: seq, Timestamp: time.Unix(1700000000, int64(seq)*int64(40*time.Millisecond)), Width: w, Height: h, Pix: pix}
}

// makeTestPipeline builds an orchestrator over n identical frames
// with a fixed density, motion is zero since frames do not change
func makeTestPipeline(t *testing.T, n int, density float64) *Cs.Orchestrator {
	t.Helper()
	frames := make([]*Ct.Frame, n)
	for i := range frames {
		frames[i] = flatFrame(uint64(i+1), 32, 32, 51)
	}
	o, err := Cs.NewOrchestrator(Cs.DefaultConfig(), Cs.NewSliceSource(frames, 25), Co.NewStatsInternal(), nil)
	assertError(t, err, nil)
	o.Extractor.Density = fixedDensity{density}
	return o
}

// blockingSource never yields a frame until ctx ends
type blockingSource struct{}

func (blockingSource) Read(ctx context.Context) (*Ct.Frame, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
func (blockingSource) FPS() float64 { return 25 }
func (blockingSource) Close() error { return nil }

func assertError(t testing.TB, got, want error) {
	t.Helper()
	if !errors.Is(got, want) {
		t.Errorf("got error %q, want %q", got, want)
	}
}

func assertGotError(t testing.TB, got error) {
	t.Helper()
	if got == nil {
		t.Errorf("Expected an error but got %q", got)
	}
}

func assertStatus(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("did not get correct status, got %d, want %d", got, want)
	}
}

func assertInt(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("got %d, want %d", got, want)
	}
}

func assertFloat(t *testing.T, got, want float64) {
	t.Helper()
	if d := got - want; d > 1e-9 || d < -1e-9 {
		t.Errorf("got %v, want %v", got, want)
	}
}

func assertString(t *testing.T, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func assertStringContains(t *testing.T, full, want string) {
	t.Helper()
	if !strings.Contains(full, want) {
		t.Errorf("Did not find %q, expected string contains %q", want, full)
	}
}

package crowdsafe

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"

	Cs "github.com/maroda/crowdsafe/server"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var ErrEmptyHistory = errors.New("no history to report")

type reportSeries struct {
	name  string
	ys    []float64
	color color.Color
}

// HistoryPlot draws density, risk and motion against pipeline time
func HistoryPlot(snap Cs.Snapshot, title string) (*plot.Plot, error) {
	if len(snap.Timestamp) == 0 {
		return nil, ErrEmptyHistory
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Seconds"
	p.Y.Label.Text = "Level"
	p.Y.Min = 0
	p.Y.Max = 1

	series := []reportSeries{
		{"density", snap.Density, color.RGBA{R: 0, G: 200, B: 220, A: 255}},
		{"risk", snap.Risk, color.RGBA{R: 230, G: 60, B: 60, A: 255}},
		{"motion", snap.Motion, color.RGBA{R: 60, G: 200, B: 60, A: 255}},
	}

	for _, s := range series {
		n := min(len(s.ys), len(snap.Timestamp))
		pts := make(plotter.XYs, 0, n)
		for i := 0; i < n; i++ {
			pts = append(pts, plotter.XY{X: snap.Timestamp[i], Y: s.ys[i]})
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("%s line: %w", s.name, err)
		}
		line.Color = s.color
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(s.name, line)
	}

	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	return p, nil
}

// WriteReport saves the history plot and the summary into dir,
// returning the paths written
func WriteReport(dir string, sum Cs.Summary, snap Cs.Snapshot) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("report dir: %w", err)
	}

	base := filepath.Join(dir, "crowdsafe-"+sum.RunID)
	var written []string

	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("summary encode: %w", err)
	}
	if err := os.WriteFile(base+".json", data, 0o644); err != nil {
		return nil, fmt.Errorf("summary write: %w", err)
	}
	written = append(written, base+".json")

	p, err := HistoryPlot(snap, fmt.Sprintf("Crowd safety run %s", sum.RunID))
	if err != nil {
		return written, err
	}
	if err := p.Save(14*vg.Inch, 6*vg.Inch, base+".png"); err != nil {
		slog.Error("Could not save history plot", slog.Any("Error", err))
		return written, fmt.Errorf("plot save: %w", err)
	}
	written = append(written, base+".png")

	slog.Info("Report written", slog.Any("files", written))
	return written, nil
}

package crowdsafe_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	Cd "github.com/maroda/crowdsafe/display"
	Cs "github.com/maroda/crowdsafe/server"
)

func TestHistoryPlot(t *testing.T) {
	t.Run("Empty history is refused", func(t *testing.T) {
		_, err := Cd.HistoryPlot(Cs.Snapshot{}, "empty")
		assertError(t, err, Cd.ErrEmptyHistory)
	})

	t.Run("Plot carries a legend entry per series", func(t *testing.T) {
		snap := Cs.Snapshot{
			Timestamp: []float64{0.04, 0.08, 0.12},
			Density:   []float64{0.2, 0.3, 0.4},
			Risk:      []float64{0.3, 0.35, 0.5},
			Motion:    []float64{0, 0.1, 0.2},
		}
		p, err := Cd.HistoryPlot(snap, "run")
		assertError(t, err, nil)
		assertString(t, p.Title.Text, "run")
		assertFloat(t, p.Y.Max, 1)
	})
}

func TestWriteReport(t *testing.T) {
	t.Run("Writes summary and plot", func(t *testing.T) {
		view := makeTestView(t, 12, 0.5)
		dir := filepath.Join(t.TempDir(), "reports")

		sum := view.Orch.Summary()
		files, err := Cd.WriteReport(dir, sum, view.Orch.Dashboard.Snapshot())
		assertError(t, err, nil)
		assertInt(t, len(files), 2)

		for _, f := range files {
			info, err := os.Stat(f)
			assertError(t, err, nil)
			if info.Size() == 0 {
				t.Errorf("%s is empty", f)
			}
		}

		data, err := os.ReadFile(files[0])
		assertError(t, err, nil)
		var got Cs.Summary
		assertError(t, json.Unmarshal(data, &got), nil)
		if diff := cmp.Diff(sum, got); diff != "" {
			t.Errorf("summary mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Summary is still written without history", func(t *testing.T) {
		dir := t.TempDir()
		files, err := Cd.WriteReport(dir, Cs.Summary{RunID: "empty"}, Cs.Snapshot{})
		assertError(t, err, Cd.ErrEmptyHistory)
		assertInt(t, len(files), 1)
		assertString(t, filepath.Base(files[0]), "crowdsafe-empty.json")
	})
}

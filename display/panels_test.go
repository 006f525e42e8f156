package crowdsafe_test

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	Cd "github.com/maroda/crowdsafe/display"
	Cs "github.com/maroda/crowdsafe/server"
	Ct "github.com/maroda/crowdsafe/types"
)

func TestValToRune(t *testing.T) {
	tests := []struct {
		name string
		v    float64
		want rune
	}{
		{"Zero", 0, '▁'},
		{"Negative clamps low", -3, '▁'},
		{"Half", 0.5, '▅'},
		{"One", 1, '█'},
		{"Above one clamps high", 7, '█'},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Cd.ValToRune(tt.v); got != tt.want {
				t.Errorf("ValToRune(%v) = %q, want %q", tt.v, got, tt.want)
			}
		})
	}
}

func TestSparkline(t *testing.T) {
	t.Run("Keeps only the newest values", func(t *testing.T) {
		got := Cd.Sparkline([]float64{1, 1, 1, 0, 0}, 2)
		assertString(t, got, "▁▁")
	})

	t.Run("Short series is not padded", func(t *testing.T) {
		got := Cd.Sparkline([]float64{0, 1}, 10)
		assertInt(t, utf8.RuneCountInString(got), 2)
	})

	t.Run("No width draws nothing", func(t *testing.T) {
		assertString(t, Cd.Sparkline([]float64{1}, 0), "")
	})
}

func TestGaugeBar(t *testing.T) {
	assertString(t, Cd.GaugeBar(0.5, 4), "██░░")
	assertString(t, Cd.GaugeBar(2, 3), "███")
	assertString(t, Cd.GaugeBar(-1, 3), "░░░")
}

func TestAlertsPanel(t *testing.T) {
	t.Run("Empty shows the all clear", func(t *testing.T) {
		p := Cd.AlertsPanel(Cs.Snapshot{}, 1)
		assertInt(t, len(p.Lines), 1)
		assertString(t, p.Lines[0], "All systems normal - No alerts")
	})

	t.Run("Only the newest three are shown", func(t *testing.T) {
		var active []Ct.AlertRecord
		for i := 0; i < 5; i++ {
			active = append(active, Ct.AlertRecord{
				Kind:     Cs.KindModerate,
				Severity: Ct.SeverityMedium,
				Message:  fmt.Sprintf("alert %d", i),
			})
		}
		p := Cd.AlertsPanel(Cs.Snapshot{Active: active}, 1)
		assertInt(t, len(p.Lines), 3)
		assertStringContains(t, p.Lines[0], "alert 2")
		assertStringContains(t, p.Lines[2], "alert 4")
	})

	t.Run("Messages are truncated", func(t *testing.T) {
		long := strings.Repeat("ü", 80)
		p := Cd.AlertsPanel(Cs.Snapshot{Active: []Ct.AlertRecord{{Severity: Ct.SeverityHigh, Message: long}}}, 1)
		// mark and a space precede the message
		assertInt(t, utf8.RuneCountInString(p.Lines[0]), 55+2)
		assertFloat(t, p.Level, 1)
	})
}

func TestStatsPanel(t *testing.T) {
	p := Cd.StatsPanel(Cs.Snapshot{Elapsed: 125.4, FrameCount: 42, AvgFPS: 24.96, HighRiskPct: 12.5, AnomalyCount: 3}, 42)
	want := []string{
		"Uptime:    2m 5s",
		"Frames:    42",
		"Avg FPS:   25.0",
		"Risk:      12.5%",
		"Anomalies: 3",
	}
	for i, w := range want {
		assertString(t, p.Lines[i], w)
	}
	if p.BuiltAt != 42 {
		t.Errorf("BuiltAt = %d, want 42", p.BuiltAt)
	}
}

func TestLegendPanel(t *testing.T) {
	p := Cd.LegendPanel(24, 1)
	assertInt(t, utf8.RuneCountInString(p.Lines[0]), 24)
	assertStringContains(t, p.Lines[1], "Low")
	assertStringContains(t, p.Lines[1], "Medium")
	assertStringContains(t, p.Lines[1], "High")
}

func TestBuildPanels(t *testing.T) {
	c := Cs.DefaultConfig()
	ds := Cs.NewDashboardState(c, func() float64 { return 1 })

	update := func(n int) {
		for i := 0; i < n; i++ {
			ds.Update(Cs.Sample{Density: 0.3, Risk: 0.3})
		}
	}

	update(1)
	ps, err := Cd.BuildPanels(ds.Cache, ds.Snapshot(), 40)
	assertError(t, err, nil)
	assertInt(t, ps.Rebuilt, 8)
	assertString(t, ps.RiskChart.Title, "Risk Level Trend")

	// nothing is due before the chart period passes
	update(99)
	ps, err = Cd.BuildPanels(ds.Cache, ds.Snapshot(), 40)
	assertError(t, err, nil)
	assertInt(t, ps.Rebuilt, 0)
	if ps.DensityChart.BuiltAt != 1 {
		t.Errorf("density chart built at %d, want 1", ps.DensityChart.BuiltAt)
	}

	// charts and gauges refresh, panels wait for their own period
	update(1)
	ps, err = Cd.BuildPanels(ds.Cache, ds.Snapshot(), 40)
	assertError(t, err, nil)
	assertInt(t, ps.Rebuilt, 5)
	if ps.Stats.BuiltAt != 1 {
		t.Errorf("stats built at %d, want 1", ps.Stats.BuiltAt)
	}
}

package crowdsafe

import (
	"errors"
	"fmt"
	"math"
	"strings"

	Cs "github.com/maroda/crowdsafe/server"
	Ct "github.com/maroda/crowdsafe/types"
)

const (
	alertPanelRows = 3
	alertMsgRunes  = 55
	noAlerts       = "All systems normal - No alerts"
)

// glyphs used for sparklines, lowest to highest
var sparkRunes = []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

// ValToRune maps a value in [0,1] onto a bar glyph,
// anything outside is clamped
func ValToRune(v float64) rune {
	switch {
	case math.IsNaN(v) || v <= 0:
		return sparkRunes[0]
	case v >= 1:
		return sparkRunes[len(sparkRunes)-1]
	}
	return sparkRunes[int(v*float64(len(sparkRunes)-1)+0.5)]
}

// Sparkline renders the newest width values of series
func Sparkline(series []float64, width int) string {
	if width <= 0 {
		return ""
	}
	if len(series) > width {
		series = series[len(series)-width:]
	}
	var b strings.Builder
	for _, v := range series {
		b.WriteRune(ValToRune(v))
	}
	return b.String()
}

// GaugeBar is a horizontal meter with filled and empty cells
func GaugeBar(v float64, width int) string {
	if width <= 0 {
		return ""
	}
	if math.IsNaN(v) || v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	filled := int(v*float64(width) + 0.5)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// truncRunes cuts s to at most n runes
func truncRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func ChartPanel(name, title string, series []float64, width int, frame uint64) Ct.Panel {
	latest := 0.0
	if len(series) > 0 {
		latest = series[len(series)-1]
	}
	return Ct.Panel{
		Name:    name,
		Title:   title,
		Lines:   []string{Sparkline(series, width)},
		Level:   latest,
		BuiltAt: frame,
	}
}

func GaugePanel(name, title string, value float64, width int, frame uint64) Ct.Panel {
	return Ct.Panel{
		Name:    name,
		Title:   title,
		Lines:   []string{fmt.Sprintf("%s %5.1f%%", GaugeBar(value, width), value*100)},
		Level:   value,
		BuiltAt: frame,
	}
}

// StatsPanel shows uptime, frames, average fps and the share of high risk frames
func StatsPanel(snap Cs.Snapshot, frame uint64) Ct.Panel {
	up := int(snap.Elapsed)
	return Ct.Panel{
		Name:  Cs.ArtifactStats,
		Title: "SYSTEM STATISTICS",
		Lines: []string{
			fmt.Sprintf("Uptime:    %dm %ds", up/60, up%60),
			fmt.Sprintf("Frames:    %d", snap.FrameCount),
			fmt.Sprintf("Avg FPS:   %.1f", snap.AvgFPS),
			fmt.Sprintf("Risk:      %.1f%%", snap.HighRiskPct),
			fmt.Sprintf("Anomalies: %d", snap.AnomalyCount),
		},
		Level:   snap.HighRiskPct / 100,
		BuiltAt: frame,
	}
}

// AlertsPanel lists the newest active alerts
func AlertsPanel(snap Cs.Snapshot, frame uint64) Ct.Panel {
	p := Ct.Panel{
		Name:    Cs.ArtifactAlerts,
		Title:   "ACTIVE ALERTS",
		BuiltAt: frame,
	}
	if len(snap.Active) == 0 {
		p.Lines = []string{noAlerts}
		return p
	}

	active := snap.Active
	if len(active) > alertPanelRows {
		active = active[len(active)-alertPanelRows:]
	}
	for _, a := range active {
		p.Lines = append(p.Lines, fmt.Sprintf("%s %s", severityMark(a.Severity), truncRunes(a.Message, alertMsgRunes)))
		if lv := severityLevel(a.Severity); lv > p.Level {
			p.Level = lv
		}
	}
	return p
}

func LegendPanel(width int, frame uint64) Ct.Panel {
	var b strings.Builder
	for i := 0; i < width; i++ {
		b.WriteRune(ValToRune(float64(i) / float64(max(width-1, 1))))
	}
	pad := max(width-len("Low")-len("Medium")-len("High"), 2)
	left := pad / 2
	return Ct.Panel{
		Name:  Cs.ArtifactLegend,
		Title: "DENSITY SCALE",
		Lines: []string{
			b.String(),
			"Low" + strings.Repeat(" ", left) + "Medium" + strings.Repeat(" ", pad-left) + "High",
		},
		BuiltAt: frame,
	}
}

func severityMark(s Ct.Severity) string {
	switch s {
	case Ct.SeverityHigh:
		return "●"
	case Ct.SeverityMedium:
		return "◐"
	default:
		return "○"
	}
}

func severityLevel(s Ct.Severity) float64 {
	switch s {
	case Ct.SeverityHigh:
		return 1
	case Ct.SeverityMedium:
		return 0.6
	default:
		return 0.3
	}
}

// PanelSet is one of every dashboard artifact, as of the current frame
type PanelSet struct {
	DensityChart Ct.Panel
	RiskChart    Ct.Panel
	MotionChart  Ct.Panel
	RiskGauge    Ct.Panel
	DensityGauge Ct.Panel
	Stats        Ct.Panel
	Alerts       Ct.Panel
	Legend       Ct.Panel
	Rebuilt      int
}

// BuildPanels fetches every artifact from the cache, rebuilding those that are due.
// A failed build keeps the previous artifact and the error is returned joined.
func BuildPanels(cache *Cs.RenderCache[Ct.Panel], snap Cs.Snapshot, width int) (PanelSet, error) {
	frame := uint64(snap.FrameCount)
	var ps PanelSet
	var errs []error

	get := func(name string, dst *Ct.Panel, build func() (Ct.Panel, error)) {
		p, rebuilt, err := cache.Get(name, frame, build)
		if err != nil {
			errs = append(errs, err)
		}
		if rebuilt {
			ps.Rebuilt++
		}
		*dst = p
	}

	get(Cs.ArtifactDensityChart, &ps.DensityChart, func() (Ct.Panel, error) {
		return ChartPanel(Cs.ArtifactDensityChart, "Crowd Density Trend", snap.Density, width, frame), nil
	})
	get(Cs.ArtifactRiskChart, &ps.RiskChart, func() (Ct.Panel, error) {
		return ChartPanel(Cs.ArtifactRiskChart, "Risk Level Trend", snap.Risk, width, frame), nil
	})
	get(Cs.ArtifactMotionChart, &ps.MotionChart, func() (Ct.Panel, error) {
		return ChartPanel(Cs.ArtifactMotionChart, "Motion Activity", snap.Motion, width, frame), nil
	})
	get(Cs.ArtifactRiskGauge, &ps.RiskGauge, func() (Ct.Panel, error) {
		return GaugePanel(Cs.ArtifactRiskGauge, "RISK LEVEL", snap.CurrentRisk, gaugeWidth, frame), nil
	})
	get(Cs.ArtifactDensityGauge, &ps.DensityGauge, func() (Ct.Panel, error) {
		return GaugePanel(Cs.ArtifactDensityGauge, "DENSITY", snap.CurrentDensity, gaugeWidth, frame), nil
	})
	get(Cs.ArtifactStats, &ps.Stats, func() (Ct.Panel, error) {
		return StatsPanel(snap, frame), nil
	})
	get(Cs.ArtifactAlerts, &ps.Alerts, func() (Ct.Panel, error) {
		return AlertsPanel(snap, frame), nil
	})
	get(Cs.ArtifactLegend, &ps.Legend, func() (Ct.Panel, error) {
		return LegendPanel(gaugeWidth, frame), nil
	})

	return ps, errors.Join(errs...)
}

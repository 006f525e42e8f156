package crowdsafe

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	Cs "github.com/maroda/crowdsafe/server"
)

func trendLine(title, series string, xs []string, ys []float64, yMax float64) *charts.Line {
	data := make([]opts.LineData, 0, len(ys))
	for _, y := range ys {
		data = append(data, opts.LineData{Value: Cs.FloatPrecise(y, 3)})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "dark", Width: "100%", Height: "280px"}),
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "s", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: yMax}),
	)
	line.SetXAxis(xs).AddSeries(series, data)
	return line
}

func levelGauge(title string, v float64) *charts.Gauge {
	g := charts.NewGauge()
	g.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "dark", Width: "420px", Height: "320px"}),
		charts.WithTitleOpts(opts.Title{Title: title}),
	)
	g.AddSeries(title, []opts.GaugeData{{Name: title, Value: Cs.FloatPrecise(v*100, 1)}})
	return g
}

// ChartPage lays out the history and the current levels
func ChartPage(snap Cs.Snapshot) *components.Page {
	xs := make([]string, len(snap.Timestamp))
	for i, ts := range snap.Timestamp {
		xs[i] = fmt.Sprintf("%.1f", ts)
	}

	page := components.NewPage()
	page.PageTitle = "Crowd Safety Monitoring"
	page.AddCharts(
		levelGauge("RISK LEVEL", snap.CurrentRisk),
		levelGauge("DENSITY", snap.CurrentDensity),
		trendLine("Crowd Density Trend", "density", xs, snap.Density, 1),
		trendLine("Risk Level Trend", "risk", xs, snap.Risk, 1),
		trendLine("Motion Activity", "motion", xs, snap.Motion, 1),
	)
	return page
}

// ChartsHandler renders the chart page from the current snapshot
func (v *View) ChartsHandler(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := ChartPage(v.Orch.Dashboard.Snapshot()).Render(&buf); err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

package crowdsafe

import (
	"sync"
	"time"

	Ct "github.com/maroda/crowdsafe/types"
	"gonum.org/v1/gonum/stat"
)

// Render cache artifact names
const (
	ArtifactDensityChart = "density_chart"
	ArtifactRiskChart    = "risk_chart"
	ArtifactMotionChart  = "motion_chart"
	ArtifactRiskGauge    = "risk_gauge"
	ArtifactDensityGauge = "density_gauge"
	ArtifactStats        = "stats"
	ArtifactAlerts       = "alerts"
	ArtifactLegend       = "legend"
)

// Sample is one frame's worth of input to the dashboard.
// Motion is raw pixels per frame.
type Sample struct {
	Density      float64
	Risk         float64
	Motion       float64
	AnomalyScore float64
	Anomaly      bool
	FPS          float64
}

// DashboardState is written by the pipeline goroutine through Update
// and read by everything else through Snapshot
type DashboardState struct {
	MU  sync.RWMutex
	cfg *Config

	Density   *HistorySeries[float64]
	Risk      *HistorySeries[float64]
	Motion    *HistorySeries[float64] // normalized
	MotionRaw *HistorySeries[float64]
	Anomaly   *HistorySeries[bool]
	FPS       *HistorySeries[float64]
	Timestamp *HistorySeries[float64]

	Alerts *AlertManager
	Cache  *RenderCache[Ct.Panel]

	FrameCount     int
	HighRiskFrames int
	AnomalyCount   int

	clock  func() float64
	state  Ct.PipelineState
	paused bool
}

// Snapshot is a consistent copy for rendering
type Snapshot struct {
	Density   []float64 `json:"density"`
	Risk      []float64 `json:"risk"`
	Motion    []float64 `json:"motion"`
	MotionRaw []float64 `json:"motionRaw"`
	Anomaly   []bool    `json:"anomaly"`
	FPS       []float64 `json:"fps"`
	Timestamp []float64 `json:"timestamp"`

	Active []Ct.AlertRecord `json:"active"`
	Recent []Ct.AlertRecord `json:"recent"`

	FrameCount     int     `json:"frameCount"`
	HighRiskFrames int     `json:"highRiskFrames"`
	AnomalyCount   int     `json:"anomalyCount"`
	Elapsed        float64 `json:"elapsed"`

	CurrentDensity float64 `json:"currentDensity"`
	CurrentRisk    float64 `json:"currentRisk"`
	CurrentMotion  float64 `json:"currentMotion"`
	CurrentFPS     float64 `json:"currentFps"`
	AvgFPS         float64 `json:"avgFps"`
	HighRiskPct    float64 `json:"highRiskPct"`
	Status         string  `json:"status"`

	State  string `json:"state"`
	Paused bool   `json:"paused"`
}

// WallClock returns seconds elapsed since start
func WallClock(start time.Time) func() float64 {
	return func() float64 {
		return time.Since(start).Seconds()
	}
}

// NewDashboardState with a nil clock uses wall time from now
func NewDashboardState(c *Config, clock func() float64) *DashboardState {
	if clock == nil {
		clock = WallClock(time.Now())
	}
	n := c.HistoryCapacity

	cache := NewRenderCache[Ct.Panel]()
	for _, name := range []string{ArtifactDensityChart, ArtifactRiskChart, ArtifactMotionChart,
		ArtifactRiskGauge, ArtifactDensityGauge} {
		cache.Register(name, c.ChartRefresh)
	}
	for _, name := range []string{ArtifactStats, ArtifactAlerts, ArtifactLegend} {
		cache.Register(name, c.PanelRefresh)
	}

	return &DashboardState{
		cfg:       c,
		Density:   NewHistorySeries(n, 0.0),
		Risk:      NewHistorySeries(n, 0.0),
		Motion:    NewHistorySeries(n, 0.0),
		MotionRaw: NewHistorySeries(n, 0.0),
		Anomaly:   NewHistorySeries(n, false),
		FPS:       NewHistorySeries(n, 0.0),
		Timestamp: NewHistorySeries(n, 0.0),
		Alerts:    NewAlertManager(c.RecentAlerts, clock),
		Cache:     cache,
		clock:     clock,
	}
}

// Update records one processed frame and returns the alerts it raised.
// Expired alerts are pruned before the rules run.
func (ds *DashboardState) Update(s Sample) []Ct.AlertRecord {
	ds.MU.Lock()
	defer ds.MU.Unlock()

	ds.FrameCount++

	motionNorm := 0.0
	if ds.cfg.Risk.MotionScale > 0 {
		motionNorm = clamp(s.Motion/ds.cfg.Risk.MotionScale, 0, 1)
	}

	ds.Density.Push(s.Density)
	ds.Risk.Push(s.Risk)
	ds.Motion.Push(motionNorm)
	ds.MotionRaw.Push(s.Motion)
	ds.Anomaly.Push(s.Anomaly)
	ds.FPS.Push(s.FPS)
	ds.Timestamp.Push(ds.clock())

	if s.Risk > ds.cfg.HighRiskLevel {
		ds.HighRiskFrames++
	}
	if s.Anomaly {
		ds.AnomalyCount++
	}

	ds.Alerts.Prune(ds.cfg.AlertMaxAge)
	return ds.Alerts.Evaluate(ds.cfg.Alerts, Observation{
		Risk:         s.Risk,
		Density:      s.Density,
		Motion:       s.Motion,
		AnomalyScore: s.AnomalyScore,
	})
}

func (ds *DashboardState) SetState(st Ct.PipelineState) {
	ds.MU.Lock()
	defer ds.MU.Unlock()
	ds.state = st
}

func (ds *DashboardState) SetPaused(p bool) {
	ds.MU.Lock()
	defer ds.MU.Unlock()
	ds.paused = p
}

func (ds *DashboardState) Snapshot() Snapshot {
	ds.MU.RLock()
	defer ds.MU.RUnlock()

	fps := ds.FPS.Snapshot()
	avg := 0.0
	if len(fps) > 0 {
		avg = stat.Mean(fps, nil)
	}
	pct := 0.0
	if ds.FrameCount > 0 {
		pct = float64(ds.HighRiskFrames) / float64(ds.FrameCount) * 100
	}
	risk := ds.Risk.Latest()

	return Snapshot{
		Density:        ds.Density.Snapshot(),
		Risk:           ds.Risk.Snapshot(),
		Motion:         ds.Motion.Snapshot(),
		MotionRaw:      ds.MotionRaw.Snapshot(),
		Anomaly:        ds.Anomaly.Snapshot(),
		FPS:            fps,
		Timestamp:      ds.Timestamp.Snapshot(),
		Active:         ds.Alerts.Active(),
		Recent:         ds.Alerts.Recent(),
		FrameCount:     ds.FrameCount,
		HighRiskFrames: ds.HighRiskFrames,
		AnomalyCount:   ds.AnomalyCount,
		Elapsed:        ds.clock(),
		CurrentDensity: ds.Density.Latest(),
		CurrentRisk:    risk,
		CurrentMotion:  ds.Motion.Latest(),
		CurrentFPS:     ds.FPS.Latest(),
		AvgFPS:         avg,
		HighRiskPct:    pct,
		Status:         Status(risk),
		State:          ds.state.String(),
		Paused:         ds.paused,
	}
}

// Frames is the number of frames recorded, without copying the history
func (ds *DashboardState) Frames() int {
	ds.MU.RLock()
	defer ds.MU.RUnlock()
	return ds.FrameCount
}

// Status is the one word operator summary of a risk value
func Status(risk float64) string {
	switch {
	case risk < 0.5:
		return "SAFE"
	case risk < 0.7:
		return "CAUTION"
	default:
		return "DANGER"
	}
}

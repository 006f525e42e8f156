package types

/*

	These are the "immutable" core types of crowdsafe,
	provided for cross-package use (e.g. Plugins) and testing.

	There are no constructors defined here.
	Struct constructors are housed in their own packages.
	Methods taking these types should create local aliases,
	for example: type Alerts []Ct.AlertRecord

*/

import "time"

// Frame is a single preprocessed grayscale raster.
// Pix is row-major, one byte per pixel, len(Pix) == Width*Height.
// A Frame is never modified after it leaves the source.
type Frame struct {
	Seq       uint64    // monotonic sequence number from the source
	Timestamp time.Time // capture time
	Width     int
	Height    int
	Pix       []uint8

	// Preprocessed is set once blur and contrast stretch have been applied
	Preprocessed bool
}

// At returns the intensity at (x, y), no bounds checking
func (f *Frame) At(x, y int) uint8 {
	return f.Pix[y*f.Width+x]
}

// FrameMetrics is produced once per frame by the feature extractor.
type FrameMetrics struct {
	Density   float64 // [0,1]
	Motion    float64 // >= 0, raw pixels of displacement per frame
	Timestamp float64 // seconds since pipeline start
}

// RiskBand is the discrete risk classification.
// The ordering is meaningful: RiskLow < RiskMedium < RiskHigh
type RiskBand int

const (
	RiskLow RiskBand = iota
	RiskMedium
	RiskHigh
)

func (b RiskBand) String() string {
	switch b {
	case RiskLow:
		return "LOW"
	case RiskMedium:
		return "MEDIUM"
	case RiskHigh:
		return "HIGH"
	default:
		return "UNKNOWN"
	}
}

// Severity of an alert
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// AlertRecord is never mutated after creation.
// RaisedAt is pipeline time in seconds.
type AlertRecord struct {
	ID       string   `json:"id"`
	Kind     string   `json:"kind"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	RaisedAt float64  `json:"raisedAt"`
}

// FrameRecord is the per-frame result handed to output adapters.
// Motion is raw, MotionNorm is Motion divided by the configured scale and capped at 1.
type FrameRecord struct {
	RunID       string    `json:"runId"`
	Seq         uint64    `json:"seq"`
	Captured    time.Time `json:"captured"`
	Elapsed     float64   `json:"elapsed"`
	Density     float64   `json:"density"`
	Motion      float64   `json:"motion"`
	MotionNorm  float64   `json:"motionNorm"`
	Anomaly     float64   `json:"anomaly"`
	AnomalyFlag bool      `json:"anomalyFlag"`
	Score       float64   `json:"score"`
	Band        RiskBand  `json:"band"`
	Risk        float64   `json:"risk"`
	FPS         float64   `json:"fps"`
}

// PipelineState is the orchestrator lifecycle.
// Warmup has no previous frame, Steady does, Drained is terminal.
type PipelineState int

const (
	StateWarmup PipelineState = iota
	StateSteady
	StateDrained
)

func (s PipelineState) String() string {
	switch s {
	case StateWarmup:
		return "WARMUP"
	case StateSteady:
		return "STEADY"
	case StateDrained:
		return "DRAINED"
	default:
		return "UNKNOWN"
	}
}

// Panel is a rendered dashboard artifact.
// It is what the render cache holds between refreshes.
type Panel struct {
	Name    string
	Title   string
	Lines   []string
	Level   float64 // normalized value used to pick a color, when meaningful
	BuiltAt uint64  // frame count at build time
}

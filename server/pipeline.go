package crowdsafe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	Co "github.com/maroda/crowdsafe/obvy"
	Cp "github.com/maroda/crowdsafe/plugin"
	Ct "github.com/maroda/crowdsafe/types"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrStartup    = errors.New("pipeline failed before the first frame")
	ErrFramePanic = errors.New("frame stage panicked")
	ErrSinkPanic  = errors.New("output or renderer panicked")
)

const progressEvery = 30

// Renderer receives a snapshot after every processed frame
type Renderer interface {
	Render(snap Snapshot) error
}

// Orchestrator is the single goroutine that owns the per-frame loop.
// Everything else reads through Dashboard.Snapshot.
type Orchestrator struct {
	MU         sync.RWMutex
	Config     *Config
	Source     FrameSource
	Prep       *Preprocessor
	Extractor  *FeatureExtractor
	Anomaly    *AnomalyModel
	Classifier *RiskClassifier
	Dashboard  *DashboardState
	Outputs    []Cp.OutputAdapter
	Renderers  []Renderer
	Stats      *Co.StatsInternal
	Meter      *FPSMeter
	RunID      string
	Started    time.Time

	clock   func() float64
	state   Ct.PipelineState
	paused  atomic.Bool
	prev    *Ct.Frame
	dropped int
}

// NewOrchestrator wires the stages from config.
// A nil clock measures wall time from now.
func NewOrchestrator(c *Config, src FrameSource, stats *Co.StatsInternal, clock func() float64) (*Orchestrator, error) {
	if src == nil {
		return nil, ErrNoSource
	}
	fe, err := NewFeatureExtractor(c)
	if err != nil {
		return nil, err
	}
	if stats == nil {
		stats = Co.NewStatsInternal()
	}

	started := time.Now()
	if clock == nil {
		clock = WallClock(started)
	}

	return &Orchestrator{
		Config:     c,
		Source:     src,
		Prep:       NewPreprocessor(c.Preprocess),
		Extractor:  fe,
		Anomaly:    NewAnomalyModel(c.Anomaly),
		Classifier: NewRiskClassifier(c.Risk),
		Dashboard:  NewDashboardState(c, clock),
		Stats:      stats,
		Meter:      NewFPSMeter(),
		RunID:      uuid.NewString(),
		Started:    started,
		clock:      clock,
		state:      Ct.StateWarmup,
	}, nil
}

func (o *Orchestrator) AddOutput(out Cp.OutputAdapter) {
	o.Outputs = append(o.Outputs, out)
}

func (o *Orchestrator) AddRenderer(r Renderer) {
	o.Renderers = append(o.Renderers, r)
}

func (o *Orchestrator) State() Ct.PipelineState {
	o.MU.RLock()
	defer o.MU.RUnlock()
	return o.state
}

func (o *Orchestrator) setState(st Ct.PipelineState) {
	o.MU.Lock()
	prev := o.state
	o.state = st
	o.MU.Unlock()

	o.Dashboard.SetState(st)
	if prev != st {
		slog.Info("Pipeline state", slog.String("from", prev.String()), slog.String("to", st.String()))
	}
}

// TogglePause flips the pause flag, checked between frames
func (o *Orchestrator) TogglePause() bool {
	p := !o.paused.Load()
	o.paused.Store(p)
	o.Dashboard.SetPaused(p)
	slog.Info("Pipeline pause", slog.Bool("paused", p))
	return p
}

func (o *Orchestrator) Paused() bool { return o.paused.Load() }

// Dropped is the number of frames that never reached the dashboard
func (o *Orchestrator) Dropped() int {
	o.MU.RLock()
	defer o.MU.RUnlock()
	return o.dropped
}

// Run reads and processes frames until the source ends, a fatal read error,
// or ctx is cancelled. Cancellation is only noticed between frames.
func (o *Orchestrator) Run(ctx context.Context) error {
	slog.Info("Pipeline starting",
		slog.String("run", o.RunID),
		slog.Float64("sourceFPS", o.Source.FPS()),
		slog.String("density", o.Extractor.Density.Type()),
		slog.String("motion", o.Extractor.Motion.Type()))
	defer o.logSummary()

	for {
		if ctx.Err() != nil {
			o.setState(Ct.StateDrained)
			return nil
		}

		if o.paused.Load() {
			select {
			case <-ctx.Done():
			case <-time.After(50 * time.Millisecond):
			}
			continue
		}

		frame, err := o.Source.Read(ctx)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			o.setState(Ct.StateDrained)
			return nil
		case errors.Is(err, ErrBadFrame):
			slog.Error("Dropping unreadable frame", slog.Any("Error", err))
			o.drop("bad_frame")
			continue
		case ctx.Err() != nil:
			o.setState(Ct.StateDrained)
			return nil
		default:
			warm := o.State() == Ct.StateWarmup
			o.setState(Ct.StateDrained)
			if warm {
				return fmt.Errorf("%w: %w", ErrStartup, err)
			}
			return fmt.Errorf("frame source: %w", err)
		}

		if _, err := o.ProcessFrame(ctx, frame); err != nil {
			slog.Error("Dropping frame", slog.Uint64("seq", frame.Seq), slog.Any("Error", err))
			o.drop("stage")
		}
	}
}

func (o *Orchestrator) drop(reason string) {
	o.MU.Lock()
	o.dropped++
	o.MU.Unlock()
	o.Stats.RecDrop(reason)
}

// ProcessFrame runs one frame through every stage in order:
// extract, anomaly, classify, dashboard and alerts, outputs, render.
// A panic before the dashboard commits the frame is returned as an error
// wrapping ErrFramePanic and leaves no trace of the frame.
// Output and renderer faults after the commit are only logged.
func (o *Orchestrator) ProcessFrame(ctx context.Context, frame *Ct.Frame) (*Ct.FrameRecord, error) {
	_, span := Co.Tracer().Start(ctx, "frame",
		trace.WithAttributes(attribute.Int64("frame.seq", int64(frame.Seq))))
	defer span.End()

	start := time.Now()
	rec, alerts, err := o.commit(frame, start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if o.State() == Ct.StateWarmup {
		o.setState(Ct.StateSteady)
	}

	span.SetAttributes(
		attribute.Float64("crowd.density", rec.Density),
		attribute.Float64("crowd.motion", rec.Motion),
		attribute.Float64("crowd.risk", rec.Risk),
		attribute.String("crowd.band", rec.Band.String()),
		attribute.Int("crowd.alerts", len(alerts)),
	)

	o.write(rec, alerts)
	o.render()

	o.Stats.RecFrame(time.Since(start).Seconds(), rec.Risk, rec.Density, rec.Motion, rec.FPS)

	if frames := o.Dashboard.Frames(); frames%progressEvery == 0 {
		slog.Info("Progress",
			slog.Int("frames", frames),
			slog.Float64("fps", FloatPrecise(rec.FPS, 1)),
			slog.String("band", rec.Band.String()),
			slog.Float64("risk", FloatPrecise(rec.Risk, 2)))
	}

	return rec, nil
}

// commit runs the stages that change pipeline state, up to and including
// the dashboard update. Nothing after it can undo a committed frame.
func (o *Orchestrator) commit(frame *Ct.Frame, start time.Time) (rec *Ct.FrameRecord, alerts []Ct.AlertRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec, alerts = nil, nil
			err = fmt.Errorf("%w: %v", ErrFramePanic, r)
		}
	}()

	ts := o.clock()
	frame = o.Prep.Process(frame)

	m, err := o.Extractor.Extract(o.prev, frame, ts)
	if err != nil {
		return nil, nil, err
	}

	score := o.Anomaly.Score(m.Motion, m.Density)
	anomalous := score > o.Config.Anomaly.Threshold

	composite := o.Classifier.Composite(m.Density, m.Motion)
	band := o.Classifier.Classify(composite)
	risk := o.Classifier.Normalize(band, m.Density, m.Motion)

	fps := o.Meter.Tick(start)

	alerts = o.Dashboard.Update(Sample{
		Density:      m.Density,
		Risk:         risk,
		Motion:       m.Motion,
		AnomalyScore: score,
		Anomaly:      anomalous,
		FPS:          fps,
	})
	o.prev = frame

	return &Ct.FrameRecord{
		RunID:       o.RunID,
		Seq:         frame.Seq,
		Captured:    frame.Timestamp,
		Elapsed:     ts,
		Density:     m.Density,
		Motion:      m.Motion,
		MotionNorm:  o.Classifier.MotionNorm(m.Motion),
		Anomaly:     score,
		AnomalyFlag: anomalous,
		Score:       composite,
		Band:        band,
		Risk:        risk,
		FPS:         fps,
	}, alerts, nil
}

// guard turns a panicking output or renderer call into an error
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrSinkPanic, r)
		}
	}()
	return fn()
}

// write hands results to every output, failures are only logged
func (o *Orchestrator) write(rec *Ct.FrameRecord, alerts []Ct.AlertRecord) {
	for i := range alerts {
		a := &alerts[i]
		o.Stats.RecAlert(a.Kind, string(a.Severity))
		slog.Warn("Alert", slog.String("kind", a.Kind), slog.String("severity", string(a.Severity)),
			slog.String("message", a.Message))
	}

	for _, out := range o.Outputs {
		if err := guard(func() error { return out.WriteRecord(rec) }); err != nil {
			slog.Error("Output failed to write record", slog.String("output", out.Type()), slog.Any("Error", err))
		}
		for i := range alerts {
			if err := guard(func() error { return out.WriteAlert(&alerts[i]) }); err != nil {
				slog.Error("Output failed to write alert", slog.String("output", out.Type()), slog.Any("Error", err))
			}
		}
	}
}

func (o *Orchestrator) render() {
	if len(o.Renderers) == 0 {
		return
	}
	snap := o.Dashboard.Snapshot()
	for _, r := range o.Renderers {
		if err := guard(func() error { return r.Render(snap) }); err != nil {
			slog.Error("Render failed", slog.Any("Error", err))
		}
	}
}

// Summary is the end of run report
type Summary struct {
	RunID          string  `json:"runId"`
	Frames         int     `json:"frames"`
	Dropped        int     `json:"dropped"`
	AvgFPS         float64 `json:"avgFps"`
	HighRiskFrames int     `json:"highRiskFrames"`
	AnomalyCount   int     `json:"anomalyCount"`
	Seconds        float64 `json:"seconds"`
}

func (o *Orchestrator) Summary() Summary {
	snap := o.Dashboard.Snapshot()
	return Summary{
		RunID:          o.RunID,
		Frames:         snap.FrameCount,
		Dropped:        o.Dropped(),
		AvgFPS:         FloatPrecise(snap.AvgFPS, 2),
		HighRiskFrames: snap.HighRiskFrames,
		AnomalyCount:   snap.AnomalyCount,
		Seconds:        FloatPrecise(time.Since(o.Started).Seconds(), 1),
	}
}

func (o *Orchestrator) logSummary() {
	s := o.Summary()
	slog.Info("Processing complete",
		slog.String("run", s.RunID),
		slog.Int("frames", s.Frames),
		slog.Int("dropped", s.Dropped),
		slog.Float64("avgFps", s.AvgFPS),
		slog.Int("highRiskFrames", s.HighRiskFrames),
		slog.Int("anomalies", s.AnomalyCount))
}

// Close flushes and closes every output and the source
func (o *Orchestrator) Close() error {
	var errs []error
	for _, out := range o.Outputs {
		if err := out.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("%s flush: %w", out.Type(), err))
		}
		if err := out.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s close: %w", out.Type(), err))
		}
	}
	if err := o.Source.Close(); err != nil {
		errs = append(errs, fmt.Errorf("source close: %w", err))
	}
	return errors.Join(errs...)
}

package crowdsafe

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatsInternal holds an attached registry,
// one per process, handed to the pipeline and the web server
type StatsInternal struct {
	Registry *prometheus.Registry

	FramesProcessed prometheus.Counter
	FramesDropped   *prometheus.CounterVec
	FrameDuration   prometheus.Histogram
	AlertsRaised    *prometheus.CounterVec
	Risk            prometheus.Gauge
	Density         prometheus.Gauge
	Motion          prometheus.Gauge
	FPS             prometheus.Gauge
	WWW             *prometheus.CounterVec
}

func NewStatsInternal() *StatsInternal {
	reg := prometheus.NewRegistry()

	s := &StatsInternal{
		Registry: reg,
		FramesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crowdsafe_frames_processed_total",
			Help: "Total number of frames that completed the pipeline",
		}),
		FramesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crowdsafe_frames_dropped_total",
			Help: "Total number of frames dropped, by reason",
		}, []string{"reason"}),
		FrameDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "crowdsafe_frame_duration_seconds",
			Help:    "Time spent processing one frame",
			Buckets: []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}),
		AlertsRaised: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crowdsafe_alerts_raised_total",
			Help: "Total number of alerts raised, by kind and severity",
		}, []string{"kind", "severity"}),
		Risk: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crowdsafe_risk",
			Help: "Normalized risk of the latest frame",
		}),
		Density: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crowdsafe_density",
			Help: "Density of the latest frame",
		}),
		Motion: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crowdsafe_motion_pixels",
			Help: "Raw motion magnitude of the latest frame in pixels per frame",
		}),
		FPS: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crowdsafe_fps",
			Help: "Measured processing rate",
		}),
		WWW: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crowdsafe_http_responses_total",
			Help: "HTTP responses by code and method",
		}, []string{"code", "method"}),
	}

	reg.MustRegister(
		s.FramesProcessed,
		s.FramesDropped,
		s.FrameDuration,
		s.AlertsRaised,
		s.Risk,
		s.Density,
		s.Motion,
		s.FPS,
		s.WWW,
	)

	return s
}

// RecFrame records one processed frame and its latest values
func (s *StatsInternal) RecFrame(seconds, risk, density, motion, fps float64) {
	s.FramesProcessed.Inc()
	s.FrameDuration.Observe(seconds)
	s.Risk.Set(risk)
	s.Density.Set(density)
	s.Motion.Set(motion)
	s.FPS.Set(fps)
}

func (s *StatsInternal) RecDrop(reason string) {
	s.FramesDropped.WithLabelValues(reason).Inc()
}

func (s *StatsInternal) RecAlert(kind, severity string) {
	s.AlertsRaised.WithLabelValues(kind, severity).Inc()
}

func (s *StatsInternal) RecWWW(code, method string) {
	s.WWW.WithLabelValues(code, method).Inc()
}

// Handler serves only this registry, not the global default
func (s *StatsInternal) Handler() http.Handler {
	return promhttp.HandlerFor(s.Registry, promhttp.HandlerOpts{})
}

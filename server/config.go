package crowdsafe

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	Cp "github.com/maroda/crowdsafe/plugin"
	"gopkg.in/yaml.v3"
)

// RiskConfig drives classification and risk normalization.
// Composite score = density*DensityWeight + min(motion/MotionScale,1)*MotionWeight
type RiskConfig struct {
	LowThreshold  float64 `json:"low_threshold" yaml:"low_threshold"`
	HighThreshold float64 `json:"high_threshold" yaml:"high_threshold"`
	DensityWeight float64 `json:"density_weight" yaml:"density_weight"`
	MotionWeight  float64 `json:"motion_weight" yaml:"motion_weight"`
	MotionScale   float64 `json:"motion_scale" yaml:"motion_scale"`
}

// AnomalyConfig, Window 0 keeps every sample
type AnomalyConfig struct {
	Warmup    int     `json:"warmup" yaml:"warmup"`
	Window    int     `json:"window" yaml:"window"`
	Threshold float64 `json:"threshold" yaml:"threshold"`
}

// AlertPolicy thresholds are all strict (value > threshold)
type AlertPolicy struct {
	Critical float64 `json:"critical" yaml:"critical"`
	High     float64 `json:"high" yaml:"high"`
	Moderate float64 `json:"moderate" yaml:"moderate"`
	Density  float64 `json:"density" yaml:"density"`
	Motion   float64 `json:"motion" yaml:"motion"`
	Anomaly  float64 `json:"anomaly" yaml:"anomaly"`
}

// PreprocessConfig controls the blur and contrast stretch applied
// to every frame before feature extraction. A BlurKernel below 2 disables the blur.
type PreprocessConfig struct {
	BlurKernel int     `json:"blur_kernel" yaml:"blur_kernel"`
	BlurSigma  float64 `json:"blur_sigma" yaml:"blur_sigma"`
	Normalize  bool    `json:"normalize" yaml:"normalize"`
}

type Config struct {
	Source          string            `json:"source" yaml:"source"`
	FrameWidth      int               `json:"frame_width" yaml:"frame_width"`
	FrameHeight     int               `json:"frame_height" yaml:"frame_height"`
	SourceFPS       float64           `json:"source_fps" yaml:"source_fps"`
	GridRows        int               `json:"grid_rows" yaml:"grid_rows"`
	GridCols        int               `json:"grid_cols" yaml:"grid_cols"`
	DensityKernel   string            `json:"density_kernel" yaml:"density_kernel"`
	MotionKernel    string            `json:"motion_kernel" yaml:"motion_kernel"`
	Preprocess      PreprocessConfig  `json:"preprocess" yaml:"preprocess"`
	Risk            RiskConfig        `json:"risk" yaml:"risk"`
	Anomaly         AnomalyConfig     `json:"anomaly" yaml:"anomaly"`
	HistoryCapacity int               `json:"history_capacity" yaml:"history_capacity"`
	RecentAlerts    int               `json:"recent_alerts" yaml:"recent_alerts"`
	AlertMaxAge     float64           `json:"alert_max_age" yaml:"alert_max_age"`
	HighRiskLevel   float64           `json:"high_risk_level" yaml:"high_risk_level"`
	Alerts          AlertPolicy       `json:"alerts" yaml:"alerts"`
	ChartRefresh    int               `json:"chart_refresh" yaml:"chart_refresh"`
	PanelRefresh    int               `json:"panel_refresh" yaml:"panel_refresh"`
	FrameSkip       int               `json:"frame_skip" yaml:"frame_skip"`
	StatsAddr       string            `json:"stats_addr" yaml:"stats_addr"`
	ReportDir       string            `json:"report_dir" yaml:"report_dir"`
	Headless        bool              `json:"headless" yaml:"headless"`
	Outputs         []Cp.OutputConfig `json:"outputs" yaml:"outputs"`
}

// DefaultConfig matches the values the system was tuned with
func DefaultConfig() *Config {
	return &Config{
		FrameWidth:    640,
		FrameHeight:   480,
		SourceFPS:     25,
		GridRows:      10,
		GridCols:      10,
		DensityKernel: "grid_mean",
		MotionKernel:  "block_match",
		Preprocess: PreprocessConfig{
			BlurKernel: 15,
			BlurSigma:  1.0,
			Normalize:  true,
		},
		Risk: RiskConfig{
			LowThreshold:  0.4,
			HighThreshold: 0.7,
			DensityWeight: 0.6,
			MotionWeight:  0.4,
			MotionScale:   20.0,
		},
		Anomaly: AnomalyConfig{
			Warmup:    10,
			Window:    0,
			Threshold: 0.7,
		},
		HistoryCapacity: 150,
		RecentAlerts:    10,
		AlertMaxAge:     5.0,
		HighRiskLevel:   0.7,
		Alerts: AlertPolicy{
			Critical: 0.85,
			High:     0.7,
			Moderate: 0.5,
			Density:  0.8,
			Motion:   15.0,
			Anomaly:  0.7,
		},
		ChartRefresh: 100,
		PanelRefresh: 200,
		FrameSkip:    1,
		StatsAddr:    ":8090",
	}
}

// LoadConfigFileName pulls a given filename config off local disk.
// Validation is performed on the file before opening.
// Anything the file leaves out keeps its default.
func LoadConfigFileName(filename string) (*Config, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	// validation
	err = validateLoad(file)
	if err != nil {
		slog.Error("Validation failed", slog.Any("Error", err))
		return nil, err
	}

	return LoadConfig(file)
}

func validateLoad(file *os.File) error {
	// validate file
	info, err := file.Stat()
	if err != nil {
		slog.Error("could not stat file")
		return err
	}

	// validate size
	if info.Size() == 0 {
		slog.Error("file is empty")
		return errors.New("file is empty")
	}

	return nil
}

// LoadConfig decodes YAML for .yaml/.yml files and JSON for everything else
func LoadConfig(file *os.File) (*Config, error) {
	config := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(file.Name()))
	switch ext {
	case ".yaml", ".yml":
		decoder := yaml.NewDecoder(file)
		decoder.KnownFields(true)
		if err := decoder.Decode(config); err != nil {
			slog.Error("could not decode file", slog.Any("Error", err))
			return nil, err
		}
	default:
		decoder := json.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(config); err != nil {
			slog.Error("could not decode file", slog.Any("Error", err))
			return nil, err
		}
	}

	return config, nil
}

// ApplyEnv lets the environment override the file
func (c *Config) ApplyEnv() {
	if src := FillEnvVar("CROWDSAFE_SOURCE"); src != "ENOENT" {
		c.Source = src
	}
	if addr := FillEnvVar("CROWDSAFE_STATS_ADDR"); addr != "ENOENT" {
		c.StatsAddr = addr
	}
	if FillEnvVar("CROWDSAFE_HEADLESS") == "true" {
		c.Headless = true
	}
	switch FillEnvVar("CROWDSAFE_NORMALIZE") {
	case "true":
		c.Preprocess.Normalize = true
	case "false":
		c.Preprocess.Normalize = false
	}

	c.Risk.LowThreshold = FillEnvVarFloat("CROWDSAFE_LOW_RISK_THRESHOLD", c.Risk.LowThreshold)
	c.Risk.HighThreshold = FillEnvVarFloat("CROWDSAFE_HIGH_RISK_THRESHOLD", c.Risk.HighThreshold)
	c.Preprocess.BlurKernel = FillEnvVarInt("CROWDSAFE_BLUR_KERNEL", c.Preprocess.BlurKernel)
	c.GridRows = FillEnvVarInt("CROWDSAFE_GRID_ROWS", c.GridRows)
	c.GridCols = FillEnvVarInt("CROWDSAFE_GRID_COLS", c.GridCols)
	c.HistoryCapacity = FillEnvVarInt("CROWDSAFE_HISTORY", c.HistoryCapacity)
	c.AlertMaxAge = FillEnvVarFloat("CROWDSAFE_ALERT_MAX_AGE", c.AlertMaxAge)
	c.ChartRefresh = FillEnvVarInt("CROWDSAFE_CHART_REFRESH", c.ChartRefresh)
	c.PanelRefresh = FillEnvVarInt("CROWDSAFE_PANEL_REFRESH", c.PanelRefresh)
}

// Validate rejects values the pipeline cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.GridRows < 1 || c.GridCols < 1 {
		errs = append(errs, fmt.Errorf("grid must be at least 1x1, got %dx%d", c.GridRows, c.GridCols))
	}
	if c.Risk.LowThreshold < 0 || c.Risk.HighThreshold > 1 || c.Risk.LowThreshold >= c.Risk.HighThreshold {
		errs = append(errs, fmt.Errorf("risk thresholds must satisfy 0 <= low < high <= 1, got %v and %v",
			c.Risk.LowThreshold, c.Risk.HighThreshold))
	}
	if c.Risk.MotionScale <= 0 {
		errs = append(errs, fmt.Errorf("motion_scale must be positive, got %v", c.Risk.MotionScale))
	}
	if c.Anomaly.Warmup < 0 || c.Anomaly.Window < 0 {
		errs = append(errs, errors.New("anomaly warmup and window cannot be negative"))
	}
	if c.Anomaly.Window > 0 && c.Anomaly.Window < c.Anomaly.Warmup {
		errs = append(errs, fmt.Errorf("anomaly window %d is shorter than warmup %d", c.Anomaly.Window, c.Anomaly.Warmup))
	}
	if c.HistoryCapacity <= 0 {
		errs = append(errs, fmt.Errorf("history_capacity must be positive, got %d", c.HistoryCapacity))
	}
	if c.RecentAlerts <= 0 {
		errs = append(errs, fmt.Errorf("recent_alerts must be positive, got %d", c.RecentAlerts))
	}
	if c.AlertMaxAge <= 0 {
		errs = append(errs, fmt.Errorf("alert_max_age must be positive, got %v", c.AlertMaxAge))
	}
	if c.ChartRefresh <= 0 || c.PanelRefresh <= 0 {
		errs = append(errs, errors.New("refresh periods must be positive"))
	}
	if c.FrameWidth < 0 || c.FrameHeight < 0 {
		errs = append(errs, fmt.Errorf("frame size cannot be negative, got %dx%d", c.FrameWidth, c.FrameHeight))
	}
	if k := c.Preprocess.BlurKernel; k > 1 && k%2 == 0 {
		errs = append(errs, fmt.Errorf("blur_kernel must be odd, got %d", k))
	}
	if c.Preprocess.BlurKernel > 1 && c.Preprocess.BlurSigma <= 0 {
		errs = append(errs, fmt.Errorf("blur_sigma must be positive, got %v", c.Preprocess.BlurSigma))
	}
	if c.FrameSkip < 1 {
		errs = append(errs, fmt.Errorf("frame_skip must be at least 1, got %d", c.FrameSkip))
	}
	if _, ok := Cp.DensityKernels[c.DensityKernel]; !ok {
		errs = append(errs, fmt.Errorf("unknown density kernel %q", c.DensityKernel))
	}
	if _, ok := Cp.MotionKernels[c.MotionKernel]; !ok {
		errs = append(errs, fmt.Errorf("unknown motion kernel %q", c.MotionKernel))
	}
	for i, o := range c.Outputs {
		if _, ok := Cp.Outputs[o.Type]; !ok {
			errs = append(errs, fmt.Errorf("outputs[%d]: unknown type %q", i, o.Type))
		}
	}

	return errors.Join(errs...)
}

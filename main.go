package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	Cd "github.com/maroda/crowdsafe/display"
	Co "github.com/maroda/crowdsafe/obvy"
	Cp "github.com/maroda/crowdsafe/plugin"
	Cs "github.com/maroda/crowdsafe/server"
)

func init() {
	User := Cs.FillEnvVar("USER")
	fmt.Printf("crowdsafe initializing for ... %s\n", User)
}

// loadConfig reads CROWDSAFE_CONFIG when set, then applies the environment
func loadConfig() (*Cs.Config, error) {
	c := Cs.DefaultConfig()
	if path := Cs.FillEnvVar("CROWDSAFE_CONFIG"); path != "ENOENT" {
		var err error
		c, err = Cs.LoadConfigFileName(path)
		if err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}
	c.ApplyEnv()
	return c, c.Validate()
}

// setupLogging keeps the terminal clean when the dashboard owns it
func setupLogging(headless bool) (io.Closer, error) {
	level := slog.LevelInfo
	if Cs.FillEnvVar("CROWDSAFE_DEBUG") == "true" {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stdout
	var closer io.Closer
	if !headless {
		path := Cs.FillEnvVar("CROWDSAFE_LOG")
		if path == "ENOENT" {
			path = "crowdsafe.log"
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		out, closer = f, f
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})))
	return closer, nil
}

func run() int {
	c, err := loadConfig()
	if err != nil {
		slog.Error("Invalid configuration", slog.Any("Error", err))
		return 2
	}

	logFile, err := setupLogging(c.Headless)
	if err != nil {
		slog.Error("Could not open log file", slog.Any("Error", err))
		return 1
	}
	if logFile != nil {
		defer logFile.Close()
	}

	shutdown, err := Co.InitOTel(Cs.FillEnvVar("CROWDSAFE_OTEL"))
	if err != nil {
		slog.Error("Could not start tracing", slog.Any("Error", err))
		return 1
	}
	defer shutdown()

	src, err := Cs.NewSource(c)
	if err != nil {
		slog.Error("Could not open frame source", slog.String("source", c.Source), slog.Any("Error", err))
		return 1
	}

	o, err := Cs.NewOrchestrator(c, src, Co.NewStatsInternal(), nil)
	if err != nil {
		slog.Error("Could not build pipeline", slog.Any("Error", err))
		src.Close()
		return 1
	}

	for _, oc := range c.Outputs {
		out, err := Cp.OutputLookup(oc)
		if err != nil {
			slog.Error("Output disabled", slog.String("type", oc.Type), slog.Any("Error", err))
			continue
		}
		slog.Info("Output enabled", slog.String("type", out.Type()))
		o.AddOutput(out)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if c.Headless {
		err = Cd.StartHeadless(ctx, o, c)
	} else {
		err = Cd.StartTUI(ctx, o, c)
	}

	code := 0
	if err != nil {
		slog.Error("Pipeline stopped with error", slog.Any("Error", err))
		code = 1
	}

	if c.ReportDir != "" {
		if _, err := Cd.WriteReport(c.ReportDir, o.Summary(), o.Dashboard.Snapshot()); err != nil {
			slog.Error("Could not write report", slog.Any("Error", err))
		}
	}

	if err := o.Close(); err != nil {
		slog.Error("Problem closing pipeline", slog.Any("Error", err))
	}

	sum := o.Summary()
	fmt.Printf("Processed %d frames (%d dropped), avg %.1f FPS, %d high risk, %d anomalies\n",
		sum.Frames, sum.Dropped, sum.AvgFPS, sum.HighRiskFrames, sum.AnomalyCount)

	return code
}

func main() {
	os.Exit(run())
}

package crowdsafe

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/honeycombio/otel-config-go/otelconfig"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const TracerName = "github.com/maroda/crowdsafe"

// Tracer is what the pipeline and handlers use for spans.
// Without an exporter configured this is the otel no-op provider.
func Tracer() trace.Tracer {
	return otel.Tracer(TracerName)
}

// InitOTelHNY uses the Honeycomb library to interface with OTel
func InitOTelHNY() (func(), error) {
	otelShutdown, err := otelconfig.ConfigureOpenTelemetry()
	if err != nil {
		return nil, fmt.Errorf("failed to configure OpenTelemetry: %w", err)
	}
	return func() { otelShutdown() }, nil
}

// InitOTelGRF uses the Grafana recommended configuration including Baggage for propagation
func InitOTelGRF() (*sdktrace.TracerProvider, error) {
	exporter, err := otlptrace.New(context.Background(), otlptracehttp.NewClient())
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))
	return tp, err
}

// InitOTel picks an exporter by name and returns its shutdown.
// An empty mode leaves tracing as a no-op.
func InitOTel(mode string) (func(), error) {
	switch mode {
	case "", "ENOENT":
		return func() {}, nil
	case "hny":
		slog.Info("Tracing with Honeycomb")
		return InitOTelHNY()
	case "grf":
		slog.Info("Tracing with OTLP/HTTP")
		tp, err := InitOTelGRF()
		if err != nil {
			return nil, err
		}
		return func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				slog.Error("Tracer shutdown failed", slog.Any("Error", err))
			}
		}, nil
	default:
		return nil, fmt.Errorf("unknown otel mode: %q", mode)
	}
}

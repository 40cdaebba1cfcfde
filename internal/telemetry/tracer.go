// Package telemetry sets up tracing and the gateway's Prometheus metrics.
package telemetry

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// TracerOptions configures tracing.
type TracerOptions struct {
	Enabled     bool
	ServiceName string
	// Writer receives exported spans. Defaults to stdout.
	Writer io.Writer
}

// InitTracer initializes OpenTelemetry tracing. When tracing is disabled the
// global no-op provider is left in place and the shutdown func does nothing.
func InitTracer(opts TracerOptions, logger *slog.Logger) (func(context.Context) error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !opts.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	exporterOpts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
	if opts.Writer != nil {
		exporterOpts = append(exporterOpts, stdouttrace.WithWriter(opts.Writer))
	}
	exporter, err := stdouttrace.New(exporterOpts...)
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(opts.ServiceName),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)

	logger.Info("OpenTelemetry initialized", slog.String("service", opts.ServiceName))

	return tp.Shutdown, nil
}

// Package telemetry bootstraps OpenTelemetry tracing, gated by the
// --enable-otel / --otel-exporter-url flags. Disabled by
// default; the core never pays for tracing overhead unless asked.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Config controls whether and where traces are exported.
type Config struct {
	Enabled     bool
	ExporterURL string
	ServiceName string
	ModelID     string
}

// Shutdown flushes and releases the tracer provider. Safe to call even when
// telemetry was never enabled.
type Shutdown func(context.Context) error

var noopShutdown Shutdown = func(context.Context) error { return nil }

// Bootstrap installs a global TracerProvider when cfg.Enabled; otherwise it
// leaves the otel no-op provider in place and returns a no-op shutdown.
func Bootstrap(ctx context.Context, cfg Config) (Shutdown, error) {
	if !cfg.Enabled {
		return noopShutdown, nil
	}
	if cfg.ExporterURL == "" {
		return nil, fmt.Errorf("telemetry: --enable-otel requires --otel-exporter-url")
	}

	conn, err := grpc.NewClient(cfg.ExporterURL, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("telemetry: dial exporter: %w", err)
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("telemetry: create exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceInstanceID(cfg.ModelID),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return func(shutdownCtx context.Context) error {
		shutdownCtx, cancel := context.WithTimeout(shutdownCtx, 5*time.Second)
		defer cancel()
		return provider.Shutdown(shutdownCtx)
	}, nil
}

// Tracer returns a tracer under the encoderfile instrumentation name.
func Tracer() trace.Tracer {
	return otel.Tracer("github.com/encoderfile/encoderfile")
}

// Package telemetry bootstraps the OpenTelemetry trace provider a node
// exports spans through.
package telemetry

import (
	"context"
	"fmt"
	"log"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"

	"ConvergeCast/internal/config"
	"ConvergeCast/internal/meshaddr"
)

// InitTracer installs a global TracerProvider per cfg and returns its
// Shutdown func. When tracing is disabled it installs nothing and returns
// a no-op shutdown.
//
// Only the stdout exporter is supported: the reference deployment has no
// tracing collector to send spans to, so OTLP/Jaeger export has nowhere to
// land; stdout tracing is enough to inspect span timing and structure
// during development.
func InitTracer(cfg config.TelemetryConfig, serviceName string, self meshaddr.Addr) (func(context.Context) error, error) {
	if !cfg.Tracing.Enabled {
		log.Println("tracing disabled")
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(context.Background(), resource.WithAttributes(
		semconv.ServiceNameKey.String(serviceName),
		attribute.String("mesh.node.addr", self.String()),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	if cfg.Tracing.Exporter != "stdout" {
		return nil, fmt.Errorf("telemetry: unsupported exporter %q", cfg.Tracing.Exporter)
	}
	exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("telemetry: init stdout exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return tp.Shutdown, nil
}

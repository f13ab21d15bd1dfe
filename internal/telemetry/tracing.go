// Package telemetry wires OpenTelemetry tracing for the pipeline.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

// InitTracer registers a global TracerProvider that exports to the OTLP
// endpoint. A collector that is unreachable at dial time does not fail
// startup — spans are simply dropped until it becomes available, since
// tracing is an ambient concern, not a purchase-path dependency.
func InitTracer(ctx context.Context, log *slog.Logger, serviceName, endpoint string) (shutdown func(context.Context) error, err error) {
	dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	exporter, err := otlptracegrpc.New(dialCtx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP trace exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion("v1.0.0"),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	log.Info("tracer initialized", slog.String("endpoint", endpoint))

	return tp.Shutdown, nil
}

// Tracer returns the pipeline's named tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer("purchase-pipeline")
}

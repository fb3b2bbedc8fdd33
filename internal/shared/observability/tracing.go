package observability

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "autocomplete"

// Tracer resolves against the global provider, so spans started before
// InitTracing are no-ops and spans started after it are exported.
var Tracer trace.Tracer = otel.Tracer(tracerName)

// ShutdownFunc flushes and stops the trace provider.
type ShutdownFunc func(ctx context.Context) error

// InitTracing installs an OTLP/gRPC exporter when endpoint is set and returns
// its shutdown hook. With an empty endpoint the global no-op provider stays.
func InitTracing(ctx context.Context, serviceName, endpoint string) (ShutdownFunc, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", serviceName),
		)),
	)
	otel.SetTracerProvider(provider)
	Tracer = provider.Tracer(tracerName)

	slog.Info("tracing enabled", "endpoint", endpoint, "service", serviceName)
	return provider.Shutdown, nil
}

// StartSpan starts a span tagged with the file under work.
func StartSpan(ctx context.Context, name, path string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := make([]attribute.KeyValue, 0, len(attrs)+1)
	all = append(all, attribute.String("file.path", path))
	all = append(all, attrs...)
	return Tracer.Start(ctx, name, trace.WithAttributes(all...))
}

package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "linkgraph"

// Tracer is used by every build stage. Until SetupTracing installs an
// exporting provider it resolves to the global no-op provider.
var Tracer trace.Tracer = otel.Tracer(tracerName)

// TracingOptions controls span export.
type TracingOptions struct {
	Enabled     bool
	Endpoint    string
	ServiceName string
}

// SetupTracing installs an OTLP/gRPC exporting tracer provider and returns
// its shutdown function. When tracing is disabled the returned function is a
// no-op.
func SetupTracing(ctx context.Context, opts TracingOptions) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if !opts.Enabled {
		return noop, nil
	}

	clientOpts := []otlptracegrpc.Option{otlptracegrpc.WithInsecure()}
	if opts.Endpoint != "" {
		clientOpts = append(clientOpts, otlptracegrpc.WithEndpoint(opts.Endpoint))
	}
	exporter, err := otlptracegrpc.New(ctx, clientOpts...)
	if err != nil {
		return noop, fmt.Errorf("creating OTLP trace exporter: %w", err)
	}

	name := opts.ServiceName
	if name == "" {
		name = tracerName
	}
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", name))),
	)
	otel.SetTracerProvider(provider)
	Tracer = provider.Tracer(tracerName)

	return provider.Shutdown, nil
}

// Package tracing installs the OpenTelemetry tracer provider for the server.
package tracing

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Options selects where the ledger's spans go.
type Options struct {
	ServiceName string
	// StudioTZ is recorded on the resource so span times can be read
	// against the studio clock.
	StudioTZ string
	// Stdout receives spans as JSON. Nil leaves tracing off.
	Stdout io.Writer
	// Pretty indents each exported span.
	Pretty bool
}

// Setup installs a batching tracer provider exporting to opts.Stdout and
// returns its shutdown, which flushes pending spans. Without a writer the
// global no-op provider stays in place.
func Setup(ctx context.Context, opts Options) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if opts.Stdout == nil {
		return noop, nil
	}

	expOpts := []stdouttrace.Option{stdouttrace.WithWriter(opts.Stdout)}
	if opts.Pretty {
		expOpts = append(expOpts, stdouttrace.WithPrettyPrint())
	}
	exporter, err := stdouttrace.New(expOpts...)
	if err != nil {
		return noop, fmt.Errorf("stdout exporter: %w", err)
	}

	attrs := []attribute.KeyValue{semconv.ServiceName(opts.ServiceName)}
	if opts.StudioTZ != "" {
		attrs = append(attrs, attribute.String("kidstudio.studio_tz", opts.StudioTZ))
	}
	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return noop, fmt.Errorf("trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}

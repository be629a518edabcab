// Package telemetry wires OpenTelemetry tracing around job execution and
// import-source scans: one span per job processed by internal/worker, one
// span per scanner run by internal/workers.SyncImportSourceWorker,
// exported to stdout by default.
package telemetry

import (
	"context"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	stdouttrace "go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/polyforge/polyforge"

// Provider owns the process-wide TracerProvider and must be shut down on
// exit so buffered spans flush.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

// NewProvider builds a Provider. With otlpEndpoint empty it exports spans
// as pretty-printed JSON to w (os.Stdout in production, a bytes.Buffer in
// tests); with otlpEndpoint set it exports over OTLP/gRPC to that
// collector address instead and w is ignored. It registers itself as the
// global otel TracerProvider so any third-party instrumentation picks it
// up too.
func NewProvider(ctx context.Context, serviceName, otlpEndpoint string, w io.Writer) (*Provider, error) {
	exporter, err := newExporter(ctx, otlpEndpoint, w)
	if err != nil {
		return nil, err
	}

	res := resource.NewWithAttributes(semconv.SchemaURL,
		semconv.ServiceNameKey.String(serviceName),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return &Provider{tp: tp, tracer: tp.Tracer(tracerName)}, nil
}

func newExporter(ctx context.Context, otlpEndpoint string, w io.Writer) (sdktrace.SpanExporter, error) {
	if otlpEndpoint != "" {
		return otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(otlpEndpoint),
			otlptracegrpc.WithInsecure(),
		)
	}
	if w == nil {
		w = os.Stdout
	}
	return stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
}

// Shutdown flushes and stops the exporter. Call once on process exit.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.tp.Shutdown(ctx)
}

// tracer returns p's tracer, falling back to the global (no-op by
// default) tracer when p is nil so callers can pass around a *Provider
// that's optional without nil-checking at every call site.
func (p *Provider) tracerOrNoop() trace.Tracer {
	if p == nil {
		return otel.Tracer(tracerName)
	}
	return p.tracer
}

// StartJobSpan starts a span for one worker's processing of jobID/jobType
// (spec §4.2). Callers must End() the returned span and record the
// outcome with EndSpan. p may be nil (telemetry disabled), in which case
// a no-op span is returned.
func (p *Provider) StartJobSpan(ctx context.Context, jobType, jobID string) (context.Context, trace.Span) {
	return p.tracerOrNoop().Start(ctx, "job."+jobType,
		trace.WithAttributes(
			attribute.String("job.id", jobID),
			attribute.String("job.type", jobType),
		))
}

// StartScanSpan starts a span for one import source scan (spec §4.12). p
// may be nil (telemetry disabled), in which case a no-op span is
// returned.
func (p *Provider) StartScanSpan(ctx context.Context, sourceType, sourceID string) (context.Context, trace.Span) {
	return p.tracerOrNoop().Start(ctx, "scan."+sourceType,
		trace.WithAttributes(
			attribute.String("import_source.id", sourceID),
			attribute.String("import_source.type", sourceType),
		))
}

// EndSpan records err (if any) on span and ends it. Centralising this
// keeps the success/failure status convention consistent across every
// call site that opens a span.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

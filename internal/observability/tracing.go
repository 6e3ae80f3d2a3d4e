// Package observability provides OpenTelemetry tracing for Fracture.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName names the tracer every span of a run is started from.
const TracerName = "github.com/efebarandurmaz/fracture"

const serviceName = "fracture"

// Options select where run spans go.
type Options struct {
	Version     string
	Environment string

	// Endpoint is an OTLP gRPC collector such as localhost:4317. Without it and without
	// an Exporter, Setup installs nothing and spans stay no-ops.
	Endpoint string

	// SampleRate is the fraction of runs traced. 1 or more traces every run.
	SampleRate float64

	// Exporter replaces the OTLP exporter and receives spans synchronously.
	Exporter sdktrace.SpanExporter
}

// ShutdownFunc flushes buffered spans. It is safe to call when tracing is off.
type ShutdownFunc func(context.Context) error

// Setup installs the global tracer provider the run and stage spans are started from.
func Setup(ctx context.Context, opts Options) (ShutdownFunc, error) {
	export, err := spanProcessor(ctx, opts)
	if err != nil {
		return nil, err
	}
	if export == nil {
		return func(context.Context) error { return nil }, nil
	}

	attrs := []attribute.KeyValue{semconv.ServiceName(serviceName)}
	if opts.Version != "" {
		attrs = append(attrs, semconv.ServiceVersion(opts.Version))
	}
	if opts.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(opts.Environment))
	}
	res, err := resource.Merge(resource.Default(), resource.NewWithAttributes(semconv.SchemaURL, attrs...))
	if err != nil {
		return nil, fmt.Errorf("tracing resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		export,
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(opts.SampleRate)),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return provider.Shutdown, nil
}

func spanProcessor(ctx context.Context, opts Options) (sdktrace.TracerProviderOption, error) {
	if opts.Exporter != nil {
		return sdktrace.WithSyncer(opts.Exporter), nil
	}
	if opts.Endpoint == "" {
		return nil, nil
	}
	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(opts.Endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("otlp exporter %s: %w", opts.Endpoint, err)
	}
	return sdktrace.WithBatcher(exp), nil
}

func samplerFor(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(rate)
	}
}

func tracer() trace.Tracer { return otel.Tracer(TracerName) }

// Pipeline stages that get their own span.
const (
	StageBuild  = "build"
	StageDetect = "detect"
	StageWeak   = "weak_edges"
	StageRank   = "rank"
	StageScore  = "score"
	StageGates  = "gates"
	StageStore  = "store"
)

// StartRunSpan starts the root span of one analysis run.
func StartRunSpan(ctx context.Context, solutions int) (context.Context, trace.Span) {
	return tracer().Start(ctx, "fracture.analyze",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.Int("fracture.solutions", solutions)),
	)
}

// StartStageSpan starts a span for a single pipeline stage.
func StartStageSpan(ctx context.Context, stage string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "stage."+stage,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("fracture.stage", stage)),
	)
}

// StartStoreSpan starts a client span for persisting a graph to the graph database.
func StartStoreSpan(ctx context.Context, fingerprint string) (context.Context, trace.Span) {
	return tracer().Start(ctx, "stage."+StageStore,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("fracture.stage", StageStore),
			attribute.String("db.system", "neo4j"),
			attribute.String("fracture.graph.fingerprint", fingerprint),
		),
	)
}

// RecordBuildResult records graph size and input gaps on a span.
func RecordBuildResult(span trace.Span, projects, references, dangling, merged int) {
	span.SetAttributes(
		attribute.Int("graph.projects", projects),
		attribute.Int("graph.references", references),
		attribute.Int("graph.dangling_references", dangling),
		attribute.Int("graph.merged_projects", merged),
	)
}

// RecordCycleResult records cycle statistics on a span.
func RecordCycleResult(span trace.Span, cycles, largest int, participation float64) {
	span.SetAttributes(
		attribute.Int("cycles.count", cycles),
		attribute.Int("cycles.largest", largest),
		attribute.Float64("cycles.participation_rate", participation),
	)
}

// RecordScoreResult records scoring totals on a span.
func RecordScoreResult(span trace.Span, scored, fallbacks, hard int) {
	span.SetAttributes(
		attribute.Int("score.projects", scored),
		attribute.Int("score.fallback_metrics", fallbacks),
		attribute.Int("score.hard_projects", hard),
	)
}

// RecordGateResult records the quality gate verdict on a span.
func RecordGateResult(span trace.Span, passed bool, failed, warnings int) {
	span.SetAttributes(
		attribute.Bool("gates.passed", passed),
		attribute.Int("gates.failed", failed),
		attribute.Int("gates.warnings", warnings),
	)
	if !passed {
		span.SetStatus(codes.Error, fmt.Sprintf("%d gates failed", failed))
	}
}

// RecordError records an error on a span.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

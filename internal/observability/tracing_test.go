package observability

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// recordSpans installs an in-memory tracer provider for the duration of the test.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func attrOf(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestSetup_Disabled(t *testing.T) {
	prev := otel.GetTracerProvider()
	shutdown, err := Setup(context.Background(), Options{Version: "test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if otel.GetTracerProvider() != prev {
		t.Error("no endpoint should leave the global provider alone")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetup_Exporter(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	exp := tracetest.NewInMemoryExporter()
	shutdown, err := Setup(context.Background(), Options{
		Version:     "1.2.3",
		Environment: "ci",
		SampleRate:  1,
		Exporter:    exp,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, run := StartRunSpan(context.Background(), 1)
	_, stage := StartStageSpan(ctx, StageRank)
	stage.End()
	run.End()

	spans := exp.GetSpans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 exported spans, got %d", len(spans))
	}
	found := map[string]string{}
	for _, kv := range spans[1].Resource.Attributes() {
		found[string(kv.Key)] = kv.Value.Emit()
	}
	if found["service.name"] != "fracture" || found["service.version"] != "1.2.3" ||
		found["deployment.environment"] != "ci" {
		t.Errorf("unexpected resource attributes %v", found)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSamplerFor(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1.0, "AlwaysOnSampler"},
		{2.0, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{-1, "AlwaysOffSampler"},
		{0.5, "TraceIDRatioBased{0.5}"},
	}
	for _, tt := range tests {
		if got := samplerFor(tt.rate).Description(); got != tt.want {
			t.Errorf("rate %v: got %q, want %q", tt.rate, got, tt.want)
		}
	}
}

func TestStageSpansNestUnderRun(t *testing.T) {
	rec := recordSpans(t)

	ctx, run := StartRunSpan(context.Background(), 2)
	_, build := StartStageSpan(ctx, StageBuild)
	RecordBuildResult(build, 10, 14, 1, 2)
	build.End()
	run.End()

	spans := rec.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	stage, root := spans[0], spans[1]
	if stage.Name() != "stage.build" {
		t.Errorf("unexpected stage span name %q", stage.Name())
	}
	if stage.Parent().SpanID() != root.SpanContext().SpanID() {
		t.Error("stage span should be a child of the run span")
	}
	if v, ok := attrOf(stage, "graph.projects"); !ok || v.AsInt64() != 10 {
		t.Errorf("graph.projects = %v, %v", v, ok)
	}
	if v, ok := attrOf(root, "fracture.solutions"); !ok || v.AsInt64() != 2 {
		t.Errorf("fracture.solutions = %v, %v", v, ok)
	}
}

func TestRecordCycleAndScoreResult(t *testing.T) {
	rec := recordSpans(t)

	_, span := StartStageSpan(context.Background(), StageDetect)
	RecordCycleResult(span, 3, 5, 42.5)
	RecordScoreResult(span, 12, 4, 2)
	span.End()

	got := rec.Ended()[0]
	if v, _ := attrOf(got, "cycles.largest"); v.AsInt64() != 5 {
		t.Errorf("cycles.largest = %v", v)
	}
	if v, _ := attrOf(got, "cycles.participation_rate"); v.AsFloat64() != 42.5 {
		t.Errorf("cycles.participation_rate = %v", v)
	}
	if v, _ := attrOf(got, "score.hard_projects"); v.AsInt64() != 2 {
		t.Errorf("score.hard_projects = %v", v)
	}
}

func TestStartStoreSpan(t *testing.T) {
	rec := recordSpans(t)

	_, span := StartStoreSpan(context.Background(), "00ff")
	span.End()

	got := rec.Ended()[0]
	if v, _ := attrOf(got, "db.system"); v.AsString() != "neo4j" {
		t.Errorf("db.system = %v", v)
	}
	if v, _ := attrOf(got, "fracture.graph.fingerprint"); v.AsString() != "00ff" {
		t.Errorf("fingerprint = %v", v)
	}
}

func TestRecordGateResult(t *testing.T) {
	rec := recordSpans(t)

	_, ok := StartStageSpan(context.Background(), StageGates)
	RecordGateResult(ok, true, 0, 1)
	ok.End()

	_, bad := StartStageSpan(context.Background(), StageGates)
	RecordGateResult(bad, false, 2, 0)
	bad.End()

	spans := rec.Ended()
	if spans[0].Status().Code == codes.Error {
		t.Error("passing gates should not mark the span as error")
	}
	if spans[1].Status().Code != codes.Error {
		t.Error("failing gates should mark the span as error")
	}
}

func TestRecordError(t *testing.T) {
	rec := recordSpans(t)

	_, span := StartStageSpan(context.Background(), StageScore)
	RecordError(span, nil)
	RecordError(span, errors.New("boom"))
	span.End()

	got := rec.Ended()[0]
	if got.Status().Code != codes.Error || got.Status().Description != "boom" {
		t.Errorf("unexpected status %+v", got.Status())
	}
	if len(got.Events()) != 1 {
		t.Errorf("expected one exception event, got %d", len(got.Events()))
	}
}

func TestTracerName(t *testing.T) {
	if TracerName != "github.com/efebarandurmaz/fracture" {
		t.Errorf("unexpected tracer name %q", TracerName)
	}
}

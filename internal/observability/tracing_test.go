package observability

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestNewTracingDisabledIsNoop(t *testing.T) {
	tr, err := NewTracing(context.Background(), TracingConfig{}, nil)
	if err != nil {
		t.Fatalf("NewTracing: %v", err)
	}
	_, span := tr.Tracer().Start(context.Background(), "noop")
	if span.SpanContext().IsValid() {
		t.Fatalf("expected a noop span when tracing is disabled")
	}
	span.End()
	tr.Close(context.Background())

	var nilTracing *Tracing
	nilTracing.Close(context.Background())
	if _, span := nilTracing.Tracer().Start(context.Background(), "x"); span.SpanContext().IsValid() {
		t.Fatalf("nil Tracing should hand out noop spans")
	}
}

func TestNewTracingStdoutExportsRunAttributes(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	tr, err := NewTracing(context.Background(), TracingConfig{
		Enabled:     true,
		ServiceName: "gravsim-test",
		Exporter:    "stdout",
		SampleRatio: 1,
		Scenario:    "inner-solar-system",
		RunID:       "run-42",
		Output:      &buf,
	}, nil)
	if err != nil {
		t.Fatalf("NewTracing: %v", err)
	}

	_, span := tr.Tracer().Start(context.Background(), "SimulationEngine.Step")
	span.End()
	tr.Close(context.Background())

	out := buf.String()
	for _, want := range []string{"SimulationEngine.Step", "gravsim.scenario", "inner-solar-system", "gravsim.run_id", "run-42"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in exported span:\n%s", want, out)
		}
	}
}

func TestNewTracingRejectsUnknownExporter(t *testing.T) {
	if _, err := NewTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "zipkin"}, nil); err == nil {
		t.Fatalf("expected error for unsupported exporter")
	}
}

func TestNewSampler(t *testing.T) {
	cases := map[float64]string{
		1:   "AlwaysOnSampler",
		2:   "AlwaysOnSampler",
		0.5: "TraceIDRatioBased{0.5}",
		0:   "AlwaysOffSampler",
		-1:  "AlwaysOffSampler",
	}
	for ratio, want := range cases {
		if got := newSampler(ratio).Description(); !strings.Contains(got, want) {
			t.Fatalf("newSampler(%v) = %s, want %s", ratio, got, want)
		}
	}
}

func TestRunAttributesNamespace(t *testing.T) {
	attrs := runAttributes(TracingConfig{ServiceName: "svc", Namespace: "lab", Scenario: "earth-moon"})
	got := map[string]string{}
	for _, kv := range attrs {
		got[string(kv.Key)] = kv.Value.AsString()
	}
	if got["service.namespace"] != "lab" || got["lab.scenario"] != "earth-moon" {
		t.Fatalf("attributes = %v", got)
	}
	if _, ok := got["lab.run_id"]; ok {
		t.Fatalf("empty run id should not be exported: %v", got)
	}
}

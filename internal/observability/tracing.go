package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/signalsfoundry/gravity-simulator/internal/logging"
)

const (
	// DefaultNamespace is the service.namespace of every simulator process.
	DefaultNamespace = "gravsim"

	defaultOTLPEndpoint = "localhost:4317"
	shutdownTimeout     = 5 * time.Second
	instrumentationName = "github.com/signalsfoundry/gravity-simulator"
)

// TracingConfig selects the span exporter for one simulation run.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Namespace   string  // empty selects DefaultNamespace
	Exporter    string  // stdout | otlp
	Endpoint    string  // otlp collector host:port
	SampleRatio float64 // fraction of root spans kept, clamped to [0, 1]

	// Scenario and RunID become resource attributes on every span.
	Scenario string
	RunID    string

	// Output overrides the stdout exporter's destination.
	Output io.Writer
}

// Tracing owns the tracer provider of a run. The zero value and a nil
// *Tracing both trace nothing.
type Tracing struct {
	provider trace.TracerProvider
	shutdown func(context.Context) error
	log      logging.Logger
}

// NewTracing builds the provider described by cfg. When tracing is enabled
// the provider also becomes the otel global so library spans join the run.
func NewTracing(ctx context.Context, cfg TracingConfig, log logging.Logger) (*Tracing, error) {
	if log == nil {
		log = logging.Noop()
	}
	if !cfg.Enabled {
		log.Debug(ctx, "tracing disabled")
		return &Tracing{provider: noop.NewTracerProvider(), log: log}, nil
	}

	exp, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx, resource.WithAttributes(runAttributes(cfg)...))
	if err != nil {
		return nil, fmt.Errorf("tracing resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(newSampler(cfg.SampleRatio)),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info(ctx, "tracing enabled",
		logging.String("exporter", cfg.Exporter),
		logging.String("service_name", cfg.ServiceName),
		logging.Float("sample_ratio", cfg.SampleRatio),
	)
	return &Tracing{provider: tp, shutdown: tp.Shutdown, log: log}, nil
}

// Tracer returns the tracer the engine opens its per-tick spans on.
func (t *Tracing) Tracer() trace.Tracer {
	if t == nil || t.provider == nil {
		return noop.NewTracerProvider().Tracer(instrumentationName)
	}
	return t.provider.Tracer(instrumentationName)
}

// Close flushes buffered spans, giving up after five seconds. Flush errors
// are logged, not returned.
func (t *Tracing) Close(ctx context.Context) {
	if t == nil || t.shutdown == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := t.shutdown(ctx); err != nil {
		t.log.Warn(ctx, "tracing shutdown failed", logging.String("error", err.Error()))
	}
}

func runAttributes(cfg TracingConfig) []attribute.KeyValue {
	ns := cfg.Namespace
	if ns == "" {
		ns = DefaultNamespace
	}
	attrs := []attribute.KeyValue{
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.namespace", ns),
	}
	if cfg.Scenario != "" {
		attrs = append(attrs, attribute.String(ns+".scenario", cfg.Scenario))
	}
	if cfg.RunID != "" {
		attrs = append(attrs, attribute.String(ns+".run_id", cfg.RunID))
	}
	return attrs
}

func newSampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	case ratio <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

func newExporter(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(cfg.Exporter) {
	case "", "stdout":
		out := cfg.Output
		if out == nil {
			out = os.Stdout
		}
		return stdouttrace.New(
			stdouttrace.WithWriter(out),
			stdouttrace.WithPrettyPrint(),
			stdouttrace.WithoutTimestamps(),
		)
	case "otlp":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = defaultOTLPEndpoint
		}
		return otlptrace.New(ctx, otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		))
	default:
		return nil, fmt.Errorf("unsupported tracing exporter %q", cfg.Exporter)
	}
}

package observability

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// Sink is a named span exporter.
type Sink struct {
	Name     string
	Exporter trace.SpanExporter
}

// NewConsoleSink writes spans as JSON to w.
func NewConsoleSink(w io.Writer) (Sink, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return Sink{}, fmt.Errorf("creating console exporter: %w", err)
	}
	return Sink{Name: "console", Exporter: exporter}, nil
}

// NewRemoteSink creates the OTLP sink. The API key travels in the "api-key"
// header. The exporter is guarded by a circuit breaker.
func NewRemoteSink(ctx context.Context, cfg RemoteConfig, logger *zap.Logger) (Sink, error) {
	if !cfg.Enabled() {
		return Sink{}, fmt.Errorf("remote sink requires trace URL, API key and endpoint")
	}
	headers := map[string]string{"api-key": cfg.APIKey}

	var client otlptrace.Client
	switch cfg.Protocol {
	case ProtocolHTTP:
		opts := []otlptracehttp.Option{
			otlptracehttp.WithEndpointURL(cfg.TraceURL),
			otlptracehttp.WithHeaders(headers),
		}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		client = otlptracehttp.NewClient(opts...)
	default:
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(stripScheme(cfg.Endpoint)),
			otlptracegrpc.WithHeaders(headers),
		}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		client = otlptracegrpc.NewClient(opts...)
	}

	exporter, err := otlptrace.New(ctx, client)
	if err != nil {
		return Sink{}, fmt.Errorf("creating remote exporter: %w", err)
	}

	return Sink{
		Name:     "remote",
		Exporter: NewBreakerExporter("remote", exporter, logger),
	}, nil
}

// stripScheme removes http:// or https:// from an endpoint URL.
// The OTLP gRPC exporter expects host:port.
func stripScheme(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "https://")
	endpoint = strings.TrimPrefix(endpoint, "http://")
	return endpoint
}

// BreakerExporter skips exports while its backend keeps failing.
type BreakerExporter struct {
	next trace.SpanExporter
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerExporter wraps next in a circuit breaker that opens after five
// consecutive failures and probes again after a minute.
func NewBreakerExporter(name string, next trace.SpanExporter, logger *zap.Logger) *BreakerExporter {
	return &BreakerExporter{
		next: next,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    30 * time.Second,
			Timeout:     60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logger.Warn("Telemetry sink circuit breaker changed state",
					zap.String("sink", name),
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		}),
	}
}

// ExportSpans implements trace.SpanExporter.
func (e *BreakerExporter) ExportSpans(ctx context.Context, spans []trace.ReadOnlySpan) error {
	_, err := e.cb.Execute(func() (interface{}, error) {
		return nil, e.next.ExportSpans(ctx, spans)
	})
	return err
}

// Shutdown implements trace.SpanExporter.
func (e *BreakerExporter) Shutdown(ctx context.Context) error {
	return e.next.Shutdown(ctx)
}

// State returns the breaker state.
func (e *BreakerExporter) State() gobreaker.State {
	return e.cb.State()
}

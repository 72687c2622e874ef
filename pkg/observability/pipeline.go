// Package observability builds the tracing pipeline of the service: span
// creation for inbound requests and outbound calls, filtering, sampling,
// batched export to isolated sinks, and Prometheus metrics.
//
// A Pipeline is constructed once at startup and passed to the components
// that need it. It never touches the OpenTelemetry globals.
package observability

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.34.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "contact-service/pkg/observability"

// Pipeline owns the tracer provider, the batch processor and the filters.
type Pipeline struct {
	cfg        Config
	provider   *sdktrace.TracerProvider
	tracer     trace.Tracer
	processor  *BatchProcessor
	propagator propagation.TextMapPropagator
	urlFilter  Filter
	hostFilter Filter
	logger     *zap.Logger
}

// Option customises a Pipeline.
type Option func(*options)

type options struct {
	sampler       sdktrace.Sampler
	sinks         []Sink
	consoleWriter io.Writer
	metrics       *Metrics
}

// WithSampler replaces the configured sampler.
func WithSampler(s sdktrace.Sampler) Option {
	return func(o *options) { o.sampler = s }
}

// WithSinks adds sinks next to the configured ones.
func WithSinks(sinks ...Sink) Option {
	return func(o *options) { o.sinks = append(o.sinks, sinks...) }
}

// WithConsoleWriter redirects the console sink, stdout by default.
func WithConsoleWriter(w io.Writer) Option {
	return func(o *options) { o.consoleWriter = w }
}

// WithMetrics records processor counters on m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// New builds the pipeline from cfg. The flush loop does not run until Start.
func New(ctx context.Context, cfg Config, logger *zap.Logger, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telemetry config: %w", err)
	}

	o := &options{consoleWriter: os.Stdout}
	for _, opt := range opts {
		opt(o)
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var sinks []Sink
	if cfg.Console {
		console, err := NewConsoleSink(o.consoleWriter)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, console)
	}
	if cfg.Remote.Enabled() {
		remote, err := NewRemoteSink(ctx, cfg.Remote, logger)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, remote)
		logger.Info("Remote telemetry sink enabled",
			zap.String("endpoint", cfg.Remote.Endpoint),
			zap.String("protocol", cfg.Remote.Protocol))
	} else {
		logger.Info("Remote telemetry sink disabled, connection settings incomplete")
	}
	sinks = append(sinks, o.sinks...)

	sampler := o.sampler
	if sampler == nil {
		sampler = newSampler(cfg)
	}

	processor := NewBatchProcessor(cfg.Batch, sinks, logger, o.metrics)
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(processor),
		sdktrace.WithSampler(sampler),
		sdktrace.WithResource(res),
	)

	// The remote sink's own hosts are never traced to avoid feedback loops
	excludeHosts := append(append([]string{}, cfg.ExcludeHosts...), cfg.Remote.Hosts()...)

	return &Pipeline{
		cfg:       cfg,
		provider:  provider,
		tracer:    provider.Tracer(instrumentationName),
		processor: processor,
		propagator: propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
		urlFilter:  NewFilter(cfg.ExcludeURLs...),
		hostFilter: NewFilter(excludeHosts...),
		logger:     logger,
	}, nil
}

// newResource describes the service as "<app>.<env>".
func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	res, err := resource.New(ctx,
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName()),
			attribute.String("environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}
	return res, nil
}

func newSampler(cfg Config) sdktrace.Sampler {
	switch cfg.Sampler {
	case SamplerNever:
		return sdktrace.NeverSample()
	case SamplerRatio:
		// Honour the caller's decision for propagated traces
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))
	default:
		return sdktrace.AlwaysSample()
	}
}

// Start launches the batch flush loop and the sink workers.
func (p *Pipeline) Start() {
	p.processor.Start()
}

// Shutdown flushes buffered spans within ctx and stops every sink.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	return p.provider.Shutdown(ctx)
}

// ForceFlush exports every buffered span.
func (p *Pipeline) ForceFlush(ctx context.Context) error {
	return p.provider.ForceFlush(ctx)
}

// Tracer returns the pipeline's tracer.
func (p *Pipeline) Tracer() trace.Tracer {
	return p.tracer
}

// Processor exposes the batch processor.
func (p *Pipeline) Processor() *BatchProcessor {
	return p.processor
}

// ExcludesHost reports whether outbound calls to host are left untraced.
func (p *Pipeline) ExcludesHost(host string) bool {
	return p.hostFilter.Excludes(host)
}

// Config returns the configuration the pipeline was built from.
func (p *Pipeline) Config() Config {
	return p.cfg
}

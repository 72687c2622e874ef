package observability

import (
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"contact-service/pkg/pipeline"
)

// Metrics holds the Prometheus collectors of the service.
type Metrics struct {
	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Telemetry pipeline metrics
	SpansEnqueued prometheus.Counter
	SpansDropped  *prometheus.CounterVec
	SpanExports   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latencies in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		SpansEnqueued: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "telemetry_spans_enqueued_total",
				Help:      "Total number of closed spans accepted into the batch buffer",
			},
		),
		SpansDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "telemetry_spans_dropped_total",
				Help:      "Total number of spans dropped before export; sink_busy counts once per skipped sink",
			},
			[]string{"reason"},
		),
		SpanExports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "telemetry_exports_total",
				Help:      "Total number of batch exports per sink",
			},
			[]string{"sink", "result"},
		),
	}

	reg.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.SpansEnqueued,
		m.SpansDropped,
		m.SpanExports,
	)

	return m
}

// Drop reasons
const (
	dropQueueFull = "queue_full"
	dropSinkBusy  = "sink_busy"
	dropShutdown  = "shutdown"
)

func (m *Metrics) enqueued() {
	if m != nil {
		m.SpansEnqueued.Inc()
	}
}

func (m *Metrics) dropped(reason string, n int) {
	if m != nil && n > 0 {
		m.SpansDropped.WithLabelValues(reason).Add(float64(n))
	}
}

func (m *Metrics) exported(sink string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.SpanExports.WithLabelValues(sink, result).Inc()
}

// Stage returns a pipeline stage recording request count and latency per route.
func (m *Metrics) Stage() pipeline.Stage {
	return pipeline.StageFunc(func(x *pipeline.Exchange) (pipeline.Exit, error) {
		start := time.Now()
		return func(x *pipeline.Exchange, err error) error {
			route := "unknown"
			if rctx := chi.RouteContext(x.Request.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}

			// A failure still in flight will be rendered as a 500 further out
			status := x.Status()
			if err != nil && !x.Written() {
				status = 500
			}

			m.HTTPRequests.WithLabelValues(x.Request.Method, route, strconv.Itoa(status)).Inc()
			m.HTTPDuration.WithLabelValues(x.Request.Method, route).Observe(time.Since(start).Seconds())
			return err
		}, nil
	})
}

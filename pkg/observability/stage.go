package observability

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	apperrors "contact-service/pkg/errors"
	"contact-service/pkg/pipeline"
)

// Stage opens a server span per inbound request. Requests whose full URL
// matches the exclude list are not traced. The span records the request's
// failure, even one an inner stage already turned into a response, and is
// ended only after every inner stage has exited.
func (p *Pipeline) Stage() pipeline.Stage {
	return pipeline.StageFunc(func(x *pipeline.Exchange) (pipeline.Exit, error) {
		r := x.Request
		if p.urlFilter.Excludes(fullURL(r)) {
			return nil, nil
		}

		// Extract trace context from incoming headers for distributed tracing
		ctx := p.propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

		ctx, span := p.tracer.Start(ctx, r.Method+" "+r.URL.Path,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", r.Method),
				attribute.String("http.url", fullURL(r)),
				attribute.String("http.target", r.URL.Path),
				attribute.String("http.host", r.Host),
				attribute.String("http.scheme", scheme(r)),
				attribute.String("http.user_agent", r.UserAgent()),
				attribute.String("http.request_id", r.Header.Get("X-Request-ID")),
			),
		)

		if sc := span.SpanContext(); sc.HasTraceID() {
			x.Writer.Header().Set("X-Trace-ID", sc.TraceID().String())
		}
		x.WithContext(ctx)

		return func(x *pipeline.Exchange, err error) error {
			defer span.End()

			if rctx := chi.RouteContext(x.Request.Context()); rctx != nil {
				if route := rctx.RoutePattern(); route != "" {
					span.SetName(x.Request.Method + " " + route)
					span.SetAttributes(attribute.String("http.route", route))
				}
			}
			span.SetAttributes(
				attribute.Int("http.status_code", x.Status()),
				attribute.Int("http.response_size", x.Writer.BytesWritten()),
			)

			switch {
			case x.Failure != nil:
				span.RecordError(x.Failure, trace.WithAttributes(
					attribute.String("error.kind", apperrors.KindOf(x.Failure).String()),
				))
				span.SetStatus(codes.Error, apperrors.Message(x.Failure))
			case x.Request.Context().Err() != nil:
				span.RecordError(x.Request.Context().Err())
				span.SetStatus(codes.Error, "request cancelled")
			case x.Status() >= http.StatusInternalServerError:
				span.SetStatus(codes.Error, http.StatusText(x.Status()))
			}
			return err
		}, nil
	})
}

func scheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

// fullURL rebuilds the absolute request URL.
func fullURL(r *http.Request) string {
	if r.URL.IsAbs() {
		return r.URL.String()
	}
	return fmt.Sprintf("%s://%s%s", scheme(r), r.Host, r.URL.RequestURI())
}

package middleware

import (
	"context"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"contact-service/pkg/pipeline"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// RequestID tags every request with an id, reusing the caller's when sent.
// The id is stored under chi's request id key so chi helpers can read it.
func RequestID() pipeline.Stage {
	return pipeline.StageFunc(func(x *pipeline.Exchange) (pipeline.Exit, error) {
		id := x.Request.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}

		x.Request.Header.Set(RequestIDHeader, id)
		x.Writer.Header().Set(RequestIDHeader, id)
		x.WithContext(context.WithValue(x.Request.Context(), chimiddleware.RequestIDKey, id))
		return nil, nil
	})
}

// RequestIDFromContext returns the id set by RequestID, or "".
func RequestIDFromContext(ctx context.Context) string {
	return chimiddleware.GetReqID(ctx)
}

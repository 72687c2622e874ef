package middleware

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	apperrors "contact-service/pkg/errors"
	"contact-service/pkg/pipeline"
)

// ErrorClassifier is the failure boundary of the request pipeline. It turns
// every failure that reaches it into a JSON response whose status comes from
// a kind lookup table.
type ErrorClassifier struct {
	statuses map[apperrors.Kind]int
	logger   *zap.Logger
}

// ClassifierOption customises an ErrorClassifier.
type ClassifierOption func(*ErrorClassifier)

// WithStatus maps kind to status, replacing the default mapping.
func WithStatus(kind apperrors.Kind, status int) ClassifierOption {
	return func(c *ErrorClassifier) {
		c.statuses[kind] = status
	}
}

// NewErrorClassifier creates a classifier with the default status table.
func NewErrorClassifier(logger *zap.Logger, opts ...ClassifierOption) *ErrorClassifier {
	c := &ErrorClassifier{
		statuses: map[apperrors.Kind]int{
			apperrors.KindMalformedRequest: http.StatusBadRequest,
			apperrors.KindValidation:       http.StatusBadRequest,
			apperrors.KindUnauthorized:     http.StatusUnauthorized,
			apperrors.KindNotFound:         http.StatusNotFound,
			apperrors.KindUnclassified:     http.StatusInternalServerError,
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StatusFor returns the response status for err.
func (c *ErrorClassifier) StatusFor(err error) int {
	if status, ok := c.statuses[apperrors.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

type errorResponse struct {
	Message *string `json:"message"`
}

// Stage returns the pipeline stage. Its exit logs the failure once, writes
// the response and stops the failure from propagating.
func (c *ErrorClassifier) Stage() pipeline.Stage {
	return pipeline.StageFunc(func(x *pipeline.Exchange) (pipeline.Exit, error) {
		return func(x *pipeline.Exchange, err error) error {
			if err == nil {
				return nil
			}

			r := x.Request
			c.logger.Error("Request failed",
				zap.Error(err),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("request_id", RequestIDFromContext(r.Context())),
				zap.String("kind", apperrors.KindOf(err).String()),
			)

			// Headers already went out; the status can no longer change
			if x.Written() {
				return nil
			}

			body := errorResponse{}
			if msg := apperrors.Message(err); msg != "" {
				body.Message = &msg
			}

			x.Writer.Header().Set("Content-Type", "application/json")
			x.Writer.WriteHeader(c.StatusFor(err))
			if encErr := json.NewEncoder(x.Writer).Encode(body); encErr != nil {
				c.logger.Warn("Failed to write error response", zap.Error(encErr))
			}
			return nil
		}, nil
	})
}

package middleware

import (
	"time"

	"go.uber.org/zap"

	"contact-service/pkg/pipeline"
)

// AccessLog logs one entry per request once the inner stages have exited.
func AccessLog(logger *zap.Logger) pipeline.Stage {
	return pipeline.StageFunc(func(x *pipeline.Exchange) (pipeline.Exit, error) {
		start := time.Now()

		return func(x *pipeline.Exchange, err error) error {
			r := x.Request
			logger.Info("HTTP Request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", x.Status()),
				zap.Int("bytes", x.Writer.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("requestID", RequestIDFromContext(r.Context())),
				zap.String("remoteAddr", r.RemoteAddr),
				zap.String("userAgent", r.UserAgent()),
			)
			return err
		}, nil
	})
}

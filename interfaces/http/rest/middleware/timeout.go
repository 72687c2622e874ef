package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"contact-service/pkg/pipeline"
)

// ErrRequestTimeout is reported when the handler ran out of time without
// writing a response.
var ErrRequestTimeout = errors.New("request timed out")

// Timeout bounds the context seen by the stages below and the handler.
// The outer stages get the original request back on exit, so a deadline hit
// here is not mistaken for a client cancellation.
func Timeout(d time.Duration) pipeline.Stage {
	return pipeline.StageFunc(func(x *pipeline.Exchange) (pipeline.Exit, error) {
		if d <= 0 {
			return nil, nil
		}

		orig := x.Request
		ctx, cancel := context.WithTimeout(orig.Context(), d)
		x.WithContext(ctx)

		return func(x *pipeline.Exchange, err error) error {
			expired := errors.Is(ctx.Err(), context.DeadlineExceeded)
			cancel()
			x.Request = orig

			if err == nil && expired && !x.Written() {
				return fmt.Errorf("%w after %s", ErrRequestTimeout, d)
			}
			return err
		}, nil
	})
}

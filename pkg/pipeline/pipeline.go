// Package pipeline composes request-handling stages around a core handler.
//
// A Chain runs an ordered list of stages. Each stage's Enter hook runs
// before the core handler and returns an Exit hook; the chain keeps the exit
// hooks on an explicit stack and unwinds them in reverse order once the core
// handler has returned. Every exit receives the failure produced by the
// layers below it and returns the failure it passes upward, so a stage that
// handles a failure returns nil.
//
//	chain := pipeline.New(core, telemetryStage, classifierStage, timeoutStage)
//	http.ListenAndServe(addr, chain)
package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	apperrors "contact-service/pkg/errors"
)

// Exchange carries one request through the chain.
type Exchange struct {
	// Writer records the status and size of the response.
	Writer middleware.WrapResponseWriter

	// Request is the current request. Stages replace it through WithContext.
	Request *http.Request

	// Failure is the first failure that escaped the core handler or a stage.
	// It is kept after a stage handles it so outer stages can observe it.
	Failure error

	pending error
}

// WithContext replaces the request context for the stages and core below.
func (x *Exchange) WithContext(ctx context.Context) {
	x.Request = x.Request.WithContext(ctx)
}

// Status returns the response status, 200 when the handler wrote nothing
// explicit.
func (x *Exchange) Status() int {
	if status := x.Writer.Status(); status != 0 {
		return status
	}
	return http.StatusOK
}

// Written reports whether a response header has been sent.
func (x *Exchange) Written() bool {
	return x.Writer.Status() != 0
}

// Exit is the second half of a stage. It gets the failure from below and
// returns the failure to pass upward.
type Exit func(x *Exchange, err error) error

// Stage is one layer of the pipeline.
//
// Enter may fail; the stages below it and the core handler are then skipped
// and the failure is given to the exits of the stages already entered. A
// stage whose Enter failed is not exited. A nil Exit means the stage has no
// exit work.
type Stage interface {
	Enter(x *Exchange) (Exit, error)
}

// StageFunc adapts a function to the Stage interface.
type StageFunc func(x *Exchange) (Exit, error)

// Enter calls f(x).
func (f StageFunc) Enter(x *Exchange) (Exit, error) {
	return f(x)
}

// Chain is an http.Handler running stages around a core handler.
type Chain struct {
	core   http.Handler
	stages []Stage
}

// New creates a chain. Stages are listed outermost first.
func New(core http.Handler, stages ...Stage) *Chain {
	return &Chain{core: core, stages: stages}
}

// Stages returns the number of stages in the chain.
func (c *Chain) Stages() int {
	return len(c.stages)
}

type exchangeKey struct{}

// ServeHTTP implements http.Handler.
func (c *Chain) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	// A route context created here outlives chi's routing, so outer stages
	// can read the matched route pattern after the core returns.
	if chi.RouteContext(ctx) == nil {
		ctx = context.WithValue(ctx, chi.RouteCtxKey, chi.NewRouteContext())
	}

	x := &Exchange{Writer: middleware.NewWrapResponseWriter(w, r.ProtoMajor)}
	x.Request = r.WithContext(context.WithValue(ctx, exchangeKey{}, x))

	exits := make([]Exit, 0, len(c.stages))
	var err error
	for _, stage := range c.stages {
		exit, enterErr := stage.Enter(x)
		if enterErr != nil {
			err = enterErr
			break
		}
		exits = append(exits, exit)
	}

	if err == nil {
		err = c.serveCore(x)
	}
	if err != nil && x.Failure == nil {
		x.Failure = err
	}

	for i := len(exits) - 1; i >= 0; i-- {
		if exits[i] == nil {
			continue
		}
		err = c.exit(exits[i], x, err)
		if err != nil && x.Failure == nil {
			x.Failure = err
		}
	}
}

// serveCore runs the core handler and turns a panic into a failure.
func (c *Chain) serveCore(x *Exchange) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			err = &PanicError{Value: rec, Stack: string(debug.Stack())}
		}
	}()

	c.core.ServeHTTP(x.Writer, x.Request)
	return x.pending
}

// exit runs one exit hook. A panicking exit becomes a failure for the next
// stage up instead of tearing down the connection.
func (c *Chain) exit(fn Exit, x *Exchange, in error) (out error) {
	defer func() {
		if rec := recover(); rec != nil {
			out = &PanicError{Value: rec, Stack: string(debug.Stack())}
		}
	}()
	return fn(x, in)
}

// PanicError is a recovered panic.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Fail reports a handler failure to the chain serving r. It returns false
// when r is not served by a chain.
func Fail(r *http.Request, err error) bool {
	x, ok := r.Context().Value(exchangeKey{}).(*Exchange)
	if !ok {
		return false
	}
	if x.pending == nil {
		x.pending = err
	}
	return true
}

// HandlerFunc is an HTTP handler that reports failures by returning them.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Handle adapts fn so it can be registered on a router. A returned failure
// is handed to the chain; outside a chain it becomes a bare 500.
func Handle(fn HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}
		if !Fail(r, err) {
			http.Error(w, apperrors.Message(err), http.StatusInternalServerError)
		}
	}
}

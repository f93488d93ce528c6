package middleware

import "context"

// Attempt describes the attempt being executed.
type Attempt struct {
	JobID       string
	Feature     string
	Command     string
	Number      int
	MaxAttempts int
}

// Handler is the terminal function that runs the unit of work.
type Handler func(ctx context.Context) error

// Middleware wraps a Handler with cross-cutting logic. It receives the
// attempt being executed and the next handler to call.
type Middleware func(ctx context.Context, a Attempt, next Handler) error

// Chain composes multiple middleware into a single Middleware.
//
// Example: Chain(logging, recover, tracing) executes as:
//
//	logging → recover → tracing → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, a Attempt, next Handler) error {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) error {
				return mw(ctx, a, prev)
			}
		}
		return h(ctx)
	}
}

package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
)

// Recover returns middleware that recovers from panics in the handler chain.
// Panics are converted to errors and logged with a stack trace.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, a Attempt, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("unit of work panicked",
					slog.String("job_id", a.JobID),
					slog.Int("attempt", a.Number),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				retErr = fmt.Errorf("panic: %v", r)
			}
		}()
		return next(ctx)
	}
}

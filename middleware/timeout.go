package middleware

import (
	"context"
	"time"
)

// Timeout returns middleware that bounds each attempt with d. A zero or
// negative d disables it. Work that ignores its context still runs to
// completion; the deadline only reaches code that watches ctx.
func Timeout(d time.Duration) Middleware {
	return func(ctx context.Context, _ Attempt, next Handler) error {
		if d <= 0 {
			return next(ctx)
		}
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return next(ctx)
	}
}

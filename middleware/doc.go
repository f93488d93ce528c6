// Package middleware provides composable middleware around each attempt
// of a unit of work.
//
// A [Middleware] wraps one attempt. Middleware are composed into a chain with
// [Chain] and applied right-to-left: the first middleware in the slice is the
// outermost wrapper.
//
//	// logging → recover → work
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging]: logs attempt start, duration and outcome
//   - [Recover]: converts panics into attempt errors so they are retried like any failure
//   - [Timeout]: bounds a single attempt
//   - [Tracing]: wraps the attempt in an OpenTelemetry span
//   - [Metrics]: records per-attempt duration and outcome with OpenTelemetry instruments
//
// Middleware MUST call next to continue the chain unless intentionally
// short-circuiting.
package middleware

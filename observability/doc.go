// Package observability exposes the Prometheus metrics of a sodmaster
// process: job tallies and durations by feature and status, audit events
// by c-unit and severity, guardrail violations, and guardrail evaluation
// time.
//
// Each Metrics value owns its own registry, so tests and embedded
// instances never collide on global state. Serve it with [Metrics.Handler].
//
// For per-attempt tracing and OpenTelemetry metrics, see the middleware
// package: middleware.Tracing() and middleware.Metrics().
package observability

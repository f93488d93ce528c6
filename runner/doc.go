// Package runner executes units of work against job records.
//
// Submit resolves idempotency, creates and accepts the record, and hands
// execution to a scheduler so the caller returns at once. The detached
// execution moves the record to running, applies the retry policy, writes
// the terminal status, and reports every transition through logs,
// metrics, audit events and alerts.
//
// Only errors returned (or panics raised) by the unit of work are
// retried. A store failure during execution ends the job: it is logged,
// and the runner makes a best-effort attempt to mark the record failed.
package runner

// Package sodmaster is the job orchestration and audit core of the
// sodmaster backend. Feature routes hand their work to a runner, poll the
// job store for results, and report what happened through the audit trail.
// Guardrails watch the trail and raise violations that fan out to logs,
// metrics and alert webhooks.
//
// # Layout
//
//	job/         job record, status machine and the Store contract
//	store/       backend selection plus memory, redis and postgres stores
//	runner/      idempotent submission, retries and SLO observation
//	audit/       audit events, c-units and the event bus
//	guardrail/   rule engine subscribed to the bus
//	trail/       audit trail facade with history and sinks
//	alert/       outbound webhook notifier
//	api/         HTTP surface
//
// The root package holds the shared sentinel errors and the process
// configuration loaded from the environment.
package sodmaster

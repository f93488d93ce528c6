package guardrail

import "github.com/sodmaster111/sodmaster/audit"

// UnknownFailure is the reason used when a failure event carries none.
const UnknownFailure = "Unknown failure"

// JobsCUnit is the c-unit of jobs that no feature claims. Failures of
// feature jobs are raised by that feature's own guardrail.
const JobsCUnit = "core.jobs"

// Defaults returns the built-in guardrails.
func Defaults() []Guardrail {
	return []Guardrail{
		{
			ID:          "job-failure",
			Description: "Failed jobs raise a guardrail violation",
			Severity:    audit.SeverityHigh,
			Predicate:   All(NameIs(audit.ActionJobFailed), CUnitIs(JobsCUnit)),
			Reason:      PayloadReason("error", UnknownFailure),
		},
		{
			ID:          "cgo-job-failure",
			Description: "CGO job failures must raise a guardrail violation",
			Severity:    audit.SeverityHigh,
			Predicate:   NameIs("cgo.job.failed"),
			Reason:      PayloadReason("error", UnknownFailure),
		},
		{
			ID:          "a2a-command-failure",
			Description: "A2A command failures trigger guardrail notifications",
			Severity:    audit.SeverityHigh,
			Predicate:   NameIs("a2a.command.failed"),
			Reason:      PayloadReason("reason", UnknownFailure),
		},
		{
			ID:          "store-unreachable",
			Description: "Losing the persistent job store is an operations incident",
			Severity:    audit.SeverityCritical,
			Predicate:   NameIs(audit.ActionStoreUnreachable),
			Reason:      PayloadReason("error", "job store unreachable"),
		},
	}
}

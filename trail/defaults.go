package trail

import (
	"github.com/sodmaster111/sodmaster/audit"
	"github.com/sodmaster111/sodmaster/guardrail"
)

// Default c-unit ids.
const (
	CUnitJobs = guardrail.JobsCUnit
	CUnitA2A  = "core.a2a"
	CUnitCGO  = "core.cgo"
	CUnitOps  = "core.ops"
)

// DefaultCUnits returns the built-in c-unit catalog.
func DefaultCUnits() []audit.CUnit {
	return []audit.CUnit{
		{
			ID:          CUnitJobs,
			Name:        "Jobs",
			Description: "Background job lifecycle",
			Owners:      []string{"platform"},
		},
		{
			ID:          CUnitA2A,
			Name:        "Agent-to-Agent Gateway",
			Description: "Inter-agent command dispatch",
			Owners:      []string{"platform"},
		},
		{
			ID:          CUnitCGO,
			Name:        "CGO Marketing",
			Description: "Marketing campaign orchestration via CGO Crew",
			Owners:      []string{"cgo", "ops"},
		},
		{
			ID:          CUnitOps,
			Name:        "Operations",
			Description: "Platform operations and observability",
			Owners:      []string{"ops"},
		},
	}
}

// NewDefault builds a Trail with the default catalog and guardrails,
// followed by any extra options.
func NewDefault(opts ...Option) (*Trail, error) {
	base := []Option{
		WithCUnits(DefaultCUnits()...),
		WithGuardrails(guardrail.Defaults()...),
	}
	return New(append(base, opts...)...)
}

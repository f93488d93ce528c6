package guardrail_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sodmaster111/sodmaster/audit"
	"github.com/sodmaster111/sodmaster/guardrail"
	"github.com/sodmaster111/sodmaster/job"
)

const rulesYAML = `
guardrails:
  - id: payment-declined
    description: Declined payments above the review threshold
    severity: critical
    match:
      name_prefix: payments.
      c_unit: core.payments
      payload:
        status: declined
        card.network: visa
    reason_path: decline.message
    reason_default: declined without message
  - id: noisy-warnings
    severity: warning
    match:
      min_severity: warn
      payload_exists: [trace_id]
    reason: warning with trace
`

func TestParse_CompilesRules(t *testing.T) {
	rules, err := guardrail.Parse([]byte(rulesYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("got %d rules, want 2", len(rules))
	}
	if rules[0].Severity != audit.SeverityCritical || rules[1].Severity != audit.SeverityWarn {
		t.Errorf("severities = %s, %s", rules[0].Severity, rules[1].Severity)
	}
}

func TestParse_PayloadMatching(t *testing.T) {
	rules, err := guardrail.Parse([]byte(rulesYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	declined := rules[0]

	match := audit.NewEvent("payments.charge", "core.payments", audit.WithPayload(job.Document{
		"status":  "declined",
		"card":    map[string]any{"network": "visa"},
		"decline": map[string]any{"message": "insufficient funds"},
	}))
	v, ok := declined.Evaluate(match)
	if !ok {
		t.Fatal("expected rule to match")
	}
	if info, _ := v.Violation(); info.Reason != "insufficient funds" {
		t.Errorf("reason = %q", info.Reason)
	}

	noMessage := audit.NewEvent("payments.charge", "core.payments", audit.WithPayload(job.Document{
		"status": "declined",
		"card":   map[string]any{"network": "visa"},
	}))
	v, ok = declined.Evaluate(noMessage)
	if !ok {
		t.Fatal("expected rule to match without message")
	}
	if info, _ := v.Violation(); info.Reason != "declined without message" {
		t.Errorf("reason = %q", info.Reason)
	}

	for name, evt := range map[string]audit.Event{
		"wrong cunit":   audit.NewEvent("payments.charge", "core.ops", audit.WithPayload(job.Document{"status": "declined", "card": map[string]any{"network": "visa"}})),
		"wrong status":  audit.NewEvent("payments.charge", "core.payments", audit.WithPayload(job.Document{"status": "ok", "card": map[string]any{"network": "visa"}})),
		"wrong prefix":  audit.NewEvent("refunds.charge", "core.payments", audit.WithPayload(job.Document{"status": "declined", "card": map[string]any{"network": "visa"}})),
		"missing field": audit.NewEvent("payments.charge", "core.payments", audit.WithPayload(job.Document{"status": "declined"})),
	} {
		if _, ok := declined.Evaluate(evt); ok {
			t.Errorf("%s: rule matched unexpectedly", name)
		}
	}
}

func TestParse_SeverityAndExists(t *testing.T) {
	rules, err := guardrail.Parse([]byte(rulesYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	noisy := rules[1]

	hit := audit.NewEvent("x", "core.ops", audit.WithSeverity(audit.SeverityHigh), audit.WithPayload(job.Document{"trace_id": "t"}))
	if v, ok := noisy.Evaluate(hit); !ok {
		t.Fatal("expected match")
	} else if info, _ := v.Violation(); info.Reason != "warning with trace" {
		t.Errorf("reason = %q", info.Reason)
	}

	if _, ok := noisy.Evaluate(audit.NewEvent("x", "core.ops", audit.WithPayload(job.Document{"trace_id": "t"}))); ok {
		t.Error("info event matched min_severity warn")
	}
}

func TestParse_Errors(t *testing.T) {
	tests := map[string]string{
		"bad yaml":     "guardrails: [",
		"bad severity": "guardrails:\n  - id: x\n    severity: loud\n    match: {name: a}\n",
		"empty match":  "guardrails:\n  - id: x\n",
		"missing id":   "guardrails:\n  - match: {name: a}\n",
	}
	for name, doc := range tests {
		if _, err := guardrail.Parse([]byte(doc)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoadFile(t *testing.T) {
	rules, err := guardrail.LoadFile("")
	if err != nil || rules != nil {
		t.Fatalf("empty path: %v %v", rules, err)
	}

	path := filepath.Join(t.TempDir(), "guardrails.yaml")
	if err := os.WriteFile(path, []byte(rulesYAML), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	rules, err = guardrail.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("got %d rules, want 2", len(rules))
	}

	if _, err := guardrail.LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

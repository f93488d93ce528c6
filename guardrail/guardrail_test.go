package guardrail_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sodmaster111/sodmaster"
	"github.com/sodmaster111/sodmaster/audit"
	"github.com/sodmaster111/sodmaster/guardrail"
	"github.com/sodmaster111/sodmaster/job"
)

type capture struct {
	mu     sync.Mutex
	events []audit.Event
}

func (c *capture) Publish(_ context.Context, evt audit.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
}

func TestEngine_PublishesViolation(t *testing.T) {
	pub := &capture{}
	e := guardrail.NewEngine(pub)
	for _, g := range guardrail.Defaults() {
		if err := e.Register(g); err != nil {
			t.Fatalf("Register(%s): %v", g.ID, err)
		}
	}

	evt := audit.NewEvent(audit.ActionJobFailed, "core.jobs",
		audit.WithActor("runner"),
		audit.WithSubject("job-1"),
		audit.WithPayload(job.Document{"error": "boom"}),
	)
	if err := e.Handle(context.Background(), evt); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(pub.events) != 1 {
		t.Fatalf("published %d violations, want 1", len(pub.events))
	}
	v := pub.events[0]
	info, ok := v.Violation()
	if !ok || info.GuardrailID != "job-failure" || info.Reason != "boom" {
		t.Fatalf("violation = %+v", info)
	}
	if v.Severity() != audit.SeverityHigh || v.Subject() != "job-1" || v.Actor() != "runner" {
		t.Errorf("violation fields: %s %s %s", v.Severity(), v.Subject(), v.Actor())
	}
	if v.Payload()["event"] != audit.ActionJobFailed {
		t.Errorf("payload event = %v", v.Payload()["event"])
	}
}

func TestEngine_IgnoresViolations(t *testing.T) {
	pub := &capture{}
	e := guardrail.NewEngine(pub)
	_ = e.Register(guardrail.Guardrail{
		ID:        "everything",
		Severity:  audit.SeverityWarn,
		Predicate: func(audit.Event) bool { return true },
	})

	orig := audit.NewEvent("x", "core.jobs")
	violation := audit.NewViolation(orig, "other", "", audit.SeverityHigh)

	if got := e.Evaluate(violation); len(got) != 0 {
		t.Fatalf("violation re-evaluated into %d events", len(got))
	}
}

func TestEngine_EveryMatchingRuleFires(t *testing.T) {
	e := guardrail.NewEngine(&capture{})
	for _, id := range []string{"a", "b", "c"} {
		_ = e.Register(guardrail.Guardrail{
			ID:        id,
			Severity:  audit.SeverityWarn,
			Predicate: guardrail.NameIs("x"),
		})
	}

	got := e.Evaluate(audit.NewEvent("x", "core.jobs"))
	if len(got) != 3 {
		t.Fatalf("got %d violations, want 3", len(got))
	}
	for i, want := range []string{"a", "b", "c"} {
		if info, _ := got[i].Violation(); info.GuardrailID != want {
			t.Errorf("violation %d from %s, want %s", i, info.GuardrailID, want)
		}
	}
}

func TestEngine_IsolatesPanickingRule(t *testing.T) {
	var observed []string
	e := guardrail.NewEngine(&capture{}, guardrail.WithObserver(func(id string, _ time.Duration) {
		observed = append(observed, id)
	}))
	_ = e.Register(guardrail.Guardrail{
		ID:        "broken",
		Severity:  audit.SeverityHigh,
		Predicate: func(audit.Event) bool { panic("bad rule") },
	})
	_ = e.Register(guardrail.Guardrail{
		ID:        "healthy",
		Severity:  audit.SeverityHigh,
		Predicate: guardrail.NameIs("x"),
	})

	got := e.Evaluate(audit.NewEvent("x", "core.jobs"))
	if len(got) != 1 {
		t.Fatalf("got %d violations, want 1 from the healthy rule", len(got))
	}
	if len(observed) != 2 {
		t.Errorf("observer saw %v, want both rules timed", observed)
	}
}

func TestEngine_RegisterReplacesSameID(t *testing.T) {
	e := guardrail.NewEngine(&capture{})
	_ = e.Register(guardrail.Guardrail{ID: "g", Severity: audit.SeverityWarn, Predicate: guardrail.NameIs("a")})
	_ = e.Register(guardrail.Guardrail{ID: "g", Severity: audit.SeverityHigh, Predicate: guardrail.NameIs("b")})

	rules := e.Guardrails()
	if len(rules) != 1 || rules[0].Severity != audit.SeverityHigh {
		t.Fatalf("rules = %+v", rules)
	}
}

func TestEngine_RegisterRejectsInvalid(t *testing.T) {
	e := guardrail.NewEngine(&capture{})
	tests := []guardrail.Guardrail{
		{Severity: audit.SeverityHigh, Predicate: guardrail.NameIs("x")},
		{ID: "no-predicate", Severity: audit.SeverityHigh},
		{ID: "bad-severity", Severity: "loud", Predicate: guardrail.NameIs("x")},
	}
	for _, g := range tests {
		if err := e.Register(g); !errors.Is(err, sodmaster.ErrInvalidGuardrail) {
			t.Errorf("Register(%q) err = %v, want ErrInvalidGuardrail", g.ID, err)
		}
	}
}

func TestPayloadReason(t *testing.T) {
	reason := guardrail.PayloadReason("error", guardrail.UnknownFailure)

	tests := []struct {
		payload job.Document
		want    string
	}{
		{job.Document{"error": "boom"}, "boom"},
		{job.Document{}, guardrail.UnknownFailure},
		{job.Document{"error": nil}, guardrail.UnknownFailure},
		{job.Document{"error": 42}, "42"},
	}
	for _, tt := range tests {
		evt := audit.NewEvent("x", "core.jobs", audit.WithPayload(tt.payload))
		if got := reason(evt); got != tt.want {
			t.Errorf("reason(%v) = %q, want %q", tt.payload, got, tt.want)
		}
	}
}

func TestDefaults_A2AReason(t *testing.T) {
	e := guardrail.NewEngine(&capture{})
	for _, g := range guardrail.Defaults() {
		_ = e.Register(g)
	}
	got := e.Evaluate(audit.NewEvent("a2a.command.failed", "core.a2a"))
	if len(got) != 1 {
		t.Fatalf("got %d violations, want 1", len(got))
	}
	if info, _ := got[0].Violation(); info.GuardrailID != "a2a-command-failure" || info.Reason != guardrail.UnknownFailure {
		t.Errorf("violation = %+v", info)
	}
}

func TestDefaults_JobFailureScopedToJobsCUnit(t *testing.T) {
	e := guardrail.NewEngine(&capture{})
	for _, g := range guardrail.Defaults() {
		_ = e.Register(g)
	}

	tests := []struct {
		cunit string
		want  int
	}{
		{guardrail.JobsCUnit, 1},
		{"core.a2a", 0},
		{"core.cgo", 0},
	}
	for _, tt := range tests {
		got := e.Evaluate(audit.NewEvent(audit.ActionJobFailed, tt.cunit, audit.WithPayload(job.Document{"error": "boom"})))
		if len(got) != tt.want {
			t.Errorf("job.failed on %s raised %d violations, want %d", tt.cunit, len(got), tt.want)
		}
	}
}

func TestAll(t *testing.T) {
	pred := guardrail.All(guardrail.NameIs("x"), guardrail.CUnitIs("core.ops"))
	if !pred(audit.NewEvent("x", "core.ops")) {
		t.Error("matching event rejected")
	}
	if pred(audit.NewEvent("x", "core.jobs")) || pred(audit.NewEvent("y", "core.ops")) {
		t.Error("partial match accepted")
	}
	if !guardrail.All()(audit.NewEvent("x", "core.ops")) {
		t.Error("empty All should match")
	}
}

// Package guardrail evaluates declarative rules against audit events and
// publishes a violation for every rule an event breaks.
//
// Rules come from code ([Defaults] or hand-built [Guardrail] values) or
// from a YAML file loaded with [LoadFile]. The [Engine] subscribes to the
// audit bus, ignores violations, and evaluates every rule independently: a
// match never stops the remaining rules, and a panicking rule is logged
// and skipped.
package guardrail

import (
	"fmt"

	"github.com/sodmaster111/sodmaster"
	"github.com/sodmaster111/sodmaster/audit"
)

// Guardrail is one rule. Predicate and Reason must be pure.
type Guardrail struct {
	ID          string
	Description string
	Severity    audit.Severity
	Predicate   func(evt audit.Event) bool
	Reason      func(evt audit.Event) string
}

// Validate reports a guardrail that cannot be evaluated.
func (g Guardrail) Validate() error {
	switch {
	case g.ID == "":
		return fmt.Errorf("%w: empty id", sodmaster.ErrInvalidGuardrail)
	case g.Predicate == nil:
		return fmt.Errorf("%w: %s: nil predicate", sodmaster.ErrInvalidGuardrail, g.ID)
	case !g.Severity.Valid():
		return fmt.Errorf("%w: %s: unknown severity %q", sodmaster.ErrInvalidGuardrail, g.ID, g.Severity)
	}
	return nil
}

// Evaluate returns the violation evt raises against g, if any.
func (g Guardrail) Evaluate(evt audit.Event) (audit.Event, bool) {
	if !g.Predicate(evt) {
		return audit.Event{}, false
	}
	reason := ""
	if g.Reason != nil {
		reason = g.Reason(evt)
	}
	return audit.NewViolation(evt, g.ID, reason, g.Severity), true
}

// NameIs matches events with the given name.
func NameIs(name string) func(audit.Event) bool {
	return func(evt audit.Event) bool { return evt.Name() == name }
}

// CUnitIs matches events recorded against the given c-unit.
func CUnitIs(cunit string) func(audit.Event) bool {
	return func(evt audit.Event) bool { return evt.CUnit() == cunit }
}

// All matches events that satisfy every predicate.
func All(preds ...func(audit.Event) bool) func(audit.Event) bool {
	return func(evt audit.Event) bool {
		for _, p := range preds {
			if !p(evt) {
				return false
			}
		}
		return true
	}
}

// PayloadReason reads the reason from a top-level payload key, falling
// back to def when the key is absent or null.
func PayloadReason(key, def string) func(audit.Event) string {
	return func(evt audit.Event) string {
		v, ok := evt.Field(key)
		if !ok || v == nil {
			return def
		}
		if s, isString := v.(string); isString {
			return s
		}
		return fmt.Sprint(v)
	}
}

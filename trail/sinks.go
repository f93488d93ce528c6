package trail

import (
	"context"
	"log/slog"

	"github.com/sodmaster111/sodmaster/audit"
)

// AlertGuardrailViolation is the alert name used for forwarded violations.
const AlertGuardrailViolation = "guardrail_violation"

func (t *Trail) logSink(ctx context.Context, evt audit.Event) error {
	if v, ok := evt.Violation(); ok {
		t.logger.WarnContext(ctx, "guardrail violation",
			slog.String("guardrail_id", v.GuardrailID),
			slog.String("reason", v.Reason),
			slog.String("c_unit", evt.CUnit()),
			slog.String("severity", string(evt.Severity())),
			slog.String("subject", evt.Subject()),
			slog.Any("payload", evt.Payload()),
		)
		return nil
	}
	t.logger.InfoContext(ctx, "audit event",
		slog.String("event", evt.Name()),
		slog.String("event_id", evt.ID()),
		slog.String("c_unit", evt.CUnit()),
		slog.String("severity", string(evt.Severity())),
		slog.String("actor", evt.Actor()),
		slog.String("subject", evt.Subject()),
		slog.Any("payload", evt.Payload()),
	)
	return nil
}

func (t *Trail) metricsSink(_ context.Context, evt audit.Event) error {
	if v, ok := evt.Violation(); ok {
		t.recorder.Violation(v.GuardrailID, string(evt.Severity()))
	}
	t.recorder.AuditEvent(evt.CUnit(), string(evt.Severity()))
	return nil
}

// alertSink forwards high and critical violations.
func (t *Trail) alertSink(ctx context.Context, evt audit.Event) error {
	v, ok := evt.Violation()
	if !ok || !evt.Severity().AtLeast(audit.SeverityHigh) {
		return nil
	}
	original, _ := evt.Field("event")
	t.alerter.Send(ctx, AlertGuardrailViolation, map[string]any{
		"guardrail_id": v.GuardrailID,
		"reason":       v.Reason,
		"event":        original,
		"subject":      evt.Subject(),
	})
	return nil
}

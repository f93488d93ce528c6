package command

import (
	"context"

	"github.com/sodmaster111/sodmaster/audit"
	"github.com/sodmaster111/sodmaster/job"
)

// FailureBridge returns a bus handler that turns every job.failed event of
// feature into a "<feature>.command.failed" event on cunit, carrying the
// failure under the "reason" key.
func FailureBridge(emitter audit.Emitter, feature, cunit string) audit.Handler {
	name := feature + ".command.failed"
	return func(ctx context.Context, evt audit.Event) error {
		if evt.Name() != audit.ActionJobFailed || evt.IsViolation() {
			return nil
		}
		if f, _ := evt.Field("feature"); f != feature {
			return nil
		}
		reason, _ := evt.Field("error")
		jobID, _ := evt.Field("job_id")
		payload := job.Document{"job_id": jobID, "reason": reason}
		if command, ok := evt.Field("command"); ok {
			payload["command"] = command
		}

		return emitter.Emit(ctx, audit.NewEvent(name, cunit,
			audit.WithActor(evt.Actor()),
			audit.WithSubject(evt.Subject()),
			audit.WithSeverity(evt.Severity()),
			audit.WithTags(evt.Tags()...),
			audit.WithPayload(payload),
		))
	}
}

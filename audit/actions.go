package audit

// Job lifecycle event names emitted by the runner.
const (
	ActionJobAccepted = "job.accepted"
	ActionJobRunning  = "job.running"
	ActionJobRetrying = "job.retrying"
	ActionJobDone     = "job.done"
	ActionJobFailed   = "job.failed"
)

// Operations event names emitted by the health monitor.
const (
	ActionStoreUnreachable = "ops.store.unreachable"
	ActionStoreRecovered   = "ops.store.recovered"
)

// JobActions returns every job lifecycle event name.
func JobActions() []string {
	return []string{
		ActionJobAccepted,
		ActionJobRunning,
		ActionJobRetrying,
		ActionJobDone,
		ActionJobFailed,
	}
}

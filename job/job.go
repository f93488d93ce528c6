package job

import "time"

// Status represents the lifecycle state of a job.
type Status string

const (
	// StatusPending means the job record exists but was not yet accepted.
	StatusPending Status = "pending"
	// StatusAccepted means the job was accepted and is queued for execution.
	StatusAccepted Status = "accepted"
	// StatusRunning means the unit of work is executing.
	StatusRunning Status = "running"
	// StatusDone means the job finished successfully.
	StatusDone Status = "done"
	// StatusFailed means the job failed and will not be retried.
	StatusFailed Status = "failed"
)

// rank orders statuses along the lifecycle. Terminal statuses share a rank.
var rank = map[Status]int{
	StatusPending:  0,
	StatusAccepted: 1,
	StatusRunning:  2,
	StatusDone:     3,
	StatusFailed:   3,
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := rank[s]
	return ok
}

// IsTerminal reports whether s is done or failed.
func (s Status) IsTerminal() bool {
	return s == StatusDone || s == StatusFailed
}

// CanTransition reports whether a record in status from may move to status to.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() || from.IsTerminal() {
		return false
	}
	return rank[to] > rank[from]
}

// Record is the persisted state of one job.
type Record struct {
	ID        string    `json:"id"`
	Payload   Document  `json:"payload"`
	Status    Status    `json:"status"`
	Result    Document  `json:"result"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Payload = r.Payload.Clone()
	cp.Result = r.Result.Clone()
	return &cp
}

// NewRecord returns a pending record for id with a copy of payload.
func NewRecord(id string, payload Document, now time.Time) *Record {
	if payload == nil {
		payload = Document{}
	}
	return &Record{
		ID:        id,
		Payload:   payload.Clone(),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

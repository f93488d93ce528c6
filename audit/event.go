package audit

import (
	"encoding/json"
	"time"

	"github.com/sodmaster111/sodmaster/id"
	"github.com/sodmaster111/sodmaster/job"
)

// Severity grades an event.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarn     Severity = "warn"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityWarn:     1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// AtLeast reports whether s is as severe as min or more. Unknown
// severities rank below info.
func (s Severity) AtLeast(min Severity) bool {
	r, ok := severityRank[s]
	if !ok {
		return false
	}
	return r >= severityRank[min]
}

// ParseSeverity maps the spellings used in config files onto Severity.
func ParseSeverity(s string) (Severity, bool) {
	switch s {
	case "info":
		return SeverityInfo, true
	case "warn", "warning":
		return SeverityWarn, true
	case "high":
		return SeverityHigh, true
	case "critical":
		return SeverityCritical, true
	}
	return "", false
}

// ViolationName is the name of every event raised by a guardrail.
const ViolationName = "guardrail.violation"

// Violation identifies the guardrail that raised an event.
type Violation struct {
	GuardrailID string `json:"guardrail_id"`
	Reason      string `json:"reason"`
}

// Event is an immutable audit record.
type Event struct {
	id        string
	name      string
	cunit     string
	actor     string
	subject   string
	severity  Severity
	payload   job.Document
	tags      []string
	createdAt time.Time
	violation *Violation
}

// EventOption configures an Event under construction.
type EventOption func(*Event)

// WithActor sets who caused the event.
func WithActor(actor string) EventOption {
	return func(e *Event) { e.actor = actor }
}

// WithSubject sets what the event is about, typically a job id.
func WithSubject(subject string) EventOption {
	return func(e *Event) { e.subject = subject }
}

// WithSeverity sets the event severity. Default info.
func WithSeverity(s Severity) EventOption {
	return func(e *Event) { e.severity = s }
}

// WithPayload sets the event payload. The document is copied.
func WithPayload(p job.Document) EventOption {
	return func(e *Event) { e.payload = p.Clone() }
}

// WithTags appends tags, keeping first-seen order and dropping duplicates.
func WithTags(tags ...string) EventOption {
	return func(e *Event) {
		for _, t := range tags {
			if t == "" || contains(e.tags, t) {
				continue
			}
			e.tags = append(e.tags, t)
		}
	}
}

// WithTime overrides the creation timestamp.
func WithTime(t time.Time) EventOption {
	return func(e *Event) { e.createdAt = t }
}

// WithID overrides the generated event id.
func WithID(eventID string) EventOption {
	return func(e *Event) { e.id = eventID }
}

// NewEvent builds an event named name in c-unit cunit.
func NewEvent(name, cunit string, opts ...EventOption) Event {
	e := Event{
		name:     name,
		cunit:    cunit,
		severity: SeverityInfo,
	}
	for _, opt := range opts {
		opt(&e)
	}
	if e.id == "" {
		e.id = id.NewEventID()
	}
	if e.createdAt.IsZero() {
		e.createdAt = time.Now().UTC()
	}
	if e.payload == nil {
		e.payload = job.Document{}
	}
	return e
}

// NewViolation derives the violation raised by a guardrail against orig.
// It keeps orig's c-unit, actor, subject and tags, takes the guardrail's
// severity, and records orig's name under the "event" payload key unless
// orig's payload already carries one.
func NewViolation(orig Event, guardrailID, reason string, severity Severity) Event {
	e := NewEvent(ViolationName, orig.cunit,
		WithActor(orig.actor),
		WithSubject(orig.subject),
		WithSeverity(severity),
		WithTags(orig.tags...),
	)
	e.payload = job.Document{"event": orig.name}.Merge(orig.payload)
	e.violation = &Violation{GuardrailID: guardrailID, Reason: reason}
	return e
}

func (e Event) ID() string           { return e.id }
func (e Event) Name() string         { return e.name }
func (e Event) CUnit() string        { return e.cunit }
func (e Event) Actor() string        { return e.actor }
func (e Event) Subject() string      { return e.subject }
func (e Event) Severity() Severity   { return e.severity }
func (e Event) CreatedAt() time.Time { return e.createdAt }

// Payload returns a copy of the event payload.
func (e Event) Payload() job.Document { return e.payload.Clone() }

// Tags returns a copy of the event tags.
func (e Event) Tags() []string { return append([]string(nil), e.tags...) }

// Field returns one top-level payload value without copying the payload.
// Callers must not mutate nested values.
func (e Event) Field(key string) (any, bool) {
	v, ok := e.payload[key]
	return v, ok
}

// IsViolation reports whether the event was raised by a guardrail.
func (e Event) IsViolation() bool { return e.violation != nil }

// Violation returns the guardrail details of a violation.
func (e Event) Violation() (Violation, bool) {
	if e.violation == nil {
		return Violation{}, false
	}
	return *e.violation, true
}

type eventJSON struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	CUnit       string       `json:"c_unit"`
	Actor       string       `json:"actor,omitempty"`
	Subject     string       `json:"subject,omitempty"`
	Severity    Severity     `json:"severity"`
	Payload     job.Document `json:"payload"`
	Tags        []string     `json:"tags,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	GuardrailID string       `json:"guardrail_id,omitempty"`
	Reason      string       `json:"reason,omitempty"`
}

// MarshalJSON renders the event for the audit history endpoint.
func (e Event) MarshalJSON() ([]byte, error) {
	out := eventJSON{
		ID:        e.id,
		Name:      e.name,
		CUnit:     e.cunit,
		Actor:     e.actor,
		Subject:   e.subject,
		Severity:  e.severity,
		Payload:   e.payload,
		Tags:      e.tags,
		CreatedAt: e.createdAt,
	}
	if e.violation != nil {
		out.GuardrailID = e.violation.GuardrailID
		out.Reason = e.violation.Reason
	}
	return json.Marshal(out)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Package audit defines audit events, the c-units that namespace them, and
// the in-process bus that fans events out to subscribers.
//
// An [Event] is an immutable value: constructors copy what they are given
// and accessors hand out copies. A guardrail violation is an Event whose
// [Event.Violation] is set; subscribers tell the two apart with
// [Event.IsViolation].
//
// The [Bus] delivers each event to every subscriber in registration order.
// A failing or panicking subscriber is logged and skipped; the others still
// receive the event.
package audit

// Package trail is the audit trail facade: it owns the c-unit catalog,
// the audit bus, the guardrail engine, the standard sinks, and a bounded
// history of emitted events.
//
// Subscribers run in this order: the guardrail engine, the log sink, the
// metrics sink (when configured), the alert sink (when configured), and
// then any handler added with [Trail.Subscribe]. A violation raised by the
// engine is delivered to every subscriber before the event that raised it
// reaches the log sink.
package trail

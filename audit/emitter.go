package audit

import "context"

// Emitter accepts audit events. The trail facade implements it; producers
// such as the runner depend on this interface only.
type Emitter interface {
	Emit(ctx context.Context, evt Event) error
}

// EmitterFunc is an adapter to use a plain function as an Emitter.
type EmitterFunc func(ctx context.Context, evt Event) error

// Emit implements Emitter.
func (f EmitterFunc) Emit(ctx context.Context, evt Event) error {
	return f(ctx, evt)
}

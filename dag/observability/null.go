package observability

// NullHooks discards every event. Useful as a default so callers never need
// a nil check before calling Emit.
type NullHooks struct{}

// Emit implements Hooks.
func (NullHooks) Emit(Event) {}

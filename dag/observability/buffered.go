package observability

import "sync"

// BufferedHooks accumulates events in memory, for tests and for batch
// export. Adapted from the teacher's buffered emitter.
type BufferedHooks struct {
	mu     sync.Mutex
	events []Event
}

// NewBufferedHooks returns an empty BufferedHooks.
func NewBufferedHooks() *BufferedHooks {
	return &BufferedHooks{}
}

// Emit implements Hooks.
func (h *BufferedHooks) Emit(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, e)
}

// Events returns a snapshot of every event recorded so far.
func (h *BufferedHooks) Events() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Event, len(h.events))
	copy(out, h.events)
	return out
}

// Reset discards all recorded events.
func (h *BufferedHooks) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = nil
}

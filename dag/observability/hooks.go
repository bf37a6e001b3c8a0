// Package observability provides the engine's event-emission surface:
// pluggable Hooks implementations mirroring the teacher's graph/emit
// package, generalized from step/replay events to node/pipeline lifecycle
// events (spec §6 "Observability Hooks").
package observability

import "time"

// Event is one lifecycle notification emitted by the engine.
type Event struct {
	PipelineID string
	NodeID     string
	Kind       Kind
	At         time.Time
	Err        error
	Meta       map[string]any
}

// Kind enumerates the lifecycle points the engine reports.
type Kind string

const (
	KindPipelineStart    Kind = "pipeline_start"
	KindPipelineComplete Kind = "pipeline_complete"
	KindNodeStart        Kind = "node_start"
	KindNodeRetry        Kind = "node_retry"
	KindNodeComplete     Kind = "node_complete"
	KindNodeFailed       Kind = "node_failed"
	KindSwitchResolved   Kind = "switch_resolved"
	KindOneOfFallback    Kind = "oneof_fallback"
	KindRecurrenceLoop   Kind = "recurrence_loop"
)

// Hooks receives engine lifecycle events. Implementations must not block the
// scheduler for long; Emit is called synchronously from the dispatch path.
type Hooks interface {
	Emit(Event)
}

// HooksFunc adapts a function to Hooks.
type HooksFunc func(Event)

// Emit implements Hooks.
func (f HooksFunc) Emit(e Event) { f(e) }

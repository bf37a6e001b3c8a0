// Package dag implements the DAG execution engine: a scheduler that runs
// typed node graphs with retry, switch/case, one-of fallback, and bounded
// recurrence semantics.
package dag

import (
	"context"
	"time"
)

// NodeId identifies a node within a Graph. Opaque and unique per graph.
type NodeId = string

// Tag annotates a NodeDescriptor with scheduling or storage hints.
type Tag string

const (
	// TagSkipStore tells the scheduler not to persist this node's result to
	// the ArtifactStore.
	TagSkipStore Tag = "skip_store"

	// TagProcess routes this node's calls to the process-isolated worker
	// pool instead of the thread pool.
	TagProcess Tag = "process"

	// TagCooperative routes this node's calls to the WorkerPools.Cooperative
	// pool. The call runs on a pool goroutine, not inline on the goroutine
	// that resolved the node.
	TagCooperative Tag = "cooperative"

	// TagModelCall marks a node as issuing an LLM call, so the scheduler
	// attributes its cost to the configured CostTracker (see dag/model).
	TagModelCall Tag = "model_call"
)

// TagSet is an unordered collection of Tags.
type TagSet map[Tag]struct{}

// NewTagSet builds a TagSet from the given tags.
func NewTagSet(tags ...Tag) TagSet {
	s := make(TagSet, len(tags))
	for _, t := range tags {
		s[t] = struct{}{}
	}
	return s
}

// Has reports whether the tag is present.
func (s TagSet) Has(t Tag) bool {
	if s == nil {
		return false
	}
	_, ok := s[t]
	return ok
}

// Recurrent is returned by a node callable to request another iteration of
// its enclosing recurrent subgraph. Data is injected as additional_data into
// the subgraph's start node on the next iteration.
type Recurrent struct {
	Data any
}

// NodeFunc is the callable a node executes. Inputs are assembled by the
// scheduler from predecessor edges' kwarg_name bindings; a nil error with a
// Recurrent value requests another loop of the enclosing recurrence.
type NodeFunc func(ctx context.Context, kwargs map[string]any) (any, error)

// DefaultFunc produces a substitute value when a node's retries are
// exhausted and UseDefault is set. Required only if UseDefault is true.
type DefaultFunc func(kwargs map[string]any) any

// NodeDescriptor is the immutable description of a node's runnable behavior,
// shared read-only by all scheduler components.
type NodeDescriptor struct {
	// Call is the node's business logic.
	Call NodeFunc

	// Default substitutes a value when retries are exhausted or a
	// non-retryable error occurs, provided UseDefault is true.
	Default DefaultFunc

	// Attempts is the maximum number of call attempts per iteration.
	// Values below 1 are treated as 1 (no retries).
	Attempts int

	// Delay is the pause between retry attempts.
	Delay time.Duration

	// Retryable decides whether an error returned by Call should be
	// retried. A nil Retryable treats every error as retryable, matching
	// the source system's "default set = {any failure}".
	Retryable func(error) bool

	// UseDefault substitutes Default's result instead of propagating a
	// terminal error.
	UseDefault bool

	// Tags carries scheduling and storage hints.
	Tags TagSet
}

func (d *NodeDescriptor) attempts() int {
	if d == nil || d.Attempts < 1 {
		return 1
	}
	return d.Attempts
}

func (d *NodeDescriptor) isRetryable(err error) bool {
	if d.Retryable == nil {
		return true
	}
	return d.Retryable(err)
}

// NodeAttrs carries the per-node graph metadata from spec §3: switch/one-of
// roles and recurrence wiring. Set by Builder, read-only thereafter.
type NodeAttrs struct {
	// IsSwitch marks an artificial node whose value is the result of the
	// case producer selected by the label its single decider predecessor
	// returns.
	IsSwitch bool

	// IsOneOfHead marks an artificial node exposing the first successful
	// result among OneOfNodes.
	IsOneOfHead bool

	// IsOneOfChild marks a node reachable only through a one-of head; such
	// nodes are excluded from the default reduced graph.
	IsOneOfChild bool

	// OneOfNodes is the ordered, non-empty list of candidate destination
	// nodes tried in order by a one-of head.
	OneOfNodes []NodeId

	// StartNode is the node at which a recurrent destination's subgraph
	// restarts on each iteration. Empty unless this node is a recurrent
	// destination.
	StartNode NodeId

	// MaxIterations bounds a recurrent destination's loop count.
	MaxIterations int
}

// isRecurrentDestination reports whether this node is the destination of a
// bounded recurrence.
func (a NodeAttrs) isRecurrentDestination() bool {
	return a.StartNode != ""
}

package dag

import (
	"errors"
	"fmt"
)

// ErrMissingPool is returned, wrapped, by NewEngine when a node requires a
// worker pool that was not supplied via WithWorkerPools, matching spec §5's
// "absent required pools the scheduler fails fast".
var ErrMissingPool = errors.New("dag: required worker pool not configured")

// ErrEmptyOneOf carries the message used when a one-of head is declared
// with no candidates, matching spec §8's boundary "Empty oneof_nodes list is
// rejected at build time". Build reports that case as a *ValidationError
// whose Reason is this error's text; ErrEmptyOneOf itself is not returned.
var ErrEmptyOneOf = errors.New("dag: one-of head must have at least one candidate")

// ValidationError reports a Graph invariant violation discovered at build
// time (spec §7 "Builder/validation errors"). These are always fatal and
// never captured by one-of/recurrence containers.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("dag: invalid graph: %s", e.Reason)
}

// OneOfDoesNotHaveResultError indicates no candidate in an ordered one-of
// list produced a usable result.
type OneOfDoesNotHaveResultError struct {
	HeadID NodeId
}

func (e *OneOfDoesNotHaveResultError) Error() string {
	return fmt.Sprintf("dag: one-of %q has no successful candidate", e.HeadID)
}

// RecurrentSubgraphDoesNotHaveResultError indicates a bounded recurrence
// loop exhausted max_iterations without converging, and the destination
// node has no default to fall back on.
type RecurrentSubgraphDoesNotHaveResultError struct {
	Start, Dest NodeId
	LastValue   any
}

func (e *RecurrentSubgraphDoesNotHaveResultError) Error() string {
	return fmt.Sprintf("dag: recurrent subgraph %q -> %q exhausted iterations without converging", e.Start, e.Dest)
}

// NodeError wraps an error raised by a node callable with the node id that
// produced it, so observability and error handling can attribute failures.
type NodeError struct {
	NodeID NodeId
	Cause  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("dag: node %q: %v", e.NodeID, e.Cause)
}

func (e *NodeError) Unwrap() error { return e.Cause }

// PipelineResult is the terminal container returned by Engine.Run: either
// Value is populated and Err is nil, or Err is populated and Value is the
// zero value.
type PipelineResult struct {
	PipelineID string
	Value      any
	Err        error
}

// RaiseOnError returns Err, letting callers choose between checking it
// explicitly or propagating it, matching spec §7's
// PipelineResult.raise_on_error().
func (r PipelineResult) RaiseOnError() error {
	return r.Err
}

package dag

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arrowlane/dagrun/dag/artifact"
	"github.com/arrowlane/dagrun/dag/model"
	"github.com/arrowlane/dagrun/dag/observability"
)

// Engine is the DAG Run Manager (spec §4.5): it owns a validated Graph and
// drives one pipeline run at a time through Run. A single Engine value may
// be reused for many concurrent Run calls; all mutable per-run state lives
// in an internal runState, never on the Engine itself.
type Engine struct {
	graph *Graph
	cfg   *engineConfig
}

// NewEngine validates graph against the configured worker pools and returns
// a ready Engine. Every tag-routed node must have its pool configured, or
// NewEngine fails fast with ErrMissingPool (spec §5).
func NewEngine(graph *Graph, opts ...Option) (*Engine, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	for _, id := range graph.Nodes() {
		desc := graph.Descriptor(id)
		if desc == nil {
			continue
		}
		kind := poolFor(desc.Tags)
		if cfg.pools.poolFor(kind) == nil {
			return nil, fmt.Errorf("dag: node %q requires %s pool: %w", id, kind, ErrMissingPool)
		}
	}

	return &Engine{graph: graph, cfg: cfg}, nil
}

// Run executes the graph for one PipelineContext and returns its output
// node's value, or the error that stopped the run (spec §4.5, §7).
func (e *Engine) Run(ctx context.Context, pctx PipelineContext) PipelineResult {
	if pctx.PipelineID == "" {
		pctx.PipelineID = generatePipelineID()
	}
	if e.cfg.runWallClock > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.runWallClock)
		defer cancel()
	}

	r := &runState{
		graph:     e.graph,
		cfg:       e.cfg,
		pctx:      pctx,
		store:     NewResultStore(),
		locks:     NewLockOrchestrator(),
		hooks:     e.cfg.hooks,
		metrics:   e.cfg.metrics,
		artifacts: e.cfg.artifacts,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	r.hooks.Emit(observability.Event{
		PipelineID: pctx.PipelineID,
		Kind:       observability.KindPipelineStart,
		At:         time.Now(),
	})

	v := newDefaultView(e.graph)
	value, err := r.resolve(ctx, v, e.graph.OutputNode())

	r.hooks.Emit(observability.Event{
		PipelineID: pctx.PipelineID,
		Kind:       observability.KindPipelineComplete,
		At:         time.Now(),
		Err:        err,
	})

	return PipelineResult{PipelineID: pctx.PipelineID, Value: value, Err: err}
}

// generatePipelineID returns a short, sufficiently unique run id when the
// caller doesn't supply one, matching the source system's
// generate_pipeline_id convention of deriving one automatically.
func generatePipelineID() string {
	var b [12]byte
	_, _ = rand.New(rand.NewSource(time.Now().UnixNano())).Read(b[:])
	const hex = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, c := range b {
		out[i*2] = hex[c>>4]
		out[i*2+1] = hex[c&0xf]
	}
	return string(out)
}

// runState holds everything specific to one Engine.Run call.
type runState struct {
	graph *Graph
	cfg   *engineConfig
	pctx  PipelineContext

	store *ResultStore
	locks *LockOrchestrator

	hooks     observability.Hooks
	metrics   *Metrics
	artifacts artifact.Store

	rng      *rand.Rand
	inflight int64

	// injectMu/inject deliver a recurrent destination's additional_data
	// payload into its start node's kwargs on the next iteration, since
	// gatherKwargs otherwise derives a node's entire input purely from
	// predecessor edges (spec §3 "additional_data").
	injectMu sync.Mutex
	inject   map[NodeId]any
}

// setInject records val to be merged into id's next gatherKwargs call as
// additional_data.
func (r *runState) setInject(id NodeId, val any) {
	r.injectMu.Lock()
	defer r.injectMu.Unlock()
	if r.inject == nil {
		r.inject = make(map[NodeId]any)
	}
	r.inject[id] = val
}

// takeInject returns the pending injection for id, if any.
func (r *runState) takeInject(id NodeId) (any, bool) {
	r.injectMu.Lock()
	defer r.injectMu.Unlock()
	v, ok := r.inject[id]
	return v, ok
}

// resolve ensures id's result is computed within v and returns it, running
// the node (or its special switch/one-of/recurrent handling) at most once
// even under concurrent callers (spec §4.1 "processed-mark", §4.2 "at-most-
// once via event").
func (r *runState) resolve(ctx context.Context, v *view, id NodeId) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	ev := r.locks.EventFor(id)
	if !r.store.MarkProcessed(id) {
		ev.Wait()
		if val, ok := r.store.Result(id, true); ok {
			return val, nil
		}
		if err, ok := r.store.Error(id); ok {
			return nil, err
		}
		return nil, fmt.Errorf("dag: node %q finished with neither a result nor an error", id)
	}

	value, err := r.execute(ctx, v, id)
	if err != nil {
		r.store.SetError(id, err)
	} else {
		r.store.SetResult(id, value)
	}
	ev.Set()
	r.locks.Ready().Broadcast()
	return value, err
}

func (r *runState) execute(ctx context.Context, v *view, id NodeId) (any, error) {
	attrs := v.attrs(id)
	switch {
	case attrs.IsSwitch:
		return r.resolveSwitch(ctx, v, id)
	case attrs.IsOneOfHead:
		return r.resolveOneOf(ctx, v, id)
	case attrs.isRecurrentDestination():
		return r.resolveRecurrent(ctx, v, id, nil)
	default:
		kwargs, err := r.gatherKwargs(ctx, v, id)
		if err != nil {
			return nil, err
		}
		return r.runNode(ctx, id, kwargs)
	}
}

// gatherKwargs assembles a node's call arguments from its live predecessor
// edges' kwarg_name bindings, resolving each predecessor concurrently (spec
// §3 "kwarg_name", §4.5 "dependency input assembly").
func (r *runState) gatherKwargs(ctx context.Context, v *view, id NodeId) (map[string]any, error) {
	if id == r.graph.InputNode() {
		kwargs := make(map[string]any, len(r.pctx.InputKwargs))
		for k, val := range r.pctx.InputKwargs {
			kwargs[k] = val
		}
		if val, ok := r.takeInject(id); ok {
			kwargs["additional_data"] = val
		}
		return kwargs, nil
	}

	preds := v.predecessors(id)
	kwargs := make(map[string]any, len(preds))
	var mu sync.Mutex
	var wg sync.WaitGroup
	errs := make(chan error, len(preds))

	for _, e := range preds {
		if e.attrs.KwargName == "" {
			continue
		}
		e := e
		wg.Add(1)
		go func() {
			defer wg.Done()
			val, err := r.resolve(ctx, v, e.from)
			if err != nil {
				errs <- err
				return
			}
			mu.Lock()
			kwargs[e.attrs.KwargName] = val
			mu.Unlock()
		}()
	}
	wg.Wait()
	close(errs)
	if err, ok := <-errs; ok {
		return nil, err
	}
	if val, ok := r.takeInject(id); ok {
		kwargs["additional_data"] = val
	}
	return kwargs, nil
}

// resolveSwitch resolves the decider, finds the matching case producer, and
// re-expands v so the chosen branch is live before resolving it (spec
// §4.4's "switch-reduced" selector, driven here).
func (r *runState) resolveSwitch(ctx context.Context, v *view, headID NodeId) (any, error) {
	var decider NodeId
	for _, e := range r.graph.Predecessors(headID) {
		if e.attrs.IsSwitch {
			decider = e.from
			break
		}
	}
	if decider == "" {
		return nil, &ValidationError{Reason: "switch node " + headID + " has no decider edge"}
	}

	labelValue, err := r.resolve(ctx, v, decider)
	if err != nil {
		return nil, err
	}
	label, ok := labelValue.(string)
	if !ok {
		return nil, &NodeError{NodeID: headID, Cause: fmt.Errorf("dag: switch decider returned non-string label %v", labelValue)}
	}

	var producer NodeId
	for _, e := range r.graph.Predecessors(headID) {
		if e.attrs.CaseBranch == label {
			producer = e.from
			break
		}
	}
	if producer == "" {
		return nil, &NodeError{NodeID: headID, Cause: fmt.Errorf("dag: switch has no case matching label %q", label)}
	}

	expanded := switchReduced(v, headID, label)
	value, err := r.resolve(ctx, expanded, producer)
	if err != nil {
		return nil, err
	}

	r.store.SetCaseResult(headID, CaseResult{Label: label, NodeID: producer})
	r.hooks.Emit(observability.Event{
		PipelineID: r.pctx.PipelineID,
		NodeID:     headID,
		Kind:       observability.KindSwitchResolved,
		At:         time.Now(),
		Meta:       map[string]any{"label": label, "producer": producer},
	})
	return value, nil
}

// resolveOneOf tries each candidate branch in order, returning the first
// that succeeds. A candidate's failure (including an exhausted nested
// recurrence) is not fatal to the pipeline; only exhausting every candidate
// is (spec §2 "one-of", §7 OneOfDoesNotHaveResultError).
func (r *runState) resolveOneOf(ctx context.Context, v *view, headID NodeId) (any, error) {
	branches := r.graph.OneOfBranches(headID)
	for i, branch := range branches {
		expanded := oneOfReduced(v, branch)
		value, err := r.resolve(ctx, expanded, branch.Dest)
		if err == nil {
			r.store.CopyResult(branch.Dest, headID)
			r.store.SetCaseResult(headID, CaseResult{NodeID: branch.Dest})
			return value, nil
		}

		r.metrics.IncrementOneOfFallback(r.pctx.PipelineID, headID)
		r.hooks.Emit(observability.Event{
			PipelineID: r.pctx.PipelineID,
			NodeID:     headID,
			Kind:       observability.KindOneOfFallback,
			At:         time.Now(),
			Err:        err,
			Meta:       map[string]any{"candidate": branch.Dest, "index": i, "nested": expanded.IsNestedOneOf()},
		})

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	// A nested one-of (this head reached as another one-of's candidate
	// branch) captures this error as the head's own stored value instead of
	// raising fatally; resolve's caller (the outer resolveOneOf) already
	// does exactly that by treating any non-nil error as "candidate
	// failed, try the next one" (spec §4.5 "one-of resolution").
	return nil, &OneOfDoesNotHaveResultError{HeadID: headID}
}

// resolveRecurrent drives a bounded recurrence: it re-runs the subgraph
// between StartNode and dest, injecting the previous iteration's Recurrent
// payload as additional_data, until dest converges on a non-Recurrent value
// or max_iterations is exhausted (spec §2 "recurrence", §9 design notes).
func (r *runState) resolveRecurrent(ctx context.Context, v *view, dest NodeId, _ map[string]any) (any, error) {
	attrs := r.graph.Attrs(dest)
	start, maxIter := attrs.StartNode, attrs.MaxIterations

	// resolve's own processed-mark on dest already serializes entry here to
	// one goroutine per run; TryStartRecurrence just records the loop as
	// active. Its result is not checked here, so a second entry is not
	// refused.
	r.store.TryStartRecurrence(start, dest)
	defer r.store.EndRecurrence(start, dest)

	rv := recurrentView(r.graph, start, dest)
	members := rv.nodeIds()

	var additionalData any
	for iter := 1; iter <= maxIter; iter++ {
		if iter > 1 {
			r.store.HideAllProcessed(members)
			r.locks.Reset(members)
		}

		r.metrics.IncrementRecurrenceIteration(r.pctx.PipelineID, start, dest)
		r.hooks.Emit(observability.Event{
			PipelineID: r.pctx.PipelineID,
			NodeID:     dest,
			Kind:       observability.KindRecurrenceLoop,
			At:         time.Now(),
			Meta:       map[string]any{"iteration": iter, "start": start},
		})

		if iter > 1 {
			r.setInject(start, additionalData)
		}

		var value any
		var err error
		if start == dest {
			kwargs, kerr := r.gatherKwargs(ctx, v, dest)
			if kerr != nil {
				return nil, kerr
			}
			value, err = r.runNode(ctx, dest, kwargs)
		} else {
			if _, err = r.resolve(ctx, v, start); err != nil {
				return nil, err
			}
			destKwargs, kerr := r.gatherKwargs(ctx, v, dest)
			if kerr != nil {
				return nil, kerr
			}
			value, err = r.runNode(ctx, dest, destKwargs)
		}
		if err != nil {
			return nil, err
		}

		rec, isRecur := value.(Recurrent)
		if !isRecur {
			return value, nil
		}
		additionalData = rec.Data

		if iter == maxIter {
			desc := r.graph.Descriptor(dest)
			if desc != nil && desc.UseDefault && desc.Default != nil {
				return desc.Default(map[string]any{"additional_data": additionalData}), nil
			}
			return nil, &RecurrentSubgraphDoesNotHaveResultError{Start: start, Dest: dest, LastValue: additionalData}
		}
	}
	return nil, &RecurrentSubgraphDoesNotHaveResultError{Start: start, Dest: dest, LastValue: additionalData}
}

// runNode dispatches desc.Call onto the pool its tags route to, applies its
// retry policy, records metrics/hooks, and best-effort persists the result
// to the artifact store (spec §5, §6).
func (r *runState) runNode(ctx context.Context, id NodeId, kwargs map[string]any) (any, error) {
	desc := r.graph.Descriptor(id)
	if desc == nil || desc.Call == nil {
		return nil, &NodeError{NodeID: id, Cause: fmt.Errorf("node has no callable")}
	}

	kind := poolFor(desc.Tags)
	pool := r.cfg.pools.poolFor(kind)
	if pool == nil {
		return nil, &NodeError{NodeID: id, Cause: ErrMissingPool}
	}

	r.hooks.Emit(observability.Event{PipelineID: r.pctx.PipelineID, NodeID: id, Kind: observability.KindNodeStart, At: time.Now()})
	r.metrics.SetInflightNodes(int(atomic.AddInt64(&r.inflight, 1)))
	start := time.Now()

	result, err := pool.Submit(ctx, func(ctx context.Context) (any, error) {
		res := runWithPolicy(ctx, desc, kwargs, r.rng, func(attemptErr error) {
			r.metrics.IncrementRetries(r.pctx.PipelineID, id)
			r.hooks.Emit(observability.Event{PipelineID: r.pctx.PipelineID, NodeID: id, Kind: observability.KindNodeRetry, At: time.Now(), Err: attemptErr})
		})
		if res.outcome == outcomeFailed {
			return nil, res.err
		}
		return res.value, nil
	})

	r.metrics.SetInflightNodes(int(atomic.AddInt64(&r.inflight, -1)))
	status := "success"
	if err != nil {
		status = "error"
	}
	r.metrics.RecordNodeLatency(r.pctx.PipelineID, id, time.Since(start), status)

	if err != nil {
		r.hooks.Emit(observability.Event{PipelineID: r.pctx.PipelineID, NodeID: id, Kind: observability.KindNodeFailed, At: time.Now(), Err: err})
		return nil, &NodeError{NodeID: id, Cause: err}
	}

	r.hooks.Emit(observability.Event{PipelineID: r.pctx.PipelineID, NodeID: id, Kind: observability.KindNodeComplete, At: time.Now()})

	if r.cfg.costs != nil && desc.Tags.Has(TagModelCall) {
		if out, ok := result.(model.ChatOut); ok {
			r.cfg.costs.RecordChatOut(out, string(id))
		}
	}

	if _, isRecur := result.(Recurrent); !isRecur && !desc.Tags.Has(TagSkipStore) {
		if saveErr := r.artifacts.Save(ctx, r.pctx.ModelName, r.pctx.PipelineID, id, result); saveErr != nil {
			r.hooks.Emit(observability.Event{PipelineID: r.pctx.PipelineID, NodeID: id, Kind: observability.KindNodeFailed, At: time.Now(), Err: saveErr, Meta: map[string]any{"phase": "artifact_save"}})
		}
	}
	return result, nil
}

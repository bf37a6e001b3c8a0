package dag

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arrowlane/dagrun/dag/observability"
)

func runGraph(t *testing.T, g *Graph, input map[string]any, opts ...Option) PipelineResult {
	t.Helper()
	allOpts := append([]Option{WithWorkerPools(testPools())}, opts...)
	eng, err := NewEngine(g, allOpts...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return eng.Run(ctx, PipelineContext{InputKwargs: input})
}

// Scenario 1: a plain arithmetic chain, input -> invert -> addconst -> double.
func TestEngine_ArithmeticChain(t *testing.T) {
	g, err := NewBuilder().
		AddNode("input", NodeDescriptor{Call: identityFunc("num")}).
		AddNode("invert", NodeDescriptor{Call: func(_ context.Context, kw map[string]any) (any, error) {
			return -kw["num"].(float64), nil
		}}).
		AddNode("addconst", NodeDescriptor{Call: func(_ context.Context, kw map[string]any) (any, error) {
			return kw["num"].(float64) + 0.1, nil
		}}).
		AddNode("double", NodeDescriptor{Call: func(_ context.Context, kw map[string]any) (any, error) {
			return kw["num"].(float64) * 2, nil
		}}).
		Input("input").
		Output("double").
		Edge("input", "invert", "num").
		Edge("invert", "addconst", "num").
		Edge("addconst", "double", "num").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	res := runGraph(t, g, map[string]any{"num": 2.5})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	got := res.Value.(float64)
	want := -4.8
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("Value = %v, want %v", got, want)
	}
}

// Scenario 2: a switch choosing the "invert" case for a negative input.
func TestEngine_Switch(t *testing.T) {
	g, err := NewBuilder().
		AddNode("input", NodeDescriptor{Call: identityFunc("num")}).
		AddNode("decider", NodeDescriptor{Call: func(_ context.Context, kw map[string]any) (any, error) {
			if kw["num"].(int) < 0 {
				return "invert", nil
			}
			return "identity", nil
		}}).
		AddNode("invert_case", NodeDescriptor{Call: constFunc(99)}).
		AddNode("identity_case", NodeDescriptor{Call: constFunc(1)}).
		AddNode("consumer", NodeDescriptor{Call: identityFunc("v")}).
		Input("input").
		Output("consumer").
		Edge("input", "decider", "num").
		Switch("switch_head", "decider", map[string]NodeId{
			"invert":   "invert_case",
			"identity": "identity_case",
		}, "consumer", "v").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	res := runGraph(t, g, map[string]any{"num": -1})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Value != 99 {
		t.Fatalf("Value = %v, want 99", res.Value)
	}
}

// Scenario 3: a switch whose "nested" case is itself another switch
// head, exercising resolveSwitch's recursive expansion of the base view.
func TestEngine_NestedSwitch(t *testing.T) {
	b := NewBuilder().
		AddNode("input", NodeDescriptor{Call: identityFunc("num")}).
		AddNode("outer_decider", NodeDescriptor{Call: constFunc("nested")}).
		AddNode("plain_case", NodeDescriptor{Call: constFunc(0)}).
		AddNode("inner_decider", NodeDescriptor{Call: constFunc("triple")}).
		AddNode("triple_case", NodeDescriptor{Call: func(_ context.Context, kw map[string]any) (any, error) {
			return kw["num"].(int) * 4, nil
		}}).
		AddNode("double_case", NodeDescriptor{Call: constFunc(0)}).
		AddNode("consumer", NodeDescriptor{Call: identityFunc("v")}).
		Input("input").
		Output("consumer").
		Edge("input", "inner_decider", "num").
		Edge("input", "triple_case", "num")

	// The inner switch is wired by hand rather than via Switch, since Switch
	// always adds its own consumer edge and here the inner head's only
	// consumer is the outer switch's "nested" case edge.
	b.ensureNode("inner_switch")
	innerAttrs := b.nodeAttrs["inner_switch"]
	innerAttrs.IsSwitch = true
	b.nodeAttrs["inner_switch"] = innerAttrs
	innerDeciderEdge := edge{from: "inner_decider", to: "inner_switch", attrs: EdgeAttrs{IsSwitch: true}}
	b.out["inner_decider"] = append(b.out["inner_decider"], innerDeciderEdge)
	b.in["inner_switch"] = append(b.in["inner_switch"], innerDeciderEdge)
	tripleEdge := edge{from: "triple_case", to: "inner_switch", attrs: EdgeAttrs{CaseBranch: "triple"}}
	b.out["triple_case"] = append(b.out["triple_case"], tripleEdge)
	b.in["inner_switch"] = append(b.in["inner_switch"], tripleEdge)
	doubleEdge := edge{from: "double_case", to: "inner_switch", attrs: EdgeAttrs{CaseBranch: "double"}}
	b.out["double_case"] = append(b.out["double_case"], doubleEdge)
	b.in["inner_switch"] = append(b.in["inner_switch"], doubleEdge)

	// The outer switch's "nested" case producer is the inner switch's head
	// itself: wire it directly as a case edge rather than through Switch
	// (which always creates its own consumer edge).
	b.ensureNode("outer_switch")
	attrs := b.nodeAttrs["outer_switch"]
	attrs.IsSwitch = true
	b.nodeAttrs["outer_switch"] = attrs
	deciderEdge := edge{from: "outer_decider", to: "outer_switch", attrs: EdgeAttrs{IsSwitch: true}}
	b.out["outer_decider"] = append(b.out["outer_decider"], deciderEdge)
	b.in["outer_switch"] = append(b.in["outer_switch"], deciderEdge)

	nestedEdge := edge{from: "inner_switch", to: "outer_switch", attrs: EdgeAttrs{CaseBranch: "nested"}}
	b.out["inner_switch"] = append(b.out["inner_switch"], nestedEdge)
	b.in["outer_switch"] = append(b.in["outer_switch"], nestedEdge)

	plainEdge := edge{from: "plain_case", to: "outer_switch", attrs: EdgeAttrs{CaseBranch: "plain"}}
	b.out["plain_case"] = append(b.out["plain_case"], plainEdge)
	b.in["outer_switch"] = append(b.in["outer_switch"], plainEdge)

	b.Edge("outer_switch", "consumer", "v")

	g, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	res := runGraph(t, g, map[string]any{"num": 2})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Value != 8 {
		t.Fatalf("Value = %v, want 8", res.Value)
	}
}

// Scenario 4: a one-of where the first candidate fails and the second
// succeeds.
func TestEngine_OneOfFallback(t *testing.T) {
	g, err := NewBuilder().
		AddNode("input", NodeDescriptor{Call: constFunc(struct{}{})}).
		AddNode("feature_ok", NodeDescriptor{Call: failFunc(errBoom)}).
		AddNode("feature_fallback", NodeDescriptor{Call: constFunc(777777)}).
		AddNode("consumer", NodeDescriptor{Call: identityFunc("v")}).
		Input("input").
		Output("consumer").
		OneOf("head", []OneOfBranch{
			{Dest: "feature_ok", Members: []NodeId{"feature_ok"}},
			{Dest: "feature_fallback", Members: []NodeId{"feature_fallback"}},
		}, "consumer", "v").
		Edge("input", "feature_ok", "unused").
		Edge("input", "feature_fallback", "unused").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	hooks := observability.NewBufferedHooks()
	res := runGraph(t, g, nil, WithHooks(hooks))
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Value != 777777 {
		t.Fatalf("Value = %v, want 777777", res.Value)
	}

	fallbacks := 0
	for _, ev := range hooks.Events() {
		if ev.Kind == observability.KindOneOfFallback {
			fallbacks++
		}
	}
	if fallbacks != 1 {
		t.Fatalf("fallback events = %d, want 1 (only the failed first candidate)", fallbacks)
	}
}

// Scenario 5: bounded recurrence where start != dest, exercising the
// additional_data injection path across multiple hops.
func TestEngine_Recurrence(t *testing.T) {
	var doubleCalls int32

	g, err := NewBuilder().
		AddNode("input", NodeDescriptor{Call: identityFunc("num")}).
		AddNode("invert", NodeDescriptor{Call: func(_ context.Context, kw map[string]any) (any, error) {
			if ad, ok := kw["additional_data"]; ok {
				return -(ad.(int)), nil
			}
			return -(kw["num"].(int)), nil
		}}).
		AddNode("pass", NodeDescriptor{Call: identityFunc("v")}).
		AddNode("double", NodeDescriptor{Call: func(_ context.Context, kw map[string]any) (any, error) {
			n := atomic.AddInt32(&doubleCalls, 1)
			val := kw["v"].(int) * 2
			switch n {
			case 1:
				return Recurrent{Data: val}, nil
			case 2:
				return Recurrent{Data: val}, nil
			default:
				return val, nil
			}
		}}).
		Input("input").
		Output("double").
		Edge("input", "invert", "num").
		Edge("invert", "pass", "v").
		Edge("pass", "double", "v").
		Recurrent("invert", "double", 3).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	res := runGraph(t, g, map[string]any{"num": 1})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	// iter1: invert(-1) -> v=-1 -> double recurs with -2
	// iter2: invert injected with -2 -> 2 -> v=2 -> double recurs with 4
	// iter3: invert injected with 4 -> -4 -> v=-4 -> double converges on -8
	// Reaching -8 (rather than -2, which the third call would return if
	// invert saw only the original input on every iteration) proves
	// additional_data was actually threaded into invert on iterations 2 and 3.
	if res.Value != -8 {
		t.Fatalf("Value = %v, want -8", res.Value)
	}
	if got := atomic.LoadInt32(&doubleCalls); got != 3 {
		t.Fatalf("double was called %d times, want 3", got)
	}
}

// Scenario 6: every one-of candidate fails, so the pipeline terminates with
// OneOfDoesNotHaveResultError and one fallback event per candidate.
func TestEngine_OneOfAllCandidatesFail(t *testing.T) {
	g, err := NewBuilder().
		AddNode("input", NodeDescriptor{Call: constFunc(struct{}{})}).
		AddNode("c1", NodeDescriptor{Call: failFunc(errBoom)}).
		AddNode("c2", NodeDescriptor{Call: failFunc(errBoom)}).
		AddNode("c3", NodeDescriptor{Call: failFunc(errBoom)}).
		AddNode("consumer", NodeDescriptor{Call: identityFunc("v")}).
		Input("input").
		Output("consumer").
		OneOf("head", []OneOfBranch{
			{Dest: "c1", Members: []NodeId{"c1"}},
			{Dest: "c2", Members: []NodeId{"c2"}},
			{Dest: "c3", Members: []NodeId{"c3"}},
		}, "consumer", "v").
		Edge("input", "c1", "unused").
		Edge("input", "c2", "unused").
		Edge("input", "c3", "unused").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	hooks := observability.NewBufferedHooks()
	res := runGraph(t, g, nil, WithHooks(hooks))
	if res.Err == nil {
		t.Fatal("expected error when every one-of candidate fails")
	}
	if _, ok := res.Err.(*OneOfDoesNotHaveResultError); !ok {
		t.Fatalf("err = %T, want *OneOfDoesNotHaveResultError", res.Err)
	}

	fallbacks := 0
	for _, ev := range hooks.Events() {
		if ev.Kind == observability.KindOneOfFallback {
			fallbacks++
		}
	}
	if fallbacks != 3 {
		t.Fatalf("fallback events = %d, want 3", fallbacks)
	}
}

// A diamond dependency (two consumers sharing a predecessor) must resolve
// the shared node exactly once even though both branches race to resolve
// it concurrently.
func TestEngine_DiamondDependencyResolvesOnce(t *testing.T) {
	var calls int32
	g, err := NewBuilder().
		AddNode("input", NodeDescriptor{Call: identityFunc("num")}).
		AddNode("shared", NodeDescriptor{Call: func(_ context.Context, kw map[string]any) (any, error) {
			atomic.AddInt32(&calls, 1)
			time.Sleep(5 * time.Millisecond)
			return kw["num"].(int) * 10, nil
		}}).
		AddNode("left", NodeDescriptor{Call: identityFunc("v")}).
		AddNode("right", NodeDescriptor{Call: identityFunc("v")}).
		AddNode("join", NodeDescriptor{Call: func(_ context.Context, kw map[string]any) (any, error) {
			return kw["l"].(int) + kw["r"].(int), nil
		}}).
		Input("input").
		Output("join").
		Edge("input", "shared", "num").
		Edge("shared", "left", "v").
		Edge("shared", "right", "v").
		Edge("left", "join", "l").
		Edge("right", "join", "r").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	res := runGraph(t, g, map[string]any{"num": 3})
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Value != 60 {
		t.Fatalf("Value = %v, want 60", res.Value)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("shared node executed %d times, want 1", got)
	}
}

// Results hidden from unresolved one-of children must not leak into the
// default reduced view: the branch that was never selected must not run.
func TestEngine_OneOfHidesUnselectedBranch(t *testing.T) {
	var ranUnselected int32
	g, err := NewBuilder().
		AddNode("input", NodeDescriptor{Call: constFunc(struct{}{})}).
		AddNode("winner", NodeDescriptor{Call: constFunc(1)}).
		AddNode("loser", NodeDescriptor{Call: func(_ context.Context, _ map[string]any) (any, error) {
			atomic.AddInt32(&ranUnselected, 1)
			return 2, nil
		}}).
		AddNode("consumer", NodeDescriptor{Call: identityFunc("v")}).
		Input("input").
		Output("consumer").
		OneOf("head", []OneOfBranch{
			{Dest: "winner", Members: []NodeId{"winner"}},
			{Dest: "loser", Members: []NodeId{"loser"}},
		}, "consumer", "v").
		Edge("input", "winner", "unused").
		Edge("input", "loser", "unused").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	res := runGraph(t, g, nil)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Value != 1 {
		t.Fatalf("Value = %v, want 1", res.Value)
	}
	if atomic.LoadInt32(&ranUnselected) != 0 {
		t.Fatal("the unselected one-of branch should never execute")
	}
}

func TestEngine_MissingPoolFailsFast(t *testing.T) {
	g, err := NewBuilder().
		AddNode("input", NodeDescriptor{Call: constFunc(1)}).
		AddNode("out", NodeDescriptor{Call: identityFunc("v"), Tags: NewTagSet(TagProcess)}).
		Input("input").
		Output("out").
		Edge("input", "out", "v").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	_, err = NewEngine(g, WithWorkerPools(WorkerPools{Thread: NewWorkerPool(1)}))
	if err == nil {
		t.Fatal("expected ErrMissingPool for a process-tagged node with no process pool configured")
	}
}

func TestEngine_NodeErrorPropagatesWithoutRetryOrDefault(t *testing.T) {
	g, err := NewBuilder().
		AddNode("input", NodeDescriptor{Call: constFunc(1)}).
		AddNode("out", NodeDescriptor{Call: failFunc(errBoom)}).
		Input("input").
		Output("out").
		Edge("input", "out", "v").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	res := runGraph(t, g, nil)
	if res.Err == nil {
		t.Fatal("expected a propagated error")
	}
	nodeErr, ok := res.Err.(*NodeError)
	if !ok {
		t.Fatalf("err = %T, want *NodeError", res.Err)
	}
	if nodeErr.NodeID != "out" {
		t.Fatalf("NodeID = %q, want out", nodeErr.NodeID)
	}
}

// A node that fails twice then succeeds under Attempts=3 must emit one
// KindNodeRetry event per failed attempt (spec §4.3 "node_complete(error)
// observability event for the failed attempt"), separate from the single
// terminal KindNodeComplete.
func TestEngine_RetryEmitsNodeRetryPerFailedAttempt(t *testing.T) {
	var calls int32
	g, err := NewBuilder().
		AddNode("input", NodeDescriptor{Call: constFunc(struct{}{})}).
		AddNode("flaky", NodeDescriptor{
			Call: func(_ context.Context, _ map[string]any) (any, error) {
				if atomic.AddInt32(&calls, 1) <= 2 {
					return nil, errBoom
				}
				return "ok", nil
			},
			Attempts: 3,
		}).
		Input("input").
		Output("flaky").
		Edge("input", "flaky", "v").
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	hooks := observability.NewBufferedHooks()
	res := runGraph(t, g, nil, WithHooks(hooks))
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Value != "ok" {
		t.Fatalf("Value = %v, want ok", res.Value)
	}

	var retries, completes int
	for _, ev := range hooks.Events() {
		if ev.NodeID != "flaky" {
			continue
		}
		switch ev.Kind {
		case observability.KindNodeRetry:
			retries++
			if ev.Err == nil {
				t.Fatal("KindNodeRetry event missing its attempt error")
			}
		case observability.KindNodeComplete:
			completes++
		}
	}
	if retries != 2 {
		t.Fatalf("KindNodeRetry events = %d, want 2 (one per failed attempt)", retries)
	}
	if completes != 1 {
		t.Fatalf("KindNodeComplete events = %d, want 1 (only the final success)", completes)
	}
}

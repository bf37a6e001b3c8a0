package dag

// OneOfBranch describes one candidate of a one-of selector: Dest is the
// final producer node whose value becomes the head's value when chosen;
// Members lists every node that belongs exclusively to this branch (Dest
// included), i.e. the nodes the default reduced graph must hide until this
// branch is selected.
//
// The source system infers branch membership by tracing ancestor paths from
// an annotation; an explicit Go builder has no annotations to trace, so
// Members is supplied directly. This is recorded as a deliberate adaptation
// in DESIGN.md.
type OneOfBranch struct {
	Dest    NodeId
	Members []NodeId
}

// Builder assembles a Graph explicitly, replacing the source system's
// reflection-driven annotation wiring (spec §9 design notes). Zero value is
// not usable; start from NewBuilder.
type Builder struct {
	nodeAttrs map[NodeId]NodeAttrs
	nodeDescs map[NodeId]*NodeDescriptor
	order     []NodeId

	out map[NodeId][]edge
	in  map[NodeId][]edge

	oneOfBranches map[NodeId][]OneOfBranch

	input  NodeId
	output NodeId

	err error
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		nodeAttrs:     make(map[NodeId]NodeAttrs),
		nodeDescs:     make(map[NodeId]*NodeDescriptor),
		out:           make(map[NodeId][]edge),
		in:            make(map[NodeId][]edge),
		oneOfBranches: make(map[NodeId][]OneOfBranch),
	}
}

func (b *Builder) fail(reason string) {
	if b.err == nil {
		b.err = &ValidationError{Reason: reason}
	}
}

func (b *Builder) ensureNode(id NodeId) {
	if _, ok := b.nodeAttrs[id]; !ok {
		b.nodeAttrs[id] = NodeAttrs{}
		b.order = append(b.order, id)
	}
}

// AddNode registers a node's callable and retry policy. Must be called
// before the node is referenced by Edge/Switch/OneOf/Recurrent, or the
// corresponding position is synthetic (switch/one-of heads created by those
// calls are added automatically with a nil descriptor, since they have no
// callable of their own).
func (b *Builder) AddNode(id NodeId, desc NodeDescriptor) *Builder {
	if id == "" {
		b.fail("node id must not be empty")
		return b
	}
	b.ensureNode(id)
	descCopy := desc
	b.nodeDescs[id] = &descCopy
	return b
}

// Input marks the pipeline's entry node; its kwargs come from
// PipelineContext.InputKwargs rather than predecessor edges.
func (b *Builder) Input(id NodeId) *Builder {
	b.ensureNode(id)
	b.input = id
	return b
}

// Output marks the pipeline's exit node; Engine.Run returns its value.
func (b *Builder) Output(id NodeId) *Builder {
	b.ensureNode(id)
	b.output = id
	return b
}

// Edge wires an ordinary dependency: to's kwargs[kwarg] will be bound to
// from's stored result.
func (b *Builder) Edge(from, to NodeId, kwarg string) *Builder {
	b.ensureNode(from)
	b.ensureNode(to)
	e := edge{from: from, to: to, attrs: EdgeAttrs{KwargName: kwarg}}
	b.out[from] = append(b.out[from], e)
	b.in[to] = append(b.in[to], e)
	return b
}

// Switch declares a switch-case operator: decider produces a label, and the
// case whose label matches becomes headID's (and therefore consumer's)
// value. headID is created as a synthetic node with no callable.
func (b *Builder) Switch(headID NodeId, decider NodeId, cases map[string]NodeId, consumer NodeId, kwarg string) *Builder {
	if len(cases) == 0 {
		b.fail("switch must have at least one case")
		return b
	}

	b.ensureNode(headID)
	attrs := b.nodeAttrs[headID]
	attrs.IsSwitch = true
	b.nodeAttrs[headID] = attrs

	b.ensureNode(decider)
	deciderEdge := edge{from: decider, to: headID, attrs: EdgeAttrs{IsSwitch: true}}
	b.out[decider] = append(b.out[decider], deciderEdge)
	b.in[headID] = append(b.in[headID], deciderEdge)

	for label, producer := range cases {
		b.ensureNode(producer)
		e := edge{from: producer, to: headID, attrs: EdgeAttrs{CaseBranch: label}}
		b.out[producer] = append(b.out[producer], e)
		b.in[headID] = append(b.in[headID], e)
	}

	b.Edge(headID, consumer, kwarg)
	return b
}

// OneOf declares a first-success-of-many operator: the ordered branches are
// tried in sequence and the first whose Dest yields a non-error,
// non-Recurrent result becomes headID's value, surfaced to consumer.
func (b *Builder) OneOf(headID NodeId, branches []OneOfBranch, consumer NodeId, kwarg string) *Builder {
	if len(branches) == 0 {
		b.fail(ErrEmptyOneOf.Error())
		return b
	}

	b.ensureNode(headID)
	attrs := b.nodeAttrs[headID]
	attrs.IsOneOfHead = true
	for _, br := range branches {
		attrs.OneOfNodes = append(attrs.OneOfNodes, br.Dest)
	}
	b.nodeAttrs[headID] = attrs
	b.oneOfBranches[headID] = append([]OneOfBranch(nil), branches...)

	for _, br := range branches {
		for _, m := range br.Members {
			b.ensureNode(m)
			ma := b.nodeAttrs[m]
			ma.IsOneOfChild = true
			b.nodeAttrs[m] = ma
		}

		// A structural edge from each candidate's Dest to headID, mirroring
		// Switch's case-producer edges, so build-time reachability sees a
		// path through whichever branch actually runs. resolveOneOf never
		// consults this edge at runtime (it reads oneOfBranches directly),
		// and the default view already excludes IsOneOfChild nodes from its
		// node set, so it never makes head wait on a hidden candidate.
		destEdge := edge{from: br.Dest, to: headID}
		b.out[br.Dest] = append(b.out[br.Dest], destEdge)
		b.in[headID] = append(b.in[headID], destEdge)
	}

	b.Edge(headID, consumer, kwarg)
	return b
}

// Recurrent marks dest as the destination of a bounded recurrence: its
// callable may return Recurrent{Data} to request the subgraph between start
// and dest be re-executed, up to maxIterations times.
func (b *Builder) Recurrent(start, dest NodeId, maxIterations int) *Builder {
	if maxIterations < 1 {
		b.fail("recurrent max_iterations must be >= 1")
		return b
	}
	b.ensureNode(start)
	b.ensureNode(dest)

	attrs := b.nodeAttrs[dest]
	attrs.StartNode = start
	attrs.MaxIterations = maxIterations
	b.nodeAttrs[dest] = attrs
	return b
}

// Build validates and freezes the graph. Validation failures are reported
// as *ValidationError and are always fatal (spec §7).
func (b *Builder) Build() (*Graph, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.input == "" {
		return nil, &ValidationError{Reason: "input node not set"}
	}
	if b.output == "" {
		return nil, &ValidationError{Reason: "output node not set"}
	}
	if !b.reachable(b.input, b.output) {
		return nil, &ValidationError{Reason: "output node is not reachable from input node"}
	}
	if err := b.validateSwitches(); err != nil {
		return nil, err
	}
	if err := b.validateRecurrence(); err != nil {
		return nil, err
	}

	if err := b.validateAcyclic(); err != nil {
		return nil, err
	}

	g := &Graph{
		nodeAttrs:     make(map[NodeId]NodeAttrs, len(b.nodeAttrs)),
		nodeDescs:     make(map[NodeId]*NodeDescriptor, len(b.nodeDescs)),
		order:         append([]NodeId(nil), b.order...),
		out:           make(map[NodeId][]edge, len(b.out)),
		in:            make(map[NodeId][]edge, len(b.in)),
		oneOfBranches: make(map[NodeId][]OneOfBranch, len(b.oneOfBranches)),
		input:         b.input,
		output:        b.output,
	}
	for k, v := range b.nodeAttrs {
		g.nodeAttrs[k] = v
	}
	for k, v := range b.nodeDescs {
		g.nodeDescs[k] = v
	}
	for k, edges := range b.out {
		g.out[k] = append([]edge(nil), edges...)
	}
	for k, edges := range b.in {
		g.in[k] = append([]edge(nil), edges...)
	}
	for k, branches := range b.oneOfBranches {
		g.oneOfBranches[k] = append([]OneOfBranch(nil), branches...)
	}
	return g, nil
}

func (b *Builder) validateSwitches() error {
	for id, attrs := range b.nodeAttrs {
		if !attrs.IsSwitch {
			continue
		}
		deciders := 0
		labels := make(map[string]struct{})
		for _, e := range b.in[id] {
			if e.attrs.IsSwitch {
				deciders++
				continue
			}
			if e.attrs.CaseBranch == "" {
				return &ValidationError{Reason: "switch node " + id + " has an edge with neither is_switch nor case_branch set"}
			}
			if _, dup := labels[e.attrs.CaseBranch]; dup {
				return &ValidationError{Reason: "switch node " + id + " has duplicate case label " + e.attrs.CaseBranch}
			}
			labels[e.attrs.CaseBranch] = struct{}{}
		}
		if deciders != 1 {
			return &ValidationError{Reason: "switch node " + id + " must have exactly one decider edge"}
		}
	}
	return nil
}

func (b *Builder) validateRecurrence() error {
	for id, attrs := range b.nodeAttrs {
		if !attrs.isRecurrentDestination() {
			continue
		}
		if !b.reachable(attrs.StartNode, id) {
			return &ValidationError{Reason: "recurrent start node " + attrs.StartNode + " is not an ancestor of destination " + id}
		}
	}
	return nil
}

// validateAcyclic checks spec §3's "the graph is acyclic in its normal
// edges" invariant, using topoSort's cycle error (selector.go).
func (b *Builder) validateAcyclic() error {
	tmp := &Graph{
		nodeAttrs: b.nodeAttrs,
		nodeDescs: b.nodeDescs,
		order:     b.order,
		out:       b.out,
		in:        b.in,
	}
	v := newDefaultView(tmp)
	if _, err := topoSort(v, v.nodeIds()); err != nil {
		return err
	}
	return nil
}

// reachable does a simple forward BFS; used only at build time.
func (b *Builder) reachable(from, to NodeId) bool {
	if from == to {
		return true
	}
	seen := map[NodeId]bool{from: true}
	queue := []NodeId{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range b.out[cur] {
			if e.to == to {
				return true
			}
			if !seen[e.to] {
				seen[e.to] = true
				queue = append(queue, e.to)
			}
		}
	}
	return false
}

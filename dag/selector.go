package dag

import "sort"

// newDefaultView builds the view used for a fresh run, or for a recurrent
// subgraph's fresh iteration: every node except unresolved one-of children,
// with every switch-case edge dead (spec §4.4 "reduced graph"). Switch heads
// stay reachable through their decider edge only until a label resolves.
func newDefaultView(g *Graph) *view {
	v := &view{
		g:                  g,
		nodes:              make(map[NodeId]struct{}),
		deadEdge:           make(map[[2]NodeId]struct{}),
		oneOfChildOverride: make(map[NodeId]bool),
	}
	for _, id := range g.Nodes() {
		if g.Attrs(id).IsOneOfChild {
			continue
		}
		v.nodes[id] = struct{}{}
	}
	for _, id := range g.Nodes() {
		for _, e := range g.Successors(id) {
			if e.isCaseEdge() {
				v.deadEdge[[2]NodeId{e.from, e.to}] = struct{}{}
			}
		}
	}
	return v
}

// clone returns a shallow copy of v with independently mutable maps, so
// resolving one switch or one-of doesn't mutate a view another goroutine may
// still be reading.
func (v *view) clone() *view {
	nv := &view{
		g:                  v.g,
		nodes:              make(map[NodeId]struct{}, len(v.nodes)),
		deadEdge:           make(map[[2]NodeId]struct{}, len(v.deadEdge)),
		oneOfChildOverride: make(map[NodeId]bool, len(v.oneOfChildOverride)),
		isRecurrent:        v.isRecurrent,
		isOneOf:            v.isOneOf,
		isNestedOneOf:      v.isNestedOneOf,
	}
	for k := range v.nodes {
		nv.nodes[k] = struct{}{}
	}
	for k := range v.deadEdge {
		nv.deadEdge[k] = struct{}{}
	}
	for k, ov := range v.oneOfChildOverride {
		nv.oneOfChildOverride[k] = ov
	}
	return nv
}

// switchReduced returns a view in which the case edge labeled label feeding
// switchID is revived, so the chosen branch's producer becomes a live
// dependency of switchID (spec §4.4 "switch-reduced").
func switchReduced(base *view, switchID NodeId, label string) *view {
	nv := base.clone()
	for _, e := range base.g.Predecessors(switchID) {
		if e.attrs.CaseBranch == label {
			delete(nv.deadEdge, [2]NodeId{e.from, e.to})
		}
	}
	return nv
}

// oneOfReduced returns a view in which branch's members are included and no
// longer treated as one-of children, so the chosen candidate's subgraph
// becomes schedulable (spec §4.4 "one-of-reduced").
func oneOfReduced(base *view, branch OneOfBranch) *view {
	nv := base.clone()
	nv.isNestedOneOf = base.isOneOf
	nv.isOneOf = true
	for _, m := range branch.Members {
		nv.nodes[m] = struct{}{}
		nv.oneOfChildOverride[m] = false
	}
	return nv
}

// recurrentView returns the view of every node lying on some simple path
// from start to dest in g, tagged isRecurrent. Mirrors the source system's
// get_connected_subgraph: it operates over the full graph's edges directly,
// ignoring switch/one-of liveness, since a recurrent subgraph is fixed at
// build time (spec §4.4 "recurrent-reduced").
func recurrentView(g *Graph, start, dest NodeId) *view {
	included := map[NodeId]struct{}{}
	var walk func(cur NodeId, path map[NodeId]struct{}, order []NodeId)
	walk = func(cur NodeId, path map[NodeId]struct{}, order []NodeId) {
		if cur == dest {
			for _, id := range order {
				included[id] = struct{}{}
			}
			included[dest] = struct{}{}
			return
		}
		for _, e := range g.Successors(cur) {
			if _, inPath := path[e.to]; inPath {
				continue
			}
			path[e.to] = struct{}{}
			walk(e.to, path, append(order, e.to))
			delete(path, e.to)
		}
	}
	walk(start, map[NodeId]struct{}{start: {}}, []NodeId{start})

	v := &view{
		g:                  g,
		nodes:              included,
		deadEdge:           map[[2]NodeId]struct{}{},
		oneOfChildOverride: map[NodeId]bool{},
		isRecurrent:        true,
	}
	for id := range included {
		for _, e := range g.Successors(id) {
			if e.isCaseEdge() {
				v.deadEdge[[2]NodeId{e.from, e.to}] = struct{}{}
			}
		}
	}
	return v
}

// ancestorClosure returns, in no particular order, every node in v that
// target transitively depends on (target included). Used by
// Graph.Ancestors.
func ancestorClosure(v *view, target NodeId) []NodeId {
	seen := map[NodeId]struct{}{}
	queue := []NodeId{target}
	seen[target] = struct{}{}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range v.predecessors(cur) {
			if _, ok := seen[e.from]; ok {
				continue
			}
			seen[e.from] = struct{}{}
			queue = append(queue, e.from)
		}
	}
	out := make([]NodeId, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out
}

// topoSort returns ids in a topological order consistent with v's live
// edges, breaking ties lexicographically by NodeId so ordering is stable
// and reproducible across runs and platforms (spec §4.4). Returns an error
// if the restricted edge set contains a cycle; Builder.validateAcyclic
// relies on this error to reject cyclic graphs at build time.
func topoSort(v *view, ids []NodeId) ([]NodeId, error) {
	inDegree := make(map[NodeId]int, len(ids))
	idSet := make(map[NodeId]struct{}, len(ids))
	for _, id := range ids {
		idSet[id] = struct{}{}
	}
	for _, id := range ids {
		deg := 0
		for _, e := range v.predecessors(id) {
			if _, ok := idSet[e.from]; ok {
				deg++
			}
		}
		inDegree[id] = deg
	}

	ready := make([]NodeId, 0, len(ids))
	for _, id := range ids {
		if inDegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	out := make([]NodeId, 0, len(ids))
	for len(ready) > 0 {
		sort.Strings(ready)
		next := ready[0]
		ready = ready[1:]
		out = append(out, next)

		for _, id := range ids {
			if _, ok := idSet[id]; !ok {
				continue
			}
			isSuccessor := false
			for _, e := range v.predecessors(id) {
				if e.from == next {
					isSuccessor = true
					break
				}
			}
			if !isSuccessor {
				continue
			}
			inDegree[id]--
			if inDegree[id] == 0 {
				ready = append(ready, id)
			}
		}
	}

	if len(out) != len(ids) {
		return nil, &ValidationError{Reason: "cycle detected while computing topological order"}
	}
	return out, nil
}

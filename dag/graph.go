package dag

import "fmt"

// Graph is an immutable directed graph over NodeIds: node/edge attributes
// plus a node table of NodeDescriptors. Built exclusively via Builder.Build;
// safe for concurrent reads by all scheduler components.
type Graph struct {
	nodeAttrs map[NodeId]NodeAttrs
	nodeDescs map[NodeId]*NodeDescriptor
	order     []NodeId // insertion order, used for deterministic iteration

	out map[NodeId][]edge // outgoing edges, keyed by source
	in  map[NodeId][]edge // incoming edges, keyed by destination

	// oneOfBranches records each one-of head's candidate branches in order,
	// including the member-node sets a Builder caller supplied, which
	// NodeAttrs.OneOfNodes (destinations only) doesn't carry.
	oneOfBranches map[NodeId][]OneOfBranch

	input  NodeId
	output NodeId
}

// OneOfBranches returns headID's candidate branches in selection order, or
// nil if headID is not a one-of head.
func (g *Graph) OneOfBranches(headID NodeId) []OneOfBranch {
	return g.oneOfBranches[headID]
}

// InputNode returns the pipeline's entry node.
func (g *Graph) InputNode() NodeId { return g.input }

// OutputNode returns the pipeline's exit node.
func (g *Graph) OutputNode() NodeId { return g.output }

// Nodes returns all node ids in build/insertion order.
func (g *Graph) Nodes() []NodeId {
	out := make([]NodeId, len(g.order))
	copy(out, g.order)
	return out
}

// HasNode reports whether id names a node in the graph.
func (g *Graph) HasNode(id NodeId) bool {
	_, ok := g.nodeAttrs[id]
	return ok
}

// Attrs returns the node attributes for id, or the zero value if absent.
func (g *Graph) Attrs(id NodeId) NodeAttrs {
	return g.nodeAttrs[id]
}

// Descriptor returns the NodeDescriptor for id, or nil if absent.
func (g *Graph) Descriptor(id NodeId) *NodeDescriptor {
	return g.nodeDescs[id]
}

// Predecessors returns the incoming edges of id in a stable order
// (insertion order of Edge/Switch/OneOf calls).
func (g *Graph) Predecessors(id NodeId) []edge {
	return g.in[id]
}

// Successors returns the outgoing edges of id in a stable order.
func (g *Graph) Successors(id NodeId) []edge {
	return g.out[id]
}

// Ancestors returns every node id (id included) that id transitively
// depends on via live edges in the graph's default reduced view, useful for
// introspection and debugging tooling built on top of the engine.
func (g *Graph) Ancestors(id NodeId) []NodeId {
	return ancestorClosure(newDefaultView(g), id)
}

// String renders a compact summary, matching the teacher's __repr__ style.
func (g *Graph) String() string {
	return fmt.Sprintf("<Graph nnodes=%d nedges=%d input=%q output=%q>", len(g.nodeAttrs), g.edgeCount(), g.input, g.output)
}

func (g *Graph) edgeCount() int {
	n := 0
	for _, edges := range g.out {
		n += len(edges)
	}
	return n
}

// view is a filtered, read-only projection of a Graph used by the subgraph
// selectors (selector.go). It never copies node payloads, only restricts
// which nodes/edges are visible, as spec §9 ("filtered views") requires.
type view struct {
	g *Graph

	// nodes restricts visibility to this set. A nil set makes no node
	// visible.
	nodes map[NodeId]struct{}

	// deadEdge overrides liveness for specific edges, keyed by (from,to).
	// Used to strip inactive switch-case edges.
	deadEdge map[[2]NodeId]struct{}

	// oneOfChildOverride flips IsOneOfChild to false for specific nodes,
	// used when a one-of branch has been selected.
	oneOfChildOverride map[NodeId]bool

	isRecurrent   bool
	isOneOf       bool
	isNestedOneOf bool
}

// IsRecurrent reports whether v is a recurrent-reduced subgraph view.
func (v *view) IsRecurrent() bool { return v.isRecurrent }

// IsOneOf reports whether v is a one-of-reduced subgraph view.
func (v *view) IsOneOf() bool { return v.isOneOf }

// IsNestedOneOf reports whether v's one-of is itself inside another
// one-of's selected branch (spec §4.4 "isNestedOneOf").
func (v *view) IsNestedOneOf() bool { return v.isNestedOneOf }

func (v *view) hasNode(id NodeId) bool {
	_, ok := v.nodes[id]
	return ok
}

func (v *view) attrs(id NodeId) NodeAttrs {
	a := v.g.Attrs(id)
	if override, ok := v.oneOfChildOverride[id]; ok {
		a.IsOneOfChild = override
	}
	return a
}

func (v *view) predecessors(id NodeId) []edge {
	all := v.g.Predecessors(id)
	out := make([]edge, 0, len(all))
	for _, e := range all {
		if !v.hasNode(e.from) {
			continue
		}
		if _, dead := v.deadEdge[[2]NodeId{e.from, e.to}]; dead {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (v *view) nodeIds() []NodeId {
	out := make([]NodeId, 0, len(v.nodes))
	for _, id := range v.g.order {
		if v.hasNode(id) {
			out = append(out, id)
		}
	}
	return out
}

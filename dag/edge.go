package dag

// EdgeAttrs carries the per-edge graph metadata from spec §3.
type EdgeAttrs struct {
	// KwargName is the argument name bound from the producer's result when
	// assembling the consumer's input kwargs. Empty means the edge exists
	// only for switch/case wiring and carries no kwarg.
	KwargName string

	// IsSwitch marks the single decider edge feeding a switch node.
	IsSwitch bool

	// CaseBranch labels a switch-case edge; it is "live" only when it
	// equals the chosen label. Empty for non-case edges.
	CaseBranch string
}

// edge is an internal directed edge record.
type edge struct {
	from, to NodeId
	attrs    EdgeAttrs
}

// isCaseEdge reports whether this edge carries a case-branch label.
func (e edge) isCaseEdge() bool {
	return e.attrs.CaseBranch != ""
}

package causal

import (
	"github.com/danielpatrickdp/race-sim/go-engine/internal/ontology"
)

// #region veto-filter

// ApplyVetoRules returns a copy of g with every vetoed edge removed.
// Idempotent: a second application changes nothing. Rules never add
// edges, and rules naming variables outside the graph are no-ops.
func ApplyVetoRules(g *Graph, rules []ontology.VetoRule) *Graph {
	out := g.Clone()
	for _, r := range rules {
		out.RemoveEdge(r.Source, r.Target)
	}
	return out
}

// #endregion veto-filter

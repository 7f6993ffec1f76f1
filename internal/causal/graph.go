package causal

import (
	"sort"

	"github.com/danielpatrickdp/race-sim/go-engine/internal/simerr"
)

// #region graph

// Graph is a directed graph over variable names. Acyclicity is enforced
// where it matters: TopoOrder fails with CAUSAL_CYCLE if a cycle slipped
// in, and the structure learner orients edges along a total order so it
// can never produce one.
type Graph struct {
	nodes []string // sorted
	edges map[string]map[string]bool
}

// NewGraph builds a graph over the given node set with no edges.
func NewGraph(nodes []string) *Graph {
	uniq := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		uniq[n] = true
	}
	sorted := make([]string, 0, len(uniq))
	for n := range uniq {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)
	return &Graph{nodes: sorted, edges: make(map[string]map[string]bool)}
}

// Nodes returns the node names, sorted.
func (g *Graph) Nodes() []string {
	out := make([]string, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// HasNode reports whether name is in the graph.
func (g *Graph) HasNode(name string) bool {
	i := sort.SearchStrings(g.nodes, name)
	return i < len(g.nodes) && g.nodes[i] == name
}

// AddEdge inserts a directed edge. Both endpoints must be nodes, and
// self-loops are rejected. Adding an existing edge is a no-op.
func (g *Graph) AddEdge(source, target string) error {
	if !g.HasNode(source) {
		return simerr.Newf(simerr.CodeUnknownVariable, "no variable %s in graph", source)
	}
	if !g.HasNode(target) {
		return simerr.Newf(simerr.CodeUnknownVariable, "no variable %s in graph", target)
	}
	if source == target {
		return simerr.Newf(simerr.CodeInvariantViolation, "self edge on %s", source)
	}
	if g.edges[source] == nil {
		g.edges[source] = make(map[string]bool)
	}
	g.edges[source][target] = true
	return nil
}

// RemoveEdge deletes a directed edge. Removing an absent edge, or one
// naming unknown variables, is a no-op.
func (g *Graph) RemoveEdge(source, target string) {
	if targets, ok := g.edges[source]; ok {
		delete(targets, target)
		if len(targets) == 0 {
			delete(g.edges, source)
		}
	}
}

// HasEdge reports whether source -> target exists.
func (g *Graph) HasEdge(source, target string) bool {
	return g.edges[source][target]
}

// EdgeCount returns the number of directed edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, targets := range g.edges {
		n += len(targets)
	}
	return n
}

// Parents returns the sources of edges into name, sorted.
func (g *Graph) Parents(name string) []string {
	var out []string
	for _, src := range g.nodes {
		if g.edges[src][name] {
			out = append(out, src)
		}
	}
	return out
}

// Children returns the targets of edges out of name, sorted.
func (g *Graph) Children(name string) []string {
	var out []string
	for t := range g.edges[name] {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Clone returns an independent copy.
func (g *Graph) Clone() *Graph {
	out := &Graph{
		nodes: append([]string(nil), g.nodes...),
		edges: make(map[string]map[string]bool, len(g.edges)),
	}
	for src, targets := range g.edges {
		m := make(map[string]bool, len(targets))
		for t := range targets {
			m[t] = true
		}
		out.edges[src] = m
	}
	return out
}

// Equal reports whether two graphs have identical nodes and edges.
func (g *Graph) Equal(other *Graph) bool {
	if len(g.nodes) != len(other.nodes) || g.EdgeCount() != other.EdgeCount() {
		return false
	}
	for i, n := range g.nodes {
		if other.nodes[i] != n {
			return false
		}
	}
	for src, targets := range g.edges {
		for t := range targets {
			if !other.HasEdge(src, t) {
				return false
			}
		}
	}
	return true
}

// #endregion graph

// #region topo-order

// TopoOrder returns the nodes in a deterministic topological order
// (Kahn's algorithm, lexicographic tie-break). Fails with CAUSAL_CYCLE
// when no such order exists.
func (g *Graph) TopoOrder() ([]string, error) {
	indeg := make(map[string]int, len(g.nodes))
	for _, n := range g.nodes {
		indeg[n] = 0
	}
	for _, targets := range g.edges {
		for t := range targets {
			indeg[t]++
		}
	}

	var ready []string
	for _, n := range g.nodes { // nodes are sorted, so ready starts sorted
		if indeg[n] == 0 {
			ready = append(ready, n)
		}
	}

	order := make([]string, 0, len(g.nodes))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)

		released := g.Children(n)
		for _, c := range released {
			indeg[c]--
			if indeg[c] == 0 {
				ready = insertSorted(ready, c)
			}
		}
	}

	if len(order) != len(g.nodes) {
		return nil, simerr.Newf(simerr.CodeCausalCycle, "cycle among %d unordered variables", len(g.nodes)-len(order))
	}
	return order, nil
}

func insertSorted(s []string, v string) []string {
	i := sort.SearchStrings(s, v)
	s = append(s, "")
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

// #endregion topo-order

// #region traversal

// Ancestors walks parent edges breadth-first from name and returns every
// variable that can causally influence it.
func (g *Graph) Ancestors(name string) (map[string]bool, error) {
	if !g.HasNode(name) {
		return nil, simerr.Newf(simerr.CodeUnknownVariable, "no variable %s in graph", name)
	}

	found := make(map[string]bool)
	queue := []string{name}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, p := range g.Parents(cur) {
			if found[p] {
				continue
			}
			found[p] = true
			queue = append(queue, p)
		}
	}
	return found, nil
}

// Descendants walks child edges breadth-first from name and returns every
// variable it can causally influence.
func (g *Graph) Descendants(name string) (map[string]bool, error) {
	if !g.HasNode(name) {
		return nil, simerr.Newf(simerr.CodeUnknownVariable, "no variable %s in graph", name)
	}

	found := make(map[string]bool)
	queue := []string{name}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, c := range g.Children(cur) {
			if found[c] {
				continue
			}
			found[c] = true
			queue = append(queue, c)
		}
	}
	return found, nil
}

// #endregion traversal

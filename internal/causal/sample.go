package causal

import (
	"math/rand"
	"sort"

	"github.com/danielpatrickdp/race-sim/go-engine/internal/simerr"
)

// #region table

// Table holds forward samples, one column per variable in topological
// order.
type Table struct {
	Vars          []string
	Rows          []map[string]Value
	DefaultFilled []string // nodes that fell back to a default distribution
}

// Value returns one sampled assignment.
func (t *Table) Value(row int, name string) (Value, bool) {
	if row < 0 || row >= len(t.Rows) {
		return Value{}, false
	}
	v, ok := t.Rows[row][name]
	return v, ok
}

// #endregion table

// #region sample

// SampleOutcomes draws n forward samples in the fixed topological order.
// Evidence values are clamped before any descendant samples, so evidence
// conditions the draw exactly; there is no rejection loop. Evidence keys
// outside the DAG fail with UNKNOWN_VARIABLE, out-of-domain evidence with
// VALUE_OUT_OF_DOMAIN.
func (m *Model) SampleOutcomes(n int, evidence map[string]Value, rng *rand.Rand) (*Table, error) {
	if n < 1 {
		return nil, simerr.Newf(simerr.CodeInvariantViolation, "sample count %d, need at least 1", n)
	}

	// Validate evidence up front, in sorted key order so failures are
	// deterministic.
	keys := make([]string, 0, len(evidence))
	for k := range evidence {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !m.graph.HasNode(k) {
			return nil, simerr.Newf(simerr.CodeUnknownVariable, "evidence variable %s not in graph", k)
		}
		d, err := m.reg.Domain(k)
		if err != nil {
			return nil, err
		}
		if !d.Contains(evidence[k]) {
			return nil, simerr.Newf(simerr.CodeValueOutOfDomain, "evidence %s outside declared domain", k)
		}
	}

	defaultHit := make(map[string]bool)
	rows := make([]map[string]Value, 0, n)
	for i := 0; i < n; i++ {
		vals := make(map[string]Value, len(m.topo))
		for _, node := range m.topo {
			if ev, ok := evidence[node]; ok {
				vals[node] = ev
				continue
			}

			domain, err := m.reg.Domain(node)
			if err != nil {
				return nil, err
			}
			cpd, ok := m.cpds[node]
			if !ok {
				return nil, simerr.Newf(simerr.CodeUnknownVariable, "no conditional table for %s", node)
			}
			dist, usedDefault := cpd.lookup(m.reg, vals)
			if usedDefault {
				defaultHit[node] = true
			}

			v := sampleDistribution(dist, domain, rng)
			if !domain.Contains(v) {
				return nil, simerr.Newf(simerr.CodeValueOutOfDomain, "sampled %s outside declared domain", node)
			}
			vals[node] = v
		}
		rows = append(rows, vals)
	}

	filled := make([]string, 0, len(defaultHit))
	for node := range defaultHit {
		filled = append(filled, node)
	}
	sort.Strings(filled)

	return &Table{
		Vars:          m.TopoOrder(),
		Rows:          rows,
		DefaultFilled: filled,
	}, nil
}

// sampleDistribution draws one value. Discrete rows use a cumulative
// scan; continuous rows draw a Gaussian clamped into the domain bounds.
func sampleDistribution(dist Distribution, d Domain, rng *rand.Rand) Value {
	if dist.isDiscrete() {
		r := rng.Float64()
		cum := 0.0
		for i, p := range dist.Probs {
			cum += p
			if r < cum {
				return d.decodeLevel(i)
			}
		}
		return d.decodeLevel(len(dist.Probs) - 1)
	}

	v := rng.NormFloat64()*dist.Std + dist.Mean
	if v < d.Min {
		v = d.Min
	}
	if v > d.Max {
		v = d.Max
	}
	return FloatValue(v)
}

// #endregion sample

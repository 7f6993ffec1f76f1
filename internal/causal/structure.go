package causal

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/race-sim/go-engine/internal/histdata"
)

// #region structure-config

// StructureConfig controls constraint-based structure search.
type StructureConfig struct {
	MinRows int     // below this the learner degrades to the empty graph
	Alpha   float64 // dependence threshold on normalized mutual information
	MaxCond int     // conditioning set size for the pruning pass (0 or 1)
}

// DefaultStructureConfig returns the tuned search settings.
func DefaultStructureConfig() StructureConfig {
	return StructureConfig{MinRows: 40, Alpha: 0.05, MaxCond: 1}
}

// StructureResult is the tagged outcome of structure learning: either a
// usable graph, or the empty graph with Degraded set and the reason
// recorded. Learning never fails outright.
type StructureResult struct {
	Graph    *Graph
	Degraded bool
	Reason   string
	Pairs    int // dependence tests run
	Pruned   int // candidate edges removed by conditional independence
}

// #endregion structure-config

// #region learn

// LearnStructure runs a constraint-based search over the dataset columns
// that match registry variables: pairwise dependence screening on binned
// data, a single-variable conditional independence pruning pass, then
// orientation along the causal tier order (ratings and regime feed
// propensities, propensities feed outcomes). The output is deterministic
// for a given dataset.
func LearnStructure(reg *Registry, ds histdata.Dataset, cfg StructureConfig) StructureResult {
	g := NewGraph(reg.Names())

	if ds.Len() < cfg.MinRows {
		return StructureResult{
			Graph:    g,
			Degraded: true,
			Reason:   fmt.Sprintf("insufficient rows: have %d, need %d", ds.Len(), cfg.MinRows),
		}
	}

	// Variables usable for learning: registry order, present in the data.
	type lvar struct {
		name string
		bins []int
		n    int
	}
	var vars []lvar
	for _, name := range reg.Names() {
		idx, ok := ds.ColumnIndex(name)
		if !ok {
			continue
		}
		d, err := reg.Domain(name)
		if err != nil {
			continue
		}
		bins := make([]int, ds.Len())
		for i, row := range ds.Rows {
			bins[i] = d.binOf(row[idx])
		}
		vars = append(vars, lvar{name: name, bins: bins, n: d.binCount()})
	}
	if len(vars) < 2 {
		return StructureResult{
			Graph:    g,
			Degraded: true,
			Reason:   fmt.Sprintf("dataset covers %d model variables, need 2", len(vars)),
		}
	}

	res := StructureResult{Graph: g}

	// 1. Skeleton: keep pairs whose normalized mutual information clears
	// the threshold.
	type pair struct{ a, b int }
	var candidates []pair
	for i := 0; i < len(vars); i++ {
		for j := i + 1; j < len(vars); j++ {
			res.Pairs++
			if normMutualInfo(vars[i].bins, vars[j].bins, vars[i].n, vars[j].n) >= cfg.Alpha {
				candidates = append(candidates, pair{i, j})
			}
		}
	}

	// 2. Conditioning pass: drop any pair that a single third variable
	// renders independent.
	var kept []pair
	for _, p := range candidates {
		separated := false
		if cfg.MaxCond >= 1 {
			for k := range vars {
				if k == p.a || k == p.b {
					continue
				}
				if condMutualInfo(vars[p.a].bins, vars[p.b].bins, vars[k].bins, vars[p.a].n, vars[p.b].n, vars[k].n) < cfg.Alpha {
					separated = true
					res.Pruned++
					break
				}
			}
		}
		if !separated {
			kept = append(kept, p)
		}
	}

	// 3. Orientation: edges always point from the lower (tier, name) pair
	// to the higher, which is a total order, so cycles cannot form.
	for _, p := range kept {
		src, dst := vars[p.a].name, vars[p.b].name
		if !orientsBefore(src, dst) {
			src, dst = dst, src
		}
		if err := g.AddEdge(src, dst); err != nil {
			return StructureResult{
				Graph:    NewGraph(reg.Names()),
				Degraded: true,
				Reason:   fmt.Sprintf("orientation failed: %v", err),
				Pairs:    res.Pairs,
				Pruned:   res.Pruned,
			}
		}
	}

	if g.EdgeCount() == 0 {
		res.Degraded = true
		res.Reason = "no dependencies above threshold"
	}
	return res
}

// causalTier places each variable in the generative hierarchy: driver
// ratings and regime inputs first, propensities next, realized outcomes
// last.
func causalTier(name string) int {
	switch name {
	case VarSkill, VarAggression, VarShadowRisk,
		VarNCautions, VarPitStrategy, VarFuelWindowRisk, VarLateRaceChaos:
		return 0
	case VarIncidentPropensity, VarLapsLedShare, VarFastestShare, VarFinishPropensity:
		return 1
	case VarIncidents, VarDNFFlag:
		return 2
	default:
		return 1
	}
}

func orientsBefore(a, b string) bool {
	ta, tb := causalTier(a), causalTier(b)
	if ta != tb {
		return ta < tb
	}
	return a < b
}

// #endregion learn

// #region independence

// normMutualInfo returns MI(x;y) normalized by the smaller marginal
// entropy, in 0..1. Degenerate columns score 0.
func normMutualInfo(x, y []int, nx, ny int) float64 {
	n := len(x)
	if n == 0 {
		return 0
	}
	joint := make([]float64, nx*ny)
	px := make([]float64, nx)
	py := make([]float64, ny)
	for i := 0; i < n; i++ {
		joint[x[i]*ny+y[i]]++
		px[x[i]]++
		py[y[i]]++
	}
	total := float64(n)

	mi := 0.0
	for a := 0; a < nx; a++ {
		for b := 0; b < ny; b++ {
			j := joint[a*ny+b]
			if j == 0 {
				continue
			}
			pj := j / total
			mi += pj * math.Log(pj*total*total/(px[a]*py[b]))
		}
	}

	hx := entropy(px, total)
	hy := entropy(py, total)
	min := hx
	if hy < min {
		min = hy
	}
	if min <= 0 {
		return 0
	}
	return mi / min
}

// condMutualInfo returns MI(x;y|z) normalized by the smaller marginal
// entropy of x and y.
func condMutualInfo(x, y, z []int, nx, ny, nz int) float64 {
	n := len(x)
	if n == 0 {
		return 0
	}

	cmi := 0.0
	for c := 0; c < nz; c++ {
		var xs, ys []int
		for i := 0; i < n; i++ {
			if z[i] == c {
				xs = append(xs, x[i])
				ys = append(ys, y[i])
			}
		}
		if len(xs) == 0 {
			continue
		}
		pz := float64(len(xs)) / float64(n)
		cmi += pz * rawMutualInfo(xs, ys, nx, ny)
	}

	px := make([]float64, nx)
	py := make([]float64, ny)
	for i := 0; i < n; i++ {
		px[x[i]]++
		py[y[i]]++
	}
	hx := entropy(px, float64(n))
	hy := entropy(py, float64(n))
	min := hx
	if hy < min {
		min = hy
	}
	if min <= 0 {
		return 0
	}
	return cmi / min
}

func rawMutualInfo(x, y []int, nx, ny int) float64 {
	n := len(x)
	if n == 0 {
		return 0
	}
	joint := make([]float64, nx*ny)
	px := make([]float64, nx)
	py := make([]float64, ny)
	for i := 0; i < n; i++ {
		joint[x[i]*ny+y[i]]++
		px[x[i]]++
		py[y[i]]++
	}
	total := float64(n)
	mi := 0.0
	for a := 0; a < nx; a++ {
		for b := 0; b < ny; b++ {
			j := joint[a*ny+b]
			if j == 0 {
				continue
			}
			pj := j / total
			mi += pj * math.Log(pj*total*total/(px[a]*py[b]))
		}
	}
	return mi
}

func entropy(counts []float64, total float64) float64 {
	h := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := c / total
		h -= p * math.Log(p)
	}
	return h
}

// #endregion independence

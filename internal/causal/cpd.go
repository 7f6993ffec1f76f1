package causal

import (
	"math"
	"strconv"
	"strings"

	"github.com/danielpatrickdp/race-sim/go-engine/internal/histdata"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/ontology"
)

// #region distribution

const minStd = 0.02

// Distribution is one conditional row: a probability vector over exact
// levels for discrete variables, a clamped Gaussian for continuous ones.
type Distribution struct {
	Probs []float64 `json:"probs,omitempty"`
	Mean  float64   `json:"mean,omitempty"`
	Std   float64   `json:"std,omitempty"`
}

// Discrete builds a discrete distribution, normalizing the weights.
func Discrete(weights ...float64) Distribution {
	sum := 0.0
	for _, w := range weights {
		if w > 0 {
			sum += w
		}
	}
	probs := make([]float64, len(weights))
	if sum <= 0 {
		for i := range probs {
			probs[i] = 1.0 / float64(len(weights))
		}
	} else {
		for i, w := range weights {
			if w > 0 {
				probs[i] = w / sum
			}
		}
	}
	return Distribution{Probs: probs}
}

// Gaussian builds a continuous distribution with a floored spread.
func Gaussian(mean, std float64) Distribution {
	if std < minStd {
		std = minStd
	}
	return Distribution{Mean: mean, Std: std}
}

func (d Distribution) isDiscrete() bool {
	return len(d.Probs) > 0
}

// #endregion distribution

// #region cpd

// CPD is one node's conditional table, keyed by the binned parent
// configuration. Default is the documented fallback for configurations
// the table does not cover.
type CPD struct {
	Node    string                  `json:"node"`
	Parents []string                `json:"parents"`
	Table   map[string]Distribution `json:"table"`
	Default Distribution            `json:"default"`
	Seeded  bool                    `json:"seeded"` // default came from priors, not data
}

func parentKey(bins []int) string {
	if len(bins) == 0 {
		return ""
	}
	parts := make([]string, len(bins))
	for i, b := range bins {
		parts[i] = strconv.Itoa(b)
	}
	return strings.Join(parts, "|")
}

// lookup resolves the distribution for the given parent assignment.
// The second return is true when the table missed and Default was used.
func (c *CPD) lookup(reg *Registry, vals map[string]Value) (Distribution, bool) {
	bins := make([]int, len(c.Parents))
	for i, p := range c.Parents {
		d, err := reg.Domain(p)
		if err != nil {
			return c.Default, true
		}
		v, ok := vals[p]
		if !ok {
			return c.Default, true
		}
		bins[i] = d.binOf(d.encode(v))
	}
	if dist, ok := c.Table[parentKey(bins)]; ok {
		return dist, false
	}
	return c.Default, true
}

// #endregion cpd

// #region fit-config

// FitConfig controls conditional table estimation.
type FitConfig struct {
	MinSupport int     // rows a parent configuration needs for its own table row
	Laplace    float64 // additive smoothing for discrete counts
}

// DefaultFitConfig returns the tuned estimation settings.
func DefaultFitConfig() FitConfig {
	return FitConfig{MinSupport: 12, Laplace: 1.0}
}

// FitReport summarizes one offline fit for run metadata.
type FitReport struct {
	Rows           int      `json:"rows"`
	Edges          int      `json:"edges"`
	Degraded       bool     `json:"degraded"`
	DegradedReason string   `json:"degraded_reason,omitempty"`
	DefaultFilled  []string `json:"default_filled,omitempty"` // nodes whose default is prior-seeded
}

// #endregion fit-config

// #region model

// Model is an immutable fitted causal model. A refit builds a new Model
// and the caller swaps the reference; generation only ever reads.
type Model struct {
	reg    *Registry
	graph  *Graph
	topo   []string
	cpds   map[string]*CPD
	report FitReport
}

// Graph returns a copy of the model's filtered DAG.
func (m *Model) Graph() *Graph {
	return m.graph.Clone()
}

// TopoOrder returns the fixed sampling order.
func (m *Model) TopoOrder() []string {
	out := make([]string, len(m.topo))
	copy(out, m.topo)
	return out
}

// Report returns the fit summary.
func (m *Model) Report() FitReport {
	return m.report
}

// Registry returns the variable registry the model was fit against.
func (m *Model) Registry() *Registry {
	return m.reg
}

// #endregion model

// #region fit

// Fit estimates a conditional table per node of g from the dataset.
// Parent configurations with enough rows get max-likelihood estimates;
// everything else falls to the node default, which is the data marginal
// when support allows and a prior-seeded distribution otherwise (hybrid
// parameterization).
func Fit(reg *Registry, g *Graph, ds histdata.Dataset, cons *ontology.Constraints, cfg FitConfig) (*Model, error) {
	topo, err := g.TopoOrder()
	if err != nil {
		return nil, err
	}

	m := &Model{
		reg:   reg,
		graph: g.Clone(),
		topo:  topo,
		cpds:  make(map[string]*CPD, len(topo)),
		report: FitReport{
			Rows:  ds.Len(),
			Edges: g.EdgeCount(),
		},
	}

	for _, node := range topo {
		domain, err := reg.Domain(node)
		if err != nil {
			return nil, err
		}
		parents := g.Parents(node)
		cpd := &CPD{Node: node, Parents: parents, Table: make(map[string]Distribution)}

		colIdx, hasCol := ds.ColumnIndex(node)
		parentIdx := make([]int, len(parents))
		parentDomains := make([]Domain, len(parents))
		conditioned := hasCol
		for i, p := range parents {
			idx, ok := ds.ColumnIndex(p)
			if !ok {
				conditioned = false
				break
			}
			pd, err := reg.Domain(p)
			if err != nil {
				return nil, err
			}
			parentIdx[i] = idx
			parentDomains[i] = pd
		}

		// 1. Conditional rows where parent support allows.
		if conditioned && len(parents) > 0 {
			groups := make(map[string][]float64)
			for _, row := range ds.Rows {
				bins := make([]int, len(parents))
				for i := range parents {
					bins[i] = parentDomains[i].binOf(row[parentIdx[i]])
				}
				key := parentKey(bins)
				groups[key] = append(groups[key], row[colIdx])
			}
			for key, vals := range groups {
				if len(vals) < cfg.MinSupport {
					continue
				}
				cpd.Table[key] = fitDistribution(domain, vals, cfg.Laplace)
			}
		}

		// 2. Node default: data marginal when the column has support,
		// prior-seeded otherwise.
		if hasCol && ds.Len() >= cfg.MinSupport {
			col := make([]float64, ds.Len())
			for i, row := range ds.Rows {
				col[i] = row[colIdx]
			}
			cpd.Default = fitDistribution(domain, col, cfg.Laplace)
			if len(parents) == 0 {
				cpd.Table[""] = cpd.Default
			}
		} else {
			cpd.Default = seededDefault(reg, node, cons)
			cpd.Seeded = true
			m.report.DefaultFilled = append(m.report.DefaultFilled, node)
		}

		m.cpds[node] = cpd
	}

	return m, nil
}

func fitDistribution(d Domain, vals []float64, laplace float64) Distribution {
	if d.Kind == DomainContinuous {
		mean, std := meanStd(vals)
		return Gaussian(mean, std)
	}

	counts := make([]float64, d.levels())
	for _, x := range vals {
		counts[d.levelOf(x)]++
	}
	total := float64(len(vals)) + laplace*float64(len(counts))
	probs := make([]float64, len(counts))
	for i, c := range counts {
		probs[i] = (c + laplace) / total
	}
	return Distribution{Probs: probs}
}

func meanStd(vals []float64) (float64, float64) {
	if len(vals) == 0 {
		return 0, minStd
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean := sum / float64(len(vals))
	var sq float64
	for _, v := range vals {
		sq += (v - mean) * (v - mean)
	}
	return mean, math.Sqrt(sq / float64(len(vals)))
}

// seededDefault builds the fallback for a node with no usable history.
// The three driver-rating variables take their population spread from the
// ontology artifact; everything else uses the registry's declared default.
func seededDefault(reg *Registry, node string, cons *ontology.Constraints) Distribution {
	if cons != nil {
		switch node {
		case VarSkill, VarAggression, VarShadowRisk:
			vals := make([]float64, 0, cons.FieldSize())
			for _, id := range cons.DriverIDs() {
				p, err := cons.DriverPriors(id)
				if err != nil {
					continue
				}
				switch node {
				case VarSkill:
					vals = append(vals, p.Skill)
				case VarAggression:
					vals = append(vals, p.Aggression)
				default:
					vals = append(vals, p.ShadowRisk)
				}
			}
			if len(vals) > 0 {
				mean, std := meanStd(vals)
				return Gaussian(mean, std)
			}
		}
	}
	def, err := reg.Default(node)
	if err != nil {
		return Gaussian(0.5, 0.2)
	}
	return def
}

// #endregion fit

// #region build-model

// BuildModel runs the full offline pipeline: structure learning, veto
// filtering, and conditional fitting. Structure degradation is carried
// into the fit report rather than failing the build.
func BuildModel(reg *Registry, ds histdata.Dataset, cons *ontology.Constraints, scfg StructureConfig, fcfg FitConfig) (*Model, error) {
	sr := LearnStructure(reg, ds, scfg)
	g := sr.Graph
	if cons != nil {
		g = ApplyVetoRules(g, cons.VetoRules())
	}
	m, err := Fit(reg, g, ds, cons, fcfg)
	if err != nil {
		return nil, err
	}
	m.report.Degraded = sr.Degraded
	m.report.DegradedReason = sr.Reason
	m.report.Edges = g.EdgeCount()
	return m, nil
}

// #endregion build-model

package causal

import (
	"math"

	"github.com/danielpatrickdp/race-sim/go-engine/internal/simerr"
)

// #region domain-kind

// DomainKind tags the four variable domains.
type DomainKind string

const (
	DomainBool        DomainKind = "bool"
	DomainInt         DomainKind = "int"
	DomainContinuous  DomainKind = "continuous"
	DomainCategorical DomainKind = "categorical"
)

// #endregion domain-kind

// #region value

// Value is a tagged union holding one variable assignment.
type Value struct {
	Kind     DomainKind
	Bool     bool
	Int      int
	Float    float64
	Category string
}

// BoolValue wraps a boolean assignment.
func BoolValue(v bool) Value { return Value{Kind: DomainBool, Bool: v} }

// IntValue wraps a bounded-integer assignment.
func IntValue(v int) Value { return Value{Kind: DomainInt, Int: v} }

// FloatValue wraps a bounded-continuous assignment.
func FloatValue(v float64) Value { return Value{Kind: DomainContinuous, Float: v} }

// CategoryValue wraps a categorical assignment.
func CategoryValue(v string) Value { return Value{Kind: DomainCategorical, Category: v} }

// #endregion value

// #region domain

// Domain declares the legal values of one variable.
type Domain struct {
	Kind   DomainKind
	Min    float64  // int and continuous bounds, inclusive
	Max    float64
	Values []string // categorical levels, declared order
}

// BoolDomain declares a boolean variable.
func BoolDomain() Domain { return Domain{Kind: DomainBool, Max: 1} }

// IntDomain declares a bounded integer variable.
func IntDomain(min, max int) Domain {
	return Domain{Kind: DomainInt, Min: float64(min), Max: float64(max)}
}

// ContinuousDomain declares a bounded continuous variable.
func ContinuousDomain(min, max float64) Domain {
	return Domain{Kind: DomainContinuous, Min: min, Max: max}
}

// CategoricalDomain declares a categorical variable over the given levels.
func CategoricalDomain(values ...string) Domain {
	return Domain{Kind: DomainCategorical, Values: values}
}

// Contains reports whether v is a legal assignment for the domain.
func (d Domain) Contains(v Value) bool {
	if v.Kind != d.Kind {
		return false
	}
	switch d.Kind {
	case DomainBool:
		return true
	case DomainInt:
		return float64(v.Int) >= d.Min && float64(v.Int) <= d.Max
	case DomainContinuous:
		return v.Float >= d.Min && v.Float <= d.Max
	case DomainCategorical:
		for _, lv := range d.Values {
			if lv == v.Category {
				return true
			}
		}
	}
	return false
}

// encode collapses a value onto the real line for table math: booleans to
// 0/1, categoricals to their level index.
func (d Domain) encode(v Value) float64 {
	switch d.Kind {
	case DomainBool:
		if v.Bool {
			return 1
		}
		return 0
	case DomainInt:
		return float64(v.Int)
	case DomainCategorical:
		for i, lv := range d.Values {
			if lv == v.Category {
				return float64(i)
			}
		}
		return 0
	default:
		return v.Float
	}
}

// decodeLevel maps a discrete level index back to a Value. Only valid for
// the discrete kinds.
func (d Domain) decodeLevel(level int) Value {
	switch d.Kind {
	case DomainBool:
		return BoolValue(level == 1)
	case DomainCategorical:
		if level < 0 || level >= len(d.Values) {
			level = 0
		}
		return CategoryValue(d.Values[level])
	default:
		return IntValue(int(d.Min) + level)
	}
}

// levels returns the number of exact discrete levels. Zero for continuous
// domains, which carry Gaussians instead of probability rows.
func (d Domain) levels() int {
	switch d.Kind {
	case DomainBool:
		return 2
	case DomainCategorical:
		return len(d.Values)
	case DomainInt:
		return int(d.Max-d.Min) + 1
	default:
		return 0
	}
}

const parentBinMax = 6

// binCount returns the coarse level count used when this domain appears
// as a parent in a conditional table.
func (d Domain) binCount() int {
	switch d.Kind {
	case DomainBool:
		return 2
	case DomainCategorical:
		return len(d.Values)
	case DomainInt:
		if n := d.levels(); n <= parentBinMax {
			return n
		}
		return parentBinMax
	default:
		return 3
	}
}

// binOf buckets an encoded value into 0..binCount-1, clamping anything
// outside the declared bounds.
func (d Domain) binOf(x float64) int {
	n := d.binCount()
	if n <= 1 {
		return 0
	}
	span := d.Max - d.Min
	if d.Kind == DomainCategorical {
		span = float64(len(d.Values) - 1)
	}
	if span <= 0 {
		return 0
	}
	bin := int(math.Floor((x - d.Min) / span * float64(n)))
	if bin < 0 {
		bin = 0
	}
	if bin >= n {
		bin = n - 1
	}
	return bin
}

// levelOf maps an encoded value to its exact discrete level, clamped to
// the declared range. Only meaningful for the discrete kinds.
func (d Domain) levelOf(x float64) int {
	level := int(math.Round(x - d.Min))
	if level < 0 {
		level = 0
	}
	if max := d.levels() - 1; level > max {
		level = max
	}
	return level
}

// #endregion domain

// #region registry

// Registry maps variable names to declared domains and the documented
// fallback distribution each one samples from when no table row applies.
type Registry struct {
	names   []string
	domains map[string]Domain
	defs    map[string]Distribution
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		domains: make(map[string]Domain),
		defs:    make(map[string]Distribution),
	}
}

// Declare registers a variable with its domain and fallback distribution.
func (r *Registry) Declare(name string, d Domain, def Distribution) error {
	if _, ok := r.domains[name]; ok {
		return simerr.Newf(simerr.CodeInvariantViolation, "variable %s declared twice", name)
	}
	r.names = append(r.names, name)
	r.domains[name] = d
	r.defs[name] = def
	return nil
}

// Domain returns the declared domain of a variable.
func (r *Registry) Domain(name string) (Domain, error) {
	d, ok := r.domains[name]
	if !ok {
		return Domain{}, simerr.Newf(simerr.CodeUnknownVariable, "no variable %s in registry", name)
	}
	return d, nil
}

// Default returns the declared fallback distribution of a variable.
func (r *Registry) Default(name string) (Distribution, error) {
	def, ok := r.defs[name]
	if !ok {
		return Distribution{}, simerr.Newf(simerr.CodeUnknownVariable, "no variable %s in registry", name)
	}
	return def, nil
}

// Has reports whether a variable is declared.
func (r *Registry) Has(name string) bool {
	_, ok := r.domains[name]
	return ok
}

// Names returns variable names in declaration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// #endregion registry

// #region default-registry

// Scenario variable names.
const (
	VarSkill              = "skill"
	VarAggression         = "aggression"
	VarShadowRisk         = "shadow_risk"
	VarNCautions          = "n_cautions"
	VarPitStrategy        = "pit_strategy"
	VarFuelWindowRisk     = "fuel_window_risk"
	VarLateRaceChaos      = "late_race_chaos"
	VarIncidentPropensity = "incident_propensity"
	VarIncidents          = "incidents"
	VarDNFFlag            = "dnf_flag"
	VarLapsLedShare       = "laps_led_share"
	VarFastestShare       = "fastest_share"
	VarFinishPropensity   = "finish_propensity"
)

// Pit strategy levels.
const (
	PitAggressive   = "aggressive"
	PitStandard     = "standard"
	PitConservative = "conservative"
)

// DefaultRegistry declares the scenario variable set with its documented
// fallback distributions.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	decl := func(name string, d Domain, def Distribution) {
		r.names = append(r.names, name)
		r.domains[name] = d
		r.defs[name] = def
	}

	unit := ContinuousDomain(0, 1)

	decl(VarSkill, unit, Gaussian(0.5, 0.2))
	decl(VarAggression, unit, Gaussian(0.5, 0.2))
	decl(VarShadowRisk, unit, Gaussian(0.3, 0.2))
	decl(VarNCautions, IntDomain(0, 8), Discrete(0.08, 0.15, 0.22, 0.22, 0.15, 0.09, 0.05, 0.03, 0.01))
	decl(VarPitStrategy, CategoricalDomain(PitAggressive, PitStandard, PitConservative), Discrete(0.25, 0.55, 0.20))
	decl(VarFuelWindowRisk, unit, Gaussian(0.35, 0.2))
	decl(VarLateRaceChaos, unit, Gaussian(0.4, 0.2))
	decl(VarIncidentPropensity, unit, Gaussian(0.25, 0.15))
	decl(VarIncidents, IntDomain(0, 5), Discrete(0.55, 0.25, 0.11, 0.05, 0.03, 0.01))
	decl(VarDNFFlag, BoolDomain(), Discrete(0.88, 0.12))
	decl(VarLapsLedShare, unit, Gaussian(0.18, 0.15))
	decl(VarFastestShare, unit, Gaussian(0.18, 0.15))
	decl(VarFinishPropensity, unit, Gaussian(0.5, 0.25))
	return r
}

// #endregion default-registry

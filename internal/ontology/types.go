package ontology

import "time"

// #region priors

// Priors are the domain-knowledge ratings for one driver, each in 0..1.
type Priors struct {
	Skill      float64 `yaml:"skill"`
	Aggression float64 `yaml:"aggression"`
	ShadowRisk float64 `yaml:"shadow_risk"`
}

// #endregion priors

// #region veto-rule

// VetoRule forbids a directed causal edge from Source to Target. Rules
// are hard: they always override a statistically learned edge.
type VetoRule struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

// #endregion veto-rule

// #region document

// Document is the on-disk shape of a domain-knowledge artifact.
type Document struct {
	Track     string            `yaml:"track"`
	Drivers   map[string]Priors `yaml:"drivers"`
	VetoRules []VetoRule        `yaml:"veto_rules"`
}

// #endregion document

// #region constraints

// Constraints is the compiled, immutable form of a Document. Compile once
// per run; a refit builds a new instance, never mutates this one.
type Constraints struct {
	track      string
	version    string
	compiledAt time.Time
	priors     map[string]Priors
	driverIDs  []string // sorted
	rules      []VetoRule
}

// #endregion constraints

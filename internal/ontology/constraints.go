package ontology

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/danielpatrickdp/race-sim/go-engine/internal/simerr"
)

// #region compile

// Compile validates a Document and freezes it into Constraints. Duplicate
// veto rules collapse to their first occurrence so rule order stays
// deterministic.
func Compile(doc Document) (*Constraints, error) {
	if len(doc.Drivers) == 0 {
		return nil, simerr.New(simerr.CodeInvariantViolation, "ontology document has no drivers")
	}

	ids := make([]string, 0, len(doc.Drivers))
	for id := range doc.Drivers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	priors := make(map[string]Priors, len(doc.Drivers))
	for _, id := range ids {
		p := doc.Drivers[id]
		if bad, field := outOfUnit(p); bad {
			return nil, simerr.Newf(simerr.CodeInvariantViolation, "driver %s %s outside 0..1", id, field)
		}
		priors[id] = p
	}

	rules := make([]VetoRule, 0, len(doc.VetoRules))
	seen := make(map[VetoRule]bool, len(doc.VetoRules))
	for _, r := range doc.VetoRules {
		if r.Source == "" || r.Target == "" {
			return nil, simerr.Newf(simerr.CodeInvariantViolation, "veto rule with empty endpoint: %q -> %q", r.Source, r.Target)
		}
		if seen[r] {
			continue
		}
		seen[r] = true
		rules = append(rules, r)
	}

	c := &Constraints{
		track:      doc.Track,
		priors:     priors,
		driverIDs:  ids,
		rules:      rules,
		compiledAt: time.Now().UTC(),
	}
	c.version = fingerprint(c)
	return c, nil
}

func outOfUnit(p Priors) (bool, string) {
	switch {
	case p.Skill < 0 || p.Skill > 1:
		return true, "skill"
	case p.Aggression < 0 || p.Aggression > 1:
		return true, "aggression"
	case p.ShadowRisk < 0 || p.ShadowRisk > 1:
		return true, "shadow_risk"
	}
	return false, ""
}

// fingerprint hashes the canonical content: sorted drivers, then rules in
// order. Compile time never enters the hash, so recompiling identical
// documents yields identical versions.
func fingerprint(c *Constraints) string {
	var b strings.Builder
	fmt.Fprintf(&b, "track=%s\n", c.track)
	for _, id := range c.driverIDs {
		p := c.priors[id]
		fmt.Fprintf(&b, "driver=%s skill=%.6f aggression=%.6f shadow_risk=%.6f\n", id, p.Skill, p.Aggression, p.ShadowRisk)
	}
	for _, r := range c.rules {
		fmt.Fprintf(&b, "veto=%s->%s\n", r.Source, r.Target)
	}
	return fmt.Sprintf("%x", sha256.Sum256([]byte(b.String())))
}

// #endregion compile

// #region accessors

// DriverPriors returns the priors for one driver.
func (c *Constraints) DriverPriors(id string) (Priors, error) {
	p, ok := c.priors[id]
	if !ok {
		return Priors{}, simerr.Newf(simerr.CodeUnknownDriver, "driver %s not in constraint set", id)
	}
	return p, nil
}

// VetoRules returns the hard edge vetoes in deterministic artifact order.
func (c *Constraints) VetoRules() []VetoRule {
	out := make([]VetoRule, len(c.rules))
	copy(out, c.rules)
	return out
}

// DriverIDs returns every known driver id, sorted.
func (c *Constraints) DriverIDs() []string {
	out := make([]string, len(c.driverIDs))
	copy(out, c.driverIDs)
	return out
}

// FieldSize returns the number of drivers in the constraint set.
func (c *Constraints) FieldSize() int {
	return len(c.driverIDs)
}

// Track returns the track the artifact was compiled for.
func (c *Constraints) Track() string {
	return c.track
}

// Version returns the sha256 fingerprint of the compiled content.
func (c *Constraints) Version() string {
	return c.version
}

// CompiledAt returns when this instance was compiled.
func (c *Constraints) CompiledAt() time.Time {
	return c.compiledAt
}

// #endregion accessors

// #region defaults

// DefaultVetoRules returns the physically grounded vetoes every artifact
// should carry: a retirement cannot cause the laps it prevented, and
// being in the pits cannot cause on-track position change that lap.
func DefaultVetoRules() []VetoRule {
	return []VetoRule{
		{Source: "dnf_flag", Target: "laps_led_share"},
		{Source: "dnf_flag", Target: "fastest_share"},
		{Source: "in_pit", Target: "position_delta"},
	}
}

// #endregion defaults

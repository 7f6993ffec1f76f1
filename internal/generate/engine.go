package generate

import (
	"math/rand"

	"github.com/danielpatrickdp/race-sim/go-engine/internal/causal"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/kernel"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/ontology"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/scenario"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/simerr"
)

// #region generator

// Generator assembles scenarios from the fitted model, the ontology
// constraints, and the conservation kernel. Model and constraints are
// read-only here; a refit builds a new Generator.
type Generator struct {
	model *causal.Model
	cons  *ontology.Constraints
	kern  *kernel.Kernel
	cfg   Config
}

// New wires a generator. Zero config fields fall back to safe values.
func New(model *causal.Model, cons *ontology.Constraints, kern *kernel.Kernel, cfg Config) (*Generator, error) {
	if model == nil {
		return nil, simerr.New(simerr.CodeInvariantViolation, "generator needs a model")
	}
	if cons == nil {
		return nil, simerr.New(simerr.CodeInvariantViolation, "generator needs constraints")
	}
	if cons.FieldSize() < 1 {
		return nil, simerr.New(simerr.CodeInvariantViolation, "constraints carry no drivers")
	}
	if kern == nil {
		return nil, simerr.New(simerr.CodeInvariantViolation, "generator needs a kernel")
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.RetryBudget < 0 {
		cfg.RetryBudget = 0
	}
	if cfg.LapsPerCaution < 1 {
		cfg.LapsPerCaution = DefaultConfig().LapsPerCaution
	}
	return &Generator{model: model, cons: cons, kern: kern, cfg: cfg}, nil
}

func validateRequest(req Request) error {
	if req.RaceLength < 1 {
		return simerr.Newf(simerr.CodeInvariantViolation, "race length %d, need at least 1", req.RaceLength)
	}
	return nil
}

// #endregion generator

// #region generate-one

// GenerateOne produces the scenario at the given batch index. The draw
// is seeded with the request seed plus the index, so any scenario can be
// reproduced alone, and a full batch is identical regardless of worker
// count. On rejection the draw is retried with escalating strategies up
// to the budget; the final draft is returned either way, with its
// verdict in the metadata.
func (g *Generator) GenerateOne(req Request, index int) (scenario.Components, error) {
	if err := validateRequest(req); err != nil {
		return scenario.Components{}, err
	}
	grid, err := g.gridFor(req)
	if err != nil {
		return scenario.Components{}, err
	}

	seed := req.Seed + int64(index)
	rng := rand.New(rand.NewSource(seed))

	strat := Strategies[StrategyDefault]
	tried := []StrategyID{strat.ID}

	var draft scenario.Components
	var verdict kernel.Result
	attempts := 0
	for {
		attempts++
		draft, err = g.draw(rng, req, grid, strat)
		if err != nil {
			return scenario.Components{}, err
		}
		verdict, err = g.kern.Validate(draft)
		if err != nil {
			return scenario.Components{}, err
		}
		if verdict.IsValid {
			break
		}
		if attempts > g.cfg.RetryBudget {
			break
		}
		next, ok := selectRetry(classifyFailure(verdict.Reasons()), tried)
		if !ok {
			break
		}
		strat = next
		tried = append(tried, strat.ID)
	}

	draft.Meta = scenario.Metadata{
		Accepted:    verdict.IsValid,
		VetoReasons: verdict.Reasons(),
		Seed:        seed,
		Attempts:    attempts,
		Params: scenario.GenerationParams{
			RaceLength:      req.RaceLength,
			FieldSize:       g.cons.FieldSize(),
			OntologyVersion: g.cons.Version(),
			ModelEdges:      g.model.Report().Edges,
			ModelDegraded:   g.model.Report().Degraded,
		},
	}
	return draft, nil
}

func (g *Generator) gridFor(req Request) (map[string]int, error) {
	if len(req.StartGrid) > 0 {
		return gridFromOverride(req.StartGrid, g.cons)
	}
	return buildGrid(g.cons), nil
}

// #endregion generate-one

// #region draw

// draw runs the five generation steps once: regime, per-driver causal
// sampling, conserved allocation, finish permutation, assembly.
func (g *Generator) draw(rng *rand.Rand, req Request, grid map[string]int, strat StrategyConfig) (scenario.Components, error) {
	ids := g.cons.DriverIDs()
	n := len(ids)

	// 1. Scenario-level regime from tuned priors.
	regime := sampleRegime(rng, req.RaceLength, g.cfg.LapsPerCaution, strat.ChaosScale)

	// 2. Per-driver propensities conditioned on regime and priors.
	ledProps := make([]float64, n)
	fastProps := make([]float64, n)
	finishProps := make(map[string]float64, n)
	incidents := make(map[string]int, n)
	dnf := make(map[string]bool, n)
	dnfLap := make(map[string]int, n)

	for i, id := range ids {
		priors, err := g.cons.DriverPriors(id)
		if err != nil {
			return scenario.Components{}, err
		}
		evidence := map[string]causal.Value{
			causal.VarSkill:          causal.FloatValue(priors.Skill),
			causal.VarAggression:     causal.FloatValue(priors.Aggression),
			causal.VarShadowRisk:     causal.FloatValue(priors.ShadowRisk),
			causal.VarNCautions:      causal.IntValue(regime.NCautions),
			causal.VarPitStrategy:    causal.CategoryValue(regime.PitStrategy),
			causal.VarFuelWindowRisk: causal.FloatValue(regime.FuelWindowRisk),
			causal.VarLateRaceChaos:  causal.FloatValue(regime.LateRaceChaos),
		}
		table, err := g.model.SampleOutcomes(1, evidence, rng)
		if err != nil {
			return scenario.Components{}, err
		}

		ledProps[i] = floatAt(table, causal.VarLapsLedShare)
		fastProps[i] = floatAt(table, causal.VarFastestShare)
		finishProps[id] = floatAt(table, causal.VarFinishPropensity)
		if v, ok := table.Value(0, causal.VarIncidents); ok {
			incidents[id] = v.Int
		}
		if v, ok := table.Value(0, causal.VarDNFFlag); ok && v.Bool {
			dnf[id] = true
			dnfLap[id] = 1 + rng.Intn(req.RaceLength)
		}
	}

	// 3. Conserved integer allocation. Retirees cannot lead or set pace
	// on laps they never ran.
	ledCaps := make([]int, n)
	fastCaps := make([]int, n)
	for i, id := range ids {
		ledCaps[i] = regime.GreenFlagLaps
		fastCaps[i] = regime.GreenFlagLaps
		if dnf[id] {
			c := dnfLap[id] - 1
			ledCaps[i] = c
			fastCaps[i] = c
		}
	}
	lapsLed := allocateExact(dirichletDraw(rng, alphasFrom(ledProps, strat.Concentration)), regime.GreenFlagLaps, ledCaps)
	fastest := allocateBounded(dirichletDraw(rng, alphasFrom(fastProps, strat.Concentration)), regime.GreenFlagLaps, fastCaps)

	// 4. Finish permutation, damped into the swap budget.
	finish := buildFinishOrder(finishInputs{
		ids:        ids,
		start:      grid,
		propensity: finishProps,
		dnf:        dnf,
		dnfLap:     dnfLap,
		blend:      strat.GridBlend,
		swapBound:  g.kern.Config().SwapBound(n, regime.GreenFlagLaps),
	})

	// 5. Assembly.
	outcomes := make(map[string]scenario.DriverOutcome, n)
	for i, id := range ids {
		outcomes[id] = scenario.DriverOutcome{
			LapsLed:           lapsLed[i],
			FastestLaps:       fastest[i],
			FinishPosition:    finish[id],
			PlaceDifferential: grid[id] - finish[id],
			Incidents:         incidents[id],
			DNF:               dnf[id],
			DNFLap:            dnfLap[id],
		}
	}
	return scenario.Components{Regime: regime, Outcomes: outcomes}, nil
}

func floatAt(t *causal.Table, name string) float64 {
	v, ok := t.Value(0, name)
	if !ok {
		return 0
	}
	return v.Float
}

// #endregion draw

package generate

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/danielpatrickdp/race-sim/go-engine/internal/causal"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/histdata"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/kernel"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/ontology"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/scenario"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/simerr"
)

// testField compiles an n-driver field with strictly descending skill,
// so the derived grid is d01, d02, ... in order.
func testField(t *testing.T, n int) *ontology.Constraints {
	t.Helper()
	drivers := make(map[string]ontology.Priors, n)
	for i := 1; i <= n; i++ {
		drivers[fmt.Sprintf("d%02d", i)] = ontology.Priors{
			Skill:      float64(n-i+1) / float64(n+1),
			Aggression: 0.5,
			ShadowRisk: 0.25,
		}
	}
	cons, err := ontology.Compile(ontology.Document{
		Track:     "test-superspeedway",
		Drivers:   drivers,
		VetoRules: ontology.DefaultVetoRules(),
	})
	if err != nil {
		t.Fatalf("compile constraints: %v", err)
	}
	return cons
}

// testModel fits on an empty dataset: structure learning degrades to the
// empty graph and every node runs on its seeded default. Generation must
// work against exactly this fallback.
func testModel(t *testing.T, cons *ontology.Constraints) *causal.Model {
	t.Helper()
	ds := histdata.Dataset{Columns: []string{causal.VarSkill}}
	m, err := causal.BuildModel(causal.DefaultRegistry(), ds, cons,
		causal.DefaultStructureConfig(), causal.DefaultFitConfig())
	if err != nil {
		t.Fatalf("build model: %v", err)
	}
	return m
}

// fittedRaceModel learns a real skill -> finish_propensity edge from
// synthetic history.
func fittedRaceModel(t *testing.T, cons *ontology.Constraints) *causal.Model {
	t.Helper()
	ds := histdata.Dataset{Columns: []string{causal.VarSkill, causal.VarFinishPropensity}}
	for i := 0; i < 120; i++ {
		skill := float64(i%10) / 10.0
		ds.Rows = append(ds.Rows, []float64{skill, 0.8*skill + 0.1})
	}
	m, err := causal.BuildModel(causal.DefaultRegistry(), ds, cons,
		causal.DefaultStructureConfig(), causal.DefaultFitConfig())
	if err != nil {
		t.Fatalf("build model: %v", err)
	}
	if m.Report().Degraded {
		t.Fatalf("fit degraded: %s", m.Report().DegradedReason)
	}
	return m
}

func testGenerator(t *testing.T, n int, cfg Config) *Generator {
	t.Helper()
	cons := testField(t, n)
	g, err := New(testModel(t, cons), cons, kernel.NewKernel(kernel.DefaultConfig(), nil), cfg)
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}
	return g
}

func TestNewValidatesDependencies(t *testing.T) {
	cons := testField(t, 3)
	model := testModel(t, cons)
	kern := kernel.NewKernel(kernel.DefaultConfig(), nil)

	tests := []struct {
		name string
		call func() (*Generator, error)
	}{
		{"nil model", func() (*Generator, error) { return New(nil, cons, kern, Config{}) }},
		{"nil constraints", func() (*Generator, error) { return New(model, nil, kern, Config{}) }},
		{"nil kernel", func() (*Generator, error) { return New(model, cons, nil, Config{}) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.call(); !simerr.IsCode(err, simerr.CodeInvariantViolation) {
				t.Fatalf("expected INVARIANT_VIOLATION, got %v", err)
			}
		})
	}
}

func TestNewAppliesConfigFloors(t *testing.T) {
	g := testGenerator(t, 3, Config{Workers: 0, RetryBudget: -4, LapsPerCaution: 0})
	if g.cfg.Workers != 1 {
		t.Fatalf("workers = %d, want 1", g.cfg.Workers)
	}
	if g.cfg.RetryBudget != 0 {
		t.Fatalf("retry budget = %d, want 0", g.cfg.RetryBudget)
	}
	if g.cfg.LapsPerCaution != DefaultConfig().LapsPerCaution {
		t.Fatalf("laps per caution = %d", g.cfg.LapsPerCaution)
	}
}

func TestGenerateOneDeterministic(t *testing.T) {
	g := testGenerator(t, 10, DefaultConfig())
	req := Request{Track: "test-superspeedway", Count: 1, RaceLength: 150, Seed: 99}

	first, err := g.GenerateOne(req, 4)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := g.GenerateOne(req, 4)
	if err != nil {
		t.Fatalf("generate again: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatal("same seed and index produced different scenarios")
	}

	other, err := g.GenerateOne(req, 5)
	if err != nil {
		t.Fatalf("generate other index: %v", err)
	}
	if other.Meta.Seed != req.Seed+5 {
		t.Fatalf("scenario seed = %d, want %d", other.Meta.Seed, req.Seed+5)
	}
	if reflect.DeepEqual(first.Regime, other.Regime) && reflect.DeepEqual(first.Outcomes, other.Outcomes) {
		t.Fatal("different indexes drew identical scenarios")
	}
}

func TestGenerateOneStandardRace(t *testing.T) {
	g := testGenerator(t, 40, DefaultConfig())
	req := Request{Track: "test-superspeedway", Count: 1, RaceLength: 200, Seed: 7}

	sc, err := g.GenerateOne(req, 0)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !sc.Meta.Accepted {
		t.Fatalf("standard race rejected: %v", sc.Meta.VetoReasons)
	}

	if got := sc.Regime.GreenFlagLaps + sc.Regime.CautionLaps; got != 200 {
		t.Fatalf("lap partition sums to %d", got)
	}

	ledSum, fastSum := 0, 0
	seen := make([]bool, 41)
	for id, o := range sc.Outcomes {
		ledSum += o.LapsLed
		fastSum += o.FastestLaps
		if o.FinishPosition < 1 || o.FinishPosition > 40 || seen[o.FinishPosition] {
			t.Fatalf("driver %s finish %d breaks the permutation", id, o.FinishPosition)
		}
		seen[o.FinishPosition] = true
		if o.DNF && o.LapsLed > o.DNFLap-1 {
			t.Fatalf("driver %s led %d laps but retired on lap %d", id, o.LapsLed, o.DNFLap)
		}
	}
	if ledSum != sc.Regime.GreenFlagLaps {
		t.Fatalf("laps led sum = %d, green = %d", ledSum, sc.Regime.GreenFlagLaps)
	}
	if fastSum > sc.Regime.GreenFlagLaps {
		t.Fatalf("fastest laps sum = %d over green %d", fastSum, sc.Regime.GreenFlagLaps)
	}
}

func TestGenerateOneMetadata(t *testing.T) {
	cons := testField(t, 8)
	model := fittedRaceModel(t, cons)
	g, err := New(model, cons, kernel.NewKernel(kernel.DefaultConfig(), nil), DefaultConfig())
	if err != nil {
		t.Fatalf("new generator: %v", err)
	}

	sc, err := g.GenerateOne(Request{Count: 1, RaceLength: 120, Seed: 31}, 2)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	meta := sc.Meta
	if meta.Seed != 33 {
		t.Fatalf("seed = %d, want 33", meta.Seed)
	}
	if meta.Attempts < 1 {
		t.Fatalf("attempts = %d", meta.Attempts)
	}
	if meta.Params.RaceLength != 120 || meta.Params.FieldSize != 8 {
		t.Fatalf("params = %+v", meta.Params)
	}
	if meta.Params.OntologyVersion != cons.Version() {
		t.Fatalf("ontology version %q, want %q", meta.Params.OntologyVersion, cons.Version())
	}
	if meta.Params.ModelDegraded {
		t.Fatal("fitted model reported degraded")
	}
	if meta.Params.ModelEdges != model.Report().Edges {
		t.Fatalf("model edges = %d, want %d", meta.Params.ModelEdges, model.Report().Edges)
	}
}

func TestGenerateOneRetriesThenReturnsInvalid(t *testing.T) {
	cons := testField(t, 6)
	model := testModel(t, cons)

	alwaysVeto := func(scenario.Components) []kernel.Veto {
		return []kernel.Veto{{Reason: "track_limits", Detail: "forced for the test"}}
	}

	t.Run("strategy exhaustion", func(t *testing.T) {
		kern := kernel.NewKernel(kernel.DefaultConfig(), nil)
		kern.RegisterCheck(alwaysVeto)
		g, err := New(model, cons, kern, DefaultConfig())
		if err != nil {
			t.Fatalf("new generator: %v", err)
		}

		sc, err := g.GenerateOne(Request{Count: 1, RaceLength: 100, Seed: 1}, 0)
		if err != nil {
			t.Fatalf("rejection must not raise: %v", err)
		}
		if sc.Meta.Accepted {
			t.Fatal("veto check was ignored")
		}
		if sc.Meta.Attempts != len(Strategies) {
			t.Fatalf("attempts = %d, want one per strategy (%d)", sc.Meta.Attempts, len(Strategies))
		}
		found := false
		for _, r := range sc.Meta.VetoReasons {
			if r == "track_limits" {
				found = true
			}
		}
		if !found {
			t.Fatalf("veto reasons = %v", sc.Meta.VetoReasons)
		}
		if len(sc.Outcomes) != 6 {
			t.Fatal("invalid draft must still carry the full field")
		}
	})

	t.Run("budget exhaustion", func(t *testing.T) {
		kern := kernel.NewKernel(kernel.DefaultConfig(), nil)
		kern.RegisterCheck(alwaysVeto)
		cfg := DefaultConfig()
		cfg.RetryBudget = 2
		g, err := New(model, cons, kern, cfg)
		if err != nil {
			t.Fatalf("new generator: %v", err)
		}

		sc, err := g.GenerateOne(Request{Count: 1, RaceLength: 100, Seed: 1}, 0)
		if err != nil {
			t.Fatalf("rejection must not raise: %v", err)
		}
		if sc.Meta.Attempts != 3 {
			t.Fatalf("attempts = %d, want budget+1", sc.Meta.Attempts)
		}
	})
}

func TestGenerateOneGridOverride(t *testing.T) {
	g := testGenerator(t, 5, DefaultConfig())
	override := []string{"d05", "d04", "d03", "d02", "d01"}
	req := Request{Count: 1, RaceLength: 80, Seed: 3, StartGrid: override}

	sc, err := g.GenerateOne(req, 0)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	for slot, id := range override {
		if got := sc.Outcomes[id].StartPosition(); got != slot+1 {
			t.Fatalf("driver %s started %d, override says %d", id, got, slot+1)
		}
	}
}

func TestGenerateOneRejectsBadRequest(t *testing.T) {
	g := testGenerator(t, 4, DefaultConfig())

	tests := []struct {
		name string
		req  Request
		code simerr.Code
	}{
		{"zero race length", Request{Count: 1, RaceLength: 0, Seed: 1}, simerr.CodeInvariantViolation},
		{"negative race length", Request{Count: 1, RaceLength: -10, Seed: 1}, simerr.CodeInvariantViolation},
		{"short grid", Request{Count: 1, RaceLength: 50, StartGrid: []string{"d01"}}, simerr.CodeInvariantViolation},
		{"unknown grid driver", Request{Count: 1, RaceLength: 50, StartGrid: []string{"d01", "d02", "d03", "dXX"}}, simerr.CodeUnknownDriver},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := g.GenerateOne(tt.req, 0); !simerr.IsCode(err, tt.code) {
				t.Fatalf("expected %s, got %v", tt.code, err)
			}
		})
	}
}

func TestGenerateOneOneLapRace(t *testing.T) {
	g := testGenerator(t, 40, DefaultConfig())

	for idx := 0; idx < 20; idx++ {
		sc, err := g.GenerateOne(Request{Count: 1, RaceLength: 1, Seed: 500}, idx)
		if err != nil {
			t.Fatalf("index %d: degenerate race raised: %v", idx, err)
		}
		if sc.Regime.NCautions != 0 || sc.Regime.GreenFlagLaps != 1 {
			t.Fatalf("index %d: regime %+v cannot fit one lap", idx, sc.Regime)
		}
		if sc.Meta.Accepted {
			ledSum := 0
			for _, o := range sc.Outcomes {
				ledSum += o.LapsLed
			}
			if ledSum != 1 {
				t.Fatalf("index %d: accepted one-lap race led sum %d", idx, ledSum)
			}
		} else if len(sc.Meta.VetoReasons) == 0 {
			t.Fatalf("index %d: rejected draft carries no reasons", idx)
		}
	}
}

func TestGenerateOneSingleDriverField(t *testing.T) {
	g := testGenerator(t, 1, DefaultConfig())

	sc, err := g.GenerateOne(Request{Count: 1, RaceLength: 60, Seed: 77}, 0)
	if err != nil {
		t.Fatalf("single-driver field raised: %v", err)
	}
	o := sc.Outcomes["d01"]
	if o.FinishPosition != 1 || o.PlaceDifferential != 0 {
		t.Fatalf("outcome = %+v", o)
	}
	if sc.Meta.Accepted && o.LapsLed != sc.Regime.GreenFlagLaps {
		t.Fatalf("solo driver led %d of %d green laps", o.LapsLed, sc.Regime.GreenFlagLaps)
	}
}

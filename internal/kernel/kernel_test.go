package kernel

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/danielpatrickdp/race-sim/go-engine/internal/scenario"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/simerr"
)

// conservedScenario builds a clean draft: positions match the grid, all
// green laps led by the first driver, nobody retires.
func conservedScenario(field, green int) scenario.Components {
	outcomes := make(map[string]scenario.DriverOutcome, field)
	for i := 1; i <= field; i++ {
		o := scenario.DriverOutcome{FinishPosition: i}
		if i == 1 {
			o.LapsLed = green
		}
		outcomes[fmt.Sprintf("d%02d", i)] = o
	}
	return scenario.Components{
		Regime: scenario.Regime{
			NCautions:     2,
			PitStrategy:   "standard",
			GreenFlagLaps: green,
			CautionLaps:   10,
		},
		Outcomes: outcomes,
	}
}

func mustValidate(t *testing.T, k *Kernel, c scenario.Components) Result {
	t.Helper()
	r, err := k.Validate(c)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	return r
}

func TestValidateAcceptsConservedScenario(t *testing.T) {
	k := NewKernel(DefaultConfig(), nil)
	r := mustValidate(t, k, conservedScenario(10, 100))
	if !r.IsValid {
		t.Fatalf("expected accept, got vetoes %v", r.Vetoes)
	}
	if len(r.Vetoes) != 0 {
		t.Fatalf("accepted result carries vetoes: %v", r.Vetoes)
	}
}

func TestValidateLapsLedConservation(t *testing.T) {
	k := NewKernel(DefaultConfig(), nil)
	c := conservedScenario(10, 100)
	o := c.Outcomes["d01"]
	o.LapsLed = 98 // two laps vanish
	c.Outcomes["d01"] = o

	r := mustValidate(t, k, c)
	if r.IsValid {
		t.Fatal("expected reject")
	}
	if r.Vetoes[0].Reason != ReasonLapsLedConservation {
		t.Fatalf("reason = %s, want %s", r.Vetoes[0].Reason, ReasonLapsLedConservation)
	}
}

func TestValidateFastestLapsBound(t *testing.T) {
	k := NewKernel(DefaultConfig(), nil)
	c := conservedScenario(10, 100)
	o := c.Outcomes["d02"]
	o.FastestLaps = 101
	c.Outcomes["d02"] = o

	r := mustValidate(t, k, c)
	if r.IsValid {
		t.Fatal("expected reject")
	}
	if got := r.Reasons(); got[0] != ReasonFastestLapsBound {
		t.Fatalf("reasons = %v", got)
	}
}

func TestValidateSwapBudget(t *testing.T) {
	k := NewKernel(DefaultConfig(), nil)
	// Full field reversal: 25 swaps against a bound of min(20, 10).
	c := conservedScenario(10, 100)
	for i := 1; i <= 10; i++ {
		id := fmt.Sprintf("d%02d", i)
		o := c.Outcomes[id]
		o.PlaceDifferential = (11 - i) - i // started mirrored
		c.Outcomes[id] = o
	}

	r := mustValidate(t, k, c)
	if r.IsValid {
		t.Fatal("expected reject")
	}
	found := false
	for _, v := range r.Vetoes {
		if v.Reason == ReasonSwapBudget {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing swap budget veto in %v", r.Vetoes)
	}
}

func TestSwapBoundPolicy(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		field  int
		green  int
		want   int
	}{
		{"lap bound tighter", DefaultConfig(), 40, 200, 20},
		{"field bound tighter", DefaultConfig(), 4, 200, 8},
		{"short race floors to zero", DefaultConfig(), 40, 5, 0},
		{"custom policy", Config{SwapFieldFactor: 1, SwapLapDivisor: 50}, 40, 200, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.config.SwapBound(tt.field, tt.green); got != tt.want {
				t.Fatalf("bound = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestValidateFinishPermutationVeto(t *testing.T) {
	k := NewKernel(DefaultConfig(), nil)
	c := conservedScenario(10, 100)
	o := c.Outcomes["d03"]
	o.FinishPosition = 4 // collides with d04
	c.Outcomes["d03"] = o

	r := mustValidate(t, k, c)
	if r.IsValid {
		t.Fatal("expected reject")
	}
	found := false
	for _, reason := range r.Reasons() {
		if reason == ReasonFinishPermutation {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing finish permutation veto in %v", r.Vetoes)
	}
}

func TestValidateStartPermutationVeto(t *testing.T) {
	k := NewKernel(DefaultConfig(), nil)
	c := conservedScenario(10, 100)
	// d01 claims to have started where d02 started.
	o := c.Outcomes["d01"]
	o.PlaceDifferential = 1
	c.Outcomes["d01"] = o

	r := mustValidate(t, k, c)
	if r.IsValid {
		t.Fatal("expected reject")
	}
	found := false
	for _, v := range r.Vetoes {
		if v.Reason == ReasonStartPermutation {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing start permutation veto in %v", r.Vetoes)
	}
}

func TestValidateDNFTailOrder(t *testing.T) {
	k := NewKernel(DefaultConfig(), nil)

	withDNF := func(mutate func(map[string]scenario.DriverOutcome)) scenario.Components {
		c := conservedScenario(10, 100)
		mutate(c.Outcomes)
		return c
	}
	setDNF := func(m map[string]scenario.DriverOutcome, id string, pos, lap int) {
		o := m[id]
		o.FinishPosition = pos
		o.DNF = true
		o.DNFLap = lap
		m[id] = o
	}

	t.Run("ordered tail accepted", func(t *testing.T) {
		c := withDNF(func(m map[string]scenario.DriverOutcome) {
			setDNF(m, "d09", 9, 40) // later retirement, better tail slot
			setDNF(m, "d10", 10, 5) // lap-5 retirement finishes last
		})
		r := mustValidate(t, k, c)
		if !r.IsValid {
			t.Fatalf("expected accept, got %v", r.Vetoes)
		}
	})

	t.Run("retiree ahead of tail rejected", func(t *testing.T) {
		c := withDNF(func(m map[string]scenario.DriverOutcome) {
			setDNF(m, "d05", 5, 30) // mid-field slot
		})
		r := mustValidate(t, k, c)
		if r.IsValid {
			t.Fatal("expected reject")
		}
		if got := r.Reasons(); got[len(got)-1] != ReasonDNFTailOrder {
			t.Fatalf("reasons = %v", got)
		}
	})

	t.Run("tail out of drop-out order rejected", func(t *testing.T) {
		c := withDNF(func(m map[string]scenario.DriverOutcome) {
			setDNF(m, "d09", 9, 5)  // earliest retiree holds the better slot
			setDNF(m, "d10", 10, 40)
		})
		r := mustValidate(t, k, c)
		if r.IsValid {
			t.Fatal("expected reject")
		}
		if got := r.Reasons(); got[len(got)-1] != ReasonDNFTailOrder {
			t.Fatalf("reasons = %v", got)
		}
	})
}

func TestValidateReportsEveryViolation(t *testing.T) {
	k := NewKernel(DefaultConfig(), nil)
	c := conservedScenario(10, 100)
	o := c.Outcomes["d01"]
	o.LapsLed = 50       // breaks conservation
	o.FastestLaps = 200  // breaks the bound
	c.Outcomes["d01"] = o

	r := mustValidate(t, k, c)
	want := []string{ReasonLapsLedConservation, ReasonFastestLapsBound}
	if !reflect.DeepEqual(r.Reasons(), want) {
		t.Fatalf("reasons = %v, want %v in check order", r.Reasons(), want)
	}
}

func TestValidateMalformedInput(t *testing.T) {
	k := NewKernel(DefaultConfig(), nil)

	tests := []struct {
		name   string
		mutate func(*scenario.Components)
	}{
		{"no drivers", func(c *scenario.Components) { c.Outcomes = nil }},
		{"negative laps led", func(c *scenario.Components) {
			o := c.Outcomes["d01"]
			o.LapsLed = -1
			c.Outcomes["d01"] = o
		}},
		{"negative lap partition", func(c *scenario.Components) { c.Regime.GreenFlagLaps = -5 }},
		{"dnf without lap", func(c *scenario.Components) {
			o := c.Outcomes["d02"]
			o.DNF = true
			c.Outcomes["d02"] = o
		}},
		{"finisher with dnf lap", func(c *scenario.Components) {
			o := c.Outcomes["d02"]
			o.DNFLap = 12
			c.Outcomes["d02"] = o
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := conservedScenario(10, 100)
			tt.mutate(&c)
			_, err := k.Validate(c)
			if !simerr.IsCode(err, simerr.CodeInvariantViolation) {
				t.Fatalf("expected INVARIANT_VIOLATION, got %v", err)
			}
		})
	}
}

func TestRegisterCheckExtension(t *testing.T) {
	k := NewKernel(DefaultConfig(), nil)
	k.RegisterCheck(DNFLapsCapCheck)

	c := conservedScenario(10, 100)
	lead := c.Outcomes["d01"]
	lead.LapsLed = 97
	c.Outcomes["d01"] = lead
	o := c.Outcomes["d10"]
	o.DNF = true
	o.DNFLap = 1
	o.LapsLed = 3 // impossible: retired before leading anything
	c.Outcomes["d10"] = o

	r := mustValidate(t, k, c)
	if r.IsValid {
		t.Fatal("expected reject")
	}
	got := r.Reasons()
	if got[len(got)-1] != ReasonDNFLapsCap {
		t.Fatalf("reasons = %v, extension veto must come last", got)
	}
}

func TestRegisteredChecksRunInOrder(t *testing.T) {
	k := NewKernel(DefaultConfig(), nil)
	k.RegisterCheck(func(scenario.Components) []Veto {
		return []Veto{{Reason: "first_custom", Detail: "always"}}
	})
	k.RegisterCheck(func(scenario.Components) []Veto {
		return []Veto{{Reason: "second_custom", Detail: "always"}}
	})

	r := mustValidate(t, k, conservedScenario(6, 60))
	want := []string{"first_custom", "second_custom"}
	if !reflect.DeepEqual(r.Reasons(), want) {
		t.Fatalf("reasons = %v, want %v", r.Reasons(), want)
	}
}

func TestValidateDeterministic(t *testing.T) {
	k := NewKernel(DefaultConfig(), nil)
	c := conservedScenario(10, 100)
	o := c.Outcomes["d01"]
	o.LapsLed = 42
	c.Outcomes["d01"] = o

	first := mustValidate(t, k, c)
	for i := 0; i < 5; i++ {
		if r := mustValidate(t, k, c); !reflect.DeepEqual(r, first) {
			t.Fatalf("run %d verdict %+v != %+v", i, r, first)
		}
	}
}

func TestValidateBulkMatchesScalar(t *testing.T) {
	k := NewKernel(DefaultConfig(), nil)

	good := conservedScenario(10, 100)
	bad := conservedScenario(10, 100)
	o := bad.Outcomes["d01"]
	o.LapsLed = 1
	bad.Outcomes["d01"] = o

	batch := []scenario.Components{good, bad, good}
	bulk, err := k.ValidateBulk(batch)
	if err != nil {
		t.Fatalf("bulk: %v", err)
	}
	for i, c := range batch {
		scalar := mustValidate(t, k, c)
		if !reflect.DeepEqual(bulk[i], scalar) {
			t.Fatalf("index %d: bulk %+v != scalar %+v", i, bulk[i], scalar)
		}
	}
}

func TestValidateBulkReportsMalformedIndex(t *testing.T) {
	k := NewKernel(DefaultConfig(), nil)
	good := conservedScenario(10, 100)
	malformed := conservedScenario(10, 100)
	malformed.Outcomes = nil

	_, err := k.ValidateBulk([]scenario.Components{good, malformed})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "scenario 1") {
		t.Fatalf("error should name the failing index: %v", err)
	}
}

func TestSwapCountCompactsRetirements(t *testing.T) {
	ids := []string{"a", "b", "c", "d"}

	t.Run("exchange counts once", func(t *testing.T) {
		start := map[string]int{"a": 1, "b": 2, "c": 3, "d": 4}
		finish := map[string]int{"a": 2, "b": 1, "c": 3, "d": 4}
		if got := SwapCount(ids, start, finish, nil); got != 1 {
			t.Fatalf("swaps = %d, want 1", got)
		}
	})

	t.Run("attrition alone scores zero", func(t *testing.T) {
		// b retires from second; the cars behind close up but pass no one.
		start := map[string]int{"a": 1, "b": 2, "c": 3, "d": 4}
		finish := map[string]int{"a": 1, "c": 2, "d": 3, "b": 4}
		retired := map[string]bool{"b": true}
		if got := SwapCount(ids, start, finish, retired); got != 0 {
			t.Fatalf("swaps = %d, want 0", got)
		}
	})
}

func TestValidateAcceptsAttritionShuffle(t *testing.T) {
	// Two front-row retirements slide 38 cars up two slots each. Raw
	// place movement is far beyond the budget; compacted movement is
	// zero, so the draft must pass.
	k := NewKernel(DefaultConfig(), nil)

	field, green := 40, 200
	outcomes := make(map[string]scenario.DriverOutcome, field)
	for i := 3; i <= field; i++ {
		o := scenario.DriverOutcome{FinishPosition: i - 2, PlaceDifferential: 2}
		if i == 3 {
			o.LapsLed = green
		}
		outcomes[fmt.Sprintf("d%02d", i)] = o
	}
	outcomes["d01"] = scenario.DriverOutcome{
		FinishPosition: 39, PlaceDifferential: 1 - 39, DNF: true, DNFLap: 30,
	}
	outcomes["d02"] = scenario.DriverOutcome{
		FinishPosition: 40, PlaceDifferential: 2 - 40, DNF: true, DNFLap: 20,
	}

	c := scenario.Components{
		Regime:   scenario.Regime{GreenFlagLaps: green},
		Outcomes: outcomes,
	}
	r := mustValidate(t, k, c)
	if !r.IsValid {
		t.Fatalf("attrition shuffle rejected: %v", r.Vetoes)
	}
}

func TestLapOneRetirementConserves(t *testing.T) {
	k := NewKernel(DefaultConfig(), nil)
	k.RegisterCheck(DNFLapsCapCheck)

	c := conservedScenario(10, 100)
	o := c.Outcomes["d10"]
	o.DNF = true
	o.DNFLap = 1
	o.FinishPosition = 10
	c.Outcomes["d10"] = o

	r := mustValidate(t, k, c)
	if !r.IsValid {
		t.Fatalf("lap-1 retirement with zero laps led must pass, got %v", r.Vetoes)
	}
}

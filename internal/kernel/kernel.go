package kernel

import (
	"fmt"
	"sort"

	"github.com/danielpatrickdp/race-sim/go-engine/internal/scenario"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/simerr"
)

// #region kernel

// Check is a caller-registered conservation check. It returns the vetoes
// it raises, or nil to accept, and must be deterministic.
type Check func(scenario.Components) []Veto

// Kernel validates assembled scenarios against hard physical invariants.
// It does not care how a scenario was produced; the same draft always
// gets the same verdict.
type Kernel struct {
	config     Config
	acc        Accumulator
	extensions []Check
}

// NewKernel creates a kernel with the given policy and rejection
// accumulator. A nil accumulator gets a private counting one.
func NewKernel(config Config, acc Accumulator) *Kernel {
	if acc == nil {
		acc = NewCountingAccumulator()
	}
	return &Kernel{config: config, acc: acc}
}

// Accumulator exposes the rejection statistics sink.
func (k *Kernel) Accumulator() Accumulator {
	return k.acc
}

// Config returns the conservation policy, so producers can shape drafts
// against the same bounds the checks will enforce.
func (k *Kernel) Config() Config {
	return k.config
}

// RegisterCheck appends a caller check. Registered checks run after the
// built-in ones, in registration order.
func (k *Kernel) RegisterCheck(c Check) {
	k.extensions = append(k.extensions, c)
}

// Validate runs every conservation check and returns the collected
// vetoes. All checks run; nothing short-circuits, so the veto list names
// every violated invariant. Only malformed input returns an error.
func (k *Kernel) Validate(c scenario.Components) (Result, error) {
	if err := checkWellFormed(c); err != nil {
		return Result{}, err
	}

	var vetoes []Veto

	// 1. Laps led are a zero-sum resource over the green-flag laps.
	ledSum := 0
	for _, o := range c.Outcomes {
		ledSum += o.LapsLed
	}
	if ledSum != c.Regime.GreenFlagLaps {
		vetoes = append(vetoes, Veto{
			Reason: ReasonLapsLedConservation,
			Detail: fmt.Sprintf("sum(laps_led)=%d, green_flag_laps=%d", ledSum, c.Regime.GreenFlagLaps),
		})
	}

	// 2. Fastest laps cannot exceed the green-flag laps.
	fastSum := 0
	for _, o := range c.Outcomes {
		fastSum += o.FastestLaps
	}
	if fastSum > c.Regime.GreenFlagLaps {
		vetoes = append(vetoes, Veto{
			Reason: ReasonFastestLapsBound,
			Detail: fmt.Sprintf("sum(fastest_laps)=%d, green_flag_laps=%d", fastSum, c.Regime.GreenFlagLaps),
		})
	}

	// 3. Position churn stays under the tighter of the two bounds.
	swaps := swapCount(c)
	bound := k.config.SwapBound(c.FieldSize(), c.Regime.GreenFlagLaps)
	if swaps > bound {
		vetoes = append(vetoes, Veto{
			Reason: ReasonSwapBudget,
			Detail: fmt.Sprintf("swaps=%d, bound=%d", swaps, bound),
		})
	}

	// 4. Finish order is a permutation with retirees stacked at the tail
	// in drop-out order.
	vetoes = append(vetoes, checkFinishOrder(c)...)

	// 5. Caller extensions.
	for _, check := range k.extensions {
		vetoes = append(vetoes, check(c)...)
	}

	k.acc.Observe(reasonsOf(vetoes))
	return Result{IsValid: len(vetoes) == 0, Vetoes: vetoes}, nil
}

// ValidateBulk validates a batch with scalar semantics per element.
// Malformed input anywhere fails the whole call.
func (k *Kernel) ValidateBulk(batch []scenario.Components) ([]Result, error) {
	results := make([]Result, len(batch))
	for i, c := range batch {
		r, err := k.Validate(c)
		if err != nil {
			return nil, fmt.Errorf("scenario %d: %w", i, err)
		}
		results[i] = r
	}
	return results, nil
}

func reasonsOf(vetoes []Veto) []string {
	if len(vetoes) == 0 {
		return nil
	}
	reasons := make([]string, len(vetoes))
	for i, v := range vetoes {
		reasons[i] = v.Reason
	}
	return reasons
}

// #endregion kernel

// #region checks

// checkWellFormed rejects input the checks cannot reason about. These
// are caller errors, not conservation verdicts.
func checkWellFormed(c scenario.Components) error {
	if len(c.Outcomes) == 0 {
		return simerr.New(simerr.CodeInvariantViolation, "scenario has no drivers")
	}
	if c.Regime.GreenFlagLaps < 0 || c.Regime.CautionLaps < 0 {
		return simerr.Newf(simerr.CodeInvariantViolation,
			"negative lap partition: green=%d caution=%d", c.Regime.GreenFlagLaps, c.Regime.CautionLaps)
	}
	for _, id := range c.DriverIDs() {
		o := c.Outcomes[id]
		if o.LapsLed < 0 || o.FastestLaps < 0 || o.Incidents < 0 {
			return simerr.Newf(simerr.CodeInvariantViolation, "driver %s has negative counters", id)
		}
		if o.DNF && o.DNFLap < 1 {
			return simerr.Newf(simerr.CodeInvariantViolation, "driver %s retired without a drop-out lap", id)
		}
		if !o.DNF && o.DNFLap != 0 {
			return simerr.Newf(simerr.CodeInvariantViolation, "driver %s finished but carries a drop-out lap", id)
		}
	}
	return nil
}

// SwapCount is the churn metric behind the swap budget: total place
// movement of the running drivers measured on the retiree-compacted
// order, halved so one exchange counts once. Slots vacated by
// retirements are closed up before measuring, so attrition alone scores
// zero. Producers shaping drafts against the budget must use this same
// metric.
func SwapCount(ids []string, start, finish map[string]int, retired map[string]bool) int {
	runners := make([]string, 0, len(ids))
	for _, id := range ids {
		if !retired[id] {
			runners = append(runners, id)
		}
	}
	startRank := compactRank(runners, start)
	finishRank := compactRank(runners, finish)
	total := 0
	for _, id := range runners {
		d := startRank[id] - finishRank[id]
		if d < 0 {
			d = -d
		}
		total += d
	}
	return total / 2
}

// compactRank ranks the given drivers 1..len(ids) by slot order.
func compactRank(ids []string, slot map[string]int) map[string]int {
	order := append([]string(nil), ids...)
	sort.SliceStable(order, func(a, b int) bool { return slot[order[a]] < slot[order[b]] })
	rank := make(map[string]int, len(order))
	for i, id := range order {
		rank[id] = i + 1
	}
	return rank
}

func swapCount(c scenario.Components) int {
	ids := c.DriverIDs()
	start := make(map[string]int, len(ids))
	finish := make(map[string]int, len(ids))
	retired := make(map[string]bool, len(ids))
	for _, id := range ids {
		o := c.Outcomes[id]
		start[id] = o.StartPosition()
		finish[id] = o.FinishPosition
		retired[id] = o.DNF
	}
	return SwapCount(ids, start, finish, retired)
}

// checkFinishOrder verifies the finish and derived start permutations and
// the retiree tail. Tail slots order by drop-out lap: the earliest
// retirement finishes last.
func checkFinishOrder(c scenario.Components) []Veto {
	var vetoes []Veto
	n := c.FieldSize()
	ids := c.DriverIDs()

	finishSeen := make([]bool, n+1)
	startSeen := make([]bool, n+1)
	finishOK, startOK := true, true
	for _, id := range ids {
		o := c.Outcomes[id]
		if o.FinishPosition < 1 || o.FinishPosition > n || finishSeen[o.FinishPosition] {
			finishOK = false
		} else {
			finishSeen[o.FinishPosition] = true
		}
		start := o.StartPosition()
		if start < 1 || start > n || startSeen[start] {
			startOK = false
		} else {
			startSeen[start] = true
		}
	}
	if !finishOK {
		vetoes = append(vetoes, Veto{
			Reason: ReasonFinishPermutation,
			Detail: fmt.Sprintf("finish positions are not a permutation of 1..%d", n),
		})
	}
	if !startOK {
		vetoes = append(vetoes, Veto{
			Reason: ReasonStartPermutation,
			Detail: fmt.Sprintf("derived start positions are not a permutation of 1..%d", n),
		})
	}
	if !finishOK {
		// Tail order is undefined without a valid finish permutation.
		return vetoes
	}

	type retiree struct {
		id  string
		pos int
		lap int
	}
	var retirees []retiree
	for _, id := range ids {
		o := c.Outcomes[id]
		if o.DNF {
			retirees = append(retirees, retiree{id: id, pos: o.FinishPosition, lap: o.DNFLap})
		}
	}
	if len(retirees) == 0 {
		return vetoes
	}

	sort.Slice(retirees, func(i, j int) bool { return retirees[i].pos < retirees[j].pos })

	// All retirees must sit in the last len(retirees) slots.
	firstTail := n - len(retirees) + 1
	for _, r := range retirees {
		if r.pos < firstTail {
			vetoes = append(vetoes, Veto{
				Reason: ReasonDNFTailOrder,
				Detail: fmt.Sprintf("retired driver %s finished %d, ahead of tail slot %d", r.id, r.pos, firstTail),
			})
			return vetoes
		}
	}
	// Within the tail, a worse position means an earlier (or same-lap)
	// retirement.
	for i := 1; i < len(retirees); i++ {
		if retirees[i].lap > retirees[i-1].lap {
			vetoes = append(vetoes, Veto{
				Reason: ReasonDNFTailOrder,
				Detail: fmt.Sprintf("driver %s retired lap %d but finished ahead of driver %s (lap %d)",
					retirees[i-1].id, retirees[i-1].lap, retirees[i].id, retirees[i].lap),
			})
			return vetoes
		}
	}
	return vetoes
}

// #endregion checks

// #region shipped-extensions

// DNFLapsCapCheck vetoes a retiree credited with leading on or after the
// lap it dropped out.
func DNFLapsCapCheck(c scenario.Components) []Veto {
	var vetoes []Veto
	for _, id := range c.DriverIDs() {
		o := c.Outcomes[id]
		if !o.DNF {
			continue
		}
		if o.LapsLed > o.DNFLap-1 {
			vetoes = append(vetoes, Veto{
				Reason: ReasonDNFLapsCap,
				Detail: fmt.Sprintf("driver %s led %d laps but retired on lap %d", id, o.LapsLed, o.DNFLap),
			})
		}
	}
	return vetoes
}

// #endregion shipped-extensions

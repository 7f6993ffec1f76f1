package generate

import (
	"math"
	"sort"
)

// #region alphas

// alphasFrom turns sampled share propensities into Dirichlet
// concentration parameters. The floor keeps every driver drawable; the
// concentration knob sharpens or flattens the field.
func alphasFrom(propensities []float64, concentration float64) []float64 {
	alphas := make([]float64, len(propensities))
	for i, p := range propensities {
		if p < 0 {
			p = 0
		}
		alphas[i] = 0.2 + concentration*p
	}
	return alphas
}

// #endregion alphas

// #region allocate

// byWeightDesc returns driver indexes ordered by descending weight,
// ties broken by ascending index so drift correction is deterministic.
func byWeightDesc(weights []float64) []int {
	order := make([]int, len(weights))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return weights[order[a]] > weights[order[b]]
	})
	return order
}

// allocateExact scales weights by total, rounds to nearest, then pushes
// the rounding drift onto the highest-weight drivers until the sum is
// exact. caps may be nil; a capped driver never exceeds caps[i]. When
// the caps themselves cannot reach the total, the result sums to the cap
// ceiling instead and downstream validation rejects the draft.
func allocateExact(weights []float64, total int, caps []int) []int {
	n := len(weights)
	alloc := make([]int, n)
	if n == 0 || total <= 0 {
		return alloc
	}

	capOf := func(i int) int {
		if caps == nil {
			return total
		}
		if caps[i] > total {
			return total
		}
		return caps[i]
	}

	// 1. Nearest-integer rounding under caps.
	sum := 0
	for i, w := range weights {
		v := int(math.Round(w * float64(total)))
		if v < 0 {
			v = 0
		}
		if c := capOf(i); v > c {
			v = c
		}
		alloc[i] = v
		sum += v
	}

	// 2. Drift onto the highest-weight drivers, deterministically. Each
	// pass moves the sum strictly toward the total, so this terminates.
	order := byWeightDesc(weights)
	for sum != total {
		moved := false
		for _, i := range order {
			if sum == total {
				break
			}
			if sum < total && alloc[i] < capOf(i) {
				alloc[i]++
				sum++
				moved = true
			} else if sum > total && alloc[i] > 0 {
				alloc[i]--
				sum--
				moved = true
			}
		}
		if !moved {
			break // caps exhausted, leave the shortfall for validation
		}
	}
	return alloc
}

// allocateBounded scales weights by total and floors, so the sum never
// exceeds the bound. Used for fastest laps, which are capped, not
// conserved.
func allocateBounded(weights []float64, total int, caps []int) []int {
	alloc := make([]int, len(weights))
	if total <= 0 {
		return alloc
	}
	for i, w := range weights {
		v := int(math.Floor(w * float64(total)))
		if v < 0 {
			v = 0
		}
		if caps != nil && v > caps[i] {
			v = caps[i]
		}
		alloc[i] = v
	}
	return alloc
}

// #endregion allocate

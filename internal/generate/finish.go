package generate

import (
	"sort"

	"github.com/danielpatrickdp/race-sim/go-engine/internal/kernel"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/ontology"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/simerr"
)

// #region start-grid

// buildGrid ranks the field by skill prior, best first, ties by driver
// id. Returns driver id -> grid slot (1-based).
func buildGrid(cons *ontology.Constraints) map[string]int {
	ids := cons.DriverIDs()
	type seeded struct {
		id    string
		skill float64
	}
	field := make([]seeded, 0, len(ids))
	for _, id := range ids {
		p, err := cons.DriverPriors(id)
		if err != nil {
			continue
		}
		field = append(field, seeded{id: id, skill: p.Skill})
	}
	sort.SliceStable(field, func(a, b int) bool {
		if field[a].skill != field[b].skill {
			return field[a].skill > field[b].skill
		}
		return field[a].id < field[b].id
	})
	grid := make(map[string]int, len(field))
	for i, s := range field {
		grid[s.id] = i + 1
	}
	return grid
}

// gridFromOverride validates a caller-supplied grid: it must name every
// driver exactly once.
func gridFromOverride(order []string, cons *ontology.Constraints) (map[string]int, error) {
	if len(order) != cons.FieldSize() {
		return nil, simerr.Newf(simerr.CodeInvariantViolation,
			"start grid names %d drivers, field has %d", len(order), cons.FieldSize())
	}
	grid := make(map[string]int, len(order))
	for i, id := range order {
		if _, err := cons.DriverPriors(id); err != nil {
			return nil, err
		}
		if _, dup := grid[id]; dup {
			return nil, simerr.Newf(simerr.CodeInvariantViolation, "start grid repeats driver %s", id)
		}
		grid[id] = i + 1
	}
	return grid, nil
}

// #endregion start-grid

// #region finish-order

type finishInputs struct {
	ids        []string // sorted driver ids
	start      map[string]int
	propensity map[string]float64
	dnf        map[string]bool
	dnfLap     map[string]int
	blend      float64
	swapBound  int
}

// buildFinishOrder derives the finish permutation. Running drivers are
// ordered by a blend of grid slot and finish propensity; retirees stack
// at the tail, latest drop-out first. If the running order would burn
// more position swaps than the budget allows, the blend is walked toward
// the grid until it fits; at full blend the compacted order matches the
// grid and the swap count is zero.
func buildFinishOrder(in finishInputs) map[string]int {
	n := len(in.ids)
	finish := make(map[string]int, n)

	var runners, retirees []string
	for _, id := range in.ids {
		if in.dnf[id] {
			retirees = append(retirees, id)
		} else {
			runners = append(runners, id)
		}
	}

	// Tail slots in drop-out order: surviving longest earns the best one.
	sort.SliceStable(retirees, func(a, b int) bool {
		la, lb := in.dnfLap[retirees[a]], in.dnfLap[retirees[b]]
		if la != lb {
			return la > lb
		}
		return retirees[a] < retirees[b]
	})
	for i, id := range retirees {
		finish[id] = n - len(retirees) + 1 + i
	}

	blend := in.blend
	for {
		order := rankRunners(runners, in, blend)
		for pos, id := range order {
			finish[id] = pos + 1
		}
		if kernel.SwapCount(in.ids, in.start, finish, in.dnf) <= in.swapBound || blend >= 1 {
			return finish
		}
		blend += 0.15
		if blend > 1 {
			blend = 1
		}
	}
}

// rankRunners orders the running drivers, best finish first.
func rankRunners(runners []string, in finishInputs, blend float64) []string {
	n := len(in.ids)
	score := make(map[string]float64, len(runners))
	for _, id := range runners {
		gridNorm := 0.0
		if n > 1 {
			gridNorm = float64(in.start[id]-1) / float64(n-1)
		}
		score[id] = blend*gridNorm + (1-blend)*(1-in.propensity[id])
	}
	order := append([]string(nil), runners...)
	sort.SliceStable(order, func(a, b int) bool {
		if score[order[a]] != score[order[b]] {
			return score[order[a]] < score[order[b]]
		}
		return order[a] < order[b]
	})
	return order
}

// #endregion finish-order

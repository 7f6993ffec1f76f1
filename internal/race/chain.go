package race

import (
	"fmt"
	"math/rand"
)

// #region step-builders

// GreenFlagStep binds a green-flag run into a chainable step.
func GreenFlagStep(laps int, cfg TransitionConfig, rng *rand.Rand) Transition {
	return func(s RaceState) (RaceState, error) {
		return GreenFlag(s, laps, cfg, rng)
	}
}

// CautionStep binds a caution period into a chainable step.
func CautionStep(laps int, cfg TransitionConfig) Transition {
	return func(s RaceState) (RaceState, error) {
		return Caution(s, laps, cfg)
	}
}

// PitCycleStep binds a pit cycle into a chainable step.
func PitCycleStep(pitting []string, cfg TransitionConfig) Transition {
	return func(s RaceState) (RaceState, error) {
		return PitCycle(s, pitting, cfg)
	}
}

// FuelWindowStep binds the fuel-window classification into a chainable step.
func FuelWindowStep(cfg TransitionConfig) Transition {
	return func(s RaceState) (RaceState, error) {
		return FuelWindow(s, cfg)
	}
}

// #endregion step-builders

// #region chain

// Chain folds the steps over the initial state left to right, stopping at
// the first failing step. The initial state is never modified.
func Chain(initial RaceState, steps []Transition) (RaceState, error) {
	cur := initial
	for i, step := range steps {
		next, err := step(cur)
		if err != nil {
			return RaceState{}, fmt.Errorf("step %d: %w", i, err)
		}
		cur = next
	}
	return cur, nil
}

// #endregion chain

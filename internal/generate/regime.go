package generate

import (
	"math/rand"

	"github.com/danielpatrickdp/race-sim/go-engine/internal/causal"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/scenario"
)

// #region regime-priors

// Domain-tuned regime priors. These are fixed racing knowledge, not
// learned: caution counts cluster around two or three, most fields run a
// standard pit strategy, and late-race chaos is usually mild.
var (
	cautionPrior = cumulative{
		{limit: 0.08, value: 0},
		{limit: 0.22, value: 1},
		{limit: 0.45, value: 2},
		{limit: 0.68, value: 3},
		{limit: 0.84, value: 4},
		{limit: 0.93, value: 5},
		{limit: 0.97, value: 6},
		{limit: 0.99, value: 7},
		{limit: 1.00, value: 8},
	}
	pitStrategyPrior = cumulative{
		{limit: 0.25, value: 0}, // aggressive
		{limit: 0.80, value: 1}, // standard
		{limit: 1.00, value: 2}, // conservative
	}
)

var pitStrategyNames = []string{
	causal.PitAggressive,
	causal.PitStandard,
	causal.PitConservative,
}

// #endregion regime-priors

// #region sample-regime

// sampleRegime draws the scenario-level weather and partitions the race
// distance into caution and green-flag laps. Cautions that cannot fit
// the distance are dropped, so a one-lap race degenerates cleanly to
// zero cautions.
func sampleRegime(rng *rand.Rand, raceLength, lapsPerCaution int, chaosScale float64) scenario.Regime {
	nCautions := int(cautionPrior.sample(rng))
	pit := pitStrategyNames[int(pitStrategyPrior.sample(rng))]
	fuelRisk := betaDraw(rng, 2, 4)
	chaos := betaDraw(rng, 2, 5) * chaosScale
	if chaos > 1 {
		chaos = 1
	}

	if lapsPerCaution < 1 {
		lapsPerCaution = 1
	}
	// Keep at least one green lap whenever the distance allows it.
	maxCautions := (raceLength - 1) / lapsPerCaution
	if maxCautions < 0 {
		maxCautions = 0
	}
	if nCautions > maxCautions {
		nCautions = maxCautions
	}
	cautionLaps := nCautions * lapsPerCaution

	return scenario.Regime{
		NCautions:      nCautions,
		PitStrategy:    pit,
		FuelWindowRisk: fuelRisk,
		LateRaceChaos:  chaos,
		CautionLaps:    cautionLaps,
		GreenFlagLaps:  raceLength - cautionLaps,
	}
}

// #endregion sample-regime

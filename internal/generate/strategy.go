package generate

import "github.com/danielpatrickdp/race-sim/go-engine/internal/kernel"

// #region strategy-types

// StrategyID names a redraw strategy.
type StrategyID string

const (
	StrategyDefault      StrategyID = "default"
	StrategyAnchorGrid   StrategyID = "anchor_grid"
	StrategyReallocate   StrategyID = "reallocate"
	StrategyDampChaos    StrategyID = "damp_chaos"
	StrategyConservative StrategyID = "conservative"
)

// StrategyConfig shapes one draw attempt.
type StrategyConfig struct {
	ID            StrategyID
	GridBlend     float64 // 0 = pure propensity order, 1 = start grid order
	Concentration float64 // Dirichlet sharpness for resource allocation
	ChaosScale    float64 // multiplier on late-race chaos before evidence
}

// FailureClass buckets veto reasons for strategy selection.
type FailureClass string

const (
	FailureChurn      FailureClass = "churn"      // too much position movement
	FailureAllocation FailureClass = "allocation" // resource totals off
	FailureOrdering   FailureClass = "ordering"   // permutation or tail broken
	FailureUnknown    FailureClass = "unknown"
)

// #endregion strategy-types

// #region strategy-definitions

// Strategies returns the built-in redraw strategies.
var Strategies = map[StrategyID]StrategyConfig{
	StrategyDefault: {
		ID:            StrategyDefault,
		GridBlend:     0.85,
		Concentration: 6.0,
		ChaosScale:    1.0,
	},
	StrategyAnchorGrid: {
		ID:            StrategyAnchorGrid,
		GridBlend:     0.95,
		Concentration: 6.0,
		ChaosScale:    0.8,
	},
	StrategyReallocate: {
		ID:            StrategyReallocate,
		GridBlend:     0.85,
		Concentration: 10.0,
		ChaosScale:    1.0,
	},
	StrategyDampChaos: {
		ID:            StrategyDampChaos,
		GridBlend:     0.9,
		Concentration: 8.0,
		ChaosScale:    0.5,
	},
	StrategyConservative: {
		ID:            StrategyConservative,
		GridBlend:     1.0,
		Concentration: 12.0,
		ChaosScale:    0.25,
	},
}

// retryEscalation maps a failure class to the ordered strategy chain
// tried after the default draw fails.
var retryEscalation = map[FailureClass][]StrategyID{
	FailureChurn:      {StrategyAnchorGrid, StrategyDampChaos, StrategyConservative},
	FailureAllocation: {StrategyReallocate, StrategyDampChaos, StrategyConservative},
	FailureOrdering:   {StrategyAnchorGrid, StrategyConservative},
	FailureUnknown:    {StrategyConservative},
}

// #endregion strategy-definitions

// #region classify

// classifyFailure buckets the first veto reason of a rejected draft.
func classifyFailure(reasons []string) FailureClass {
	if len(reasons) == 0 {
		return FailureUnknown
	}
	switch reasons[0] {
	case kernel.ReasonSwapBudget, kernel.ReasonStartPermutation:
		return FailureChurn
	case kernel.ReasonLapsLedConservation, kernel.ReasonFastestLapsBound, kernel.ReasonDNFLapsCap:
		return FailureAllocation
	case kernel.ReasonFinishPermutation, kernel.ReasonDNFTailOrder:
		return FailureOrdering
	default:
		return FailureUnknown
	}
}

// selectRetry picks the next untried strategy for the failure class,
// falling back to any untried strategy before giving up.
func selectRetry(class FailureClass, tried []StrategyID) (StrategyConfig, bool) {
	triedSet := make(map[StrategyID]bool, len(tried))
	for _, id := range tried {
		triedSet[id] = true
	}

	chain, ok := retryEscalation[class]
	if !ok {
		chain = retryEscalation[FailureUnknown]
	}
	for _, id := range chain {
		if !triedSet[id] {
			return Strategies[id], true
		}
	}

	for _, id := range []StrategyID{
		StrategyDefault, StrategyAnchorGrid, StrategyReallocate,
		StrategyDampChaos, StrategyConservative,
	} {
		if !triedSet[id] {
			return Strategies[id], true
		}
	}
	return StrategyConfig{}, false
}

// #endregion classify

package kernel

// #region veto-reasons

// Veto reason categories, stable strings for accumulator keys and run
// metadata.
const (
	ReasonLapsLedConservation = "laps_led_conservation"
	ReasonFastestLapsBound    = "fastest_laps_bound"
	ReasonSwapBudget          = "swap_budget"
	ReasonFinishPermutation   = "finish_permutation"
	ReasonStartPermutation    = "start_permutation"
	ReasonDNFTailOrder        = "dnf_tail_order"
	ReasonDNFLapsCap          = "dnf_laps_cap"
)

// Veto is one failed conservation check.
type Veto struct {
	Reason string `json:"reason"`
	Detail string `json:"detail"`
}

// Result is the outcome of validating one scenario. Business-rule
// failures land here; they are never errors.
type Result struct {
	IsValid bool   `json:"is_valid"`
	Vetoes  []Veto `json:"vetoes,omitempty"`
}

// Reasons returns the veto categories in check order.
func (r Result) Reasons() []string {
	if len(r.Vetoes) == 0 {
		return nil
	}
	reasons := make([]string, len(r.Vetoes))
	for i, v := range r.Vetoes {
		reasons[i] = v.Reason
	}
	return reasons
}

// #endregion veto-reasons

// #region config

// Config holds the tunable conservation policies. The swap bound is the
// tighter of field_size*SwapFieldFactor and green_flag_laps/SwapLapDivisor.
type Config struct {
	SwapFieldFactor int
	SwapLapDivisor  int
}

// DefaultConfig returns the tuned conservation policy.
func DefaultConfig() Config {
	return Config{
		SwapFieldFactor: 2,
		SwapLapDivisor:  10,
	}
}

// SwapBound computes the position-swap budget for a field and green-lap
// count.
func (c Config) SwapBound(fieldSize, greenFlagLaps int) int {
	byField := fieldSize * c.SwapFieldFactor
	byLaps := greenFlagLaps / c.SwapLapDivisor
	if byLaps < byField {
		return byLaps
	}
	return byField
}

// #endregion config

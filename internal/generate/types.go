package generate

import (
	"time"

	"github.com/danielpatrickdp/race-sim/go-engine/internal/scenario"
)

// #region config

// Config holds the generator's tuning knobs.
type Config struct {
	Workers        int           // parallel scenario workers
	RetryBudget    int           // redraws per scenario before returning it invalid
	LapsPerCaution int           // caution length used to partition the race distance
	BatchDeadline  time.Duration // wall-clock cap per batch, 0 means none
}

// DefaultConfig returns the tuned generator settings.
func DefaultConfig() Config {
	return Config{
		Workers:        4,
		RetryBudget:    8,
		LapsPerCaution: 5,
		BatchDeadline:  30 * time.Second,
	}
}

// #endregion config

// #region request

// Request describes one generation batch.
type Request struct {
	Track      string
	Count      int
	RaceLength int
	Seed       int64    // base seed; scenario i draws from Seed+i
	StartGrid  []string // optional grid override, defaults to skill order
}

// #endregion request

// #region batch

// Diagnostics reports how a batch went. Returned can fall short of
// Requested only when the batch deadline cuts generation off.
type Diagnostics struct {
	Requested      int           `json:"requested"`
	Returned       int           `json:"returned"`
	Accepted       int           `json:"accepted"`
	Rejected       int           `json:"rejected"` // returned but invalid after the retry budget
	FirstAttempt   int           `json:"first_attempt"` // accepted without any redraw
	RetryHistogram map[int]int   `json:"retry_histogram,omitempty"` // attempts -> scenario count
	Elapsed        time.Duration `json:"elapsed"`
	DeadlineHit    bool          `json:"deadline_hit,omitempty"`
}

// AcceptanceRate returns accepted/returned, zero for an empty batch.
func (d Diagnostics) AcceptanceRate() float64 {
	if d.Returned == 0 {
		return 0
	}
	return float64(d.Accepted) / float64(d.Returned)
}

// Batch is the result of one generation request. Scenarios appear in
// request index order; invalid ones stay in place, marked in their
// metadata, so the caller always sees what was asked for.
type Batch struct {
	Scenarios   []scenario.Components
	Diagnostics Diagnostics
}

// #endregion batch

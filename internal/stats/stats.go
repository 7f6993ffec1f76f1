package stats

import (
	"sort"

	"github.com/danielpatrickdp/race-sim/go-engine/internal/scenario"
)

// #region config

// Config holds tuning knobs for batch aggregation.
type Config struct {
	AcceptedOnly bool // leave rejected drafts out of the aggregates
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{AcceptedOnly: true}
}

// #endregion config

// #region types

// DriverLine aggregates one driver's outcomes across a batch.
type DriverLine struct {
	DriverID     string  `json:"driver_id"`
	Scenarios    int     `json:"scenarios"`
	Wins         int     `json:"wins"`
	Top5         int     `json:"top5"`
	DNFs         int     `json:"dnfs"`
	AvgFinish    float64 `json:"avg_finish"`
	AvgIncidents float64 `json:"avg_incidents"`
	LapsLedShare float64 `json:"laps_led_share"` // share of all green laps in the batch
	FastestShare float64 `json:"fastest_share"`
}

// Summary is the per-driver outcome distribution of one batch, the view
// a scoring consumer reads off the raw scenarios.
type Summary struct {
	Scenarios   int          `json:"scenarios"`
	Skipped     int          `json:"skipped,omitempty"`
	AvgCautions float64      `json:"avg_cautions"`
	Drivers     []DriverLine `json:"drivers"`
}

// #endregion types

// #region summarize

// Summarize folds a batch into per-driver lines, strongest average
// finish first. Operates purely on scenario content.
func Summarize(scs []scenario.Components, cfg Config) Summary {
	type agg struct {
		scenarios, wins, top5, dnfs int
		incidents, lapsLed, fastest int
		finishSum                   int
	}
	byDriver := make(map[string]*agg)

	var used, skipped, cautionSum, greenSum int
	for _, sc := range scs {
		if cfg.AcceptedOnly && !sc.Meta.Accepted {
			skipped++
			continue
		}
		used++
		cautionSum += sc.Regime.NCautions
		greenSum += sc.Regime.GreenFlagLaps

		for _, id := range sc.DriverIDs() {
			out := sc.Outcomes[id]
			a := byDriver[id]
			if a == nil {
				a = &agg{}
				byDriver[id] = a
			}
			a.scenarios++
			a.finishSum += out.FinishPosition
			if out.FinishPosition == 1 {
				a.wins++
			}
			if out.FinishPosition <= 5 {
				a.top5++
			}
			if out.DNF {
				a.dnfs++
			}
			a.incidents += out.Incidents
			a.lapsLed += out.LapsLed
			a.fastest += out.FastestLaps
		}
	}

	s := Summary{Scenarios: used, Skipped: skipped}
	if used == 0 {
		return s
	}
	s.AvgCautions = float64(cautionSum) / float64(used)

	ids := make([]string, 0, len(byDriver))
	for id := range byDriver {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	s.Drivers = make([]DriverLine, 0, len(ids))
	for _, id := range ids {
		a := byDriver[id]
		line := DriverLine{
			DriverID:     id,
			Scenarios:    a.scenarios,
			Wins:         a.wins,
			Top5:         a.top5,
			DNFs:         a.dnfs,
			AvgFinish:    float64(a.finishSum) / float64(a.scenarios),
			AvgIncidents: float64(a.incidents) / float64(a.scenarios),
		}
		if greenSum > 0 {
			line.LapsLedShare = float64(a.lapsLed) / float64(greenSum)
			line.FastestShare = float64(a.fastest) / float64(greenSum)
		}
		s.Drivers = append(s.Drivers, line)
	}

	sort.SliceStable(s.Drivers, func(i, j int) bool {
		if s.Drivers[i].AvgFinish != s.Drivers[j].AvgFinish {
			return s.Drivers[i].AvgFinish < s.Drivers[j].AvgFinish
		}
		return s.Drivers[i].DriverID < s.Drivers[j].DriverID
	})
	return s
}

// #endregion summarize

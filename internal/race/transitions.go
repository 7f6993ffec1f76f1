package race

import (
	"math"
	"math/rand"
	"sort"

	"github.com/danielpatrickdp/race-sim/go-engine/internal/simerr"
)

// #region constructor

// New builds a validated RaceState at lap 0 under green flag. Construction
// is eager: an invalid field (bad permutation, out-of-range fuel or wear)
// is rejected here, never discovered later.
func New(raceLength int, drivers map[string]DriverState) (RaceState, error) {
	s := RaceState{
		Lap:        0,
		RaceLength: raceLength,
		Segment:    SegmentGreenFlag,
		Drivers:    cloneDrivers(drivers),
	}
	if err := Validate(s); err != nil {
		return RaceState{}, err
	}
	return s, nil
}

// Validate checks every structural invariant of a RaceState.
func Validate(s RaceState) error {
	if s.RaceLength < 1 {
		return simerr.Newf(simerr.CodeInvariantViolation, "race length %d, need at least 1", s.RaceLength)
	}
	if s.Lap < 0 || s.Lap > s.RaceLength {
		return simerr.Newf(simerr.CodeInvariantViolation, "lap %d outside 0..%d", s.Lap, s.RaceLength)
	}
	if !validSegment(s.Segment) {
		return simerr.Newf(simerr.CodeInvariantViolation, "unknown segment %q", s.Segment)
	}
	n := len(s.Drivers)
	if n < 1 {
		return simerr.New(simerr.CodeInvariantViolation, "empty driver field")
	}

	// Positions must form exactly the permutation 1..n.
	seen := make([]bool, n+1)
	for id, d := range s.Drivers {
		if d.Position < 1 || d.Position > n {
			return simerr.Newf(simerr.CodeInvariantViolation, "driver %s position %d outside 1..%d", id, d.Position, n)
		}
		if seen[d.Position] {
			return simerr.Newf(simerr.CodeInvariantViolation, "duplicate position %d", d.Position)
		}
		seen[d.Position] = true

		if d.FuelLevel < 0 || d.FuelLevel > 1 {
			return simerr.Newf(simerr.CodeInvariantViolation, "driver %s fuel %.3f outside 0..1", id, d.FuelLevel)
		}
		if d.TireWear < 0 || d.TireWear > 1 {
			return simerr.Newf(simerr.CodeInvariantViolation, "driver %s tire wear %.3f outside 0..1", id, d.TireWear)
		}
		if d.ActiveCautionLaps < 0 {
			return simerr.Newf(simerr.CodeInvariantViolation, "driver %s negative caution laps %d", id, d.ActiveCautionLaps)
		}
	}
	return nil
}

func cloneDrivers(drivers map[string]DriverState) map[string]DriverState {
	out := make(map[string]DriverState, len(drivers))
	for id, d := range drivers {
		out[id] = d
	}
	return out
}

// runningOrder returns driver ids sorted by current position, front first.
func runningOrder(s RaceState) []string {
	order := make([]string, 0, len(s.Drivers))
	for id := range s.Drivers {
		order = append(order, id)
	}
	sort.Slice(order, func(i, j int) bool {
		return s.Drivers[order[i]].Position < s.Drivers[order[j]].Position
	})
	return order
}

// #endregion constructor

// #region green-flag

// GreenFlag advances the race by laps green-flag laps. Fuel burns and
// tires wear at the configured per-lap rates, and positions shift through
// a skill-weighted random walk driven entirely by the passed rng. The
// input state is never modified.
func GreenFlag(s RaceState, laps int, cfg TransitionConfig, rng *rand.Rand) (RaceState, error) {
	if laps < 0 {
		return RaceState{}, simerr.Newf(simerr.CodeInvariantViolation, "negative lap count %d", laps)
	}
	if s.Lap+laps > s.RaceLength {
		return RaceState{}, simerr.Newf(simerr.CodeInvariantViolation, "lap %d exceeds race length %d", s.Lap+laps, s.RaceLength)
	}

	next := s
	next.Drivers = cloneDrivers(s.Drivers)
	next.Lap += laps
	next.Segment = SegmentGreenFlag

	// 1. Burn fuel and accrue wear per driver.
	for id, d := range next.Drivers {
		d.FuelLevel = math.Max(0, d.FuelLevel-float64(laps)*cfg.FuelBurnPerLap)
		d.TireWear = math.Min(1, d.TireWear+float64(laps)*cfg.TireWearPerLap)
		next.Drivers[id] = d
	}

	// 2. Position walk: each lap, each car may pass the car ahead with a
	// chance shifted by the skill gap. The walk only ever swaps adjacent
	// cars, so the permutation is preserved by construction.
	order := runningOrder(next)
	for lap := 0; lap < laps; lap++ {
		for p := len(order) - 1; p >= 1; p-- {
			behind, ahead := order[p], order[p-1]
			chance := cfg.PassBaseChance + cfg.PassSkillGain*(cfg.skillWeight(behind)-cfg.skillWeight(ahead))
			if chance < 0.02 {
				chance = 0.02
			}
			if chance > 0.45 {
				chance = 0.45
			}
			if rng.Float64() < chance {
				order[p], order[p-1] = order[p-1], order[p]
			}
		}
	}
	for p, id := range order {
		d := next.Drivers[id]
		d.Position = p + 1
		next.Drivers[id] = d
	}

	if err := Validate(next); err != nil {
		return RaceState{}, simerr.Wrap(simerr.CodeInvariantViolation, "green flag post-condition", err)
	}
	return next, nil
}

// #endregion green-flag

// #region caution

// Caution runs laps caution laps. Fuel and tires hold, every driver's
// active caution count grows, and the field reshuffles by caution-period
// rules: drivers due for service (low fuel or worn tires) drop to the
// rear in their current relative order, everyone else closes up front.
func Caution(s RaceState, laps int, cfg TransitionConfig) (RaceState, error) {
	if laps < 0 {
		return RaceState{}, simerr.Newf(simerr.CodeInvariantViolation, "negative lap count %d", laps)
	}
	if s.Lap+laps > s.RaceLength {
		return RaceState{}, simerr.Newf(simerr.CodeInvariantViolation, "lap %d exceeds race length %d", s.Lap+laps, s.RaceLength)
	}

	next := s
	next.Drivers = cloneDrivers(s.Drivers)
	next.Lap += laps
	next.Segment = SegmentCaution

	for id, d := range next.Drivers {
		d.ActiveCautionLaps += laps
		next.Drivers[id] = d
	}

	// Stable partition of the running order: staying out vs diving to pit
	// lane. Relative order inside each group is preserved.
	var stayOut, service []string
	for _, id := range runningOrder(next) {
		d := next.Drivers[id]
		if d.FuelLevel < cfg.FuelPitThreshold || d.TireWear > cfg.TirePitThreshold {
			service = append(service, id)
		} else {
			stayOut = append(stayOut, id)
		}
	}
	pos := 1
	for _, id := range append(stayOut, service...) {
		d := next.Drivers[id]
		d.Position = pos
		next.Drivers[id] = d
		pos++
	}

	if err := Validate(next); err != nil {
		return RaceState{}, simerr.Wrap(simerr.CodeInvariantViolation, "caution post-condition", err)
	}
	return next, nil
}

// #endregion caution

// #region pit-cycle

// PitCycle services the given drivers: full fuel, fresh tires. An empty
// pitting list services every driver at or past the configured pit
// thresholds. Active caution laps reset to zero for the whole field, and
// that holds even when the prior segment was a caution.
func PitCycle(s RaceState, pitting []string, cfg TransitionConfig) (RaceState, error) {
	next := s
	next.Drivers = cloneDrivers(s.Drivers)
	next.Segment = SegmentPitCycle

	if len(pitting) == 0 {
		for _, id := range runningOrder(next) {
			d := next.Drivers[id]
			if d.FuelLevel < cfg.FuelPitThreshold || d.TireWear > cfg.TirePitThreshold {
				pitting = append(pitting, id)
			}
		}
	}

	for _, id := range pitting {
		d, ok := next.Drivers[id]
		if !ok {
			return RaceState{}, simerr.Newf(simerr.CodeUnknownDriver, "pitting driver %s not in field", id)
		}
		d.FuelLevel = 1.0
		d.TireWear = 0.0
		next.Drivers[id] = d
	}

	for id, d := range next.Drivers {
		d.ActiveCautionLaps = 0
		next.Drivers[id] = d
	}

	if err := Validate(next); err != nil {
		return RaceState{}, simerr.Wrap(simerr.CodeInvariantViolation, "pit cycle post-condition", err)
	}
	return next, nil
}

// #endregion pit-cycle

// #region fuel-window

// FuelWindow classifies the state: if the race has entered the stretch
// where at least one driver's tank cannot cover the remaining laps, the
// segment flips to fuel_window. Positions, fuel, and lap never change.
func FuelWindow(s RaceState, cfg TransitionConfig) (RaceState, error) {
	next := s
	next.Drivers = cloneDrivers(s.Drivers)

	remaining := float64(s.RaceLength - s.Lap)
	tankRange := math.MaxFloat64
	if cfg.FuelBurnPerLap > 0 {
		tankRange = 1.0 / cfg.FuelBurnPerLap
	}

	atRisk := false
	if remaining <= tankRange {
		for _, d := range next.Drivers {
			if d.FuelLevel < remaining*cfg.FuelBurnPerLap {
				atRisk = true
				break
			}
		}
	}
	if atRisk {
		next.Segment = SegmentFuelWindow
	}

	if err := Validate(next); err != nil {
		return RaceState{}, simerr.Wrap(simerr.CodeInvariantViolation, "fuel window post-condition", err)
	}
	return next, nil
}

// #endregion fuel-window

package race

// #region segment

// Segment identifies the flow phase a race state is in.
type Segment string

const (
	SegmentGreenFlag  Segment = "green_flag"
	SegmentCaution    Segment = "caution"
	SegmentPitCycle   Segment = "pit_cycle"
	SegmentFuelWindow Segment = "fuel_window"
)

func validSegment(s Segment) bool {
	switch s {
	case SegmentGreenFlag, SegmentCaution, SegmentPitCycle, SegmentFuelWindow:
		return true
	}
	return false
}

// #endregion segment

// #region driver-state

// DriverState is one driver's mechanical condition at a point in the race.
type DriverState struct {
	Position          int     // 1..field size, unique within a RaceState
	FuelLevel         float64 // 0..1, fraction of a full tank
	TireWear          float64 // 0..1, 0 is fresh rubber
	ActiveCautionLaps int     // laps run under the current caution
}

// #endregion driver-state

// #region race-state

// RaceState is a snapshot of the whole field. Transitions return fresh
// values; nothing mutates a state in place.
type RaceState struct {
	Lap        int
	RaceLength int
	Segment    Segment
	Drivers    map[string]DriverState
}

// FieldSize returns the number of drivers in the state.
func (s RaceState) FieldSize() int {
	return len(s.Drivers)
}

// #endregion race-state

// #region transition-config

// TransitionConfig fixes the physical rates and thresholds used by the
// transition operators.
type TransitionConfig struct {
	FuelBurnPerLap   float64            // tank fraction burned per green lap
	TireWearPerLap   float64            // wear accrued per green lap
	FuelPitThreshold float64            // below this, a caution sends the driver to pit lane
	TirePitThreshold float64            // above this, a caution sends the driver to pit lane
	PassBaseChance   float64            // per-lap chance of an adjacent pass, before skill
	PassSkillGain    float64            // how strongly the skill gap shifts the pass chance
	SkillWeights     map[string]float64 // per-driver walk weight; absent ids use 0.5
}

// DefaultTransitionConfig returns the tuned per-lap rates. A full tank
// covers roughly 90 laps at the default burn rate.
func DefaultTransitionConfig() TransitionConfig {
	return TransitionConfig{
		FuelBurnPerLap:   0.011,
		TireWearPerLap:   0.016,
		FuelPitThreshold: 0.35,
		TirePitThreshold: 0.65,
		PassBaseChance:   0.08,
		PassSkillGain:    0.30,
	}
}

func (c TransitionConfig) skillWeight(id string) float64 {
	if w, ok := c.SkillWeights[id]; ok {
		return w
	}
	return 0.5
}

// #endregion transition-config

// #region transition-type

// Transition is one step of a race evolution. Steps are built with the
// *Step constructors and folded left to right by Chain.
type Transition func(RaceState) (RaceState, error)

// #endregion transition-type

package scenario

import "sort"

// #region regime

// Regime is the scenario-level weather: sampled once, then conditioning
// every per-driver draw. CautionLaps and GreenFlagLaps partition the
// race distance between flag states.
type Regime struct {
	NCautions      int     `json:"n_cautions"`
	PitStrategy    string  `json:"pit_strategy"`
	FuelWindowRisk float64 `json:"fuel_window_risk"`
	LateRaceChaos  float64 `json:"late_race_chaos"`
	CautionLaps    int     `json:"caution_laps"`
	GreenFlagLaps  int     `json:"green_flag_laps"`
}

// #endregion regime

// #region outcomes

// DriverOutcome is one driver's realized race line. DNFLap is the lap
// the car retired, zero for finishers.
type DriverOutcome struct {
	LapsLed           int  `json:"laps_led"`
	FastestLaps       int  `json:"fastest_laps"`
	FinishPosition    int  `json:"finish_position"`
	PlaceDifferential int  `json:"place_differential"` // start minus finish, positive means gained
	Incidents         int  `json:"incidents"`
	DNF               bool `json:"dnf"`
	DNFLap            int  `json:"dnf_lap,omitempty"`
}

// StartPosition recovers the grid slot the differential was measured
// against.
func (o DriverOutcome) StartPosition() int {
	return o.FinishPosition + o.PlaceDifferential
}

// #endregion outcomes

// #region components

// GenerationParams records the inputs that shaped a scenario, for
// reproduction and audit.
type GenerationParams struct {
	RaceLength      int    `json:"race_length"`
	FieldSize       int    `json:"field_size"`
	OntologyVersion string `json:"ontology_version,omitempty"`
	ModelEdges      int    `json:"model_edges"`
	ModelDegraded   bool   `json:"model_degraded,omitempty"`
}

// Metadata is the conservation stamp attached to every emitted scenario.
type Metadata struct {
	Accepted    bool             `json:"accepted"`
	VetoReasons []string         `json:"veto_reasons,omitempty"`
	Seed        int64            `json:"seed"`
	Attempts    int              `json:"attempts"`
	Params      GenerationParams `json:"generation_params"`
}

// Components is one fully assembled scenario.
type Components struct {
	Regime   Regime                   `json:"regime"`
	Outcomes map[string]DriverOutcome `json:"driver_outcomes"`
	Meta     Metadata                 `json:"conservation_metadata"`
}

// FieldSize returns the number of drivers in the scenario.
func (c Components) FieldSize() int {
	return len(c.Outcomes)
}

// DriverIDs returns the driver ids in sorted order so iteration is
// reproducible.
func (c Components) DriverIDs() []string {
	ids := make([]string, 0, len(c.Outcomes))
	for id := range c.Outcomes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// #endregion components

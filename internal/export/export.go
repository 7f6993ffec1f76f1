package export

import (
	"strings"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/race-sim/go-engine/internal/scenario"
)

// #region flatten

// Flatten turns one scenario into a flat record of primitive fields,
// losslessly mappable to columnar or document formats. Keys are stable:
// regime.*, driver.<id>.*, meta.*.
func Flatten(sc scenario.Components) map[string]interface{} {
	rec := map[string]interface{}{
		"regime.n_cautions":       sc.Regime.NCautions,
		"regime.pit_strategy":     sc.Regime.PitStrategy,
		"regime.fuel_window_risk": sc.Regime.FuelWindowRisk,
		"regime.late_race_chaos":  sc.Regime.LateRaceChaos,
		"regime.caution_laps":     sc.Regime.CautionLaps,
		"regime.green_flag_laps":  sc.Regime.GreenFlagLaps,

		"meta.accepted":         sc.Meta.Accepted,
		"meta.veto_reasons":     strings.Join(sc.Meta.VetoReasons, ","),
		"meta.seed":             sc.Meta.Seed,
		"meta.attempts":         sc.Meta.Attempts,
		"meta.race_length":      sc.Meta.Params.RaceLength,
		"meta.field_size":       sc.Meta.Params.FieldSize,
		"meta.ontology_version": sc.Meta.Params.OntologyVersion,
		"meta.model_edges":      sc.Meta.Params.ModelEdges,
		"meta.model_degraded":   sc.Meta.Params.ModelDegraded,
	}
	for _, id := range sc.DriverIDs() {
		o := sc.Outcomes[id]
		prefix := "driver." + id + "."
		rec[prefix+"laps_led"] = o.LapsLed
		rec[prefix+"fastest_laps"] = o.FastestLaps
		rec[prefix+"finish_position"] = o.FinishPosition
		rec[prefix+"place_differential"] = o.PlaceDifferential
		rec[prefix+"incidents"] = o.Incidents
		rec[prefix+"dnf"] = o.DNF
		rec[prefix+"dnf_lap"] = o.DNFLap
	}
	return rec
}

// #endregion flatten

// #region protobuf

// ToStruct lifts the flattened record into a protobuf Struct.
func ToStruct(sc scenario.Components) (*structpb.Struct, error) {
	return structpb.NewStruct(Flatten(sc))
}

// Marshal serializes one scenario as deterministic binary protobuf:
// identical scenarios yield identical bytes.
func Marshal(sc scenario.Components) ([]byte, error) {
	st, err := ToStruct(sc)
	if err != nil {
		return nil, err
	}
	return proto.MarshalOptions{Deterministic: true}.Marshal(st)
}

// MarshalJSON serializes one scenario as protojson. Key order is sorted
// but protojson spacing is not byte-stable; replay comparison goes
// through the manifest encoding instead.
func MarshalJSON(sc scenario.Components) ([]byte, error) {
	st, err := ToStruct(sc)
	if err != nil {
		return nil, err
	}
	return protojson.Marshal(st)
}

// #endregion protobuf

package export

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/race-sim/go-engine/internal/generate"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/scenario"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/simerr"
)

func sampleScenario() scenario.Components {
	return scenario.Components{
		Regime: scenario.Regime{
			NCautions:      2,
			PitStrategy:    "standard",
			FuelWindowRisk: 0.4,
			LateRaceChaos:  0.25,
			CautionLaps:    10,
			GreenFlagLaps:  90,
		},
		Outcomes: map[string]scenario.DriverOutcome{
			"d01": {LapsLed: 60, FastestLaps: 12, FinishPosition: 1},
			"d02": {LapsLed: 30, FastestLaps: 8, FinishPosition: 2, PlaceDifferential: 1, Incidents: 1},
			"d03": {FinishPosition: 3, PlaceDifferential: -1, DNF: true, DNFLap: 55},
		},
		Meta: scenario.Metadata{
			Accepted: true,
			Seed:     1234,
			Attempts: 1,
			Params: scenario.GenerationParams{
				RaceLength:      100,
				FieldSize:       3,
				OntologyVersion: "abc123",
				ModelEdges:      4,
			},
		},
	}
}

func TestFlattenRecord(t *testing.T) {
	rec := Flatten(sampleScenario())

	if rec["regime.green_flag_laps"] != 90 {
		t.Fatalf("green_flag_laps = %v", rec["regime.green_flag_laps"])
	}
	if rec["driver.d01.laps_led"] != 60 {
		t.Fatalf("d01 laps_led = %v", rec["driver.d01.laps_led"])
	}
	if rec["driver.d03.dnf"] != true || rec["driver.d03.dnf_lap"] != 55 {
		t.Fatalf("d03 dnf fields = %v / %v", rec["driver.d03.dnf"], rec["driver.d03.dnf_lap"])
	}
	if rec["meta.seed"] != int64(1234) {
		t.Fatalf("meta.seed = %v", rec["meta.seed"])
	}
	if rec["meta.ontology_version"] != "abc123" {
		t.Fatalf("meta.ontology_version = %v", rec["meta.ontology_version"])
	}

	// Every driver contributes the same field set.
	for _, id := range []string{"d01", "d02", "d03"} {
		for _, field := range []string{"laps_led", "fastest_laps", "finish_position", "place_differential", "incidents", "dnf", "dnf_lap"} {
			if _, ok := rec["driver."+id+"."+field]; !ok {
				t.Fatalf("missing driver.%s.%s", id, field)
			}
		}
	}
}

func TestMarshalDeterministic(t *testing.T) {
	sc := sampleScenario()

	a, err := Marshal(sc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b, err := Marshal(sc)
	if err != nil {
		t.Fatalf("marshal again: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("deterministic marshal produced different bytes")
	}
	if len(a) == 0 {
		t.Fatal("empty payload")
	}
}

func TestMarshalJSONRoundTrips(t *testing.T) {
	sc := sampleScenario()
	data, err := MarshalJSON(sc)
	if err != nil {
		t.Fatalf("marshal json: %v", err)
	}

	var got structpb.Struct
	if err := protojson.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want, err := ToStruct(sc)
	if err != nil {
		t.Fatalf("to struct: %v", err)
	}
	if !proto.Equal(&got, want) {
		t.Fatal("json round trip changed the record")
	}
}

func TestManifestRoundTrip(t *testing.T) {
	req := generate.Request{Track: "daytona", Count: 2, RaceLength: 100, Seed: 9}
	batch := &generate.Batch{
		Scenarios: []scenario.Components{sampleScenario(), sampleScenario()},
		Diagnostics: generate.Diagnostics{
			Requested: 2, Returned: 2, Accepted: 2, FirstAttempt: 2,
		},
	}

	m := BuildManifest(req, batch)
	if len(m.Scenarios) != 2 {
		t.Fatalf("manifest scenarios = %d", len(m.Scenarios))
	}

	path := filepath.Join(t.TempDir(), "batch.json")
	if err := WriteManifest(path, m); err != nil {
		t.Fatalf("write: %v", err)
	}
	loaded, err := ReadManifest(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if loaded.Track != "daytona" || loaded.Seed != 9 || loaded.Count != 2 {
		t.Fatalf("loaded params %+v", loaded)
	}
	if loaded.Diagnostics.Accepted != 2 {
		t.Fatalf("diagnostics %+v", loaded.Diagnostics)
	}

	// Scenario records survive the file byte for byte in canonical form.
	for i := range m.Scenarios {
		want, err := CanonicalScenario(m.Scenarios[i])
		if err != nil {
			t.Fatalf("canonical: %v", err)
		}
		got, err := CanonicalScenario(loaded.Scenarios[i])
		if err != nil {
			t.Fatalf("canonical loaded: %v", err)
		}
		if !bytes.Equal(want, got) {
			t.Fatalf("scenario %d bytes drifted:\n%s\n%s", i, want, got)
		}
	}
}

func TestManifestFixture(t *testing.T) {
	m, err := ReadManifest(filepath.Join("testdata", "batch_manifest.json"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	if m.Track != "daytona" || m.Count != 2 || m.RaceLength != 100 || m.Seed != 9 {
		t.Fatalf("fixture params %+v", m)
	}
	if len(m.Scenarios) != 2 {
		t.Fatalf("fixture scenarios = %d", len(m.Scenarios))
	}
	if m.Diagnostics.Accepted != 2 || m.Diagnostics.RetryHistogram[2] != 1 {
		t.Fatalf("fixture diagnostics %+v", m.Diagnostics)
	}

	rec := m.Scenarios[0]
	if rec["driver.d01.laps_led"] != float64(58) {
		t.Fatalf("d01 laps_led = %v", rec["driver.d01.laps_led"])
	}
	if rec["meta.accepted"] != true {
		t.Fatalf("meta.accepted = %v", rec["meta.accepted"])
	}

	// Canonical bytes ignore how the record was assembled: the file's
	// key order and a map literal's produce the same encoding.
	literal := map[string]interface{}{
		"regime.n_cautions":       2,
		"regime.pit_strategy":     "standard",
		"regime.fuel_window_risk": 0.4,
		"regime.late_race_chaos":  0.25,
		"regime.caution_laps":     10,
		"regime.green_flag_laps":  90,

		"driver.d01.laps_led":           58,
		"driver.d01.fastest_laps":       11,
		"driver.d01.finish_position":    1,
		"driver.d01.place_differential": 2,
		"driver.d01.incidents":          0,
		"driver.d01.dnf":                false,
		"driver.d01.dnf_lap":            0,
		"driver.d02.laps_led":           30,
		"driver.d02.fastest_laps":       8,
		"driver.d02.finish_position":    2,
		"driver.d02.place_differential": -1,
		"driver.d02.incidents":          1,
		"driver.d02.dnf":                false,
		"driver.d02.dnf_lap":            0,
		"driver.d03.laps_led":           2,
		"driver.d03.fastest_laps":       1,
		"driver.d03.finish_position":    3,
		"driver.d03.place_differential": -1,
		"driver.d03.incidents":          2,
		"driver.d03.dnf":                true,
		"driver.d03.dnf_lap":            55,

		"meta.accepted":         true,
		"meta.veto_reasons":     "",
		"meta.seed":             9,
		"meta.attempts":         1,
		"meta.race_length":      100,
		"meta.field_size":       3,
		"meta.ontology_version": "abc123",
		"meta.model_edges":      4,
		"meta.model_degraded":   false,
	}
	want, err := CanonicalScenario(literal)
	if err != nil {
		t.Fatalf("canonical literal: %v", err)
	}
	got, err := CanonicalScenario(rec)
	if err != nil {
		t.Fatalf("canonical fixture: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("fixture record drifted from literal:\n%s\n%s", got, want)
	}
}

func TestReadManifestErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := ReadManifest(filepath.Join(t.TempDir(), "nope.json"))
		if !simerr.IsCode(err, simerr.CodeArtifactNotFound) {
			t.Fatalf("expected ARTIFACT_NOT_FOUND, got %v", err)
		}
	})

	t.Run("corrupt json", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		if err := os.WriteFile(path, []byte("{{{"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := ReadManifest(path); !simerr.IsCode(err, simerr.CodeArtifactCorrupt) {
			t.Fatalf("expected ARTIFACT_CORRUPT, got %v", err)
		}
	})

	t.Run("nonsense params", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "zero.json")
		if err := os.WriteFile(path, []byte(`{"count":0,"race_length":100}`), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
		if _, err := ReadManifest(path); !simerr.IsCode(err, simerr.CodeArtifactCorrupt) {
			t.Fatalf("expected ARTIFACT_CORRUPT, got %v", err)
		}
	})
}

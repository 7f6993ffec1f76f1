package generate

import (
	"math/rand"
	"testing"
)

func TestSampleRegimePartitionsRaceLength(t *testing.T) {
	rng := rand.New(rand.NewSource(23))
	for i := 0; i < 2000; i++ {
		r := sampleRegime(rng, 200, 5, 1.0)
		if r.CautionLaps+r.GreenFlagLaps != 200 {
			t.Fatalf("draw %d: partition %d + %d != 200", i, r.CautionLaps, r.GreenFlagLaps)
		}
		if r.CautionLaps != r.NCautions*5 {
			t.Fatalf("draw %d: %d cautions but %d caution laps", i, r.NCautions, r.CautionLaps)
		}
		if r.GreenFlagLaps < 1 {
			t.Fatalf("draw %d: no green laps left", i)
		}
		if r.FuelWindowRisk < 0 || r.FuelWindowRisk > 1 {
			t.Fatalf("draw %d: fuel risk %f", i, r.FuelWindowRisk)
		}
		if r.LateRaceChaos < 0 || r.LateRaceChaos > 1 {
			t.Fatalf("draw %d: chaos %f", i, r.LateRaceChaos)
		}
		switch r.PitStrategy {
		case "aggressive", "standard", "conservative":
		default:
			t.Fatalf("draw %d: pit strategy %q", i, r.PitStrategy)
		}
	}
}

func TestSampleRegimeDropsCautionsShortRaceCannotFit(t *testing.T) {
	rng := rand.New(rand.NewSource(29))
	for i := 0; i < 200; i++ {
		r := sampleRegime(rng, 1, 5, 1.0)
		if r.NCautions != 0 || r.CautionLaps != 0 {
			t.Fatalf("draw %d: one-lap race drew %d cautions", i, r.NCautions)
		}
		if r.GreenFlagLaps != 1 {
			t.Fatalf("draw %d: green = %d, want 1", i, r.GreenFlagLaps)
		}
	}
}

func TestSampleRegimeCautionCountObeysDistance(t *testing.T) {
	rng := rand.New(rand.NewSource(31))
	for i := 0; i < 500; i++ {
		r := sampleRegime(rng, 16, 5, 1.0)
		// (16-1)/5 = 3 cautions at most, keeping one green lap.
		if r.NCautions > 3 {
			t.Fatalf("draw %d: %d cautions in a 16-lap race", i, r.NCautions)
		}
	}
}

func TestSampleRegimeChaosScale(t *testing.T) {
	rng := rand.New(rand.NewSource(37))
	for i := 0; i < 200; i++ {
		r := sampleRegime(rng, 100, 5, 0)
		if r.LateRaceChaos != 0 {
			t.Fatalf("draw %d: chaos %f with a zero scale", i, r.LateRaceChaos)
		}
	}
}

func TestSampleRegimeDeterministicPerSeed(t *testing.T) {
	a := sampleRegime(rand.New(rand.NewSource(41)), 150, 5, 1.0)
	b := sampleRegime(rand.New(rand.NewSource(41)), 150, 5, 1.0)
	if a != b {
		t.Fatalf("same seed drew %+v and %+v", a, b)
	}
}

package histdata

import (
	"fmt"
	"math/rand"
)

// #region demo-seed

// SeedDemo fabricates plausible race history for a track and imports
// it: driver ratings stay fixed across races, outcomes correlate with
// the ratings plus race-level conditions. Good enough for the offline
// fit to find real structure; not a physics model. Returns the number
// of rows written.
func SeedDemo(s *Store, rng *rand.Rand, trackID string, races, fieldSize int) (int, error) {
	if races < 1 || fieldSize < 1 {
		return 0, fmt.Errorf("seed demo: need at least one race and one driver")
	}

	type rating struct {
		skill, aggression, shadow float64
	}
	field := make([]rating, fieldSize)
	for i := range field {
		field[i] = rating{
			skill:      clamp01(0.15 + 0.7*float64(fieldSize-i)/float64(fieldSize) + 0.05*rng.NormFloat64()),
			aggression: clamp01(0.5 + 0.2*rng.NormFloat64()),
			shadow:     clamp01(0.25 + 0.15*rng.NormFloat64()),
		}
	}

	var rows []Row
	for race := 0; race < races; race++ {
		raceID := fmt.Sprintf("%s-r%03d", trackID, race+1)
		nCautions := float64(rng.Intn(6))
		pit := float64(rng.Intn(3))
		fuelRisk := clamp01(0.35 + 0.2*rng.NormFloat64())
		chaos := clamp01(0.2 + 0.1*nCautions/5 + 0.15*rng.NormFloat64())

		for d, r := range field {
			incidentProp := clamp01(0.1 + 0.4*r.aggression + 0.3*chaos + 0.1*rng.NormFloat64())
			incidents := 0.0
			if rng.Float64() < incidentProp {
				incidents = float64(1 + rng.Intn(2))
			}
			dnf := 0.0
			if rng.Float64() < 0.04+0.2*incidentProp {
				dnf = 1
			}
			ledShare := clamp01(0.35*r.skill*r.skill + 0.05*rng.NormFloat64())
			fastShare := clamp01(0.3*r.skill*r.skill + 0.05*rng.NormFloat64())
			finishProp := clamp01(0.15 + 0.65*r.skill - 0.15*incidentProp + 0.08*rng.NormFloat64())
			if dnf == 1 {
				ledShare *= 0.3
				fastShare *= 0.3
				finishProp *= 0.4
			}

			rows = append(rows, Row{
				TrackID:  trackID,
				RaceID:   raceID,
				DriverID: fmt.Sprintf("d%02d", d+1),
				Values: []float64{
					r.skill, r.aggression, r.shadow,
					nCautions, pit, fuelRisk, chaos,
					incidentProp, incidents, dnf,
					ledShare, fastShare, finishProp,
				},
			})
		}
	}

	if err := s.ImportRows(rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// #endregion demo-seed

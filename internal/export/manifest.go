package export

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/danielpatrickdp/race-sim/go-engine/internal/generate"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/simerr"
)

// #region manifest

// Manifest is the on-disk record of one generation batch: the request,
// its diagnostics, and every scenario flattened. The scenario encoding
// is canonical JSON (sorted keys), so replaying the same request must
// reproduce the same scenario bytes.
type Manifest struct {
	Track       string                   `json:"track"`
	Count       int                      `json:"count"`
	RaceLength  int                      `json:"race_length"`
	Seed        int64                    `json:"seed"`
	StartGrid   []string                 `json:"start_grid,omitempty"`
	CreatedAt   time.Time                `json:"created_at"`
	Diagnostics generate.Diagnostics     `json:"diagnostics"`
	Scenarios   []map[string]interface{} `json:"scenarios"`
}

// BuildManifest assembles the manifest for one finished batch.
func BuildManifest(req generate.Request, batch *generate.Batch) Manifest {
	m := Manifest{
		Track:       req.Track,
		Count:       req.Count,
		RaceLength:  req.RaceLength,
		Seed:        req.Seed,
		StartGrid:   req.StartGrid,
		CreatedAt:   time.Now().UTC(),
		Diagnostics: batch.Diagnostics,
	}
	for _, sc := range batch.Scenarios {
		m.Scenarios = append(m.Scenarios, Flatten(sc))
	}
	return m
}

// WriteManifest writes the manifest as indented JSON.
func WriteManifest(path string, m Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads and validates a manifest file.
func ReadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, simerr.Newf(simerr.CodeArtifactNotFound, "manifest %s not found", path)
		}
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, simerr.Wrap(simerr.CodeArtifactCorrupt, "manifest "+path, err)
	}
	if m.Count < 1 || m.RaceLength < 1 {
		return Manifest{}, simerr.Newf(simerr.CodeArtifactCorrupt,
			"manifest %s carries count=%d race_length=%d", path, m.Count, m.RaceLength)
	}
	return m, nil
}

// CanonicalScenario renders one flattened scenario as canonical JSON
// bytes for comparison. encoding/json sorts map keys, so records
// compare byte for byte however they were produced.
func CanonicalScenario(rec map[string]interface{}) ([]byte, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal scenario record: %w", err)
	}
	return data, nil
}

// #endregion manifest

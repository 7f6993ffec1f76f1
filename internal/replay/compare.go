package replay

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/danielpatrickdp/race-sim/go-engine/internal/export"
	"github.com/danielpatrickdp/race-sim/go-engine/internal/scenario"
)

// #region types

// Divergence pinpoints the first field where a stored and a replayed
// scenario disagree.
type Divergence struct {
	Index    int    `json:"index"`
	Field    string `json:"field"`
	Stored   string `json:"stored"`
	Replayed string `json:"replayed"`
}

// Comparison summarizes a replay against a stored manifest. Total covers
// the overlap: a manifest cut short by its batch deadline is compared as
// far as it goes.
type Comparison struct {
	Total       int          `json:"total"`
	Matches     int          `json:"matches"`
	Divergences []Divergence `json:"divergences,omitempty"`
}

// Diverged reports whether any compared scenario failed to reproduce.
func (c Comparison) Diverged() bool {
	return len(c.Divergences) > 0
}

// #endregion types

// #region compare

// Compare flattens each replayed scenario and checks it byte for byte
// against its stored record, canonical JSON on both sides. Scenario
// content carries no ids or timestamps, so an exact rerun matches
// exactly.
func Compare(stored []map[string]interface{}, replayed []scenario.Components) (Comparison, error) {
	total := len(stored)
	if len(replayed) < total {
		total = len(replayed)
	}

	cmp := Comparison{Total: total}
	for i := 0; i < total; i++ {
		rec := export.Flatten(replayed[i])

		a, err := export.CanonicalScenario(stored[i])
		if err != nil {
			return Comparison{}, fmt.Errorf("scenario %d: stored record: %w", i, err)
		}
		b, err := export.CanonicalScenario(rec)
		if err != nil {
			return Comparison{}, fmt.Errorf("scenario %d: replayed record: %w", i, err)
		}
		if bytes.Equal(a, b) {
			cmp.Matches++
			continue
		}

		d := firstDiff(stored[i], rec)
		d.Index = i
		cmp.Divergences = append(cmp.Divergences, d)
	}
	return cmp, nil
}

// firstDiff walks the union of both field sets in sorted order and
// names the first one whose canonical value differs.
func firstDiff(stored, replayed map[string]interface{}) Divergence {
	keys := make(map[string]bool, len(stored)+len(replayed))
	for k := range stored {
		keys[k] = true
	}
	for k := range replayed {
		keys[k] = true
	}
	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	sort.Strings(names)

	for _, k := range names {
		sv, sok := stored[k]
		rv, rok := replayed[k]
		if !sok {
			return Divergence{Field: k, Stored: "(absent)", Replayed: encodeValue(rv)}
		}
		if !rok {
			return Divergence{Field: k, Stored: encodeValue(sv), Replayed: "(absent)"}
		}
		se, re := encodeValue(sv), encodeValue(rv)
		if se != re {
			return Divergence{Field: k, Stored: se, Replayed: re}
		}
	}
	return Divergence{Field: "(record)", Stored: "bytes differ", Replayed: "bytes differ"}
}

func encodeValue(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// #endregion compare

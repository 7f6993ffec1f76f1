package logging

import "time"

// #region run-entry

// RunEntry is a single row in the run_log table. It records what a fit or
// simulate invocation did, never what it produced: run ids and timestamps
// stay out of scenario content so replays stay byte-comparable.
type RunEntry struct {
	RunID           string    `json:"run_id"`
	Kind            string    `json:"kind"` // "fit" | "simulate"
	TrackID         string    `json:"track_id"`
	Seed            int64     `json:"seed"`
	Requested       int       `json:"requested"`
	Returned        int       `json:"returned"`
	Accepted        int       `json:"accepted"`
	Rejected        int       `json:"rejected"`
	ReasonsJSON     string    `json:"reasons_json,omitempty"`
	ArtifactID      string    `json:"artifact_id,omitempty"`
	OntologyVersion string    `json:"ontology_version,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// #endregion run-entry

package logging

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// #region log-run

// LogRun writes a run entry to the run_log table and returns the run id.
// A zero RunID gets a fresh uuid, a zero CreatedAt the current time.
func LogRun(db *sql.DB, entry RunEntry) (string, error) {
	if entry.RunID == "" {
		entry.RunID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO run_log (run_id, kind, track_id, seed, requested, returned, accepted, rejected, reasons_json, artifact_id, ontology_version, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.RunID,
		entry.Kind,
		entry.TrackID,
		entry.Seed,
		entry.Requested,
		entry.Returned,
		entry.Accepted,
		entry.Rejected,
		nullIfEmpty(entry.ReasonsJSON),
		nullIfEmpty(entry.ArtifactID),
		nullIfEmpty(entry.OntologyVersion),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("log run: %w", err)
	}
	return entry.RunID, nil
}

// #endregion log-run

// #region list-runs

// ListRuns returns the most recent run entries, newest first.
func ListRuns(db *sql.DB, limit int) ([]RunEntry, error) {
	if limit < 1 {
		limit = 20
	}

	rows, err := db.Query(
		`SELECT run_id, kind, track_id, seed, requested, returned, accepted, rejected, reasons_json, artifact_id, ontology_version, created_at
		 FROM run_log
		 ORDER BY created_at DESC, run_id
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var entries []RunEntry
	for rows.Next() {
		var e RunEntry
		var reasons, artifact, ontology sql.NullString
		var createdAt string
		if err := rows.Scan(
			&e.RunID, &e.Kind, &e.TrackID, &e.Seed,
			&e.Requested, &e.Returned, &e.Accepted, &e.Rejected,
			&reasons, &artifact, &ontology, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("list runs: scan: %w", err)
		}
		e.ReasonsJSON = reasons.String
		e.ArtifactID = artifact.String
		e.OntologyVersion = ontology.String
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			e.CreatedAt = t
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return entries, nil
}

// #endregion list-runs

// #region helpers

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers

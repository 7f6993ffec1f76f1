package histdata

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/race-sim/go-engine/internal/simerr"
)

// #region schema

// HistoryColumns is the canonical column order for race history rows,
// one column per causal model variable. Categorical columns store the
// level index, booleans 0 or 1.
var HistoryColumns = []string{
	"skill", "aggression", "shadow_risk",
	"n_cautions", "pit_strategy", "fuel_window_risk", "late_race_chaos",
	"incident_propensity", "incidents", "dnf_flag",
	"laps_led_share", "fastest_share", "finish_propensity",
}

const schema = `
CREATE TABLE IF NOT EXISTS race_history (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	track_id            TEXT NOT NULL,
	race_id             TEXT NOT NULL,
	driver_id           TEXT NOT NULL,
	skill               REAL NOT NULL,
	aggression          REAL NOT NULL,
	shadow_risk         REAL NOT NULL,
	n_cautions          REAL NOT NULL,
	pit_strategy        REAL NOT NULL,
	fuel_window_risk    REAL NOT NULL,
	late_race_chaos     REAL NOT NULL,
	incident_propensity REAL NOT NULL,
	incidents           REAL NOT NULL,
	dnf_flag            REAL NOT NULL,
	laps_led_share      REAL NOT NULL,
	fastest_share       REAL NOT NULL,
	finish_propensity   REAL NOT NULL,
	created_at          TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_race_history_track
	ON race_history(track_id, race_id, driver_id);

CREATE TABLE IF NOT EXISTS model_artifacts (
	artifact_id  TEXT PRIMARY KEY,
	track_id     TEXT NOT NULL,
	payload      BLOB NOT NULL,
	report_json  TEXT,
	created_at   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_model_artifacts_track
	ON model_artifacts(track_id, created_at);

CREATE TABLE IF NOT EXISTS run_log (
	run_id             TEXT PRIMARY KEY,
	kind               TEXT NOT NULL,
	track_id           TEXT NOT NULL,
	seed               INTEGER NOT NULL,
	requested          INTEGER NOT NULL,
	returned           INTEGER NOT NULL,
	accepted           INTEGER NOT NULL,
	rejected           INTEGER NOT NULL,
	reasons_json       TEXT,
	artifact_id        TEXT,
	ontology_version   TEXT,
	created_at         TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_run_log_track
	ON run_log(track_id, created_at);
`

// #endregion schema

// #region store

// Row is one driver's outcome in one historical race. Values align with
// HistoryColumns.
type Row struct {
	TrackID  string
	RaceID   string
	DriverID string
	Values   []float64
}

// TrackStats summarizes the stored history for one track.
type TrackStats struct {
	TrackID string `json:"track_id"`
	Races   int    `json:"races"`
	Rows    int    `json:"rows"`
}

// ArtifactRecord is a persisted fitted-model payload.
type ArtifactRecord struct {
	ArtifactID string
	TrackID    string
	Payload    []byte
	ReportJSON string
	CreatedAt  time.Time
}

// Store persists race history and fitted-model artifacts in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens a SQLite database and runs migrations.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. the
// run log).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion store

// #region import

// ImportRows appends history rows in one transaction.
func (s *Store) ImportRows(rows []Row) error {
	for i, r := range rows {
		if len(r.Values) != len(HistoryColumns) {
			return simerr.Newf(simerr.CodeInvariantViolation,
				"row %d carries %d values, schema has %d columns", i, len(r.Values), len(HistoryColumns))
		}
		if r.TrackID == "" || r.RaceID == "" || r.DriverID == "" {
			return simerr.Newf(simerr.CodeInvariantViolation, "row %d is missing identifiers", i)
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO race_history (
		track_id, race_id, driver_id,
		skill, aggression, shadow_risk,
		n_cautions, pit_strategy, fuel_window_risk, late_race_chaos,
		incident_propensity, incidents, dnf_flag,
		laps_led_share, fastest_share, finish_propensity,
		created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, r := range rows {
		args := make([]interface{}, 0, len(HistoryColumns)+4)
		args = append(args, r.TrackID, r.RaceID, r.DriverID)
		for _, v := range r.Values {
			args = append(args, v)
		}
		args = append(args, now)
		if _, err := stmt.Exec(args...); err != nil {
			return fmt.Errorf("insert row: %w", err)
		}
	}
	return tx.Commit()
}

// #endregion import

// #region load

// LoadDataset reads one track's history into the in-memory tabular form
// the offline fit consumes. Rows come back in (race_id, driver_id)
// order, so repeated loads are identical. An unknown track yields an
// empty dataset; the fit degrades on its own terms.
func (s *Store) LoadDataset(trackID string) (Dataset, error) {
	query := `SELECT
		skill, aggression, shadow_risk,
		n_cautions, pit_strategy, fuel_window_risk, late_race_chaos,
		incident_propensity, incidents, dnf_flag,
		laps_led_share, fastest_share, finish_propensity
	FROM race_history WHERE track_id = ? ORDER BY race_id, driver_id, id`

	rows, err := s.db.Query(query, trackID)
	if err != nil {
		return Dataset{}, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	ds := Dataset{Columns: append([]string(nil), HistoryColumns...)}
	for rows.Next() {
		vals := make([]float64, len(HistoryColumns))
		ptrs := make([]interface{}, len(vals))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Dataset{}, fmt.Errorf("scan row: %w", err)
		}
		ds.Rows = append(ds.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return Dataset{}, fmt.Errorf("iterate history: %w", err)
	}
	return ds, nil
}

// Tracks summarizes the stored history per track.
func (s *Store) Tracks() ([]TrackStats, error) {
	rows, err := s.db.Query(`SELECT track_id, COUNT(DISTINCT race_id), COUNT(*)
		FROM race_history GROUP BY track_id ORDER BY track_id`)
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	defer rows.Close()

	var stats []TrackStats
	for rows.Next() {
		var ts TrackStats
		if err := rows.Scan(&ts.TrackID, &ts.Races, &ts.Rows); err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		stats = append(stats, ts)
	}
	return stats, rows.Err()
}

// #endregion load

// #region artifacts

// SaveArtifact persists a fitted-model payload and returns its record.
func (s *Store) SaveArtifact(trackID string, payload []byte, reportJSON string) (ArtifactRecord, error) {
	if len(payload) == 0 {
		return ArtifactRecord{}, simerr.New(simerr.CodeInvariantViolation, "empty artifact payload")
	}
	rec := ArtifactRecord{
		ArtifactID: uuid.New().String(),
		TrackID:    trackID,
		Payload:    payload,
		ReportJSON: reportJSON,
		CreatedAt:  time.Now().UTC(),
	}

	var reportPtr interface{}
	if rec.ReportJSON != "" {
		reportPtr = rec.ReportJSON
	}
	_, err := s.db.Exec(
		`INSERT INTO model_artifacts (artifact_id, track_id, payload, report_json, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		rec.ArtifactID, rec.TrackID, rec.Payload, reportPtr,
		rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return ArtifactRecord{}, fmt.Errorf("insert artifact: %w", err)
	}
	return rec, nil
}

// LoadArtifact retrieves a specific artifact by ID.
func (s *Store) LoadArtifact(artifactID string) (ArtifactRecord, error) {
	row := s.db.QueryRow(
		`SELECT artifact_id, track_id, payload, report_json, created_at
		 FROM model_artifacts WHERE artifact_id = ?`, artifactID)
	return scanArtifact(row, artifactID)
}

// LatestArtifact retrieves the newest artifact for a track.
func (s *Store) LatestArtifact(trackID string) (ArtifactRecord, error) {
	row := s.db.QueryRow(
		`SELECT artifact_id, track_id, payload, report_json, created_at
		 FROM model_artifacts WHERE track_id = ?
		 ORDER BY created_at DESC, artifact_id LIMIT 1`, trackID)
	return scanArtifact(row, trackID)
}

// ListArtifacts returns artifact metadata, newest first, without the
// payloads. An empty trackID lists every track.
func (s *Store) ListArtifacts(trackID string, limit int) ([]ArtifactRecord, error) {
	if limit < 1 {
		limit = 20
	}
	query := `SELECT artifact_id, track_id, report_json, created_at
		 FROM model_artifacts`
	args := []interface{}{}
	if trackID != "" {
		query += ` WHERE track_id = ?`
		args = append(args, trackID)
	}
	query += ` ORDER BY created_at DESC, artifact_id LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var recs []ArtifactRecord
	for rows.Next() {
		var rec ArtifactRecord
		var reportJSON sql.NullString
		var createdStr string
		if err := rows.Scan(&rec.ArtifactID, &rec.TrackID, &reportJSON, &createdStr); err != nil {
			return nil, fmt.Errorf("list artifacts: scan: %w", err)
		}
		if reportJSON.Valid {
			rec.ReportJSON = reportJSON.String
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	return recs, nil
}

func scanArtifact(row *sql.Row, key string) (ArtifactRecord, error) {
	var rec ArtifactRecord
	var reportJSON sql.NullString
	var createdStr string

	err := row.Scan(&rec.ArtifactID, &rec.TrackID, &rec.Payload, &reportJSON, &createdStr)
	if err == sql.ErrNoRows {
		return ArtifactRecord{}, simerr.Newf(simerr.CodeArtifactNotFound, "no model artifact for %s", key)
	}
	if err != nil {
		return ArtifactRecord{}, fmt.Errorf("load artifact: %w", err)
	}
	if reportJSON.Valid {
		rec.ReportJSON = reportJSON.String
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return rec, nil
}

// #endregion artifacts

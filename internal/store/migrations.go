package store

import (
	"fmt"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "tag_counters and intent_boosts: decaying interest state",
		SQL: `
CREATE TABLE tag_counters (
    path       TEXT PRIMARY KEY,
    d1         REAL NOT NULL DEFAULT 0 CHECK (d1 >= 0),
    d1_at      INTEGER NOT NULL DEFAULT 0,
    d7         REAL NOT NULL DEFAULT 0 CHECK (d7 >= 0),
    d7_at      INTEGER NOT NULL DEFAULT 0,
    d30        REAL NOT NULL DEFAULT 0 CHECK (d30 >= 0),
    d30_at     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE intent_boosts (
    area       TEXT PRIMARY KEY,
    value      REAL NOT NULL CHECK (value >= 1.0),
    updated_at INTEGER NOT NULL
);
`,
	},
	{
		Version:     2,
		Description: "session_records: rolling per-session scores",
		SQL: `
CREATE TABLE session_records (
    session_id   TEXT PRIMARY KEY,
    tags         TEXT NOT NULL DEFAULT '[]',
    intent_label TEXT NOT NULL,
    intent_boost REAL NOT NULL DEFAULT 1.0,
    behavioral   REAL NOT NULL DEFAULT 0,
    pta          REAL NOT NULL DEFAULT 0,
    observed_at  INTEGER NOT NULL
);

CREATE INDEX idx_session_records_observed ON session_records(observed_at DESC);
`,
	},
	{
		Version:     3,
		Description: "exports and observation_log: audit trail without raw interests",
		SQL: `
CREATE TABLE exports (
    id          TEXT PRIMARY KEY,
    view        TEXT NOT NULL CHECK (view IN ('profile', 'matching')),
    commitment  TEXT NOT NULL,
    pta         REAL NOT NULL,
    interests   INTEGER NOT NULL DEFAULT 0,
    geo_bucket  TEXT,
    created_at  INTEGER NOT NULL
);

CREATE INDEX idx_exports_created ON exports(created_at DESC);

CREATE TABLE observation_log (
    id           TEXT PRIMARY KEY,
    session_id   TEXT NOT NULL,
    host         TEXT,
    intent_label TEXT NOT NULL,
    tags         INTEGER NOT NULL DEFAULT 0,
    pta          REAL NOT NULL,
    created_at   INTEGER NOT NULL
);

CREATE INDEX idx_obslog_session ON observation_log(session_id);
CREATE INDEX idx_obslog_created ON observation_log(created_at DESC);
`,
	},
}

func (db *DB) migrate() error {
	// Create schema_versions table if it doesn't exist
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_versions (
			version     INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at  INTEGER NOT NULL DEFAULT (strftime('%s', 'now') * 1000)
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM schema_versions WHERE version = ?", m.Version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.Version, err)
		}
		if count > 0 {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_versions (version, description) VALUES (?, ?)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the current schema version.
func (db *DB) SchemaVersion() (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_versions").Scan(&version)
	return version, err
}

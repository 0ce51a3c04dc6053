package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Export is the audit row of one profile or matching export.
type Export struct {
	ID         string  `json:"id"`
	View       string  `json:"view"`
	Commitment string  `json:"commitment"`
	PtA        float64 `json:"ptaScore"`
	Interests  int     `json:"interests"`
	GeoBucket  string  `json:"geoBucket,omitempty"`
	CreatedAt  int64   `json:"createdAt"`
}

// RecordExport stores the commitment and summary of an export.
func (db *DB) RecordExport(view, commitment string, pta float64, interests int, geoBucket string, at time.Time) error {
	_, err := db.Exec(`
		INSERT INTO exports (id, view, commitment, pta, interests, geo_bucket, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), view, commitment, pta, interests, geoBucket, at.UnixMilli())
	if err != nil {
		return fmt.Errorf("record export: %w", err)
	}
	return nil
}

// RecentExports returns the newest exports, newest first.
func (db *DB) RecentExports(limit int) ([]Export, error) {
	rows, err := db.Query(`
		SELECT id, view, commitment, pta, interests, COALESCE(geo_bucket, ''), created_at
		FROM exports ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent exports: %w", err)
	}
	defer rows.Close()

	var out []Export
	for rows.Next() {
		var e Export
		if err := rows.Scan(&e.ID, &e.View, &e.Commitment, &e.PtA, &e.Interests, &e.GeoBucket, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan export: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetExportByCommitment looks up an export by its commitment digest.
// Returns nil, nil if none matches.
func (db *DB) GetExportByCommitment(commitment string) (*Export, error) {
	var e Export
	err := db.QueryRow(`
		SELECT id, view, commitment, pta, interests, COALESCE(geo_bucket, ''), created_at
		FROM exports WHERE commitment = ? ORDER BY created_at DESC LIMIT 1
	`, commitment).Scan(&e.ID, &e.View, &e.Commitment, &e.PtA, &e.Interests, &e.GeoBucket, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get export: %w", err)
	}
	return &e, nil
}

package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// maxHostSize bounds the host column.
const maxHostSize = 255

// ObservationLog is the audit row written per processed observation. It
// carries the host and intent label but never page content or tag paths.
type ObservationLog struct {
	ID          string  `json:"id"`
	SessionID   string  `json:"sessionId"`
	Host        string  `json:"host"`
	IntentLabel string  `json:"intentLabel"`
	Tags        int     `json:"tags"`
	PtA         float64 `json:"ptaScore"`
	CreatedAt   int64   `json:"createdAt"`
}

// LogObservation records a processed observation.
func (db *DB) LogObservation(sessionID, host, intent string, tags int, pta float64, at time.Time) error {
	if len(host) > maxHostSize {
		host = host[:maxHostSize]
	}
	_, err := db.Exec(`
		INSERT INTO observation_log (id, session_id, host, intent_label, tags, pta, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), sessionID, host, intent, tags, pta, at.UnixMilli())
	if err != nil {
		return fmt.Errorf("log observation: %w", err)
	}
	return nil
}

// GetObservations returns up to limit logged observations of a session,
// oldest first. limit <= 0 returns all of them.
func (db *DB) GetObservations(sessionID string, limit int) ([]ObservationLog, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(`
		SELECT id, session_id, COALESCE(host, ''), intent_label, tags, pta, created_at
		FROM observation_log WHERE session_id = ? ORDER BY created_at, rowid LIMIT ?
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("get observations: %w", err)
	}
	defer rows.Close()
	return scanObservations(rows)
}

// GetRecentObservations returns the most recent observations across all sessions.
func (db *DB) GetRecentObservations(limit int) ([]ObservationLog, error) {
	rows, err := db.Query(`
		SELECT id, session_id, COALESCE(host, ''), intent_label, tags, pta, created_at
		FROM observation_log ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent observations: %w", err)
	}
	defer rows.Close()
	return scanObservations(rows)
}

func scanObservations(rows *sql.Rows) ([]ObservationLog, error) {
	var obs []ObservationLog
	for rows.Next() {
		var o ObservationLog
		if err := rows.Scan(&o.ID, &o.SessionID, &o.Host, &o.IntentLabel, &o.Tags, &o.PtA, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		obs = append(obs, o)
	}
	return obs, rows.Err()
}

// GetSessionObservationCount returns the number of observations for a session.
func (db *DB) GetSessionObservationCount(sessionID string) (int, error) {
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM observation_log WHERE session_id = ?
	`, sessionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count observations: %w", err)
	}
	return count, nil
}

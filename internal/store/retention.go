package store

import (
	"fmt"
	"time"
)

// PruneAudit deletes observation log and export rows created before cutoff
// and returns how many rows went.
func (db *DB) PruneAudit(cutoff time.Time) (int64, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin prune: %w", err)
	}
	defer tx.Rollback()

	var total int64
	for _, table := range []string{"observation_log", "exports"} {
		res, err := tx.Exec("DELETE FROM "+table+" WHERE created_at < ?", cutoff.UnixMilli())
		if err != nil {
			return 0, fmt.Errorf("prune %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("prune %s: %w", table, err)
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit prune: %w", err)
	}
	return total, nil
}

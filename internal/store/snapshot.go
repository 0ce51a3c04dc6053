package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/lazypower/pulse/internal/counter"
	"github.com/lazypower/pulse/internal/session"
	"github.com/lazypower/pulse/internal/signal"
)

// SaveSnapshot replaces the stored counters, boosts and session records.
func (db *DB) SaveSnapshot(snap counter.Snapshot, sessions []session.Entry) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"tag_counters", "intent_boosts", "session_records"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, c := range snap.Tags {
		w := c.Windows
		_, err := tx.Exec(`
			INSERT INTO tag_counters (path, d1, d1_at, d7, d7_at, d30, d30_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, c.Path,
			w[counter.Short].Count, millis(w[counter.Short].LastUpdate),
			w[counter.Medium].Count, millis(w[counter.Medium].LastUpdate),
			w[counter.Long].Count, millis(w[counter.Long].LastUpdate))
		if err != nil {
			return fmt.Errorf("save counter %s: %w", c.Path, err)
		}
	}

	for _, b := range snap.Boosts {
		_, err := tx.Exec(`
			INSERT INTO intent_boosts (area, value, updated_at) VALUES (?, ?, ?)
		`, b.Area, b.Value, millis(b.LastUpdate))
		if err != nil {
			return fmt.Errorf("save boost %s: %w", b.Area, err)
		}
	}

	for _, e := range sessions {
		tags, err := json.Marshal(e.Tags)
		if err != nil {
			return fmt.Errorf("encode session tags: %w", err)
		}
		_, err = tx.Exec(`
			INSERT INTO session_records (session_id, tags, intent_label, intent_boost, behavioral, pta, observed_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, e.SessionID, string(tags), e.IntentLevel.Type, e.IntentLevel.Boost,
			e.BehavioralScore, e.PtA, millis(e.Timestamp))
		if err != nil {
			return fmt.Errorf("save session %s: %w", e.SessionID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads back the state written by SaveSnapshot.
func (db *DB) LoadSnapshot() (counter.Snapshot, []session.Entry, error) {
	var snap counter.Snapshot
	var err error
	if snap.Tags, err = db.loadCounters(); err != nil {
		return snap, nil, err
	}
	if snap.Boosts, err = db.loadBoosts(); err != nil {
		return snap, nil, err
	}
	entries, err := db.loadSessions()
	if err != nil {
		return snap, nil, err
	}
	return snap, entries, nil
}

func (db *DB) loadCounters() ([]counter.TagCounter, error) {
	rows, err := db.Query(`
		SELECT path, d1, d1_at, d7, d7_at, d30, d30_at FROM tag_counters ORDER BY path
	`)
	if err != nil {
		return nil, fmt.Errorf("load counters: %w", err)
	}
	defer rows.Close()

	var out []counter.TagCounter
	for rows.Next() {
		var c counter.TagCounter
		var at [3]int64
		if err := rows.Scan(&c.Path,
			&c.Windows[counter.Short].Count, &at[0],
			&c.Windows[counter.Medium].Count, &at[1],
			&c.Windows[counter.Long].Count, &at[2]); err != nil {
			return nil, fmt.Errorf("scan counter: %w", err)
		}
		for i := range at {
			c.Windows[i].LastUpdate = fromMillis(at[i])
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (db *DB) loadBoosts() ([]counter.BoostState, error) {
	rows, err := db.Query(`SELECT area, value, updated_at FROM intent_boosts ORDER BY area`)
	if err != nil {
		return nil, fmt.Errorf("load boosts: %w", err)
	}
	defer rows.Close()

	var out []counter.BoostState
	for rows.Next() {
		var b counter.BoostState
		var at int64
		if err := rows.Scan(&b.Area, &b.Value, &at); err != nil {
			return nil, fmt.Errorf("scan boost: %w", err)
		}
		b.LastUpdate = fromMillis(at)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (db *DB) loadSessions() ([]session.Entry, error) {
	rows, err := db.Query(`
		SELECT session_id, tags, intent_label, intent_boost, behavioral, pta, observed_at
		FROM session_records ORDER BY observed_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	defer rows.Close()

	var out []session.Entry
	for rows.Next() {
		var e session.Entry
		var tags string
		var at int64
		if err := rows.Scan(&e.SessionID, &tags, &e.IntentLevel.Type, &e.IntentLevel.Boost,
			&e.BehavioralScore, &e.PtA, &at); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		if err := json.Unmarshal([]byte(tags), &e.Tags); err != nil {
			return nil, fmt.Errorf("decode session tags: %w", err)
		}
		if e.IntentLevel.Type == "" {
			e.IntentLevel = signal.NeutralIntent()
		}
		e.Timestamp = fromMillis(at)
		out = append(out, e)
	}
	return out, rows.Err()
}

func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

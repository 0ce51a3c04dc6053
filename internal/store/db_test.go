package store

import (
	"path/filepath"
	"testing"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenMemory(t *testing.T) {
	db := testDB(t)
	if db.Path != ":memory:" {
		t.Errorf("Path = %q, want :memory:", db.Path)
	}
}

func TestSchemaVersion(t *testing.T) {
	db := testDB(t)

	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if v != len(migrations) {
		t.Errorf("SchemaVersion = %d, want %d", v, len(migrations))
	}
}

func TestTablesExist(t *testing.T) {
	db := testDB(t)

	tables := []string{"schema_versions", "tag_counters", "intent_boosts", "session_records", "exports", "observation_log"}
	for _, table := range tables {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestConstraints(t *testing.T) {
	db := testDB(t)

	if _, err := db.Exec(`INSERT INTO tag_counters (path, d1) VALUES ('a/b/c', -1)`); err == nil {
		t.Error("expected check failure for negative count")
	}
	if _, err := db.Exec(`INSERT INTO intent_boosts (area, value, updated_at) VALUES ('a/b', 0.5, 0)`); err == nil {
		t.Error("expected check failure for boost below 1")
	}
	if _, err := db.Exec(`INSERT INTO exports (id, view, commitment, pta, created_at) VALUES ('x', 'debug', 'c', 0, 0)`); err == nil {
		t.Error("expected check failure for debug view export")
	}
}

func TestOpenFileReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pulse.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := db.LogObservation("s1", "shop.example.com", "cart_activity", 1, 0.6, fixedTime); err != nil {
		t.Fatalf("LogObservation: %v", err)
	}
	db.Close()

	// migrations are idempotent across reopen
	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	n, err := db.GetSessionObservationCount("s1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

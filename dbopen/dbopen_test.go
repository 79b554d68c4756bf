package dbopen_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/lexforge/scrivener/dbopen"
)

const eventsSchema = `CREATE TABLE events (id TEXT PRIMARY KEY, operation TEXT);`

func TestOpen_DefaultPragmas(t *testing.T) {
	db := dbopen.OpenMemory(t)

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatal(err)
	}
	// :memory: may report "memory" instead of "wal", but the PRAGMA
	// was still executed successfully.
	if journalMode != "wal" && journalMode != "memory" {
		t.Fatalf("journal_mode = %q, want wal or memory", journalMode)
	}

	intPragmas := []struct {
		pragma string
		want   int
	}{
		{"foreign_keys", 1},
		{"synchronous", 1}, // NORMAL
		{"busy_timeout", 10_000},
	}
	for _, p := range intPragmas {
		var got int
		if err := db.QueryRow("PRAGMA " + p.pragma).Scan(&got); err != nil {
			t.Fatal(err)
		}
		if got != p.want {
			t.Errorf("%s = %d, want %d", p.pragma, got, p.want)
		}
	}
}

func TestOpen_Overrides(t *testing.T) {
	db := dbopen.OpenMemory(t,
		dbopen.WithBusyTimeout(5000),
		dbopen.WithoutForeignKeys(),
		dbopen.WithCacheSize(-64000),
		dbopen.WithSynchronous("FULL"))

	overrides := []struct {
		pragma string
		want   int
	}{
		{"busy_timeout", 5000},
		{"foreign_keys", 0},
		{"cache_size", -64000},
		{"synchronous", 2}, // FULL
	}
	for _, p := range overrides {
		var got int
		if err := db.QueryRow("PRAGMA " + p.pragma).Scan(&got); err != nil {
			t.Fatal(err)
		}
		if got != p.want {
			t.Errorf("%s = %d, want %d", p.pragma, got, p.want)
		}
	}
}

func TestWithSchema(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(eventsSchema))

	if _, err := db.Exec(`INSERT INTO events (id, operation) VALUES ('evt_1', 'extract')`); err != nil {
		t.Fatalf("insert into schema-created table: %v", err)
	}

	var op string
	if err := db.QueryRow(`SELECT operation FROM events WHERE id = 'evt_1'`).Scan(&op); err != nil {
		t.Fatal(err)
	}
	if op != "extract" {
		t.Fatalf("operation = %q, want extract", op)
	}
}

func TestWithSchemaFile(t *testing.T) {
	schemaPath := filepath.Join(t.TempDir(), "schema.sql")
	if err := os.WriteFile(schemaPath, []byte(eventsSchema), 0o644); err != nil {
		t.Fatal(err)
	}

	db := dbopen.OpenMemory(t, dbopen.WithSchemaFile(schemaPath))

	if _, err := db.Exec(`INSERT INTO events (id, operation) VALUES ('evt_1', 'thumbnail')`); err != nil {
		t.Fatalf("insert into schema-file table: %v", err)
	}
}

func TestWithMkdirAll(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "var", "obs", "observability.db")

	db, err := dbopen.Open(dbPath, dbopen.WithMkdirAll())
	if err != nil {
		t.Fatalf("open with mkdirall: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(filepath.Dir(dbPath)); err != nil {
		t.Fatalf("directory not created: %v", err)
	}
}

func TestIsBusy(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("no such table: events"), false},
		{errors.New("SQLITE_BUSY"), true},
		{errors.New("database is locked"), true},
		{errors.New("database table is locked"), true},
		{errors.New("exec: SQLITE_BUSY (5)"), true},
	}
	for _, tt := range tests {
		if got := dbopen.IsBusy(tt.err); got != tt.want {
			t.Errorf("IsBusy(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestRunTx_Commit(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(eventsSchema))
	ctx := context.Background()

	err := dbopen.RunTx(ctx, db, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO events (id, operation) VALUES ('evt_1', 'extract')`)
		return err
	})
	if err != nil {
		t.Fatalf("RunTx: %v", err)
	}

	var op string
	if err := db.QueryRow(`SELECT operation FROM events WHERE id = 'evt_1'`).Scan(&op); err != nil {
		t.Fatal(err)
	}
	if op != "extract" {
		t.Fatalf("operation = %q, want extract", op)
	}
}

func TestRunTx_Rollback(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(eventsSchema))

	sentinel := errors.New("rollback me")
	err := dbopen.RunTx(context.Background(), db, func(tx *sql.Tx) error {
		tx.Exec(`INSERT INTO events (id, operation) VALUES ('evt_1', 'extract')`)
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("RunTx error = %v, want sentinel", err)
	}

	var count int
	db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&count)
	if count != 0 {
		t.Fatalf("count = %d, want 0 after rollback", count)
	}
}

func TestExec(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(eventsSchema))

	if _, err := dbopen.Exec(context.Background(), db, `INSERT INTO events (id, operation) VALUES (?, ?)`, "evt_1", "audio_mp3"); err != nil {
		t.Fatalf("Exec: %v", err)
	}

	var count int
	db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&count)
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestRunTx_ContextCancelled(t *testing.T) {
	db := dbopen.OpenMemory(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := dbopen.RunTx(ctx, db, func(tx *sql.Tx) error { return nil })
	if err == nil {
		t.Fatal("expected error on cancelled context")
	}
}

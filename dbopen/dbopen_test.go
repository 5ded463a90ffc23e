package dbopen_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hazyhaar/reviewbuddy/dbopen"
)

const eventsSchema = `CREATE TABLE events (id TEXT PRIMARY KEY, kind TEXT NOT NULL)`

func TestOpen(t *testing.T) {
	db := dbopen.OpenMemory(t)

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatal(err)
	}
	// :memory: reports "memory" even though the pragma ran.
	if journalMode != "wal" && journalMode != "memory" {
		t.Fatalf("journal_mode = %q, want wal or memory", journalMode)
	}

	var sync int
	if err := db.QueryRow("PRAGMA synchronous").Scan(&sync); err != nil {
		t.Fatal(err)
	}
	if sync != 1 {
		t.Fatalf("synchronous = %d, want 1 (NORMAL)", sync)
	}

	var busyTimeout int
	if err := db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout); err != nil {
		t.Fatal(err)
	}
	if busyTimeout != 10_000 {
		t.Fatalf("busy_timeout = %d, want 10000", busyTimeout)
	}
}

func TestWithBusyTimeoutAndSynchronous(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithBusyTimeout(5000), dbopen.WithSynchronous("FULL"))

	var bt, sync int
	if err := db.QueryRow("PRAGMA busy_timeout").Scan(&bt); err != nil {
		t.Fatal(err)
	}
	if err := db.QueryRow("PRAGMA synchronous").Scan(&sync); err != nil {
		t.Fatal(err)
	}
	if bt != 5000 || sync != 2 {
		t.Fatalf("busy_timeout = %d, synchronous = %d; want 5000, 2", bt, sync)
	}
}

func TestWithSchema(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(eventsSchema))

	if _, err := db.Exec(`INSERT INTO events (id, kind) VALUES ('evt_1', 'place_changed')`); err != nil {
		t.Fatalf("insert into schema-created table: %v", err)
	}
	var kind string
	if err := db.QueryRow(`SELECT kind FROM events WHERE id = 'evt_1'`).Scan(&kind); err != nil {
		t.Fatal(err)
	}
	if kind != "place_changed" {
		t.Fatalf("kind = %q", kind)
	}
}

func TestBadSchemaFails(t *testing.T) {
	if _, err := dbopen.Open(":memory:", dbopen.WithSchema("CREATE NONSENSE")); err == nil {
		t.Fatal("expected schema error")
	}
}

func TestWithMkdirAll(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "state", "journal.db")

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
		{errors.New("some other error"), false},
		{errors.New("SQLITE_BUSY"), true},
		{errors.New("database is locked"), true},
		{errors.New("database table is locked"), true},
		{errors.New("prefix: SQLITE_BUSY (5)"), true},
	}
	for _, tt := range tests {
		if got := dbopen.IsBusy(tt.err); got != tt.want {
			t.Errorf("IsBusy(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestRunTx(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(eventsSchema))

	err := dbopen.RunTx(context.Background(), db, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO events (id, kind) VALUES ('1', 'score_resolved')`)
		return err
	})
	if err != nil {
		t.Fatalf("RunTx: %v", err)
	}
	var count int
	db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&count)
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestRunTxRollback(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(eventsSchema))

	sentinel := errors.New("rollback me")
	err := dbopen.RunTx(context.Background(), db, func(tx *sql.Tx) error {
		tx.Exec(`INSERT INTO events (id, kind) VALUES ('1', 'x')`)
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

func TestRunTxRetriesBusy(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(eventsSchema))

	calls := 0
	err := dbopen.RunTx(context.Background(), db, func(tx *sql.Tx) error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		_, err := tx.Exec(`INSERT INTO events (id, kind) VALUES ('1', 'x')`)
		return err
	})
	if err != nil {
		t.Fatalf("RunTx: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestRunTxNoRetryOnOtherErrors(t *testing.T) {
	db := dbopen.OpenMemory(t)

	calls := 0
	err := dbopen.RunTx(context.Background(), db, func(tx *sql.Tx) error {
		calls++
		return errors.New("constraint failed")
	})
	if err == nil || calls != 1 {
		t.Fatalf("err = %v, calls = %d; want error after 1 call", err, calls)
	}
}

func TestExec(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(eventsSchema))

	if _, err := dbopen.Exec(context.Background(), db, `INSERT INTO events (id, kind) VALUES (?, ?)`, "1", "x"); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	var count int
	db.QueryRow(`SELECT COUNT(*) FROM events`).Scan(&count)
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}
}

func TestRunTxContextCancelled(t *testing.T) {
	db := dbopen.OpenMemory(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := dbopen.RunTx(ctx, db, func(tx *sql.Tx) error { return nil }); err == nil {
		t.Fatal("expected error on cancelled context")
	}
}

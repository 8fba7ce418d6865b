package database

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestParseDialect(t *testing.T) {
	tests := []struct {
		in      string
		want    Dialect
		wantErr bool
	}{
		{"", SQLite, false},
		{"sqlite", SQLite, false},
		{"SQLite3", SQLite, false},
		{"postgres", Postgres, false},
		{" pgx ", Postgres, false},
		{"mysql", "", true},
	}
	for _, tt := range tests {
		got, err := ParseDialect(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDialect(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDialect(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRebind(t *testing.T) {
	tests := []struct {
		dialect Dialect
		in      string
		want    string
	}{
		{SQLite, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = ? AND b = ?"},
		{Postgres, "SELECT * FROM t WHERE a = ? AND b = ?", "SELECT * FROM t WHERE a = $1 AND b = $2"},
		{Postgres, "SELECT 1", "SELECT 1"},
		{Postgres, "SELECT '?' FROM t WHERE a = ?", "SELECT '?' FROM t WHERE a = $1"},
		{Postgres, `WHERE LOWER(name) LIKE ? ESCAPE '\' AND id = ?`, `WHERE LOWER(name) LIKE $1 ESCAPE '\' AND id = $2`},
	}
	for _, tt := range tests {
		if got := Rebind(tt.dialect, tt.in); got != tt.want {
			t.Errorf("Rebind(%s, %q) = %q, want %q", tt.dialect, tt.in, got, tt.want)
		}
	}
}

func TestLockClause(t *testing.T) {
	if got := SQLite.LockClause(); got != "" {
		t.Errorf("sqlite lock clause = %q", got)
	}
	if got := Postgres.LockClause(); got != " FOR UPDATE" {
		t.Errorf("postgres lock clause = %q", got)
	}
}

func TestOpenMemoryRunsMigrations(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if db.Dialect != SQLite {
		t.Errorf("dialect = %q", db.Dialect)
	}
	for _, table := range []string{"glossary_items", "custom_categories", "shopping_lists", "shopping_list_items", "tickets", "ticket_history", "receipt_history"} {
		var n int
		if err := db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
			t.Errorf("table %s: %v", table, err)
		}
	}

	var fk int
	if err := db.QueryRow(`PRAGMA foreign_keys`).Scan(&fk); err != nil {
		t.Fatalf("pragma: %v", err)
	}
	if fk != 1 {
		t.Error("foreign keys not enabled")
	}
}

func TestTxRebindsWithDialect(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()

	if tx.Dialect() != SQLite {
		t.Errorf("tx dialect = %q", tx.Dialect())
	}
	if _, err := tx.Exec(`INSERT INTO custom_categories (name) VALUES (?)`, "snacks"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	var name string
	if err := tx.QueryRow(`SELECT name FROM custom_categories WHERE name = ?`, "snacks").Scan(&name); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestSQLiteDSN(t *testing.T) {
	mem := sqliteDSN(":memory:")
	if !strings.Contains(mem, "_txlock=immediate") || !strings.Contains(mem, "foreign_keys(1)") {
		t.Errorf("memory dsn = %q", mem)
	}
	if strings.Contains(mem, "journal_mode") {
		t.Errorf("memory dsn sets journal mode: %q", mem)
	}
	if file := sqliteDSN("splitcart.db"); !strings.Contains(file, "journal_mode(WAL)") {
		t.Errorf("file dsn = %q", file)
	}
}

func TestFileTxReadThenWriteSerializes(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "splitcart.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE counter (n INTEGER NOT NULL)`); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO counter (n) VALUES (0)`); err != nil {
		t.Fatalf("seed: %v", err)
	}

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := context.Background()
			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				errs <- err
				return
			}
			defer tx.Rollback()
			var n int
			if err := tx.QueryRowContext(ctx, `SELECT n FROM counter`).Scan(&n); err != nil {
				errs <- err
				return
			}
			if _, err := tx.ExecContext(ctx, `UPDATE counter SET n = ?`, n+1); err != nil {
				errs <- err
				return
			}
			errs <- tx.Commit()
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("worker: %v", err)
		}
	}
	var n int
	if err := db.QueryRow(`SELECT n FROM counter`).Scan(&n); err != nil {
		t.Fatalf("read: %v", err)
	}
	if n != workers {
		t.Errorf("counter = %d, want %d", n, workers)
	}
}

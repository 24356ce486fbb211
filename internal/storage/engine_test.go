package storage_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/HendryAvila/sidenote/internal/errs"
	"github.com/HendryAvila/sidenote/internal/obs"
	"github.com/HendryAvila/sidenote/internal/storage"

	_ "modernc.org/sqlite"
)

// newTestEngine creates an Engine backed by a temp directory for isolation.
func newTestEngine(t *testing.T) *storage.Engine {
	t.Helper()
	e, err := storage.Open(storage.Config{
		Path:   filepath.Join(t.TempDir(), "notes.db"),
		Logger: obs.Discard(),
	})
	if err != nil {
		t.Fatalf("failed to open engine: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

// ─── Open / Initialization ──────────────────────────────────────────────────

func TestOpen_CreatesDBFileAndDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "notes.db")
	e, err := storage.Open(storage.Config{Path: path, Logger: obs.Discard()})
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer e.Close()

	if _, err := os.Stat(path); err != nil {
		t.Errorf("database file missing: %v", err)
	}
	if e.Path() != path {
		t.Errorf("Path() = %q, want %q", e.Path(), path)
	}
}

func TestOpen_PragmasApplied(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	var mode string
	if err := e.DB().QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatal(err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want %q", mode, "wal")
	}

	var fk int
	if err := e.DB().QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatal(err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}
}

func TestOpen_IdempotentReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.db")
	ctx := context.Background()

	e1, err := storage.Open(storage.Config{Path: path, Logger: obs.Discard()})
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := e1.Execute(ctx, storage.FetchLastID,
		`INSERT INTO notes (title, content, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		"kept", "", storage.Now(), storage.Now()); err != nil {
		t.Fatalf("insert: %v", err)
	}
	e1.Close()

	e2, err := storage.Open(storage.Config{Path: path, Logger: obs.Discard()})
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer e2.Close()

	res, err := e2.Execute(ctx, storage.FetchOne, `SELECT title FROM notes`)
	if err != nil {
		t.Fatal(err)
	}
	if got := res.First()["title"]; got != "kept" {
		t.Errorf("title after reopen = %v, want %q", got, "kept")
	}
}

func TestOpen_SchemaHasIndexes(t *testing.T) {
	e := newTestEngine(t)
	want := []string{
		"idx_notes_title", "idx_notes_created_at", "idx_notes_is_deleted",
		"idx_tags_name", "idx_note_tags_note_id", "idx_note_tags_tag_id",
	}
	for _, name := range want {
		res, err := e.Execute(context.Background(), storage.FetchOne,
			`SELECT name FROM sqlite_master WHERE type = 'index' AND name = ?`, name)
		if err != nil {
			t.Fatal(err)
		}
		if res.First() == nil {
			t.Errorf("index %s missing", name)
		}
	}
}

// ─── Execute ────────────────────────────────────────────────────────────────

func TestExecute_FetchModes(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	ins, err := e.Execute(ctx, storage.FetchLastID,
		`INSERT INTO tags (name, color, created_at) VALUES (?, ?, ?)`, "go", "#00ADD8", storage.Now())
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if ins.LastInsertID == 0 || ins.RowsAffected != 1 {
		t.Errorf("insert result = %+v", ins)
	}
	if _, err := e.Execute(ctx, storage.FetchLastID,
		`INSERT INTO tags (name, created_at) VALUES (?, ?)`, "sql", storage.Now()); err != nil {
		t.Fatal(err)
	}

	all, err := e.Execute(ctx, storage.FetchAll, `SELECT name, color FROM tags ORDER BY name`)
	if err != nil {
		t.Fatal(err)
	}
	if len(all.Rows) != 2 {
		t.Fatalf("FetchAll rows = %d, want 2", len(all.Rows))
	}
	if all.Rows[1]["color"] != "#007ACC" {
		t.Errorf("default color = %v, want #007ACC", all.Rows[1]["color"])
	}

	one, err := e.Execute(ctx, storage.FetchOne, `SELECT name FROM tags ORDER BY name`)
	if err != nil {
		t.Fatal(err)
	}
	if len(one.Rows) != 1 || one.First()["name"] != "go" {
		t.Errorf("FetchOne = %+v", one.Rows)
	}

	upd, err := e.Execute(ctx, storage.FetchNone, `UPDATE tags SET color = '#000'`)
	if err != nil {
		t.Fatal(err)
	}
	if upd.RowsAffected != 2 {
		t.Errorf("RowsAffected = %d, want 2", upd.RowsAffected)
	}
}

func TestExecute_MalformedSQLIsStorageError(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Execute(context.Background(), storage.FetchAll, `SELEC nonsense`)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errs.Is(err, errs.Storage) {
		t.Errorf("code = %q, want %q", errs.CodeOf(err), errs.Storage)
	}
}

func TestExecute_ForeignKeyEnforced(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Execute(context.Background(), storage.FetchNone,
		`INSERT INTO note_tags (note_id, tag_id) VALUES (999, 999)`)
	if err == nil {
		t.Fatal("expected FK violation")
	}
	if !storage.IsForeignKeyViolation(err) {
		t.Errorf("IsForeignKeyViolation(%v) = false", err)
	}
}

// ─── Transactions ───────────────────────────────────────────────────────────

func countNotes(t *testing.T, e *storage.Engine) int64 {
	t.Helper()
	var n int64
	if err := e.DB().QueryRow(`SELECT COUNT(*) FROM notes`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	return n
}

func insertNote(ctx context.Context, q storage.Querier, title string) error {
	_, err := q.ExecContext(ctx,
		`INSERT INTO notes (title, created_at, updated_at) VALUES (?, ?, ?)`,
		title, storage.Now(), storage.Now())
	return err
}

func TestWithTx_Commits(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	err := e.WithTx(ctx, func(q storage.Querier) error {
		if err := insertNote(ctx, q, "a"); err != nil {
			return err
		}
		return insertNote(ctx, q, "b")
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}
	if n := countNotes(t, e); n != 2 {
		t.Errorf("notes = %d, want 2", n)
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	boom := errs.New(errs.Validation, "boom")

	err := e.WithTx(ctx, func(q storage.Querier) error {
		if err := insertNote(ctx, q, "a"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if !errs.Is(err, errs.Validation) {
		t.Errorf("coded error lost: %q", errs.CodeOf(err))
	}
	if n := countNotes(t, e); n != 0 {
		t.Errorf("notes = %d after rollback, want 0", n)
	}
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	func() {
		defer func() {
			if recover() == nil {
				t.Error("panic was swallowed")
			}
		}()
		_ = e.WithTx(ctx, func(q storage.Querier) error {
			_ = insertNote(ctx, q, "a")
			panic("handler exploded")
		})
	}()

	if n := countNotes(t, e); n != 0 {
		t.Errorf("notes = %d after panic, want 0", n)
	}
	// The single connection must have been released.
	if err := e.WithTx(ctx, func(q storage.Querier) error { return insertNote(ctx, q, "after") }); err != nil {
		t.Fatalf("engine unusable after panic: %v", err)
	}
}

func TestWithTx_CommitFailureRollsBack(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	e.SetCommitHook(func(tx *sql.Tx) error { return errors.New("disk full") })

	err := e.WithTx(ctx, func(q storage.Querier) error { return insertNote(ctx, q, "a") })
	if !errs.Is(err, errs.Storage) {
		t.Fatalf("err = %v, want storage error", err)
	}
	e.SetCommitHook(func(tx *sql.Tx) error { return tx.Commit() })
	if n := countNotes(t, e); n != 0 {
		t.Errorf("notes = %d, want 0", n)
	}
}

func TestWithTx_UncodedErrorBecomesStorage(t *testing.T) {
	e := newTestEngine(t)
	err := e.WithTx(context.Background(), func(q storage.Querier) error {
		_, err := q.ExecContext(context.Background(), `INSERT INTO missing_table VALUES (1)`)
		return err
	})
	if !errs.Is(err, errs.Storage) {
		t.Errorf("code = %q, want storage", errs.CodeOf(err))
	}
}

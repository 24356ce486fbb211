package storage_test

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/HendryAvila/sidenote/internal/errs"
	"github.com/HendryAvila/sidenote/internal/storage"
)

func TestBackup_ProducesReadableSnapshot(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	for _, title := range []string{"one", "two", "three"} {
		if err := e.WithTx(ctx, func(q storage.Querier) error { return insertNote(ctx, q, title) }); err != nil {
			t.Fatal(err)
		}
	}

	dest := filepath.Join(t.TempDir(), "backups", "snapshot.db")
	if err := e.Backup(ctx, dest); err != nil {
		t.Fatalf("Backup: %v", err)
	}

	db, err := sql.Open("sqlite", dest)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM notes`).Scan(&n); err != nil {
		t.Fatalf("query backup: %v", err)
	}
	if n != 3 {
		t.Errorf("notes in backup = %d, want 3", n)
	}

	// No temp files left behind.
	entries, _ := os.ReadDir(filepath.Dir(dest))
	if len(entries) != 1 {
		t.Errorf("backup dir has %d entries, want 1", len(entries))
	}
}

func TestBackup_OverwritesExistingDestination(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	dest := filepath.Join(t.TempDir(), "snapshot.db")

	if err := os.WriteFile(dest, []byte("stale"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := e.Backup(ctx, dest); err != nil {
		t.Fatalf("Backup over existing file: %v", err)
	}
	st, err := os.Stat(dest)
	if err != nil {
		t.Fatal(err)
	}
	if st.Size() <= int64(len("stale")) {
		t.Errorf("destination not replaced, size = %d", st.Size())
	}
}

func TestBackup_RejectsLiveDatabaseAndEmptyPath(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	if err := e.Backup(ctx, ""); !errs.Is(err, errs.Validation) {
		t.Errorf("empty dest: err = %v, want validation", err)
	}
	if err := e.Backup(ctx, e.Path()); !errs.Is(err, errs.Validation) {
		t.Errorf("live dest: err = %v, want validation", err)
	}
}

func TestInfo_ReportsTablesAndCounts(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()
	if err := e.WithTx(ctx, func(q storage.Querier) error { return insertNote(ctx, q, "x") }); err != nil {
		t.Fatal(err)
	}

	info, err := e.Info(ctx)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	for _, table := range storage.Tables {
		if _, ok := info.RecordCounts[table]; !ok {
			t.Errorf("RecordCounts missing %q", table)
		}
	}
	if info.RecordCounts["notes"] != 1 {
		t.Errorf("notes count = %d, want 1", info.RecordCounts["notes"])
	}
	if info.JournalMode != "wal" {
		t.Errorf("JournalMode = %q", info.JournalMode)
	}
	if !info.ForeignKeys {
		t.Error("ForeignKeys = false")
	}
	if info.SizeBytes <= 0 {
		t.Errorf("SizeBytes = %d", info.SizeBytes)
	}
}

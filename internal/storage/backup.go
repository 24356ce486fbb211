package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/HendryAvila/sidenote/internal/errs"
)

// Info describes the live database for statistics and diagnostics.
type Info struct {
	Path         string           `json:"path"`
	SizeBytes    int64            `json:"size_bytes"`
	Tables       []string         `json:"tables"`
	RecordCounts map[string]int64 `json:"record_counts"`
	JournalMode  string           `json:"journal_mode"`
	ForeignKeys  bool             `json:"foreign_keys"`
}

// ─── Backup ──────────────────────────────────────────────────────────────────

// Backup writes a consistent snapshot of the live database to dest.
//
// The snapshot is produced with VACUUM INTO a temporary file next to dest
// and then renamed into place, so dest is either the old file or a
// complete copy, never a partial one.
func (e *Engine) Backup(ctx context.Context, dest string) error {
	if dest == "" {
		return errs.New(errs.Validation, "backup destination is required")
	}
	abs, err := filepath.Abs(dest)
	if err != nil {
		return errs.Wrap(errs.Validation, "invalid backup destination", err)
	}
	if src, _ := filepath.Abs(e.path); src == abs {
		return errs.New(errs.Validation, "backup destination is the live database")
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o700); err != nil {
		return errs.Wrap(errs.Storage, "storage: create backup dir", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(abs), ".sidenote-backup-*.db")
	if err != nil {
		return errs.Wrap(errs.Storage, "storage: create backup temp file", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	// VACUUM INTO refuses to overwrite an existing file.
	_ = os.Remove(tmpPath)

	if _, err := e.db.ExecContext(ctx, `VACUUM INTO ?`, tmpPath); err != nil {
		_ = os.Remove(tmpPath)
		e.log.Error("backup failed", "dest", abs, "err", err)
		return errs.Wrap(errs.Storage, "storage: backup", err)
	}
	if err := os.Rename(tmpPath, abs); err != nil {
		_ = os.Remove(tmpPath)
		return errs.Wrap(errs.Storage, "storage: finalize backup", err)
	}

	e.log.Info("backup written", "dest", abs)
	return nil
}

// ─── Info ────────────────────────────────────────────────────────────────────

// Info reports file size, tables, per-table record counts and the pragmas
// that define the concurrency model.
func (e *Engine) Info(ctx context.Context) (*Info, error) {
	info := &Info{Path: e.path, RecordCounts: map[string]int64{}}

	if st, err := os.Stat(e.path); err == nil {
		info.SizeBytes = st.Size()
	}

	res, err := e.Execute(ctx, FetchAll,
		`SELECT name FROM sqlite_master
		 WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		 ORDER BY name`)
	if err != nil {
		return nil, err
	}
	for _, row := range res.Rows {
		name, _ := row["name"].(string)
		info.Tables = append(info.Tables, name)
	}

	for _, table := range info.Tables {
		var n int64
		// Table names come from sqlite_master, not from callers.
		if err := e.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %q`, table)).Scan(&n); err != nil {
			return nil, Classify("count "+table, err)
		}
		info.RecordCounts[table] = n
	}

	if err := e.db.QueryRowContext(ctx, `PRAGMA journal_mode`).Scan(&info.JournalMode); err != nil {
		return nil, Classify("journal mode", err)
	}
	var fk int
	if err := e.db.QueryRowContext(ctx, `PRAGMA foreign_keys`).Scan(&fk); err != nil {
		return nil, Classify("foreign keys", err)
	}
	info.ForeignKeys = fk == 1

	return info, nil
}

package storage

import "context"

// Table names, in dependency order.
var Tables = []string{"notes", "tags", "note_tags", "settings"}

// ─── Migrations ──────────────────────────────────────────────────────────────

func (e *Engine) migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS notes (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			title      TEXT    NOT NULL,
			content    TEXT    DEFAULT '',
			created_at TEXT    NOT NULL DEFAULT (datetime('now')),
			updated_at TEXT    NOT NULL DEFAULT (datetime('now')),
			is_deleted INTEGER DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS tags (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			name       TEXT    UNIQUE NOT NULL,
			color      TEXT    DEFAULT '#007ACC',
			created_at TEXT    NOT NULL DEFAULT (datetime('now'))
		);

		CREATE TABLE IF NOT EXISTS note_tags (
			note_id INTEGER NOT NULL,
			tag_id  INTEGER NOT NULL,
			PRIMARY KEY (note_id, tag_id),
			FOREIGN KEY (note_id) REFERENCES notes(id) ON DELETE CASCADE,
			FOREIGN KEY (tag_id)  REFERENCES tags(id)  ON DELETE CASCADE
		);

		CREATE TABLE IF NOT EXISTS settings (
			key        TEXT PRIMARY KEY,
			value      TEXT,
			created_at TEXT NOT NULL DEFAULT (datetime('now')),
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE INDEX IF NOT EXISTS idx_notes_title        ON notes(title);
		CREATE INDEX IF NOT EXISTS idx_notes_created_at   ON notes(created_at);
		CREATE INDEX IF NOT EXISTS idx_notes_is_deleted   ON notes(is_deleted);
		CREATE INDEX IF NOT EXISTS idx_tags_name          ON tags(name);
		CREATE INDEX IF NOT EXISTS idx_note_tags_note_id  ON note_tags(note_id);
		CREATE INDEX IF NOT EXISTS idx_note_tags_tag_id   ON note_tags(tag_id);
	`
	if _, err := e.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	// Normalize existing data
	_, _ = e.db.ExecContext(ctx, `UPDATE notes SET is_deleted = 0 WHERE is_deleted IS NULL`) // best-effort migration cleanup
	_, _ = e.db.ExecContext(ctx, `UPDATE notes SET content = '' WHERE content IS NULL`)      // best-effort migration cleanup

	return nil
}

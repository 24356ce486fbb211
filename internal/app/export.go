package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/HendryAvila/sidenote/internal/errs"
	"github.com/HendryAvila/sidenote/internal/events"
	"github.com/HendryAvila/sidenote/internal/settings"
	"github.com/HendryAvila/sidenote/internal/storage"
	"github.com/HendryAvila/sidenote/internal/tags"
	"github.com/spf13/cast"
)

// DocumentVersion is the export format version.
const DocumentVersion = 1

// Document is the portable JSON form of a database: live notes, tags,
// their associations and the settings.
type Document struct {
	Version    int            `json:"version"`
	ExportedAt string         `json:"exported_at"`
	Notes      []ExportNote   `json:"notes"`
	Tags       []ExportTag    `json:"tags"`
	NoteTags   []ExportLink   `json:"note_tags"`
	Settings   map[string]any `json:"settings"`
}

type ExportNote struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type ExportTag struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	CreatedAt string `json:"created_at"`
}

type ExportLink struct {
	NoteID int64 `json:"note_id"`
	TagID  int64 `json:"tag_id"`
}

// ImportReport counts what an import added.
type ImportReport struct {
	Notes    int `json:"notes"`
	Tags     int `json:"tags"`
	NoteTags int `json:"note_tags"`
	Settings int `json:"settings"`
}

// BuildDocument reads the whole database into a Document.
func (a *App) BuildDocument(ctx context.Context) (*Document, error) {
	doc := &Document{
		Version:    DocumentVersion,
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		Notes:      []ExportNote{},
		Tags:       []ExportTag{},
		NoteTags:   []ExportLink{},
	}

	res, err := a.eng.Execute(ctx, storage.FetchAll,
		`SELECT id, title, COALESCE(content, '') AS content, created_at, updated_at
		 FROM notes WHERE is_deleted = 0 ORDER BY id`)
	if err != nil {
		return nil, err
	}
	for _, r := range res.Rows {
		doc.Notes = append(doc.Notes, ExportNote{
			ID:        cast.ToInt64(r["id"]),
			Title:     cast.ToString(r["title"]),
			Content:   cast.ToString(r["content"]),
			CreatedAt: cast.ToString(r["created_at"]),
			UpdatedAt: cast.ToString(r["updated_at"]),
		})
	}

	if res, err = a.eng.Execute(ctx, storage.FetchAll,
		`SELECT id, name, COALESCE(color, '#007ACC') AS color, created_at FROM tags ORDER BY id`); err != nil {
		return nil, err
	}
	for _, r := range res.Rows {
		doc.Tags = append(doc.Tags, ExportTag{
			ID:        cast.ToInt64(r["id"]),
			Name:      cast.ToString(r["name"]),
			Color:     cast.ToString(r["color"]),
			CreatedAt: cast.ToString(r["created_at"]),
		})
	}

	if res, err = a.eng.Execute(ctx, storage.FetchAll,
		`SELECT nt.note_id, nt.tag_id FROM note_tags nt
		 JOIN notes n ON n.id = nt.note_id AND n.is_deleted = 0
		 ORDER BY nt.note_id, nt.tag_id`); err != nil {
		return nil, err
	}
	for _, r := range res.Rows {
		doc.NoteTags = append(doc.NoteTags, ExportLink{
			NoteID: cast.ToInt64(r["note_id"]),
			TagID:  cast.ToInt64(r["tag_id"]),
		})
	}

	if doc.Settings, err = a.Settings.Repo().ExportAll(ctx); err != nil {
		return nil, err
	}
	return doc, nil
}

// ApplyDocument merges doc into the database in one transaction. Tags are
// matched by name and an invalid colour becomes DefaultColor, as on create;
// notes are always added as new rows. Settings overwrite.
func (a *App) ApplyDocument(ctx context.Context, doc *Document) (*ImportReport, error) {
	if doc == nil {
		return nil, errs.New(errs.Validation, "empty import document")
	}
	if doc.Version > DocumentVersion {
		return nil, errs.Newf(errs.Validation, "unsupported document version %d", doc.Version)
	}

	rep := &ImportReport{}
	noteIDs := map[int64]int64{}
	tagIDs := map[int64]int64{}
	var addedNotes []events.NotePayload
	var addedTags []events.TagPayload

	err := a.eng.WithTx(ctx, func(q storage.Querier) error {
		now := storage.Now()
		for _, t := range doc.Tags {
			name := strings.TrimSpace(t.Name)
			if name == "" {
				return errs.Newf(errs.Validation, "tag %d has no name", t.ID)
			}
			color := t.Color
			if !tags.ValidColor(color) {
				color = tags.DefaultColor
			}
			res, err := q.ExecContext(ctx,
				`INSERT OR IGNORE INTO tags (name, color, created_at) VALUES (?, ?, ?)`,
				name, color, orNow(t.CreatedAt, now))
			if err != nil {
				return err
			}
			added, _ := res.RowsAffected()
			var id int64
			if err := q.QueryRowContext(ctx, `SELECT id FROM tags WHERE name = ?`, name).Scan(&id); err != nil {
				return err
			}
			tagIDs[t.ID] = id
			if added > 0 {
				rep.Tags++
				addedTags = append(addedTags, events.TagPayload{ID: id, Name: name, Color: color})
			}
		}

		for _, n := range doc.Notes {
			title := strings.TrimSpace(n.Title)
			if title == "" {
				return errs.Newf(errs.Validation, "note %d has no title", n.ID)
			}
			res, err := q.ExecContext(ctx,
				`INSERT INTO notes (title, content, created_at, updated_at, is_deleted) VALUES (?, ?, ?, ?, 0)`,
				title, n.Content, orNow(n.CreatedAt, now), orNow(n.UpdatedAt, now))
			if err != nil {
				return err
			}
			id, err := res.LastInsertId()
			if err != nil {
				return err
			}
			noteIDs[n.ID] = id
			addedNotes = append(addedNotes, events.NotePayload{ID: id, Title: title})
			rep.Notes++
		}

		for _, l := range doc.NoteTags {
			nid, okN := noteIDs[l.NoteID]
			tid, okT := tagIDs[l.TagID]
			if !okN || !okT {
				return errs.Newf(errs.Validation, "association %d→%d references an unknown note or tag", l.NoteID, l.TagID)
			}
			res, err := q.ExecContext(ctx,
				`INSERT OR IGNORE INTO note_tags (note_id, tag_id) VALUES (?, ?)`, nid, tid)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n > 0 {
				rep.NoteTags++
			}
		}

		for k, v := range doc.Settings {
			if v == nil {
				continue
			}
			if err := settings.CheckEntry(k, v); err != nil {
				return err
			}
			if _, err := q.ExecContext(ctx,
				`INSERT INTO settings (key, value, created_at, updated_at) VALUES (?, ?, ?, ?)
				 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
				k, settings.Serialize(v), now, now); err != nil {
				return err
			}
			rep.Settings++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := a.Settings.Repo().Reload(ctx); err != nil {
		a.log.Warn("settings cache reload failed", "err", err)
	}
	for _, p := range addedTags {
		a.bus.Publish(events.TagCreated, p)
	}
	for _, p := range addedNotes {
		a.bus.Publish(events.NoteCreated, p)
	}
	a.log.Info("import applied", "notes", rep.Notes, "tags", rep.Tags, "links", rep.NoteTags, "settings", rep.Settings)
	return rep, nil
}

func orNow(ts, now string) string {
	if _, err := time.Parse(storage.TimeLayout, ts); err != nil {
		return now
	}
	return ts
}

// ─── File wrappers ───────────────────────────────────────────────────────────

// ExportTo writes the database as indented JSON to w.
func (a *App) ExportTo(ctx context.Context, w io.Writer) error {
	doc, err := a.BuildDocument(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// Export writes the database to a JSON file at path.
func (a *App) Export(ctx context.Context, path string) Result {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fail(a.log, "export", errs.Wrap(errs.Storage, "create export dir", err))
	}
	f, err := os.Create(path)
	if err != nil {
		return fail(a.log, "export", errs.Wrap(errs.Storage, "create export file", err))
	}
	if err := a.ExportTo(ctx, f); err != nil {
		_ = f.Close()
		return fail(a.log, "export", err)
	}
	if err := f.Close(); err != nil {
		return fail(a.log, "export", errs.Wrap(errs.Storage, "close export file", err))
	}
	return OK(map[string]any{"exported": true, "file": path})
}

// ImportFrom reads a JSON document from r and applies it.
func (a *App) ImportFrom(ctx context.Context, r io.Reader) (*ImportReport, error) {
	var doc Document
	dec := json.NewDecoder(r)
	// Numbers in settings keep their text, so 16 stays an int and 1.5 a float.
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, errs.Wrap(errs.Validation, "decode import document", err)
	}
	return a.ApplyDocument(ctx, &doc)
}

// Import applies the JSON document at path.
func (a *App) Import(ctx context.Context, path string) Result {
	f, err := os.Open(path)
	if err != nil {
		return fail(a.log, "import", errs.Wrap(errs.Validation, fmt.Sprintf("open %s", path), err))
	}
	defer f.Close()
	rep, err := a.ImportFrom(ctx, f)
	if err != nil {
		return fail(a.log, "import", err)
	}
	return OK(rep)
}

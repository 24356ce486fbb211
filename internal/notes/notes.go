// Package notes implements the Note repository: typed CRUD, filtered
// listing and tag associations over the storage engine, with soft delete.
package notes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/HendryAvila/sidenote/internal/errs"
	"github.com/HendryAvila/sidenote/internal/events"
	"github.com/HendryAvila/sidenote/internal/obs"
	"github.com/HendryAvila/sidenote/internal/storage"
)

// ─── Types ───────────────────────────────────────────────────────────────────

// Note is a live or soft-deleted note with its tags attached.
type Note struct {
	ID        int64    `json:"id"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	CreatedAt string   `json:"created_at"`
	UpdatedAt string   `json:"updated_at"`
	IsDeleted bool     `json:"is_deleted"`
	Tags      []TagRef `json:"tags"`
}

// TagRef is the slice of a tag attached to a note.
type TagRef struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// CreateParams holds the input for creating a note.
type CreateParams struct {
	Title   string  `json:"title"`
	Content string  `json:"content"`
	TagIDs  []int64 `json:"tag_ids,omitempty"`
}

// UpdateParams holds partial update fields. Nil means "leave as is".
// A non-nil TagIDs replaces the whole association set.
type UpdateParams struct {
	Title   *string  `json:"title,omitempty"`
	Content *string  `json:"content,omitempty"`
	TagIDs  *[]int64 `json:"tag_ids,omitempty"`
}

// Merge returns p with every field set in later overriding p's.
func (p UpdateParams) Merge(later UpdateParams) UpdateParams {
	if later.Title != nil {
		p.Title = later.Title
	}
	if later.Content != nil {
		p.Content = later.Content
	}
	if later.TagIDs != nil {
		p.TagIDs = later.TagIDs
	}
	return p
}

// Empty reports whether no field is set.
func (p UpdateParams) Empty() bool {
	return p.Title == nil && p.Content == nil && p.TagIDs == nil
}

// Filter selects notes for List.
type Filter struct {
	TagIDs         []int64 `json:"tag_ids,omitempty"`
	SearchKeyword  string  `json:"search_keyword,omitempty"`
	OrderBy        string  `json:"order_by,omitempty"`
	OrderDirection string  `json:"order_direction,omitempty"`
	Limit          int     `json:"limit,omitempty"`
	Offset         int     `json:"offset,omitempty"`
}

const (
	defaultSearchLimit = 50
	defaultRecentLimit = 10
)

var orderColumns = map[string]bool{
	"id":         true,
	"title":      true,
	"created_at": true,
	"updated_at": true,
}

// ─── Repository ──────────────────────────────────────────────────────────────

// Repository is the Note repository.
type Repository struct {
	eng *storage.Engine
	bus *events.Bus
	log *slog.Logger
}

// New creates a Repository. bus may be nil.
func New(eng *storage.Engine, bus *events.Bus) *Repository {
	return &Repository{eng: eng, bus: bus, log: obs.Pkg("notes")}
}

// Create inserts a note and its initial tag associations in one
// transaction and returns the new id.
func (r *Repository) Create(ctx context.Context, p CreateParams) (int64, error) {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return 0, errs.New(errs.Validation, "note title cannot be empty")
	}

	var id int64
	err := r.eng.WithTx(ctx, func(q storage.Querier) error {
		now := storage.Now()
		res, err := q.ExecContext(ctx,
			`INSERT INTO notes (title, content, created_at, updated_at, is_deleted)
			 VALUES (?, ?, ?, ?, 0)`,
			title, p.Content, now, now,
		)
		if err != nil {
			return err
		}
		if id, err = res.LastInsertId(); err != nil {
			return err
		}
		return insertTags(ctx, q, id, p.TagIDs)
	})
	if err != nil {
		r.log.Error("create note failed", "title", title, "err", err)
		return 0, err
	}

	r.log.Info("note created", "note_id", id, "title", title)
	r.bus.Publish(events.NoteCreated, events.NotePayload{ID: id, Title: title})
	return id, nil
}

// Get returns a live note with its tags ordered by name.
func (r *Repository) Get(ctx context.Context, id int64) (*Note, error) {
	n, err := getLive(ctx, r.eng, id)
	if err != nil {
		return nil, err
	}
	if n.Tags, err = tagsFor(ctx, r.eng, id); err != nil {
		return nil, storage.Classify("note tags", err)
	}
	return n, nil
}

// Update applies the provided fields, always refreshes updated_at, and
// replaces the tag set when TagIDs is given.
func (r *Repository) Update(ctx context.Context, id int64, p UpdateParams) (*Note, error) {
	var title *string
	if p.Title != nil {
		t := strings.TrimSpace(*p.Title)
		if t == "" {
			return nil, errs.New(errs.Validation, "note title cannot be empty")
		}
		title = &t
	}

	err := r.eng.WithTx(ctx, func(q storage.Querier) error {
		if _, err := getLive(ctx, q, id); err != nil {
			return err
		}

		sets := []string{"updated_at = ?"}
		args := []any{storage.Now()}
		if title != nil {
			sets = append(sets, "title = ?")
			args = append(args, *title)
		}
		if p.Content != nil {
			sets = append(sets, "content = ?")
			args = append(args, *p.Content)
		}
		args = append(args, id)

		if _, err := q.ExecContext(ctx,
			`UPDATE notes SET `+strings.Join(sets, ", ")+` WHERE id = ? AND is_deleted = 0`,
			args...,
		); err != nil {
			return err
		}

		if p.TagIDs != nil {
			if _, err := q.ExecContext(ctx, `DELETE FROM note_tags WHERE note_id = ?`, id); err != nil {
				return err
			}
			return insertTags(ctx, q, id, *p.TagIDs)
		}
		return nil
	})
	if err != nil {
		if !errs.Is(err, errs.NotFound) {
			r.log.Error("update note failed", "note_id", id, "err", err)
		}
		return nil, err
	}

	r.log.Debug("note updated", "note_id", id)
	r.bus.Publish(events.NoteUpdated, events.NotePayload{ID: id})
	return r.Get(ctx, id)
}

// Delete soft-deletes a live note and clears its tag associations.
// Deleting an already deleted note fails with errs.NotFound.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	var title string
	err := r.eng.WithTx(ctx, func(q storage.Querier) error {
		n, err := getLive(ctx, q, id)
		if err != nil {
			return err
		}
		title = n.Title
		if _, err := q.ExecContext(ctx,
			`UPDATE notes SET is_deleted = 1, updated_at = ? WHERE id = ?`,
			storage.Now(), id,
		); err != nil {
			return err
		}
		_, err = q.ExecContext(ctx, `DELETE FROM note_tags WHERE note_id = ?`, id)
		return err
	})
	if err != nil {
		if !errs.Is(err, errs.NotFound) {
			r.log.Error("delete note failed", "note_id", id, "err", err)
		}
		return err
	}

	r.log.Info("note deleted", "note_id", id, "title", title)
	r.bus.Publish(events.NoteDeleted, events.NotePayload{ID: id, Title: title})
	return nil
}

// PurgeDeleted physically removes soft-deleted notes and returns how many
// rows went. Associations cascade. Delete never calls this.
func (r *Repository) PurgeDeleted(ctx context.Context) (int64, error) {
	var n int64
	err := r.eng.WithTx(ctx, func(q storage.Querier) error {
		res, err := q.ExecContext(ctx, `DELETE FROM notes WHERE is_deleted = 1`)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	r.log.Info("purged deleted notes", "count", n)
	return n, nil
}

// ─── Queries ─────────────────────────────────────────────────────────────────

// List returns live notes matching f with tags attached.
func (r *Repository) List(ctx context.Context, f Filter) ([]Note, error) {
	query := `SELECT DISTINCT n.id, n.title, n.content, n.created_at, n.updated_at, n.is_deleted
		FROM notes n`
	where := []string{"n.is_deleted = 0"}
	args := []any{}

	if len(f.TagIDs) > 0 {
		query += ` JOIN note_tags nt ON n.id = nt.note_id`
		where = append(where, "nt.tag_id IN ("+placeholders(len(f.TagIDs))+")")
		for _, id := range f.TagIDs {
			args = append(args, id)
		}
	}
	if kw := f.SearchKeyword; kw != "" {
		where = append(where, `(n.title LIKE ? ESCAPE '\' OR n.content LIKE ? ESCAPE '\')`)
		pattern := "%" + storage.EscapeLike(kw) + "%"
		args = append(args, pattern, pattern)
	}

	query += " WHERE " + strings.Join(where, " AND ")

	orderBy := f.OrderBy
	if !orderColumns[orderBy] {
		orderBy = "updated_at"
	}
	dir := "DESC"
	if strings.EqualFold(f.OrderDirection, "ASC") {
		dir = "ASC"
	}
	query += fmt.Sprintf(" ORDER BY n.%s %s, n.id %s", orderBy, dir, dir)

	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
		if f.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, f.Offset)
		}
	}

	list, err := scanNotes(ctx, r.eng, query, args...)
	if err != nil {
		r.log.Error("list notes failed", "err", err)
		return nil, storage.Classify("list notes", err)
	}
	for i := range list {
		if list[i].Tags, err = tagsFor(ctx, r.eng, list[i].ID); err != nil {
			return nil, storage.Classify("note tags", err)
		}
	}
	return list, nil
}

// Search matches keyword against title or content, newest first.
func (r *Repository) Search(ctx context.Context, keyword string, limit int) ([]Note, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	return r.List(ctx, Filter{
		SearchKeyword:  keyword,
		Limit:          limit,
		OrderBy:        "updated_at",
		OrderDirection: "DESC",
	})
}

// ByTags returns notes carrying any of the given tags, newest first.
func (r *Repository) ByTags(ctx context.Context, tagIDs []int64) ([]Note, error) {
	return r.List(ctx, Filter{TagIDs: tagIDs, OrderBy: "updated_at", OrderDirection: "DESC"})
}

// Recent returns the most recently updated notes.
func (r *Repository) Recent(ctx context.Context, limit int) ([]Note, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	return r.List(ctx, Filter{Limit: limit, OrderBy: "updated_at", OrderDirection: "DESC"})
}

// Count returns the number of live notes.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.eng.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes WHERE is_deleted = 0`).Scan(&n); err != nil {
		return 0, storage.Classify("count notes", err)
	}
	return n, nil
}

// ─── Tag associations ───────────────────────────────────────────────────────

// AddTag associates a tag with a live note. changed is false when the
// association already existed.
func (r *Repository) AddTag(ctx context.Context, noteID, tagID int64) (changed bool, err error) {
	err = r.eng.WithTx(ctx, func(q storage.Querier) error {
		if _, err := getLive(ctx, q, noteID); err != nil {
			return err
		}
		if err := tagExists(ctx, q, tagID); err != nil {
			return err
		}
		res, err := q.ExecContext(ctx,
			`INSERT OR IGNORE INTO note_tags (note_id, tag_id) VALUES (?, ?)`, noteID, tagID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		changed = n > 0
		return err
	})
	if err != nil {
		return false, err
	}
	if changed {
		r.log.Debug("tag added to note", "note_id", noteID, "tag_id", tagID)
		r.bus.Publish(events.NoteTagAdded, events.NoteTagPayload{NoteID: noteID, TagID: tagID})
	}
	return changed, nil
}

// RemoveTag drops an association. changed is false when there was none.
func (r *Repository) RemoveTag(ctx context.Context, noteID, tagID int64) (changed bool, err error) {
	err = r.eng.WithTx(ctx, func(q storage.Querier) error {
		if _, err := getLive(ctx, q, noteID); err != nil {
			return err
		}
		res, err := q.ExecContext(ctx,
			`DELETE FROM note_tags WHERE note_id = ? AND tag_id = ?`, noteID, tagID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		changed = n > 0
		return err
	})
	if err != nil {
		return false, err
	}
	if changed {
		r.log.Debug("tag removed from note", "note_id", noteID, "tag_id", tagID)
		r.bus.Publish(events.NoteTagRemoved, events.NoteTagPayload{NoteID: noteID, TagID: tagID})
	}
	return changed, nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func getLive(ctx context.Context, q storage.Querier, id int64) (*Note, error) {
	var n Note
	var deleted int
	err := q.QueryRowContext(ctx,
		`SELECT id, title, COALESCE(content, ''), created_at, updated_at, COALESCE(is_deleted, 0)
		 FROM notes WHERE id = ? AND is_deleted = 0`, id,
	).Scan(&n.ID, &n.Title, &n.Content, &n.CreatedAt, &n.UpdatedAt, &deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.Newf(errs.NotFound, "note %d not found", id)
	}
	if err != nil {
		return nil, storage.Classify("get note", err)
	}
	n.IsDeleted = deleted != 0
	return &n, nil
}

func tagExists(ctx context.Context, q storage.Querier, id int64) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM tags WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return errs.Newf(errs.NotFound, "tag %d not found", id)
	}
	return err
}

func insertTags(ctx context.Context, q storage.Querier, noteID int64, tagIDs []int64) error {
	for _, tagID := range tagIDs {
		if _, err := q.ExecContext(ctx,
			`INSERT OR IGNORE INTO note_tags (note_id, tag_id) VALUES (?, ?)`, noteID, tagID,
		); err != nil {
			if storage.IsForeignKeyViolation(err) {
				return errs.Wrap(errs.Validation, fmt.Sprintf("tag %d does not exist", tagID), err)
			}
			return err
		}
	}
	return nil
}

func tagsFor(ctx context.Context, q storage.Querier, noteID int64) ([]TagRef, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT t.id, t.name, COALESCE(t.color, '#007ACC')
		 FROM tags t
		 JOIN note_tags nt ON t.id = nt.tag_id
		 WHERE nt.note_id = ?
		 ORDER BY t.name`, noteID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []TagRef{}
	for rows.Next() {
		var t TagRef
		if err := rows.Scan(&t.ID, &t.Name, &t.Color); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// scanNotes reads every row before returning so the single connection is
// free for follow-up queries.
func scanNotes(ctx context.Context, q storage.Querier, query string, args ...any) ([]Note, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []Note{}
	for rows.Next() {
		var n Note
		var content sql.NullString
		var deleted sql.NullInt64
		if err := rows.Scan(&n.ID, &n.Title, &content, &n.CreatedAt, &n.UpdatedAt, &deleted); err != nil {
			return nil, err
		}
		n.Content = content.String
		n.IsDeleted = deleted.Int64 != 0
		out = append(out, n)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// Package tags implements the Tag repository.
package tags

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/HendryAvila/sidenote/internal/errs"
	"github.com/HendryAvila/sidenote/internal/events"
	"github.com/HendryAvila/sidenote/internal/obs"
	"github.com/HendryAvila/sidenote/internal/storage"
)

// DefaultColor is used when a tag is created without a valid colour.
const DefaultColor = "#007ACC"

const (
	defaultSearchLimit  = 20
	defaultPopularLimit = 10
)

var colorRe = regexp.MustCompile(`^#([A-Fa-f0-9]{6}|[A-Fa-f0-9]{3})$`)

// ValidColor reports whether c is a #RGB or #RRGGBB hex colour.
func ValidColor(c string) bool {
	return colorRe.MatchString(c)
}

// ─── Types ───────────────────────────────────────────────────────────────────

// Tag is a tag with the number of live notes referencing it.
type Tag struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	CreatedAt string `json:"created_at"`
	NoteCount int    `json:"note_count"`
}

// UpdateParams holds partial update fields.
type UpdateParams struct {
	Name  *string `json:"name,omitempty"`
	Color *string `json:"color,omitempty"`
}

// ListOptions controls List. IncludeUnused defaults to true.
type ListOptions struct {
	IncludeUnused  *bool  `json:"include_unused,omitempty"`
	OrderBy        string `json:"order_by,omitempty"`
	OrderDirection string `json:"order_direction,omitempty"`
	Limit          int    `json:"limit,omitempty"`
	Offset         int    `json:"offset,omitempty"`
}

var orderColumns = map[string]bool{"id": true, "name": true, "created_at": true}

// selectTag counts distinct live notes per tag.
const selectTag = `SELECT t.id, t.name, COALESCE(t.color, '#007ACC'), t.created_at,
	COUNT(DISTINCT n.id) AS note_count
	FROM tags t
	LEFT JOIN note_tags nt ON t.id = nt.tag_id
	LEFT JOIN notes n ON n.id = nt.note_id AND n.is_deleted = 0`

// ─── Repository ──────────────────────────────────────────────────────────────

// Repository is the Tag repository.
type Repository struct {
	eng *storage.Engine
	bus *events.Bus
	log *slog.Logger
}

// New creates a Repository. bus may be nil.
func New(eng *storage.Engine, bus *events.Bus) *Repository {
	return &Repository{eng: eng, bus: bus, log: obs.Pkg("tags")}
}

// Create inserts a tag and returns its id. An invalid colour falls back to
// DefaultColor.
func (r *Repository) Create(ctx context.Context, name, color string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, errs.New(errs.Validation, "tag name cannot be empty")
	}
	if !ValidColor(color) {
		color = DefaultColor
	}

	var id int64
	err := r.eng.WithTx(ctx, func(q storage.Querier) error {
		if _, err := byName(ctx, q, name); err == nil {
			return errs.Newf(errs.Conflict, "tag %q already exists", name)
		} else if !errs.Is(err, errs.NotFound) {
			return err
		}
		res, err := q.ExecContext(ctx,
			`INSERT INTO tags (name, color, created_at) VALUES (?, ?, ?)`,
			name, color, storage.Now())
		if err != nil {
			if storage.IsUniqueViolation(err) {
				return errs.Wrap(errs.Conflict, fmt.Sprintf("tag %q already exists", name), err)
			}
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		if !errs.Is(err, errs.Conflict) {
			r.log.Error("create tag failed", "name", name, "err", err)
		}
		return 0, err
	}

	r.log.Info("tag created", "tag_id", id, "name", name, "color", color)
	r.bus.Publish(events.TagCreated, events.TagPayload{ID: id, Name: name, Color: color})
	return id, nil
}

// Get returns a tag by id.
func (r *Repository) Get(ctx context.Context, id int64) (*Tag, error) {
	return byID(ctx, r.eng, id)
}

// GetByName returns a tag by exact name.
func (r *Repository) GetByName(ctx context.Context, name string) (*Tag, error) {
	return byName(ctx, r.eng, strings.TrimSpace(name))
}

// Update changes name and/or colour.
func (r *Repository) Update(ctx context.Context, id int64, p UpdateParams) (*Tag, error) {
	if p.Name == nil && p.Color == nil {
		return nil, errs.New(errs.Validation, "no fields to update")
	}
	var name string
	if p.Name != nil {
		name = strings.TrimSpace(*p.Name)
		if name == "" {
			return nil, errs.New(errs.Validation, "tag name cannot be empty")
		}
	}
	if p.Color != nil && !ValidColor(*p.Color) {
		return nil, errs.Newf(errs.Validation, "invalid colour %q", *p.Color)
	}

	err := r.eng.WithTx(ctx, func(q storage.Querier) error {
		if _, err := byID(ctx, q, id); err != nil {
			return err
		}
		sets := []string{}
		args := []any{}
		if p.Name != nil {
			other, err := byName(ctx, q, name)
			if err == nil && other.ID != id {
				return errs.Newf(errs.Conflict, "tag %q already exists", name)
			}
			if err != nil && !errs.Is(err, errs.NotFound) {
				return err
			}
			sets = append(sets, "name = ?")
			args = append(args, name)
		}
		if p.Color != nil {
			sets = append(sets, "color = ?")
			args = append(args, *p.Color)
		}
		args = append(args, id)
		_, err := q.ExecContext(ctx, `UPDATE tags SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
		if storage.IsUniqueViolation(err) {
			return errs.Wrap(errs.Conflict, fmt.Sprintf("tag %q already exists", name), err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	t, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	r.log.Info("tag updated", "tag_id", id)
	r.bus.Publish(events.TagUpdated, events.TagPayload{ID: id, Name: t.Name, Color: t.Color})
	return t, nil
}

// Delete removes a tag that no live note references. An in-use tag fails
// with errs.Conflict and is left untouched.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	var name string
	err := r.eng.WithTx(ctx, func(q storage.Querier) error {
		t, err := byID(ctx, q, id)
		if err != nil {
			return err
		}
		if t.NoteCount > 0 {
			return errs.Newf(errs.Conflict, "tag %q is used by %d notes", t.Name, t.NoteCount)
		}
		name = t.Name
		// Links to soft-deleted notes cascade with the tag row.
		_, err = q.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id)
		return err
	})
	if err != nil {
		return err
	}
	r.log.Info("tag deleted", "tag_id", id, "name", name)
	r.bus.Publish(events.TagDeleted, events.TagPayload{ID: id, Name: name})
	return nil
}

// ForceDelete removes a tag and all its associations in one transaction.
func (r *Repository) ForceDelete(ctx context.Context, id int64) error {
	var name string
	err := r.eng.WithTx(ctx, func(q storage.Querier) error {
		t, err := byID(ctx, q, id)
		if err != nil {
			return err
		}
		name = t.Name
		if _, err := q.ExecContext(ctx, `DELETE FROM note_tags WHERE tag_id = ?`, id); err != nil {
			return err
		}
		_, err = q.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id)
		return err
	})
	if err != nil {
		return err
	}
	r.log.Info("tag force deleted", "tag_id", id, "name", name)
	r.bus.Publish(events.TagDeleted, events.TagPayload{ID: id, Name: name, Force: true})
	return nil
}

// ─── Queries ─────────────────────────────────────────────────────────────────

// List returns tags with their live note counts.
func (r *Repository) List(ctx context.Context, opts ListOptions) ([]Tag, error) {
	query := selectTag + ` GROUP BY t.id`
	if opts.IncludeUnused != nil && !*opts.IncludeUnused {
		query += ` HAVING note_count > 0`
	}

	orderBy := opts.OrderBy
	if !orderColumns[orderBy] {
		orderBy = "name"
	}
	dir := "ASC"
	if strings.EqualFold(opts.OrderDirection, "DESC") {
		dir = "DESC"
	}
	query += fmt.Sprintf(` ORDER BY t.%s %s`, orderBy, dir)

	args := []any{}
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, opts.Offset)
		}
	}
	return r.scan(ctx, "list tags", query, args...)
}

// ForNote returns the tags of one note ordered by name.
func (r *Repository) ForNote(ctx context.Context, noteID int64) ([]Tag, error) {
	return r.scan(ctx, "tags for note",
		selectTag+` WHERE t.id IN (SELECT tag_id FROM note_tags WHERE note_id = ?)
		GROUP BY t.id ORDER BY t.name`, noteID)
}

// Search matches keyword as a case-insensitive substring of the name.
func (r *Repository) Search(ctx context.Context, keyword string, limit int) ([]Tag, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	return r.scan(ctx, "search tags",
		selectTag+` WHERE t.name LIKE ? ESCAPE '\' GROUP BY t.id ORDER BY t.name LIMIT ?`,
		"%"+storage.EscapeLike(keyword)+"%", limit)
}

// Popular returns the most referenced tags, counting live notes only.
func (r *Repository) Popular(ctx context.Context, limit int) ([]Tag, error) {
	if limit <= 0 {
		limit = defaultPopularLimit
	}
	return r.scan(ctx, "popular tags",
		selectTag+` GROUP BY t.id HAVING note_count > 0
		ORDER BY note_count DESC, t.name ASC LIMIT ?`, limit)
}

// Unused returns tags no live note references.
func (r *Repository) Unused(ctx context.Context) ([]Tag, error) {
	return r.scan(ctx, "unused tags",
		selectTag+` GROUP BY t.id HAVING note_count = 0 ORDER BY t.name`)
}

// GetOrCreate returns the tag called name, creating it when missing.
func (r *Repository) GetOrCreate(ctx context.Context, name, color string) (*Tag, error) {
	t, err := r.GetByName(ctx, name)
	if err == nil {
		return t, nil
	}
	if !errs.Is(err, errs.NotFound) {
		return nil, err
	}
	id, err := r.Create(ctx, name, color)
	if errs.Is(err, errs.Conflict) {
		return r.GetByName(ctx, name)
	}
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

// Count returns the number of tags.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.eng.QueryRowContext(ctx, `SELECT COUNT(*) FROM tags`).Scan(&n); err != nil {
		return 0, storage.Classify("count tags", err)
	}
	return n, nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func (r *Repository) scan(ctx context.Context, op, query string, args ...any) ([]Tag, error) {
	rows, err := r.eng.QueryContext(ctx, query, args...)
	if err != nil {
		r.log.Error(op+" failed", "err", err)
		return nil, storage.Classify(op, err)
	}
	defer func() { _ = rows.Close() }()

	out := []Tag{}
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Color, &t.CreatedAt, &t.NoteCount); err != nil {
			return nil, storage.Classify(op, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Classify(op, err)
	}
	return out, nil
}

func byID(ctx context.Context, q storage.Querier, id int64) (*Tag, error) {
	return one(ctx, q, fmt.Sprintf("tag %d not found", id),
		selectTag+` WHERE t.id = ? GROUP BY t.id`, id)
}

func byName(ctx context.Context, q storage.Querier, name string) (*Tag, error) {
	return one(ctx, q, fmt.Sprintf("tag %q not found", name),
		selectTag+` WHERE t.name = ? GROUP BY t.id`, name)
}

func one(ctx context.Context, q storage.Querier, missing, query string, args ...any) (*Tag, error) {
	var t Tag
	err := q.QueryRowContext(ctx, query, args...).
		Scan(&t.ID, &t.Name, &t.Color, &t.CreatedAt, &t.NoteCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.New(errs.NotFound, missing)
	}
	if err != nil {
		return nil, storage.Classify("get tag", err)
	}
	return &t, nil
}

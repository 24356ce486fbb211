package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/HendryAvila/sidenote/internal/errs"
	"github.com/HendryAvila/sidenote/internal/events"
	"github.com/HendryAvila/sidenote/internal/notes"
	"github.com/HendryAvila/sidenote/internal/obs"
)

const (
	// DefaultAutoSaveInterval is the debounce window for autosave.
	DefaultAutoSaveInterval = 30 * time.Second
	minAutoSaveInterval     = time.Second
)

// stopper is the part of *time.Timer the autosave needs.
type stopper interface {
	Stop() bool
}

func realAfterFunc(d time.Duration, f func()) stopper {
	return time.AfterFunc(d, f)
}

// NoteController wraps the note repository and owns the autosave state.
//
// Autosave keeps one single-shot timer for all notes. Every scheduled edit
// is merged into the pending set (latest wins per field) and restarts the
// timer; when it fires, every pending note is saved.
type NoteController struct {
	repo *notes.Repository
	log  *slog.Logger
	sub  *events.Subscription

	mu          sync.Mutex
	pending     map[int64]notes.UpdateParams
	current     int64
	enabled     bool
	interval    time.Duration
	timer       stopper
	afterFunc   func(time.Duration, func()) stopper
	listVersion uint64
	status      string
}

// NewNoteController creates a controller and subscribes it to note events.
func NewNoteController(repo *notes.Repository, bus *events.Bus) *NoteController {
	c := &NoteController{
		repo:      repo,
		log:       obs.Pkg("app.notes"),
		pending:   map[int64]notes.UpdateParams{},
		enabled:   true,
		interval:  DefaultAutoSaveInterval,
		afterFunc: realAfterFunc,
	}
	if bus != nil {
		c.sub = bus.Register(events.HandlerMap{
			events.NoteCreated: c.onCreated,
			events.NoteUpdated: c.onUpdated,
			events.NoteDeleted: c.onDeleted,
		})
	}
	return c
}

// ─── Operations ──────────────────────────────────────────────────────────────

func (c *NoteController) Create(ctx context.Context, title, content string, tagIDs []int64) Result {
	id, err := c.repo.Create(ctx, notes.CreateParams{Title: title, Content: content, TagIDs: tagIDs})
	if err != nil {
		return fail(c.log, "create note", err)
	}
	return OK(NoteRef{NoteID: id, Title: strings.TrimSpace(title)})
}

func (c *NoteController) Update(ctx context.Context, id int64, p notes.UpdateParams) Result {
	n, err := c.repo.Update(ctx, id, p)
	if err != nil {
		return fail(c.log, "update note", err)
	}
	return OK(n)
}

func (c *NoteController) Delete(ctx context.Context, id int64) Result {
	n, err := c.repo.Get(ctx, id)
	if err != nil {
		return fail(c.log, "delete note", err)
	}
	if err := c.repo.Delete(ctx, id); err != nil {
		return fail(c.log, "delete note", err)
	}
	return OK(NoteRef{NoteID: id, Title: n.Title})
}

func (c *NoteController) Get(ctx context.Context, id int64) Result {
	n, err := c.repo.Get(ctx, id)
	if err != nil {
		return fail(c.log, "get note", err)
	}
	return OK(n)
}

func (c *NoteController) List(ctx context.Context, f notes.Filter) Result {
	list, err := c.repo.List(ctx, f)
	if err != nil {
		return fail(c.log, "list notes", err)
	}
	return OK(NoteList{Notes: list, TotalCount: len(list)})
}

// Search falls back to a plain listing when keyword is blank.
func (c *NoteController) Search(ctx context.Context, keyword string, limit int) Result {
	kw := strings.TrimSpace(keyword)
	if kw == "" {
		if limit <= 0 {
			limit = 50
		}
		return c.List(ctx, notes.Filter{Limit: limit})
	}
	list, err := c.repo.Search(ctx, kw, limit)
	if err != nil {
		return fail(c.log, "search notes", err)
	}
	return OK(NoteList{Notes: list, Keyword: keyword, TotalCount: len(list)})
}

func (c *NoteController) ByTags(ctx context.Context, tagIDs []int64) Result {
	list, err := c.repo.ByTags(ctx, tagIDs)
	if err != nil {
		return fail(c.log, "notes by tags", err)
	}
	return OK(NoteList{Notes: list, TagIDs: tagIDs, TotalCount: len(list)})
}

func (c *NoteController) Recent(ctx context.Context, limit int) Result {
	list, err := c.repo.Recent(ctx, limit)
	if err != nil {
		return fail(c.log, "recent notes", err)
	}
	return OK(NoteList{Notes: list, TotalCount: len(list)})
}

func (c *NoteController) AddTag(ctx context.Context, noteID, tagID int64) Result {
	changed, err := c.repo.AddTag(ctx, noteID, tagID)
	if err != nil {
		return fail(c.log, "add tag", err)
	}
	return OK(NoteTagChange{NoteID: noteID, TagID: tagID, Changed: changed})
}

func (c *NoteController) RemoveTag(ctx context.Context, noteID, tagID int64) Result {
	changed, err := c.repo.RemoveTag(ctx, noteID, tagID)
	if err != nil {
		return fail(c.log, "remove tag", err)
	}
	return OK(NoteTagChange{NoteID: noteID, TagID: tagID, Changed: changed})
}

func (c *NoteController) PurgeDeleted(ctx context.Context) Result {
	n, err := c.repo.PurgeDeleted(ctx)
	if err != nil {
		return fail(c.log, "purge deleted notes", err)
	}
	return OK(map[string]int64{"purged": n})
}

func (c *NoteController) Count(ctx context.Context) Result {
	n, err := c.repo.Count(ctx)
	if err != nil {
		return fail(c.log, "count notes", err)
	}
	return OK(map[string]int{"notes_count": n})
}

// ─── Selection ───────────────────────────────────────────────────────────────

// Select makes id the current note. Switching to another note saves any
// pending edits first.
func (c *NoteController) Select(ctx context.Context, id int64) {
	c.mu.Lock()
	if c.current == id {
		c.mu.Unlock()
		return
	}
	flush := c.current != 0 && len(c.pending) > 0
	c.current = id
	c.mu.Unlock()

	if flush {
		c.FlushPending(ctx)
	}
	c.log.Debug("note selected", "note_id", id)
}

// Current returns the selected note id, or 0.
func (c *NoteController) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// ─── Autosave ────────────────────────────────────────────────────────────────

// ScheduleAutoSave records an edit and restarts the debounce timer. It does
// nothing while autosave is disabled.
func (c *NoteController) ScheduleAutoSave(id int64, p notes.UpdateParams) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return
	}
	c.pending[id] = c.pending[id].Merge(p)
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = c.afterFunc(c.interval, c.autoSave)
	c.log.Debug("autosave scheduled", "note_id", id, "in", c.interval)
}

func (c *NoteController) autoSave() {
	c.FlushPending(context.Background())
}

// SetAutoSaveEnabled toggles autosave. Disabling stops the timer but keeps
// pending edits for FlushPending.
func (c *NoteController) SetAutoSaveEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
	if !enabled && c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// SetAutoSaveInterval changes the debounce window, clamped to at least 1s.
// It applies from the next scheduled edit.
func (c *NoteController) SetAutoSaveInterval(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interval = max(d, minAutoSaveInterval)
}

// AutoSaveInterval returns the current debounce window.
func (c *NoteController) AutoSaveInterval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interval
}

// Dirty reports whether id has unsaved edits.
func (c *NoteController) Dirty(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[id]
	return ok
}

// FlushPending stops the timer and saves every pending note. A note whose
// save fails stays dirty with its edits and is not rescheduled.
func (c *NoteController) FlushPending(ctx context.Context) Result {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	batch := c.pending
	c.pending = map[int64]notes.UpdateParams{}
	c.mu.Unlock()

	ids := make([]int64, 0, len(batch))
	for id := range batch {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	report := SaveReport{Saved: []int64{}, Failed: []int64{}}
	for _, id := range ids {
		p := batch[id]
		if _, err := c.repo.Update(ctx, id, p); err != nil {
			if errs.Is(err, errs.NotFound) {
				c.log.Warn("autosave dropped edits for missing note", "note_id", id)
				continue
			}
			c.log.Warn("autosave failed", "note_id", id, "err", err)
			report.Failed = append(report.Failed, id)
			c.mu.Lock()
			// Edits scheduled during the save are newer and win.
			c.pending[id] = p.Merge(c.pending[id])
			c.mu.Unlock()
			continue
		}
		c.log.Debug("autosaved", "note_id", id)
		report.Saved = append(report.Saved, id)
	}

	if len(report.Failed) > 0 {
		return Result{
			Success: false,
			Data:    report,
			Error:   fmt.Sprintf("%d note(s) could not be saved", len(report.Failed)),
			Code:    errs.Storage,
		}
	}
	return OK(report)
}

// Close flushes pending edits and detaches from the bus.
func (c *NoteController) Close(ctx context.Context) Result {
	r := c.FlushPending(ctx)
	c.sub.Cancel()
	return r
}

// ─── Derived state ───────────────────────────────────────────────────────────

// ListVersion increases every time the note list changes.
func (c *NoteController) ListVersion() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listVersion
}

// Status returns the latest status line.
func (c *NoteController) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *NoteController) onCreated(ev events.Event) error {
	p, _ := ev.Payload.(events.NotePayload)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listVersion++
	c.status = "Note created: " + p.Title
	return nil
}

func (c *NoteController) onUpdated(events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listVersion++
	c.status = "Note saved"
	return nil
}

func (c *NoteController) onDeleted(ev events.Event) error {
	p, ok := ev.Payload.(events.NotePayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T", ev.Payload)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, p.ID)
	if c.current == p.ID {
		c.current = 0
	}
	c.listVersion++
	c.status = "Note deleted: " + p.Title
	return nil
}

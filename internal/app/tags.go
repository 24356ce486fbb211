package app

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/HendryAvila/sidenote/internal/events"
	"github.com/HendryAvila/sidenote/internal/obs"
	"github.com/HendryAvila/sidenote/internal/tags"
)

// Palette is the sequence new tags take their colour from.
var Palette = []string{
	"#007ACC", "#28A745", "#DC3545", "#FFC107", "#6F42C1",
	"#FD7E14", "#20C997", "#E83E8C", "#6C757D", "#17A2B8",
}

// TagController wraps the tag repository. It caches the full tag list
// and tracks the tag filter selection; both follow tag events.
type TagController struct {
	repo *tags.Repository
	log  *slog.Logger
	sub  *events.Subscription

	mu       sync.Mutex
	cached   []tags.Tag
	gen      uint64
	selected []int64
}

// NewTagController creates a controller and subscribes it to tag and
// association events.
func NewTagController(repo *tags.Repository, bus *events.Bus) *TagController {
	c := &TagController{repo: repo, log: obs.Pkg("app.tags")}
	if bus != nil {
		invalidate := func(events.Event) error { c.invalidate(); return nil }
		c.sub = bus.Register(events.HandlerMap{
			events.TagCreated:     invalidate,
			events.TagUpdated:     invalidate,
			events.TagDeleted:     c.onDeleted,
			events.NoteCreated:    invalidate,
			events.NoteDeleted:    invalidate,
			events.NoteUpdated:    invalidate,
			events.NoteTagAdded:   invalidate,
			events.NoteTagRemoved: invalidate,
		})
	}
	return c
}

// Close detaches the controller from the bus.
func (c *TagController) Close() { c.sub.Cancel() }

// ─── Operations ──────────────────────────────────────────────────────────────

// Create adds a tag. An empty colour takes the next unused palette colour.
func (c *TagController) Create(ctx context.Context, name, color string) Result {
	if strings.TrimSpace(color) == "" {
		color = c.nextColor(ctx)
	}
	id, err := c.repo.Create(ctx, name, color)
	if err != nil {
		return fail(c.log, "create tag", err)
	}
	t, err := c.repo.Get(ctx, id)
	if err != nil {
		return fail(c.log, "create tag", err)
	}
	return OK(TagRef{TagID: id, Name: t.Name, Color: t.Color})
}

func (c *TagController) Update(ctx context.Context, id int64, p tags.UpdateParams) Result {
	t, err := c.repo.Update(ctx, id, p)
	if err != nil {
		return fail(c.log, "update tag", err)
	}
	return OK(t)
}

// Delete removes an unused tag; with force it also drops the associations.
func (c *TagController) Delete(ctx context.Context, id int64, force bool) Result {
	t, err := c.repo.Get(ctx, id)
	if err != nil {
		return fail(c.log, "delete tag", err)
	}
	if force {
		err = c.repo.ForceDelete(ctx, id)
	} else {
		err = c.repo.Delete(ctx, id)
	}
	if err != nil {
		return fail(c.log, "delete tag", err)
	}
	return OK(TagRef{TagID: id, Name: t.Name, Force: force})
}

func (c *TagController) Get(ctx context.Context, id int64) Result {
	t, err := c.repo.Get(ctx, id)
	if err != nil {
		return fail(c.log, "get tag", err)
	}
	return OK(t)
}

func (c *TagController) GetByName(ctx context.Context, name string) Result {
	t, err := c.repo.GetByName(ctx, name)
	if err != nil {
		return fail(c.log, "get tag by name", err)
	}
	return OK(t)
}

// List returns tags. The default options are served from the cache.
func (c *TagController) List(ctx context.Context, opts tags.ListOptions) Result {
	var (
		list []tags.Tag
		err  error
	)
	if opts == (tags.ListOptions{}) {
		list, err = c.all(ctx)
	} else {
		list, err = c.repo.List(ctx, opts)
	}
	if err != nil {
		return fail(c.log, "list tags", err)
	}
	return OK(TagList{Tags: list, TotalCount: len(list)})
}

func (c *TagController) Search(ctx context.Context, keyword string, limit int) Result {
	list, err := c.repo.Search(ctx, strings.TrimSpace(keyword), limit)
	if err != nil {
		return fail(c.log, "search tags", err)
	}
	return OK(TagList{Tags: list, Keyword: keyword, TotalCount: len(list)})
}

func (c *TagController) Popular(ctx context.Context, limit int) Result {
	list, err := c.repo.Popular(ctx, limit)
	if err != nil {
		return fail(c.log, "popular tags", err)
	}
	return OK(TagList{Tags: list, TotalCount: len(list)})
}

func (c *TagController) Unused(ctx context.Context) Result {
	list, err := c.repo.Unused(ctx)
	if err != nil {
		return fail(c.log, "unused tags", err)
	}
	return OK(TagList{Tags: list, TotalCount: len(list)})
}

func (c *TagController) ForNote(ctx context.Context, noteID int64) Result {
	list, err := c.repo.ForNote(ctx, noteID)
	if err != nil {
		return fail(c.log, "tags for note", err)
	}
	return OK(TagList{Tags: list, NoteID: noteID, TotalCount: len(list)})
}

func (c *TagController) GetOrCreate(ctx context.Context, name, color string) Result {
	if strings.TrimSpace(color) == "" {
		color = c.nextColor(ctx)
	}
	t, err := c.repo.GetOrCreate(ctx, name, color)
	if err != nil {
		return fail(c.log, "get or create tag", err)
	}
	return OK(t)
}

// Statistics summarises usage over all tags.
func (c *TagController) Statistics(ctx context.Context) Result {
	s, err := c.stats(ctx)
	if err != nil {
		return fail(c.log, "tag statistics", err)
	}
	return OK(s)
}

func (c *TagController) stats(ctx context.Context) (TagStats, error) {
	list, err := c.all(ctx)
	if err != nil {
		return TagStats{}, err
	}
	var s TagStats
	s.TotalTags = len(list)
	for i := range list {
		t := list[i]
		if t.NoteCount > 0 {
			s.UsedTags++
		} else {
			s.UnusedTags++
		}
		s.TotalUsage += t.NoteCount
		if s.MostUsedTag == nil || t.NoteCount > s.MostUsedTag.NoteCount {
			s.MostUsedTag = &t
		}
	}
	if s.TotalTags > 0 {
		s.AverageUsage = float64(s.TotalUsage) / float64(s.TotalTags)
	}
	return s, nil
}

// ─── Selection ───────────────────────────────────────────────────────────────

// SetSelected replaces the tag filter selection.
func (c *TagController) SetSelected(ids []int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = slices.Clone(ids)
}

// Selected returns the tag filter selection.
func (c *TagController) Selected() []int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.selected)
}

// ─── Cache ───────────────────────────────────────────────────────────────────

func (c *TagController) all(ctx context.Context) ([]tags.Tag, error) {
	c.mu.Lock()
	if c.cached != nil {
		out := slices.Clone(c.cached)
		c.mu.Unlock()
		return out, nil
	}
	gen := c.gen
	c.mu.Unlock()

	list, err := c.repo.List(ctx, tags.ListOptions{})
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	// An event during the query makes this result stale.
	if c.gen == gen {
		c.cached = list
	}
	c.mu.Unlock()
	return slices.Clone(list), nil
}

func (c *TagController) invalidate() {
	c.mu.Lock()
	c.cached = nil
	c.gen++
	c.mu.Unlock()
}

func (c *TagController) onDeleted(ev events.Event) error {
	p, _ := ev.Payload.(events.TagPayload)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cached = nil
	c.gen++
	c.selected = slices.DeleteFunc(c.selected, func(id int64) bool { return id == p.ID })
	return nil
}

// nextColor returns the first palette colour no tag uses yet, or the first
// palette colour when all are taken.
func (c *TagController) nextColor(ctx context.Context) string {
	list, err := c.all(ctx)
	if err != nil {
		c.log.Warn("palette lookup failed", "err", err)
		return Palette[0]
	}
	used := make(map[string]bool, len(list))
	for _, t := range list {
		used[strings.ToUpper(t.Color)] = true
	}
	for _, color := range Palette {
		if !used[color] {
			return color
		}
	}
	return Palette[0]
}

package notes_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/HendryAvila/sidenote/internal/errs"
	"github.com/HendryAvila/sidenote/internal/events"
	"github.com/HendryAvila/sidenote/internal/notes"
	"github.com/HendryAvila/sidenote/internal/obs"
	"github.com/HendryAvila/sidenote/internal/storage"
	"pgregory.net/rapid"
)

type fixture struct {
	eng  *storage.Engine
	bus  *events.Bus
	repo *notes.Repository
	seen []events.Type
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	eng, err := storage.Open(storage.Config{
		Path:   filepath.Join(t.TempDir(), "notes.db"),
		Logger: obs.Discard(),
	})
	if err != nil {
		t.Fatalf("failed to open engine: %v", err)
	}
	t.Cleanup(func() { _ = eng.Close() })

	f := &fixture{eng: eng, bus: events.New(obs.Discard())}
	f.repo = notes.New(eng, f.bus)
	for _, typ := range []events.Type{
		events.NoteCreated, events.NoteUpdated, events.NoteDeleted,
		events.NoteTagAdded, events.NoteTagRemoved,
	} {
		f.bus.Subscribe(typ, func(ev events.Event) error {
			f.seen = append(f.seen, ev.Type)
			return nil
		})
	}
	return f
}

func (f *fixture) tag(t *testing.T, name string) int64 {
	t.Helper()
	res, err := f.eng.Execute(context.Background(), storage.FetchLastID,
		`INSERT INTO tags (name, color, created_at) VALUES (?, '#007ACC', ?)`, name, storage.Now())
	if err != nil {
		t.Fatalf("insert tag %q: %v", name, err)
	}
	return res.LastInsertID
}

func (f *fixture) create(t *testing.T, title, content string, tagIDs ...int64) int64 {
	t.Helper()
	id, err := f.repo.Create(context.Background(), notes.CreateParams{Title: title, Content: content, TagIDs: tagIDs})
	if err != nil {
		t.Fatalf("Create(%q): %v", title, err)
	}
	return id
}

func ptr[T any](v T) *T { return &v }

func tagNames(n *notes.Note) []string {
	out := make([]string, 0, len(n.Tags))
	for _, t := range n.Tags {
		out = append(out, t.Name)
	}
	return out
}

// ─── Create / Get ───────────────────────────────────────────────────────────

func TestCreate_ThenGet(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	id := f.create(t, "  Shopping  ", "milk, eggs")
	n, err := f.repo.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if n.Title != "Shopping" {
		t.Errorf("Title = %q, want %q", n.Title, "Shopping")
	}
	if n.Content != "milk, eggs" {
		t.Errorf("Content = %q", n.Content)
	}
	if n.IsDeleted {
		t.Error("IsDeleted = true")
	}
	if n.CreatedAt != n.UpdatedAt {
		t.Errorf("CreatedAt %q != UpdatedAt %q", n.CreatedAt, n.UpdatedAt)
	}
	if len(n.Tags) != 0 {
		t.Errorf("Tags = %v, want empty", n.Tags)
	}
	if len(f.seen) != 1 || f.seen[0] != events.NoteCreated {
		t.Errorf("events = %v, want [note_created]", f.seen)
	}
}

func TestCreate_RoundTripProperty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rapid.Check(t, func(rt *rapid.T) {
		title := rapid.StringMatching(`[ ]{0,2}[A-Za-z0-9笔记]{1,20}[ ]{0,2}`).Draw(rt, "title")
		content := rapid.StringMatching(`[a-zA-Z0-9 \n中文，。#*_-]{0,200}`).Draw(rt, "content")

		id, err := f.repo.Create(ctx, notes.CreateParams{Title: title, Content: content})
		if err != nil {
			rt.Fatalf("Create: %v", err)
		}
		n, err := f.repo.Get(ctx, id)
		if err != nil {
			rt.Fatalf("Get: %v", err)
		}
		if n.Title != strings.TrimSpace(title) || n.Content != content {
			rt.Fatalf("got (%q, %q), want (%q, %q)", n.Title, n.Content, strings.TrimSpace(title), content)
		}
		if n.IsDeleted || n.CreatedAt != n.UpdatedAt {
			rt.Fatalf("bad fresh note: %+v", n)
		}
	})
}

func TestCreate_EmptyTitleIsValidation(t *testing.T) {
	f := newFixture(t)
	for _, title := range []string{"", "   ", "\t\n"} {
		_, err := f.repo.Create(context.Background(), notes.CreateParams{Title: title})
		if !errs.Is(err, errs.Validation) {
			t.Errorf("Create(%q) err = %v, want validation", title, err)
		}
	}
	if len(f.seen) != 0 {
		t.Errorf("events = %v, want none", f.seen)
	}
}

func TestCreate_WithTagsIsAtomic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	t1 := f.tag(t, "work")

	id := f.create(t, "with tags", "", t1, t1)
	n, err := f.repo.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got := tagNames(n); len(got) != 1 || got[0] != "work" {
		t.Errorf("tags = %v, want [work]", got)
	}

	_, err = f.repo.Create(ctx, notes.CreateParams{Title: "bad", TagIDs: []int64{t1, 999}})
	if !errs.Is(err, errs.Validation) {
		t.Fatalf("err = %v, want validation", err)
	}
	count, _ := f.repo.Count(ctx)
	if count != 1 {
		t.Errorf("Count = %d after failed create, want 1", count)
	}
}

func TestGet_MissingIsNotFound(t *testing.T) {
	f := newFixture(t)
	if _, err := f.repo.Get(context.Background(), 42); !errs.Is(err, errs.NotFound) {
		t.Errorf("err = %v, want not_found", err)
	}
}

// ─── Update ─────────────────────────────────────────────────────────────────

func TestUpdate_PartialFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.create(t, "title", "body")

	n, err := f.repo.Update(ctx, id, notes.UpdateParams{Content: ptr("new body")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if n.Title != "title" || n.Content != "new body" {
		t.Errorf("after update = (%q, %q)", n.Title, n.Content)
	}

	n, err = f.repo.Update(ctx, id, notes.UpdateParams{})
	if err != nil {
		t.Fatalf("empty Update: %v", err)
	}
	if n.UpdatedAt < n.CreatedAt {
		t.Errorf("UpdatedAt %q before CreatedAt %q", n.UpdatedAt, n.CreatedAt)
	}
}

func TestUpdate_EmptyTitleIsValidation(t *testing.T) {
	f := newFixture(t)
	id := f.create(t, "title", "")
	_, err := f.repo.Update(context.Background(), id, notes.UpdateParams{Title: ptr("  ")})
	if !errs.Is(err, errs.Validation) {
		t.Errorf("err = %v, want validation", err)
	}
}

func TestUpdate_TagsAreReplaced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	t1, t2 := f.tag(t, "t1"), f.tag(t, "t2")
	id := f.create(t, "n", "", t1)

	if _, err := f.repo.Update(ctx, id, notes.UpdateParams{TagIDs: &[]int64{t2}}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	n, err := f.repo.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if len(n.Tags) != 1 || n.Tags[0].ID != t2 {
		t.Errorf("tags = %+v, want [t2]", n.Tags)
	}

	if _, err := f.repo.Update(ctx, id, notes.UpdateParams{TagIDs: &[]int64{}}); err != nil {
		t.Fatal(err)
	}
	n, _ = f.repo.Get(ctx, id)
	if len(n.Tags) != 0 {
		t.Errorf("tags = %+v, want none", n.Tags)
	}
}

func TestUpdate_MissingIsNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.repo.Update(context.Background(), 7, notes.UpdateParams{Title: ptr("x")})
	if !errs.Is(err, errs.NotFound) {
		t.Errorf("err = %v, want not_found", err)
	}
}

func TestUpdateParams_Merge(t *testing.T) {
	a := notes.UpdateParams{Title: ptr("a"), Content: ptr("first")}
	b := notes.UpdateParams{Content: ptr("second")}

	got := a.Merge(b)
	if *got.Title != "a" || *got.Content != "second" || got.TagIDs != nil {
		t.Errorf("Merge = %+v", got)
	}
	if !(notes.UpdateParams{}).Empty() || got.Empty() {
		t.Error("Empty() mismatch")
	}
}

// ─── Delete ─────────────────────────────────────────────────────────────────

func TestDelete_SoftDeletesOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	t1 := f.tag(t, "t1")
	id := f.create(t, "doomed", "", t1)

	if err := f.repo.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := f.repo.Get(ctx, id); !errs.Is(err, errs.NotFound) {
		t.Errorf("Get after delete err = %v, want not_found", err)
	}
	if err := f.repo.Delete(ctx, id); !errs.Is(err, errs.NotFound) {
		t.Errorf("second Delete err = %v, want not_found", err)
	}

	res, err := f.eng.Execute(ctx, storage.FetchOne, `SELECT is_deleted FROM notes WHERE id = ?`, id)
	if err != nil {
		t.Fatal(err)
	}
	if res.First()["is_deleted"] != int64(1) {
		t.Errorf("row is_deleted = %v, want 1", res.First()["is_deleted"])
	}
	links, _ := f.eng.Execute(ctx, storage.FetchAll, `SELECT * FROM note_tags WHERE note_id = ?`, id)
	if len(links.Rows) != 0 {
		t.Errorf("associations survived delete: %v", links.Rows)
	}

	deletes := 0
	for _, ev := range f.seen {
		if ev == events.NoteDeleted {
			deletes++
		}
	}
	if deletes != 1 {
		t.Errorf("note_deleted events = %d, want 1", deletes)
	}
}

func TestPurgeDeleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	keep := f.create(t, "keep", "")
	gone := f.create(t, "gone", "")
	if err := f.repo.Delete(ctx, gone); err != nil {
		t.Fatal(err)
	}

	n, err := f.repo.PurgeDeleted(ctx)
	if err != nil {
		t.Fatalf("PurgeDeleted: %v", err)
	}
	if n != 1 {
		t.Errorf("purged = %d, want 1", n)
	}
	if _, err := f.repo.Get(ctx, keep); err != nil {
		t.Errorf("live note lost: %v", err)
	}
}

// ─── Queries ────────────────────────────────────────────────────────────────

func TestSearch_MatchesTitleOrContent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	py := f.create(t, "Python笔记", "Python内容")
	f.create(t, "Go", "something else")

	got, err := f.repo.Search(ctx, "Python", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].ID != py {
		t.Fatalf("Search(Python) = %+v, want note %d", got, py)
	}

	a := f.create(t, "甲", "学习编程语言的笔记")
	b := f.create(t, "乙", "另一篇关于编程语言")
	got, err = f.repo.Search(ctx, "编程语言", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("Search(编程语言) returned %d notes, want 2", len(got))
	}
	// Same-second timestamps fall back to id, newest first.
	if got[0].ID != b || got[1].ID != a {
		t.Errorf("order = [%d %d], want [%d %d]", got[0].ID, got[1].ID, b, a)
	}
}

func TestSearch_WildcardsAreLiteral(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pct := f.create(t, "Progress", "done 100% of it")
	f.create(t, "Budget", "spent 1000 euros")
	under := f.create(t, "snake_case", "")
	f.create(t, "snakeXcase", "")

	got, err := f.repo.Search(ctx, "100%", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != pct {
		t.Errorf("Search(100%%) = %+v, want only note %d", got, pct)
	}

	got, err = f.repo.Search(ctx, "e_c", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != under {
		t.Errorf("Search(e_c) = %+v, want only note %d", got, under)
	}
}

func TestSearch_OrderFollowsUpdatedAt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	older := f.create(t, "older", "shared phrase")
	newer := f.create(t, "newer", "shared phrase")

	if _, err := f.eng.Execute(ctx, storage.FetchNone,
		`UPDATE notes SET updated_at = '2001-01-01 00:00:00' WHERE id = ?`, newer); err != nil {
		t.Fatal(err)
	}
	got, err := f.repo.Search(ctx, "shared", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].ID != older {
		t.Errorf("first = %d, want %d", got[0].ID, older)
	}
}

func TestList_TagFilterIsDistinctUnion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	t1, t2, t3 := f.tag(t, "a"), f.tag(t, "b"), f.tag(t, "c")
	both := f.create(t, "both", "", t1, t2)
	only2 := f.create(t, "only2", "", t2)
	f.create(t, "other", "", t3)

	got, err := f.repo.ByTags(ctx, []int64{t1, t2})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("ByTags returned %d notes, want 2 (no duplicates)", len(got))
	}
	ids := map[int64]bool{got[0].ID: true, got[1].ID: true}
	if !ids[both] || !ids[only2] {
		t.Errorf("ByTags ids = %v", ids)
	}
	for _, n := range got {
		if n.ID == both && strings.Join(tagNames(&n), ",") != "a,b" {
			t.Errorf("tags of both = %v, want [a b]", tagNames(&n))
		}
	}
}

func TestList_OrderLimitOffset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, title := range []string{"c", "a", "b", "d"} {
		f.create(t, title, "")
	}

	got, err := f.repo.List(ctx, notes.Filter{OrderBy: "title", OrderDirection: "asc", Limit: 2, Offset: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0].Title != "b" || got[1].Title != "c" {
		t.Errorf("page = %+v", got)
	}

	// Offset without limit is ignored; unknown columns fall back to updated_at.
	got, err = f.repo.List(ctx, notes.Filter{OrderBy: "title; DROP TABLE notes", Offset: 3})
	if err != nil {
		t.Fatalf("List with bad order: %v", err)
	}
	if len(got) != 4 {
		t.Errorf("len = %d, want 4", len(got))
	}
}

func TestRecentAndCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		f.create(t, "n", "")
	}
	recent, err := f.repo.Recent(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 10 {
		t.Errorf("Recent(0) = %d notes, want 10", len(recent))
	}
	n, err := f.repo.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 12 {
		t.Errorf("Count = %d, want 12", n)
	}
}

// ─── Tag associations ───────────────────────────────────────────────────────

func TestAddRemoveTag(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	t1 := f.tag(t, "t1")
	id := f.create(t, "n", "")
	f.seen = nil

	changed, err := f.repo.AddTag(ctx, id, t1)
	if err != nil || !changed {
		t.Fatalf("AddTag = (%v, %v), want (true, nil)", changed, err)
	}
	changed, err = f.repo.AddTag(ctx, id, t1)
	if err != nil || changed {
		t.Errorf("repeat AddTag = (%v, %v), want (false, nil)", changed, err)
	}

	changed, err = f.repo.RemoveTag(ctx, id, t1)
	if err != nil || !changed {
		t.Fatalf("RemoveTag = (%v, %v), want (true, nil)", changed, err)
	}
	changed, err = f.repo.RemoveTag(ctx, id, t1)
	if err != nil || changed {
		t.Errorf("repeat RemoveTag = (%v, %v), want (false, nil)", changed, err)
	}

	want := []events.Type{events.NoteTagAdded, events.NoteTagRemoved}
	if len(f.seen) != 2 || f.seen[0] != want[0] || f.seen[1] != want[1] {
		t.Errorf("events = %v, want %v", f.seen, want)
	}

	if _, err := f.repo.AddTag(ctx, id, 999); !errs.Is(err, errs.NotFound) {
		t.Errorf("AddTag unknown tag err = %v, want not_found", err)
	}
	if _, err := f.repo.AddTag(ctx, 999, t1); !errs.Is(err, errs.NotFound) {
		t.Errorf("AddTag unknown note err = %v, want not_found", err)
	}
}

// Package app is the orchestration layer. Controllers wrap the
// repositories, convert every outcome into a Result, and keep the derived
// state a UI needs: autosave, selection, status line, cached tag lists.
package app

import (
	"log/slog"

	"github.com/HendryAvila/sidenote/internal/errs"
	"github.com/HendryAvila/sidenote/internal/notes"
	"github.com/HendryAvila/sidenote/internal/obs"
	"github.com/HendryAvila/sidenote/internal/tags"
)

// Result is the uniform outcome of every app operation.
type Result struct {
	Success bool      `json:"success"`
	Data    any       `json:"data,omitempty"`
	Error   string    `json:"error,omitempty"`
	Code    errs.Code `json:"code,omitempty"`
}

// OK wraps data in a successful Result.
func OK(data any) Result {
	return Result{Success: true, Data: data}
}

// Fail converts err into a failed Result.
func Fail(err error) Result {
	return fail(obs.Pkg("app"), "operation", err)
}

// fail logs storage-class errors with the operation name. Validation,
// not-found and conflict outcomes are expected and stay quiet.
func fail(log *slog.Logger, op string, err error) Result {
	code := errs.CodeOf(err)
	if code == errs.Storage {
		log.Error(op+" failed", "err", err)
	} else {
		log.Debug(op+" rejected", "code", code, "err", err)
	}
	return Result{Success: false, Error: errs.MessageOf(err), Code: code}
}

// ─── Payloads ────────────────────────────────────────────────────────────────

// NoteRef identifies a note in create/delete results.
type NoteRef struct {
	NoteID int64  `json:"note_id"`
	Title  string `json:"title"`
}

// NoteList is returned by list, search and by-tags queries.
type NoteList struct {
	Notes      []notes.Note `json:"notes"`
	Keyword    string       `json:"keyword,omitempty"`
	TagIDs     []int64      `json:"tag_ids,omitempty"`
	TotalCount int          `json:"total_count"`
}

// NoteTagChange is returned by add/remove tag.
type NoteTagChange struct {
	NoteID  int64 `json:"note_id"`
	TagID   int64 `json:"tag_id"`
	Changed bool  `json:"changed"`
}

// TagRef identifies a tag in create/delete results.
type TagRef struct {
	TagID int64  `json:"tag_id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
	Force bool   `json:"force,omitempty"`
}

// TagList is returned by tag queries.
type TagList struct {
	Tags       []tags.Tag `json:"tags"`
	Keyword    string     `json:"keyword,omitempty"`
	NoteID     int64      `json:"note_id,omitempty"`
	TotalCount int        `json:"total_count"`
}

// TagStats summarises tag usage.
type TagStats struct {
	TotalTags    int       `json:"total_tags"`
	UsedTags     int       `json:"used_tags"`
	UnusedTags   int       `json:"unused_tags"`
	TotalUsage   int       `json:"total_usage"`
	AverageUsage float64   `json:"average_usage"`
	MostUsedTag  *tags.Tag `json:"most_used_tag"`
}

// SaveReport is returned by FlushPending.
type SaveReport struct {
	Saved  []int64 `json:"saved"`
	Failed []int64 `json:"failed"`
}

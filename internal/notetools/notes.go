package notetools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/sidenote/internal/app"
	"github.com/HendryAvila/sidenote/internal/notes"
)

func tagIDsOption(desc string) mcp.ToolOption {
	return mcp.WithArray("tag_ids",
		mcp.Description(desc),
		mcp.Items(map[string]any{"type": "integer"}),
	)
}

// NoteCreateTool handles the note_create MCP tool.
type NoteCreateTool struct {
	notes *app.NoteController
}

func NewNoteCreateTool(c *app.NoteController) *NoteCreateTool {
	return &NoteCreateTool{notes: c}
}

func (t *NoteCreateTool) Definition() mcp.Tool {
	return mcp.NewTool("note_create",
		mcp.WithDescription("Create a note. Tags are attached in the same transaction; an unknown tag id fails the whole call."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Note title (trimmed, must not be empty)")),
		mcp.WithString("content", mcp.Description("Markdown body")),
		tagIDsOption("Ids of tags to attach"),
	)
}

func (t *NoteCreateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, _, err := idsArg(req, "tag_ids")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return respond(t.notes.Create(ctx, req.GetString("title", ""), req.GetString("content", ""), ids))
}

// ─── note_update ─────────────────────────────────────────────────────────────

// NoteUpdateTool handles the note_update MCP tool.
type NoteUpdateTool struct {
	notes *app.NoteController
}

func NewNoteUpdateTool(c *app.NoteController) *NoteUpdateTool {
	return &NoteUpdateTool{notes: c}
}

func (t *NoteUpdateTool) Definition() mcp.Tool {
	return mcp.NewTool("note_update",
		mcp.WithDescription("Update a note. Omitted fields stay as they are; tag_ids replaces the whole tag set."),
		mcp.WithNumber("note_id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("content", mcp.Description("New Markdown body")),
		tagIDsOption("Replacement tag ids (empty list clears all tags)"),
		mcp.WithBoolean("debounce", mcp.Description("Queue the edit for autosave instead of writing now (default: false)")),
	)
}

func (t *NoteUpdateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := idArg(req, "note_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	p := notes.UpdateParams{
		Title:   stringPtrArg(req, "title"),
		Content: stringPtrArg(req, "content"),
	}
	ids, ok, err := idsArg(req, "tag_ids")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if ok {
		if ids == nil {
			ids = []int64{}
		}
		p.TagIDs = &ids
	}

	if boolArg(req, "debounce", false) {
		t.notes.ScheduleAutoSave(id, p)
		return respond(app.OK(map[string]any{"note_id": id, "scheduled": t.notes.Dirty(id)}))
	}
	return respond(t.notes.Update(ctx, id, p))
}

// ─── note_delete ─────────────────────────────────────────────────────────────

// NoteDeleteTool handles the note_delete MCP tool.
type NoteDeleteTool struct {
	notes *app.NoteController
}

func NewNoteDeleteTool(c *app.NoteController) *NoteDeleteTool {
	return &NoteDeleteTool{notes: c}
}

func (t *NoteDeleteTool) Definition() mcp.Tool {
	return mcp.NewTool("note_delete",
		mcp.WithDescription("Soft-delete a note. It disappears from every listing and loses its tags."),
		mcp.WithNumber("note_id", mcp.Required(), mcp.Description("Note id")),
	)
}

func (t *NoteDeleteTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := idArg(req, "note_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return respond(t.notes.Delete(ctx, id))
}

// ─── note_get ────────────────────────────────────────────────────────────────

// NoteGetTool handles the note_get MCP tool.
type NoteGetTool struct {
	notes *app.NoteController
}

func NewNoteGetTool(c *app.NoteController) *NoteGetTool {
	return &NoteGetTool{notes: c}
}

func (t *NoteGetTool) Definition() mcp.Tool {
	return mcp.NewTool("note_get",
		mcp.WithDescription("Fetch one note with its tags."),
		mcp.WithNumber("note_id", mcp.Required(), mcp.Description("Note id")),
	)
}

func (t *NoteGetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := idArg(req, "note_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return respond(t.notes.Get(ctx, id))
}

// ─── note_list ───────────────────────────────────────────────────────────────

// NoteListTool handles the note_list MCP tool.
type NoteListTool struct {
	notes *app.NoteController
}

func NewNoteListTool(c *app.NoteController) *NoteListTool {
	return &NoteListTool{notes: c}
}

func (t *NoteListTool) Definition() mcp.Tool {
	return mcp.NewTool("note_list",
		mcp.WithDescription("List live notes. Tag filtering matches notes carrying any of the given tags."),
		tagIDsOption("Only notes with at least one of these tags"),
		mcp.WithString("keyword", mcp.Description("Substring to match in title or content")),
		mcp.WithString("order_by",
			mcp.Description("Sort column (default: updated_at)"),
			mcp.Enum("id", "title", "created_at", "updated_at"),
		),
		mcp.WithString("order_direction", mcp.Description("ASC or DESC (default: DESC)"), mcp.Enum("ASC", "DESC")),
		mcp.WithNumber("limit", mcp.Description("Maximum rows (default: no limit)")),
		mcp.WithNumber("offset", mcp.Description("Rows to skip")),
	)
}

func (t *NoteListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ids, _, err := idsArg(req, "tag_ids")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return respond(t.notes.List(ctx, notes.Filter{
		TagIDs:         ids,
		SearchKeyword:  req.GetString("keyword", ""),
		OrderBy:        req.GetString("order_by", ""),
		OrderDirection: req.GetString("order_direction", ""),
		Limit:          intArg(req, "limit", 0),
		Offset:         intArg(req, "offset", 0),
	}))
}

// ─── note_search ─────────────────────────────────────────────────────────────

// NoteSearchTool handles the note_search MCP tool.
type NoteSearchTool struct {
	notes *app.NoteController
}

func NewNoteSearchTool(c *app.NoteController) *NoteSearchTool {
	return &NoteSearchTool{notes: c}
}

func (t *NoteSearchTool) Definition() mcp.Tool {
	return mcp.NewTool("note_search",
		mcp.WithDescription("Search note titles and content, most recently updated first. A blank keyword lists all notes."),
		mcp.WithString("keyword", mcp.Required(), mcp.Description("Substring to look for")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default: 50)")),
	)
}

func (t *NoteSearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return respond(t.notes.Search(ctx, req.GetString("keyword", ""), intArg(req, "limit", 0)))
}

// ─── note_add_tag / note_remove_tag ──────────────────────────────────────────

// NoteAddTagTool handles the note_add_tag MCP tool.
type NoteAddTagTool struct {
	notes *app.NoteController
}

func NewNoteAddTagTool(c *app.NoteController) *NoteAddTagTool {
	return &NoteAddTagTool{notes: c}
}

func (t *NoteAddTagTool) Definition() mcp.Tool {
	return mcp.NewTool("note_add_tag",
		mcp.WithDescription("Attach a tag to a note. Attaching twice is a no-op reported as changed=false."),
		mcp.WithNumber("note_id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithNumber("tag_id", mcp.Required(), mcp.Description("Tag id")),
	)
}

func (t *NoteAddTagTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	noteID, tagID, err := noteTagArgs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return respond(t.notes.AddTag(ctx, noteID, tagID))
}

// NoteRemoveTagTool handles the note_remove_tag MCP tool.
type NoteRemoveTagTool struct {
	notes *app.NoteController
}

func NewNoteRemoveTagTool(c *app.NoteController) *NoteRemoveTagTool {
	return &NoteRemoveTagTool{notes: c}
}

func (t *NoteRemoveTagTool) Definition() mcp.Tool {
	return mcp.NewTool("note_remove_tag",
		mcp.WithDescription("Detach a tag from a note."),
		mcp.WithNumber("note_id", mcp.Required(), mcp.Description("Note id")),
		mcp.WithNumber("tag_id", mcp.Required(), mcp.Description("Tag id")),
	)
}

func (t *NoteRemoveTagTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	noteID, tagID, err := noteTagArgs(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return respond(t.notes.RemoveTag(ctx, noteID, tagID))
}

func noteTagArgs(req mcp.CallToolRequest) (int64, int64, error) {
	noteID, err := idArg(req, "note_id")
	if err != nil {
		return 0, 0, err
	}
	tagID, err := idArg(req, "tag_id")
	if err != nil {
		return 0, 0, err
	}
	return noteID, tagID, nil
}

// ─── note_render ─────────────────────────────────────────────────────────────

// NoteRenderTool handles the note_render MCP tool.
type NoteRenderTool struct {
	app *app.App
}

func NewNoteRenderTool(a *app.App) *NoteRenderTool {
	return &NoteRenderTool{app: a}
}

func (t *NoteRenderTool) Definition() mcp.Tool {
	return mcp.NewTool("note_render",
		mcp.WithDescription("Render a note's Markdown to sanitised HTML."),
		mcp.WithNumber("note_id", mcp.Required(), mcp.Description("Note id")),
	)
}

func (t *NoteRenderTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := idArg(req, "note_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return respond(t.app.Render(ctx, id))
}

package notetools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/sidenote/internal/app"
	"github.com/HendryAvila/sidenote/internal/tags"
)

// TagCreateTool handles the tag_create MCP tool.
type TagCreateTool struct {
	tags *app.TagController
}

func NewTagCreateTool(c *app.TagController) *TagCreateTool {
	return &TagCreateTool{tags: c}
}

func (t *TagCreateTool) Definition() mcp.Tool {
	return mcp.NewTool("tag_create",
		mcp.WithDescription("Create a tag. Names are unique; without a colour the next free palette colour is used."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Tag name")),
		mcp.WithString("color", mcp.Description("Colour as #RRGGBB")),
	)
}

func (t *TagCreateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return respond(t.tags.Create(ctx, req.GetString("name", ""), req.GetString("color", "")))
}

// TagUpdateTool handles the tag_update MCP tool.
type TagUpdateTool struct {
	tags *app.TagController
}

func NewTagUpdateTool(c *app.TagController) *TagUpdateTool {
	return &TagUpdateTool{tags: c}
}

func (t *TagUpdateTool) Definition() mcp.Tool {
	return mcp.NewTool("tag_update",
		mcp.WithDescription("Rename or recolour a tag."),
		mcp.WithNumber("tag_id", mcp.Required(), mcp.Description("Tag id")),
		mcp.WithString("name", mcp.Description("New name")),
		mcp.WithString("color", mcp.Description("New colour as #RRGGBB")),
	)
}

func (t *TagUpdateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := idArg(req, "tag_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return respond(t.tags.Update(ctx, id, tags.UpdateParams{
		Name:  stringPtrArg(req, "name"),
		Color: stringPtrArg(req, "color"),
	}))
}

// TagDeleteTool handles the tag_delete MCP tool.
type TagDeleteTool struct {
	tags *app.TagController
}

func NewTagDeleteTool(c *app.TagController) *TagDeleteTool {
	return &TagDeleteTool{tags: c}
}

func (t *TagDeleteTool) Definition() mcp.Tool {
	return mcp.NewTool("tag_delete",
		mcp.WithDescription("Delete a tag. A tag still attached to notes is refused unless force is set."),
		mcp.WithNumber("tag_id", mcp.Required(), mcp.Description("Tag id")),
		mcp.WithBoolean("force", mcp.Description("Detach the tag from every note first (default: false)")),
	)
}

func (t *TagDeleteTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := idArg(req, "tag_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return respond(t.tags.Delete(ctx, id, boolArg(req, "force", false)))
}

// TagGetTool handles the tag_get MCP tool.
type TagGetTool struct {
	tags *app.TagController
}

func NewTagGetTool(c *app.TagController) *TagGetTool {
	return &TagGetTool{tags: c}
}

func (t *TagGetTool) Definition() mcp.Tool {
	return mcp.NewTool("tag_get",
		mcp.WithDescription("Fetch a tag by id or by exact name, with its live note count."),
		mcp.WithNumber("tag_id", mcp.Description("Tag id")),
		mcp.WithString("name", mcp.Description("Exact tag name, used when tag_id is absent")),
	)
}

func (t *TagGetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if _, ok := req.GetArguments()["tag_id"]; !ok {
		name := req.GetString("name", "")
		if name == "" {
			return mcp.NewToolResultError("'tag_id' or 'name' is required"), nil
		}
		return respond(t.tags.GetByName(ctx, name))
	}
	id, err := idArg(req, "tag_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return respond(t.tags.Get(ctx, id))
}

// TagListTool handles the tag_list MCP tool.
type TagListTool struct {
	tags *app.TagController
}

func NewTagListTool(c *app.TagController) *TagListTool {
	return &TagListTool{tags: c}
}

func (t *TagListTool) Definition() mcp.Tool {
	return mcp.NewTool("tag_list",
		mcp.WithDescription("List tags with live note counts, by name unless ordered otherwise."),
		mcp.WithNumber("note_id", mcp.Description("Only the tags of this note")),
		mcp.WithBoolean("include_unused", mcp.Description("Include tags on no live note (default: true)")),
		mcp.WithString("order_by",
			mcp.Description("Sort column (default: name)"),
			mcp.Enum("id", "name", "created_at"),
		),
		mcp.WithString("order_direction", mcp.Description("ASC or DESC (default: ASC)"), mcp.Enum("ASC", "DESC")),
		mcp.WithNumber("limit", mcp.Description("Maximum rows")),
		mcp.WithNumber("offset", mcp.Description("Rows to skip")),
	)
}

func (t *TagListTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if _, ok := req.GetArguments()["note_id"]; ok {
		id, err := idArg(req, "note_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return respond(t.tags.ForNote(ctx, id))
	}

	opts := tags.ListOptions{
		OrderBy:        req.GetString("order_by", ""),
		OrderDirection: req.GetString("order_direction", ""),
		Limit:          intArg(req, "limit", 0),
		Offset:         intArg(req, "offset", 0),
	}
	if _, ok := req.GetArguments()["include_unused"]; ok {
		v := boolArg(req, "include_unused", true)
		opts.IncludeUnused = &v
	}
	return respond(t.tags.List(ctx, opts))
}

// TagSearchTool handles the tag_search MCP tool.
type TagSearchTool struct {
	tags *app.TagController
}

func NewTagSearchTool(c *app.TagController) *TagSearchTool {
	return &TagSearchTool{tags: c}
}

func (t *TagSearchTool) Definition() mcp.Tool {
	return mcp.NewTool("tag_search",
		mcp.WithDescription("Find tags whose name contains a keyword."),
		mcp.WithString("keyword", mcp.Required(), mcp.Description("Substring of the name")),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default: 20)")),
	)
}

func (t *TagSearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return respond(t.tags.Search(ctx, req.GetString("keyword", ""), intArg(req, "limit", 0)))
}

// TagPopularTool handles the tag_popular MCP tool.
type TagPopularTool struct {
	tags *app.TagController
}

func NewTagPopularTool(c *app.TagController) *TagPopularTool {
	return &TagPopularTool{tags: c}
}

func (t *TagPopularTool) Definition() mcp.Tool {
	return mcp.NewTool("tag_popular",
		mcp.WithDescription("The most used tags, by live note count."),
		mcp.WithNumber("limit", mcp.Description("Maximum results (default: 10)")),
	)
}

func (t *TagPopularTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return respond(t.tags.Popular(ctx, intArg(req, "limit", 0)))
}

// TagUnusedTool handles the tag_unused MCP tool.
type TagUnusedTool struct {
	tags *app.TagController
}

func NewTagUnusedTool(c *app.TagController) *TagUnusedTool {
	return &TagUnusedTool{tags: c}
}

func (t *TagUnusedTool) Definition() mcp.Tool {
	return mcp.NewTool("tag_unused",
		mcp.WithDescription("Tags attached to no live note. Candidates for a safe delete."),
	)
}

func (t *TagUnusedTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return respond(t.tags.Unused(ctx))
}

// TagGetOrCreateTool handles the tag_get_or_create MCP tool.
type TagGetOrCreateTool struct {
	tags *app.TagController
}

func NewTagGetOrCreateTool(c *app.TagController) *TagGetOrCreateTool {
	return &TagGetOrCreateTool{tags: c}
}

func (t *TagGetOrCreateTool) Definition() mcp.Tool {
	return mcp.NewTool("tag_get_or_create",
		mcp.WithDescription("Return the tag with this name, creating it when missing. The colour only applies to a new tag."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Tag name")),
		mcp.WithString("color", mcp.Description("Colour for a new tag")),
	)
}

func (t *TagGetOrCreateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return respond(t.tags.GetOrCreate(ctx, req.GetString("name", ""), req.GetString("color", "")))
}

package notetools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/sidenote/internal/app"
)

// SettingsGetTool handles the settings_get MCP tool.
type SettingsGetTool struct {
	settings *app.SettingsController
}

func NewSettingsGetTool(c *app.SettingsController) *SettingsGetTool {
	return &SettingsGetTool{settings: c}
}

func (t *SettingsGetTool) Definition() mcp.Tool {
	return mcp.NewTool("settings_get",
		mcp.WithDescription("Read one setting. Without a default, a missing key is an error."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Dotted key, e.g. ui.theme")),
		mcp.WithString("default", mcp.Description("Value returned when the key is missing")),
	)
}

func (t *SettingsGetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	def := req.GetArguments()["default"]
	return respond(t.settings.Get(ctx, req.GetString("key", ""), def))
}

// SettingsSetTool handles the settings_set MCP tool.
type SettingsSetTool struct {
	settings *app.SettingsController
}

func NewSettingsSetTool(c *app.SettingsController) *SettingsSetTool {
	return &SettingsSetTool{settings: c}
}

func (t *SettingsSetTool) Definition() mcp.Tool {
	return mcp.NewTool("settings_set",
		mcp.WithDescription("Write one setting. Booleans, numbers, lists and objects keep their type when read back."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Dotted key")),
		mcp.WithString("value", mcp.Required(), mcp.Description("New value. JSON booleans, numbers, lists and objects are stored with their type")),
	)
}

func (t *SettingsSetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return respond(t.settings.Set(ctx, req.GetString("key", ""), jsonValue(req.GetArguments()["value"])))
}

// SettingsDeleteTool handles the settings_delete MCP tool.
type SettingsDeleteTool struct {
	settings *app.SettingsController
}

func NewSettingsDeleteTool(c *app.SettingsController) *SettingsDeleteTool {
	return &SettingsDeleteTool{settings: c}
}

func (t *SettingsDeleteTool) Definition() mcp.Tool {
	return mcp.NewTool("settings_delete",
		mcp.WithDescription("Remove a setting."),
		mcp.WithString("key", mcp.Required(), mcp.Description("Dotted key")),
	)
}

func (t *SettingsDeleteTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return respond(t.settings.Delete(ctx, req.GetString("key", "")))
}

// SettingsPrefixTool handles the settings_prefix MCP tool.
type SettingsPrefixTool struct {
	settings *app.SettingsController
}

func NewSettingsPrefixTool(c *app.SettingsController) *SettingsPrefixTool {
	return &SettingsPrefixTool{settings: c}
}

func (t *SettingsPrefixTool) Definition() mcp.Tool {
	return mcp.NewTool("settings_prefix",
		mcp.WithDescription("All settings whose key starts with a prefix, e.g. window."),
		mcp.WithString("prefix", mcp.Required(), mcp.Description("Key prefix")),
	)
}

func (t *SettingsPrefixTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return respond(t.settings.ByPrefix(ctx, req.GetString("prefix", "")))
}

// SettingsBatchTool handles the settings_batch MCP tool.
type SettingsBatchTool struct {
	settings *app.SettingsController
}

func NewSettingsBatchTool(c *app.SettingsController) *SettingsBatchTool {
	return &SettingsBatchTool{settings: c}
}

func (t *SettingsBatchTool) Definition() mcp.Tool {
	return mcp.NewTool("settings_batch",
		mcp.WithDescription("Write several settings at once. Either all are written or none."),
		mcp.WithObject("values", mcp.Required(), mcp.Description("Map of key to value")),
	)
}

func (t *SettingsBatchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	values, err := objectArg(req, "values")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return respond(t.settings.SetBatch(ctx, values))
}

// SettingsExportTool handles the settings_export MCP tool.
type SettingsExportTool struct {
	settings *app.SettingsController
}

func NewSettingsExportTool(c *app.SettingsController) *SettingsExportTool {
	return &SettingsExportTool{settings: c}
}

func (t *SettingsExportTool) Definition() mcp.Tool {
	return mcp.NewTool("settings_export",
		mcp.WithDescription("Every setting as one key to value map."),
	)
}

func (t *SettingsExportTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return respond(t.settings.ExportAll(ctx))
}

// SettingsImportTool handles the settings_import MCP tool.
type SettingsImportTool struct {
	settings *app.SettingsController
}

func NewSettingsImportTool(c *app.SettingsController) *SettingsImportTool {
	return &SettingsImportTool{settings: c}
}

func (t *SettingsImportTool) Definition() mcp.Tool {
	return mcp.NewTool("settings_import",
		mcp.WithDescription("Import a map produced by settings_export. Either all keys are written or none."),
		mcp.WithObject("values", mcp.Required(), mcp.Description("Map of key to value")),
	)
}

func (t *SettingsImportTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	values, err := objectArg(req, "values")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return respond(t.settings.ImportAll(ctx, values))
}

// SettingsResetTool handles the settings_reset MCP tool.
type SettingsResetTool struct {
	settings *app.SettingsController
}

func NewSettingsResetTool(c *app.SettingsController) *SettingsResetTool {
	return &SettingsResetTool{settings: c}
}

func (t *SettingsResetTool) Definition() mcp.Tool {
	return mcp.NewTool("settings_reset",
		mcp.WithDescription("Delete every setting and load the defaults again."),
		mcp.WithBoolean("confirm", mcp.Required(), mcp.Description("Must be true")),
	)
}

func (t *SettingsResetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !boolArg(req, "confirm", false) {
		return mcp.NewToolResultError("'confirm' must be true to reset settings"), nil
	}
	return respond(t.settings.ResetToDefaults(ctx))
}

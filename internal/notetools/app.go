package notetools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/sidenote/internal/app"
)

// BackupTool handles the app_backup MCP tool.
type BackupTool struct {
	app *app.App
}

func NewBackupTool(a *app.App) *BackupTool {
	return &BackupTool{app: a}
}

func (t *BackupTool) Definition() mcp.Tool {
	return mcp.NewTool("app_backup",
		mcp.WithDescription(
			"Write a consistent snapshot of the database. With a path the snapshot goes exactly there; "+
				"otherwise a timestamped file is written to the backup directory and shipped to the remote bucket when one is configured.",
		),
		mcp.WithString("path", mcp.Description("Destination file")),
	)
}

func (t *BackupTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if dest := req.GetString("path", ""); dest != "" {
		return respond(t.app.Backup(ctx, dest))
	}
	return respond(t.app.BackupToDir(ctx, ""))
}

// StatsTool handles the app_stats MCP tool.
type StatsTool struct {
	app *app.App
}

func NewStatsTool(a *app.App) *StatsTool {
	return &StatsTool{app: a}
}

func (t *StatsTool) Definition() mcp.Tool {
	return mcp.NewTool("app_stats",
		mcp.WithDescription("Note count, the five most recent notes, tag usage and database details."),
	)
}

func (t *StatsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return respond(t.app.Statistics(ctx))
}

// InfoTool handles the app_info MCP tool.
type InfoTool struct {
	app *app.App
}

func NewInfoTool(a *app.App) *InfoTool {
	return &InfoTool{app: a}
}

func (t *InfoTool) Definition() mcp.Tool {
	return mcp.NewTool("app_info",
		mcp.WithDescription("Application name, version, session and database summary."),
	)
}

func (t *InfoTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return respond(t.app.ApplicationInfo(ctx))
}

// Package resources implements MCP resource handlers for the note store.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (sidenote://...) following MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/sidenote/internal/app"
)

const (
	StatsURI    = "sidenote://stats"
	SettingsURI = "sidenote://settings"
)

// Handler manages resource endpoints.
type Handler struct {
	app *app.App
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(a *app.App) *Handler {
	return &Handler{app: a}
}

// StatsResource returns the MCP resource definition for store statistics.
func (h *Handler) StatsResource() mcp.Resource {
	return mcp.NewResource(
		StatsURI,
		"Note Statistics",
		mcp.WithResourceDescription("Note count, recent notes, tag usage and database details"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleStats returns the statistics as JSON.
func (h *Handler) HandleStats(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonResource(req.Params.URI, h.app.Statistics(ctx))
}

// SettingsResource returns the MCP resource definition for the settings map.
func (h *Handler) SettingsResource() mcp.Resource {
	return mcp.NewResource(
		SettingsURI,
		"Settings",
		mcp.WithResourceDescription("Every stored setting as a key to value map"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleSettings returns every setting as JSON.
func (h *Handler) HandleSettings(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return jsonResource(req.Params.URI, h.app.Settings.ExportAll(ctx))
}

// jsonResource renders a successful Result's data, or the error text.
func jsonResource(uri string, r app.Result) ([]mcp.ResourceContents, error) {
	if !r.Success {
		return errorResource(uri, r.Error), nil
	}
	data, err := json.MarshalIndent(r.Data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling %s: %w", uri, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource with an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}

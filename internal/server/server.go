// Package server wires the MCP components and creates the server instance.
//
// This is the composition root for the MCP surface: it takes an opened
// app.App and registers the tools, prompts and resources built on it.
// No business logic lives here, only wiring.
package server

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/sidenote/internal/app"
	"github.com/HendryAvila/sidenote/internal/notetools"
	"github.com/HendryAvila/sidenote/internal/prompts"
	"github.com/HendryAvila/sidenote/internal/resources"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates the MCP server with every tool, prompt and resource
// registered against a. The caller owns a and closes it after the server
// stops.
func New(a *app.App) *server.MCPServer {
	s := server.NewMCPServer(
		"sidenote",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Tools ---

	for _, tool := range notetools.All(a) {
		s.AddTool(tool.Definition(), tool.Handle)
	}

	// --- Prompts ---

	review := prompts.NewReviewPrompt()
	s.AddPrompt(review.Definition(), review.Handle)

	// --- Resources ---

	h := resources.NewHandler(a)
	s.AddResource(h.StatsResource(), h.HandleStats)
	s.AddResource(h.SettingsResource(), h.HandleSettings)

	return s
}

// serverInstructions returns the system instructions that tell the AI
// how to use the note store.
func serverInstructions() string {
	return `You have access to sidenote, a local note store with tags and settings.

## NOTES
- Create with note_create. A title is required; content is Markdown.
- note_update changes only the fields you pass. Passing tag_ids replaces
  the whole tag set, so include the tags you want to keep.
- Set debounce=true on note_update while the user is still typing; the
  edit is saved after the autosave interval and several edits become one write.
- note_delete is a soft delete: the note disappears from every listing
  and loses its tags.
- note_search matches title and content and returns the most recently
  updated notes first.

## TAGS
- Tag names are unique. Prefer tag_get_or_create over tag_create when
  you are not sure a tag exists.
- tag_delete refuses a tag still attached to notes. Only pass force=true
  after the user confirms.

## SETTINGS
- Keys are dotted (ui.theme, window.default_width, features.auto_save).
- Values keep their JSON type. settings_batch is all or nothing.

## RESULTS
Every tool answers with {"success", "data", "error", "code"}. The code is
one of validation, not_found, conflict or storage. Only storage means
something went wrong on the machine; the others describe the request.`
}

// Package notetools provides MCP tool handlers over the app controllers.
//
// Each tool follows the same shape:
// - A struct holding the controller it needs, injected via constructor
// - Definition() returns the mcp.Tool schema
// - Handle() maps arguments to one controller call and returns the Result
//
// Every handler answers with the Result as JSON. Failed Results become MCP
// tool errors so hosts can tell them apart.
package notetools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cast"

	"github.com/HendryAvila/sidenote/internal/app"
)

// Tool is what the server registers.
type Tool interface {
	Definition() mcp.Tool
	Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// All returns every tool bound to a.
func All(a *app.App) []Tool {
	return []Tool{
		NewNoteCreateTool(a.Notes),
		NewNoteUpdateTool(a.Notes),
		NewNoteDeleteTool(a.Notes),
		NewNoteGetTool(a.Notes),
		NewNoteListTool(a.Notes),
		NewNoteSearchTool(a.Notes),
		NewNoteAddTagTool(a.Notes),
		NewNoteRemoveTagTool(a.Notes),
		NewNoteRenderTool(a),

		NewTagCreateTool(a.Tags),
		NewTagUpdateTool(a.Tags),
		NewTagDeleteTool(a.Tags),
		NewTagGetTool(a.Tags),
		NewTagListTool(a.Tags),
		NewTagSearchTool(a.Tags),
		NewTagPopularTool(a.Tags),
		NewTagUnusedTool(a.Tags),
		NewTagGetOrCreateTool(a.Tags),

		NewSettingsGetTool(a.Settings),
		NewSettingsSetTool(a.Settings),
		NewSettingsDeleteTool(a.Settings),
		NewSettingsPrefixTool(a.Settings),
		NewSettingsBatchTool(a.Settings),
		NewSettingsExportTool(a.Settings),
		NewSettingsImportTool(a.Settings),
		NewSettingsResetTool(a.Settings),

		NewBackupTool(a),
		NewStatsTool(a),
		NewInfoTool(a),
	}
}

// respond renders r as indented JSON.
func respond(r app.Result) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	if !r.Success {
		return mcp.NewToolResultError(string(data)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number.
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key]
	if !ok {
		return defaultVal
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return defaultVal
	}
	return n
}

// idArg extracts a required row id.
func idArg(req mcp.CallToolRequest, key string) (int64, error) {
	v, ok := req.GetArguments()[key]
	if !ok {
		return 0, fmt.Errorf("'%s' is required", key)
	}
	id, err := cast.ToInt64E(v)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("'%s' must be a positive integer", key)
	}
	return id, nil
}

// idsArg extracts an optional list of ids. ok is false when the key is absent.
func idsArg(req mcp.CallToolRequest, key string) (ids []int64, ok bool, err error) {
	v, present := req.GetArguments()[key]
	if !present || v == nil {
		return nil, false, nil
	}
	if typed, isIDs := v.([]int64); isIDs {
		return typed, true, nil
	}
	items, err := cast.ToSliceE(v)
	if err != nil {
		return nil, true, fmt.Errorf("'%s' must be a list of integers", key)
	}
	ids = make([]int64, 0, len(items))
	for _, item := range items {
		id, err := cast.ToInt64E(item)
		if err != nil {
			return nil, true, fmt.Errorf("'%s' must be a list of integers", key)
		}
		ids = append(ids, id)
	}
	return ids, true, nil
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key]
	if !ok {
		return defaultVal
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return defaultVal
	}
	return b
}

// stringPtrArg returns nil when key is absent so updates can leave the
// field untouched.
func stringPtrArg(req mcp.CallToolRequest, key string) *string {
	v, ok := req.GetArguments()[key]
	if !ok || v == nil {
		return nil
	}
	s := cast.ToString(v)
	return &s
}

// jsonValue turns a whole JSON number into an int64. Clients cannot send
// 16 and 16.0 differently, and settings store the two apart.
func jsonValue(v any) any {
	if f, ok := v.(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return int64(f)
	}
	return v
}

// objectArg extracts a JSON object argument. Top-level numbers go through
// jsonValue.
func objectArg(req mcp.CallToolRequest, key string) (map[string]any, error) {
	v, ok := req.GetArguments()[key]
	if !ok {
		return nil, fmt.Errorf("'%s' is required", key)
	}
	m, err := cast.ToStringMapE(v)
	if err != nil {
		return nil, fmt.Errorf("'%s' must be an object", key)
	}
	out := make(map[string]any, len(m))
	for k, val := range m {
		out[k] = jsonValue(val)
	}
	return out, nil
}

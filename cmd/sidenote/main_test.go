package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HendryAvila/sidenote/internal/app"
	"github.com/HendryAvila/sidenote/internal/config"
	"github.com/HendryAvila/sidenote/internal/notes"
	"github.com/HendryAvila/sidenote/internal/tags"
)

// runCLI executes the root command with --json against a throwaway data dir.
func runCLI(t *testing.T, dir string, args ...string) (app.Result, error) {
	t.Helper()
	t.Setenv(config.EnvDataDir, dir)
	t.Cleanup(func() { jsonOut = false })

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"--config", filepath.Join(dir, "config.yaml"), "--json"}, args...))
	err := rootCmd.Execute()

	var r app.Result
	require.NoError(t, json.Unmarshal(out.Bytes(), &r), "stdout: %s", out.String())
	return r, err
}

func TestCLI_NoteRoundTrip(t *testing.T) {
	dir := t.TempDir()

	r, err := runCLI(t, dir, "note", "create", "--title", "Hello", "--content", "world")
	require.NoError(t, err)
	assert.True(t, r.Success)

	r, err = runCLI(t, dir, "note", "search", "Hello")
	require.NoError(t, err)
	assert.EqualValues(t, 1, r.Data.(map[string]any)["total_count"])

	r, err = runCLI(t, dir, "note", "get", "99")
	assert.True(t, errors.Is(err, errReported))
	assert.False(t, r.Success)
	assert.Equal(t, "not_found", string(r.Code))
}

func TestCLI_SettingsSetParsesValue(t *testing.T) {
	dir := t.TempDir()

	_, err := runCLI(t, dir, "settings", "set", "ui.font_size", "18")
	require.NoError(t, err)

	r, err := runCLI(t, dir, "settings", "get", "ui.font_size")
	require.NoError(t, err)
	assert.EqualValues(t, 18, r.Data.(map[string]any)["value"])
}

func TestParseID(t *testing.T) {
	id, err := parseID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "0", "-3", "x"} {
		_, err := parseID(bad)
		assert.Error(t, err, bad)
	}
}

func TestPrintResult_HumanTables(t *testing.T) {
	var out, errOut bytes.Buffer

	err := printResult(&out, &errOut, app.OK(app.NoteList{
		Notes: []notes.Note{{
			ID: 7, Title: "Plan", UpdatedAt: "2024-01-02 03:04:05",
			Tags: []notes.TagRef{{Name: "work"}, {Name: "q3"}},
		}},
		TotalCount: 1,
	}))
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Plan")
	assert.Contains(t, out.String(), "work,q3")
	assert.Contains(t, out.String(), "1 note(s)")

	out.Reset()
	require.NoError(t, printResult(&out, &errOut, app.OK(app.TagList{
		Tags:       []tags.Tag{{ID: 1, Name: "work", Color: "#007ACC", NoteCount: 3}},
		TotalCount: 1,
	})))
	assert.Contains(t, out.String(), "#007ACC")
}

func TestPrintResult_FailureGoesToStderr(t *testing.T) {
	var out, errOut bytes.Buffer
	err := printResult(&out, &errOut, app.Result{Success: false, Error: "tag in use", Code: "conflict"})

	assert.True(t, errors.Is(err, errReported))
	assert.Empty(t, out.String())
	assert.True(t, strings.HasPrefix(errOut.String(), "Error (conflict): tag in use"))
}

func TestWriteYAML_UsesJSONNames(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, writeYAML(&out, app.NoteRef{NoteID: 3, Title: "x"}))
	assert.Contains(t, out.String(), "note_id: 3")
}

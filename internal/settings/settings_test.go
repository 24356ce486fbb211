package settings_test

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/HendryAvila/sidenote/internal/errs"
	"github.com/HendryAvila/sidenote/internal/events"
	"github.com/HendryAvila/sidenote/internal/obs"
	"github.com/HendryAvila/sidenote/internal/settings"
	"github.com/HendryAvila/sidenote/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func newEngine(t *testing.T) *storage.Engine {
	t.Helper()
	eng, err := storage.Open(storage.Config{
		Path:   filepath.Join(t.TempDir(), "notes.db"),
		Logger: obs.Discard(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

func newRepo(t *testing.T, eng *storage.Engine, bus *events.Bus) *settings.Repository {
	t.Helper()
	r, err := settings.New(context.Background(), eng, bus)
	require.NoError(t, err)
	return r
}

func TestParse(t *testing.T) {
	tests := []struct {
		raw  string
		want any
	}{
		{"true", true},
		{"FALSE", false},
		{"42", 42},
		{"-7", -7},
		{"3.25", 3.25},
		{"1.0", 1.0},
		{"0.0", 0.0},
		{"-3.0", -3.0},
		{`{"a":1}`, map[string]any{"a": float64(1)}},
		{`[1,"x"]`, []any{float64(1), "x"}},
		{"1e3", float64(1000)},
		{"hello world", "hello world"},
		{"1.2.3", "1.2.3"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, settings.Parse(tt.raw), "Parse(%q)", tt.raw)
	}
}

func TestSerialize(t *testing.T) {
	assert.Equal(t, "true", settings.Serialize(true))
	assert.Equal(t, "12", settings.Serialize(12))
	assert.Equal(t, "0.5", settings.Serialize(0.5))
	assert.Equal(t, "1.0", settings.Serialize(1.0))
	assert.Equal(t, "0.0", settings.Serialize(0.0))
	assert.Equal(t, "-3.0", settings.Serialize(-3.0))
	assert.Equal(t, "1000000.0", settings.Serialize(1e6))
	assert.Equal(t, "2.5", settings.Serialize(float32(2.5)))
	assert.Equal(t, "16", settings.Serialize(json.Number("16")))
	assert.Equal(t, `{"k":"v"}`, settings.Serialize(map[string]string{"k": "v"}))
	assert.Equal(t, `[1,2]`, settings.Serialize([]int{1, 2}))
	assert.Equal(t, "plain", settings.Serialize("plain"))
}

func TestRoundTrip_Property(t *testing.T) {
	eng := newEngine(t)
	ctx := context.Background()

	word := rapid.StringMatching(`[a-z]{1,12}`).Filter(func(s string) bool {
		return s != "true" && s != "false" && s != "null"
	})
	values := rapid.OneOf(
		rapid.Map(rapid.Bool(), func(b bool) any { return b }),
		rapid.Map(rapid.IntRange(-1_000_000, 1_000_000), func(i int) any { return i }),
		rapid.Map(rapid.Float64Range(-1e6, 1e6), func(f float64) any { return f }),
		rapid.Map(rapid.IntRange(-1000, 1000), func(i int) any { return float64(i) }),
		rapid.Map(word, func(s string) any { return s }),
		rapid.Map(rapid.MapOf(word, word), func(m map[string]string) any {
			out := map[string]any{}
			for k, v := range m {
				out[k] = v
			}
			return out
		}),
	)

	rapid.Check(t, func(rt *rapid.T) {
		repo, err := settings.New(ctx, eng, nil)
		if err != nil {
			rt.Fatal(err)
		}
		key := "prop." + word.Draw(rt, "key")
		v := values.Draw(rt, "value")

		if err := repo.Set(ctx, key, v); err != nil {
			rt.Fatalf("Set: %v", err)
		}
		if got := repo.Get(ctx, key, nil); !assert.ObjectsAreEqual(v, got) {
			rt.Fatalf("cached Get = %#v, want %#v", got, v)
		}

		// A fresh repository reads from storage.
		fresh, err := settings.New(ctx, eng, nil)
		if err != nil {
			rt.Fatal(err)
		}
		if got := fresh.Get(ctx, key, nil); !assert.ObjectsAreEqual(v, got) {
			rt.Fatalf("stored Get = %#v, want %#v", got, v)
		}
	})
}

func TestGet_DefaultWhenMissing(t *testing.T) {
	repo := newRepo(t, newEngine(t), nil)
	assert.Equal(t, "fallback", repo.Get(context.Background(), "nope", "fallback"))
	assert.False(t, repo.Has(context.Background(), "nope"))
}

func TestSet_EmitsAndValidates(t *testing.T) {
	bus := events.New(obs.Discard())
	repo := newRepo(t, newEngine(t), bus)
	ctx := context.Background()

	var got []events.SettingPayload
	bus.Subscribe(events.SettingChanged, func(ev events.Event) error {
		got = append(got, ev.Payload.(events.SettingPayload))
		return nil
	})

	require.NoError(t, repo.Set(ctx, "ui.theme", "dark"))
	require.Len(t, got, 1)
	assert.Equal(t, events.SettingPayload{Key: "ui.theme", Value: "dark"}, got[0])

	assert.True(t, errs.Is(repo.Set(ctx, " ", 1), errs.Validation))
	assert.True(t, errs.Is(repo.Set(ctx, "k", nil), errs.Validation))
}

func TestSet_FailureLeavesCacheUntouched(t *testing.T) {
	eng := newEngine(t)
	repo := newRepo(t, eng, nil)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, "ui.font_size", 12))
	_, err := eng.Execute(ctx, storage.FetchNone, `CREATE TRIGGER no_writes BEFORE UPDATE ON settings
		BEGIN SELECT RAISE(ABORT, 'read only'); END`)
	require.NoError(t, err)

	err = repo.Set(ctx, "ui.font_size", 20)
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.Storage))
	assert.Equal(t, 12, repo.Get(ctx, "ui.font_size", nil))
}

func TestDelete(t *testing.T) {
	bus := events.New(obs.Discard())
	repo := newRepo(t, newEngine(t), bus)
	ctx := context.Background()
	deleted := 0
	bus.Subscribe(events.SettingDeleted, func(events.Event) error { deleted++; return nil })

	require.NoError(t, repo.Set(ctx, "k", "v"))
	require.NoError(t, repo.Delete(ctx, "k"))
	assert.Nil(t, repo.Get(ctx, "k", nil))
	assert.True(t, errs.Is(repo.Delete(ctx, "k"), errs.NotFound))
	assert.Equal(t, 1, deleted)
}

func TestByPrefix(t *testing.T) {
	repo := newRepo(t, newEngine(t), nil)
	ctx := context.Background()
	require.NoError(t, repo.SetBatch(ctx, map[string]any{
		"window.width":  1200,
		"window.height": 800,
		"windowsill":    "x",
		"ui.theme":      "auto",
	}))

	got, err := repo.ByPrefix(ctx, "window.")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"window.width": 1200, "window.height": 800}, got)

	// LIKE wildcards in the prefix are literal.
	got, err = repo.ByPrefix(ctx, "window_")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSetBatch_AllOrNothing(t *testing.T) {
	eng := newEngine(t)
	repo := newRepo(t, eng, nil)
	ctx := context.Background()

	_, err := eng.Execute(ctx, storage.FetchNone, `CREATE TRIGGER reject_bad BEFORE INSERT ON settings
		WHEN NEW.key = 'z.bad' BEGIN SELECT RAISE(ABORT, 'rejected'); END`)
	require.NoError(t, err)

	err = repo.SetBatch(ctx, map[string]any{"a.one": 1, "b.two": 2, "z.bad": 3})
	require.Error(t, err)

	all, err := repo.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Nil(t, repo.Get(ctx, "a.one", nil))
}

func TestDefaultsAndFirstRun(t *testing.T) {
	eng := newEngine(t)
	repo := newRepo(t, eng, nil)
	ctx := context.Background()

	assert.True(t, repo.IsFirstRun(ctx))
	require.NoError(t, repo.Set(ctx, "ui.theme", "dark"))
	require.NoError(t, repo.LoadDefaults(ctx))

	assert.Equal(t, "dark", repo.String(ctx, "ui.theme", ""), "existing keys are kept")
	assert.Equal(t, 1200, repo.Int(ctx, "window.width", 0))
	assert.Equal(t, -1, repo.Int(ctx, "window.x", 0))
	assert.True(t, repo.Bool(ctx, "features.auto_save", false))
	assert.Equal(t, 30.0, repo.Float(ctx, "features.auto_save_interval", 0))
	assert.Equal(t, "zh_CN", repo.String(ctx, "ui.language", ""))

	all, err := repo.All(ctx)
	require.NoError(t, err)
	assert.Len(t, all, len(settings.Defaults()))

	require.NoError(t, repo.MarkFirstRunComplete(ctx))
	assert.False(t, repo.IsFirstRun(ctx))

	require.NoError(t, repo.ResetToDefaults(ctx))
	assert.Equal(t, "auto", repo.String(ctx, "ui.theme", ""))
	assert.True(t, repo.IsFirstRun(ctx))

	// Coercion failure falls back to the default.
	assert.Equal(t, 5, repo.Int(ctx, "ui.theme", 5))
}

func TestExportImport(t *testing.T) {
	repo := newRepo(t, newEngine(t), nil)
	ctx := context.Background()
	require.NoError(t, repo.LoadDefaults(ctx))

	exported, err := repo.ExportAll(ctx)
	require.NoError(t, err)

	other := newRepo(t, newEngine(t), nil)
	n, err := other.ImportAll(ctx, exported)
	require.NoError(t, err)
	assert.Equal(t, len(exported), n)

	again, err := other.ExportAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, exported, again)
}

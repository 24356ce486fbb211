// Package settings implements the key/value Settings repository with a
// write-through in-memory cache.
//
// Values are stored as text. Set serialises booleans as "true"/"false",
// composite values as JSON, floats always with a decimal point and
// everything else with fmt.Sprint; Parse
// reverses that heuristically. The cache always holds the parsed form, so a
// value read from the cache equals the value a fresh process would read.
package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/HendryAvila/sidenote/internal/errs"
	"github.com/HendryAvila/sidenote/internal/events"
	"github.com/HendryAvila/sidenote/internal/obs"
	"github.com/HendryAvila/sidenote/internal/storage"
)

// FirstRunKey marks whether first-run bootstrap has completed.
const FirstRunKey = "app.first_run"

// Entry is one stored setting.
type Entry struct {
	Key       string `json:"key"`
	Value     string `json:"value"`
	Parsed    any    `json:"parsed_value"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Repository is the Settings repository.
type Repository struct {
	eng *storage.Engine
	bus *events.Bus
	log *slog.Logger

	mu    sync.RWMutex
	cache map[string]any
}

// New creates a Repository and loads every stored setting into the cache.
func New(ctx context.Context, eng *storage.Engine, bus *events.Bus) (*Repository, error) {
	r := &Repository{eng: eng, bus: bus, log: obs.Pkg("settings"), cache: map[string]any{}}
	entries, err := r.All(ctx)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		r.cache[e.Key] = e.Parsed
	}
	r.log.Debug("settings cache loaded", "count", len(entries))
	return r, nil
}

// Reload replaces the cache with what is stored. Call it after writing the
// settings table behind the repository's back.
func (r *Repository) Reload(ctx context.Context) error {
	entries, err := r.All(ctx)
	if err != nil {
		return err
	}
	cache := make(map[string]any, len(entries))
	for _, e := range entries {
		cache[e.Key] = e.Parsed
	}
	r.mu.Lock()
	r.cache = cache
	r.mu.Unlock()
	return nil
}

// ─── Reads ───────────────────────────────────────────────────────────────────

// Get returns the value for key, or def when it is not stored. Storage
// failures are logged and also yield def.
func (r *Repository) Get(ctx context.Context, key string, def any) any {
	r.mu.RLock()
	v, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return v
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.cache[key]; ok {
		return v
	}
	var raw sql.NullString
	err := r.eng.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return def
	}
	if err != nil {
		r.log.Error("get setting failed", "key", key, "err", err)
		return def
	}
	v = Parse(raw.String)
	r.cache[key] = v
	return v
}

// Has reports whether key is stored.
func (r *Repository) Has(ctx context.Context, key string) bool {
	r.mu.RLock()
	_, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return true
	}
	var one int
	err := r.eng.QueryRowContext(ctx, `SELECT 1 FROM settings WHERE key = ?`, key).Scan(&one)
	return err == nil
}

// All returns every stored setting ordered by key.
func (r *Repository) All(ctx context.Context) ([]Entry, error) {
	rows, err := r.eng.QueryContext(ctx,
		`SELECT key, COALESCE(value, ''), created_at, updated_at FROM settings ORDER BY key`)
	if err != nil {
		return nil, storage.Classify("list settings", err)
	}
	defer func() { _ = rows.Close() }()

	out := []Entry{}
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Key, &e.Value, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, storage.Classify("list settings", err)
		}
		e.Parsed = Parse(e.Value)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Classify("list settings", err)
	}
	return out, nil
}

// ByPrefix returns every setting whose key starts with prefix.
func (r *Repository) ByPrefix(ctx context.Context, prefix string) (map[string]any, error) {
	rows, err := r.eng.QueryContext(ctx,
		`SELECT key, COALESCE(value, '') FROM settings WHERE key LIKE ? ESCAPE '\' ORDER BY key`,
		storage.EscapeLike(prefix)+"%")
	if err != nil {
		return nil, storage.Classify("settings by prefix", err)
	}
	defer func() { _ = rows.Close() }()

	out := map[string]any{}
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, storage.Classify("settings by prefix", err)
		}
		out[key] = Parse(raw)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Classify("settings by prefix", err)
	}

	r.mu.Lock()
	for k, v := range out {
		r.cache[k] = v
	}
	r.mu.Unlock()
	return out, nil
}

// ExportAll returns every setting as key → parsed value.
func (r *Repository) ExportAll(ctx context.Context) (map[string]any, error) {
	entries, err := r.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(entries))
	for _, e := range entries {
		out[e.Key] = e.Parsed
	}
	r.log.Info("settings exported", "count", len(out))
	return out, nil
}

// ─── Writes ──────────────────────────────────────────────────────────────────

const upsert = `INSERT INTO settings (key, value, created_at, updated_at) VALUES (?, ?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

// Set stores value under key. The cache is updated under the same lock as
// the write and left untouched when the write fails.
func (r *Repository) Set(ctx context.Context, key string, value any) error {
	if err := CheckEntry(key, value); err != nil {
		return err
	}
	raw := Serialize(value)
	parsed := Parse(raw)

	r.mu.Lock()
	now := storage.Now()
	if _, err := r.eng.ExecContext(ctx, upsert, key, raw, now, now); err != nil {
		r.mu.Unlock()
		r.log.Error("set setting failed", "key", key, "err", err)
		return storage.Classify("set setting", err)
	}
	r.cache[key] = parsed
	r.mu.Unlock()

	r.log.Debug("setting stored", "key", key, "value", raw)
	r.bus.Publish(events.SettingChanged, events.SettingPayload{Key: key, Value: parsed})
	return nil
}

// Delete removes key. A missing key fails with errs.NotFound.
func (r *Repository) Delete(ctx context.Context, key string) error {
	r.mu.Lock()
	res, err := r.eng.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key)
	if err != nil {
		r.mu.Unlock()
		return storage.Classify("delete setting", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		r.mu.Unlock()
		return errs.Newf(errs.NotFound, "setting %q not found", key)
	}
	delete(r.cache, key)
	r.mu.Unlock()

	r.log.Info("setting deleted", "key", key)
	r.bus.Publish(events.SettingDeleted, events.SettingPayload{Key: key})
	return nil
}

// SetBatch stores every entry in one transaction. Either all are written
// or none are.
func (r *Repository) SetBatch(ctx context.Context, values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	keys := sortedKeys(values)
	raws := make(map[string]string, len(values))
	for _, k := range keys {
		if err := CheckEntry(k, values[k]); err != nil {
			return err
		}
		raws[k] = Serialize(values[k])
	}

	r.mu.Lock()
	err := r.eng.WithTx(ctx, func(q storage.Querier) error {
		now := storage.Now()
		for _, k := range keys {
			if _, err := q.ExecContext(ctx, upsert, k, raws[k], now, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		r.mu.Unlock()
		r.log.Error("batch set failed", "count", len(keys), "err", err)
		return err
	}
	parsed := make(map[string]any, len(keys))
	for _, k := range keys {
		parsed[k] = Parse(raws[k])
		r.cache[k] = parsed[k]
	}
	r.mu.Unlock()

	r.log.Info("settings batch stored", "count", len(keys))
	for _, k := range keys {
		r.bus.Publish(events.SettingChanged, events.SettingPayload{Key: k, Value: parsed[k]})
	}
	return nil
}

// ImportAll stores every entry of values atomically and returns how many
// were written.
func (r *Repository) ImportAll(ctx context.Context, values map[string]any) (int, error) {
	if err := r.SetBatch(ctx, values); err != nil {
		return 0, err
	}
	r.log.Info("settings imported", "count", len(values))
	return len(values), nil
}

// LoadDefaults writes every default whose key is not stored yet.
func (r *Repository) LoadDefaults(ctx context.Context) error {
	var added []string
	r.mu.Lock()
	err := r.eng.WithTx(ctx, func(q storage.Querier) error {
		added = added[:0]
		now := storage.Now()
		for _, d := range defaults {
			res, err := q.ExecContext(ctx,
				`INSERT OR IGNORE INTO settings (key, value, created_at, updated_at) VALUES (?, ?, ?, ?)`,
				d.key, Serialize(d.value), now, now)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n > 0 {
				added = append(added, d.key)
			}
		}
		return nil
	})
	if err != nil {
		r.mu.Unlock()
		return err
	}
	for _, d := range defaults {
		if _, ok := r.cache[d.key]; !ok {
			r.cache[d.key] = Parse(Serialize(d.value))
		}
	}
	r.mu.Unlock()

	r.log.Info("default settings loaded", "added", len(added))
	for _, k := range added {
		r.bus.Publish(events.SettingChanged, events.SettingPayload{Key: k, Value: r.Get(ctx, k, nil)})
	}
	return nil
}

// ResetToDefaults clears every setting and loads the defaults.
func (r *Repository) ResetToDefaults(ctx context.Context) error {
	r.mu.Lock()
	if _, err := r.eng.ExecContext(ctx, `DELETE FROM settings`); err != nil {
		r.mu.Unlock()
		return storage.Classify("reset settings", err)
	}
	r.cache = map[string]any{}
	r.mu.Unlock()

	r.log.Info("settings reset to defaults")
	return r.LoadDefaults(ctx)
}

// IsFirstRun reports whether first-run bootstrap is still pending.
func (r *Repository) IsFirstRun(ctx context.Context) bool {
	return r.Bool(ctx, FirstRunKey, true)
}

// MarkFirstRunComplete records that first-run bootstrap has completed.
func (r *Repository) MarkFirstRunComplete(ctx context.Context) error {
	return r.Set(ctx, FirstRunKey, false)
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// CheckEntry rejects a blank key or a nil value with errs.Validation.
func CheckEntry(key string, value any) error {
	if strings.TrimSpace(key) == "" {
		return errs.New(errs.Validation, "setting key cannot be empty")
	}
	if value == nil {
		return errs.Newf(errs.Validation, "setting %q: value cannot be nil", key)
	}
	return nil
}

// Serialize converts a value to its stored text form.
func Serialize(value any) string {
	switch v := value.(type) {
	case bool:
		if v {
			return "true"
		}
		return "false"
	case string:
		return v
	case json.RawMessage:
		return string(v)
	case json.Number:
		return v.String()
	case float64:
		return formatFloat(v, 64)
	case float32:
		return formatFloat(float64(v), 32)
	}
	switch reflect.ValueOf(value).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		b, err := json.Marshal(value)
		if err == nil {
			return string(b)
		}
	}
	return fmt.Sprint(value)
}

// formatFloat keeps a '.' in whole numbers so Parse reads them back as
// floats: 1.0 is stored as "1.0", not "1".
func formatFloat(f float64, bits int) string {
	s := strconv.FormatFloat(f, 'f', -1, bits)
	if math.IsInf(f, 0) || math.IsNaN(f) || strings.ContainsAny(s, ".e") {
		return s
	}
	return s + ".0"
}

// Parse converts stored text back into a value: boolean literal, then
// integer (no '.'), then float (has '.'), then JSON, then the raw string.
func Parse(raw string) any {
	switch strings.ToLower(raw) {
	case "true":
		return true
	case "false":
		return false
	}
	if strings.Contains(raw, ".") {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	} else if i, err := strconv.Atoi(raw); err == nil {
		return i
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err == nil {
		return v
	}
	return raw
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

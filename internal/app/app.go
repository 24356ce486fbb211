package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"

	"github.com/HendryAvila/sidenote/internal/errs"
	"github.com/HendryAvila/sidenote/internal/events"
	"github.com/HendryAvila/sidenote/internal/notes"
	"github.com/HendryAvila/sidenote/internal/obs"
	"github.com/HendryAvila/sidenote/internal/remote"
	"github.com/HendryAvila/sidenote/internal/render"
	"github.com/HendryAvila/sidenote/internal/settings"
	"github.com/HendryAvila/sidenote/internal/storage"
	"github.com/HendryAvila/sidenote/internal/tags"
)

// Options configures an App.
type Options struct {
	Name    string
	Version string
	// DBPath is the database file.
	DBPath string
	// BackupDir receives BackupToDir snapshots.
	BackupDir        string
	AutoSaveEnabled  bool
	AutoSaveInterval time.Duration
	// Remote, when it names a bucket, receives a copy of every BackupToDir snapshot.
	Remote remote.Config
}

// App is one session: one engine, one bus, and the controllers over them.
type App struct {
	ID        string
	Notes     *NoteController
	Tags      *TagController
	Settings  *SettingsController
	opts      Options
	eng       *storage.Engine
	bus       *events.Bus
	notesRepo *notes.Repository
	tagsRepo  *tags.Repository
	log       *slog.Logger
	started   time.Time

	uploaderOnce sync.Once
	uploader     *remote.Uploader
	uploaderErr  error

	closeOnce sync.Once
	closeErr  error
}

// Open opens the database and wires the session. Failure to open storage
// is fatal and returned as is.
func Open(ctx context.Context, opts Options) (*App, error) {
	if opts.Name == "" {
		opts.Name = "sidenote"
	}
	id := uuid.NewString()
	log := obs.Pkg("app").With("session", id)

	eng, err := storage.Open(storage.Config{Path: opts.DBPath})
	if err != nil {
		return nil, err
	}

	bus := events.New(obs.Pkg("events"))
	a := &App{
		ID:        id,
		opts:      opts,
		eng:       eng,
		bus:       bus,
		notesRepo: notes.New(eng, bus),
		tagsRepo:  tags.New(eng, bus),
		log:       log,
		started:   time.Now().UTC(),
	}

	settingsRepo, err := settings.New(ctx, eng, bus)
	if err != nil {
		_ = eng.Close()
		return nil, err
	}
	a.Notes = NewNoteController(a.notesRepo, bus)
	a.Tags = NewTagController(a.tagsRepo, bus)
	a.Settings = NewSettingsController(settingsRepo)

	if r := a.Settings.Bootstrap(ctx); !r.Success {
		_ = eng.Close()
		return nil, errs.New(r.Code, r.Error)
	}

	a.Notes.SetAutoSaveEnabled(opts.AutoSaveEnabled)
	if opts.AutoSaveInterval > 0 {
		a.Notes.SetAutoSaveInterval(opts.AutoSaveInterval)
	}
	bus.Subscribe(events.SettingChanged, a.onSettingChanged)

	log.Info("session started", "db", eng.Path())
	bus.Publish(events.DatabaseConnected, events.DatabasePayload{Path: eng.Path()})
	return a, nil
}

// Bus returns the session's notification bus.
func (a *App) Bus() *events.Bus { return a.bus }

// Engine returns the session's storage engine.
func (a *App) Engine() *storage.Engine { return a.eng }

// ApplyAutoSave updates the autosave toggle and interval, e.g. after a
// configuration reload.
func (a *App) ApplyAutoSave(enabled bool, interval time.Duration) {
	a.Notes.SetAutoSaveEnabled(enabled)
	if interval > 0 {
		a.Notes.SetAutoSaveInterval(interval)
	}
	a.log.Info("autosave reconfigured", "enabled", enabled, "interval", a.Notes.AutoSaveInterval())
}

// onSettingChanged follows the autosave keys of the settings store.
func (a *App) onSettingChanged(ev events.Event) error {
	p, ok := ev.Payload.(events.SettingPayload)
	if !ok {
		return nil
	}
	switch p.Key {
	case "features.auto_save":
		on, err := cast.ToBoolE(p.Value)
		if err != nil {
			return fmt.Errorf("features.auto_save: %w", err)
		}
		a.Notes.SetAutoSaveEnabled(on)
	case "features.auto_save_interval":
		secs, err := cast.ToIntE(p.Value)
		if err != nil {
			return fmt.Errorf("features.auto_save_interval: %w", err)
		}
		a.Notes.SetAutoSaveInterval(time.Duration(secs) * time.Second)
	}
	return nil
}

// ─── Statistics / info ───────────────────────────────────────────────────────

// Statistics is the dashboard summary.
type Statistics struct {
	NotesCount   int           `json:"notes_count"`
	RecentNotes  []notes.Note  `json:"recent_notes"`
	TagsStats    TagStats      `json:"tags_stats"`
	DatabaseInfo *storage.Info `json:"database_info"`
}

func (a *App) Statistics(ctx context.Context) Result {
	var s Statistics
	var err error
	if s.NotesCount, err = a.notesRepo.Count(ctx); err != nil {
		return fail(a.log, "statistics", err)
	}
	if s.RecentNotes, err = a.notesRepo.Recent(ctx, 5); err != nil {
		return fail(a.log, "statistics", err)
	}
	if s.TagsStats, err = a.Tags.stats(ctx); err != nil {
		return fail(a.log, "statistics", err)
	}
	if s.DatabaseInfo, err = a.eng.Info(ctx); err != nil {
		return fail(a.log, "statistics", err)
	}
	return OK(s)
}

func (a *App) DatabaseInfo(ctx context.Context) Result {
	info, err := a.eng.Info(ctx)
	if err != nil {
		return fail(a.log, "database info", err)
	}
	return OK(info)
}

// AppInfo describes the running session.
type AppInfo struct {
	AppName          string        `json:"app_name"`
	Version          string        `json:"version"`
	SessionID        string        `json:"session_id"`
	StartedAt        string        `json:"started_at"`
	DatabaseInfo     *storage.Info `json:"database_info"`
	NotesCount       int           `json:"notes_count"`
	TagsCount        int           `json:"tags_count"`
	AutoSaveInterval string        `json:"autosave_interval"`
	RemoteBackup     bool          `json:"remote_backup"`
}

func (a *App) ApplicationInfo(ctx context.Context) Result {
	info := AppInfo{
		AppName:          a.opts.Name,
		Version:          a.opts.Version,
		SessionID:        a.ID,
		StartedAt:        a.started.Format(time.RFC3339),
		AutoSaveInterval: a.Notes.AutoSaveInterval().String(),
		RemoteBackup:     a.opts.Remote.Enabled(),
	}
	var err error
	if info.DatabaseInfo, err = a.eng.Info(ctx); err != nil {
		return fail(a.log, "application info", err)
	}
	if info.NotesCount, err = a.notesRepo.Count(ctx); err != nil {
		return fail(a.log, "application info", err)
	}
	if info.TagsCount, err = a.tagsRepo.Count(ctx); err != nil {
		return fail(a.log, "application info", err)
	}
	return OK(info)
}

// ─── Backup ──────────────────────────────────────────────────────────────────

// BackupInfo describes a completed backup.
type BackupInfo struct {
	BackupFile string `json:"backup_file"`
	BackupTime string `json:"backup_time"`
	RemoteKey  string `json:"remote_key,omitempty"`
}

// Backup writes a consistent snapshot to dest.
func (a *App) Backup(ctx context.Context, dest string) Result {
	if err := a.eng.Backup(ctx, dest); err != nil {
		a.bus.Publish(events.DatabaseError, events.DatabasePayload{Path: dest, Err: err})
		return fail(a.log, "backup", err)
	}
	a.log.Info("backup written", "file", dest)
	return OK(BackupInfo{BackupFile: dest, BackupTime: time.Now().Format(time.RFC3339)})
}

// BackupFileName returns the snapshot file name for t.
func BackupFileName(t time.Time) string {
	return "notes_backup_" + t.Format("20060102_150405") + ".db"
}

// BackupToDir writes notes_backup_YYYYMMDD_HHMMSS.db into dir (the
// configured backup dir when empty) and ships a copy off-site when a
// remote is configured.
func (a *App) BackupToDir(ctx context.Context, dir string) Result {
	if dir == "" {
		dir = a.opts.BackupDir
	}
	if dir == "" {
		dir = filepath.Join(filepath.Dir(a.eng.Path()), "backups")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fail(a.log, "backup", errs.Wrap(errs.Storage, "create backup dir", err))
	}

	res := a.Backup(ctx, filepath.Join(dir, BackupFileName(time.Now())))
	if !res.Success || !a.opts.Remote.Enabled() {
		return res
	}

	info := res.Data.(BackupInfo)
	u, err := a.remoteUploader(ctx)
	if err == nil {
		info.RemoteKey, err = u.Upload(ctx, info.BackupFile)
	}
	if err != nil {
		r := fail(a.log, "remote backup", errs.Wrap(errs.Storage, "remote backup", err))
		r.Data = info
		return r
	}
	a.log.Info("backup shipped", "key", info.RemoteKey)
	return OK(info)
}

func (a *App) remoteUploader(ctx context.Context) (*remote.Uploader, error) {
	a.uploaderOnce.Do(func() {
		a.uploader, a.uploaderErr = remote.New(ctx, a.opts.Remote)
	})
	return a.uploader, a.uploaderErr
}

// SetUploader replaces the remote uploader, e.g. with a test double.
func (a *App) SetUploader(u *remote.Uploader) {
	a.uploaderOnce.Do(func() {})
	a.uploader, a.uploaderErr = u, nil
}

// ─── Render ──────────────────────────────────────────────────────────────────

// Rendered is a note preview.
type Rendered struct {
	NoteID int64  `json:"note_id"`
	Title  string `json:"title"`
	HTML   string `json:"html"`
}

// Render returns a sanitised HTML preview of a note's Markdown content.
func (a *App) Render(ctx context.Context, noteID int64) Result {
	n, err := a.notesRepo.Get(ctx, noteID)
	if err != nil {
		return fail(a.log, "render note", err)
	}
	return OK(Rendered{NoteID: n.ID, Title: n.Title, HTML: render.Markdown(n.Content)})
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Close flushes autosave, announces the disconnect and closes storage.
// It is safe to call more than once.
func (a *App) Close(ctx context.Context) error {
	a.closeOnce.Do(func() {
		if r := a.Notes.Close(ctx); !r.Success {
			a.log.Warn("unsaved edits at shutdown", "err", r.Error)
		}
		a.Tags.Close()
		a.bus.Publish(events.DatabaseDisconnected, events.DatabasePayload{Path: a.eng.Path()})
		a.closeErr = a.eng.Close()
		a.log.Info("session closed")
	})
	return a.closeErr
}

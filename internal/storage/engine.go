// Package storage owns the single SQLite connection of a sidenote session.
//
// It applies the schema, exposes a generic execute primitive with fetch
// modes, scopes transactions, and produces consistent backups. Repositories
// build on the Querier interface and never touch *sql.DB directly.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/HendryAvila/sidenote/internal/errs"
	"github.com/HendryAvila/sidenote/internal/obs"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// pragmas are applied on every physical connection via the DSN and
// re-asserted after open.
var pragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
}

// ─── Config ──────────────────────────────────────────────────────────────────

// Config holds storage engine configuration.
type Config struct {
	// Path is the database file. Its directory is created if missing.
	Path string
	// Logger defaults to obs.Pkg("storage").
	Logger *slog.Logger
}

// DefaultPath returns ~/.sidenote/notes.db.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".sidenote", "notes.db")
}

// ─── Engine ──────────────────────────────────────────────────────────────────

// Querier is the subset of *sql.DB and *sql.Tx used by repositories.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Engine is the storage engine: one database, one physical connection.
type Engine struct {
	db    *sql.DB
	path  string
	log   *slog.Logger
	hooks engineHooks
}

type engineHooks struct {
	beginTx func(ctx context.Context, db *sql.DB) (*sql.Tx, error)
	commit  func(tx *sql.Tx) error
}

func defaultEngineHooks() engineHooks {
	return engineHooks{
		beginTx: func(ctx context.Context, db *sql.DB) (*sql.Tx, error) {
			return db.BeginTx(ctx, nil)
		},
		commit: func(tx *sql.Tx) error {
			return tx.Commit()
		},
	}
}

// Open creates the data directory, opens SQLite in WAL mode with foreign
// keys enforced, and applies the schema. Failure here is fatal for the
// session and is never retried.
func Open(cfg Config) (*Engine, error) {
	if cfg.Path == "" {
		cfg.Path = DefaultPath()
	}
	if cfg.Logger == nil {
		cfg.Logger = obs.Pkg("storage")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
		return nil, errs.Wrap(errs.Storage, "storage: create data dir", err)
	}

	db, err := openDB("sqlite", dsn(cfg.Path))
	if err != nil {
		return nil, errs.Wrap(errs.Storage, "storage: open database", err)
	}
	// A single connection keeps per-connection pragmas in force and makes
	// the single-writer model explicit.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	for _, p := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, errs.Wrap(errs.Storage, fmt.Sprintf("storage: pragma %q", p), err)
		}
	}

	e := &Engine{db: db, path: cfg.Path, log: cfg.Logger, hooks: defaultEngineHooks()}
	if err := e.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, errs.Wrap(errs.Storage, "storage: migration", err)
	}

	e.log.Debug("database opened", "path", cfg.Path)
	return e, nil
}

func dsn(path string) string {
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	return path + "?" + q.Encode()
}

// Path returns the database file path.
func (e *Engine) Path() string { return e.path }

// Close closes the underlying database connection.
func (e *Engine) Close() error {
	if err := e.db.Close(); err != nil {
		return errs.Wrap(errs.Storage, "storage: close", err)
	}
	return nil
}

// ExecContext implements Querier on the engine's connection.
func (e *Engine) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return e.db.ExecContext(ctx, query, args...)
}

// QueryContext implements Querier on the engine's connection.
func (e *Engine) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return e.db.QueryContext(ctx, query, args...)
}

// QueryRowContext implements Querier on the engine's connection.
func (e *Engine) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return e.db.QueryRowContext(ctx, query, args...)
}

// ─── Transactions ────────────────────────────────────────────────────────────

// WithTx runs fn inside one transaction. It commits when fn returns nil,
// rolls back on error or panic, and always releases the transaction.
// Uncoded errors surface as errs.Storage.
func (e *Engine) WithTx(ctx context.Context, fn func(q Querier) error) (err error) {
	tx, err := e.hooks.beginTx(ctx, e.db)
	if err != nil {
		return errs.Wrap(errs.Storage, "storage: begin transaction", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				e.log.Error("rollback failed", "err", rbErr)
			}
		}
	}()

	if err = fn(tx); err != nil {
		return Classify("transaction", err)
	}
	if err = e.hooks.commit(tx); err != nil {
		return errs.Wrap(errs.Storage, "storage: commit", err)
	}
	return nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// Classify keeps coded errors as they are and wraps everything else as a
// storage error for the named operation.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var coded *errs.Error
	if errors.As(err, &coded) {
		return err
	}
	return errs.Wrap(errs.Storage, "storage: "+op, err)
}

// IsUniqueViolation checks if an error is a SQLite UNIQUE constraint violation.
func IsUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsForeignKeyViolation checks if an error is a SQLite FOREIGN KEY violation.
func IsForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// EscapeLike escapes LIKE wildcards in s. Queries using it must add
// ESCAPE '\' after the pattern.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// Now returns the current time formatted for SQLite.
func Now() string {
	return time.Now().UTC().Format(TimeLayout)
}

// TimeLayout is the on-disk timestamp format.
const TimeLayout = "2006-01-02 15:04:05"

package storage

import "database/sql"

// DB exposes the internal *sql.DB for test helpers in storage_test.
// This file only compiles during `go test`.
func (e *Engine) DB() *sql.DB {
	return e.db
}

// SetCommitHook replaces the commit step so tests can force commit failures.
func (e *Engine) SetCommitHook(fn func(tx *sql.Tx) error) {
	e.hooks.commit = fn
}

package storage

import (
	"context"
	"fmt"
)

// FetchMode selects what Execute returns.
type FetchMode int

const (
	// FetchAll returns every row.
	FetchAll FetchMode = iota
	// FetchOne returns at most one row.
	FetchOne
	// FetchNone returns the affected-row count.
	FetchNone
	// FetchLastID returns the generated row id.
	FetchLastID
)

func (m FetchMode) String() string {
	switch m {
	case FetchAll:
		return "all"
	case FetchOne:
		return "one"
	case FetchNone:
		return "none"
	case FetchLastID:
		return "last_id"
	}
	return fmt.Sprintf("FetchMode(%d)", int(m))
}

// Row is one result row keyed by column name.
type Row map[string]any

// ExecResult holds whatever the fetch mode asked for.
type ExecResult struct {
	Rows         []Row
	RowsAffected int64
	LastInsertID int64
}

// First returns the first row or nil.
func (r *ExecResult) First() Row {
	if r == nil || len(r.Rows) == 0 {
		return nil
	}
	return r.Rows[0]
}

// Execute runs one statement on the engine's connection. Write statements
// run inside their own transaction so a failure never leaves partial work.
func (e *Engine) Execute(ctx context.Context, mode FetchMode, query string, args ...any) (*ExecResult, error) {
	switch mode {
	case FetchAll, FetchOne:
		rows, err := queryRows(ctx, e, query, mode == FetchOne, args...)
		if err != nil {
			e.log.Error("query failed", "query", query, "err", err)
			return nil, Classify("execute", err)
		}
		return &ExecResult{Rows: rows}, nil
	case FetchNone, FetchLastID:
		out := &ExecResult{}
		err := e.WithTx(ctx, func(q Querier) error {
			res, err := q.ExecContext(ctx, query, args...)
			if err != nil {
				return err
			}
			if out.RowsAffected, err = res.RowsAffected(); err != nil {
				return err
			}
			if mode == FetchLastID {
				out.LastInsertID, err = res.LastInsertId()
			}
			return err
		})
		if err != nil {
			e.log.Error("statement failed", "query", query, "err", err)
			return nil, err
		}
		return out, nil
	}
	return nil, fmt.Errorf("storage: unknown fetch mode %v", mode)
}

func queryRows(ctx context.Context, q Querier, query string, single bool, args ...any) ([]Row, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = vals[i]
		}
		out = append(out, row)
		if single {
			break
		}
	}
	return out, rows.Err()
}

// Package dbexec executes compiled query plans against a database handle.
// The planner produces query text and deferred bindings; this package is
// where the two finally meet a live connection.
package dbexec

import (
	"context"
	"database/sql"

	"scim-mysql/internal/planner"
)

// Rows abstracts sql.Rows to allow wrapped cleanup behavior in tests.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// QueryExecutor abstracts SQL execution so stores can run against a plain
// handle in production and a mock in tests.
type QueryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...any) (Rows, error)
}

// StandardExecutor executes queries directly against a database handle.
type StandardExecutor struct {
	db *sql.DB
}

// NewStandardExecutor creates an executor that runs queries directly
// against the database.
func NewStandardExecutor(db *sql.DB) *StandardExecutor {
	return &StandardExecutor{db: db}
}

func (e *StandardExecutor) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	if e.db == nil {
		return nil, sql.ErrConnDone
	}
	return e.db.QueryContext(ctx, query, args...)
}

// QueryPlan binds a compiled plan's parameters and executes it. Execution
// failures are returned unchanged; retry policy belongs to the caller, not
// here.
func QueryPlan(ctx context.Context, exec QueryExecutor, plan *planner.Plan) (Rows, error) {
	query, args, err := plan.Bind()
	if err != nil {
		return nil, err
	}
	return exec.QueryContext(ctx, query, args...)
}

// CountPlan executes a count plan and returns its single result value.
func CountPlan(ctx context.Context, exec QueryExecutor, plan *planner.Plan) (int64, error) {
	rows, err := QueryPlan(ctx, exec, plan)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var total int64
	if rows.Next() {
		if err := rows.Scan(&total); err != nil {
			return 0, err
		}
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	return total, nil
}

// FetchPlanKeys executes a fetch plan and returns the base-table keys of
// the matched rows in result order, deduplicated. Projection joins flatten
// one-to-many rows into the result set, so the same base key can appear on
// several successive rows; only its first occurrence is kept.
func FetchPlanKeys(ctx context.Context, exec QueryExecutor, plan *planner.Plan) ([]string, error) {
	width := plan.RowWidth()
	rows, err := QueryPlan(ctx, exec, plan)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	seen := make(map[string]struct{})
	for rows.Next() {
		// single-column rows still scan through the same fixed-width shape
		dest := make([]any, width)
		var key sql.NullString
		dest[0] = &key
		for i := 1; i < width; i++ {
			dest[i] = new(sql.NullString)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		if !key.Valid {
			continue
		}
		if _, dup := seen[key.String]; dup {
			continue
		}
		seen[key.String] = struct{}{}
		keys = append(keys, key.String)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

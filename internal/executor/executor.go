// Package executor runs an already-validated SQL string against the
// read-only data store and shapes the rows into the ExecutionResult
// contract. Connections are scoped to the call with guaranteed release
// on every exit path.
package executor

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/entool-router/sqlcore/internal/cerrors"
	"github.com/entool-router/sqlcore/internal/schema"
)

// Executor runs sanitized SQL against a read-only DuckDB connection.
type Executor struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

// Open opens (or reuses) a DuckDB database at path. Use ":memory:" for
// an in-process, ephemeral store.
func Open(path string) (*Executor, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, cerrors.NewExecutionError("failed to open executor database", false, err)
	}
	return &Executor{db: db}, nil
}

// Execute runs sql (already passed through the validator) and
// materializes every row eagerly, bounded by the LIMIT the validator
// guaranteed is present.
func (e *Executor) Execute(ctx context.Context, sanitizedSQL string) (*schema.ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, cerrors.NewExecutionError("context cancelled before execution", true, err)
	}

	e.mu.RLock()
	if e.closed || e.db == nil {
		e.mu.RUnlock()
		return nil, cerrors.NewExecutionError("executor connection is closed", false, nil)
	}
	db := e.db
	e.mu.RUnlock()

	rows, err := db.QueryContext(ctx, sanitizedSQL)
	if err != nil {
		return nil, cerrors.NewExecutionError("query execution failed", isRetryableDriverErr(err), err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, cerrors.NewExecutionError("failed to read columns", false, err)
	}

	resultRows := make([][]interface{}, 0)
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, cerrors.NewExecutionError("context cancelled during row iteration", true, err)
		}

		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, cerrors.NewExecutionError("failed to scan row", false, err)
		}
		resultRows = append(resultRows, normalizeRow(values))
	}
	if err := rows.Err(); err != nil {
		return nil, cerrors.NewExecutionError("error during row iteration", true, err)
	}

	return &schema.ExecutionResult{Columns: columns, Rows: resultRows}, nil
}

// normalizeRow converts arbitrary-precision numeric scalars to
// double-precision floats and timestamps to ISO-8601 strings, per the
// wire contract's float64-only mandate.
func normalizeRow(values []interface{}) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		switch val := v.(type) {
		case decimal.Decimal:
			f, _ := val.Float64()
			out[i] = f
		case *decimal.Decimal:
			if val == nil {
				out[i] = nil
				continue
			}
			f, _ := val.Float64()
			out[i] = f
		case time.Time:
			out[i] = val.UTC().Format(time.RFC3339)
		default:
			out[i] = v
		}
	}
	return out
}

// isRetryableDriverErr distinguishes transport-level failures (worth a
// retry) from driver-level permission failures (never retryable).
func isRetryableDriverErr(err error) bool {
	if err == nil {
		return false
	}
	if err == sql.ErrConnDone || err == context.DeadlineExceeded {
		return true
	}
	return false
}

// Close releases the underlying database handle. Idempotent.
func (e *Executor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	if e.db != nil {
		return e.db.Close()
	}
	return nil
}

// Ping checks the executor's connection is reachable, used by the
// gateway's startup health check.
func (e *Executor) Ping(ctx context.Context) error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed || e.db == nil {
		return fmt.Errorf("executor: connection is closed")
	}
	return e.db.PingContext(ctx)
}

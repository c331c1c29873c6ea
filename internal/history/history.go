// Package history implements the query history store (C9): the
// long-retention, persistent companion to the short-term cache. Writes
// are idempotent by query_hash; the first validated SQL for a given
// normalized query wins.
package history

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/entool-router/sqlcore/internal/cerrors"
	"github.com/entool-router/sqlcore/internal/schema"
)

// Store is the Postgres-backed query history store.
type Store struct {
	db            *sql.DB
	retentionDays int
}

// New builds a Store. retentionDays defaults to 30 when <= 0.
func New(db *sql.DB, retentionDays int) *Store {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	return &Store{db: db, retentionDays: retentionDays}
}

var historyWhitespaceRe = regexp.MustCompile(`\s+`)

// QueryHash computes the SHA-256 of the normalized natural-language
// query, matching the normalization the short-term cache uses.
func QueryHash(nlQuery string) string {
	normalized := historyWhitespaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(nlQuery)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Lookup returns the non-expired history entry for nlQuery, if any,
// incrementing use_count and updating last_used_at atomically on hit.
func (s *Store) Lookup(ctx context.Context, nlQuery string) (*schema.HistoryEntry, error) {
	hash := QueryHash(nlQuery)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, cerrors.NewExecutionError("history: failed to begin transaction", true, err)
	}
	defer tx.Rollback()

	var e schema.HistoryEntry
	err = tx.QueryRowContext(ctx, `
		SELECT query_hash, natural_language_query, generated_sql, confidence, row_count,
		       execution_time_ms, tokens_in, tokens_out, cost_usd, user_id, correlation_id,
		       created_at, last_used_at, use_count, expires_at
		FROM query_history
		WHERE query_hash = $1 AND expires_at > NOW()
		FOR UPDATE
	`, hash).Scan(
		&e.QueryHash, &e.NaturalLanguageQuery, &e.GeneratedSQL, &e.Confidence, &e.RowCount,
		&e.ExecutionTimeMS, &e.TokensIn, &e.TokensOut, &e.CostUSD, &e.UserID, &e.CorrelationID,
		&e.CreatedAt, &e.LastUsedAt, &e.UseCount, &e.ExpiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, cerrors.NewExecutionError("history: lookup failed", true, err)
	}

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		UPDATE query_history SET use_count = use_count + 1, last_used_at = $1 WHERE query_hash = $2
	`, now, hash); err != nil {
		return nil, cerrors.NewExecutionError("history: failed to update use_count", true, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, cerrors.NewExecutionError("history: failed to commit lookup", true, err)
	}

	e.UseCount++
	e.LastUsedAt = now
	return &e, nil
}

// Store upserts entry by query_hash. On conflict with an existing row,
// use_count is incremented and last_used_at updated — the first
// validated SQL is never overwritten, which keeps the history stable.
func (s *Store) Store(ctx context.Context, entry schema.HistoryEntry) error {
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	if entry.ExpiresAt.IsZero() {
		entry.ExpiresAt = entry.CreatedAt.AddDate(0, 0, s.retentionDays)
	}
	if entry.UseCount < 1 {
		entry.UseCount = 1
	}
	if entry.LastUsedAt.IsZero() {
		entry.LastUsedAt = entry.CreatedAt
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO query_history (
			query_hash, natural_language_query, generated_sql, confidence, row_count,
			execution_time_ms, tokens_in, tokens_out, cost_usd, user_id, correlation_id,
			created_at, last_used_at, use_count, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (query_hash) DO UPDATE SET
			use_count = query_history.use_count + 1,
			last_used_at = EXCLUDED.last_used_at
	`,
		entry.QueryHash, entry.NaturalLanguageQuery, entry.GeneratedSQL, entry.Confidence, entry.RowCount,
		entry.ExecutionTimeMS, entry.TokensIn, entry.TokensOut, entry.CostUSD, entry.UserID, entry.CorrelationID,
		entry.CreatedAt, entry.LastUsedAt, entry.UseCount, entry.ExpiresAt,
	)
	if err != nil {
		return cerrors.NewExecutionError("history: failed to upsert entry", true, err)
	}
	return nil
}

// Cleanup deletes every entry whose expires_at has passed. Invoked by
// an external scheduler (see cmd/sqlcorectl's "history cleanup").
func (s *Store) Cleanup(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM query_history WHERE expires_at < NOW()`)
	if err != nil {
		return 0, cerrors.NewExecutionError("history: cleanup failed", true, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("history: failed to read rows affected: %w", err)
	}
	return n, nil
}

// Stats reports simple counters used by the operator CLI's "history
// stats" command.
type Stats struct {
	TotalEntries   int64
	ExpiredEntries int64
}

// GetStats returns the current total and expired entry counts.
func (s *Store) GetStats(ctx context.Context) (*Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM query_history`).Scan(&st.TotalEntries); err != nil {
		return nil, cerrors.NewExecutionError("history: failed to count entries", true, err)
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM query_history WHERE expires_at < NOW()`).Scan(&st.ExpiredEntries); err != nil {
		return nil, cerrors.NewExecutionError("history: failed to count expired entries", true, err)
	}
	return &st, nil
}

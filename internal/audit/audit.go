// Package audit implements the append-only audit sink (C2): every core
// operation is recorded with canonicalized, hashed inputs/outputs,
// correlation-threaded. A failure to audit is logged but never fails
// the request — availability of the core wins over completeness of the
// audit trail.
package audit

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	_ "github.com/lib/pq"

	"github.com/entool-router/sqlcore/internal/observability"
	"github.com/entool-router/sqlcore/internal/schema"
)

// Sink is the interface the orchestrator records through.
type Sink interface {
	Record(ctx context.Context, rec schema.AuditRecord) error
	Summary(ctx context.Context) (*Summary, error)
}

// Summary is an aggregate view over the audit store, never exposing raw
// query text — only counts and categories.
type Summary struct {
	AcceptedCount       int
	RejectedCount       int
	TopRejectionReasons []ReasonCount
}

// ReasonCount pairs a rejection action with how many times it occurred.
type ReasonCount struct {
	Action string
	Count  int
}

// PostgresSink persists audit records to PostgreSQL. Writes are
// insert-only; the table is never updated or deleted from except by
// retention policy outside this package's scope.
type PostgresSink struct {
	db     *sql.DB
	logger observability.Logger
}

// NewPostgresSink wraps db for audit writes. The audit_log table is
// expected to already exist — it is created by the migration runner at
// startup, not by this constructor.
func NewPostgresSink(ctx context.Context, db *sql.DB, logger observability.Logger) (*PostgresSink, error) {
	if db == nil {
		return nil, fmt.Errorf("audit: database connection is required")
	}
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &PostgresSink{db: db, logger: logger}, nil
}

// Record inserts rec as one audit_log row. It does not hash anything:
// the record's InputHash/OutputHash are expected to be populated by the
// caller (Scoped.Finish does so via Hash), so a backing-store outage
// never touches plaintext. A failed insert is logged and returned.
func (s *PostgresSink) Record(ctx context.Context, rec schema.AuditRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (ts, correlation_id, user_id, tool, action, input_hash, output_hash, success, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		rec.Timestamp, rec.CorrelationID, rec.UserID, rec.Tool, rec.Action,
		rec.InputHash, rec.OutputHash, rec.Success, rec.DurationMS,
	)
	if err != nil {
		s.logger.LogEvent(ctx, observability.Event{
			CorrelationID: rec.CorrelationID,
			UserID:        rec.UserID,
			Stage:         "audit",
			Outcome:       "error",
			Error:         err.Error(),
		})
		return fmt.Errorf("audit: failed to persist record: %w", err)
	}
	return nil
}

// Summary reports accepted/rejected counts and the most common
// rejection actions, never the underlying query text.
func (s *PostgresSink) Summary(ctx context.Context) (*Summary, error) {
	sum := &Summary{}

	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_log WHERE success`)
	if err := row.Scan(&sum.AcceptedCount); err != nil {
		return nil, fmt.Errorf("audit: failed to count accepted: %w", err)
	}

	row = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_log WHERE NOT success`)
	if err := row.Scan(&sum.RejectedCount); err != nil {
		return nil, fmt.Errorf("audit: failed to count rejected: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT action, COUNT(*) as cnt FROM audit_log WHERE NOT success
		GROUP BY action ORDER BY cnt DESC LIMIT 5
	`)
	if err != nil {
		return nil, fmt.Errorf("audit: failed to query rejection reasons: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rc ReasonCount
		if err := rows.Scan(&rc.Action, &rc.Count); err != nil {
			return nil, err
		}
		sum.TopRejectionReasons = append(sum.TopRejectionReasons, rc)
	}
	return sum, rows.Err()
}

// Close releases the underlying database handle.
func (s *PostgresSink) Close() error {
	return s.db.Close()
}

// InMemorySink is a dependency-free audit sink for tests and
// offline/no-database deployments. Never the production default.
type InMemorySink struct {
	records []schema.AuditRecord
}

// NewInMemorySink creates an empty in-memory audit sink.
func NewInMemorySink() *InMemorySink {
	return &InMemorySink{}
}

// Record appends rec to the in-memory slice.
func (s *InMemorySink) Record(ctx context.Context, rec schema.AuditRecord) error {
	s.records = append(s.records, rec)
	return nil
}

// Summary computes the same aggregate view as PostgresSink, from the
// in-memory slice.
func (s *InMemorySink) Summary(ctx context.Context) (*Summary, error) {
	sum := &Summary{}
	reasons := map[string]int{}
	for _, r := range s.records {
		if r.Success {
			sum.AcceptedCount++
		} else {
			sum.RejectedCount++
			reasons[r.Action]++
		}
	}
	for action, count := range reasons {
		sum.TopRejectionReasons = append(sum.TopRejectionReasons, ReasonCount{Action: action, Count: count})
	}
	sort.Slice(sum.TopRejectionReasons, func(i, j int) bool {
		return sum.TopRejectionReasons[i].Count > sum.TopRejectionReasons[j].Count
	})
	if len(sum.TopRejectionReasons) > 5 {
		sum.TopRejectionReasons = sum.TopRejectionReasons[:5]
	}
	return sum, nil
}

// Canonicalize produces a deterministic JSON serialization of v so that
// semantically equal inputs hash to the same bytes.
func Canonicalize(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// Hash returns the hex-encoded SHA-256 of the canonicalized value.
func Hash(v interface{}) (string, error) {
	data, err := Canonicalize(v)
	if err != nil {
		return "", fmt.Errorf("audit: failed to canonicalize: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Scoped begins a timed audit block. Call Finish on every exit path —
// success, error, or cancellation — to guarantee exactly one
// AuditRecord is written.
type Scoped struct {
	sink          Sink
	correlationID string
	userID        string
	tool          string
	action        string
	started       time.Time
}

// Begin starts a scoped audit block, capturing the current time as the
// duration baseline.
func Begin(sink Sink, correlationID, userID, tool, action string) *Scoped {
	return &Scoped{
		sink:          sink,
		correlationID: correlationID,
		userID:        userID,
		tool:          tool,
		action:        action,
		started:       time.Now(),
	}
}

// Finish hashes input/output, builds the AuditRecord, and writes it.
// The sink's error is returned unchanged; Finish itself does not log
// it. The orchestrator discards this return value, so a failed audit
// write never fails the request (PostgresSink.Record logs its own
// write failures).
func (s *Scoped) Finish(ctx context.Context, input, output interface{}, success bool) error {
	inputHash, err := Hash(input)
	if err != nil {
		inputHash = ""
	}
	outputHash, err := Hash(output)
	if err != nil {
		outputHash = ""
	}

	rec := schema.AuditRecord{
		Timestamp:     time.Now().UTC(),
		CorrelationID: s.correlationID,
		UserID:        s.userID,
		Tool:          s.tool,
		Action:        s.action,
		InputHash:     inputHash,
		OutputHash:    outputHash,
		Success:       success,
		DurationMS:    time.Since(s.started).Milliseconds(),
	}
	return s.sink.Record(ctx, rec)
}

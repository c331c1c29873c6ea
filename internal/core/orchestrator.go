// Package core implements the top-level entry point the transport
// layer calls (C11, "SqlTool"): rate-limits, classifies raw-SQL vs
// natural-language, invokes the planner or validator directly,
// executes, audits, and returns the typed response.
package core

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/entool-router/sqlcore/internal/audit"
	"github.com/entool-router/sqlcore/internal/cerrors"
	"github.com/entool-router/sqlcore/internal/observability"
	"github.com/entool-router/sqlcore/internal/planner"
	"github.com/entool-router/sqlcore/internal/ratelimit"
	"github.com/entool-router/sqlcore/internal/schema"
	"github.com/entool-router/sqlcore/internal/validator"
)

// Executor is the narrow collaborator interface onto C3.
type Executor interface {
	Execute(ctx context.Context, sanitizedSQL string) (*schema.ExecutionResult, error)
}

// HistoryWriter is the narrow collaborator interface onto C9's write
// path (kept separate from planner.HistoryStore's read path).
type HistoryWriter interface {
	Store(ctx context.Context, entry schema.HistoryEntry) error
}

// CacheWriter is the narrow collaborator interface onto C8's write
// path.
type CacheWriter interface {
	Set(ctx context.Context, key string, plan schema.Plan)
}

// Orchestrator is the core's single entry point (SqlTool).
type Orchestrator struct {
	rateLimiter         *ratelimit.Limiter
	validator           *validator.Validator
	planner             *planner.Planner
	executor            Executor
	history             HistoryWriter
	shortCache          CacheWriter
	auditSink           audit.Sink
	logger              observability.Logger
	keyFunc             func(string) string
	confidenceThreshold float64
}

// Config wires every mandatory collaborator. Construction fails fast
// when one is missing — the same discipline cmd/gateway's main.go
// applies to its own repository and adapter registry.
type Config struct {
	RateLimiter         *ratelimit.Limiter
	Validator           *validator.Validator
	Planner             *planner.Planner
	Executor            Executor
	History             HistoryWriter
	ShortCache          CacheWriter
	AuditSink           audit.Sink
	Logger              observability.Logger
	KeyFunc             func(string) string
	ConfidenceThreshold float64
}

// New builds an Orchestrator, returning a configuration error if any
// mandatory collaborator is nil.
func New(cfg Config) (*Orchestrator, error) {
	switch {
	case cfg.RateLimiter == nil:
		return nil, cerrors.NewConfigurationError("rate limiter is required", nil)
	case cfg.Validator == nil:
		return nil, cerrors.NewConfigurationError("validator is required", nil)
	case cfg.Planner == nil:
		return nil, cerrors.NewConfigurationError("planner is required", nil)
	case cfg.Executor == nil:
		return nil, cerrors.NewConfigurationError("executor is required", nil)
	case cfg.History == nil:
		return nil, cerrors.NewConfigurationError("history store is required", nil)
	case cfg.ShortCache == nil:
		return nil, cerrors.NewConfigurationError("short-term cache is required", nil)
	case cfg.AuditSink == nil:
		return nil, cerrors.NewConfigurationError("audit sink is required", nil)
	}

	threshold := cfg.ConfidenceThreshold
	if threshold <= 0 {
		threshold = 0.7
	}
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewNoopLogger()
	}

	return &Orchestrator{
		rateLimiter:         cfg.RateLimiter,
		validator:           cfg.Validator,
		planner:             cfg.Planner,
		executor:            cfg.Executor,
		history:             cfg.History,
		shortCache:          cfg.ShortCache,
		auditSink:           cfg.AuditSink,
		logger:              logger,
		keyFunc:             cfg.KeyFunc,
		confidenceThreshold: threshold,
	}, nil
}

var rawSQLVerbRe = regexp.MustCompile(`^(SELECT|INSERT|UPDATE|DELETE|CREATE|DROP|ALTER|TRUNCATE|GRANT|REVOKE|COPY)\b`)

// isRawSQL implements §4.11 step 3: true iff the trimmed, upper-cased
// query begins with any reserved SQL verb.
func isRawSQL(queryText string) bool {
	upper := strings.ToUpper(strings.TrimSpace(queryText))
	return rawSQLVerbRe.MatchString(upper)
}

// Handle runs a single Request through the 11-step algorithm.
func (o *Orchestrator) Handle(ctx context.Context, req schema.Request) *schema.Response {
	// Step 1: correlation.
	correlationID := req.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	started := time.Now()

	admissionKey := req.UserID
	if admissionKey == "" {
		admissionKey = "anonymous"
	}

	// Step 2: admission.
	if err := o.rateLimiter.Check(admissionKey); err != nil {
		return o.auditAndReturnError(ctx, correlationID, req, started, "rate_limit_check", err)
	}

	// Step 3: classify.
	var plan *schema.Plan
	if isRawSQL(req.QueryText) {
		// Step 4: raw-SQL branch.
		sanitized, err := o.validator.Validate(req.QueryText)
		if err != nil {
			return o.auditAndReturnError(ctx, correlationID, req, started, "validate_raw_sql", err)
		}
		plan = &schema.Plan{SQL: sanitized, Confidence: 1.0, Source: schema.SourceRaw, Explanation: "raw SQL supplied directly"}
	} else {
		// Step 5: natural-language branch.
		p, err := o.planner.Plan(ctx, req.QueryText, correlationID, req.UserID, req.BypassCache)
		if err != nil {
			return o.auditAndReturnError(ctx, correlationID, req, started, "plan", err)
		}
		plan = p
	}

	// Step 6: confidence gate (skipped for raw SQL, which is always 1.0).
	if plan.Confidence < o.confidenceThreshold {
		scoped := audit.Begin(o.auditSink, correlationID, req.UserID, "sql", "clarification")
		scoped.Finish(ctx, req.QueryText, plan.SQL, true)
		return &schema.Response{
			ToolUsed:     "sql",
			Confidence:   plan.Confidence,
			TraceID:      correlationID,
			Notes:        "low_confidence",
			CandidateSQL: plan.SQL,
		}
	}

	// Step 7: re-validate unconditionally, even for cache/history/raw
	// sources — defense in depth against store poisoning.
	sanitized, err := o.validator.Validate(plan.SQL)
	if err != nil {
		return o.auditAndReturnError(ctx, correlationID, req, started, "revalidate", err)
	}
	plan.SQL = sanitized

	// Step 8: execute.
	result, err := o.executor.Execute(ctx, plan.SQL)
	if err != nil {
		return o.auditAndReturnError(ctx, correlationID, req, started, "execute", err)
	}

	// Step 9: persist. Never write failures to either store; only
	// LLM/history-sourced plans are persisted (raw and short_cache are
	// already represented in their origin tier).
	var notes string
	if plan.Source == schema.SourceLLM || plan.Source == schema.SourceHistory {
		now := time.Now().UTC()
		entry := schema.HistoryEntry{
			QueryHash:            historyKey(o.keyFunc, req.QueryText),
			NaturalLanguageQuery: req.QueryText,
			GeneratedSQL:         plan.SQL,
			Confidence:           plan.Confidence,
			RowCount:             result.RowCount(),
			ExecutionTimeMS:      time.Since(started).Milliseconds(),
			TokensIn:             plan.TokensIn,
			TokensOut:            plan.TokensOut,
			CostUSD:              plan.CostUSD,
			UserID:               req.UserID,
			CorrelationID:        correlationID,
			CreatedAt:            now,
		}
		if err := o.history.Store(ctx, entry); err != nil {
			notes = "history_write_failed"
		}
		if !req.BypassCache {
			o.shortCache.Set(ctx, historyKey(o.keyFunc, req.QueryText), *plan)
		}
	}

	// Step 10: audit.
	scoped := audit.Begin(o.auditSink, correlationID, req.UserID, "sql", "execute")
	scoped.Finish(ctx, req.QueryText, result, true)

	// Step 11: return.
	return &schema.Response{
		ToolUsed:   "sql",
		Confidence: plan.Confidence,
		Result:     result,
		TraceID:    correlationID,
		CostUSD:    plan.CostUSD,
		Notes:      notes,
		TokensIn:   plan.TokensIn,
		TokensOut:  plan.TokensOut,
	}
}

func historyKey(keyFunc func(string) string, nlQuery string) string {
	if keyFunc != nil {
		return keyFunc(nlQuery)
	}
	return nlQuery
}

func (o *Orchestrator) auditAndReturnError(ctx context.Context, correlationID string, req schema.Request, started time.Time, action string, err error) *schema.Response {
	scoped := audit.Begin(o.auditSink, correlationID, req.UserID, "sql", action)
	scoped.Finish(ctx, req.QueryText, err.Error(), false)

	o.logger.LogEvent(ctx, observability.Event{
		CorrelationID: correlationID,
		UserID:        req.UserID,
		Stage:         action,
		Outcome:       "error",
		Error:         err.Error(),
		DurationMS:    time.Since(started).Milliseconds(),
	})

	return errorResponse(correlationID, err)
}

// errorResponse builds the seven-key outbound error envelope
// (error_type/category/severity/retryable/details/timestamp/message)
// from the typed error the failing step returned. Errors outside this
// module's taxonomy (should not occur in practice) fall back to a bare
// execution/error classification rather than losing the failure.
func errorResponse(correlationID string, err error) *schema.Response {
	ce := asCoreError(err)
	if ce == nil {
		ce = &cerrors.CoreError{
			ErrorType: "unknown_error",
			Category:  cerrors.CategoryExecution,
			Severity:  cerrors.SeverityError,
			Retryable: false,
			Timestamp: time.Now().UTC(),
			Message:   err.Error(),
		}
	}

	return &schema.Response{
		ToolUsed:  "sql",
		TraceID:   correlationID,
		Notes:     string(ce.Category),
		ErrorType: ce.ErrorType,
		Category:  string(ce.Category),
		Severity:  string(ce.Severity),
		Retryable: ce.Retryable,
		Details:   ce.Details,
		Timestamp: ce.Timestamp,
		Message:   ce.Message,
	}
}

// asCoreError extracts the embedded CoreError from any of this
// module's typed errors, returning nil for anything else.
func asCoreError(err error) *cerrors.CoreError {
	switch e := err.(type) {
	case *cerrors.SafetyError:
		return &e.CoreError
	case *cerrors.ExecutionError:
		return &e.CoreError
	case *cerrors.StructuredOutputError:
		return &e.CoreError
	case *cerrors.ProviderFailureError:
		return &e.CoreError
	case *cerrors.TimeoutError:
		return &e.CoreError
	case *cerrors.RateLimitError:
		return &e.CoreError
	case *cerrors.CircuitBreakerError:
		return &e.CoreError
	case *cerrors.PlannerError:
		return &e.CoreError
	case *cerrors.CacheError:
		return &e.CoreError
	case *cerrors.ConfigurationError:
		return &e.CoreError
	default:
		return nil
	}
}

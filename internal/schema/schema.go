// Package schema defines the request/response and record shapes shared
// across every component of the SQL core.
package schema

import "time"

// Source identifies where a Plan's SQL originated.
type Source string

const (
	SourceLLM        Source = "llm"
	SourceHistory    Source = "history"
	SourceShortCache Source = "short_cache"
	SourceRaw        Source = "raw"
)

// Request is the ephemeral inbound envelope handed to the orchestrator.
type Request struct {
	QueryText     string
	UserID        string
	CorrelationID string
	BypassCache   bool
}

// Plan is a validated intent to execute. Immutable once produced.
type Plan struct {
	SQL         string
	Confidence  float64
	Explanation string
	Source      Source
	TokensIn    int
	TokensOut   int
	CostUSD     float64
}

// ExecutionResult is a tabular result. Immutable once produced.
type ExecutionResult struct {
	Columns []string
	Rows    [][]interface{}
}

// RowCount returns len(Rows); kept as a method rather than a stored field
// so the invariant row_count == len(rows) can never drift.
func (r ExecutionResult) RowCount() int {
	return len(r.Rows)
}

// Response is what the orchestrator returns. On success the plan/result/
// usage fields are populated; on failure the seven-key error envelope
// (ErrorType/Category/Severity/Retryable/Details/Timestamp/Message) is
// populated instead and Result is nil. TraceID (correlation_id) is
// present in both shapes.
type Response struct {
	ToolUsed     string
	Confidence   float64
	Result       *ExecutionResult
	TraceID      string
	CostUSD      float64
	Notes        string
	TokensIn     int
	TokensOut    int
	CandidateSQL string

	ErrorType string
	Category  string
	Severity  string
	Retryable bool
	Details   map[string]interface{}
	Timestamp time.Time
	Message   string
}

// AuditRecord is an append-only record of one core operation.
type AuditRecord struct {
	Timestamp     time.Time
	CorrelationID string
	UserID        string
	Tool          string
	Action        string
	InputHash     string
	OutputHash    string
	Success       bool
	DurationMS    int64
}

// HistoryEntry is the long-retention companion to the short-term cache.
type HistoryEntry struct {
	QueryHash            string
	NaturalLanguageQuery string
	GeneratedSQL         string
	Confidence           float64
	RowCount             int
	ExecutionTimeMS      int64
	TokensIn             int
	TokensOut            int
	CostUSD              float64
	UserID               string
	CorrelationID        string
	CreatedAt            time.Time
	LastUsedAt           time.Time
	UseCount             int
	ExpiresAt            time.Time
}

// Usage reports LLM token consumption and computed cost for one call.
type Usage struct {
	TokensIn  int
	TokensOut int
	CostUSD   float64
}

// PlanSchema is the structured-output contract demanded of every LLM
// vendor: a JSON object with these three fields and no others required.
type PlanSchema struct {
	SQL         string  `json:"sql"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
}

// Package validator implements the deterministic SQL safety gate: the
// final authority over any candidate SQL string before it reaches the
// executor. It is intentionally regex/string-based and stateless — no
// AST parsing, by design: the allowlist, SELECT-only, and
// no-semicolon gates together contain the blast radius of a
// pathological input without the complexity an AST parser would add.
package validator

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/entool-router/sqlcore/internal/cerrors"
)

var blockedKeywordDefaults = []string{
	"INSERT", "UPDATE", "DELETE", "CREATE", "DROP", "ALTER",
	"TRUNCATE", "GRANT", "REVOKE", "COPY",
}

var allowlistDefaults = []string{"sales_fact", "job_runs", "audit_log"}

var limitRe = regexp.MustCompile(`(?i)\bLIMIT\s+\d+\b`)
var fromIdentRe = regexp.MustCompile(`(?i)\bFROM\s+([A-Za-z_][A-Za-z0-9_]*)`)

// Validator applies the five ordered gates of the SQL safety contract.
type Validator struct {
	defaultLimit      int
	allowlistedTables map[string]struct{}
	blockedKeywords   []*regexp.Regexp
}

// New builds a Validator from the allowlisted tables, blocked keywords,
// and default LIMIT configured for the deployment. Empty slices fall
// back to the spec defaults.
func New(defaultLimit int, allowlistedTables, blockedKeywords []string) *Validator {
	if defaultLimit <= 0 {
		defaultLimit = 200
	}
	if len(allowlistedTables) == 0 {
		allowlistedTables = allowlistDefaults
	}
	if len(blockedKeywords) == 0 {
		blockedKeywords = blockedKeywordDefaults
	}

	allow := make(map[string]struct{}, len(allowlistedTables))
	for _, t := range allowlistedTables {
		allow[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}

	blocked := make([]*regexp.Regexp, 0, len(blockedKeywords))
	for _, kw := range blockedKeywords {
		blocked = append(blocked, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(kw)+`\b`))
	}

	return &Validator{
		defaultLimit:      defaultLimit,
		allowlistedTables: allow,
		blockedKeywords:   blocked,
	}
}

// Validate runs the five gates in order, short-circuiting on the first
// failure, and returns the sanitized (possibly LIMIT-appended) SQL on
// success.
func (v *Validator) Validate(sql string) (string, error) {
	trimmed := strings.TrimSpace(sql)
	upper := strings.ToUpper(trimmed)

	// Gate 1: shape — must begin with SELECT.
	if !strings.HasPrefix(upper, "SELECT") {
		return "", cerrors.NewSafetyError("only SELECT allowed")
	}

	// Gate 2: statement boundary — no semicolons permitted anywhere.
	if strings.Contains(trimmed, ";") {
		return "", cerrors.NewSafetyError("semicolons not allowed")
	}

	// Gate 3: keyword blocklist, whole-word, case-insensitive.
	for _, re := range v.blockedKeywords {
		if re.MatchString(trimmed) {
			return "", cerrors.NewSafetyError("blocked keyword present: " + re.String())
		}
	}

	// Gate 4: LIMIT enforcement — the sole rewrite this validator performs.
	sanitized := trimmed
	if !limitRe.MatchString(sanitized) {
		sanitized = appendLimit(sanitized, v.defaultLimit)
	}

	// Gate 5: table allowlist — every FROM identifier must be known.
	matches := fromIdentRe.FindAllStringSubmatch(trimmed, -1)
	for _, m := range matches {
		table := strings.ToLower(m[1])
		if _, ok := v.allowlistedTables[table]; !ok {
			return "", cerrors.NewSafetyError("table not allowlisted: " + m[1])
		}
	}

	return sanitized, nil
}

func appendLimit(sql string, limit int) string {
	return strings.TrimRight(sql, " ") + " LIMIT " + strconv.Itoa(limit)
}

// Package ratelimit implements the sliding-window admission control
// (C7) guarding the core's entry point. Invoked before any expensive
// work — cache lookup, LLM call, SQL execution — so an abuser cannot
// pollute the cache or exhaust the LLM budget.
package ratelimit

import (
	"sync"
	"time"

	"github.com/entool-router/sqlcore/internal/cerrors"
)

// Limiter tracks, per key, the timestamps of requests within the last
// window. golang.org/x/time/rate's token bucket is the obvious library
// candidate but models a different admission policy (a replenishing
// bucket, not a per-key timestamp log with a computed retry_after) —
// so this stays a direct, mutex-guarded implementation of the spec's
// own algorithm.
type Limiter struct {
	mu            sync.Mutex
	window        time.Duration
	maxRequests   int
	timestamps    map[string][]time.Time
}

// New builds a Limiter. maxRequests defaults to 100 and windowSeconds
// to 60 when non-positive.
func New(maxRequests, windowSeconds int) *Limiter {
	if maxRequests <= 0 {
		maxRequests = 100
	}
	if windowSeconds <= 0 {
		windowSeconds = 60
	}
	return &Limiter{
		window:      time.Duration(windowSeconds) * time.Second,
		maxRequests: maxRequests,
		timestamps:  make(map[string][]time.Time),
	}
}

// Check admits or rejects a request for key. The orchestrator passes
// the request's user_id, or the single shared key "anonymous" when
// user_id is absent; caller IPs are not used as keys, so all anonymous
// callers share one window. On rejection, the returned error carries
// retry_after_seconds computed from the oldest timestamp still inside
// the window.
func (l *Limiter) Check(key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-l.window)

	kept := l.timestamps[key][:0]
	for _, ts := range l.timestamps[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	l.timestamps[key] = kept

	if len(kept) >= l.maxRequests {
		retryAfter := kept[0].Add(l.window).Sub(now).Seconds()
		if retryAfter < 0 {
			retryAfter = 0
		}
		return cerrors.NewRateLimitError(retryAfter)
	}

	l.timestamps[key] = append(l.timestamps[key], now)
	return nil
}

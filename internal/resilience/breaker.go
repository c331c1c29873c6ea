package resilience

import (
	"time"

	"github.com/sony/gobreaker"

	"github.com/entool-router/sqlcore/internal/cerrors"
)

// BreakerConfig configures a Breaker's thresholds. Defaults per
// spec.md §4.5: N=5 failures within W=60s opens the breaker; it probes
// recovery after R=30s.
type BreakerConfig struct {
	Name             string
	FailureThreshold uint32
	WindowSeconds    int
	RecoverySeconds  int
}

// Breaker guards a single LLM route's call path. Each route gets its
// own independent instance; BreakerState is process-local.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewBreaker builds a Breaker from cfg, applying spec defaults to any
// zero-valued field.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.WindowSeconds <= 0 {
		cfg.WindowSeconds = 60
	}
	if cfg.RecoverySeconds <= 0 {
		cfg.RecoverySeconds = 30
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1, // single probe permitted in half-open
		Interval:    time.Duration(cfg.WindowSeconds) * time.Second,
		Timeout:     time.Duration(cfg.RecoverySeconds) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.TotalFailures >= cfg.FailureThreshold
		},
	}

	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// State reports the breaker's current state as the spec's own
// vocabulary (closed/open/half_open) rather than gobreaker's raw enum.
func (b *Breaker) State() string {
	switch b.cb.State() {
	case gobreaker.StateOpen:
		return "open"
	case gobreaker.StateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// Execute runs fn through the breaker. When the breaker is open, fn is
// never invoked and a CircuitBreakerError is returned immediately.
func (b *Breaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := b.cb.Execute(fn)
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return nil, cerrors.NewCircuitBreakerError(b.State())
	}
	return result, err
}

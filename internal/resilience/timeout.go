// Package resilience implements the timeout wrapper (C5) and circuit
// breaker (C6) that guard every LLM call path. Unlike a retry helper,
// neither component retries on its own — the spec is explicit that
// retries, if any, live in the caller; a timeout or an open breaker is
// surfaced immediately as a typed error.
package resilience

import (
	"context"
	"time"

	"github.com/entool-router/sqlcore/internal/cerrors"
)

// WithTimeout runs fn under a wall-clock deadline. On expiry the
// context passed to fn is cancelled (the substrate may use it to
// abandon the underlying call) and a TimeoutError is returned; the
// wrapper never swallows the error.
func WithTimeout(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(callCtx)
	}()

	select {
	case err := <-done:
		return err
	case <-callCtx.Done():
		if callCtx.Err() == context.DeadlineExceeded {
			return cerrors.NewTimeoutError("call exceeded deadline", callCtx.Err())
		}
		return cerrors.NewTimeoutError("call cancelled", callCtx.Err())
	}
}

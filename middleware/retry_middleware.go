package middleware

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
	"google.golang.org/grpc/codes"

	"remote-screen-rpc/status"
)

// RetryConfig configures RetryMiddleware.
type RetryConfig struct {
	// Attempts is the total number of tries, including the first.
	Attempts int

	// Delay is the wait before the first retry; it doubles on every
	// following retry up to MaxDelay.
	Delay    time.Duration
	MaxDelay time.Duration

	// Retryable decides whether a failed status is worth another try.
	// Defaults to Retryable.
	Retryable func(status.Status) bool

	Clock clock.Clock
}

// Retryable reports whether st is a transient failure: the service was not
// reachable or rate limited the call. A service without a processing callback
// is misconfigured and is not retried.
func Retryable(st status.Status) bool {
	switch st.Code {
	case codes.Unavailable:
		return st.Message != status.ErrorMessageNoProcessingCallback
	case codes.ResourceExhausted:
		return true
	}
	return false
}

// RetryMiddleware retries transient failures with doubling backoff. It is
// meant for the client side; the dispatch engine itself never retries.
func RetryMiddleware(cfg RetryConfig) Middleware {
	if cfg.Attempts < 1 {
		cfg.Attempts = 1
	}
	if cfg.Delay <= 0 {
		cfg.Delay = 100 * time.Millisecond
	}
	if cfg.Retryable == nil {
		cfg.Retryable = Retryable
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *Call) status.Status {
			var last status.Status
			err := retry.Call(retry.CallArgs{
				Func: func() error {
					last = next(ctx, call)
					return last.Err()
				},
				IsFatalError: func(error) bool {
					return ctx.Err() != nil || !cfg.Retryable(last)
				},
				NotifyFunc: func(err error, attempt int) {
					logger.Debugf("attempt %d of %s failed: %v", attempt, call.FullMethod(), last)
				},
				Attempts:    cfg.Attempts,
				Delay:       cfg.Delay,
				MaxDelay:    cfg.MaxDelay,
				BackoffFunc: retry.DoubleDelay,
				Clock:       cfg.Clock,
				Stop:        ctx.Done(),
			})
			if err != nil && retry.IsAttemptsExceeded(err) {
				logger.Infof("%s still failing after %d attempts: %v", call.FullMethod(), cfg.Attempts, last)
			}
			return last
		}
	}
}

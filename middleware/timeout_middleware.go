package middleware

import (
	"context"
	"time"

	"remote-screen-rpc/status"
)

// TimeOutMiddleware bounds every call by timeout. It is meant for the client
// side: transports return codes.DeadlineExceeded once the context expires.
// A deadline already set by the caller that is earlier wins.
func TimeOutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *Call) status.Status {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return next(ctx, call)
		}
	}
}

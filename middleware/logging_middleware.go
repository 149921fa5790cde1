package middleware

import (
	"context"
	"time"

	"google.golang.org/grpc/codes"

	"remote-screen-rpc/status"
)

// LoggingMiddleware logs every call with its duration. Business failures are
// logged at debug level; engine and transport failures as warnings.
func LoggingMiddleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *Call) status.Status {
			start := time.Now()
			st := next(ctx, call)
			duration := time.Since(start)

			switch {
			case st.Ok():
				logger.Debugf("%s [%s] ok in %s", call.FullMethod(), call.ComID(), duration)
			case st.Code == codes.Aborted:
				logger.Debugf("%s [%s] failed in %s: %s", call.FullMethod(), call.ComID(), duration, st.Message)
			default:
				logger.Warningf("%s [%s] %v in %s", call.FullMethod(), call.ComID(), st, duration)
			}
			return st
		}
	}
}

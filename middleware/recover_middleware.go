package middleware

import (
	"context"
	"runtime/debug"

	"google.golang.org/grpc/codes"

	"remote-screen-rpc/status"
)

// RecoverMiddleware turns a panic in an application callback into an
// Internal status and logs the stack.
func RecoverMiddleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *Call) (st status.Status) {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("%s panicked: %v\n%s", call.FullMethod(), r, debug.Stack())
					st = status.Newf(codes.Internal, "panic in %s", call.FullMethod())
				}
			}()
			return next(ctx, call)
		}
	}
}

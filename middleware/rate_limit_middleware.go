package middleware

import (
	"context"

	"golang.org/x/time/rate"
	"google.golang.org/grpc/codes"

	"remote-screen-rpc/status"
)

// ErrorMessageRateLimited is the message of calls rejected by
// RateLimitMiddleware.
const ErrorMessageRateLimited = "rate limit exceeded"

// RateLimitMiddleware rejects calls beyond a token bucket of r calls per
// second with the given burst. Rejected calls never reach the engine.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *Call) status.Status {
			if !limiter.Allow() {
				return status.New(codes.ResourceExhausted, ErrorMessageRateLimited)
			}
			return next(ctx, call)
		}
	}
}

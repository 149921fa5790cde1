// Package middleware wraps the calls of a service in interceptors.
//
// The same chain type serves both directions: server.Server runs it around
// the dispatch engine, client.Client runs it around the transport. Chain
// builds the onion model:
//
//	Chain(A, B, C)(handler) → A(B(C(handler)))
//	A.before → B.before → C.before → handler → C.after → B.after → A.after
package middleware

import (
	"context"

	"github.com/juju/loggo"

	"remote-screen-rpc/dispatch"
	"remote-screen-rpc/status"
)

var logger = loggo.GetLogger("remotescreen.middleware")

// Call is one call passing through the chain. Request and Response are the
// wire messages; Response is only meaningful when the status is OK.
type Call struct {
	Service  string
	Method   string
	Metadata map[string]string
	Peer     string
	Request  any
	Response any
}

// ComID returns the communication id carried by the call, if any.
func (c *Call) ComID() string {
	return c.Metadata[dispatch.CommunicationIDKey]
}

// FullMethod returns "Service.Method".
func (c *Call) FullMethod() string {
	return c.Service + "." + c.Method
}

type HandlerFunc func(ctx context.Context, call *Call) status.Status

type Middleware func(next HandlerFunc) HandlerFunc

// Chain combines several middlewares into one, applied in the given order.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// Package transport carries dispatch calls over the wire.
//
// Two frameworks share the same status code set:
//
//   - gRPC (unix:// and grpc:// locations): one gRPC service per dispatch
//     service, described at runtime without generated stubs. Messages are
//     encoded by a codec.GRPCCodec, the comId travels as gRPC metadata.
//   - framed TCP (tcp+tv:// and tv+tcp:// locations): the protocol package's
//     frames carrying a message.RPCMessage envelope. Calls from many goroutines
//     are multiplexed over one connection by sequence number.
package transport

import (
	"context"
	"net"
	"os"

	"github.com/juju/errors"
	"github.com/juju/loggo"

	"remote-screen-rpc/codec"
	"remote-screen-rpc/dispatch"
	"remote-screen-rpc/status"
)

var logger = loggo.GetLogger("remotescreen.transport")

// Handler serves the calls of one service. server.Server implements it by
// running its middleware chain around Method.Serve.
type Handler interface {
	ServiceName() string
	Methods() []string
	Lookup(method string) (*dispatch.Method, bool)
	Handle(rc *dispatch.RequestContext, m *dispatch.Method, req, resp any) status.Status
}

// ServerTransport accepts calls for a Handler on a listener.
type ServerTransport interface {
	// Serve blocks until the transport is shut down.
	Serve(l net.Listener) error

	// Shutdown stops accepting calls and waits for in-flight calls until ctx
	// is done, after which remaining connections are closed.
	Shutdown(ctx context.Context) error

	// Close stops the transport immediately.
	Close() error
}

// ClientTransport issues calls to one remote service.
type ClientTransport interface {
	dispatch.Invoker
	Close() error
}

// NewServerTransport creates the server transport serving loc.
func NewServerTransport(loc Location, h Handler, codecType codec.CodecType) (ServerTransport, error) {
	switch loc.Framework() {
	case GRPCTransport:
		return NewGRPCServer(h, codecType), nil
	case TCPSocketTransport:
		return NewTCPServer(h), nil
	}
	return nil, errors.NotSupportedf("transport for scheme %q", loc.Scheme)
}

// Dial connects to the service at loc.
func Dial(ctx context.Context, loc Location, service string, codecType codec.CodecType) (ClientTransport, error) {
	switch loc.Framework() {
	case GRPCTransport:
		c, err := DialGRPC(loc, service, codecType)
		if err != nil {
			return nil, err
		}
		return c, nil
	case TCPSocketTransport:
		c, err := DialTCP(ctx, loc, service, codecType)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, errors.NotSupportedf("transport for scheme %q", loc.Scheme)
}

// Listen opens the listener of loc. A stale unix socket left behind by a
// previous process is removed first.
func Listen(loc Location) (net.Listener, error) {
	if loc.Network() == "unix" {
		if err := os.Remove(loc.Address()); err != nil && !os.IsNotExist(err) {
			return nil, errors.Annotatef(err, "removing stale socket %s", loc.Address())
		}
	}
	l, err := net.Listen(loc.Network(), loc.Address())
	if err != nil {
		return nil, errors.Annotatef(err, "listening on %s", loc)
	}
	return l, nil
}

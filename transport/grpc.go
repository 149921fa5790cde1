package transport

import (
	"context"
	"net"

	"github.com/juju/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	grpcstatus "google.golang.org/grpc/status"

	"remote-screen-rpc/codec"
	"remote-screen-rpc/dispatch"
	"remote-screen-rpc/status"
)

// GRPCServer serves a Handler as a gRPC service. The service is described at
// runtime from the handler's method table, one unary method per operation.
type GRPCServer struct {
	handler Handler
	server  *grpc.Server
}

// NewGRPCServer creates a gRPC server transport for h. All messages are
// encoded with the codec of codecType whatever the content subtype announced
// by the client.
func NewGRPCServer(h Handler, codecType codec.CodecType) *GRPCServer {
	s := &GRPCServer{
		handler: h,
		server:  grpc.NewServer(grpc.ForceServerCodec(codec.NewGRPCCodec(codecType))),
	}
	s.server.RegisterService(s.serviceDesc(), h)
	return s
}

func (s *GRPCServer) serviceDesc() *grpc.ServiceDesc {
	desc := &grpc.ServiceDesc{
		ServiceName: s.handler.ServiceName(),
		// Any Handler may be registered.
		HandlerType: (*any)(nil),
		Metadata:    "remote-screen-rpc",
	}
	for _, name := range s.handler.Methods() {
		desc.Methods = append(desc.Methods, grpc.MethodDesc{
			MethodName: name,
			Handler:    s.unaryHandler(name),
		})
	}
	return desc
}

func (s *GRPCServer) unaryHandler(name string) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := "/" + s.handler.ServiceName() + "/" + name
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		m, ok := s.handler.Lookup(name)
		if !ok {
			return nil, grpcstatus.Errorf(codes.Unimplemented, "unknown method %s", fullMethod)
		}
		req := m.NewRequest()
		if err := dec(req); err != nil {
			return nil, grpcstatus.Error(codes.Internal, status.ErrorMessageMalformedCall)
		}
		handle := func(ctx context.Context, req any) (any, error) {
			resp := m.NewResponse()
			rc := dispatch.NewRequestContext(ctx, incomingMetadata(ctx), peerAddr(ctx))
			if st := s.handler.Handle(rc, m, req, resp); !st.Ok() {
				return nil, st.Err()
			}
			return resp, nil
		}
		if interceptor == nil {
			return handle(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		return interceptor(ctx, req, info, handle)
	}
}

func incomingMetadata(ctx context.Context) map[string]string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(md))
	for k, v := range md {
		if len(v) > 0 {
			out[k] = v[0]
		}
	}
	return out
}

func peerAddr(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return ""
}

// Serve implements ServerTransport.
func (s *GRPCServer) Serve(l net.Listener) error {
	if err := s.server.Serve(l); err != nil && err != grpc.ErrServerStopped {
		return errors.Trace(err)
	}
	return nil
}

// Shutdown implements ServerTransport.
func (s *GRPCServer) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.server.Stop()
		<-done
		return errors.Annotate(ctx.Err(), "waiting for ongoing requests to finish")
	}
}

// Close implements ServerTransport.
func (s *GRPCServer) Close() error {
	s.server.Stop()
	return nil
}

// GRPCClient issues calls to one gRPC service.
type GRPCClient struct {
	conn    *grpc.ClientConn
	service string
}

// DialGRPC creates a client for the gRPC service at loc. The connection is
// established lazily by the first call.
func DialGRPC(loc Location, service string, codecType codec.CodecType) (*GRPCClient, error) {
	conn, err := grpc.NewClient(loc.GRPCTarget(),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(codec.NewGRPCCodec(codecType))),
	)
	if err != nil {
		return nil, errors.Annotatef(err, "creating gRPC client for %s", loc)
	}
	return &GRPCClient{conn: conn, service: service}, nil
}

// Invoke implements dispatch.Invoker.
func (c *GRPCClient) Invoke(ctx context.Context, method string, md map[string]string, req, resp any) status.Status {
	if len(md) > 0 {
		ctx = metadata.NewOutgoingContext(ctx, metadata.New(md))
	}
	err := c.conn.Invoke(ctx, "/"+c.service+"/"+method, req, resp)
	return status.FromError(err)
}

// Close implements ClientTransport.
func (c *GRPCClient) Close() error {
	return errors.Trace(c.conn.Close())
}

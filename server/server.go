// Package server hosts one dispatch service on a location.
//
// Request processing pipeline:
//
//	transport decodes the call → Server.Handle
//	  → middleware chain → Method.Serve (dispatch.ServerCall) → transport encodes the reply
//
// A Server announces its location to a registry.Registry when it starts and
// removes it again when it stops, so that clients resolving the service type
// stop routing to it before in-flight calls are drained.
package server

import (
	"context"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"go.uber.org/multierr"
	"google.golang.org/grpc/codes"

	"remote-screen-rpc/codec"
	"remote-screen-rpc/dispatch"
	"remote-screen-rpc/middleware"
	"remote-screen-rpc/registry"
	"remote-screen-rpc/status"
	"remote-screen-rpc/transport"
)

var logger = loggo.GetLogger("remotescreen.server")

// DefaultRegistrationTTL is the lease of the registry entry written by
// StartServer. The registry keeps the lease alive while the server runs.
const DefaultRegistrationTTL = 10 * time.Second

// Option configures a Server.
type Option func(*Server)

// WithCodec selects the codec of the transport.
func WithCodec(t codec.CodecType) Option {
	return func(s *Server) {
		s.codecType = t
	}
}

// WithRegistry makes the server announce its location in reg.
func WithRegistry(reg registry.Registry, ttl time.Duration) Option {
	return func(s *Server) {
		s.registry = reg
		s.ttl = ttl
	}
}

// WithMiddleware adds middlewares, applied in the order given.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(s *Server) {
		s.middlewares = append(s.middlewares, mws...)
	}
}

// Server hosts the methods of one service.
type Server struct {
	serviceType registry.ServiceType
	service     *dispatch.Service
	codecType   codec.CodecType
	registry    registry.Registry
	ttl         time.Duration

	mu          sync.RWMutex
	middlewares []middleware.Middleware
	handler     middleware.HandlerFunc // middleware(middleware(...(serve)))
	location    string
	transport   transport.ServerTransport
	served      chan struct{}
}

// New creates a server for svc, announced as serviceType.
func New(serviceType registry.ServiceType, svc *dispatch.Service, opts ...Option) *Server {
	s := &Server{
		serviceType: serviceType,
		service:     svc,
		codecType:   codec.CodecTypeCBOR,
		ttl:         DefaultRegistrationTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.handler = middleware.Chain(s.middlewares...)(serve)
	return s
}

// Use registers a middleware. Middlewares are applied in the order they are added.
func (s *Server) Use(mw middleware.Middleware) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.middlewares = append(s.middlewares, mw)
	s.handler = middleware.Chain(s.middlewares...)(serve)
}

// GetServiceType returns the service type the server was created for.
func (s *Server) GetServiceType() registry.ServiceType {
	return s.serviceType
}

// GetLocation returns the location the server is started on, or "" when it
// is not running.
func (s *Server) GetLocation() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.location
}

// Service returns the hosted dispatch service.
func (s *Server) Service() *dispatch.Service {
	return s.service
}

// StartServer starts serving on location and announces it. It fails if the
// server is already running or the location cannot be served.
func (s *Server) StartServer(ctx context.Context, location string) error {
	loc, err := transport.ParseLocation(location)
	if err != nil {
		return errors.Trace(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transport != nil {
		return errors.AlreadyExistsf("%s server on %s", s.serviceType, s.location)
	}

	tr, err := transport.NewServerTransport(loc, s, s.codecType)
	if err != nil {
		return errors.Trace(err)
	}
	l, err := transport.Listen(loc)
	if err != nil {
		return errors.Trace(err)
	}

	served := make(chan struct{})
	go func() {
		defer close(served)
		if err := tr.Serve(l); err != nil {
			logger.Errorf("%s server on %s: %v", s.serviceType, location, err)
		}
	}()

	if s.registry != nil {
		reg := registry.ServiceRegistration{Type: s.serviceType, Location: location}
		if err := s.registry.Register(ctx, reg, s.ttl); err != nil {
			tr.Close()
			<-served
			return errors.Annotatef(err, "announcing %s on %s", s.serviceType, location)
		}
	}

	s.transport = tr
	s.location = location
	s.served = served
	logger.Infof("%s server started on %s", s.serviceType, location)
	return nil
}

// StopServer stops a running server:
//  1. remove the registry entry (clients stop routing to this server)
//  2. stop accepting calls
//  3. unless force is set, wait for in-flight calls until ctx is done
//
// Stopping a server that is not running does nothing.
func (s *Server) StopServer(ctx context.Context, force bool) error {
	s.mu.Lock()
	tr, location, served := s.transport, s.location, s.served
	s.transport, s.location, s.served = nil, "", nil
	s.mu.Unlock()

	if tr == nil {
		return nil
	}

	var err error
	if s.registry != nil {
		err = multierr.Append(err, s.registry.Deregister(ctx, s.serviceType, location))
	}
	if force {
		err = multierr.Append(err, tr.Close())
	} else {
		err = multierr.Append(err, tr.Shutdown(ctx))
	}
	<-served
	logger.Infof("%s server on %s stopped", s.serviceType, location)
	return err
}

// ServiceName implements transport.Handler.
func (s *Server) ServiceName() string {
	return s.service.Name()
}

// Methods implements transport.Handler.
func (s *Server) Methods() []string {
	return s.service.Methods()
}

// Lookup implements transport.Handler.
func (s *Server) Lookup(method string) (*dispatch.Method, bool) {
	return s.service.Method(method)
}

// Handle implements transport.Handler by running the middleware chain around
// the dispatch engine.
func (s *Server) Handle(rc *dispatch.RequestContext, m *dispatch.Method, req, resp any) status.Status {
	s.mu.RLock()
	handler := s.handler
	s.mu.RUnlock()

	call := &middleware.Call{
		Service:  s.service.Name(),
		Method:   m.Name,
		Metadata: rc.Metadata,
		Peer:     rc.Peer,
		Request:  req,
		Response: resp,
	}
	ctx := context.WithValue(rc.Context, requestKey{}, &request{method: m})
	return handler(ctx, call)
}

type requestKey struct{}

type request struct {
	method *dispatch.Method
}

// serve is the innermost handler of the chain.
func serve(ctx context.Context, call *middleware.Call) status.Status {
	r, ok := ctx.Value(requestKey{}).(*request)
	if !ok {
		return status.New(codes.Internal, status.ErrorMessageMalformedCall)
	}
	rc := &dispatch.RequestContext{Context: ctx, Metadata: call.Metadata, Peer: call.Peer}
	return r.method.Serve(rc, call.Request, call.Response)
}

package dispatch

import (
	"fmt"
	"sort"
	"sync"

	"google.golang.org/grpc/codes"

	"remote-screen-rpc/status"
)

// Method is the type-erased view of one operation, used by transports that
// only know method names and raw payloads.
type Method struct {
	Name string

	// NewRequest and NewResponse allocate the wire types of the method.
	NewRequest  func() any
	NewResponse func() any

	// Serve runs ServerCall with the method's strategy. req and resp must
	// be the values returned by NewRequest and NewResponse.
	Serve func(rc *RequestContext, req, resp any) status.Status
}

// Service is the method table of one service, bound to its Engine.
type Service struct {
	engine *Engine

	mu      sync.RWMutex
	methods map[string]*Method
}

// NewService creates a service over the given engine.
func NewService(engine *Engine) *Service {
	return &Service{
		engine:  engine,
		methods: make(map[string]*Method),
	}
}

// Name returns the service name.
func (s *Service) Name() string {
	return s.engine.Name()
}

// Engine returns the dispatch engine of the service.
func (s *Service) Engine() *Engine {
	return s.engine
}

// Handle registers method under name, served through strategy, and binds the
// strategy's operation to the callback type CB. It panics on duplicate method
// names and on callback type conflicts.
func Handle[Req, Resp, CB, R any](svc *Service, name string, strategy Strategy[Req, Resp, CB, R]) {
	BindCallback[CB](svc.engine.Callbacks(), strategy.Operation())

	m := &Method{
		Name:        name,
		NewRequest:  func() any { return new(Req) },
		NewResponse: func() any { return new(Resp) },
		Serve: func(rc *RequestContext, req, resp any) status.Status {
			typedReq, ok := req.(*Req)
			if !ok {
				return status.Newf(codes.Internal, "%s: request type %T", name, req)
			}
			typedResp, ok := resp.(*Resp)
			if !ok {
				return status.Newf(codes.Internal, "%s: response type %T", name, resp)
			}
			return ServerCall(svc.engine, strategy, rc, typedReq, typedResp)
		},
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	if _, exists := svc.methods[name]; exists {
		panic(fmt.Sprintf("dispatch: duplicate method %s.%s", svc.Name(), name))
	}
	svc.methods[name] = m
}

// Method returns the method registered under name.
func (s *Service) Method(name string) (*Method, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.methods[name]
	return m, ok
}

// Methods returns the registered method names in sorted order.
func (s *Service) Methods() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.methods))
	for name := range s.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

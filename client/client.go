// Package client is the connection side shared by every service client.
//
// A Client is started on one destination location. Calls issued through its
// Invoker pass the client middleware chain and are carried by a transport
// taken from a transport.Pool, so a broken TCP connection is redialled on the
// next call. When no destination is known, Connect resolves one from a
// registry.Registry through a loadbalance.Balancer.
package client

import (
	"context"
	"sync"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"google.golang.org/grpc/codes"

	"remote-screen-rpc/codec"
	"remote-screen-rpc/dispatch"
	"remote-screen-rpc/loadbalance"
	"remote-screen-rpc/middleware"
	"remote-screen-rpc/registry"
	"remote-screen-rpc/status"
	"remote-screen-rpc/transport"
)

var logger = loggo.GetLogger("remotescreen.client")

// Option configures a Client.
type Option func(*Client)

// WithCodec selects the codec of the transport.
func WithCodec(t codec.CodecType) Option {
	return func(c *Client) {
		c.codecType = t
	}
}

// WithRegistry lets Connect resolve destinations from reg using bal.
func WithRegistry(reg registry.Registry, bal loadbalance.Balancer) Option {
	return func(c *Client) {
		c.registry = reg
		c.balancer = bal
	}
}

// WithMiddleware adds middlewares, applied in the order given.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(c *Client) {
		c.middlewares = append(c.middlewares, mws...)
	}
}

// Client connects to one remote service.
type Client struct {
	serviceType registry.ServiceType
	service     string
	codecType   codec.CodecType
	registry    registry.Registry
	balancer    loadbalance.Balancer
	middlewares []middleware.Middleware

	mu          sync.RWMutex
	destination string
	pool        *transport.Pool
	invoker     dispatch.Invoker
}

// New creates a client of the named service, announced as serviceType.
func New(serviceType registry.ServiceType, service string, opts ...Option) *Client {
	c := &Client{
		serviceType: serviceType,
		service:     service,
		codecType:   codec.CodecTypeCBOR,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.registry != nil && c.balancer == nil {
		c.balancer = &loadbalance.RoundRobinBalancer{}
	}
	return c
}

// GetServiceType returns the service type the client was created for.
func (c *Client) GetServiceType() registry.ServiceType {
	return c.serviceType
}

// GetDestination returns the location the client is started on, or "" when
// it is not started.
func (c *Client) GetDestination() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.destination
}

// StartClient connects the client to destination. A started client is
// restarted on the new destination.
func (c *Client) StartClient(ctx context.Context, destination string) error {
	loc, err := transport.ParseLocation(destination)
	if err != nil {
		return errors.Trace(err)
	}
	if loc.Framework() == transport.UnknownTransport {
		return errors.NotSupportedf("transport for scheme %q", loc.Scheme)
	}

	pool := transport.NewPool(c.service, c.codecType)
	if _, err := pool.Get(ctx, loc); err != nil {
		pool.Close()
		return errors.Annotatef(err, "connecting %s client to %s", c.serviceType, destination)
	}

	send := func(ctx context.Context, call *middleware.Call) status.Status {
		t, err := pool.Get(ctx, loc)
		if err != nil {
			return status.New(codes.Unavailable, err.Error())
		}
		return t.Invoke(ctx, call.Method, call.Metadata, call.Request, call.Response)
	}
	handler := middleware.Chain(c.middlewares...)(send)
	invoker := dispatch.InvokerFunc(func(ctx context.Context, method string, md map[string]string, req, resp any) status.Status {
		return handler(ctx, &middleware.Call{
			Service:  c.service,
			Method:   method,
			Metadata: md,
			Peer:     destination,
			Request:  req,
			Response: resp,
		})
	})

	c.mu.Lock()
	old := c.pool
	c.destination = destination
	c.pool = pool
	c.invoker = invoker
	c.mu.Unlock()

	if old != nil {
		old.Close()
	}
	logger.Debugf("%s client started on %s", c.serviceType, destination)
	return nil
}

// Resolve picks a destination for comID among the registrations of the
// client's service type.
func (c *Client) Resolve(ctx context.Context, comID string) (string, error) {
	if c.registry == nil {
		return "", errors.NotValidf("%s client without registry", c.serviceType)
	}
	regs, err := c.registry.Discover(ctx, c.serviceType)
	if err != nil {
		return "", errors.Trace(err)
	}
	reg, err := c.balancer.Pick(comID, regs)
	if err != nil {
		return "", errors.Annotatef(err, "resolving %s", c.serviceType)
	}
	return reg.Location, nil
}

// Connect resolves a destination for comID and starts the client on it.
func (c *Client) Connect(ctx context.Context, comID string) error {
	destination, err := c.Resolve(ctx, comID)
	if err != nil {
		return err
	}
	return c.StartClient(ctx, destination)
}

// StopClient disconnects the client. Calls issued afterwards fail with
// "client not started".
func (c *Client) StopClient() error {
	c.mu.Lock()
	pool := c.pool
	c.destination, c.pool, c.invoker = "", nil, nil
	c.mu.Unlock()

	if pool == nil {
		return nil
	}
	return pool.Close()
}

// Invoker returns the invoker of the started client, or nil.
func (c *Client) Invoker() dispatch.Invoker {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.invoker == nil {
		return nil
	}
	return c.invoker
}

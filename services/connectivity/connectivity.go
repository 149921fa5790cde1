// Package connectivity implements the connectivity service: a heartbeat the
// peers of a session use to check each other, and the request to end the
// session.
package connectivity

import (
	"context"

	"remote-screen-rpc/client"
	"remote-screen-rpc/dispatch"
	"remote-screen-rpc/registry"
	"remote-screen-rpc/server"
	"remote-screen-rpc/status"
)

// ServiceName is the wire name of the connectivity service.
const ServiceName = "ConnectivityService"

const (
	opIsAvailable dispatch.Operation = iota
	opDisconnect
	operationCount
)

var operations = dispatch.NewOperationSet("IsAvailable", "Disconnect")

type (
	heartbeatRequest   struct{}
	heartbeatResponse  struct{}
	disconnectRequest  struct{}
	disconnectResponse struct{}
)

// Callback is the signature of both connectivity operations.
type Callback func(comID string, respond dispatch.Respond)

type isAvailableStrategy struct {
	dispatch.StatusOnly[heartbeatRequest, heartbeatResponse]
}

func (isAvailableStrategy) InvokeCallback(cb Callback, comID string, _ *heartbeatRequest, respond dispatch.Respond) {
	cb(comID, respond)
}

type disconnectStrategy struct {
	dispatch.StatusOnly[disconnectRequest, disconnectResponse]
}

func (disconnectStrategy) InvokeCallback(cb Callback, comID string, _ *disconnectRequest, respond dispatch.Respond) {
	cb(comID, respond)
}

// Server serves the connectivity service.
type Server struct {
	*server.Server
	engine *dispatch.Engine
}

// NewServer creates a connectivity server with empty callback slots.
func NewServer(opts ...server.Option) *Server {
	engine := dispatch.NewEngine(ServiceName, operationCount, operations)
	svc := dispatch.NewService(engine)

	isAvailable := isAvailableStrategy{}
	isAvailable.Op = opIsAvailable
	dispatch.Handle[heartbeatRequest, heartbeatResponse, Callback, dispatch.Respond](svc, "IsAvailable", isAvailable)

	disconnect := disconnectStrategy{}
	disconnect.Op = opDisconnect
	dispatch.Handle[disconnectRequest, disconnectResponse, Callback, dispatch.Respond](svc, "Disconnect", disconnect)

	return &Server{
		Server: server.New(registry.Connectivity, svc, opts...),
		engine: engine,
	}
}

// SetIsAvailableCallback sets the callback answering IsAvailable.
func (s *Server) SetIsAvailableCallback(cb Callback) {
	dispatch.SetCallback(s.engine.Callbacks(), opIsAvailable, cb)
}

// SetDisconnectCallback sets the callback answering Disconnect.
func (s *Server) SetDisconnectCallback(cb Callback) {
	dispatch.SetCallback(s.engine.Callbacks(), opDisconnect, cb)
}

// Client calls the connectivity service.
type Client struct {
	*client.Client
}

// NewClient creates a connectivity client; call StartClient before use.
func NewClient(opts ...client.Option) *Client {
	return &Client{Client: client.New(registry.Connectivity, ServiceName, opts...)}
}

// IsAvailable sends one heartbeat.
func (c *Client) IsAvailable(ctx context.Context, comID string) status.CallStatus {
	s := dispatch.ClientBase[heartbeatRequest, heartbeatResponse, struct{}]{Name: "IsAvailable"}
	return dispatch.ClientCall[heartbeatRequest, heartbeatResponse, struct{}, status.CallStatus](
		ctx, c.Invoker(), s, comID, struct{}{})
}

// Disconnect asks the peer to end the session comID.
func (c *Client) Disconnect(ctx context.Context, comID string) status.CallStatus {
	s := dispatch.ClientBase[disconnectRequest, disconnectResponse, struct{}]{Name: "Disconnect"}
	return dispatch.ClientCall[disconnectRequest, disconnectResponse, struct{}, status.CallStatus](
		ctx, c.Invoker(), s, comID, struct{}{})
}

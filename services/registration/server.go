// Package registration implements the registration service, the entry point
// of a remote screen session.
//
// A client first exchanges versions, then discovers the agent: Discover hands
// out a fresh comId together with the locations of the agent's services.
// Neither call requires a comId. The client then registers the locations of
// the services it serves itself under that comId.
package registration

import (
	"google.golang.org/grpc/codes"

	"remote-screen-rpc/dispatch"
	"remote-screen-rpc/registry"
	"remote-screen-rpc/server"
	"remote-screen-rpc/status"
)

// ServiceName is the wire name of the registration service.
const ServiceName = "RegistrationService"

const (
	opExchangeVersion dispatch.Operation = iota
	opDiscover
	opRegister
	operationCount
)

var operations = dispatch.NewOperationSet("ExchangeVersion", "Discover", "Register")

type (
	// ExchangeVersionRespond reports the agent's own version.
	ExchangeVersionRespond func(cs status.CallStatus, ownVersion string)

	// ExchangeVersionCallback receives the caller's version.
	ExchangeVersionCallback func(receivedVersion string, respond ExchangeVersionRespond)

	// DiscoverRespond hands out the comId of the new session and the
	// services it may use.
	DiscoverRespond func(cs status.CallStatus, comID string, services []registry.ServiceRegistration)

	// DiscoverCallback starts a session for a caller speaking
	// communicationVersion.
	DiscoverCallback func(communicationVersion string, respond DiscoverRespond)

	// RegisterCallback records that the session comID serves t on location.
	RegisterCallback func(comID string, t registry.ServiceType, location string, respond dispatch.Respond)
)

type exchangeVersionStrategy struct {
	dispatch.BaseStrategy[exchangeVersionRequest]
}

// ComID does not require a comId: versions are exchanged before discovery.
func (exchangeVersionStrategy) ComID(rc *dispatch.RequestContext) (string, bool) {
	return dispatch.WithoutComID{}.ComID(rc)
}

func (exchangeVersionStrategy) MakeResponseProcessing(reply *dispatch.Reply[exchangeVersionResponse]) ExchangeVersionRespond {
	return func(cs status.CallStatus, ownVersion string) {
		reply.Commit(func(resp *exchangeVersionResponse) status.Status {
			if cs.IsOk() {
				resp.Version = ownVersion
			}
			return status.FromCallStatus(cs)
		})
	}
}

func (exchangeVersionStrategy) InvokeCallback(cb ExchangeVersionCallback, _ string, req *exchangeVersionRequest, respond ExchangeVersionRespond) {
	cb(req.Version, respond)
}

type discoverStrategy struct {
	dispatch.BaseStrategy[discoverRequest]
}

// ComID does not require a comId: Discover hands it out.
func (discoverStrategy) ComID(rc *dispatch.RequestContext) (string, bool) {
	return dispatch.WithoutComID{}.ComID(rc)
}

func (discoverStrategy) ValidateRequest(req *discoverRequest) status.Status {
	if req.CommunicationVersion == "" {
		return status.New(codes.InvalidArgument, status.ErrorMessageRequiredFieldEmpty)
	}
	return status.OK
}

// MakeResponseProcessing writes the comId and the services on success. A
// session without comId or a service of unknown type cancels the call.
func (discoverStrategy) MakeResponseProcessing(reply *dispatch.Reply[discoverResponse]) DiscoverRespond {
	return func(cs status.CallStatus, comID string, services []registry.ServiceRegistration) {
		reply.Commit(func(resp *discoverResponse) status.Status {
			if !cs.IsOk() {
				return status.FromCallStatus(cs)
			}
			if comID == "" {
				return status.New(codes.Canceled, status.ErrorMessageRequiredFieldEmpty)
			}
			resp.ComID = comID
			for _, svc := range services {
				if !svc.Type.Valid() {
					resp.ComID, resp.Services = "", nil
					return status.New(codes.Canceled, status.ErrorMessageUnexpectedEnumValue)
				}
				resp.Services = append(resp.Services, serviceInformation{Type: int32(svc.Type), Location: svc.Location})
			}
			return status.OK
		})
	}
}

func (discoverStrategy) InvokeCallback(cb DiscoverCallback, _ string, req *discoverRequest, respond DiscoverRespond) {
	cb(req.CommunicationVersion, respond)
}

type registerStrategy struct {
	dispatch.StatusOnly[registerRequest, registerResponse]
}

func (registerStrategy) ValidateRequest(req *registerRequest) status.Status {
	if !registry.ServiceType(req.Type).Valid() {
		return status.New(codes.InvalidArgument, status.ErrorMessageUnexpectedEnumValue)
	}
	if req.Location == "" {
		return status.New(codes.InvalidArgument, status.ErrorMessageRequiredFieldEmpty)
	}
	return status.OK
}

func (registerStrategy) InvokeCallback(cb RegisterCallback, comID string, req *registerRequest, respond dispatch.Respond) {
	cb(comID, registry.ServiceType(req.Type), req.Location, respond)
}

// Server serves the registration service.
type Server struct {
	*server.Server
	engine *dispatch.Engine
}

// NewServer creates a registration server with empty callback slots.
func NewServer(opts ...server.Option) *Server {
	engine := dispatch.NewEngine(ServiceName, operationCount, operations)
	svc := dispatch.NewService(engine)

	exchange := exchangeVersionStrategy{}
	exchange.Op = opExchangeVersion
	dispatch.Handle[exchangeVersionRequest, exchangeVersionResponse, ExchangeVersionCallback, ExchangeVersionRespond](
		svc, "ExchangeVersion", exchange)

	discover := discoverStrategy{}
	discover.Op = opDiscover
	dispatch.Handle[discoverRequest, discoverResponse, DiscoverCallback, DiscoverRespond](
		svc, "Discover", discover)

	register := registerStrategy{}
	register.Op = opRegister
	dispatch.Handle[registerRequest, registerResponse, RegisterCallback, dispatch.Respond](
		svc, "Register", register)

	return &Server{
		Server: server.New(registry.Registration, svc, opts...),
		engine: engine,
	}
}

// SetExchangeVersionCallback sets the callback answering ExchangeVersion.
func (s *Server) SetExchangeVersionCallback(cb ExchangeVersionCallback) {
	dispatch.SetCallback(s.engine.Callbacks(), opExchangeVersion, cb)
}

// SetDiscoverCallback sets the callback answering Discover.
func (s *Server) SetDiscoverCallback(cb DiscoverCallback) {
	dispatch.SetCallback(s.engine.Callbacks(), opDiscover, cb)
}

// SetRegisterCallback sets the callback answering Register.
func (s *Server) SetRegisterCallback(cb RegisterCallback) {
	dispatch.SetCallback(s.engine.Callbacks(), opRegister, cb)
}

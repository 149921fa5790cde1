package accesscontrol

import (
	"google.golang.org/grpc/codes"

	"remote-screen-rpc/dispatch"
	"remote-screen-rpc/registry"
	"remote-screen-rpc/server"
	"remote-screen-rpc/status"
)

// OutServiceName is the wire name of the AccessControlOut service.
const OutServiceName = "AccessControlOutService"

const (
	opAskForConfirmation dispatch.Operation = iota
	opNotifyChange
	outOperationCount
)

var outOperations = dispatch.NewOperationSet("AskForConfirmation", "NotifyChange")

type (
	// AskForConfirmationCallback prompts the user to confirm feature. The
	// prompt expires after timeout seconds.
	AskForConfirmationCallback func(comID string, feature AccessControl, timeout uint32, respond dispatch.Respond)

	// NotifyChangeCallback is told that the access mode of feature changed.
	NotifyChangeCallback func(comID string, feature AccessControl, access Access, respond dispatch.Respond)
)

type askForConfirmationStrategy struct {
	dispatch.StatusOnly[askForConfirmationRequest, askForConfirmationResponse]
}

func (askForConfirmationStrategy) ValidateRequest(req *askForConfirmationRequest) status.Status {
	return validateFeature(req.Feature)
}

func (askForConfirmationStrategy) InvokeCallback(cb AskForConfirmationCallback, comID string, req *askForConfirmationRequest, respond dispatch.Respond) {
	cb(comID, toAccessControl(req.Feature), req.Timeout, respond)
}

type notifyChangeStrategy struct {
	dispatch.StatusOnly[notifyChangeRequest, notifyChangeResponse]
}

func (notifyChangeStrategy) ValidateRequest(req *notifyChangeRequest) status.Status {
	if st := validateFeature(req.Feature); !st.Ok() {
		return st
	}
	if !req.Access.valid() {
		return status.New(codes.InvalidArgument, status.ErrorMessageUnexpectedEnumValue)
	}
	return status.OK
}

func (notifyChangeStrategy) InvokeCallback(cb NotifyChangeCallback, comID string, req *notifyChangeRequest, respond dispatch.Respond) {
	cb(comID, toAccessControl(req.Feature), toAccess(req.Access), respond)
}

// OutServer serves AccessControlOut.
type OutServer struct {
	*server.Server
	engine *dispatch.Engine
}

// NewOutServer creates an AccessControlOut server with empty callback slots.
func NewOutServer(opts ...server.Option) *OutServer {
	engine := dispatch.NewEngine(OutServiceName, outOperationCount, outOperations)
	svc := dispatch.NewService(engine)

	ask := askForConfirmationStrategy{}
	ask.Op = opAskForConfirmation
	dispatch.Handle[askForConfirmationRequest, askForConfirmationResponse, AskForConfirmationCallback, dispatch.Respond](
		svc, "AskForConfirmation", ask)

	notify := notifyChangeStrategy{}
	notify.Op = opNotifyChange
	dispatch.Handle[notifyChangeRequest, notifyChangeResponse, NotifyChangeCallback, dispatch.Respond](
		svc, "NotifyChange", notify)

	return &OutServer{
		Server: server.New(registry.AccessControlOut, svc, opts...),
		engine: engine,
	}
}

// SetAskForConfirmationCallback sets the callback answering AskForConfirmation.
func (s *OutServer) SetAskForConfirmationCallback(cb AskForConfirmationCallback) {
	dispatch.SetCallback(s.engine.Callbacks(), opAskForConfirmation, cb)
}

// SetNotifyChangeCallback sets the callback answering NotifyChange.
func (s *OutServer) SetNotifyChangeCallback(cb NotifyChangeCallback) {
	dispatch.SetCallback(s.engine.Callbacks(), opNotifyChange, cb)
}

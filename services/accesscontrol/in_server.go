package accesscontrol

import (
	"google.golang.org/grpc/codes"

	"remote-screen-rpc/dispatch"
	"remote-screen-rpc/registry"
	"remote-screen-rpc/server"
	"remote-screen-rpc/status"
)

// InServiceName is the wire name of the AccessControlIn service.
const InServiceName = "AccessControlInService"

const (
	opConfirmationReply dispatch.Operation = iota
	opGetAccess
	opSetAccess
	inOperationCount
)

var inOperations = dispatch.NewOperationSet("ConfirmationReply", "GetAccess", "SetAccess")

type (
	// ConfirmationReplyCallback processes the user's answer to a
	// confirmation prompt for feature.
	ConfirmationReplyCallback func(comID string, feature AccessControl, confirmed bool, respond dispatch.Respond)

	// GetAccessRespond reports the access mode of the requested feature.
	GetAccessRespond func(cs status.CallStatus, access Access)

	// GetAccessCallback looks up the access mode of feature.
	GetAccessCallback func(comID string, feature AccessControl, respond GetAccessRespond)

	// SetAccessCallback changes the access mode of feature.
	SetAccessCallback func(comID string, feature AccessControl, access Access, respond dispatch.Respond)
)

func validateFeature(f wireAccessControl) status.Status {
	if !f.valid() {
		return status.New(codes.InvalidArgument, status.ErrorMessageUnexpectedEnumValue)
	}
	return status.OK
}

type confirmationReplyStrategy struct {
	dispatch.StatusOnly[confirmationReplyRequest, confirmationReplyResponse]
}

func (confirmationReplyStrategy) ValidateRequest(req *confirmationReplyRequest) status.Status {
	return validateFeature(req.Feature)
}

func (confirmationReplyStrategy) InvokeCallback(cb ConfirmationReplyCallback, comID string, req *confirmationReplyRequest, respond dispatch.Respond) {
	cb(comID, toAccessControl(req.Feature), req.Confirmed, respond)
}

type getAccessStrategy struct {
	dispatch.BaseStrategy[getAccessRequest]
}

func (getAccessStrategy) ValidateRequest(req *getAccessRequest) status.Status {
	return validateFeature(req.Feature)
}

// MakeResponseProcessing writes the access mode on success. An access mode
// outside the enum cancels the call.
func (getAccessStrategy) MakeResponseProcessing(reply *dispatch.Reply[getAccessResponse]) GetAccessRespond {
	return func(cs status.CallStatus, access Access) {
		reply.Commit(func(resp *getAccessResponse) status.Status {
			if !cs.IsOk() {
				return status.FromCallStatus(cs)
			}
			if !access.Valid() {
				return status.New(codes.Canceled, status.ErrorMessageUnexpectedEnumValue)
			}
			resp.Access = fromAccess(access)
			return status.OK
		})
	}
}

func (getAccessStrategy) InvokeCallback(cb GetAccessCallback, comID string, req *getAccessRequest, respond GetAccessRespond) {
	cb(comID, toAccessControl(req.Feature), respond)
}

type setAccessStrategy struct {
	dispatch.StatusOnly[setAccessRequest, setAccessResponse]
}

func (setAccessStrategy) ValidateRequest(req *setAccessRequest) status.Status {
	if st := validateFeature(req.Feature); !st.Ok() {
		return st
	}
	if !req.Access.valid() {
		return status.New(codes.InvalidArgument, status.ErrorMessageUnexpectedEnumValue)
	}
	return status.OK
}

func (setAccessStrategy) InvokeCallback(cb SetAccessCallback, comID string, req *setAccessRequest, respond dispatch.Respond) {
	cb(comID, toAccessControl(req.Feature), toAccess(req.Access), respond)
}

// InServer serves AccessControlIn.
type InServer struct {
	*server.Server
	engine *dispatch.Engine
}

// NewInServer creates an AccessControlIn server with empty callback slots.
func NewInServer(opts ...server.Option) *InServer {
	engine := dispatch.NewEngine(InServiceName, inOperationCount, inOperations)
	svc := dispatch.NewService(engine)

	confirmationReply := confirmationReplyStrategy{}
	confirmationReply.Op = opConfirmationReply
	dispatch.Handle[confirmationReplyRequest, confirmationReplyResponse, ConfirmationReplyCallback, dispatch.Respond](
		svc, "ConfirmationReply", confirmationReply)

	getAccess := getAccessStrategy{}
	getAccess.Op = opGetAccess
	dispatch.Handle[getAccessRequest, getAccessResponse, GetAccessCallback, GetAccessRespond](
		svc, "GetAccess", getAccess)

	setAccess := setAccessStrategy{}
	setAccess.Op = opSetAccess
	dispatch.Handle[setAccessRequest, setAccessResponse, SetAccessCallback, dispatch.Respond](
		svc, "SetAccess", setAccess)

	return &InServer{
		Server: server.New(registry.AccessControlIn, svc, opts...),
		engine: engine,
	}
}

// SetConfirmationReplyCallback sets the callback answering ConfirmationReply.
func (s *InServer) SetConfirmationReplyCallback(cb ConfirmationReplyCallback) {
	dispatch.SetCallback(s.engine.Callbacks(), opConfirmationReply, cb)
}

// SetGetAccessCallback sets the callback answering GetAccess.
func (s *InServer) SetGetAccessCallback(cb GetAccessCallback) {
	dispatch.SetCallback(s.engine.Callbacks(), opGetAccess, cb)
}

// SetSetAccessCallback sets the callback answering SetAccess.
func (s *InServer) SetSetAccessCallback(cb SetAccessCallback) {
	dispatch.SetCallback(s.engine.Callbacks(), opSetAccess, cb)
}

package accesscontrol

import (
	"context"

	"remote-screen-rpc/client"
	"remote-screen-rpc/dispatch"
	"remote-screen-rpc/registry"
	"remote-screen-rpc/status"
)

type confirmationReplyArgs struct {
	feature   AccessControl
	confirmed bool
}

type confirmationReplyClient struct {
	dispatch.ClientBase[confirmationReplyRequest, confirmationReplyResponse, confirmationReplyArgs]
}

func (confirmationReplyClient) ValidateInput(comID string, args confirmationReplyArgs) bool {
	return comID != "" && args.feature.Valid()
}

func (confirmationReplyClient) PrepareRequest(req *confirmationReplyRequest, args confirmationReplyArgs) {
	req.Feature = fromAccessControl(args.feature)
	req.Confirmed = args.confirmed
}

// GetAccessResult is the outcome of GetAccess. Access is only meaningful when
// the call succeeded.
type GetAccessResult struct {
	status.CallStatus
	Access Access
}

type getAccessClient struct {
	dispatch.ClientBase[getAccessRequest, getAccessResponse, AccessControl]
}

func (getAccessClient) ValidateInput(comID string, feature AccessControl) bool {
	return comID != "" && feature.Valid()
}

func (getAccessClient) PrepareRequest(req *getAccessRequest, feature AccessControl) {
	req.Feature = fromAccessControl(feature)
}

func (getAccessClient) HandleResponse(st status.Status, resp *getAccessResponse, _ AccessControl) GetAccessResult {
	if !st.Ok() {
		return GetAccessResult{CallStatus: status.ToCallStatus(st)}
	}
	if !resp.Access.valid() {
		return GetAccessResult{CallStatus: status.FailedStatus(status.ErrorMessageInvalidResponseValue)}
	}
	return GetAccessResult{CallStatus: status.OkStatus(), Access: toAccess(resp.Access)}
}

func (getAccessClient) Failed(msg string) GetAccessResult {
	return GetAccessResult{CallStatus: status.FailedStatus(msg)}
}

type setAccessArgs struct {
	feature AccessControl
	access  Access
}

type setAccessClient struct {
	dispatch.ClientBase[setAccessRequest, setAccessResponse, setAccessArgs]
}

func (setAccessClient) ValidateInput(comID string, args setAccessArgs) bool {
	return comID != "" && args.feature.Valid() && args.access.Valid()
}

func (setAccessClient) PrepareRequest(req *setAccessRequest, args setAccessArgs) {
	req.Feature = fromAccessControl(args.feature)
	req.Access = fromAccess(args.access)
}

// InClient calls AccessControlIn.
type InClient struct {
	*client.Client
}

// NewInClient creates an AccessControlIn client.
func NewInClient(opts ...client.Option) *InClient {
	return &InClient{Client: client.New(registry.AccessControlIn, InServiceName, opts...)}
}

// ConfirmationReply answers the confirmation prompt for feature.
func (c *InClient) ConfirmationReply(ctx context.Context, comID string, feature AccessControl, confirmed bool) status.CallStatus {
	s := confirmationReplyClient{}
	s.Name = "ConfirmationReply"
	return dispatch.ClientCall[confirmationReplyRequest, confirmationReplyResponse, confirmationReplyArgs, status.CallStatus](
		ctx, c.Invoker(), s, comID, confirmationReplyArgs{feature: feature, confirmed: confirmed})
}

// GetAccess asks for the access mode of feature.
func (c *InClient) GetAccess(ctx context.Context, comID string, feature AccessControl) GetAccessResult {
	s := getAccessClient{}
	s.Name = "GetAccess"
	return dispatch.ClientCall[getAccessRequest, getAccessResponse, AccessControl, GetAccessResult](
		ctx, c.Invoker(), s, comID, feature)
}

// SetAccess changes the access mode of feature.
func (c *InClient) SetAccess(ctx context.Context, comID string, feature AccessControl, access Access) status.CallStatus {
	s := setAccessClient{}
	s.Name = "SetAccess"
	return dispatch.ClientCall[setAccessRequest, setAccessResponse, setAccessArgs, status.CallStatus](
		ctx, c.Invoker(), s, comID, setAccessArgs{feature: feature, access: access})
}

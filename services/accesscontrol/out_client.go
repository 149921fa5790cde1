package accesscontrol

import (
	"context"

	"remote-screen-rpc/client"
	"remote-screen-rpc/dispatch"
	"remote-screen-rpc/registry"
	"remote-screen-rpc/status"
)

type askForConfirmationArgs struct {
	feature AccessControl
	timeout uint32
}

type askForConfirmationClient struct {
	dispatch.ClientBase[askForConfirmationRequest, askForConfirmationResponse, askForConfirmationArgs]
}

func (askForConfirmationClient) ValidateInput(comID string, args askForConfirmationArgs) bool {
	return comID != "" && args.feature.Valid()
}

func (askForConfirmationClient) PrepareRequest(req *askForConfirmationRequest, args askForConfirmationArgs) {
	req.Feature = fromAccessControl(args.feature)
	req.Timeout = args.timeout
}

type notifyChangeClient struct {
	dispatch.ClientBase[notifyChangeRequest, notifyChangeResponse, setAccessArgs]
}

func (notifyChangeClient) ValidateInput(comID string, args setAccessArgs) bool {
	return comID != "" && args.feature.Valid() && args.access.Valid()
}

func (notifyChangeClient) PrepareRequest(req *notifyChangeRequest, args setAccessArgs) {
	req.Feature = fromAccessControl(args.feature)
	req.Access = fromAccess(args.access)
}

// OutClient calls AccessControlOut.
type OutClient struct {
	*client.Client
}

// NewOutClient creates an AccessControlOut client.
func NewOutClient(opts ...client.Option) *OutClient {
	return &OutClient{Client: client.New(registry.AccessControlOut, OutServiceName, opts...)}
}

// AskForConfirmation asks the application to prompt the user for feature.
// timeout is in seconds.
func (c *OutClient) AskForConfirmation(ctx context.Context, comID string, feature AccessControl, timeout uint32) status.CallStatus {
	s := askForConfirmationClient{}
	s.Name = "AskForConfirmation"
	return dispatch.ClientCall[askForConfirmationRequest, askForConfirmationResponse, askForConfirmationArgs, status.CallStatus](
		ctx, c.Invoker(), s, comID, askForConfirmationArgs{feature: feature, timeout: timeout})
}

// NotifyChange tells the application that the access mode of feature changed.
func (c *OutClient) NotifyChange(ctx context.Context, comID string, feature AccessControl, access Access) status.CallStatus {
	s := notifyChangeClient{}
	s.Name = "NotifyChange"
	return dispatch.ClientCall[notifyChangeRequest, notifyChangeResponse, setAccessArgs, status.CallStatus](
		ctx, c.Invoker(), s, comID, setAccessArgs{feature: feature, access: access})
}

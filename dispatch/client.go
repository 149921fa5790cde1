package dispatch

import (
	"context"

	"remote-screen-rpc/status"
)

// Invoker performs one unary call over a transport. metadata travels out of
// band (gRPC metadata, or the comId field of a frame envelope). A non-OK
// status either comes from the remote engine or describes a transport
// failure.
type Invoker interface {
	Invoke(ctx context.Context, method string, metadata map[string]string, req, resp any) status.Status
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, method string, metadata map[string]string, req, resp any) status.Status

// Invoke implements Invoker.
func (f InvokerFunc) Invoke(ctx context.Context, method string, metadata map[string]string, req, resp any) status.Status {
	return f(ctx, method, metadata, req, resp)
}

// ClientStrategy is the per-operation policy ClientCall runs a typed call
// through. Args bundles the operation's typed arguments and Ret is its typed
// result.
type ClientStrategy[Req, Resp, Args, Ret any] interface {
	// Method is the wire method name.
	Method() string

	// ValidateInput checks the typed arguments before anything is sent.
	ValidateInput(comID string, args Args) bool

	// PrepareContext fills the out-of-band metadata of the call.
	PrepareContext(metadata map[string]string, comID string, args Args)

	// PrepareRequest converts typed arguments into the wire request.
	PrepareRequest(req *Req, args Args)

	// HandleResponse converts the transport outcome into the typed result.
	HandleResponse(st status.Status, resp *Resp, args Args) Ret

	// Failed builds the typed result of a call that never reached the
	// transport.
	Failed(msg string) Ret
}

// ClientBase supplies the default behaviour of a ClientStrategy whose result
// is a plain CallStatus.
type ClientBase[Req, Resp, Args any] struct {
	Name string
}

// Method implements ClientStrategy.
func (b ClientBase[Req, Resp, Args]) Method() string {
	return b.Name
}

// ValidateInput requires a non-empty comId.
func (ClientBase[Req, Resp, Args]) ValidateInput(comID string, _ Args) bool {
	return comID != ""
}

// PrepareContext attaches the comId to the call metadata.
func (ClientBase[Req, Resp, Args]) PrepareContext(metadata map[string]string, comID string, _ Args) {
	if comID != "" {
		metadata[CommunicationIDKey] = comID
	}
}

// PrepareRequest leaves the request empty.
func (ClientBase[Req, Resp, Args]) PrepareRequest(*Req, Args) {}

// HandleResponse maps the wire status onto a CallStatus.
func (ClientBase[Req, Resp, Args]) HandleResponse(st status.Status, _ *Resp, _ Args) status.CallStatus {
	return status.ToCallStatus(st)
}

// Failed implements ClientStrategy.
func (ClientBase[Req, Resp, Args]) Failed(msg string) status.CallStatus {
	return status.FailedStatus(msg)
}

// ClientCall issues one typed call. No retries are performed: retry policy
// belongs to the caller.
func ClientCall[Req, Resp, Args, Ret any](
	ctx context.Context,
	invoker Invoker,
	s ClientStrategy[Req, Resp, Args, Ret],
	comID string,
	args Args,
) Ret {
	if invoker == nil {
		return s.Failed(status.ErrorMessageMissingStartClient)
	}
	if !s.ValidateInput(comID, args) {
		return s.Failed(status.ErrorMessageInvalidInputParameter)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	metadata := make(map[string]string, 1)
	s.PrepareContext(metadata, comID, args)

	var (
		req  Req
		resp Resp
	)
	s.PrepareRequest(&req, args)

	st := invoker.Invoke(ctx, s.Method(), metadata, &req, &resp)
	return s.HandleResponse(st, &resp, args)
}

package dispatch

import (
	"remote-screen-rpc/status"
)

// Strategy is the per-operation policy ServerCall runs a request through.
//
// Req and Resp are the wire request and response types, CB is the callback
// signature the application registers for the operation, and R is the typed
// response continuation handed to that callback. Each operation supplies its
// own Strategy value; the engine is the same for all of them.
type Strategy[Req, Resp, CB, R any] interface {
	// Operation is the slot of the callback table this strategy serves.
	Operation() Operation

	// ValidateRequest performs protocol-level input checks (enum domains,
	// required fields). A non-OK status rejects the call before the
	// callback is reached.
	ValidateRequest(req *Req) status.Status

	// ComID extracts the routing token from the transport metadata. The
	// boolean is false when a required token is missing.
	ComID(rc *RequestContext) (string, bool)

	// MakeResponseProcessing binds the typed continuation to the reply.
	// The continuation converts internal values to wire values, writes
	// them into the response buffer and sets the wire status, all through
	// a single Reply.Commit.
	MakeResponseProcessing(reply *Reply[Resp]) R

	// InvokeCallback converts the wire request into internal values and
	// calls the application callback with them and the continuation.
	InvokeCallback(cb CB, comID string, req *Req, respond R)
}

// Respond is the continuation of operations whose only output is the call
// status.
type Respond func(cs status.CallStatus)

// BaseStrategy supplies the default Operation, ValidateRequest and ComID of a
// Strategy. Concrete strategies embed it and override what they need.
type BaseStrategy[Req any] struct {
	Op Operation
}

// Operation implements Strategy.
func (b BaseStrategy[Req]) Operation() Operation {
	return b.Op
}

// ValidateRequest accepts every request.
func (BaseStrategy[Req]) ValidateRequest(*Req) status.Status {
	return status.OK
}

// ComID requires the comId to be present in the transport metadata.
func (BaseStrategy[Req]) ComID(rc *RequestContext) (string, bool) {
	return DefaultComID(rc)
}

// StatusOnly is a BaseStrategy whose continuation is Respond: the response
// message carries no payload and the call status alone decides the wire
// status.
type StatusOnly[Req, Resp any] struct {
	BaseStrategy[Req]
}

// MakeResponseProcessing implements Strategy.
func (StatusOnly[Req, Resp]) MakeResponseProcessing(reply *Reply[Resp]) Respond {
	return func(cs status.CallStatus) {
		reply.Commit(func(*Resp) status.Status {
			return status.FromCallStatus(cs)
		})
	}
}

// WithoutComID marks bootstrap operations (discovery, version exchange) that
// are served before the caller has a comId. It only shadows the default ComID
// when embedded at a shallower depth than the base strategy; otherwise
// delegate to it from an explicit ComID method.
type WithoutComID struct{}

// ComID returns the token if one was sent, and never reports it missing.
func (WithoutComID) ComID(rc *RequestContext) (string, bool) {
	comID, _ := DefaultComID(rc)
	return comID, true
}

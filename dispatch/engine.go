// Package dispatch is the request/response core shared by every service.
//
// Server side, one inbound call flows through ServerCall:
//
//	nil check → callback lookup → Strategy.ValidateRequest → Strategy.ComID
//	  → seed "response callback not called" → Strategy.MakeResponseProcessing
//	  → Strategy.InvokeCallback → application callback → continuation
//	  → Reply.Commit (internal → wire conversion) → final wire status
//
// Client side, ClientCall validates typed arguments, attaches the comId to the
// transport metadata, performs the call through an Invoker and converts the
// wire response back into a typed result.
//
// The engine never starts goroutines. Callbacks run on the transport's
// goroutine, synchronously, and must respond before they return; a callback
// that returns without responding fails the call with codes.Canceled.
package dispatch

import (
	"github.com/juju/loggo"
	"google.golang.org/grpc/codes"

	"remote-screen-rpc/status"
)

var logger = loggo.GetLogger("remotescreen.dispatch")

// Engine is the server-side dispatch state of one service: its callback
// table and continuation policy. It holds no per-call state.
type Engine struct {
	name      string
	callbacks *CallbackTable
	strict    bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithStrictContinuations makes a second invocation of a response
// continuation panic with ErrContinuationReused instead of being logged and
// ignored. Intended for development and tests.
func WithStrictContinuations(strict bool) EngineOption {
	return func(e *Engine) {
		e.strict = strict
	}
}

// NewEngine creates an engine for the named service over count operations.
func NewEngine(name string, count Operation, ops OperationSet, opts ...EngineOption) *Engine {
	e := &Engine{
		name:      name,
		callbacks: NewCallbackTable(count, ops),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name returns the service name the engine was created for.
func (e *Engine) Name() string {
	return e.name
}

// Callbacks returns the engine's callback table.
func (e *Engine) Callbacks() *CallbackTable {
	return e.callbacks
}

// ServerCall turns one decoded request into exactly one wire status, filling
// resp on success. It is safe for concurrent use.
//
// Failures before the callback is invoked (malformed call, no callback,
// invalid input, missing comId) never touch resp.
func ServerCall[Req, Resp, CB, R any](
	e *Engine,
	s Strategy[Req, Resp, CB, R],
	rc *RequestContext,
	req *Req,
	resp *Resp,
) status.Status {
	if e == nil || s == nil || rc == nil || req == nil || resp == nil {
		return status.New(codes.Internal, status.ErrorMessageMalformedCall)
	}

	op := s.Operation()
	opName := e.callbacks.ops.Name(op)

	callback, ok := Callback[CB](e.callbacks, op)
	if !ok {
		logger.Debugf("%s.%s: no callback registered", e.name, opName)
		return status.New(codes.Unavailable, status.ErrorMessageNoProcessingCallback)
	}

	if st := s.ValidateRequest(req); !st.Ok() {
		logger.Debugf("%s.%s: request rejected: %v", e.name, opName, st)
		return st
	}

	comID, ok := s.ComID(rc)
	if !ok {
		logger.Debugf("%s.%s: call from %q without comId", e.name, opName, rc.Peer)
		return status.New(codes.FailedPrecondition, status.ErrorMessageNoComID)
	}

	reply := newReply(resp, e.name+"."+opName, e.strict)
	respond := s.MakeResponseProcessing(reply)
	s.InvokeCallback(callback, comID, req, respond)

	st := reply.seal()
	if !st.Ok() {
		logger.Debugf("%s.%s [%s]: %v", e.name, opName, comID, st)
	}
	return st
}

package dispatch

import (
	"sync"

	"github.com/juju/errors"
	"google.golang.org/grpc/codes"

	"remote-screen-rpc/status"
)

// ErrContinuationReused is the panic value raised in strict mode when a
// callback invokes its response continuation a second time.
var ErrContinuationReused = errors.New("dispatch: response continuation invoked more than once")

// Reply is the response side of one in-flight call: the response buffer and
// the wire status cell. Strategies bind their typed continuation to it through
// Commit.
//
// Only the first Commit of a call takes effect. The status starts out as
// "cancelled / response callback not called" so that a callback which returns
// without responding yields a deterministic failure.
type Reply[Resp any] struct {
	mu        sync.Mutex
	resp      *Resp
	status    status.Status
	committed bool
	sealed    bool
	strict    bool
	operation string
}

func newReply[Resp any](resp *Resp, operation string, strict bool) *Reply[Resp] {
	return &Reply[Resp]{
		resp:      resp,
		status:    status.New(codes.Canceled, status.ErrorMessageResponseCallbackNotCalled),
		strict:    strict,
		operation: operation,
	}
}

// Commit runs write against the response buffer and records the status it
// returns. write is not run for a second invocation or for an invocation that
// arrives after the call has returned to the transport.
func (r *Reply[Resp]) Commit(write func(resp *Resp) status.Status) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case r.sealed:
		logger.Warningf("%s: response continuation invoked after the call returned, ignored", r.operation)
		return
	case r.committed:
		if r.strict {
			panic(ErrContinuationReused)
		}
		logger.Warningf("%s: response continuation invoked more than once, ignored", r.operation)
		return
	}
	r.committed = true
	if write == nil {
		r.status = status.OK
		return
	}
	r.status = write(r.resp)
}

// Status returns the status recorded so far.
func (r *Reply[Resp]) Status() status.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Committed reports whether the continuation has fired.
func (r *Reply[Resp]) Committed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.committed
}

// seal closes the reply for further commits and returns the final status.
func (r *Reply[Resp]) seal() status.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
	return r.status
}

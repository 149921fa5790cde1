// Package status defines the result values that cross the dispatch boundary.
//
// Two shapes exist:
//
//   - CallStatus is what application code sees: the state of one call plus an
//     optional error message. Callbacks hand it to their continuation, client
//     calls return it.
//   - Status is what the wire sees: a gRPC status code plus a message. Every
//     transport (gRPC and the framed TCP transport) carries the same code set.
package status

import (
	"fmt"

	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// Messages used by the dispatch and client engines.
const (
	ErrorMessageNoProcessingCallback      = "no processing callback set"
	ErrorMessageNoComID                   = "no communication id provided"
	ErrorMessageResponseCallbackNotCalled = "response callback not called"
	ErrorMessageUnexpectedEnumValue       = "unexpected enum value"
	ErrorMessageRequiredFieldEmpty        = "required field is empty"
	ErrorMessageInvalidInputParameter     = "invalid input parameter"
	ErrorMessageInvalidResponseValue      = "invalid response value"
	ErrorMessageMissingStartClient        = "client not started"
	ErrorMessageMalformedCall             = "malformed call"
)

// CallState is the outcome of a call as seen by application code.
type CallState byte

const (
	// Pending is the zero value: no outcome has been recorded yet.
	Pending CallState = iota
	Ok
	Failed
)

func (s CallState) String() string {
	switch s {
	case Ok:
		return "Ok"
	case Failed:
		return "Failed"
	default:
		return "Pending"
	}
}

// CallStatus is the result of an outbound call, and the value a callback
// passes to its response continuation.
type CallStatus struct {
	State        CallState
	ErrorMessage string
}

// OkStatus returns a successful CallStatus.
func OkStatus() CallStatus {
	return CallStatus{State: Ok}
}

// FailedStatus returns a failed CallStatus carrying msg.
func FailedStatus(msg string) CallStatus {
	return CallStatus{State: Failed, ErrorMessage: msg}
}

// IsOk reports whether the call succeeded.
func (cs CallStatus) IsOk() bool {
	return cs.State == Ok
}

func (cs CallStatus) String() string {
	if cs.ErrorMessage == "" {
		return cs.State.String()
	}
	return fmt.Sprintf("%s: %s", cs.State, cs.ErrorMessage)
}

// Status is a wire-level result: a gRPC status code and a message.
type Status struct {
	Code    codes.Code
	Message string
}

// OK is the successful wire status.
var OK = Status{Code: codes.OK}

// New builds a Status.
func New(code codes.Code, msg string) Status {
	return Status{Code: code, Message: msg}
}

// Newf builds a Status with a formatted message.
func Newf(code codes.Code, format string, args ...any) Status {
	return Status{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Ok reports whether the status is codes.OK.
func (s Status) Ok() bool {
	return s.Code == codes.OK
}

// Err converts the status into a gRPC status error, or nil when it is OK.
func (s Status) Err() error {
	if s.Ok() {
		return nil
	}
	return grpcstatus.Error(s.Code, s.Message)
}

func (s Status) String() string {
	if s.Message == "" {
		return s.Code.String()
	}
	return fmt.Sprintf("%s: %s", s.Code, s.Message)
}

// FromError converts an error returned by a transport into a Status.
// Errors that do not carry a gRPC status map to codes.Unavailable.
func FromError(err error) Status {
	if err == nil {
		return OK
	}
	if st, ok := grpcstatus.FromError(err); ok {
		return Status{Code: st.Code(), Message: st.Message()}
	}
	return Status{Code: codes.Unavailable, Message: err.Error()}
}

// FromContextError converts a context error into a Status, e.g.
// codes.DeadlineExceeded for context.DeadlineExceeded.
func FromContextError(err error) Status {
	st := grpcstatus.FromContextError(err)
	return Status{Code: st.Code(), Message: st.Message()}
}

// FromCallStatus maps an application CallStatus onto the wire. Any outcome
// other than Ok is a business failure and becomes codes.Aborted.
func FromCallStatus(cs CallStatus) Status {
	if cs.IsOk() {
		return OK
	}
	return Status{Code: codes.Aborted, Message: cs.ErrorMessage}
}

// ToCallStatus is the client-side counterpart of FromCallStatus.
func ToCallStatus(s Status) CallStatus {
	if s.Ok() {
		return OkStatus()
	}
	return FailedStatus(s.Message)
}

package dispatch_test

import (
	"context"

	"google.golang.org/grpc/codes"

	"remote-screen-rpc/dispatch"
	"remote-screen-rpc/status"
)

const (
	opLookup dispatch.Operation = iota
	opPing
	opHello
	opCount
)

var testOps = dispatch.NewOperationSet("Lookup", "Ping", "Hello")

type lookupRequest struct {
	Kind int32
	Key  string
}

type lookupResponse struct {
	Kind  int32
	Value string
}

type kind int

const (
	kindA kind = iota
	kindB
)

type lookupCallback func(comID string, k kind, key string, respond lookupRespond)

type lookupRespond func(cs status.CallStatus, value string)

// lookupStrategy validates the kind enum and requires a non-empty key.
type lookupStrategy struct {
	dispatch.BaseStrategy[lookupRequest]
	invoked *int
}

func (s lookupStrategy) ValidateRequest(req *lookupRequest) status.Status {
	if req.Kind != 0 && req.Kind != 1 {
		return status.New(codes.InvalidArgument, status.ErrorMessageUnexpectedEnumValue)
	}
	if req.Key == "" {
		return status.New(codes.InvalidArgument, status.ErrorMessageRequiredFieldEmpty)
	}
	return status.OK
}

func (lookupStrategy) MakeResponseProcessing(reply *dispatch.Reply[lookupResponse]) lookupRespond {
	return func(cs status.CallStatus, value string) {
		reply.Commit(func(resp *lookupResponse) status.Status {
			if cs.IsOk() {
				resp.Value = value
			}
			return status.FromCallStatus(cs)
		})
	}
}

func (s lookupStrategy) InvokeCallback(cb lookupCallback, comID string, req *lookupRequest, respond lookupRespond) {
	if s.invoked != nil {
		*s.invoked++
	}
	cb(comID, kind(req.Kind), req.Key, respond)
}

type pingRequest struct{}
type pingResponse struct{}

type pingCallback func(comID string, respond dispatch.Respond)

type pingStrategy struct {
	dispatch.StatusOnly[pingRequest, pingResponse]
}

func (pingStrategy) InvokeCallback(cb pingCallback, comID string, _ *pingRequest, respond dispatch.Respond) {
	cb(comID, respond)
}

// helloStrategy is served before the caller holds a comId.
type helloStrategy struct {
	pingStrategy
	dispatch.WithoutComID
}

func newPingStrategy(op dispatch.Operation) pingStrategy {
	s := pingStrategy{}
	s.Op = op
	return s
}

func withComID(comID string) *dispatch.RequestContext {
	return dispatch.NewRequestContext(context.Background(), map[string]string{
		dispatch.CommunicationIDKey: comID,
	}, "test")
}

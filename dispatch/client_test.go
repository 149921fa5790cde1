package dispatch_test

import (
	"context"
	"errors"

	gc "gopkg.in/check.v1"
	"google.golang.org/grpc/codes"

	"remote-screen-rpc/dispatch"
	"remote-screen-rpc/status"
)

type lookupArgs struct {
	Kind kind
	Key  string
}

type lookupResult struct {
	Status status.CallStatus
	Value  string
}

type lookupClient struct {
	dispatch.ClientBase[lookupRequest, lookupResponse, lookupArgs]
}

func (lookupClient) PrepareRequest(req *lookupRequest, args lookupArgs) {
	req.Kind = int32(args.Kind)
	req.Key = args.Key
}

func (lookupClient) HandleResponse(st status.Status, resp *lookupResponse, _ lookupArgs) lookupResult {
	if !st.Ok() {
		return lookupResult{Status: status.ToCallStatus(st)}
	}
	if resp.Value == "" {
		return lookupResult{Status: status.FailedStatus(status.ErrorMessageInvalidResponseValue)}
	}
	return lookupResult{Status: status.OkStatus(), Value: resp.Value}
}

func (lookupClient) Failed(msg string) lookupResult {
	return lookupResult{Status: status.FailedStatus(msg)}
}

func newLookupClient() lookupClient {
	return lookupClient{dispatch.ClientBase[lookupRequest, lookupResponse, lookupArgs]{Name: "Lookup"}}
}

// loopback serves calls directly through a Service.
func loopback(svc *dispatch.Service, calls *int) dispatch.Invoker {
	return dispatch.InvokerFunc(func(ctx context.Context, method string, md map[string]string, req, resp any) status.Status {
		*calls++
		m, ok := svc.Method(method)
		if !ok {
			return status.New(codes.Unimplemented, method)
		}
		return m.Serve(dispatch.NewRequestContext(ctx, md, "loopback"), req, resp)
	})
}

type clientSuite struct {
	svc   *dispatch.Service
	calls int
}

var _ = gc.Suite(&clientSuite{})

func (s *clientSuite) SetUpTest(c *gc.C) {
	s.calls = 0
	engine := dispatch.NewEngine("Test", opCount, testOps)
	s.svc = dispatch.NewService(engine)
	strategy := lookupStrategy{}
	strategy.Op = opLookup
	dispatch.Handle[lookupRequest, lookupResponse, lookupCallback, lookupRespond](s.svc, "Lookup", strategy)
}

func (s *clientSuite) TestNotStarted(c *gc.C) {
	res := dispatch.ClientCall[lookupRequest, lookupResponse, lookupArgs, lookupResult](context.Background(), nil, newLookupClient(), "c1", lookupArgs{Key: "k"})
	c.Check(res.Status, gc.DeepEquals, status.FailedStatus(status.ErrorMessageMissingStartClient))
}

func (s *clientSuite) TestEmptyComIDNeverReachesTransport(c *gc.C) {
	res := dispatch.ClientCall[lookupRequest, lookupResponse, lookupArgs, lookupResult](context.Background(), loopback(s.svc, &s.calls), newLookupClient(), "", lookupArgs{Key: "k"})
	c.Check(res.Status, gc.DeepEquals, status.FailedStatus(status.ErrorMessageInvalidInputParameter))
	c.Check(s.calls, gc.Equals, 0)
}

func (s *clientSuite) TestRoundTrip(c *gc.C) {
	dispatch.SetCallback(s.svc.Engine().Callbacks(), opLookup, lookupCallback(func(comID string, k kind, key string, respond lookupRespond) {
		respond(status.OkStatus(), comID+"/"+key)
	}))

	res := dispatch.ClientCall[lookupRequest, lookupResponse, lookupArgs, lookupResult](context.Background(), loopback(s.svc, &s.calls), newLookupClient(), "c1", lookupArgs{Kind: kindB, Key: "k"})
	c.Check(res.Status.IsOk(), gc.Equals, true)
	c.Check(res.Value, gc.Equals, "c1/k")
	c.Check(s.calls, gc.Equals, 1)
}

func (s *clientSuite) TestServerFailureSurfacesMessage(c *gc.C) {
	res := dispatch.ClientCall[lookupRequest, lookupResponse, lookupArgs, lookupResult](context.Background(), loopback(s.svc, &s.calls), newLookupClient(), "c1", lookupArgs{Key: "k"})
	c.Check(res.Status, gc.DeepEquals, status.FailedStatus(status.ErrorMessageNoProcessingCallback))
}

func (s *clientSuite) TestInvalidResponseValue(c *gc.C) {
	dispatch.SetCallback(s.svc.Engine().Callbacks(), opLookup, lookupCallback(func(_ string, _ kind, _ string, respond lookupRespond) {
		respond(status.OkStatus(), "")
	}))

	res := dispatch.ClientCall[lookupRequest, lookupResponse, lookupArgs, lookupResult](context.Background(), loopback(s.svc, &s.calls), newLookupClient(), "c1", lookupArgs{Key: "k"})
	c.Check(res.Status, gc.DeepEquals, status.FailedStatus(status.ErrorMessageInvalidResponseValue))
}

func (s *clientSuite) TestTransportError(c *gc.C) {
	broken := dispatch.InvokerFunc(func(context.Context, string, map[string]string, any, any) status.Status {
		return status.FromError(errors.New("connection refused"))
	})
	res := dispatch.ClientCall[lookupRequest, lookupResponse, lookupArgs, lookupResult](context.Background(), broken, newLookupClient(), "c1", lookupArgs{Key: "k"})
	c.Check(res.Status, gc.DeepEquals, status.FailedStatus("connection refused"))
}

func (s *clientSuite) TestComIDTravelsInMetadata(c *gc.C) {
	var seen map[string]string
	spy := dispatch.InvokerFunc(func(_ context.Context, _ string, md map[string]string, _, _ any) status.Status {
		seen = md
		return status.OK
	})
	base := dispatch.ClientBase[pingRequest, pingResponse, struct{}]{Name: "Ping"}
	res := dispatch.ClientCall[pingRequest, pingResponse, struct{}, status.CallStatus](context.Background(), spy, base, "c9", struct{}{})
	c.Check(res.IsOk(), gc.Equals, true)
	c.Check(seen, gc.DeepEquals, map[string]string{dispatch.CommunicationIDKey: "c9"})
}

func (s *clientSuite) TestServiceMethods(c *gc.C) {
	c.Check(s.svc.Name(), gc.Equals, "Test")
	c.Check(s.svc.Methods(), gc.DeepEquals, []string{"Lookup"})

	m, ok := s.svc.Method("Lookup")
	c.Assert(ok, gc.Equals, true)
	st := m.Serve(withComID("c1"), &pingRequest{}, m.NewResponse())
	c.Check(st.Code, gc.Equals, codes.Internal)

	strategy := lookupStrategy{}
	c.Check(func() {
		dispatch.Handle[lookupRequest, lookupResponse, lookupCallback, lookupRespond](s.svc, "Lookup", strategy)
	}, gc.PanicMatches, "dispatch: duplicate method Test.Lookup")
}

package dispatch_test

import (
	"context"
	"sync"

	gc "gopkg.in/check.v1"
	"google.golang.org/grpc/codes"

	"remote-screen-rpc/dispatch"
	"remote-screen-rpc/status"
)

type engineSuite struct {
	engine   *dispatch.Engine
	invoked  int
	strategy lookupStrategy
}

var _ = gc.Suite(&engineSuite{})

func (s *engineSuite) SetUpTest(c *gc.C) {
	s.engine = dispatch.NewEngine("Test", opCount, testOps, dispatch.WithStrictContinuations(true))
	s.invoked = 0
	s.strategy = lookupStrategy{invoked: &s.invoked}
	s.strategy.Op = opLookup
}

func (s *engineSuite) call(rc *dispatch.RequestContext, req *lookupRequest) (status.Status, *lookupResponse) {
	resp := &lookupResponse{}
	st := dispatch.ServerCall[lookupRequest, lookupResponse, lookupCallback, lookupRespond](s.engine, s.strategy, rc, req, resp)
	return st, resp
}

func (s *engineSuite) TestNoCallbackIsUnavailable(c *gc.C) {
	st, resp := s.call(withComID("c1"), &lookupRequest{Kind: 7})
	c.Check(st.Code, gc.Equals, codes.Unavailable)
	c.Check(st.Message, gc.Equals, status.ErrorMessageNoProcessingCallback)
	c.Check(s.invoked, gc.Equals, 0)
	c.Check(*resp, gc.DeepEquals, lookupResponse{})
}

func (s *engineSuite) TestNilCallbackEmptiesSlot(c *gc.C) {
	dispatch.SetCallback(s.engine.Callbacks(), opLookup, lookupCallback(func(string, kind, string, lookupRespond) {}))
	c.Assert(s.engine.Callbacks().Registered(opLookup), gc.Equals, true)

	dispatch.SetCallback[lookupCallback](s.engine.Callbacks(), opLookup, nil)
	c.Check(s.engine.Callbacks().Registered(opLookup), gc.Equals, false)

	st, _ := s.call(withComID("c1"), &lookupRequest{Key: "k"})
	c.Check(st.Code, gc.Equals, codes.Unavailable)
}

func (s *engineSuite) TestValidationPrecedesInvocation(c *gc.C) {
	called := false
	dispatch.SetCallback(s.engine.Callbacks(), opLookup, lookupCallback(func(_ string, _ kind, _ string, respond lookupRespond) {
		called = true
		respond(status.OkStatus(), "v")
	}))

	st, _ := s.call(withComID("c1"), &lookupRequest{Kind: 9, Key: "k"})
	c.Check(st.Code, gc.Equals, codes.InvalidArgument)
	c.Check(st.Message, gc.Equals, status.ErrorMessageUnexpectedEnumValue)

	st, _ = s.call(withComID("c1"), &lookupRequest{Kind: 1})
	c.Check(st.Code, gc.Equals, codes.InvalidArgument)
	c.Check(st.Message, gc.Equals, status.ErrorMessageRequiredFieldEmpty)

	c.Check(called, gc.Equals, false)
	c.Check(s.invoked, gc.Equals, 0)
}

func (s *engineSuite) TestMissingComID(c *gc.C) {
	dispatch.SetCallback(s.engine.Callbacks(), opLookup, lookupCallback(func(_ string, _ kind, _ string, respond lookupRespond) {
		respond(status.OkStatus(), "v")
	}))

	for i, rc := range []*dispatch.RequestContext{
		dispatch.NewRequestContext(context.Background(), nil, "test"),
		withComID(""),
	} {
		c.Logf("test %d", i)
		st, _ := s.call(rc, &lookupRequest{Key: "k"})
		c.Check(st.Code, gc.Equals, codes.FailedPrecondition)
		c.Check(st.Message, gc.Equals, status.ErrorMessageNoComID)
	}
	c.Check(s.invoked, gc.Equals, 0)
}

func (s *engineSuite) TestRoundTrip(c *gc.C) {
	var gotComID string
	var gotKind kind
	dispatch.SetCallback(s.engine.Callbacks(), opLookup, lookupCallback(func(comID string, k kind, key string, respond lookupRespond) {
		gotComID, gotKind = comID, k
		respond(status.OkStatus(), "value-of-"+key)
	}))

	st, resp := s.call(withComID("c42"), &lookupRequest{Kind: 1, Key: "k"})
	c.Assert(st.Ok(), gc.Equals, true)
	c.Check(resp.Value, gc.Equals, "value-of-k")
	c.Check(gotComID, gc.Equals, "c42")
	c.Check(gotKind, gc.Equals, kindB)
}

func (s *engineSuite) TestMetadataKeysAreCaseInsensitive(c *gc.C) {
	var gotComID string
	dispatch.SetCallback(s.engine.Callbacks(), opLookup, lookupCallback(func(comID string, _ kind, _ string, respond lookupRespond) {
		gotComID = comID
		respond(status.OkStatus(), "")
	}))

	rc := dispatch.NewRequestContext(context.Background(), map[string]string{"ComId": "c7"}, "")
	st, _ := s.call(rc, &lookupRequest{Key: "k"})
	c.Assert(st.Ok(), gc.Equals, true)
	c.Check(gotComID, gc.Equals, "c7")
}

func (s *engineSuite) TestBusinessFailureIsAborted(c *gc.C) {
	dispatch.SetCallback(s.engine.Callbacks(), opLookup, lookupCallback(func(_ string, _ kind, _ string, respond lookupRespond) {
		respond(status.FailedStatus("no such key"), "ignored")
	}))

	st, resp := s.call(withComID("c1"), &lookupRequest{Key: "k"})
	c.Check(st.Code, gc.Equals, codes.Aborted)
	c.Check(st.Message, gc.Equals, "no such key")
	c.Check(resp.Value, gc.Equals, "")
}

func (s *engineSuite) TestCallbackNotCalled(c *gc.C) {
	dispatch.SetCallback(s.engine.Callbacks(), opLookup, lookupCallback(func(string, kind, string, lookupRespond) {}))

	st, _ := s.call(withComID("c1"), &lookupRequest{Key: "k"})
	c.Check(st.Code, gc.Equals, codes.Canceled)
	c.Check(st.Message, gc.Equals, status.ErrorMessageResponseCallbackNotCalled)
}

func (s *engineSuite) TestContinuationReusePanicsWhenStrict(c *gc.C) {
	dispatch.SetCallback(s.engine.Callbacks(), opLookup, lookupCallback(func(_ string, _ kind, _ string, respond lookupRespond) {
		respond(status.OkStatus(), "first")
		respond(status.FailedStatus("second"), "second")
	}))

	c.Check(func() { s.call(withComID("c1"), &lookupRequest{Key: "k"}) }, gc.PanicMatches, dispatch.ErrContinuationReused.Error())
}

func (s *engineSuite) TestContinuationReuseIgnoredWhenLenient(c *gc.C) {
	s.engine = dispatch.NewEngine("Test", opCount, testOps)
	dispatch.SetCallback(s.engine.Callbacks(), opLookup, lookupCallback(func(_ string, _ kind, _ string, respond lookupRespond) {
		respond(status.OkStatus(), "first")
		respond(status.FailedStatus("second"), "second")
	}))

	st, resp := s.call(withComID("c1"), &lookupRequest{Key: "k"})
	c.Check(st.Ok(), gc.Equals, true)
	c.Check(resp.Value, gc.Equals, "first")
}

func (s *engineSuite) TestLateContinuationIgnored(c *gc.C) {
	var saved lookupRespond
	dispatch.SetCallback(s.engine.Callbacks(), opLookup, lookupCallback(func(_ string, _ kind, _ string, respond lookupRespond) {
		saved = respond
	}))

	st, resp := s.call(withComID("c1"), &lookupRequest{Key: "k"})
	c.Check(st.Code, gc.Equals, codes.Canceled)

	saved(status.OkStatus(), "late")
	c.Check(resp.Value, gc.Equals, "")
}

func (s *engineSuite) TestMalformedCall(c *gc.C) {
	st := dispatch.ServerCall[lookupRequest, lookupResponse, lookupCallback, lookupRespond](s.engine, s.strategy, withComID("c1"), nil, &lookupResponse{})
	c.Check(st.Code, gc.Equals, codes.Internal)

	st = dispatch.ServerCall[lookupRequest, lookupResponse, lookupCallback, lookupRespond](nil, s.strategy, withComID("c1"), &lookupRequest{}, &lookupResponse{})
	c.Check(st.Code, gc.Equals, codes.Internal)
}

func (s *engineSuite) TestStatusOnlyAndBootstrap(c *gc.C) {
	var comIDs []string
	cb := pingCallback(func(comID string, respond dispatch.Respond) {
		comIDs = append(comIDs, comID)
		respond(status.OkStatus())
	})
	dispatch.SetCallback(s.engine.Callbacks(), opPing, cb)
	dispatch.SetCallback(s.engine.Callbacks(), opHello, cb)

	anonymous := dispatch.NewRequestContext(context.Background(), nil, "")

	st := dispatch.ServerCall[pingRequest, pingResponse, pingCallback, dispatch.Respond](s.engine, newPingStrategy(opPing), anonymous, &pingRequest{}, &pingResponse{})
	c.Check(st.Code, gc.Equals, codes.FailedPrecondition)

	hello := helloStrategy{pingStrategy: newPingStrategy(opHello)}
	st = dispatch.ServerCall[pingRequest, pingResponse, pingCallback, dispatch.Respond](s.engine, hello, anonymous, &pingRequest{}, &pingResponse{})
	c.Check(st.Ok(), gc.Equals, true)
	c.Check(comIDs, gc.DeepEquals, []string{""})
}

func (s *engineSuite) TestConcurrentCallsAndRegistration(c *gc.C) {
	dispatch.SetCallback(s.engine.Callbacks(), opLookup, lookupCallback(func(comID string, _ kind, _ string, respond lookupRespond) {
		respond(status.OkStatus(), comID)
	}))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				resp := &lookupResponse{}
				st := dispatch.ServerCall[lookupRequest, lookupResponse, lookupCallback, lookupRespond](
					s.engine, lookupStrategy{BaseStrategy: dispatch.BaseStrategy[lookupRequest]{Op: opLookup}}, withComID("c"), &lookupRequest{Key: "k"}, resp)
				if st.Ok() && resp.Value != "c" {
					c.Errorf("unexpected value %q", resp.Value)
				}
			}
		}()
	}
	for j := 0; j < 100; j++ {
		dispatch.SetCallback(s.engine.Callbacks(), opLookup, lookupCallback(func(comID string, _ kind, _ string, respond lookupRespond) {
			respond(status.OkStatus(), comID)
		}))
	}
	wg.Wait()
}

type callbackTableSuite struct{}

var _ = gc.Suite(&callbackTableSuite{})

func (*callbackTableSuite) TestArityMismatchPanics(c *gc.C) {
	c.Check(func() { dispatch.NewCallbackTable(2, testOps) }, gc.PanicMatches, ".*arity 2 does not match 3.*")
}

func (*callbackTableSuite) TestOutOfRangePanics(c *gc.C) {
	t := dispatch.NewCallbackTable(opCount, testOps)
	c.Check(func() { dispatch.SetCallback(t, opCount, func() {}) }, gc.PanicMatches, ".*out of range")
	_, ok := dispatch.Callback[func()](t, opCount)
	c.Check(ok, gc.Equals, false)
}

func (*callbackTableSuite) TestLastWriteWins(c *gc.C) {
	t := dispatch.NewCallbackTable(opCount, testOps)
	dispatch.SetCallback(t, opPing, func() int { return 1 })
	dispatch.SetCallback(t, opPing, func() int { return 2 })

	fn, ok := dispatch.Callback[func() int](t, opPing)
	c.Assert(ok, gc.Equals, true)
	c.Check(fn(), gc.Equals, 2)

	_, ok = dispatch.Callback[func() string](t, opPing)
	c.Check(ok, gc.Equals, false)
	c.Check(t.Operations().Name(opPing), gc.Equals, "Ping")
	c.Check(t.Operations().Name(9), gc.Equals, "Operation(9)")
}

func (*callbackTableSuite) TestBoundSlotRejectsOtherTypes(c *gc.C) {
	engine := dispatch.NewEngine("Test", opCount, testOps)
	svc := dispatch.NewService(engine)
	dispatch.Handle[lookupRequest, lookupResponse, lookupCallback, lookupRespond](svc, "Lookup", lookupStrategy{BaseStrategy: dispatch.BaseStrategy[lookupRequest]{Op: opLookup}})

	plain := func(comID string, _ kind, _ string, respond lookupRespond) {
		respond(status.OkStatus(), comID)
	}
	c.Check(func() { dispatch.SetCallback(engine.Callbacks(), opLookup, plain) }, gc.PanicMatches, "dispatch: Lookup callback is dispatch_test.lookupCallback, not func.*")
	c.Check(engine.Callbacks().Registered(opLookup), gc.Equals, false)

	dispatch.SetCallback(engine.Callbacks(), opLookup, lookupCallback(plain))
	m, ok := svc.Method("Lookup")
	c.Assert(ok, gc.Equals, true)
	resp := m.NewResponse()
	st := m.Serve(withComID("c3"), &lookupRequest{Key: "k"}, resp)
	c.Assert(st.Ok(), gc.Equals, true)
	c.Check(resp.(*lookupResponse).Value, gc.Equals, "c3")
}

func (*callbackTableSuite) TestBindRejectsMismatchedCallback(c *gc.C) {
	t := dispatch.NewCallbackTable(opCount, testOps)
	dispatch.SetCallback(t, opPing, func() int { return 1 })
	c.Check(func() { dispatch.BindCallback[pingCallback](t, opPing) }, gc.PanicMatches, "dispatch: Ping holds a func\\(\\) int callback, not .*")

	dispatch.BindCallback[lookupCallback](t, opLookup)
	dispatch.BindCallback[lookupCallback](t, opLookup)
	c.Check(func() { dispatch.BindCallback[pingCallback](t, opLookup) }, gc.PanicMatches, "dispatch: Lookup already bound to .*")
	dispatch.SetCallback[lookupCallback](t, opLookup, nil)
	c.Check(t.Registered(opLookup), gc.Equals, false)
}

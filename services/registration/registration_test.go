package registration

import (
	"context"
	"path/filepath"

	gc "gopkg.in/check.v1"
	"google.golang.org/grpc/codes"

	"remote-screen-rpc/client"
	"remote-screen-rpc/dispatch"
	"remote-screen-rpc/registry"
	"remote-screen-rpc/status"
)

type serverSuite struct {
	srv *Server
}

var _ = gc.Suite(&serverSuite{})

func (s *serverSuite) SetUpTest(c *gc.C) {
	s.srv = NewServer()
}

func (s *serverSuite) call(c *gc.C, method string, md map[string]string, req, resp any) status.Status {
	m, ok := s.srv.Lookup(method)
	c.Assert(ok, gc.Equals, true)
	return s.srv.Handle(dispatch.NewRequestContext(context.Background(), md, "test"), m, req, resp)
}

func (s *serverSuite) TestBootstrapCallsNeedNoComID(c *gc.C) {
	s.srv.SetExchangeVersionCallback(func(v string, respond ExchangeVersionRespond) {
		respond(status.OkStatus(), "agent-"+v)
	})
	s.srv.SetDiscoverCallback(func(_ string, respond DiscoverRespond) {
		respond(status.OkStatus(), "fresh", []registry.ServiceRegistration{
			{Type: registry.Connectivity, Location: "unix:///tmp/conn"},
		})
	})

	ev := &exchangeVersionResponse{}
	st := s.call(c, "ExchangeVersion", nil, &exchangeVersionRequest{Version: "1.0"}, ev)
	c.Assert(st.Ok(), gc.Equals, true)
	c.Assert(ev.Version, gc.Equals, "agent-1.0")

	d := &discoverResponse{}
	st = s.call(c, "Discover", nil, &discoverRequest{CommunicationVersion: "1.0"}, d)
	c.Assert(st.Ok(), gc.Equals, true)
	c.Assert(d.ComID, gc.Equals, "fresh")
	c.Assert(d.Services, gc.DeepEquals, []serviceInformation{{Type: int32(registry.Connectivity), Location: "unix:///tmp/conn"}})
}

func (s *serverSuite) TestDiscoverValidation(c *gc.C) {
	s.srv.SetDiscoverCallback(func(_ string, respond DiscoverRespond) {
		respond(status.OkStatus(), "fresh", nil)
	})
	st := s.call(c, "Discover", nil, &discoverRequest{}, &discoverResponse{})
	c.Assert(st.Code, gc.Equals, codes.InvalidArgument)
	c.Assert(st.Message, gc.Equals, status.ErrorMessageRequiredFieldEmpty)
}

func (s *serverSuite) TestDiscoverInvalidAnswer(c *gc.C) {
	s.srv.SetDiscoverCallback(func(_ string, respond DiscoverRespond) {
		respond(status.OkStatus(), "fresh", []registry.ServiceRegistration{{Type: registry.Unknown, Location: "x"}})
	})
	d := &discoverResponse{}
	st := s.call(c, "Discover", nil, &discoverRequest{CommunicationVersion: "1.0"}, d)
	c.Assert(st.Code, gc.Equals, codes.Canceled)
	c.Assert(d.ComID, gc.Equals, "")
}

func (s *serverSuite) TestRegisterRequiresComID(c *gc.C) {
	s.srv.SetRegisterCallback(func(_ string, _ registry.ServiceType, _ string, respond dispatch.Respond) {
		respond(status.OkStatus())
	})
	req := &registerRequest{Type: int32(registry.AccessControlOut), Location: "unix:///tmp/acout"}
	st := s.call(c, "Register", nil, req, &registerResponse{})
	c.Assert(st.Code, gc.Equals, codes.FailedPrecondition)

	st = s.call(c, "Register", map[string]string{"ComID": "abc"}, req, &registerResponse{})
	c.Assert(st.Ok(), gc.Equals, true)
}

func (s *serverSuite) TestRegisterValidation(c *gc.C) {
	s.srv.SetRegisterCallback(func(_ string, _ registry.ServiceType, _ string, respond dispatch.Respond) {
		respond(status.OkStatus())
	})
	md := map[string]string{dispatch.CommunicationIDKey: "abc"}

	st := s.call(c, "Register", md, &registerRequest{Type: 99, Location: "unix:///tmp/x"}, &registerResponse{})
	c.Assert(st.Message, gc.Equals, status.ErrorMessageUnexpectedEnumValue)

	st = s.call(c, "Register", md, &registerRequest{Type: int32(registry.ChatOut)}, &registerResponse{})
	c.Assert(st.Message, gc.Equals, status.ErrorMessageRequiredFieldEmpty)
}

type directorySuite struct {
	reg *registry.MemoryRegistry
	srv *Server
	cli *Client
}

var _ = gc.Suite(&directorySuite{})

func (s *directorySuite) SetUpTest(c *gc.C) {
	ctx := context.Background()
	s.reg = registry.NewMemoryRegistry()
	location := "unix://" + filepath.Join(c.MkDir(), "registration.sock")

	s.srv = NewServer()
	dir := NewDirectory(s.reg, "agent-2")
	dir.newComID = func() string { return "comid-1" }
	dir.Attach(s.srv)
	c.Assert(s.srv.StartServer(ctx, location), gc.IsNil)

	c.Assert(s.reg.Register(ctx, registry.ServiceRegistration{Type: registry.AccessControlIn, Location: "unix:///tmp/acin"}, 0), gc.IsNil)
	c.Assert(s.reg.Register(ctx, registry.ServiceRegistration{Type: registry.Connectivity, Location: "unix:///tmp/conn"}, 0), gc.IsNil)

	s.cli = NewClient()
	c.Assert(s.cli.StartClient(ctx, location), gc.IsNil)
}

func (s *directorySuite) TearDownTest(c *gc.C) {
	c.Check(s.cli.StopClient(), gc.IsNil)
	c.Check(s.srv.StopServer(context.Background(), false), gc.IsNil)
	c.Check(s.reg.Close(), gc.IsNil)
}

func (s *directorySuite) TestSession(c *gc.C) {
	ctx := context.Background()

	ev := s.cli.ExchangeVersion(ctx, "client-1")
	c.Assert(ev.IsOk(), gc.Equals, true)
	c.Assert(ev.VersionNumber, gc.Equals, "agent-2")

	d := s.cli.Discover(ctx, CommunicationVersion)
	c.Assert(d.IsOk(), gc.Equals, true)
	c.Assert(d.ComID, gc.Equals, "comid-1")
	c.Assert(d.Services, gc.DeepEquals, []registry.ServiceRegistration{
		{Type: registry.Connectivity, Location: "unix:///tmp/conn"},
		{Type: registry.AccessControlIn, Location: "unix:///tmp/acin"},
	})

	cs := s.cli.Register(ctx, d.ComID, registry.AccessControlOut, "unix:///tmp/acout")
	c.Assert(cs.IsOk(), gc.Equals, true)

	regs, err := s.reg.Discover(ctx, registry.AccessControlOut)
	c.Assert(err, gc.IsNil)
	c.Assert(regs, gc.DeepEquals, []registry.ServiceRegistration{
		{Type: registry.AccessControlOut, Location: "unix:///tmp/acout", ComID: "comid-1"},
	})
}

func (s *directorySuite) TestDiscoverUnsupportedVersion(c *gc.C) {
	d := s.cli.Discover(context.Background(), "0.1")
	c.Assert(d.IsOk(), gc.Equals, false)
	c.Assert(d.ErrorMessage, gc.Equals, "unsupported communication version 0.1")
}

func (s *directorySuite) TestRegisterWithoutComID(c *gc.C) {
	cs := s.cli.Register(context.Background(), "", registry.AccessControlOut, "unix:///tmp/acout")
	c.Assert(cs.ErrorMessage, gc.Equals, status.ErrorMessageInvalidInputParameter)
}

func (s *directorySuite) TestDiscoverNeedsVersion(c *gc.C) {
	d := s.cli.Discover(context.Background(), "")
	c.Assert(d.ErrorMessage, gc.Equals, status.ErrorMessageInvalidInputParameter)
}

func (s *directorySuite) TestNotStarted(c *gc.C) {
	cli := NewClient(client.WithCodec(0))
	ev := cli.ExchangeVersion(context.Background(), "1")
	c.Assert(ev.ErrorMessage, gc.Equals, status.ErrorMessageMissingStartClient)
}

package accesscontrol

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"sync/atomic"

	gc "gopkg.in/check.v1"

	"remote-screen-rpc/client"
	"remote-screen-rpc/codec"
	"remote-screen-rpc/dispatch"
	"remote-screen-rpc/middleware"
	"remote-screen-rpc/server"
	"remote-screen-rpc/status"
)

// countCalls is a client middleware counting the calls that reach the
// transport.
func countCalls(n *int32) middleware.Middleware {
	return func(next middleware.HandlerFunc) middleware.HandlerFunc {
		return func(ctx context.Context, call *middleware.Call) status.Status {
			atomic.AddInt32(n, 1)
			return next(ctx, call)
		}
	}
}

func freeTCPLocation(c *gc.C) string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	c.Assert(err, gc.IsNil)
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()
	return fmt.Sprintf("tcp+tv://127.0.0.1:%d", port)
}

type clientSuite struct {
	location string
	codec    codec.CodecType
	srv      *InServer
	out      *OutServer
	cli      *InClient
	outCli   *OutClient
	calls    int32
}

var (
	_ = gc.Suite(&clientSuite{location: "unix", codec: codec.CodecTypeCBOR})
	_ = gc.Suite(&clientSuite{location: "tcp+tv", codec: codec.CodecTypeBinary})
)

func (s *clientSuite) SetUpTest(c *gc.C) {
	var inLoc, outLoc string
	if s.location == "unix" {
		dir := c.MkDir()
		inLoc = "unix://" + filepath.Join(dir, "acin.sock")
		outLoc = "unix://" + filepath.Join(dir, "acout.sock")
	} else {
		inLoc = freeTCPLocation(c)
		outLoc = freeTCPLocation(c)
	}

	s.srv = NewInServer(server.WithCodec(s.codec))
	c.Assert(s.srv.StartServer(context.Background(), inLoc), gc.IsNil)
	s.out = NewOutServer(server.WithCodec(s.codec))
	c.Assert(s.out.StartServer(context.Background(), outLoc), gc.IsNil)

	s.calls = 0
	s.cli = NewInClient(client.WithCodec(s.codec), client.WithMiddleware(countCalls(&s.calls)))
	c.Assert(s.cli.StartClient(context.Background(), inLoc), gc.IsNil)
	s.outCli = NewOutClient(client.WithCodec(s.codec))
	c.Assert(s.outCli.StartClient(context.Background(), outLoc), gc.IsNil)
}

func (s *clientSuite) TearDownTest(c *gc.C) {
	c.Check(s.cli.StopClient(), gc.IsNil)
	c.Check(s.outCli.StopClient(), gc.IsNil)
	c.Check(s.srv.StopServer(context.Background(), false), gc.IsNil)
	c.Check(s.out.StopServer(context.Background(), false), gc.IsNil)
}

func (s *clientSuite) TestEmptyComIDNeverReachesTransport(c *gc.C) {
	var invoked int32
	s.srv.SetSetAccessCallback(func(_ string, _ AccessControl, _ Access, respond dispatch.Respond) {
		atomic.AddInt32(&invoked, 1)
		respond(status.OkStatus())
	})

	cs := s.cli.SetAccess(context.Background(), "", FileTransfer, Denied)
	c.Assert(cs, gc.DeepEquals, status.FailedStatus(status.ErrorMessageInvalidInputParameter))
	c.Assert(atomic.LoadInt32(&s.calls), gc.Equals, int32(0))
	c.Assert(atomic.LoadInt32(&invoked), gc.Equals, int32(0))
}

func (s *clientSuite) TestInvalidEnumNeverReachesTransport(c *gc.C) {
	cs := s.cli.SetAccess(context.Background(), "abc", AccessControl(9), Denied)
	c.Assert(cs.ErrorMessage, gc.Equals, status.ErrorMessageInvalidInputParameter)
	res := s.cli.GetAccess(context.Background(), "abc", AccessControl(-1))
	c.Assert(res.ErrorMessage, gc.Equals, status.ErrorMessageInvalidInputParameter)
	c.Assert(atomic.LoadInt32(&s.calls), gc.Equals, int32(0))
}

func (s *clientSuite) TestSetAccess(c *gc.C) {
	got := make(chan string, 1)
	s.srv.SetSetAccessCallback(func(comID string, feature AccessControl, access Access, respond dispatch.Respond) {
		got <- fmt.Sprintf("%s %v %v", comID, feature, access)
		respond(status.OkStatus())
	})

	cs := s.cli.SetAccess(context.Background(), "abc", RemoteControl, Denied)
	c.Assert(cs.IsOk(), gc.Equals, true)
	c.Assert(<-got, gc.Equals, "abc RemoteControl Denied")
}

func (s *clientSuite) TestSetAccessWithoutCallback(c *gc.C) {
	cs := s.cli.SetAccess(context.Background(), "abc", FileTransfer, Denied)
	c.Assert(cs, gc.DeepEquals, status.FailedStatus(status.ErrorMessageNoProcessingCallback))
}

func (s *clientSuite) TestGetAccess(c *gc.C) {
	s.srv.SetGetAccessCallback(func(_ string, feature AccessControl, respond GetAccessRespond) {
		if feature == RemoteView {
			respond(status.OkStatus(), Allowed)
			return
		}
		respond(status.OkStatus(), Denied)
	})

	res := s.cli.GetAccess(context.Background(), "abc", RemoteView)
	c.Assert(res.IsOk(), gc.Equals, true)
	c.Assert(res.Access, gc.Equals, Allowed)

	res = s.cli.GetAccess(context.Background(), "abc", FileTransfer)
	c.Assert(res.IsOk(), gc.Equals, true)
	c.Assert(res.Access, gc.Equals, Denied)
}

func (s *clientSuite) TestGetAccessFailure(c *gc.C) {
	s.srv.SetGetAccessCallback(func(_ string, _ AccessControl, respond GetAccessRespond) {
		respond(status.FailedStatus("no session"), Allowed)
	})
	res := s.cli.GetAccess(context.Background(), "abc", RemoteView)
	c.Assert(res.CallStatus, gc.DeepEquals, status.FailedStatus("no session"))
}

func (s *clientSuite) TestConfirmationReply(c *gc.C) {
	s.srv.SetConfirmationReplyCallback(func(_ string, feature AccessControl, confirmed bool, respond dispatch.Respond) {
		if !confirmed {
			respond(status.FailedStatus("denied by user"))
			return
		}
		respond(status.OkStatus())
	})
	c.Assert(s.cli.ConfirmationReply(context.Background(), "abc", FileTransfer, true).IsOk(), gc.Equals, true)
	c.Assert(s.cli.ConfirmationReply(context.Background(), "abc", FileTransfer, false).ErrorMessage, gc.Equals, "denied by user")
}

func (s *clientSuite) TestOutService(c *gc.C) {
	s.out.SetAskForConfirmationCallback(func(comID string, feature AccessControl, timeout uint32, respond dispatch.Respond) {
		if timeout == 0 {
			respond(status.FailedStatus("no timeout"))
			return
		}
		respond(status.OkStatus())
	})
	changes := make(chan string, 1)
	s.out.SetNotifyChangeCallback(func(comID string, feature AccessControl, access Access, respond dispatch.Respond) {
		changes <- feature.String() + "=" + access.String()
		respond(status.OkStatus())
	})

	c.Assert(s.outCli.AskForConfirmation(context.Background(), "abc", RemoteControl, 30).IsOk(), gc.Equals, true)
	c.Assert(s.outCli.AskForConfirmation(context.Background(), "abc", RemoteControl, 0).ErrorMessage, gc.Equals, "no timeout")
	c.Assert(s.outCli.NotifyChange(context.Background(), "abc", FileTransfer, Allowed).IsOk(), gc.Equals, true)
	c.Assert(<-changes, gc.Equals, "FileTransfer=Allowed")
}

func (s *clientSuite) TestStoppedClient(c *gc.C) {
	c.Assert(s.cli.StopClient(), gc.IsNil)
	cs := s.cli.SetAccess(context.Background(), "abc", FileTransfer, Denied)
	c.Assert(cs, gc.DeepEquals, status.FailedStatus(status.ErrorMessageMissingStartClient))
}

type responseSuite struct{}

var _ = gc.Suite(&responseSuite{})

func (*responseSuite) TestGetAccessRejectsUnknownAccess(c *gc.C) {
	invoker := dispatch.InvokerFunc(func(_ context.Context, method string, _ map[string]string, req, resp any) status.Status {
		c.Check(method, gc.Equals, "GetAccess")
		c.Check(req.(*getAccessRequest).Feature, gc.Equals, fromAccessControl(RemoteView))
		resp.(*getAccessResponse).Access = 9
		return status.OK
	})
	s := getAccessClient{}
	s.Name = "GetAccess"
	res := dispatch.ClientCall[getAccessRequest, getAccessResponse, AccessControl, GetAccessResult](
		context.Background(), invoker, s, "abc", RemoteView)
	c.Assert(res.CallStatus, gc.DeepEquals, status.FailedStatus(status.ErrorMessageInvalidResponseValue))
	c.Assert(res.Access, gc.Equals, Access(0))
}

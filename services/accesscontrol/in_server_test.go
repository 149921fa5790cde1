package accesscontrol

import (
	"context"

	gc "gopkg.in/check.v1"
	"google.golang.org/grpc/codes"

	"remote-screen-rpc/dispatch"
	"remote-screen-rpc/status"
)

type inServerSuite struct {
	srv *InServer
}

var _ = gc.Suite(&inServerSuite{})

func (s *inServerSuite) SetUpTest(c *gc.C) {
	s.srv = NewInServer()
}

func (s *inServerSuite) call(c *gc.C, method, comID string, req, resp any) status.Status {
	m, ok := s.srv.Lookup(method)
	c.Assert(ok, gc.Equals, true)
	md := map[string]string{}
	if comID != "" {
		md[dispatch.CommunicationIDKey] = comID
	}
	return s.srv.Handle(dispatch.NewRequestContext(context.Background(), md, "test"), m, req, resp)
}

func (s *inServerSuite) TestMethods(c *gc.C) {
	c.Assert(s.srv.Methods(), gc.DeepEquals, []string{"ConfirmationReply", "GetAccess", "SetAccess"})
	c.Assert(s.srv.ServiceName(), gc.Equals, InServiceName)
}

func (s *inServerSuite) TestSetAccessWithoutCallbackIsUnavailable(c *gc.C) {
	st := s.call(c, "SetAccess", "abc", &setAccessRequest{Feature: wireFileTransfer, Access: wireDenied}, &setAccessResponse{})
	c.Assert(st.Code, gc.Equals, codes.Unavailable)
	c.Assert(st.Message, gc.Equals, status.ErrorMessageNoProcessingCallback)
}

func (s *inServerSuite) TestSetAccessRejectsUnknownFeature(c *gc.C) {
	invoked := 0
	s.srv.SetSetAccessCallback(func(string, AccessControl, Access, dispatch.Respond) { invoked++ })

	for _, req := range []*setAccessRequest{
		{Feature: wireAccessControl(7), Access: wireDenied},
		{Feature: 0, Access: wireDenied},
		{Feature: wireRemoteControl, Access: wireAccess(9)},
	} {
		st := s.call(c, "SetAccess", "abc", req, &setAccessResponse{})
		c.Check(st.Code, gc.Equals, codes.InvalidArgument)
		c.Check(st.Message, gc.Equals, status.ErrorMessageUnexpectedEnumValue)
	}
	c.Assert(invoked, gc.Equals, 0)
}

func (s *inServerSuite) TestSetAccessRequiresComID(c *gc.C) {
	var got []string
	s.srv.SetSetAccessCallback(func(comID string, feature AccessControl, access Access, respond dispatch.Respond) {
		got = append(got, comID+"/"+feature.String()+"/"+access.String())
		respond(status.OkStatus())
	})

	st := s.call(c, "SetAccess", "abc", &setAccessRequest{Feature: wireRemoteView, Access: wireAfterConfirmation}, &setAccessResponse{})
	c.Assert(st.Ok(), gc.Equals, true)

	st = s.call(c, "SetAccess", "", &setAccessRequest{Feature: wireRemoteView, Access: wireAfterConfirmation}, &setAccessResponse{})
	c.Assert(st.Code, gc.Equals, codes.FailedPrecondition)
	c.Assert(st.Message, gc.Equals, status.ErrorMessageNoComID)

	c.Assert(got, gc.DeepEquals, []string{"abc/RemoteView/AfterConfirmation"})
}

func (s *inServerSuite) TestGetAccess(c *gc.C) {
	s.srv.SetGetAccessCallback(func(comID string, feature AccessControl, respond GetAccessRespond) {
		c.Check(feature, gc.Equals, RemoteControl)
		respond(status.OkStatus(), AfterConfirmation)
	})
	resp := &getAccessResponse{}
	st := s.call(c, "GetAccess", "abc", &getAccessRequest{Feature: wireRemoteControl}, resp)
	c.Assert(st.Ok(), gc.Equals, true)
	c.Assert(resp.Access, gc.Equals, wireAfterConfirmation)
}

func (s *inServerSuite) TestGetAccessApplicationFailure(c *gc.C) {
	s.srv.SetGetAccessCallback(func(_ string, _ AccessControl, respond GetAccessRespond) {
		respond(status.FailedStatus("feature locked"), Allowed)
	})
	resp := &getAccessResponse{}
	st := s.call(c, "GetAccess", "abc", &getAccessRequest{Feature: wireFileTransfer}, resp)
	c.Assert(st.Code, gc.Equals, codes.Aborted)
	c.Assert(st.Message, gc.Equals, "feature locked")
	c.Assert(resp.Access, gc.Equals, wireAccess(0))
}

func (s *inServerSuite) TestGetAccessInvalidAnswer(c *gc.C) {
	s.srv.SetGetAccessCallback(func(_ string, _ AccessControl, respond GetAccessRespond) {
		respond(status.OkStatus(), Access(42))
	})
	st := s.call(c, "GetAccess", "abc", &getAccessRequest{Feature: wireFileTransfer}, &getAccessResponse{})
	c.Assert(st.Code, gc.Equals, codes.Canceled)
	c.Assert(st.Message, gc.Equals, status.ErrorMessageUnexpectedEnumValue)
}

func (s *inServerSuite) TestConfirmationReplyNotAnswered(c *gc.C) {
	s.srv.SetConfirmationReplyCallback(func(string, AccessControl, bool, dispatch.Respond) {})
	st := s.call(c, "ConfirmationReply", "abc", &confirmationReplyRequest{Feature: wireFileTransfer, Confirmed: true}, &confirmationReplyResponse{})
	c.Assert(st.Code, gc.Equals, codes.Canceled)
	c.Assert(st.Message, gc.Equals, status.ErrorMessageResponseCallbackNotCalled)
}

func (s *inServerSuite) TestCallbackReplacement(c *gc.C) {
	s.srv.SetConfirmationReplyCallback(func(_ string, _ AccessControl, _ bool, respond dispatch.Respond) {
		respond(status.FailedStatus("first"))
	})
	s.srv.SetConfirmationReplyCallback(func(_ string, _ AccessControl, _ bool, respond dispatch.Respond) {
		respond(status.FailedStatus("second"))
	})
	st := s.call(c, "ConfirmationReply", "abc", &confirmationReplyRequest{Feature: wireFileTransfer}, &confirmationReplyResponse{})
	c.Assert(st.Message, gc.Equals, "second")

	s.srv.SetConfirmationReplyCallback(nil)
	st = s.call(c, "ConfirmationReply", "abc", &confirmationReplyRequest{Feature: wireFileTransfer}, &confirmationReplyResponse{})
	c.Assert(st.Code, gc.Equals, codes.Unavailable)
}

package chat

import (
	"google.golang.org/grpc/codes"

	"remote-screen-rpc/dispatch"
	"remote-screen-rpc/registry"
	"remote-screen-rpc/server"
	"remote-screen-rpc/status"
)

// ServiceName is the wire name of the chat-in service.
const ServiceName = "ChatInService"

const (
	opObtainChats dispatch.Operation = iota
	opSelectChat
	opSendMessage
	operationCount
)

var operations = dispatch.NewOperationSet("ObtainChats", "SelectChat", "SendMessage")

type (
	ObtainChatsRespond  func(cs status.CallStatus, chats []ChatInfo)
	ObtainChatsCallback func(comID string, respond ObtainChatsRespond)
	SelectChatCallback  func(comID, chatID string, respond dispatch.Respond)
	SendMessageCallback func(comID string, localID uint32, content string, respond dispatch.Respond)
)

func required(field string) status.Status {
	if field == "" {
		return status.New(codes.InvalidArgument, status.ErrorMessageRequiredFieldEmpty)
	}
	return status.OK
}

type obtainChatsStrategy struct {
	dispatch.BaseStrategy[obtainChatsRequest]
}

func (obtainChatsStrategy) MakeResponseProcessing(reply *dispatch.Reply[obtainChatsResponse]) ObtainChatsRespond {
	return func(cs status.CallStatus, chats []ChatInfo) {
		reply.Commit(func(resp *obtainChatsResponse) status.Status {
			if !cs.IsOk() {
				return status.FromCallStatus(cs)
			}
			wire := make([]chatInfo, 0, len(chats))
			for _, info := range chats {
				w, ok := toWire(info)
				if !ok {
					return status.New(codes.Canceled, status.ErrorMessageUnexpectedEnumValue)
				}
				wire = append(wire, w)
			}
			resp.Chats = wire
			return status.OK
		})
	}
}

func (obtainChatsStrategy) InvokeCallback(cb ObtainChatsCallback, comID string, _ *obtainChatsRequest, respond ObtainChatsRespond) {
	cb(comID, respond)
}

type selectChatStrategy struct {
	dispatch.StatusOnly[selectChatRequest, selectChatResponse]
}

func (selectChatStrategy) ValidateRequest(req *selectChatRequest) status.Status {
	return required(req.ChatID)
}

func (selectChatStrategy) InvokeCallback(cb SelectChatCallback, comID string, req *selectChatRequest, respond dispatch.Respond) {
	cb(comID, req.ChatID, respond)
}

type sendMessageStrategy struct {
	dispatch.StatusOnly[sendMessageRequest, sendMessageResponse]
}

func (sendMessageStrategy) ValidateRequest(req *sendMessageRequest) status.Status {
	return required(req.Content)
}

func (sendMessageStrategy) InvokeCallback(cb SendMessageCallback, comID string, req *sendMessageRequest, respond dispatch.Respond) {
	cb(comID, req.LocalID, req.Content, respond)
}

// Server serves the chat-in service.
type Server struct {
	*server.Server
	engine *dispatch.Engine
}

// NewServer creates a chat-in server with empty callback slots.
func NewServer(opts ...server.Option) *Server {
	engine := dispatch.NewEngine(ServiceName, operationCount, operations)
	svc := dispatch.NewService(engine)

	obtain := obtainChatsStrategy{}
	obtain.Op = opObtainChats
	dispatch.Handle[obtainChatsRequest, obtainChatsResponse, ObtainChatsCallback, ObtainChatsRespond](svc, "ObtainChats", obtain)

	sel := selectChatStrategy{}
	sel.Op = opSelectChat
	dispatch.Handle[selectChatRequest, selectChatResponse, SelectChatCallback, dispatch.Respond](svc, "SelectChat", sel)

	send := sendMessageStrategy{}
	send.Op = opSendMessage
	dispatch.Handle[sendMessageRequest, sendMessageResponse, SendMessageCallback, dispatch.Respond](svc, "SendMessage", send)

	return &Server{
		Server: server.New(registry.ChatIn, svc, opts...),
		engine: engine,
	}
}

// SetObtainChatsCallback sets the callback answering ObtainChats.
func (s *Server) SetObtainChatsCallback(cb ObtainChatsCallback) {
	dispatch.SetCallback(s.engine.Callbacks(), opObtainChats, cb)
}

// SetSelectChatCallback sets the callback answering SelectChat.
func (s *Server) SetSelectChatCallback(cb SelectChatCallback) {
	dispatch.SetCallback(s.engine.Callbacks(), opSelectChat, cb)
}

// SetSendMessageCallback sets the callback answering SendMessage.
func (s *Server) SetSendMessageCallback(cb SendMessageCallback) {
	dispatch.SetCallback(s.engine.Callbacks(), opSendMessage, cb)
}

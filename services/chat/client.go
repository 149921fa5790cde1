package chat

import (
	"context"

	"remote-screen-rpc/client"
	"remote-screen-rpc/dispatch"
	"remote-screen-rpc/registry"
	"remote-screen-rpc/status"
)

// ObtainChatsResult is the outcome of ObtainChats.
type ObtainChatsResult struct {
	status.CallStatus
	Chats []ChatInfo
}

type obtainChatsClient struct {
	dispatch.ClientBase[obtainChatsRequest, obtainChatsResponse, struct{}]
}

func (obtainChatsClient) HandleResponse(st status.Status, resp *obtainChatsResponse, _ struct{}) ObtainChatsResult {
	if !st.Ok() {
		return ObtainChatsResult{CallStatus: status.ToCallStatus(st)}
	}
	chats := make([]ChatInfo, 0, len(resp.Chats))
	for _, w := range resp.Chats {
		info, ok := fromWire(w)
		if !ok {
			return ObtainChatsResult{CallStatus: status.FailedStatus(status.ErrorMessageInvalidResponseValue)}
		}
		chats = append(chats, info)
	}
	return ObtainChatsResult{CallStatus: status.OkStatus(), Chats: chats}
}

func (obtainChatsClient) Failed(msg string) ObtainChatsResult {
	return ObtainChatsResult{CallStatus: status.FailedStatus(msg)}
}

type selectChatClient struct {
	dispatch.ClientBase[selectChatRequest, selectChatResponse, string]
}

func (selectChatClient) ValidateInput(comID, chatID string) bool {
	return comID != "" && chatID != ""
}

func (selectChatClient) PrepareRequest(req *selectChatRequest, chatID string) {
	req.ChatID = chatID
}

type sendMessageArgs struct {
	localID uint32
	content string
}

type sendMessageClient struct {
	dispatch.ClientBase[sendMessageRequest, sendMessageResponse, sendMessageArgs]
}

func (sendMessageClient) ValidateInput(comID string, args sendMessageArgs) bool {
	return comID != "" && args.content != ""
}

func (sendMessageClient) PrepareRequest(req *sendMessageRequest, args sendMessageArgs) {
	req.LocalID = args.localID
	req.Content = args.content
}

// Client calls the chat-in service.
type Client struct {
	*client.Client
}

// NewClient creates a chat-in client.
func NewClient(opts ...client.Option) *Client {
	return &Client{Client: client.New(registry.ChatIn, ServiceName, opts...)}
}

// ObtainChats lists the chats of the session.
func (c *Client) ObtainChats(ctx context.Context, comID string) ObtainChatsResult {
	s := obtainChatsClient{}
	s.Name = "ObtainChats"
	return dispatch.ClientCall[obtainChatsRequest, obtainChatsResponse, struct{}, ObtainChatsResult](
		ctx, c.Invoker(), s, comID, struct{}{})
}

// SelectChat makes chatID the target of SendMessage.
func (c *Client) SelectChat(ctx context.Context, comID, chatID string) status.CallStatus {
	s := selectChatClient{}
	s.Name = "SelectChat"
	return dispatch.ClientCall[selectChatRequest, selectChatResponse, string, status.CallStatus](
		ctx, c.Invoker(), s, comID, chatID)
}

// SendMessage sends content to the selected chat. localID lets the caller
// match the later delivery report.
func (c *Client) SendMessage(ctx context.Context, comID string, localID uint32, content string) status.CallStatus {
	s := sendMessageClient{}
	s.Name = "SendMessage"
	return dispatch.ClientCall[sendMessageRequest, sendMessageResponse, sendMessageArgs, status.CallStatus](
		ctx, c.Invoker(), s, comID, sendMessageArgs{localID: localID, content: content})
}

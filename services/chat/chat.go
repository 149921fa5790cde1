// Package chat implements the chat-in service, through which the application
// reads and writes the chats of the agent.
package chat

import "fmt"

type ChatType int32

const (
	Machine ChatType = iota
	Session
)

// Valid reports whether t is a declared chat type.
func (t ChatType) Valid() bool {
	return t == Machine || t == Session
}

func (t ChatType) String() string {
	switch t {
	case Machine:
		return "Machine"
	case Session:
		return "Session"
	}
	return fmt.Sprintf("ChatType(%d)", int32(t))
}

type ChatState int32

const (
	Open ChatState = iota
	Closed
)

// Valid reports whether s is a declared chat state.
func (s ChatState) Valid() bool {
	return s == Open || s == Closed
}

func (s ChatState) String() string {
	switch s {
	case Open:
		return "Open"
	case Closed:
		return "Closed"
	}
	return fmt.Sprintf("ChatState(%d)", int32(s))
}

// ChatInfo describes one chat.
type ChatInfo struct {
	ChatID     string
	Title      string
	ChatType   ChatType
	ChatTypeID uint32
	ChatState  ChatState
}

// wire

type wireChatType int32

const (
	wireMachine wireChatType = 1
	wireSession wireChatType = 2
)

type wireChatState int32

const (
	wireOpen   wireChatState = 1
	wireClosed wireChatState = 2
)

type chatInfo struct {
	ChatID     string        `json:"chatId" cbor:"1,keyasint"`
	Title      string        `json:"title,omitempty" cbor:"2,keyasint,omitempty"`
	ChatType   wireChatType  `json:"chatType" cbor:"3,keyasint"`
	ChatTypeID uint32        `json:"chatTypeId,omitempty" cbor:"4,keyasint,omitempty"`
	ChatState  wireChatState `json:"chatState" cbor:"5,keyasint"`
}

// toWire converts info, reporting false for enum values outside their domain.
func toWire(info ChatInfo) (chatInfo, bool) {
	w := chatInfo{ChatID: info.ChatID, Title: info.Title, ChatTypeID: info.ChatTypeID}
	switch info.ChatType {
	case Machine:
		w.ChatType = wireMachine
	case Session:
		w.ChatType = wireSession
	default:
		return chatInfo{}, false
	}
	switch info.ChatState {
	case Open:
		w.ChatState = wireOpen
	case Closed:
		w.ChatState = wireClosed
	default:
		return chatInfo{}, false
	}
	return w, true
}

func fromWire(w chatInfo) (ChatInfo, bool) {
	info := ChatInfo{ChatID: w.ChatID, Title: w.Title, ChatTypeID: w.ChatTypeID}
	switch w.ChatType {
	case wireMachine:
		info.ChatType = Machine
	case wireSession:
		info.ChatType = Session
	default:
		return ChatInfo{}, false
	}
	switch w.ChatState {
	case wireOpen:
		info.ChatState = Open
	case wireClosed:
		info.ChatState = Closed
	default:
		return ChatInfo{}, false
	}
	return info, true
}

type obtainChatsRequest struct{}

type obtainChatsResponse struct {
	Chats []chatInfo `json:"chats,omitempty" cbor:"1,keyasint,omitempty"`
}

type selectChatRequest struct {
	ChatID string `json:"chatId" cbor:"1,keyasint"`
}

type selectChatResponse struct{}

type sendMessageRequest struct {
	LocalID uint32 `json:"localId" cbor:"1,keyasint"`
	Content string `json:"content" cbor:"2,keyasint"`
}

type sendMessageResponse struct{}

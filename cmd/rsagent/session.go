package main

import (
	"context"
	"sort"
	"sync"
	"time"

	"remote-screen-rpc/client"
	"remote-screen-rpc/dispatch"
	"remote-screen-rpc/registry"
	"remote-screen-rpc/services/accesscontrol"
	"remote-screen-rpc/services/chat"
	"remote-screen-rpc/status"
)

const errUnknownSession = "unknown session"

// sessions tracks the comIds handed out by Discover.
type sessions struct {
	mu   sync.Mutex
	byID map[string]*session
}

type session struct {
	// pending holds the features a confirmation prompt was sent for and
	// confirmed the answers received.
	pending   map[accesscontrol.AccessControl]bool
	confirmed map[accesscontrol.AccessControl]bool
	chat      string
}

func newSessions() *sessions {
	return &sessions{byID: make(map[string]*session)}
}

func (s *sessions) open(comID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[comID] = &session{
		pending:   make(map[accesscontrol.AccessControl]bool),
		confirmed: make(map[accesscontrol.AccessControl]bool),
	}
}

func (s *sessions) close(comID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.byID[comID]
	delete(s.byID, comID)
	return ok
}

// with runs f on the session of comID while holding the lock.
func (s *sessions) with(comID string, f func(*session)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.byID[comID]
	if ok && f != nil {
		f(sess)
	}
	return ok
}

// policy holds the access mode of every feature.
type policy struct {
	mu     sync.RWMutex
	access map[accesscontrol.AccessControl]accesscontrol.Access
}

func newPolicy() *policy {
	return &policy{access: map[accesscontrol.AccessControl]accesscontrol.Access{
		accesscontrol.FileTransfer:  accesscontrol.AfterConfirmation,
		accesscontrol.RemoteView:    accesscontrol.Allowed,
		accesscontrol.RemoteControl: accesscontrol.AfterConfirmation,
	}}
}

func (p *policy) get(feature accesscontrol.AccessControl) accesscontrol.Access {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.access[feature]
}

// set stores access and reports whether it changed.
func (p *policy) set(feature accesscontrol.AccessControl, access accesscontrol.Access) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.access[feature] == access {
		return false
	}
	p.access[feature] = access
	return true
}

// getAccess reports the access mode of feature for the session. A feature
// that needs confirmation triggers one prompt per session through the
// AccessControlOut services the session registered; the answer then turns the
// mode into Allowed or Denied for that session.
func (a *Agent) getAccess(comID string, feature accesscontrol.AccessControl, respond accesscontrol.GetAccessRespond) {
	access := a.policy.get(feature)
	var confirmed, answered, ask bool
	ok := a.sessions.with(comID, func(s *session) {
		confirmed, answered = s.confirmed[feature]
		if access == accesscontrol.AfterConfirmation && !answered && !s.pending[feature] {
			s.pending[feature] = true
			ask = true
		}
	})
	if !ok {
		respond(status.FailedStatus(errUnknownSession), 0)
		return
	}
	if access == accesscontrol.AfterConfirmation && answered {
		access = accesscontrol.Denied
		if confirmed {
			access = accesscontrol.Allowed
		}
	}
	respond(status.OkStatus(), access)
	if ask {
		a.askForConfirmation(comID, feature)
	}
}

func (a *Agent) setAccess(comID string, feature accesscontrol.AccessControl, access accesscontrol.Access, respond dispatch.Respond) {
	if !a.sessions.with(comID, nil) {
		respond(status.FailedStatus(errUnknownSession))
		return
	}
	changed := a.policy.set(feature, access)
	respond(status.OkStatus())
	if changed {
		logger.Infof("session %s set %s to %s", comID, feature, access)
		a.notifyChange(comID, feature, access)
	}
}

// confirmationReply accepts the answer to a prompt sent by getAccess.
func (a *Agent) confirmationReply(comID string, feature accesscontrol.AccessControl, confirmed bool, respond dispatch.Respond) {
	var pending bool
	ok := a.sessions.with(comID, func(s *session) {
		if pending = s.pending[feature]; pending {
			delete(s.pending, feature)
			s.confirmed[feature] = confirmed
		}
	})
	if !ok {
		respond(status.FailedStatus(errUnknownSession))
		return
	}
	if !pending {
		respond(status.FailedStatus("no confirmation pending for " + feature.String()))
		return
	}
	logger.Infof("session %s confirmed %s: %t", comID, feature, confirmed)
	respond(status.OkStatus())
}

// askForConfirmation prompts the session for feature. The prompt is dropped,
// and may be sent again by the next getAccess, when no AccessControlOut
// service of the session accepts it.
func (a *Agent) askForConfirmation(comID string, feature accesscontrol.AccessControl) {
	timeout := uint32(a.cfg.Agent.ConfirmationTimeout / time.Second)
	a.background(func(ctx context.Context) {
		asked := a.callOut(ctx, comID, func(out *accesscontrol.OutClient) status.CallStatus {
			return out.AskForConfirmation(ctx, comID, feature, timeout)
		})
		if asked > 0 {
			return
		}
		logger.Warningf("nobody to confirm %s for session %s", feature, comID)
		a.sessions.with(comID, func(s *session) { delete(s.pending, feature) })
	})
}

// notifyChange tells the AccessControlOut services the session registered
// about a changed access mode. It runs after the SetAccess reply is sent.
func (a *Agent) notifyChange(comID string, feature accesscontrol.AccessControl, access accesscontrol.Access) {
	a.background(func(ctx context.Context) {
		a.callOut(ctx, comID, func(out *accesscontrol.OutClient) status.CallStatus {
			return out.NotifyChange(ctx, comID, feature, access)
		})
	})
}

// background runs f outside the calling callback. Stop waits for it.
func (a *Agent) background(f func(ctx context.Context)) {
	timeout := a.cfg.Client.CallTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	a.outCalls.Add(1)
	go func() {
		defer a.outCalls.Done()
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		f(ctx)
	}()
}

// callOut runs call against every AccessControlOut service comID registered
// and returns how many of them accepted it.
func (a *Agent) callOut(ctx context.Context, comID string, call func(*accesscontrol.OutClient) status.CallStatus) int {
	regs, err := a.registry.Discover(ctx, registry.AccessControlOut)
	if err != nil {
		logger.Errorf("looking up AccessControlOut of %s: %v", comID, err)
		return 0
	}
	accepted := 0
	for _, reg := range regs {
		if reg.ComID != comID {
			continue
		}
		out := accesscontrol.NewOutClient(client.WithCodec(a.cfg.CodecType()))
		if err := out.StartClient(ctx, reg.Location); err != nil {
			logger.Warningf("reaching %s on %s: %v", comID, reg.Location, err)
			continue
		}
		if cs := call(out); cs.IsOk() {
			accepted++
		} else {
			logger.Warningf("calling %s on %s: %v", comID, reg.Location, cs)
		}
		out.StopClient()
	}
	return accepted
}

func (a *Agent) isAvailable(comID string, respond dispatch.Respond) {
	if !a.sessions.with(comID, nil) {
		respond(status.FailedStatus(errUnknownSession))
		return
	}
	respond(status.OkStatus())
}

// disconnect closes the session and removes the services it registered.
func (a *Agent) disconnect(comID string, respond dispatch.Respond) {
	if !a.sessions.close(comID) {
		respond(status.FailedStatus(errUnknownSession))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	regs, err := a.registry.List(ctx)
	if err != nil {
		logger.Errorf("listing services of %s: %v", comID, err)
	}
	for _, reg := range regs {
		if reg.ComID != comID {
			continue
		}
		if err := a.registry.Deregister(ctx, reg.Type, reg.Location); err != nil {
			logger.Warningf("removing %s of %s: %v", reg.Type, comID, err)
		}
	}
	logger.Infof("session %s disconnected", comID)
	respond(status.OkStatus())
}

// chatStore is the agent's in-memory chat list.
type chatStore struct {
	mu       sync.Mutex
	chats    map[string]chat.ChatInfo
	messages map[string][]string
}

func newChatStore() *chatStore {
	return &chatStore{
		chats: map[string]chat.ChatInfo{
			"machine": {
				ChatID:    "machine",
				Title:     "Machine chat",
				ChatType:  chat.Machine,
				ChatState: chat.Open,
			},
		},
		messages: make(map[string][]string),
	}
}

func (c *chatStore) list() []chat.ChatInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	chats := make([]chat.ChatInfo, 0, len(c.chats))
	for _, info := range c.chats {
		chats = append(chats, info)
	}
	sort.Slice(chats, func(i, j int) bool { return chats[i].ChatID < chats[j].ChatID })
	return chats
}

func (c *chatStore) exists(chatID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	info, ok := c.chats[chatID]
	return ok && info.ChatState == chat.Open
}

func (c *chatStore) post(chatID, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages[chatID] = append(c.messages[chatID], content)
}

func (a *Agent) obtainChats(comID string, respond chat.ObtainChatsRespond) {
	if !a.sessions.with(comID, nil) {
		respond(status.FailedStatus(errUnknownSession), nil)
		return
	}
	respond(status.OkStatus(), a.chats.list())
}

func (a *Agent) selectChat(comID, chatID string, respond dispatch.Respond) {
	if !a.chats.exists(chatID) {
		respond(status.FailedStatus("no open chat " + chatID))
		return
	}
	if !a.sessions.with(comID, func(s *session) { s.chat = chatID }) {
		respond(status.FailedStatus(errUnknownSession))
		return
	}
	respond(status.OkStatus())
}

func (a *Agent) sendMessage(comID string, localID uint32, content string, respond dispatch.Respond) {
	var chatID string
	if !a.sessions.with(comID, func(s *session) { chatID = s.chat }) {
		respond(status.FailedStatus(errUnknownSession))
		return
	}
	if chatID == "" {
		respond(status.FailedStatus("no chat selected"))
		return
	}
	a.chats.post(chatID, content)
	logger.Debugf("session %s message %d to %s", comID, localID, chatID)
	respond(status.OkStatus())
}

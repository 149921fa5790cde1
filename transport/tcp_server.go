package transport

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	"github.com/juju/errors"
	"google.golang.org/grpc/codes"

	"remote-screen-rpc/codec"
	"remote-screen-rpc/dispatch"
	"remote-screen-rpc/message"
	"remote-screen-rpc/protocol"
	"remote-screen-rpc/status"
)

// TCPServer serves a Handler over framed TCP connections.
//
// Request processing pipeline:
//
//	Accept conn → handleConn (single goroutine reads frames)
//	  → for each request: go handleRequest (parallel processing)
//	    → Codec.Decode → Handler.Handle → Codec.Encode → write response
type TCPServer struct {
	handler Handler

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}

	wg       sync.WaitGroup // in-flight requests
	shutdown atomic.Bool    // suppresses the Accept error caused by Close
}

// NewTCPServer creates a TCP server transport for h.
func NewTCPServer(h Handler) *TCPServer {
	ctx, cancel := context.WithCancel(context.Background())
	return &TCPServer{
		handler: h,
		ctx:     ctx,
		cancel:  cancel,
		conns:   make(map[net.Conn]struct{}),
	}
}

// Serve runs the accept loop, one goroutine per connection.
func (s *TCPServer) Serve(l net.Listener) error {
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
	if s.shutdown.Load() {
		l.Close()
		return nil
	}

	for {
		conn, err := l.Accept()
		if err != nil {
			if s.shutdown.Load() {
				return nil
			}
			return errors.Trace(err)
		}
		if !s.track(conn) {
			conn.Close()
			return nil
		}
		go s.handleConn(conn)
	}
}

func (s *TCPServer) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.shutdown.Load() {
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *TCPServer) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// handleConn reads frames sequentially and processes each request in its
// own goroutine. Responses share a per-connection write lock so frames do
// not interleave.
func (s *TCPServer) handleConn(conn net.Conn) {
	defer func() {
		s.untrack(conn)
		conn.Close()
	}()
	writeMu := &sync.Mutex{}
	for {
		header, body, err := protocol.Decode(conn)
		if err != nil {
			if !s.shutdown.Load() {
				logger.Debugf("connection from %s closed: %v", conn.RemoteAddr(), err)
			}
			return
		}
		if header.MsgType == protocol.MsgTypeHeartbeat {
			continue
		}
		if header.MsgType != protocol.MsgTypeRequest {
			logger.Warningf("unexpected frame type %d from %s", header.MsgType, conn.RemoteAddr())
			continue
		}
		// Add must not race with the Wait in Shutdown.
		s.mu.Lock()
		if s.shutdown.Load() {
			s.mu.Unlock()
			return
		}
		s.wg.Add(1)
		s.mu.Unlock()
		go s.handleRequest(header, body, conn, writeMu)
	}
}

// handleRequest decodes one request, dispatches it and writes the response
// with the request's sequence number.
func (s *TCPServer) handleRequest(header *protocol.Header, body []byte, conn net.Conn, writeMu *sync.Mutex) {
	defer s.wg.Done()

	c := codec.GetCodec(codec.CodecType(header.CodecType))
	reply := s.process(c, body, conn.RemoteAddr().String())

	result, err := c.Encode(reply)
	if err != nil {
		logger.Errorf("encoding reply of %s: %v", reply.ServiceMethod, err)
		return
	}

	replyHeader := protocol.Header{
		CodecType: header.CodecType,
		MsgType:   protocol.MsgTypeResponse,
		Seq:       header.Seq,
		BodyLen:   uint32(len(result)),
	}
	writeMu.Lock()
	defer writeMu.Unlock()
	if err := protocol.Encode(conn, &replyHeader, result); err != nil {
		logger.Debugf("writing reply of %s to %s: %v", reply.ServiceMethod, conn.RemoteAddr(), err)
	}
}

func (s *TCPServer) process(c codec.Codec, body []byte, peer string) *message.RPCMessage {
	msg := message.RPCMessage{}
	if err := c.Decode(body, &msg); err != nil {
		return failure(&msg, status.New(codes.Internal, status.ErrorMessageMalformedCall))
	}

	service, method, ok := message.SplitServiceMethod(msg.ServiceMethod)
	if !ok || service != s.handler.ServiceName() {
		return failure(&msg, status.Newf(codes.Unimplemented, "unknown service %q", msg.ServiceMethod))
	}
	m, ok := s.handler.Lookup(method)
	if !ok {
		return failure(&msg, status.Newf(codes.Unimplemented, "unknown method %q", msg.ServiceMethod))
	}

	req := m.NewRequest()
	if len(msg.Payload) > 0 {
		if err := c.Decode(msg.Payload, req); err != nil {
			return failure(&msg, status.New(codes.Internal, status.ErrorMessageMalformedCall))
		}
	}

	var md map[string]string
	if msg.ComID != "" {
		md = map[string]string{dispatch.CommunicationIDKey: msg.ComID}
	}
	rc := dispatch.NewRequestContext(s.ctx, md, peer)
	resp := m.NewResponse()

	st := s.handler.Handle(rc, m, req, resp)
	if !st.Ok() {
		return failure(&msg, st)
	}
	payload, err := c.Encode(resp)
	if err != nil {
		return failure(&msg, status.Newf(codes.Internal, "encoding response: %v", err))
	}
	return &message.RPCMessage{
		ServiceMethod: msg.ServiceMethod,
		Payload:       payload,
	}
}

func failure(req *message.RPCMessage, st status.Status) *message.RPCMessage {
	return &message.RPCMessage{
		ServiceMethod: req.ServiceMethod,
		Code:          st.Code,
		Error:         st.Message,
	}
}

// Shutdown closes the listener, waits for in-flight requests until ctx is
// done and then closes every connection.
func (s *TCPServer) Shutdown(ctx context.Context) error {
	s.stopAccepting()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = errors.Annotate(ctx.Err(), "waiting for ongoing requests to finish")
	}
	s.closeConns()
	return err
}

// Close closes the listener and every connection without waiting.
func (s *TCPServer) Close() error {
	s.stopAccepting()
	s.closeConns()
	return nil
}

func (s *TCPServer) stopAccepting() {
	// Flag first: the Accept error caused by closing the listener must be
	// recognised as intentional.
	s.mu.Lock()
	s.shutdown.Store(true)
	l := s.listener
	s.mu.Unlock()
	if l != nil {
		l.Close()
	}
}

func (s *TCPServer) closeConns() {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
}

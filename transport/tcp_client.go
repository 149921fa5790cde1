package transport

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/juju/errors"
	"google.golang.org/grpc/codes"

	"remote-screen-rpc/codec"
	"remote-screen-rpc/dispatch"
	"remote-screen-rpc/message"
	"remote-screen-rpc/protocol"
	"remote-screen-rpc/status"
)

// DefaultHeartbeatInterval is the period of the keep-alive frames a TCPClient
// sends on an idle connection.
const DefaultHeartbeatInterval = 30 * time.Second

// TCPClient multiplexes calls to one service over a single TCP connection.
// Each request gets a sequence number, and a background goroutine (recvLoop)
// routes every response to the caller waiting on that number.
//
//	goroutine-1 ──Send(seq=1)──┐
//	goroutine-2 ──Send(seq=2)──┼──→ single TCP conn ──→ Server
//	goroutine-3 ──Send(seq=3)──┘
//
//	recvLoop:  ←── response(seq=2) → pending[2] chan → goroutine-2 wakes up
type TCPClient struct {
	conn    net.Conn
	service string
	codec   codec.Codec
	seq     uint32     // protected by sending
	pending sync.Map   // map[uint32]chan *message.RPCMessage
	sending sync.Mutex // one frame at a time on the wire

	closed    atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// DialTCP connects to the framed TCP service at loc.
func DialTCP(ctx context.Context, loc Location, service string, codecType codec.CodecType) (*TCPClient, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", loc.Address())
	if err != nil {
		return nil, errors.Annotatef(err, "dialing %s", loc)
	}
	return NewTCPClient(conn, service, codecType, DefaultHeartbeatInterval), nil
}

// NewTCPClient wraps conn and starts the receive and heartbeat loops. A
// non-positive heartbeat disables keep-alive frames.
func NewTCPClient(conn net.Conn, service string, codecType codec.CodecType, heartbeat time.Duration) *TCPClient {
	t := &TCPClient{
		conn:    conn,
		service: service,
		codec:   codec.GetCodec(codecType),
		done:    make(chan struct{}),
	}
	t.wg.Add(1)
	go t.recvLoop()
	if heartbeat > 0 {
		t.wg.Add(1)
		go t.heartbeatLoop(heartbeat)
	}
	return t
}

// Send encodes and writes one request. The returned channel receives exactly
// one response, or a synthetic Unavailable response if the connection breaks.
func (t *TCPClient) Send(serviceMethod, comID string, req any) (uint32, <-chan *message.RPCMessage, error) {
	if t.closed.Load() {
		return 0, nil, errors.New("transport closed")
	}
	payload, err := t.codec.Encode(req)
	if err != nil {
		return 0, nil, errors.Annotate(err, "encoding request")
	}
	body, err := t.codec.Encode(&message.RPCMessage{
		ServiceMethod: serviceMethod,
		ComID:         comID,
		Payload:       payload,
	})
	if err != nil {
		return 0, nil, errors.Annotate(err, "encoding envelope")
	}

	t.sending.Lock()
	defer t.sending.Unlock()

	t.seq++
	seq := t.seq
	header := protocol.Header{
		CodecType: byte(t.codec.Type()),
		MsgType:   protocol.MsgTypeRequest,
		Seq:       seq,
		BodyLen:   uint32(len(body)),
	}

	// Registered before the write so that recvLoop cannot miss the response.
	respChan := make(chan *message.RPCMessage, 1)
	t.pending.Store(seq, respChan)
	if t.closed.Load() {
		t.pending.Delete(seq)
		return 0, nil, errors.New("transport closed")
	}

	if err := protocol.Encode(t.conn, &header, body); err != nil {
		t.pending.Delete(seq)
		return 0, nil, errors.Trace(err)
	}
	return seq, respChan, nil
}

// Invoke implements dispatch.Invoker.
func (t *TCPClient) Invoke(ctx context.Context, method string, md map[string]string, req, resp any) status.Status {
	seq, ch, err := t.Send(message.ServiceMethod(t.service, method), md[dispatch.CommunicationIDKey], req)
	if err != nil {
		return status.New(codes.Unavailable, err.Error())
	}

	var reply *message.RPCMessage
	select {
	case reply = <-ch:
	case <-ctx.Done():
		t.pending.Delete(seq)
		return status.FromContextError(ctx.Err())
	}

	if reply.Code != codes.OK {
		return status.New(reply.Code, reply.Error)
	}
	if len(reply.Payload) > 0 && resp != nil {
		if err := t.codec.Decode(reply.Payload, resp); err != nil {
			return status.Newf(codes.Internal, "decoding response: %v", err)
		}
	}
	return status.OK
}

// recvLoop reads frames sequentially (TCP is a byte stream; only one reader
// can find frame boundaries) and routes each response by sequence number.
func (t *TCPClient) recvLoop() {
	defer t.wg.Done()
	for {
		header, body, err := protocol.Decode(t.conn)
		if err != nil {
			t.closeAllPending(err)
			return
		}
		if header.MsgType != protocol.MsgTypeResponse {
			continue
		}

		reply := &message.RPCMessage{}
		c := codec.GetCodec(codec.CodecType(header.CodecType))
		if err := c.Decode(body, reply); err != nil {
			reply = &message.RPCMessage{Code: codes.Internal, Error: "decoding reply: " + err.Error()}
		}

		if channel, ok := t.pending.LoadAndDelete(header.Seq); ok {
			channel.(chan *message.RPCMessage) <- reply
		}
	}
}

// closeAllPending fails every waiting caller once the connection is gone.
func (t *TCPClient) closeAllPending(err error) {
	t.closed.Store(true)
	msg := "connection closed"
	if !t.isClosing() {
		msg = err.Error()
		logger.Debugf("connection to %s lost: %v", t.conn.RemoteAddr(), err)
	}
	t.pending.Range(func(key, value any) bool {
		t.pending.Delete(key)
		value.(chan *message.RPCMessage) <- &message.RPCMessage{Code: codes.Unavailable, Error: msg}
		return true
	})
}

// heartbeatLoop keeps an idle connection alive. Heartbeat frames have no
// body.
func (t *TCPClient) heartbeatLoop(interval time.Duration) {
	defer t.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
		}
		header := &protocol.Header{MsgType: protocol.MsgTypeHeartbeat, CodecType: byte(t.codec.Type())}
		t.sending.Lock()
		err := protocol.Encode(t.conn, header, nil)
		t.sending.Unlock()
		if err != nil {
			return
		}
	}
}

func (t *TCPClient) isClosing() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Conn returns the underlying connection.
func (t *TCPClient) Conn() net.Conn {
	return t.conn
}

// Closed reports whether the connection is gone.
func (t *TCPClient) Closed() bool {
	return t.closed.Load()
}

// Close closes the connection and waits for the background loops to exit.
func (t *TCPClient) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		err = t.conn.Close()
	})
	t.wg.Wait()
	return errors.Trace(err)
}

package transport

import (
	"context"
	"sync"

	"github.com/juju/errors"
	"go.uber.org/multierr"

	"remote-screen-rpc/codec"
)

// Pool caches one ClientTransport per location of a service. TCP transports
// are multiplexed and gRPC connections reconnect by themselves, so a single
// transport per location serves every caller; a broken TCP transport is
// replaced on the next Get.
type Pool struct {
	service   string
	codecType codec.CodecType
	dial      func(ctx context.Context, loc Location, service string, codecType codec.CodecType) (ClientTransport, error)

	mu         sync.Mutex
	transports map[string]ClientTransport
	closed     bool
}

// NewPool creates an empty pool. Transports are dialled lazily.
func NewPool(service string, codecType codec.CodecType) *Pool {
	return &Pool{
		service:    service,
		codecType:  codecType,
		dial:       Dial,
		transports: make(map[string]ClientTransport),
	}
}

// Get returns the transport for loc, dialling it if needed.
func (p *Pool) Get(ctx context.Context, loc Location) (ClientTransport, error) {
	key := loc.String()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, errors.New("transport pool closed")
	}
	if t, ok := p.transports[key]; ok {
		if tcp, isTCP := t.(*TCPClient); !isTCP || !tcp.Closed() {
			return t, nil
		}
		t.Close()
		delete(p.transports, key)
	}

	t, err := p.dial(ctx, loc, p.service, p.codecType)
	if err != nil {
		return nil, errors.Trace(err)
	}
	p.transports[key] = t
	return t, nil
}

// Len returns the number of cached transports.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.transports)
}

// Close closes every cached transport.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	var err error
	for key, t := range p.transports {
		err = multierr.Append(err, t.Close())
		delete(p.transports, key)
	}
	return err
}

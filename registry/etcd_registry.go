package registry

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
)

var logger = loggo.GetLogger("remotescreen.registry")

// DefaultKeyPrefix is the root of the registrations stored in etcd:
//
//	Key:   /remote-screen/{ServiceType}/{location}
//	Value: JSON-encoded ServiceRegistration
const DefaultKeyPrefix = "/remote-screen/"

// EtcdRegistry implements Registry on etcd v3.
//
// Registrations with a ttl are attached to a lease that is kept alive for as
// long as the registry is open: if the process dies, the lease expires and
// the entry disappears instead of leaving a ghost location behind.
type EtcdRegistry struct {
	client *clientv3.Client
	prefix string

	// ctx bounds the KeepAlive and Watch goroutines.
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	leases map[string]clientv3.LeaseID
}

// NewEtcdRegistry creates a registry connected to the given etcd endpoints.
func NewEtcdRegistry(endpoints []string, dialTimeout time.Duration) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, errors.Annotatef(err, "connecting to etcd %v", endpoints)
	}
	return NewEtcdRegistryFromClient(c, DefaultKeyPrefix), nil
}

// NewEtcdRegistryFromClient wraps an existing client. Keys are stored under
// prefix, which must end with a slash.
func NewEtcdRegistryFromClient(c *clientv3.Client, prefix string) *EtcdRegistry {
	ctx, cancel := context.WithCancel(context.Background())
	return &EtcdRegistry{
		client: c,
		prefix: prefix,
		ctx:    ctx,
		cancel: cancel,
		leases: make(map[string]clientv3.LeaseID),
	}
}

func (r *EtcdRegistry) typePrefix(t ServiceType) string {
	return r.prefix + t.String() + "/"
}

func (r *EtcdRegistry) key(t ServiceType, location string) string {
	return r.typePrefix(t) + location
}

// Register stores reg. With a positive ttl the entry is attached to a lease
// renewed in the background until Deregister or Close.
func (r *EtcdRegistry) Register(ctx context.Context, reg ServiceRegistration, ttl time.Duration) error {
	if !reg.Type.Valid() {
		return errors.NotValidf("service type %d", reg.Type)
	}
	if reg.Location == "" {
		return errors.NotValidf("empty location")
	}
	val, err := json.Marshal(reg)
	if err != nil {
		return errors.Trace(err)
	}
	key := r.key(reg.Type, reg.Location)

	if ttl <= 0 {
		_, err = r.client.Put(ctx, key, string(val))
		return errors.Annotatef(err, "registering %s", key)
	}

	seconds := int64(ttl / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	lease, err := r.client.Grant(ctx, seconds)
	if err != nil {
		return errors.Annotate(err, "granting lease")
	}
	if _, err := r.client.Put(ctx, key, string(val), clientv3.WithLease(lease.ID)); err != nil {
		return errors.Annotatef(err, "registering %s", key)
	}

	// KeepAlive is bound to the registry, not to the caller's context.
	ch, err := r.client.KeepAlive(r.ctx, lease.ID)
	if err != nil {
		return errors.Annotate(err, "keeping lease alive")
	}
	go func() {
		for range ch {
		}
	}()

	r.mu.Lock()
	r.leases[key] = lease.ID
	r.mu.Unlock()
	return nil
}

// Deregister removes a registration and revokes its lease.
func (r *EtcdRegistry) Deregister(ctx context.Context, t ServiceType, location string) error {
	key := r.key(t, location)

	r.mu.Lock()
	leaseID, leased := r.leases[key]
	delete(r.leases, key)
	r.mu.Unlock()

	if leased {
		if _, err := r.client.Revoke(ctx, leaseID); err != nil {
			logger.Debugf("revoking lease of %s: %v", key, err)
		}
	}
	_, err := r.client.Delete(ctx, key)
	return errors.Annotatef(err, "deregistering %s", key)
}

// Discover returns every registration of t.
func (r *EtcdRegistry) Discover(ctx context.Context, t ServiceType) ([]ServiceRegistration, error) {
	return r.get(ctx, r.typePrefix(t))
}

// List returns every registration under the registry prefix.
func (r *EtcdRegistry) List(ctx context.Context) ([]ServiceRegistration, error) {
	return r.get(ctx, r.prefix)
}

func (r *EtcdRegistry) get(ctx context.Context, prefix string) ([]ServiceRegistration, error) {
	resp, err := r.client.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, errors.Annotatef(err, "reading %s", prefix)
	}
	return decodeRegistrations(resp.Kvs), nil
}

func decodeRegistrations(kvs []*mvccpb.KeyValue) []ServiceRegistration {
	regs := make([]ServiceRegistration, 0, len(kvs))
	for _, kv := range kvs {
		var reg ServiceRegistration
		if err := json.Unmarshal(kv.Value, &reg); err != nil {
			logger.Warningf("skipping malformed registration %s: %v", kv.Key, err)
			continue
		}
		regs = append(regs, reg)
	}
	return regs
}

// Watch delivers the current registrations of t immediately, then uses
// etcd's server-push watch from the revision after that read. On any change
// the full list of t is re-read rather than applying individual events.
func (r *EtcdRegistry) Watch(ctx context.Context, t ServiceType) <-chan []ServiceRegistration {
	ch := make(chan []ServiceRegistration, 1)
	ctx, cancel := context.WithCancel(ctx)

	go func() {
		defer close(ch)
		defer cancel()
		go func() {
			select {
			case <-r.ctx.Done():
				cancel()
			case <-ctx.Done():
			}
		}()

		prefix := r.typePrefix(t)
		resp, err := r.client.Get(ctx, prefix, clientv3.WithPrefix())
		if err != nil {
			logger.Debugf("reading %s before watching: %v", t, err)
			return
		}
		select {
		case ch <- decodeRegistrations(resp.Kvs):
		case <-ctx.Done():
			return
		}

		watchChan := r.client.Watch(ctx, prefix, clientv3.WithPrefix(), clientv3.WithRev(resp.Header.Revision+1))
		for range watchChan {
			regs, err := r.Discover(ctx, t)
			if err != nil {
				logger.Debugf("re-reading %s after a change: %v", t, err)
				continue
			}
			select {
			case ch <- regs:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

// Close stops lease renewal and closes the etcd client. Leased entries
// expire on their own afterwards.
func (r *EtcdRegistry) Close() error {
	r.cancel()
	return errors.Trace(r.client.Close())
}

package registry

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/juju/errors"
)

// MemoryRegistry is an in-process Registry. It serves a single agent that
// hosts its own registration service, and tests. ttl is ignored: entries
// live until deregistered.
type MemoryRegistry struct {
	mu       sync.Mutex
	entries  map[ServiceType]map[string]ServiceRegistration
	watchers map[ServiceType][]chan []ServiceRegistration
	closed   bool
	done     chan struct{}
}

// NewMemoryRegistry creates an empty registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		entries:  make(map[ServiceType]map[string]ServiceRegistration),
		watchers: make(map[ServiceType][]chan []ServiceRegistration),
		done:     make(chan struct{}),
	}
}

func (m *MemoryRegistry) Register(_ context.Context, reg ServiceRegistration, _ time.Duration) error {
	if !reg.Type.Valid() {
		return errors.NotValidf("service type %d", reg.Type)
	}
	if reg.Location == "" {
		return errors.NotValidf("empty location")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("registry closed")
	}
	locations, ok := m.entries[reg.Type]
	if !ok {
		locations = make(map[string]ServiceRegistration)
		m.entries[reg.Type] = locations
	}
	locations[reg.Location] = reg
	m.notify(reg.Type)
	return nil
}

func (m *MemoryRegistry) Deregister(_ context.Context, t ServiceType, location string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[t][location]; !ok {
		return errors.NotFoundf("%s at %s", t, location)
	}
	delete(m.entries[t], location)
	m.notify(t)
	return nil
}

func (m *MemoryRegistry) Discover(_ context.Context, t ServiceType) ([]ServiceRegistration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot(t), nil
}

func (m *MemoryRegistry) List(_ context.Context) ([]ServiceRegistration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []ServiceRegistration
	for t := Unknown + 1; t < serviceTypeCount; t++ {
		all = append(all, m.snapshot(t)...)
	}
	return all, nil
}

// Watch delivers the current registrations of t immediately, then every
// change. A watcher that falls behind only sees the latest list.
func (m *MemoryRegistry) Watch(ctx context.Context, t ServiceType) <-chan []ServiceRegistration {
	ch := make(chan []ServiceRegistration, 1)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		close(ch)
		return ch
	}
	m.watchers[t] = append(m.watchers[t], ch)
	ch <- m.snapshot(t)
	m.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-m.done:
			return
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		watchers := m.watchers[t]
		for i, w := range watchers {
			if w == ch {
				m.watchers[t] = append(watchers[:i], watchers[i+1:]...)
				close(ch)
				return
			}
		}
	}()
	return ch
}

// Close closes every watch channel.
func (m *MemoryRegistry) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.done)
	for t, watchers := range m.watchers {
		for _, ch := range watchers {
			close(ch)
		}
		delete(m.watchers, t)
	}
	return nil
}

// snapshot returns the registrations of t sorted by location. Callers hold mu.
func (m *MemoryRegistry) snapshot(t ServiceType) []ServiceRegistration {
	locations := m.entries[t]
	regs := make([]ServiceRegistration, 0, len(locations))
	for _, reg := range locations {
		regs = append(regs, reg)
	}
	sort.Slice(regs, func(i, j int) bool {
		return regs[i].Location < regs[j].Location
	})
	return regs
}

// notify replaces any undelivered update with the latest list. Callers hold mu.
func (m *MemoryRegistry) notify(t ServiceType) {
	regs := m.snapshot(t)
	for _, ch := range m.watchers[t] {
		select {
		case <-ch:
		default:
		}
		ch <- regs
	}
}

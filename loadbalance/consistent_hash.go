package loadbalance

import (
	"fmt"
	"hash/crc32"
	"sort"
	"strings"
	"sync"

	"remote-screen-rpc/registry"
)

// ConsistentHashBalancer maps comIds to locations using a hash ring, so that
// every call of one session reaches the same agent until the set of
// registrations changes.
//
// Each location is placed on the ring as replicas virtual nodes, hashed from
// "{location}#{i}", which keeps the load even with few locations.
//
//	Hash Ring:
//	                  0
//	                ╱   ╲
//	              ╱       ╲
//	         B ●               ● A
//	           │    key ◆──►   │   (clockwise to nearest node → A)
//	         C ●               ● A' (virtual node of A)
//	              ╲       ╱
//	                ╲   ╱
type ConsistentHashBalancer struct {
	replicas int

	mu    sync.Mutex
	ring  []uint32                                // sorted hash values
	nodes map[uint32]registry.ServiceRegistration // hash value → registration
	// members is the sorted location list the ring was built from.
	members string
}

// NewConsistentHashBalancer creates a ring with 100 virtual nodes per location.
func NewConsistentHashBalancer() *ConsistentHashBalancer {
	return &ConsistentHashBalancer{
		replicas: 100,
		nodes:    make(map[uint32]registry.ServiceRegistration),
	}
}

// Add places a registration onto the ring.
func (b *ConsistentHashBalancer) Add(reg registry.ServiceRegistration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.add(reg)
	b.sortRing()
}

func (b *ConsistentHashBalancer) add(reg registry.ServiceRegistration) {
	for i := 0; i < b.replicas; i++ {
		hash := crc32.ChecksumIEEE([]byte(fmt.Sprintf("%s#%d", reg.Location, i)))
		b.ring = append(b.ring, hash)
		b.nodes[hash] = reg
	}
}

func (b *ConsistentHashBalancer) sortRing() {
	sort.Slice(b.ring, func(i, j int) bool {
		return b.ring[i] < b.ring[j]
	})
}

// rebuild replaces the ring when regs differs from the set it was built from.
func (b *ConsistentHashBalancer) rebuild(regs []registry.ServiceRegistration) {
	locations := make([]string, len(regs))
	for i, reg := range regs {
		locations[i] = reg.Location
	}
	sort.Strings(locations)
	members := strings.Join(locations, "\n")
	if members == b.members && len(b.ring) > 0 {
		return
	}

	b.ring = b.ring[:0]
	clear(b.nodes)
	for _, reg := range regs {
		b.add(reg)
	}
	b.sortRing()
	b.members = members
}

// Pick finds the registration responsible for key. A non-empty regs
// replaces the ring contents first; an empty regs picks from the
// registrations placed with Add.
func (b *ConsistentHashBalancer) Pick(key string, regs []registry.ServiceRegistration) (registry.ServiceRegistration, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(regs) > 0 {
		b.rebuild(regs)
	}
	if len(b.ring) == 0 {
		return registry.ServiceRegistration{}, ErrNoRegistrations
	}

	hash := crc32.ChecksumIEEE([]byte(key))
	idx := sort.Search(len(b.ring), func(i int) bool {
		return b.ring[i] >= hash
	})
	// Wrap around: the key's hash is past every node.
	if idx == len(b.ring) {
		idx = 0
	}
	return b.nodes[b.ring[idx]], nil
}

func (b *ConsistentHashBalancer) Name() string {
	return "ConsistentHash"
}

package loadbalance

import (
	"sync/atomic"

	"remote-screen-rpc/registry"
)

// RoundRobinBalancer cycles through the registrations in order. The counter
// is atomic, so Pick needs no lock.
type RoundRobinBalancer struct {
	counter atomic.Uint64
}

// Pick selects the next registration in round-robin order; key is ignored.
func (b *RoundRobinBalancer) Pick(_ string, regs []registry.ServiceRegistration) (registry.ServiceRegistration, error) {
	if len(regs) == 0 {
		return registry.ServiceRegistration{}, ErrNoRegistrations
	}
	index := (b.counter.Add(1) - 1) % uint64(len(regs))
	return regs[index], nil
}

func (b *RoundRobinBalancer) Name() string {
	return "RoundRobin"
}

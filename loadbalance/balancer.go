// Package loadbalance picks one location among the registrations of a
// service type.
//
// Three strategies are implemented:
//   - RoundRobin:      equal-capacity agents
//   - WeightedRandom:  agents registered with different weights
//   - ConsistentHash:  keeps every call of one comId on the same location
package loadbalance

import (
	"github.com/juju/errors"

	"remote-screen-rpc/registry"
)

// ErrNoRegistrations is returned by Pick when there is nothing to pick from.
const ErrNoRegistrations = errors.ConstError("no registrations available")

// Balancer selects the registration a client connects to.
type Balancer interface {
	// Pick selects one registration. key is the comId of the caller and may
	// be empty. Must be goroutine-safe.
	Pick(key string, regs []registry.ServiceRegistration) (registry.ServiceRegistration, error)

	// Name returns the strategy name (for logging/debugging).
	Name() string
}

// New returns the balancer registered under name: "round-robin",
// "weighted-random" or "consistent-hash".
func New(name string) (Balancer, error) {
	switch name {
	case "", "round-robin":
		return &RoundRobinBalancer{}, nil
	case "weighted-random":
		return &WeightedRandomBalancer{}, nil
	case "consistent-hash":
		return NewConsistentHashBalancer(), nil
	}
	return nil, errors.NotValidf("balancer %q", name)
}

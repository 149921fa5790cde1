package loadbalance

import (
	"math/rand/v2"

	"remote-screen-rpc/registry"
)

// WeightedRandomBalancer picks a registration with a probability
// proportional to its weight. Registrations without a positive weight count
// as weight 1.
type WeightedRandomBalancer struct{}

func weight(reg registry.ServiceRegistration) int {
	if reg.Weight <= 0 {
		return 1
	}
	return reg.Weight
}

// Pick implements Balancer; key is ignored.
func (b *WeightedRandomBalancer) Pick(_ string, regs []registry.ServiceRegistration) (registry.ServiceRegistration, error) {
	if len(regs) == 0 {
		return registry.ServiceRegistration{}, ErrNoRegistrations
	}

	totalWeight := 0
	for _, reg := range regs {
		totalWeight += weight(reg)
	}

	r := rand.IntN(totalWeight)
	for _, reg := range regs {
		r -= weight(reg)
		if r < 0 {
			return reg, nil
		}
	}
	return regs[len(regs)-1], nil
}

func (b *WeightedRandomBalancer) Name() string {
	return "WeightedRandom"
}

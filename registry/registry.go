// Package registry records where the services of a remote screen session
// live.
//
// A ServiceRegistration pairs a ServiceType with the location URL it is
// served on. The registration service hands these records to clients during
// discovery; server.Server announces itself here when it starts and removes
// itself when it stops.
package registry

import (
	"context"
	"time"
)

// ServiceRegistration is one (ServiceType, location) pair. ComID names the
// session that registered the location; it is empty for services the agent
// provides to every session.
type ServiceRegistration struct {
	Type     ServiceType `json:"type"`
	Location string      `json:"location"`
	ComID    string      `json:"comid,omitempty"`
	Weight   int         `json:"weight,omitempty"` // for load balancing
	Version  string      `json:"version,omitempty"`
}

// Registry stores ServiceRegistrations. Implementations are safe for
// concurrent use.
type Registry interface {
	// Register stores reg. Registrations with a positive ttl expire unless
	// the registry keeps them alive.
	Register(ctx context.Context, reg ServiceRegistration, ttl time.Duration) error

	// Deregister removes the registration of t at location.
	Deregister(ctx context.Context, t ServiceType, location string) error

	// Discover returns every registration of t.
	Discover(ctx context.Context, t ServiceType) ([]ServiceRegistration, error)

	// List returns every registration of every type.
	List(ctx context.Context) ([]ServiceRegistration, error)

	// Watch emits the current registrations of t first and then the full
	// list again whenever it changes, until ctx is done or the registry is
	// closed. The channel is closed afterwards.
	Watch(ctx context.Context, t ServiceType) <-chan []ServiceRegistration

	Close() error
}

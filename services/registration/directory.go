package registration

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/juju/errors"
	"github.com/juju/loggo"

	"remote-screen-rpc/dispatch"
	"remote-screen-rpc/registry"
	"remote-screen-rpc/status"
)

var logger = loggo.GetLogger("remotescreen.registration")

// CommunicationVersion is the communication version spoken by this module.
const CommunicationVersion = "1.0"

// Directory answers the registration service from a registry.Registry: every
// Discover opens a session with a random comId and lists the agent's
// services, every Register stores the caller's location under its comId.
type Directory struct {
	registry registry.Registry
	version  string
	timeout  time.Duration
	newComID func() string
}

// NewDirectory creates a directory over reg announcing version.
func NewDirectory(reg registry.Registry, version string) *Directory {
	return &Directory{
		registry: reg,
		version:  version,
		timeout:  5 * time.Second,
		newComID: uuid.NewString,
	}
}

// Attach installs the directory's callbacks on s.
func (d *Directory) Attach(s *Server) {
	s.SetExchangeVersionCallback(d.ExchangeVersion)
	s.SetDiscoverCallback(d.Discover)
	s.SetRegisterCallback(d.Register)
}

// ExchangeVersion answers every peer with the directory's version.
func (d *Directory) ExchangeVersion(receivedVersion string, respond ExchangeVersionRespond) {
	logger.Debugf("peer speaks version %s", receivedVersion)
	respond(status.OkStatus(), d.version)
}

// Discover lists the registrations shared by every session, that is the ones
// without comId.
func (d *Directory) Discover(communicationVersion string, respond DiscoverRespond) {
	if communicationVersion != CommunicationVersion {
		respond(status.FailedStatus("unsupported communication version "+communicationVersion), "", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	regs, err := d.registry.List(ctx)
	if err != nil {
		logger.Errorf("listing services: %v", err)
		respond(status.FailedStatus(errors.Cause(err).Error()), "", nil)
		return
	}
	shared := regs[:0]
	for _, reg := range regs {
		if reg.ComID == "" && reg.Type != registry.Registration {
			shared = append(shared, reg)
		}
	}
	comID := d.newComID()
	logger.Infof("session %s discovered %d services", comID, len(shared))
	respond(status.OkStatus(), comID, shared)
}

// Register stores a per-session registration for comID.
func (d *Directory) Register(comID string, t registry.ServiceType, location string, respond dispatch.Respond) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	reg := registry.ServiceRegistration{Type: t, Location: location, ComID: comID}
	if err := d.registry.Register(ctx, reg, 0); err != nil {
		logger.Errorf("registering %s of %s on %s: %v", t, comID, location, err)
		respond(status.FailedStatus(errors.Cause(err).Error()))
		return
	}
	respond(status.OkStatus())
}

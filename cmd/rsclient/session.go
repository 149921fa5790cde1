package main

import (
	"context"
	"fmt"
	"io"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"go.uber.org/multierr"

	"remote-screen-rpc/client"
	"remote-screen-rpc/config"
	"remote-screen-rpc/loadbalance"
	"remote-screen-rpc/middleware"
	"remote-screen-rpc/registry"
	"remote-screen-rpc/services/accesscontrol"
	"remote-screen-rpc/services/chat"
	"remote-screen-rpc/services/connectivity"
	"remote-screen-rpc/services/registration"
	"remote-screen-rpc/status"
)

var logger = loggo.GetLogger("remotescreen.client")

var features = []accesscontrol.AccessControl{
	accesscontrol.FileTransfer,
	accesscontrol.RemoteView,
	accesscontrol.RemoteControl,
}

// plan is what one invocation does after discovery.
type plan struct {
	changes    []change
	message    string
	disconnect bool
}

type stopper interface {
	StopClient() error
}

// session drives one session with an agent and writes a report to out.
type session struct {
	cfg      config.Config
	registry registry.Registry
	out      io.Writer
	opts     []client.Option
	clients  []stopper
}

func newSession(cfg config.Config, reg registry.Registry, out io.Writer) *session {
	mws := []middleware.Middleware{
		middleware.LoggingMiddleware(),
		middleware.RetryMiddleware(middleware.RetryConfig{
			Attempts: cfg.Client.Retry.Attempts,
			Delay:    cfg.Client.Retry.Delay,
			MaxDelay: cfg.Client.Retry.MaxDelay,
		}),
	}
	if cfg.Client.CallTimeout > 0 {
		mws = append(mws, middleware.TimeOutMiddleware(cfg.Client.CallTimeout))
	}
	bal, err := loadbalance.New(cfg.Client.Balancer)
	if err != nil {
		logger.Warningf("%v, using round-robin", err)
		bal = &loadbalance.RoundRobinBalancer{}
	}
	return &session{
		cfg:      cfg,
		registry: reg,
		out:      out,
		opts: []client.Option{
			client.WithCodec(cfg.CodecType()),
			client.WithRegistry(reg, bal),
			client.WithMiddleware(mws...),
		},
	}
}

func (s *session) close() error {
	var err error
	for _, c := range s.clients {
		err = multierr.Append(err, c.StopClient())
	}
	s.clients = nil
	return err
}

func (s *session) start(ctx context.Context, c interface {
	stopper
	StartClient(ctx context.Context, destination string) error
}, destination string) error {
	if err := c.StartClient(ctx, destination); err != nil {
		return errors.Trace(err)
	}
	s.clients = append(s.clients, c)
	return nil
}

// connectRegistration reaches the registration service, through etcd when
// agents announce themselves there and on the configured location otherwise.
func (s *session) connectRegistration(ctx context.Context) (*registration.Client, error) {
	cli := registration.NewClient(s.opts...)
	if len(s.cfg.Etcd.Endpoints) > 0 {
		if err := cli.Connect(ctx, ""); err != nil {
			return nil, errors.Annotate(err, "finding an agent")
		}
		s.clients = append(s.clients, cli)
		return cli, nil
	}
	if s.cfg.Client.Registration == "" {
		return nil, errors.NotValidf("empty client.registration")
	}
	if err := s.start(ctx, cli, s.cfg.Client.Registration); err != nil {
		return nil, errors.Trace(err)
	}
	return cli, nil
}

func callError(op string, cs status.CallStatus) error {
	if cs.IsOk() {
		return nil
	}
	return errors.Errorf("%s: %s", op, cs.ErrorMessage)
}

func locationOf(services []registry.ServiceRegistration, t registry.ServiceType) string {
	for _, reg := range services {
		if reg.Type == t {
			return reg.Location
		}
	}
	return ""
}

func (s *session) run(ctx context.Context, p plan) error {
	regCli, err := s.connectRegistration(ctx)
	if err != nil {
		return errors.Trace(err)
	}

	version := regCli.ExchangeVersion(ctx, registration.CommunicationVersion)
	if err := callError("ExchangeVersion", version.CallStatus); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "agent %s speaks version %s\n", regCli.GetDestination(), version.VersionNumber)

	discovered := regCli.Discover(ctx, registration.CommunicationVersion)
	if err := callError("Discover", discovered.CallStatus); err != nil {
		return err
	}
	comID := discovered.ComID
	fmt.Fprintf(s.out, "session %s\n", comID)
	for _, reg := range discovered.Services {
		fmt.Fprintf(s.out, "  %-16s %s\n", reg.Type, reg.Location)
	}

	location := locationOf(discovered.Services, registry.AccessControlIn)
	if location == "" {
		return errors.NotFoundf("%s service", registry.AccessControlIn)
	}
	in := accesscontrol.NewInClient(s.opts...)
	if err := s.start(ctx, in, location); err != nil {
		return errors.Trace(err)
	}
	for _, c := range p.changes {
		if err := callError("SetAccess", in.SetAccess(ctx, comID, c.feature, c.access)); err != nil {
			return err
		}
	}
	for _, feature := range features {
		res := in.GetAccess(ctx, comID, feature)
		if err := callError("GetAccess", res.CallStatus); err != nil {
			return err
		}
		fmt.Fprintf(s.out, "%-14s %s\n", feature, res.Access)
	}

	if p.message != "" {
		if err := s.sendMessage(ctx, comID, discovered.Services, p.message); err != nil {
			return errors.Trace(err)
		}
	}

	if location = locationOf(discovered.Services, registry.Connectivity); location == "" {
		return nil
	}
	conn := connectivity.NewClient(s.opts...)
	if err := s.start(ctx, conn, location); err != nil {
		return errors.Trace(err)
	}
	if err := callError("IsAvailable", conn.IsAvailable(ctx, comID)); err != nil {
		return err
	}
	if !p.disconnect {
		return nil
	}
	if err := callError("Disconnect", conn.Disconnect(ctx, comID)); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "session %s closed\n", comID)
	return nil
}

// sendMessage posts message to the agent's machine chat.
func (s *session) sendMessage(ctx context.Context, comID string, services []registry.ServiceRegistration, message string) error {
	location := locationOf(services, registry.ChatIn)
	if location == "" {
		return errors.NotSupportedf("chat on this agent")
	}
	cli := chat.NewClient(s.opts...)
	if err := s.start(ctx, cli, location); err != nil {
		return errors.Trace(err)
	}
	chats := cli.ObtainChats(ctx, comID)
	if err := callError("ObtainChats", chats.CallStatus); err != nil {
		return err
	}
	chatID := ""
	for _, info := range chats.Chats {
		if info.ChatType == chat.Machine && info.ChatState == chat.Open {
			chatID = info.ChatID
			break
		}
	}
	if chatID == "" {
		return errors.NotFoundf("open machine chat")
	}
	if err := callError("SelectChat", cli.SelectChat(ctx, comID, chatID)); err != nil {
		return err
	}
	if err := callError("SendMessage", cli.SendMessage(ctx, comID, 1, message)); err != nil {
		return err
	}
	fmt.Fprintf(s.out, "message sent to %s\n", chatID)
	return nil
}

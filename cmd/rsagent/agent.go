package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"remote-screen-rpc/config"
	"remote-screen-rpc/middleware"
	"remote-screen-rpc/registry"
	"remote-screen-rpc/server"
	"remote-screen-rpc/services/accesscontrol"
	"remote-screen-rpc/services/chat"
	"remote-screen-rpc/services/connectivity"
	"remote-screen-rpc/services/registration"
	"remote-screen-rpc/status"
	"remote-screen-rpc/transport"
)

var logger = loggo.GetLogger("remotescreen.agent")

// service is the lifecycle every generated server shares.
type service interface {
	GetServiceType() registry.ServiceType
	GetLocation() string
	StartServer(ctx context.Context, location string) error
	StopServer(ctx context.Context, force bool) error
}

type endpoint struct {
	service  service
	location string
}

// Agent is the remote screen side of a session: it serves registration,
// access control, connectivity and optionally chat to every client that
// discovers it.
type Agent struct {
	cfg      config.Config
	registry registry.Registry

	sessions *sessions
	policy   *policy
	chats    *chatStore

	metrics  *prometheus.Registry
	endpoint []endpoint

	mu          sync.Mutex
	metricsSrv  *http.Server
	metricsDone chan struct{}
	outCalls    sync.WaitGroup // prompts and change notifications
}

// NewAgent builds the agent's servers over reg. Nothing listens until Start.
func NewAgent(cfg config.Config, reg registry.Registry) *Agent {
	a := &Agent{
		cfg:      cfg,
		registry: reg,
		sessions: newSessions(),
		policy:   newPolicy(),
		chats:    newChatStore(),
		metrics:  prometheus.NewRegistry(),
	}

	collector := middleware.NewMetricsCollector("server")
	a.metrics.MustRegister(collector)

	mws := []middleware.Middleware{
		middleware.RecoverMiddleware(),
		middleware.LoggingMiddleware(),
		middleware.MetricsMiddleware(collector),
	}
	if cfg.Agent.RateLimit > 0 {
		burst := cfg.Agent.Burst
		if burst == 0 {
			burst = 1
		}
		mws = append(mws, middleware.RateLimitMiddleware(cfg.Agent.RateLimit, burst))
	}
	opts := []server.Option{
		server.WithCodec(cfg.CodecType()),
		server.WithRegistry(reg, cfg.Etcd.TTL),
		server.WithMiddleware(mws...),
	}

	regSrv := registration.NewServer(opts...)
	directory := registration.NewDirectory(reg, cfg.Agent.Version)
	directory.Attach(regSrv)
	regSrv.SetDiscoverCallback(func(version string, respond registration.DiscoverRespond) {
		directory.Discover(version, func(cs status.CallStatus, comID string, services []registry.ServiceRegistration) {
			if cs.IsOk() {
				a.sessions.open(comID)
			}
			respond(cs, comID, services)
		})
	})
	a.add(regSrv, cfg.Agent.Registration)

	acIn := accesscontrol.NewInServer(opts...)
	acIn.SetGetAccessCallback(a.getAccess)
	acIn.SetSetAccessCallback(a.setAccess)
	acIn.SetConfirmationReplyCallback(a.confirmationReply)
	a.add(acIn, cfg.Agent.AccessControlIn)

	conn := connectivity.NewServer(opts...)
	conn.SetIsAvailableCallback(a.isAvailable)
	conn.SetDisconnectCallback(a.disconnect)
	a.add(conn, cfg.Agent.Connectivity)

	chatIn := chat.NewServer(opts...)
	chatIn.SetObtainChatsCallback(a.obtainChats)
	chatIn.SetSelectChatCallback(a.selectChat)
	chatIn.SetSendMessageCallback(a.sendMessage)
	a.add(chatIn, cfg.Agent.ChatIn)

	return a
}

func (a *Agent) add(s service, location string) {
	if location == "" {
		logger.Debugf("%s not configured", s.GetServiceType())
		return
	}
	a.endpoint = append(a.endpoint, endpoint{service: s, location: location})
}

// Metrics returns the Prometheus registry the agent's collectors live in.
func (a *Agent) Metrics() *prometheus.Registry {
	return a.metrics
}

// Start serves every configured service. On failure the services started so
// far are stopped again.
func (a *Agent) Start(ctx context.Context) error {
	if err := a.startMetrics(); err != nil {
		return errors.Trace(err)
	}
	for i, ep := range a.endpoint {
		if err := prepareLocation(ep.location); err != nil {
			a.stopEndpoints(ctx, i, true)
			a.stopMetrics(ctx)
			return errors.Trace(err)
		}
		if err := ep.service.StartServer(ctx, ep.location); err != nil {
			a.stopEndpoints(ctx, i, true)
			a.stopMetrics(ctx)
			return errors.Annotatef(err, "starting %s", ep.service.GetServiceType())
		}
	}
	logger.Infof("agent serving %d services", len(a.endpoint))
	return nil
}

// Stop stops the services in reverse order, waiting for in-flight calls
// until ctx is done, then waits for pending change notifications.
func (a *Agent) Stop(ctx context.Context) error {
	err := a.stopEndpoints(ctx, len(a.endpoint), false)
	a.outCalls.Wait()
	return multierr.Append(err, a.stopMetrics(ctx))
}

func (a *Agent) stopEndpoints(ctx context.Context, n int, force bool) error {
	var err error
	for i := n - 1; i >= 0; i-- {
		ep := a.endpoint[i]
		if stopErr := ep.service.StopServer(ctx, force); stopErr != nil {
			err = multierr.Append(err, errors.Annotatef(stopErr, "stopping %s", ep.service.GetServiceType()))
		}
	}
	return err
}

// prepareLocation creates the directory of a unix socket location.
func prepareLocation(location string) error {
	loc, err := transport.ParseLocation(location)
	if err != nil {
		return errors.Trace(err)
	}
	if loc.Network() != "unix" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(loc.Address()), 0o700); err != nil {
		return errors.Annotatef(err, "socket directory of %s", location)
	}
	return nil
}

func (a *Agent) startMetrics() error {
	addr := a.cfg.Agent.MetricsAddress
	if addr == "" {
		return nil
	}
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Annotatef(err, "metrics listener on %s", addr)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.metrics, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(l); err != nil && err != http.ErrServerClosed {
			logger.Errorf("metrics endpoint: %v", err)
		}
	}()

	a.mu.Lock()
	a.metricsSrv, a.metricsDone = srv, done
	a.mu.Unlock()
	logger.Infof("metrics on http://%s/metrics", l.Addr())
	return nil
}

func (a *Agent) stopMetrics(ctx context.Context) error {
	a.mu.Lock()
	srv, done := a.metricsSrv, a.metricsDone
	a.metricsSrv, a.metricsDone = nil, nil
	a.mu.Unlock()
	if srv == nil {
		return nil
	}
	err := srv.Shutdown(ctx)
	<-done
	return errors.Trace(err)
}

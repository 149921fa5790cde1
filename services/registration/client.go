package registration

import (
	"context"

	"remote-screen-rpc/client"
	"remote-screen-rpc/dispatch"
	"remote-screen-rpc/registry"
	"remote-screen-rpc/status"
)

// ExchangeVersionResult is the outcome of ExchangeVersion.
type ExchangeVersionResult struct {
	status.CallStatus
	VersionNumber string
}

type exchangeVersionClient struct {
	dispatch.ClientBase[exchangeVersionRequest, exchangeVersionResponse, string]
}

// ValidateInput accepts every call: no comId exists yet.
func (exchangeVersionClient) ValidateInput(string, string) bool {
	return true
}

func (exchangeVersionClient) PrepareRequest(req *exchangeVersionRequest, version string) {
	req.Version = version
}

func (exchangeVersionClient) HandleResponse(st status.Status, resp *exchangeVersionResponse, _ string) ExchangeVersionResult {
	if !st.Ok() {
		return ExchangeVersionResult{CallStatus: status.ToCallStatus(st)}
	}
	return ExchangeVersionResult{CallStatus: status.OkStatus(), VersionNumber: resp.Version}
}

func (exchangeVersionClient) Failed(msg string) ExchangeVersionResult {
	return ExchangeVersionResult{CallStatus: status.FailedStatus(msg)}
}

// DiscoverResult is the outcome of Discover.
type DiscoverResult struct {
	status.CallStatus
	ComID    string
	Services []registry.ServiceRegistration
}

type discoverClient struct {
	dispatch.ClientBase[discoverRequest, discoverResponse, string]
}

func (discoverClient) ValidateInput(_ string, communicationVersion string) bool {
	return communicationVersion != ""
}

func (discoverClient) PrepareRequest(req *discoverRequest, communicationVersion string) {
	req.CommunicationVersion = communicationVersion
}

// HandleResponse rejects answers without comId and services of unknown type.
func (discoverClient) HandleResponse(st status.Status, resp *discoverResponse, _ string) DiscoverResult {
	if !st.Ok() {
		return DiscoverResult{CallStatus: status.ToCallStatus(st)}
	}
	invalid := DiscoverResult{CallStatus: status.FailedStatus(status.ErrorMessageInvalidResponseValue)}
	if resp.ComID == "" {
		return invalid
	}
	services := make([]registry.ServiceRegistration, 0, len(resp.Services))
	for _, info := range resp.Services {
		t := registry.ServiceType(info.Type)
		if !t.Valid() {
			return invalid
		}
		services = append(services, registry.ServiceRegistration{Type: t, Location: info.Location})
	}
	return DiscoverResult{CallStatus: status.OkStatus(), ComID: resp.ComID, Services: services}
}

func (discoverClient) Failed(msg string) DiscoverResult {
	return DiscoverResult{CallStatus: status.FailedStatus(msg)}
}

type registerArgs struct {
	serviceType registry.ServiceType
	location    string
}

type registerClient struct {
	dispatch.ClientBase[registerRequest, registerResponse, registerArgs]
}

func (registerClient) ValidateInput(comID string, args registerArgs) bool {
	return comID != "" && args.serviceType.Valid() && args.location != ""
}

func (registerClient) PrepareRequest(req *registerRequest, args registerArgs) {
	req.Type = int32(args.serviceType)
	req.Location = args.location
}

// Client calls the registration service.
type Client struct {
	*client.Client
}

// NewClient creates a registration client.
func NewClient(opts ...client.Option) *Client {
	return &Client{Client: client.New(registry.Registration, ServiceName, opts...)}
}

// ExchangeVersion sends the caller's version and returns the agent's.
func (c *Client) ExchangeVersion(ctx context.Context, version string) ExchangeVersionResult {
	s := exchangeVersionClient{}
	s.Name = "ExchangeVersion"
	return dispatch.ClientCall[exchangeVersionRequest, exchangeVersionResponse, string, ExchangeVersionResult](
		ctx, c.Invoker(), s, "", version)
}

// Discover starts a session and returns its comId with the services of the
// agent.
func (c *Client) Discover(ctx context.Context, communicationVersion string) DiscoverResult {
	s := discoverClient{}
	s.Name = "Discover"
	return dispatch.ClientCall[discoverRequest, discoverResponse, string, DiscoverResult](
		ctx, c.Invoker(), s, "", communicationVersion)
}

// Register announces that the session comID serves t on location.
func (c *Client) Register(ctx context.Context, comID string, t registry.ServiceType, location string) status.CallStatus {
	s := registerClient{}
	s.Name = "Register"
	return dispatch.ClientCall[registerRequest, registerResponse, registerArgs, status.CallStatus](
		ctx, c.Invoker(), s, comID, registerArgs{serviceType: t, location: location})
}

// Package config holds the YAML configuration of the agent and client
// commands.
package config

import (
	"bytes"
	"os"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"gopkg.in/yaml.v3"

	"remote-screen-rpc/codec"
	"remote-screen-rpc/loadbalance"
	"remote-screen-rpc/registry"
	"remote-screen-rpc/transport"
)

// EnvPath names the environment variable consulted when no configuration
// file is given on the command line.
const EnvPath = "REMOTE_SCREEN_CONFIG"

// Config is the configuration shared by cmd/rsagent and cmd/rsclient.
type Config struct {
	// LogLevel is a loggo specification such as
	// "<root>=INFO;remotescreen.transport=DEBUG".
	LogLevel string `yaml:"log-level"`

	// Codec is one of json, binary or cbor.
	Codec string `yaml:"codec"`

	Agent  AgentConfig  `yaml:"agent"`
	Client ClientConfig `yaml:"client"`
	Etcd   EtcdConfig   `yaml:"etcd"`
}

// AgentConfig holds the locations the agent serves its services on. Empty
// locations are not served.
type AgentConfig struct {
	Registration    string `yaml:"registration"`
	AccessControlIn string `yaml:"access-control-in"`
	Connectivity    string `yaml:"connectivity"`
	ChatIn          string `yaml:"chat-in"`

	Version string `yaml:"version"`

	// RateLimit bounds the calls per second accepted by each service; zero
	// disables the limit.
	RateLimit float64 `yaml:"rate-limit"`
	Burst     int     `yaml:"burst"`

	// MetricsAddress is the listen address of the Prometheus endpoint;
	// empty disables it.
	MetricsAddress string `yaml:"metrics-address"`

	// ConfirmationTimeout is how long the user is given to answer a
	// confirmation prompt.
	ConfirmationTimeout time.Duration `yaml:"confirmation-timeout"`

	ShutdownTimeout time.Duration `yaml:"shutdown-timeout"`
}

// ClientConfig configures how the client reaches the agent.
type ClientConfig struct {
	// Registration is the location of the agent's registration service.
	Registration string `yaml:"registration"`

	// Balancer picks among several agents found in etcd: round-robin,
	// weighted-random or consistent-hash.
	Balancer string `yaml:"balancer"`

	CallTimeout time.Duration `yaml:"call-timeout"`
	Retry       RetryConfig   `yaml:"retry"`
}

// RetryConfig configures the caller-side retry loop.
type RetryConfig struct {
	Attempts int           `yaml:"attempts"`
	Delay    time.Duration `yaml:"delay"`
	MaxDelay time.Duration `yaml:"max-delay"`
}

// EtcdConfig enables the etcd registry when Endpoints is not empty.
type EtcdConfig struct {
	Endpoints   []string      `yaml:"endpoints"`
	DialTimeout time.Duration `yaml:"dial-timeout"`
	TTL         time.Duration `yaml:"ttl"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		LogLevel: "<root>=INFO",
		Codec:    codec.CodecTypeCBOR.String(),
		Agent: AgentConfig{
			Registration:        "unix:///tmp/remote-screen/registration",
			AccessControlIn:     "unix:///tmp/remote-screen/access-control-in",
			Connectivity:        "unix:///tmp/remote-screen/connectivity",
			Version:             "1.0",
			ConfirmationTimeout: 30 * time.Second,
			ShutdownTimeout:     5 * time.Second,
		},
		Client: ClientConfig{
			Registration: "unix:///tmp/remote-screen/registration",
			Balancer:     "round-robin",
			CallTimeout:  5 * time.Second,
			Retry: RetryConfig{
				Attempts: 5,
				Delay:    100 * time.Millisecond,
				MaxDelay: 2 * time.Second,
			},
		},
		Etcd: EtcdConfig{
			DialTimeout: 5 * time.Second,
			TTL:         10 * time.Second,
		},
	}
}

// Path returns flagValue, or the value of REMOTE_SCREEN_CONFIG when the flag
// is empty.
func Path(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(EnvPath)
}

// Load reads the file at path over the defaults. An empty path returns the
// defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Annotatef(err, "reading config %s", path)
	}
	if err := cfg.decode(data); err != nil {
		return Config{}, errors.Annotatef(err, "parsing config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Annotatef(err, "config %s", path)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := cfg.decode(data); err != nil {
		return Config{}, errors.Trace(err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, errors.Trace(err)
	}
	return cfg, nil
}

func (c *Config) decode(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(c)
}

// Validate checks that every location parses into a known transport and
// that the named codec and balancer exist.
func (c Config) Validate() error {
	if _, err := codec.ParseCodecType(c.Codec); err != nil {
		return errors.Trace(err)
	}
	if _, err := loadbalance.New(c.Client.Balancer); err != nil {
		return errors.Trace(err)
	}
	for name, location := range map[string]string{
		"agent.registration":      c.Agent.Registration,
		"agent.access-control-in": c.Agent.AccessControlIn,
		"agent.connectivity":      c.Agent.Connectivity,
		"agent.chat-in":           c.Agent.ChatIn,
		"client.registration":     c.Client.Registration,
	} {
		if location == "" {
			continue
		}
		loc, err := transport.ParseLocation(location)
		if err != nil {
			return errors.Annotate(err, name)
		}
		if loc.Framework() == transport.UnknownTransport {
			return errors.NotSupportedf("%s scheme %q", name, loc.Scheme)
		}
	}
	if c.Agent.RateLimit < 0 || c.Agent.Burst < 0 {
		return errors.NotValidf("negative rate limit")
	}
	if c.Client.Retry.Attempts < 0 {
		return errors.NotValidf("retry attempts %d", c.Client.Retry.Attempts)
	}
	if _, err := loggo.ParseConfigString(c.LogLevel); err != nil {
		return errors.Annotate(err, "log-level")
	}
	return nil
}

// CodecType returns the configured codec.
func (c Config) CodecType() codec.CodecType {
	t, err := codec.ParseCodecType(c.Codec)
	if err != nil {
		return codec.CodecTypeCBOR
	}
	return t
}

// ConfigureLogging applies LogLevel to the loggo loggers.
func (c Config) ConfigureLogging() error {
	return errors.Trace(loggo.ConfigureLoggers(c.LogLevel))
}

// OpenRegistry returns the etcd registry when endpoints are configured and a
// process-local registry otherwise.
func (c Config) OpenRegistry() (registry.Registry, error) {
	if len(c.Etcd.Endpoints) == 0 {
		return registry.NewMemoryRegistry(), nil
	}
	reg, err := registry.NewEtcdRegistry(c.Etcd.Endpoints, c.Etcd.DialTimeout)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return reg, nil
}

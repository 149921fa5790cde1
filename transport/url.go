package transport

import (
	"net"
	"regexp"
	"strconv"
	"strings"

	"github.com/juju/errors"
)

// Framework is the transport implementation a location is served with.
type Framework int

const (
	UnknownTransport Framework = iota
	GRPCTransport
	TCPSocketTransport
)

func (f Framework) String() string {
	switch f {
	case GRPCTransport:
		return "grpc"
	case TCPSocketTransport:
		return "tcp"
	default:
		return "unknown"
	}
}

var locationPattern = regexp.MustCompile(`^([a-zA-Z][a-zA-Z0-9+-.]*)://(([\w.]+)(:[1-9]\d*)?)?(/([a-zA-Z0-9_.-]([a-zA-Z0-9_.-]+/?)*)?)?$`)

// Location is a parsed service location such as "unix:///tmp/agent/registration"
// or "tcp+tv://127.0.0.1:9221".
type Location struct {
	Scheme string // lower case
	Host   string
	Port   uint16 // 0 when absent
	Path   string
}

// ParseLocation parses a service location URL. The scheme is case-insensitive;
// the port, when present, must be in 1..65535 without leading zeros.
func ParseLocation(url string) (Location, error) {
	match := locationPattern.FindStringSubmatch(url)
	if match == nil {
		return Location{}, errors.NotValidf("location %q", url)
	}
	var port uint64
	if match[4] != "" {
		var err error
		port, err = strconv.ParseUint(match[4][1:], 10, 16)
		if err != nil {
			return Location{}, errors.NotValidf("port of location %q", url)
		}
	}
	return Location{
		Scheme: strings.ToLower(match[1]),
		Host:   match[3],
		Port:   uint16(port),
		Path:   match[5],
	}, nil
}

// FrameworkForScheme maps a lower-case scheme onto its transport.
func FrameworkForScheme(scheme string) Framework {
	switch scheme {
	case "unix", "grpc":
		return GRPCTransport
	case "tcp+tv", "tv+tcp":
		return TCPSocketTransport
	}
	return UnknownTransport
}

// Framework returns the transport the location is served with.
func (l Location) Framework() Framework {
	return FrameworkForScheme(l.Scheme)
}

// Network returns the net.Listen network of the location.
func (l Location) Network() string {
	if l.Scheme == "unix" {
		return "unix"
	}
	return "tcp"
}

// Address returns the net.Listen address of the location: the socket path
// for unix locations, host:port otherwise.
func (l Location) Address() string {
	if l.Scheme == "unix" {
		return l.Path
	}
	return net.JoinHostPort(l.Host, strconv.Itoa(int(l.Port)))
}

// GRPCTarget returns the grpc.NewClient target of the location.
func (l Location) GRPCTarget() string {
	if l.Scheme == "unix" {
		return "unix://" + l.Path
	}
	return "passthrough:///" + l.Address()
}

func (l Location) String() string {
	var b strings.Builder
	b.WriteString(l.Scheme)
	b.WriteString("://")
	b.WriteString(l.Host)
	if l.Port != 0 {
		b.WriteString(":")
		b.WriteString(strconv.Itoa(int(l.Port)))
	}
	b.WriteString(l.Path)
	return b.String()
}

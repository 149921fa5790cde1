package registry

import (
	"strings"

	"github.com/juju/errors"
)

// ServiceType identifies one service of the communication layer.
type ServiceType int32

const (
	Unknown ServiceType = iota
	Registration
	Image
	ImageNotification
	Connectivity
	Input
	SessionControl
	SessionStatus
	AccessControlIn
	AccessControlOut
	InstantSupport
	ViewGeometry
	InstantSupportNotification
	ChatIn
	ChatOut
	ConnectionConfirmationRequest
	ConnectionConfirmationResponse
	serviceTypeCount
)

var serviceTypeNames = [...]string{
	Unknown:                        "Unknown",
	Registration:                   "Registration",
	Image:                          "Image",
	ImageNotification:              "ImageNotification",
	Connectivity:                   "Connectivity",
	Input:                          "Input",
	SessionControl:                 "SessionControl",
	SessionStatus:                  "SessionStatus",
	AccessControlIn:                "AccessControlIn",
	AccessControlOut:               "AccessControlOut",
	InstantSupport:                 "InstantSupport",
	ViewGeometry:                   "ViewGeometry",
	InstantSupportNotification:     "InstantSupportNotification",
	ChatIn:                         "ChatIn",
	ChatOut:                        "ChatOut",
	ConnectionConfirmationRequest:  "ConnectionConfirmationRequest",
	ConnectionConfirmationResponse: "ConnectionConfirmationResponse",
}

// Valid reports whether t is a known service type other than Unknown.
func (t ServiceType) Valid() bool {
	return t > Unknown && t < serviceTypeCount
}

func (t ServiceType) String() string {
	if t < 0 || t >= serviceTypeCount {
		return "Unknown"
	}
	return serviceTypeNames[t]
}

// ParseServiceType parses a service type name, ignoring case.
func ParseServiceType(name string) (ServiceType, error) {
	for i, n := range serviceTypeNames {
		if strings.EqualFold(n, name) && ServiceType(i) != Unknown {
			return ServiceType(i), nil
		}
	}
	return Unknown, errors.NotValidf("service type %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (t ServiceType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *ServiceType) UnmarshalText(text []byte) error {
	parsed, err := ParseServiceType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

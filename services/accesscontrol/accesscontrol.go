// Package accesscontrol implements the access control services of a remote
// screen session.
//
// AccessControlIn is served by the agent: the application asks which access
// mode a feature has (GetAccess), changes it (SetAccess) and answers a
// confirmation prompt (ConfirmationReply). AccessControlOut is served by the
// application: the agent asks it to prompt the user (AskForConfirmation) and
// notifies it of access changes (NotifyChange).
//
// Callbacks receive the internal AccessControl and Access values; the wire
// enums never leave this package.
package accesscontrol

import (
	"fmt"
	"strings"

	"github.com/juju/errors"
)

// AccessControl is a feature whose access is controlled.
type AccessControl int32

const (
	FileTransfer AccessControl = iota
	RemoteView
	RemoteControl
)

// Valid reports whether f is one of the declared features.
func (f AccessControl) Valid() bool {
	return f >= FileTransfer && f <= RemoteControl
}

func (f AccessControl) String() string {
	switch f {
	case FileTransfer:
		return "FileTransfer"
	case RemoteView:
		return "RemoteView"
	case RemoteControl:
		return "RemoteControl"
	}
	return fmt.Sprintf("AccessControl(%d)", int32(f))
}

// Access is the access mode of a feature.
type Access int32

const (
	Allowed Access = iota
	AfterConfirmation
	Denied
)

// Valid reports whether a is one of the declared access modes.
func (a Access) Valid() bool {
	return a >= Allowed && a <= Denied
}

func (a Access) String() string {
	switch a {
	case Allowed:
		return "Allowed"
	case AfterConfirmation:
		return "AfterConfirmation"
	case Denied:
		return "Denied"
	}
	return fmt.Sprintf("Access(%d)", int32(a))
}

// ParseAccessControl parses a feature name, ignoring case.
func ParseAccessControl(name string) (AccessControl, error) {
	for f := FileTransfer; f <= RemoteControl; f++ {
		if strings.EqualFold(f.String(), name) {
			return f, nil
		}
	}
	return 0, errors.NotValidf("feature %q", name)
}

// ParseAccess parses an access mode name, ignoring case.
func ParseAccess(name string) (Access, error) {
	for a := Allowed; a <= Denied; a++ {
		if strings.EqualFold(a.String(), name) {
			return a, nil
		}
	}
	return 0, errors.NotValidf("access %q", name)
}

package accesscontrol

// Wire enums. Their numbering belongs to the wire format and is converted
// explicitly to and from the internal enums.
type wireAccessControl int32

const (
	wireFileTransfer  wireAccessControl = 1
	wireRemoteView    wireAccessControl = 2
	wireRemoteControl wireAccessControl = 3
)

type wireAccess int32

const (
	wireAllowed           wireAccess = 1
	wireAfterConfirmation wireAccess = 2
	wireDenied            wireAccess = 3
)

func (f wireAccessControl) valid() bool {
	return f >= wireFileTransfer && f <= wireRemoteControl
}

func (a wireAccess) valid() bool {
	return a >= wireAllowed && a <= wireDenied
}

func toAccessControl(f wireAccessControl) AccessControl {
	switch f {
	case wireRemoteView:
		return RemoteView
	case wireRemoteControl:
		return RemoteControl
	}
	return FileTransfer
}

func fromAccessControl(f AccessControl) wireAccessControl {
	switch f {
	case FileTransfer:
		return wireFileTransfer
	case RemoteView:
		return wireRemoteView
	case RemoteControl:
		return wireRemoteControl
	}
	return 0
}

func toAccess(a wireAccess) Access {
	switch a {
	case wireAllowed:
		return Allowed
	case wireAfterConfirmation:
		return AfterConfirmation
	}
	return Denied
}

func fromAccess(a Access) wireAccess {
	switch a {
	case Allowed:
		return wireAllowed
	case AfterConfirmation:
		return wireAfterConfirmation
	case Denied:
		return wireDenied
	}
	return 0
}

type confirmationReplyRequest struct {
	Feature   wireAccessControl `json:"feature" cbor:"1,keyasint"`
	Confirmed bool              `json:"confirmed,omitempty" cbor:"2,keyasint,omitempty"`
}

type confirmationReplyResponse struct{}

type getAccessRequest struct {
	Feature wireAccessControl `json:"feature" cbor:"1,keyasint"`
}

type getAccessResponse struct {
	Access wireAccess `json:"access" cbor:"1,keyasint"`
}

type setAccessRequest struct {
	Feature wireAccessControl `json:"feature" cbor:"1,keyasint"`
	Access  wireAccess        `json:"access" cbor:"2,keyasint"`
}

type setAccessResponse struct{}

type askForConfirmationRequest struct {
	Feature wireAccessControl `json:"feature" cbor:"1,keyasint"`
	Timeout uint32            `json:"timeout,omitempty" cbor:"2,keyasint,omitempty"` // seconds
}

type askForConfirmationResponse struct{}

type notifyChangeRequest struct {
	Feature wireAccessControl `json:"feature" cbor:"1,keyasint"`
	Access  wireAccess        `json:"access" cbor:"2,keyasint"`
}

type notifyChangeResponse struct{}

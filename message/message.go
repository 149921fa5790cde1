// Package message defines the envelope exchanged by the framed TCP transport.
//
// RPCMessage wraps every call. It is serialized by the codec layer and carried
// in a protocol frame. The gRPC transport does not use it: there, the method
// name travels in the request path, the comId in gRPC metadata and the status
// in the gRPC trailer.
package message

import (
	"strings"

	"google.golang.org/grpc/codes"
)

// RPCMessage carries a single request or response.
//
//   - On request:  ServiceMethod and ComID are set, Payload holds the encoded
//     wire request, Code and Error are empty.
//   - On response: Code and Error hold the wire status, Payload holds the
//     encoded wire response when Code is OK.
type RPCMessage struct {
	ServiceMethod string     `json:"method" cbor:"1,keyasint"` // "Service.Method", e.g. "AccessControlIn.GetAccess"
	ComID         string     `json:"comid,omitempty" cbor:"2,keyasint,omitempty"`
	Code          codes.Code `json:"code,omitempty" cbor:"3,keyasint,omitempty"`
	Error         string     `json:"error,omitempty" cbor:"4,keyasint,omitempty"`
	Payload       []byte     `json:"payload,omitempty" cbor:"5,keyasint,omitempty"`
}

// SplitServiceMethod splits "Service.Method" at the last dot.
func SplitServiceMethod(serviceMethod string) (service, method string, ok bool) {
	dot := strings.LastIndex(serviceMethod, ".")
	if dot <= 0 || dot == len(serviceMethod)-1 {
		return "", "", false
	}
	return serviceMethod[:dot], serviceMethod[dot+1:], true
}

// ServiceMethod joins a service and method name.
func ServiceMethod(service, method string) string {
	return service + "." + method
}

package dispatch

import (
	"context"
	"strings"
)

// CommunicationIDKey is the transport metadata key carrying the comId, the
// opaque routing token that identifies the session a call belongs to.
const CommunicationIDKey = "comid"

// RequestContext is the per-call transport metadata handed to the engine.
// Transports create one per inbound request; the engine only reads it.
type RequestContext struct {
	// Context is the transport's request context. It is never nil once
	// built by NewRequestContext.
	Context context.Context

	// Metadata holds the out-of-band headers of the call with lower-case
	// keys.
	Metadata map[string]string

	// Peer is the remote address as reported by the transport, if known.
	Peer string
}

// NewRequestContext builds a RequestContext, normalising metadata keys to
// lower case.
func NewRequestContext(ctx context.Context, metadata map[string]string, peer string) *RequestContext {
	if ctx == nil {
		ctx = context.Background()
	}
	md := make(map[string]string, len(metadata))
	for k, v := range metadata {
		md[strings.ToLower(k)] = v
	}
	return &RequestContext{Context: ctx, Metadata: md, Peer: peer}
}

// Get returns the metadata value stored under key.
func (rc *RequestContext) Get(key string) (string, bool) {
	if rc == nil {
		return "", false
	}
	v, ok := rc.Metadata[strings.ToLower(key)]
	return v, ok
}

// DefaultComID extracts the comId from the transport metadata. An absent or
// empty token counts as missing.
func DefaultComID(rc *RequestContext) (string, bool) {
	comID, ok := rc.Get(CommunicationIDKey)
	if !ok || comID == "" {
		return "", false
	}
	return comID, true
}

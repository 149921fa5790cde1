// Package codec serializes envelopes and wire messages.
//
// A Codec encodes both the RPCMessage envelope of the framed TCP transport and
// the request/response values carried in its payload. The same codecs back the
// gRPC transport through GRPCCodec.
package codec

import (
	"strings"

	"github.com/juju/errors"
)

type CodecType byte

const (
	CodecTypeJSON   CodecType = 0
	CodecTypeBinary CodecType = 1
	CodecTypeCBOR   CodecType = 2
)

type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Type() CodecType // 0=JSON, 1=Binary, 2=CBOR
}

func (t CodecType) String() string {
	switch t {
	case CodecTypeJSON:
		return "json"
	case CodecTypeBinary:
		return "binary"
	case CodecTypeCBOR:
		return "cbor"
	default:
		return "unknown"
	}
}

// Valid reports whether t names a known codec.
func (t CodecType) Valid() bool {
	return t <= CodecTypeCBOR
}

// GetCodec returns the codec for codecType, falling back to CBOR for unknown
// types.
func GetCodec(codecType CodecType) Codec {
	switch codecType {
	case CodecTypeJSON:
		return &JSONCodec{}
	case CodecTypeBinary:
		return &BinaryCodec{}
	default:
		return &CBORCodec{}
	}
}

// ParseCodecType parses a codec name as used in configuration files.
func ParseCodecType(name string) (CodecType, error) {
	switch strings.ToLower(name) {
	case "json":
		return CodecTypeJSON, nil
	case "binary":
		return CodecTypeBinary, nil
	case "cbor", "":
		return CodecTypeCBOR, nil
	}
	return 0, errors.NotValidf("codec %q", name)
}

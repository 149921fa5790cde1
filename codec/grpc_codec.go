package codec

import (
	"google.golang.org/grpc/encoding"
)

// GRPCCodec adapts a Codec to grpc's encoding.Codec so that the gRPC
// transport carries the same message structs as the framed transport,
// without generated protobuf types.
type GRPCCodec struct {
	Codec Codec
}

var _ encoding.Codec = GRPCCodec{}

// NewGRPCCodec wraps the codec of the given type.
func NewGRPCCodec(codecType CodecType) GRPCCodec {
	return GRPCCodec{Codec: GetCodec(codecType)}
}

func (g GRPCCodec) Marshal(v any) ([]byte, error) {
	return g.Codec.Encode(v)
}

func (g GRPCCodec) Unmarshal(data []byte, v any) error {
	return g.Codec.Decode(data, v)
}

// Name is the gRPC content subtype, e.g. "application/grpc+cbor".
func (g GRPCCodec) Name() string {
	return g.Codec.Type().String()
}

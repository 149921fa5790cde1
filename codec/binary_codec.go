package codec

import (
	"encoding/binary"

	"github.com/juju/errors"
	"google.golang.org/grpc/codes"

	"remote-screen-rpc/message"
)

// BinaryCodec lays out the RPCMessage envelope by hand:
//
//	methodLen u16 | method | comIdLen u16 | comId | code u32 |
//	payloadLen u32 | payload | errorLen u16 | error
//
// Any other value (the request and response structs inside the payload) is
// encoded as CBOR.
type BinaryCodec struct {
	payload CBORCodec
}

const maxShortField = 1<<16 - 1

func (c *BinaryCodec) Encode(v any) ([]byte, error) {
	msg, ok := v.(*message.RPCMessage)
	if !ok {
		return c.payload.Encode(v)
	}
	for name, field := range map[string]string{
		"method": msg.ServiceMethod,
		"comId":  msg.ComID,
		"error":  msg.Error,
	} {
		if len(field) > maxShortField {
			return nil, errors.Errorf("BinaryCodec: %s too long (%d bytes)", name, len(field))
		}
	}

	total := 2 + len(msg.ServiceMethod) + 2 + len(msg.ComID) + 4 + 4 + len(msg.Payload) + 2 + len(msg.Error)
	buf := make([]byte, 0, total)

	buf = appendShortString(buf, msg.ServiceMethod)
	buf = appendShortString(buf, msg.ComID)
	buf = binary.BigEndian.AppendUint32(buf, uint32(msg.Code))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(msg.Payload)))
	buf = append(buf, msg.Payload...)
	buf = appendShortString(buf, msg.Error)
	return buf, nil
}

func (c *BinaryCodec) Decode(data []byte, v any) error {
	msg, ok := v.(*message.RPCMessage)
	if !ok {
		return c.payload.Decode(data, v)
	}

	r := reader{data: data}
	msg.ServiceMethod = r.shortString()
	msg.ComID = r.shortString()
	msg.Code = codes.Code(r.uint32())
	payloadLen := r.uint32()
	if p := r.bytes(int(payloadLen)); len(p) > 0 {
		msg.Payload = append([]byte(nil), p...)
	} else {
		msg.Payload = nil
	}
	msg.Error = r.shortString()
	if r.err != nil {
		return errors.Annotate(r.err, "BinaryCodec")
	}
	return nil
}

func (c *BinaryCodec) Type() CodecType {
	return CodecTypeBinary
}

func appendShortString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(s)))
	return append(buf, s...)
}

// reader walks a buffer and records the first short read.
type reader struct {
	data []byte
	off  int
	err  error
}

func (r *reader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || r.off+n > len(r.data) {
		r.err = errors.Errorf("truncated message: need %d bytes at offset %d, have %d", n, r.off, len(r.data)-r.off)
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) uint16() uint16 {
	b := r.bytes(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (r *reader) uint32() uint32 {
	b := r.bytes(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *reader) shortString() string {
	n := r.uint16()
	return string(r.bytes(int(n)))
}

package grpcdev

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"google.golang.org/grpc/encoding"
)

// codecName is the gRPC content subtype frames are sent with.
const codecName = "msgpack"

func init() {
	encoding.RegisterCodec(msgpackCodec{})
}

// Frame is a single FUSE frame. Frames sent by the exporter are requests
// from the kernel; frames sent by the client are responses and
// notifications.
type Frame struct {
	Data []byte `msgpack:"data"`
}

// msgpackCodec implements encoding.Codec for Frames.
type msgpackCodec struct{}

func (msgpackCodec) Name() string { return codecName }

func (msgpackCodec) Marshal(v interface{}) ([]byte, error) {
	f, ok := v.(*Frame)
	if !ok {
		return nil, fmt.Errorf("msgpack codec: unexpected message type %T", v)
	}
	return msgpack.Marshal(f)
}

func (msgpackCodec) Unmarshal(data []byte, v interface{}) error {
	f, ok := v.(*Frame)
	if !ok {
		return fmt.Errorf("msgpack codec: unexpected message type %T", v)
	}
	return msgpack.Unmarshal(data, f)
}

package codec

import (
	"google.golang.org/protobuf/proto"
)

// ProtoMessageCodec moves protobuf messages of a single concrete type over a
// basic message channel. Both sides must agree on the schema; the codec only
// carries the serialized form.
//
// Prototype supplies the concrete type: decode allocates a fresh instance via
// protobuf reflection, so the codec itself is stateless and safe to share.
type ProtoMessageCodec struct {
	Prototype proto.Message
}

func NewProtoMessageCodec(prototype proto.Message) ProtoMessageCodec {
	return ProtoMessageCodec{Prototype: prototype}
}

func (c ProtoMessageCodec) EncodeMessage(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	m, ok := v.(proto.Message)
	if !ok {
		return nil, formatErr("ProtoMessageCodec: value must be a proto.Message")
	}
	return proto.Marshal(m)
}

func (c ProtoMessageCodec) DecodeMessage(data []byte) (any, error) {
	if data == nil {
		return nil, nil
	}
	m := c.Prototype.ProtoReflect().New().Interface()
	if err := proto.Unmarshal(data, m); err != nil {
		return nil, formatErr("ProtoMessageCodec: " + err.Error())
	}
	return m, nil
}

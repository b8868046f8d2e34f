package codec

// BinaryCodec is the identity codec: values are raw byte buffers passed
// through untouched. Useful for channels whose payloads are already encoded
// (images, compressed blobs) where any re-encoding would be waste.
type BinaryCodec struct{}

func (BinaryCodec) EncodeMessage(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, formatErr("BinaryCodec: value must be []byte")
	}
	return b, nil
}

func (BinaryCodec) DecodeMessage(data []byte) (any, error) {
	if data == nil {
		return nil, nil
	}
	return data, nil
}

// StringCodec moves UTF-8 strings. A nil buffer round-trips as the nil value
// so an absent reply is distinguishable from an empty string.
type StringCodec struct{}

func (StringCodec) EncodeMessage(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, formatErr("StringCodec: value must be string")
	}
	return []byte(s), nil
}

func (StringCodec) DecodeMessage(data []byte) (any, error) {
	if data == nil {
		return nil, nil
	}
	return string(data), nil
}

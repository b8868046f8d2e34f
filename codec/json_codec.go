package codec

import (
	"bytes"
	"encoding/json"

	"github.com/abk-chicago/flutter/message"
)

// JSONMessageCodec uses encoding/json for serialization.
// Pros: human-readable, cross-language, easy to debug.
// Cons: slower than the binary standard codec, larger payloads, and all
// numbers decode as float64 (encoding/json's generic representation).
type JSONMessageCodec struct{}

func (JSONMessageCodec) EncodeMessage(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func (JSONMessageCodec) DecodeMessage(data []byte) (any, error) {
	if data == nil {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, formatErr("JSONMessageCodec: " + err.Error())
	}
	return v, nil
}

// JSONMethodCodec frames method calls as {"method": ..., "args": ...} objects
// and envelopes as JSON arrays: [result] on success, [code, message, details]
// on error. The array framing keeps a null success result distinguishable
// from a malformed reply.
type JSONMethodCodec struct{}

type jsonMethodCall struct {
	Method string          `json:"method"`
	Args   json.RawMessage `json:"args,omitempty"`
}

func (JSONMethodCodec) EncodeMethodCall(call message.MethodCall) ([]byte, error) {
	wire := jsonMethodCall{Method: call.Method}
	if call.Arguments != nil {
		args, err := json.Marshal(call.Arguments)
		if err != nil {
			return nil, err
		}
		wire.Args = args
	}
	return json.Marshal(wire)
}

func (JSONMethodCodec) DecodeMethodCall(data []byte) (message.MethodCall, error) {
	var wire jsonMethodCall
	if err := json.Unmarshal(data, &wire); err != nil {
		return message.MethodCall{}, formatErr("JSONMethodCodec: " + err.Error())
	}
	if wire.Method == "" {
		return message.MethodCall{}, formatErr("JSONMethodCodec: missing method name")
	}
	call := message.MethodCall{Method: wire.Method}
	if len(wire.Args) > 0 && !bytes.Equal(wire.Args, []byte("null")) {
		if err := json.Unmarshal(wire.Args, &call.Arguments); err != nil {
			return message.MethodCall{}, formatErr("JSONMethodCodec: " + err.Error())
		}
	}
	return call, nil
}

func (JSONMethodCodec) EncodeSuccessEnvelope(result any) ([]byte, error) {
	return json.Marshal([]any{result})
}

func (JSONMethodCodec) EncodeErrorEnvelope(code, msg string, details any) ([]byte, error) {
	return json.Marshal([]any{code, msg, details})
}

func (JSONMethodCodec) DecodeEnvelope(data []byte) (any, error) {
	var fields []any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, formatErr("JSONMethodCodec: " + err.Error())
	}
	switch len(fields) {
	case 1:
		return fields[0], nil
	case 3:
		code, okCode := fields[0].(string)
		msg, okMsg := fields[1].(string)
		if fields[1] == nil {
			msg, okMsg = "", true
		}
		if !okCode || !okMsg {
			return nil, formatErr("JSONMethodCodec: invalid error envelope")
		}
		return nil, &message.PlatformError{Code: code, Message: msg, Details: fields[2]}
	default:
		return nil, formatErr("JSONMethodCodec: invalid envelope")
	}
}

// Package codec translates typed values to and from their binary wire format.
//
// Two contracts live here. MessageCodec moves arbitrary values for basic
// message channels. MethodCodec moves method-call payloads and the
// success/error reply envelopes for method and event channels.
package codec

import (
	"github.com/abk-chicago/flutter/message"
)

// MessageCodec encodes and decodes arbitrary values for a basic message
// channel. Implementations must be a stable round trip:
// DecodeMessage(EncodeMessage(v)) is value-equal to v for every v in the
// codec's supported domain.
//
// Both directions treat nil bytes as the nil value, so an absent transport
// reply decodes cleanly.
type MessageCodec interface {
	EncodeMessage(v any) ([]byte, error)
	DecodeMessage(data []byte) (any, error)
}

// MethodCodec encodes and decodes method calls and reply envelopes.
//
// DecodeEnvelope returns the success value for a success envelope, a
// *message.PlatformError carrying the original (code, message, details) for
// an error envelope, and a *message.FormatError when the bytes encode
// neither.
type MethodCodec interface {
	EncodeMethodCall(call message.MethodCall) ([]byte, error)
	DecodeMethodCall(data []byte) (message.MethodCall, error)
	EncodeSuccessEnvelope(result any) ([]byte, error)
	EncodeErrorEnvelope(code, msg string, details any) ([]byte, error)
	DecodeEnvelope(data []byte) (any, error)
}

func formatErr(reason string) error {
	return &message.FormatError{Reason: reason}
}

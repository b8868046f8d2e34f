// Package message defines the method-call and error types exchanged across
// a platform channel.
//
// MethodCall is the payload for every RPC-style invocation. It gets
// serialized by the codec layer and carried as an opaque byte buffer by the
// binary messenger.
package message

import "fmt"

// MethodCall carries the data for a single method invocation.
//
//   - Method is the name understood by the remote handler, e.g. "increment".
//   - Arguments is an arbitrary value within the codec's supported domain;
//     nil means "no arguments".
type MethodCall struct {
	Method    string
	Arguments any
}

// PlatformError is reported when the remote handler ran and explicitly
// signaled failure via an error envelope.
//
// The triple (Code, Message, Details) crosses the wire intact: whatever the
// remote side put into the envelope is what the caller observes.
type PlatformError struct {
	Code    string // Machine-readable error code, e.g. "UNAVAILABLE"
	Message string // Human-readable description, may be empty
	Details any    // Arbitrary diagnostic value within the codec's domain
}

func (e *PlatformError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("platform error %s", e.Code)
	}
	return fmt.Sprintf("platform error %s: %s", e.Code, e.Message)
}

// MissingPluginError is reported when no handler is registered on the remote
// side for a given channel (the transport returned an absent reply).
//
// On the handler side the same type has a second role: a handler that fails
// with MissingPluginError declines the specific method while remaining
// registered for others, producing an absent reply instead of an error
// envelope.
type MissingPluginError struct {
	ChannelName string
	MethodName  string // Empty for basic message channels
}

func (e *MissingPluginError) Error() string {
	if e.MethodName == "" {
		return fmt.Sprintf("no implementation found on channel %s", e.ChannelName)
	}
	return fmt.Sprintf("no implementation found for method %s on channel %s", e.MethodName, e.ChannelName)
}

// FormatError is reported when reply or message bytes cannot be parsed as a
// valid envelope or value. It is deliberately a distinct type from
// PlatformError: a corrupt reply is never conflated with a remote failure.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "format error: " + e.Reason
}

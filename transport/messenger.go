// Package transport carries opaque byte buffers between the application
// runtime and a host, addressed by channel name.
//
// Two implementations are provided: Loopback delivers within the process
// (and is the test vehicle), Remote speaks the framed wire protocol over a
// net.Conn to a separate host process. Both maintain the single-handler
// invariant: at most one handler per channel name, registration replaces.
package transport

import "context"

// BinaryMessageHandler processes one inbound message on a channel and
// returns the reply bytes. A nil reply with a nil error is the absent reply,
// which callers interpret as "no implementation". A non-nil error is an
// uncaught handler failure; the messenger surfaces it without converting it
// into a reply.
type BinaryMessageHandler func(ctx context.Context, msg []byte) ([]byte, error)

// BinaryMessenger is the byte-level transport contract consumed by the
// channel layer.
type BinaryMessenger interface {
	// Send delivers msg on the named channel and blocks until the reply
	// arrives or ctx is done. A (nil, nil) return is the absent reply:
	// no handler is registered on the receiving side.
	Send(ctx context.Context, channel string, msg []byte) ([]byte, error)

	// SetMessageHandler registers handler for the named channel, replacing
	// any previous one. A nil handler deregisters. A replacement affects
	// only future deliveries; an already-started invocation of the former
	// handler still completes.
	SetMessageHandler(channel string, handler BinaryMessageHandler)
}

// MockableMessenger is implemented by messengers that carry a mock handler
// registry layered over the real one. When a mock is present for a channel,
// Send dispatches to it instead of reaching the real delivery path. Used
// exclusively by tests.
type MockableMessenger interface {
	BinaryMessenger

	// SetMockMessageHandler installs (or, with nil, removes) a mock handler
	// for the named channel.
	SetMockMessageHandler(channel string, handler BinaryMessageHandler)

	// ClearMockMessageHandlers removes every installed mock. Intended for
	// test teardown.
	ClearMockMessageHandlers()
}

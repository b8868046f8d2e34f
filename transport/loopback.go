package transport

import (
	"context"
	"sync"
)

// Loopback is an in-process messenger endpoint. Outbound sends resolve
// against the endpoint's mock registry first, then against the peer
// endpoint's real handlers; inbound deliveries resolve against this
// endpoint's own real handlers. Keeping the two directions separate is what
// lets a channel register its inbound handler and still send control
// messages on the same channel name without talking to itself.
//
// A lone endpoint (NewLoopback) has no peer: unmocked sends yield the
// absent reply, which makes it the deterministic test vehicle. A linked
// pair (NewLoopbackPair) forms a full in-process transport, one endpoint
// per side.
type Loopback struct {
	peer *Loopback

	mu       sync.RWMutex
	handlers map[string]BinaryMessageHandler
	mocks    map[string]BinaryMessageHandler
}

// NewLoopback creates an unlinked endpoint: sends reach a mock or nobody.
func NewLoopback() *Loopback {
	return &Loopback{
		handlers: make(map[string]BinaryMessageHandler),
		mocks:    make(map[string]BinaryMessageHandler),
	}
}

// NewLoopbackPair creates two linked endpoints. A send on one side is
// delivered to the handler registered on the other, like the two ends of a
// pipe.
func NewLoopbackPair() (*Loopback, *Loopback) {
	a, b := NewLoopback(), NewLoopback()
	a.peer = b
	b.peer = a
	return a, b
}

// Send dispatches msg toward the other side: an installed mock intercepts
// it, otherwise it reaches the peer's registered handler. With neither
// present the absent reply (nil, nil) comes back: no implementation is
// registered.
func (l *Loopback) Send(ctx context.Context, channel string, msg []byte) ([]byte, error) {
	l.mu.RLock()
	mock := l.mocks[channel]
	l.mu.RUnlock()

	if mock != nil {
		return mock(ctx, msg)
	}
	if l.peer != nil {
		return l.peer.DeliverMessage(ctx, channel, msg)
	}
	return nil, nil
}

// DeliverMessage is the inbound direction: it invokes the real handler
// registered on this endpoint for the channel, bypassing mocks. A
// (nil, nil) return means no handler is registered. Tests use it directly
// to play the host pushing events or end-of-stream toward the application.
//
// The handler is resolved once, before invocation: replacing a handler
// while a delivery is in flight affects only future deliveries.
func (l *Loopback) DeliverMessage(ctx context.Context, channel string, msg []byte) ([]byte, error) {
	l.mu.RLock()
	h := l.handlers[channel]
	l.mu.RUnlock()

	if h == nil {
		return nil, nil
	}
	return h(ctx, msg)
}

func (l *Loopback) SetMessageHandler(channel string, handler BinaryMessageHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if handler == nil {
		delete(l.handlers, channel)
		return
	}
	l.handlers[channel] = handler
}

func (l *Loopback) SetMockMessageHandler(channel string, handler BinaryMessageHandler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if handler == nil {
		delete(l.mocks, channel)
		return
	}
	l.mocks[channel] = handler
}

func (l *Loopback) ClearMockMessageHandlers() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.mocks)
}

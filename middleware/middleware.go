// Package middleware decorates a binary messenger's outbound send path with
// an onion-model interceptor chain.
//
//	Chain(A, B, C)(send) → A(B(C(send)))
//	Execution order: A.before → B.before → C.before → send → C.after → B.after → A.after
//
// Interceptors see only the channel name and opaque bytes; envelope-level
// errors (a PlatformError coming back in a reply) are invisible here and
// deliberately so — retry and rate limiting act on transport behavior, not
// on application failures.
package middleware

import (
	"context"

	"github.com/abk-chicago/flutter/transport"
)

// SendFunc is the outbound send path of a binary messenger.
type SendFunc func(ctx context.Context, channel string, msg []byte) ([]byte, error)

// Middleware wraps a SendFunc with additional behavior.
type Middleware func(next SendFunc) SendFunc

// Chain combines middlewares into one, applied in the order given.
func Chain(middlewares ...Middleware) Middleware {
	return func(next SendFunc) SendFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}

// Wrap returns a messenger whose Send passes through the middleware chain.
// Handler registration (real and mock) is delegated to the wrapped
// messenger untouched.
func Wrap(m transport.BinaryMessenger, middlewares ...Middleware) transport.BinaryMessenger {
	return &wrapped{
		inner: m,
		send:  Chain(middlewares...)(m.Send),
	}
}

type wrapped struct {
	inner transport.BinaryMessenger
	send  SendFunc
}

func (w *wrapped) Send(ctx context.Context, channel string, msg []byte) ([]byte, error) {
	return w.send(ctx, channel, msg)
}

func (w *wrapped) SetMessageHandler(channel string, handler transport.BinaryMessageHandler) {
	w.inner.SetMessageHandler(channel, handler)
}

func (w *wrapped) SetMockMessageHandler(channel string, handler transport.BinaryMessageHandler) {
	mockable(w.inner).SetMockMessageHandler(channel, handler)
}

func (w *wrapped) ClearMockMessageHandlers() {
	mockable(w.inner).ClearMockMessageHandlers()
}

func mockable(m transport.BinaryMessenger) transport.MockableMessenger {
	mm, ok := m.(transport.MockableMessenger)
	if !ok {
		panic("middleware: wrapped messenger does not support mock handlers")
	}
	return mm
}

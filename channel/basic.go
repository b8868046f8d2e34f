// Package channel provides the named channel abstractions built on top of a
// binary messenger: one-shot message exchange (BasicMessageChannel),
// RPC-style method invocation (MethodChannel, OptionalMethodChannel), and
// long-lived event streams (EventChannel).
//
// Channels hold no transport state beyond their name and codec; they are
// cheap values that can be freely constructed and discarded. The single
// mutable resource is the per-channel handler slot owned by the messenger.
package channel

import (
	"context"

	"github.com/abk-chicago/flutter/codec"
	"github.com/abk-chicago/flutter/transport"
)

// MessageHandler processes one decoded inbound message and returns the value
// to encode as the reply.
type MessageHandler func(ctx context.Context, msg any) (any, error)

// BasicMessageChannel is a named channel for single encode→send→decode round
// trips, parameterized by a MessageCodec.
type BasicMessageChannel struct {
	name      string
	codec     codec.MessageCodec
	messenger transport.BinaryMessenger
}

func NewBasicMessageChannel(name string, c codec.MessageCodec, m transport.BinaryMessenger) *BasicMessageChannel {
	return &BasicMessageChannel{name: name, codec: c, messenger: m}
}

func (c *BasicMessageChannel) Name() string { return c.name }

// Send encodes msg, sends it on the channel, and decodes the reply. An
// absent reply decodes as nil. Encode and decode failures surface as the
// codec's error.
func (c *BasicMessageChannel) Send(ctx context.Context, msg any) (any, error) {
	data, err := c.codec.EncodeMessage(msg)
	if err != nil {
		return nil, err
	}
	reply, err := c.messenger.Send(ctx, c.name, data)
	if err != nil {
		return nil, err
	}
	return c.codec.DecodeMessage(reply)
}

// SetMessageHandler registers handler for inbound messages on this channel,
// replacing any previous one. A nil handler deregisters.
func (c *BasicMessageChannel) SetMessageHandler(handler MessageHandler) {
	if handler == nil {
		c.messenger.SetMessageHandler(c.name, nil)
		return
	}
	c.messenger.SetMessageHandler(c.name, c.binaryHandler(handler))
}

// SetMockMessageHandler installs handler into the messenger's mock registry
// instead of the real one. Test use only; panics if the messenger does not
// support mocks.
func (c *BasicMessageChannel) SetMockMessageHandler(handler MessageHandler) {
	m := mockable(c.messenger)
	if handler == nil {
		m.SetMockMessageHandler(c.name, nil)
		return
	}
	m.SetMockMessageHandler(c.name, c.binaryHandler(handler))
}

func (c *BasicMessageChannel) binaryHandler(handler MessageHandler) transport.BinaryMessageHandler {
	return func(ctx context.Context, data []byte) ([]byte, error) {
		msg, err := c.codec.DecodeMessage(data)
		if err != nil {
			return nil, err
		}
		result, err := handler(ctx, msg)
		if err != nil {
			return nil, err
		}
		return c.codec.EncodeMessage(result)
	}
}

func mockable(m transport.BinaryMessenger) transport.MockableMessenger {
	mm, ok := m.(transport.MockableMessenger)
	if !ok {
		panic("channel: messenger does not support mock handlers")
	}
	return mm
}

package channel

import (
	"context"

	"github.com/abk-chicago/flutter/codec"
	"github.com/abk-chicago/flutter/message"
	"github.com/abk-chicago/flutter/transport"
)

// The two control methods of the stream activation protocol.
const (
	listenMethod = "listen"
	cancelMethod = "cancel"
)

// EventChannel is a named channel producing a broadcast stream of values by
// driving the remote listen/cancel protocol over a MethodCodec.
type EventChannel struct {
	name      string
	codec     codec.MethodCodec
	messenger transport.BinaryMessenger
}

func NewEventChannel(name string, c codec.MethodCodec, m transport.BinaryMessenger) *EventChannel {
	return &EventChannel{name: name, codec: c, messenger: m}
}

func (c *EventChannel) Name() string { return c.name }

// ReceiveBroadcastStream sets up a broadcast stream for events on this
// channel. Each call creates an independent stream; concurrent listeners on
// one stream share a single upstream subscription.
//
// The stream is lazy. While nobody listens the channel holds no registered
// handler and has issued no remote "listen": it consumes zero remote
// resources when unobserved.
//
//   - First listener: a binary handler is registered for the channel, then
//     "listen" is invoked with arguments. If the invocation fails, the
//     handler is deregistered again and the failure becomes a single error
//     event.
//   - Incoming deliveries decode through the method codec's envelope: a
//     success envelope emits a data event, an error envelope emits an error
//     event carrying the PlatformError, and undecodable bytes emit an error
//     event carrying the FormatError — decode failures never escape the
//     handler and never end the stream.
//   - An absent delivery is the remote end-of-stream: the handler is
//     deregistered and the stream closes without an error event.
//   - Last listener gone: the handler is deregistered first, then "cancel"
//     is invoked; a cancel failure goes to the uncaught-error sink since
//     there is no listener left to deliver it to.
func (c *EventChannel) ReceiveBroadcastStream(arguments any) *BroadcastStream {
	onListen := func(s *BroadcastStream) {
		c.messenger.SetMessageHandler(c.name, func(_ context.Context, data []byte) ([]byte, error) {
			if data == nil {
				c.messenger.SetMessageHandler(c.name, nil)
				s.close()
				return nil, nil
			}
			value, err := c.codec.DecodeEnvelope(data)
			if err != nil {
				s.emit(Event{Err: err})
			} else {
				s.emit(Event{Value: value})
			}
			return nil, nil
		})

		if err := c.invoke(listenMethod, arguments); err != nil {
			c.messenger.SetMessageHandler(c.name, nil)
			s.emit(Event{Err: err})
		}
	}

	onCancel := func() {
		c.messenger.SetMessageHandler(c.name, nil)
		if err := c.invoke(cancelMethod, arguments); err != nil {
			reportUncaught(c.name, "while deactivating platform stream", err)
		}
	}

	return newBroadcastStream(onListen, onCancel)
}

// invoke drives one control method of the activation protocol and discards
// the success result.
func (c *EventChannel) invoke(method string, arguments any) error {
	data, err := c.codec.EncodeMethodCall(message.MethodCall{Method: method, Arguments: arguments})
	if err != nil {
		return err
	}
	reply, err := c.messenger.Send(context.Background(), c.name, data)
	if err != nil {
		return err
	}
	if reply == nil {
		return &message.MissingPluginError{ChannelName: c.name, MethodName: method}
	}
	_, err = c.codec.DecodeEnvelope(reply)
	return err
}

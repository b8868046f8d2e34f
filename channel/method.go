package channel

import (
	"context"
	"errors"
	"fmt"

	"github.com/abk-chicago/flutter/codec"
	"github.com/abk-chicago/flutter/message"
	"github.com/abk-chicago/flutter/transport"
)

// MethodCallHandler processes one inbound method call.
//
// The returned error chooses the reply envelope:
//   - nil → success envelope wrapping the result;
//   - *message.PlatformError → error envelope carrying (code, message,
//     details);
//   - *message.MissingPluginError → absent reply, declining this specific
//     method while the handler stays registered for others;
//   - anything else is an uncaught failure and propagates out of the binary
//     handler unconverted — programming errors are never dressed up as
//     remote failures.
type MethodCallHandler func(ctx context.Context, call message.MethodCall) (any, error)

// MethodChannel is a named channel for RPC-style invocation using a
// MethodCodec.
type MethodChannel struct {
	name      string
	codec     codec.MethodCodec
	messenger transport.BinaryMessenger
}

func NewMethodChannel(name string, c codec.MethodCodec, m transport.BinaryMessenger) *MethodChannel {
	return &MethodChannel{name: name, codec: c, messenger: m}
}

func (c *MethodChannel) Name() string { return c.name }

// InvokeMethod invokes method on the remote side of the channel.
//
// An absent transport reply means no implementation is registered over there
// and fails with *message.MissingPluginError. An error envelope fails with
// the *message.PlatformError it carries. An unparseable reply fails with a
// *message.FormatError. Otherwise the decoded success value is returned,
// which may itself be nil.
func (c *MethodChannel) InvokeMethod(ctx context.Context, method string, arguments any) (any, error) {
	data, err := c.codec.EncodeMethodCall(message.MethodCall{Method: method, Arguments: arguments})
	if err != nil {
		return nil, err
	}
	reply, err := c.messenger.Send(ctx, c.name, data)
	if err != nil {
		return nil, err
	}
	if reply == nil {
		return nil, &message.MissingPluginError{ChannelName: c.name, MethodName: method}
	}
	return c.codec.DecodeEnvelope(reply)
}

// InvokeListMethod invokes method and returns the result as a list. A nil
// result stays nil; a non-list result is an error.
func (c *MethodChannel) InvokeListMethod(ctx context.Context, method string, arguments any) ([]any, error) {
	result, err := c.InvokeMethod(ctx, method, arguments)
	return asList(c.name, method, result, err)
}

// InvokeMapMethod invokes method and returns the result as a map. A nil
// result stays nil; a non-map result is an error.
func (c *MethodChannel) InvokeMapMethod(ctx context.Context, method string, arguments any) (map[any]any, error) {
	result, err := c.InvokeMethod(ctx, method, arguments)
	return asMap(c.name, method, result, err)
}

// SetMethodCallHandler registers handler for inbound method calls on this
// channel, replacing any previous one. A nil handler deregisters.
func (c *MethodChannel) SetMethodCallHandler(handler MethodCallHandler) {
	if handler == nil {
		c.messenger.SetMessageHandler(c.name, nil)
		return
	}
	c.messenger.SetMessageHandler(c.name, c.binaryHandler(handler))
}

// SetMockMethodCallHandler installs handler, with envelope encoding
// identical to SetMethodCallHandler, into the messenger's mock registry.
// Test use only; panics if the messenger does not support mocks.
func (c *MethodChannel) SetMockMethodCallHandler(handler MethodCallHandler) {
	m := mockable(c.messenger)
	if handler == nil {
		m.SetMockMessageHandler(c.name, nil)
		return
	}
	m.SetMockMessageHandler(c.name, c.binaryHandler(handler))
}

func (c *MethodChannel) binaryHandler(handler MethodCallHandler) transport.BinaryMessageHandler {
	return func(ctx context.Context, data []byte) ([]byte, error) {
		call, err := c.codec.DecodeMethodCall(data)
		if err != nil {
			return nil, err
		}
		result, err := handler(ctx, call)
		if err == nil {
			return c.codec.EncodeSuccessEnvelope(result)
		}
		var platformErr *message.PlatformError
		if errors.As(err, &platformErr) {
			return c.codec.EncodeErrorEnvelope(platformErr.Code, platformErr.Message, platformErr.Details)
		}
		var missing *message.MissingPluginError
		if errors.As(err, &missing) {
			// Explicit decline: absent reply, not an error envelope.
			return nil, nil
		}
		return nil, err
	}
}

func asList(channel, method string, result any, err error) ([]any, error) {
	if err != nil || result == nil {
		return nil, err
	}
	list, ok := result.([]any)
	if !ok {
		return nil, fmt.Errorf("channel %s: method %s returned a non-list result", channel, method)
	}
	return list, nil
}

func asMap(channel, method string, result any, err error) (map[any]any, error) {
	if err != nil || result == nil {
		return nil, err
	}
	switch m := result.(type) {
	case map[any]any:
		return m, nil
	case map[string]any:
		// JSON decodes objects with string keys.
		out := make(map[any]any, len(m))
		for k, v := range m {
			out[k] = v
		}
		return out, nil
	}
	return nil, fmt.Errorf("channel %s: method %s returned a non-map result", channel, method)
}

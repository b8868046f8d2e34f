package channel

import (
	"context"
	"errors"

	"github.com/abk-chicago/flutter/codec"
	"github.com/abk-chicago/flutter/message"
	"github.com/abk-chicago/flutter/transport"
)

// OptionalMethodChannel is a MethodChannel that treats a missing
// implementation on the other side as a normal nil result instead of a
// failure. Callers for whom "feature not present on this host" is an
// expected outcome get a plain nil without error handling at every call
// site. All other behavior is inherited unchanged.
type OptionalMethodChannel struct {
	*MethodChannel
}

func NewOptionalMethodChannel(name string, c codec.MethodCodec, m transport.BinaryMessenger) *OptionalMethodChannel {
	return &OptionalMethodChannel{MethodChannel: NewMethodChannel(name, c, m)}
}

// InvokeMethod behaves like MethodChannel.InvokeMethod except that a
// *message.MissingPluginError resolves to (nil, nil).
func (c *OptionalMethodChannel) InvokeMethod(ctx context.Context, method string, arguments any) (any, error) {
	result, err := c.MethodChannel.InvokeMethod(ctx, method, arguments)
	var missing *message.MissingPluginError
	if errors.As(err, &missing) {
		return nil, nil
	}
	return result, err
}

func (c *OptionalMethodChannel) InvokeListMethod(ctx context.Context, method string, arguments any) ([]any, error) {
	result, err := c.InvokeMethod(ctx, method, arguments)
	return asList(c.name, method, result, err)
}

func (c *OptionalMethodChannel) InvokeMapMethod(ctx context.Context, method string, arguments any) (map[any]any, error) {
	result, err := c.InvokeMethod(ctx, method, arguments)
	return asMap(c.name, method, result, err)
}

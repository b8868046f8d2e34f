package channel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abk-chicago/flutter/codec"
	"github.com/abk-chicago/flutter/message"
	"github.com/abk-chicago/flutter/transport"
)

func TestBasicMessageChannelRoundTrip(t *testing.T) {
	lb := transport.NewLoopback()
	ch := NewBasicMessageChannel("greeting", codec.StringCodec{}, lb)

	ch.SetMockMessageHandler(func(_ context.Context, msg any) (any, error) {
		return "hello " + msg.(string), nil
	})

	reply, err := ch.Send(context.Background(), "world")
	require.NoError(t, err)
	assert.Equal(t, "hello world", reply)
}

func TestBasicMessageChannelAbsentReplyDecodesNil(t *testing.T) {
	lb := transport.NewLoopback()
	ch := NewBasicMessageChannel("greeting", codec.StringCodec{}, lb)

	reply, err := ch.Send(context.Background(), "anyone?")
	require.NoError(t, err)
	assert.Nil(t, reply)
}

func TestBasicMessageChannelHandlerSide(t *testing.T) {
	lb := transport.NewLoopback()
	ch := NewBasicMessageChannel("sum", codec.StandardMessageCodec{}, lb)

	ch.SetMessageHandler(func(_ context.Context, msg any) (any, error) {
		total := 0
		for _, v := range msg.([]any) {
			total += v.(int)
		}
		return total, nil
	})

	// Drive the registered handler the way the host would.
	payload, err := codec.StandardMessageCodec{}.EncodeMessage([]any{1, 2, 3})
	require.NoError(t, err)
	replyBytes, err := lb.DeliverMessage(context.Background(), "sum", payload)
	require.NoError(t, err)

	reply, err := codec.StandardMessageCodec{}.DecodeMessage(replyBytes)
	require.NoError(t, err)
	assert.Equal(t, 6, reply)

	// Deregistering leaves the channel unhandled.
	ch.SetMessageHandler(nil)
	replyBytes, err = lb.DeliverMessage(context.Background(), "sum", payload)
	require.NoError(t, err)
	assert.Nil(t, replyBytes)
}

func TestBasicMessageChannelSingleHandlerInvariant(t *testing.T) {
	lb := transport.NewLoopback()
	ch := NewBasicMessageChannel("slot", codec.StringCodec{}, lb)

	var reachedA, reachedB bool
	ch.SetMessageHandler(func(_ context.Context, msg any) (any, error) {
		reachedA = true
		return msg, nil
	})
	ch.SetMessageHandler(func(_ context.Context, msg any) (any, error) {
		reachedB = true
		return msg, nil
	})

	_, err := lb.DeliverMessage(context.Background(), "slot", []byte("x"))
	require.NoError(t, err)
	assert.False(t, reachedA, "replaced handler must not receive messages")
	assert.True(t, reachedB)
}

func TestBasicMessageChannelDecodeFailure(t *testing.T) {
	lb := transport.NewLoopback()
	ch := NewBasicMessageChannel("data", codec.StandardMessageCodec{}, lb)

	lb.SetMockMessageHandler("data", func(context.Context, []byte) ([]byte, error) {
		return []byte{0x7f}, nil // not a valid standard-codec value
	})

	_, err := ch.Send(context.Background(), "payload")
	var formatErr *message.FormatError
	require.ErrorAs(t, err, &formatErr)
}

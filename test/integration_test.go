// Package test holds end-to-end tests that drive the channel layer across a
// real framed connection, with both endpoints living in this process.
package test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/abk-chicago/flutter/channel"
	"github.com/abk-chicago/flutter/codec"
	"github.com/abk-chicago/flutter/message"
	"github.com/abk-chicago/flutter/middleware"
	"github.com/abk-chicago/flutter/transport"
)

// remoteEnds connects two Remote messengers through an in-memory pipe, one
// playing the application and one playing the host.
func remoteEnds(t *testing.T) (app, host *transport.Remote) {
	c1, c2 := net.Pipe()
	logger := zaptest.NewLogger(t)
	app = transport.NewRemote(c1, logger)
	host = transport.NewRemote(c2, logger)
	t.Cleanup(func() {
		app.Close()
		host.Close()
	})
	return app, host
}

func TestMethodCallsAcrossConnection(t *testing.T) {
	app, host := remoteEnds(t)
	ctx := context.Background()

	hostCh := channel.NewMethodChannel("math", codec.StandardMethodCodec{}, host)
	hostCh.SetMethodCallHandler(func(_ context.Context, call message.MethodCall) (any, error) {
		switch call.Method {
		case "square":
			n := call.Arguments.(int)
			return n * n, nil
		case "fail":
			return nil, &message.PlatformError{Code: "E_MATH", Message: "cannot", Details: -1}
		default:
			return nil, &message.MissingPluginError{ChannelName: "math", MethodName: call.Method}
		}
	})

	appCh := channel.NewMethodChannel("math", codec.StandardMethodCodec{}, app)

	result, err := appCh.InvokeMethod(ctx, "square", 9)
	require.NoError(t, err)
	assert.Equal(t, 81, result)

	_, err = appCh.InvokeMethod(ctx, "fail", nil)
	var platformErr *message.PlatformError
	require.ErrorAs(t, err, &platformErr)
	assert.Equal(t, "E_MATH", platformErr.Code)
	assert.Equal(t, "cannot", platformErr.Message)
	assert.Equal(t, -1, platformErr.Details)

	_, err = appCh.InvokeMethod(ctx, "cube", 3)
	var missing *message.MissingPluginError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "math", missing.ChannelName)
	assert.Equal(t, "cube", missing.MethodName)
}

func TestMethodCallsAreBidirectional(t *testing.T) {
	app, host := remoteEnds(t)
	ctx := context.Background()

	// The application registers a handler and the host invokes it: the two
	// ends of the connection are symmetric.
	appCh := channel.NewMethodChannel("app.info", codec.JSONMethodCodec{}, app)
	appCh.SetMethodCallHandler(func(context.Context, message.MethodCall) (any, error) {
		return map[string]any{"version": "1.2.3"}, nil
	})

	hostCh := channel.NewMethodChannel("app.info", codec.JSONMethodCodec{}, host)
	result, err := hostCh.InvokeMapMethod(ctx, "getVersion", nil)
	require.NoError(t, err)
	assert.Equal(t, map[any]any{"version": "1.2.3"}, result)
}

func TestBasicMessageChannelAcrossConnection(t *testing.T) {
	app, host := remoteEnds(t)
	ctx := context.Background()

	hostCh := channel.NewBasicMessageChannel("echo", codec.StandardMessageCodec{}, host)
	hostCh.SetMessageHandler(func(_ context.Context, msg any) (any, error) {
		return []any{"echo", msg}, nil
	})

	appCh := channel.NewBasicMessageChannel("echo", codec.StandardMessageCodec{}, app)
	reply, err := appCh.Send(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, []any{"echo", "hello"}, reply)

	// A channel nobody implements resolves to the absent reply.
	ghost := channel.NewBasicMessageChannel("ghost", codec.StandardMessageCodec{}, app)
	reply, err = ghost.Send(ctx, "anyone?")
	require.NoError(t, err)
	assert.Nil(t, reply)
}

func TestEventStreamAcrossConnection(t *testing.T) {
	app, host := remoteEnds(t)
	mc := codec.StandardMethodCodec{}

	// The host side of an event channel: accept listen/cancel control calls,
	// and on listen start pushing events followed by the end-of-stream marker.
	host.SetMessageHandler("sensor", func(_ context.Context, data []byte) ([]byte, error) {
		call, err := mc.DecodeMethodCall(data)
		if err != nil {
			return nil, err
		}
		if call.Method == "listen" {
			go func() {
				ctx := context.Background()
				for i := 1; i <= 3; i++ {
					env, err := mc.EncodeSuccessEnvelope(i * 10)
					assert.NoError(t, err)
					_, err = host.Send(ctx, "sensor", env)
					assert.NoError(t, err)
				}
				_, err := host.Send(ctx, "sensor", nil)
				assert.NoError(t, err)
			}()
		}
		return mc.EncodeSuccessEnvelope(nil)
	})

	eventCh := channel.NewEventChannel("sensor", mc, app)
	sub := eventCh.ReceiveBroadcastStream(nil).Listen()

	var got []any
	for ev := range sub.Events() {
		require.NoError(t, ev.Err)
		got = append(got, ev.Value)
	}
	assert.Equal(t, []any{10, 20, 30}, got)
}

func TestMiddlewareStackOverConnection(t *testing.T) {
	app, host := remoteEnds(t)
	ctx := context.Background()

	hostCh := channel.NewMethodChannel("clock", codec.StandardMethodCodec{}, host)
	hostCh.SetMethodCallHandler(func(context.Context, message.MethodCall) (any, error) {
		return "tick", nil
	})

	wrapped := middleware.Wrap(app,
		middleware.Logging(zaptest.NewLogger(t)),
		middleware.Timeout(time.Second),
		middleware.Retry(2, 10*time.Millisecond),
	)
	appCh := channel.NewMethodChannel("clock", codec.StandardMethodCodec{}, wrapped)

	result, err := appCh.InvokeMethod(ctx, "now", nil)
	require.NoError(t, err)
	assert.Equal(t, "tick", result)
}

func TestConnectionLossFailsInFlightCalls(t *testing.T) {
	app, host := remoteEnds(t)

	// The host never answers in time: its reply arrives long after the
	// connection is gone.
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	host.SetMessageHandler("stuck", func(context.Context, []byte) ([]byte, error) {
		<-release
		return nil, nil
	})

	appCh := channel.NewMethodChannel("stuck", codec.StandardMethodCodec{}, app)
	errCh := make(chan error, 1)
	go func() {
		_, err := appCh.InvokeMethod(context.Background(), "hang", nil)
		errCh <- err
	}()

	time.Sleep(50 * time.Millisecond) // Let the call reach the host
	require.NoError(t, app.Close())

	select {
	case err := <-errCh:
		require.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("in-flight call not failed after connection loss")
	}
}

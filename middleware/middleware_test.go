package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/abk-chicago/flutter/transport"
)

func TestChainOrder(t *testing.T) {
	var trace []string
	tag := func(name string) Middleware {
		return func(next SendFunc) SendFunc {
			return func(ctx context.Context, channel string, msg []byte) ([]byte, error) {
				trace = append(trace, name+".before")
				reply, err := next(ctx, channel, msg)
				trace = append(trace, name+".after")
				return reply, err
			}
		}
	}

	send := Chain(tag("A"), tag("B"), tag("C"))(func(context.Context, string, []byte) ([]byte, error) {
		trace = append(trace, "send")
		return nil, nil
	})

	_, err := send(context.Background(), "ch", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"A.before", "B.before", "C.before", "send", "C.after", "B.after", "A.after"}, trace)
}

func TestWrapDelegatesRegistration(t *testing.T) {
	lb := transport.NewLoopback()
	m := Wrap(lb, Logging(zap.NewNop()))
	ctx := context.Background()

	// A mock installed through the wrapper intercepts wrapped sends.
	m.(transport.MockableMessenger).SetMockMessageHandler("ch", func(context.Context, []byte) ([]byte, error) {
		return []byte("intercepted"), nil
	})
	reply, err := m.Send(ctx, "ch", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, []byte("intercepted"), reply)

	// A real handler installed through the wrapper lands on the inner
	// messenger's inbound path.
	m.SetMessageHandler("inbound", func(_ context.Context, msg []byte) ([]byte, error) {
		return msg, nil
	})
	reply, err = lb.DeliverMessage(ctx, "inbound", []byte("y"))
	require.NoError(t, err)
	assert.Equal(t, []byte("y"), reply)
}

func TestRateLimitRejectsBeyondBurst(t *testing.T) {
	lb := transport.NewLoopback()
	m := Wrap(lb, RateLimit(1, 2))
	ctx := context.Background()

	_, err := m.Send(ctx, "ch", nil)
	require.NoError(t, err)
	_, err = m.Send(ctx, "ch", nil)
	require.NoError(t, err)

	// The burst is spent and no token has refilled yet.
	_, err = m.Send(ctx, "ch", nil)
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestTimeoutAbandonsSlowSend(t *testing.T) {
	lb := transport.NewLoopback()
	lb.SetMockMessageHandler("slow", func(ctx context.Context, _ []byte) ([]byte, error) {
		select {
		case <-time.After(time.Second):
			return []byte("late"), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	m := Wrap(lb, Timeout(20*time.Millisecond))

	start := time.Now()
	_, err := m.Send(context.Background(), "slow", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestRetryOnTransportError(t *testing.T) {
	lb := transport.NewLoopback()
	flaky := errors.New("connection reset")
	attempts := 0
	lb.SetMockMessageHandler("ch", func(context.Context, []byte) ([]byte, error) {
		attempts++
		if attempts < 3 {
			return nil, flaky
		}
		return []byte("ok"), nil
	})
	m := Wrap(lb, Retry(3, time.Millisecond))

	reply, err := m.Send(context.Background(), "ch", nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), reply)
	assert.Equal(t, 3, attempts)
}

func TestRetryGivesUpAfterMaxRetries(t *testing.T) {
	lb := transport.NewLoopback()
	broken := errors.New("connection refused")
	attempts := 0
	lb.SetMockMessageHandler("ch", func(context.Context, []byte) ([]byte, error) {
		attempts++
		return nil, broken
	})
	m := Wrap(lb, Retry(2, time.Millisecond))

	_, err := m.Send(context.Background(), "ch", nil)
	assert.ErrorIs(t, err, broken)
	assert.Equal(t, 3, attempts) // initial attempt + 2 retries
}

func TestRetrySkipsContextErrors(t *testing.T) {
	lb := transport.NewLoopback()
	attempts := 0
	lb.SetMockMessageHandler("ch", func(context.Context, []byte) ([]byte, error) {
		attempts++
		return nil, context.Canceled
	})
	m := Wrap(lb, Retry(5, time.Millisecond))

	_, err := m.Send(context.Background(), "ch", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts, "cancellation must not be retried")
}

func TestLoggingRecordsOutcome(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	lb := transport.NewLoopback()
	lb.SetMockMessageHandler("bad", func(context.Context, []byte) ([]byte, error) {
		return nil, errors.New("broken pipe")
	})
	m := Wrap(lb, Logging(zap.New(core)))
	ctx := context.Background()

	_, _ = m.Send(ctx, "good", []byte("abc"))
	_, _ = m.Send(ctx, "bad", nil)

	entries := logs.All()
	require.Len(t, entries, 2)

	assert.Equal(t, "send", entries[0].Message)
	assert.Equal(t, zap.DebugLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "good", fields["channel"])
	assert.EqualValues(t, 3, fields["bytes"])
	assert.Equal(t, true, fields["reply_absent"])

	assert.Equal(t, "send failed", entries[1].Message)
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
}

package middleware

import (
	"context"
	"errors"
	"time"
)

// Retry retries failed sends up to maxRetries times with exponential
// backoff. Only transport errors are retried: an absent reply or an error
// envelope is a successful round trip as far as the wire is concerned, and
// retrying a context cancellation is pointless.
func Retry(maxRetries int, baseDelay time.Duration) Middleware {
	return func(next SendFunc) SendFunc {
		return func(ctx context.Context, channel string, msg []byte) ([]byte, error) {
			reply, err := next(ctx, channel, msg)
			for i := 0; i < maxRetries && err != nil; i++ {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return reply, err
				}
				select {
				case <-time.After(baseDelay * time.Duration(1<<i)): // Exponential backoff
				case <-ctx.Done():
					return nil, ctx.Err()
				}
				reply, err = next(ctx, channel, msg)
			}
			return reply, err
		}
	}
}

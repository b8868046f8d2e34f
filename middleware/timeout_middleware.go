package middleware

import (
	"context"
	"time"
)

// Timeout bounds every send with a deadline. The messenger's Send observes
// the context, so an expired deadline abandons the pending reply.
func Timeout(timeout time.Duration) Middleware {
	return func(next SendFunc) SendFunc {
		return func(ctx context.Context, channel string, msg []byte) ([]byte, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			return next(ctx, channel, msg)
		}
	}
}

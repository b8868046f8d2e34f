package middleware

import (
	"context"
	"errors"

	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when a send is rejected by RateLimit.
var ErrRateLimited = errors.New("middleware: rate limit exceeded")

// RateLimit rejects sends beyond r per second with bursts of up to burst,
// using a token bucket. One limiter spans every channel going through the
// wrapped messenger.
func RateLimit(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next SendFunc) SendFunc {
		return func(ctx context.Context, channel string, msg []byte) ([]byte, error) {
			if !limiter.Allow() {
				return nil, ErrRateLimited
			}
			return next(ctx, channel, msg)
		}
	}
}

package middleware

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Logging logs every outbound send with its channel, payload size, duration,
// and outcome.
func Logging(logger *zap.Logger) Middleware {
	return func(next SendFunc) SendFunc {
		return func(ctx context.Context, channel string, msg []byte) ([]byte, error) {
			start := time.Now()
			reply, err := next(ctx, channel, msg)
			fields := []zap.Field{
				zap.String("channel", channel),
				zap.Int("bytes", len(msg)),
				zap.Duration("duration", time.Since(start)),
			}
			if err != nil {
				logger.Warn("send failed", append(fields, zap.Error(err))...)
				return reply, err
			}
			logger.Debug("send", append(fields, zap.Bool("reply_absent", reply == nil))...)
			return reply, nil
		}
	}
}

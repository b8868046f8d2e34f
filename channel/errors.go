package channel

import (
	"sync"

	"go.uber.org/zap"
)

// UncaughtErrorHandler receives failures that occur outside any caller's
// awaiting context — for example a failed remote "cancel" after the last
// stream listener is already gone, where there is nobody left to deliver the
// error to.
type UncaughtErrorHandler func(channelName, context string, err error)

var (
	uncaughtMu      sync.RWMutex
	uncaughtHandler UncaughtErrorHandler = defaultUncaughtErrorHandler
)

// SetUncaughtErrorHandler replaces the process-wide error-reporting sink.
// Passing nil restores the default, which logs through the global zap
// logger.
func SetUncaughtErrorHandler(h UncaughtErrorHandler) {
	if h == nil {
		h = defaultUncaughtErrorHandler
	}
	uncaughtMu.Lock()
	uncaughtHandler = h
	uncaughtMu.Unlock()
}

func defaultUncaughtErrorHandler(channelName, context string, err error) {
	zap.L().Error("uncaught platform channel error",
		zap.String("channel", channelName),
		zap.String("context", context),
		zap.Error(err))
}

func reportUncaught(channelName, context string, err error) {
	uncaughtMu.RLock()
	h := uncaughtHandler
	uncaughtMu.RUnlock()
	h(channelName, context, err)
}

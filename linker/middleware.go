package linker

import (
	"context"

	"go.uber.org/zap"
)

// LogCalls returns middleware that logs every mediated call and its final
// outcome at debug level.
func LogCalls[C any](l *zap.Logger) Middleware[C] {
	return func(key InterfaceKey, next AsyncFunc[C]) AsyncFunc[C] {
		return func(ctx context.Context, call *Call[C]) Step {
			l.Debug("bounce call",
				zap.Stringer("key", key),
				zap.Int("args", len(call.Args)),
				zap.Bool("async", call.Frame.Async))
			return observeStep(next(ctx, call), func(s Step) {
				l.Debug("bounce return",
					zap.Stringer("key", key),
					zap.Int("results", len(s.Results)),
					zap.Int("suspensions", call.Frame.Suspensions()),
					zap.Error(s.Err))
			})
		}
	}
}

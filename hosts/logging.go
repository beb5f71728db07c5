package hosts

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wippyai/wasm-trampoline/linker"
)

// Logging is the logger interface version.
const Logging = "test:logging/logger@1.1.1"

// RegisterLogger adds log(level, message). Entries are appended to the
// host context and mirrored to l, which may be nil.
func RegisterLogger(b *linker.Builder[State], l *zap.Logger) error {
	if l == nil {
		l = zap.NewNop()
	}
	l = l.Named("guest")

	return b.Define(Logging+"#log", func(_ context.Context, c *linker.Call[State]) ([]any, error) {
		var e Entry
		switch len(c.Args) {
		case 1:
			e = Entry{Level: LevelInfo, Message: fmt.Sprint(c.Args[0])}
		case 2:
			lvl, ok := parseLevel(c.Args[0])
			if !ok {
				return nil, linker.Abort("log: invalid level %v", c.Args[0])
			}
			e = Entry{Level: lvl, Message: fmt.Sprint(c.Args[1])}
		default:
			return nil, linker.Abort("log takes 1 or 2 arguments, got %d", len(c.Args))
		}

		c.Context.Log = append(c.Context.Log, e)
		l.Check(zapLevel(e.Level), e.Message).Write(zap.Stringer("session", c.Frame.Session))
		return nil, nil
	})
}

func zapLevel(l Level) zapcore.Level {
	switch l {
	case LevelDebug:
		return zapcore.DebugLevel
	case LevelError:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

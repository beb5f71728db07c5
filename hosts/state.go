package hosts

import (
	"fmt"
	"strings"
)

// State is the host context shared by the built-in hosts.
type State struct {
	Count int32
	KV    map[string]any
	Log   []Entry
	// Slept is the total time spent in timer.sleep, in milliseconds.
	Slept int64
}

// NewState returns an empty State.
func NewState() *State {
	return &State{KV: make(map[string]any)}
}

// Entry is one line logged by a guest.
type Entry struct {
	Level   Level
	Message string
}

func (e Entry) String() string {
	return "[" + e.Level.String() + "]: " + e.Message
}

// Level is a guest log level.
type Level uint8

const (
	LevelDebug Level = iota
	LevelInfo
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", uint8(l))
	}
}

// parseLevel accepts a level name or its numeric value.
func parseLevel(v any) (Level, bool) {
	if s, ok := v.(string); ok {
		switch strings.ToLower(s) {
		case "debug":
			return LevelDebug, true
		case "info":
			return LevelInfo, true
		case "error":
			return LevelError, true
		}
		return 0, false
	}
	n, ok := toInt32(v)
	if !ok || n < 0 || n > int32(LevelError) {
		return 0, false
	}
	return Level(n), true
}

func toInt32(v any) (int32, bool) {
	switch n := v.(type) {
	case int32:
		return n, true
	case int:
		return int32(n), true
	case int64:
		return int32(n), true
	case uint32:
		return int32(n), true
	default:
		return 0, false
	}
}

func keyOf(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

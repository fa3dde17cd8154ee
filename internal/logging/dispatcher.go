package logging

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// badKey names a value whose key was missing or not a string.
const badKey = "!BADKEY"

// DispatcherLogger adapts zerolog.Logger to the dispatcher.Logger interface.
// Errors and durations keep their zerolog types; durations are written in
// milliseconds.
type DispatcherLogger struct {
	logger zerolog.Logger
}

// NewDispatcherLogger wraps logger, tagging every line with component=dispatcher.
func NewDispatcherLogger(logger zerolog.Logger) *DispatcherLogger {
	return &DispatcherLogger{logger: logger.With().Str("component", "dispatcher").Logger()}
}

func (l *DispatcherLogger) Debug(msg string, keysAndValues ...any) {
	appendPairs(l.logger.Debug(), keysAndValues).Msg(msg)
}

func (l *DispatcherLogger) Info(msg string, keysAndValues ...any) {
	appendPairs(l.logger.Info(), keysAndValues).Msg(msg)
}

func (l *DispatcherLogger) Error(msg string, keysAndValues ...any) {
	appendPairs(l.logger.Error(), keysAndValues).Msg(msg)
}

// appendPairs adds slog-style key/value pairs to e. A nil event (level
// disabled) is returned untouched.
func appendPairs(e *zerolog.Event, kv []any) *zerolog.Event {
	if e == nil {
		return e
	}
	for i := 0; i < len(kv); i++ {
		key, ok := kv[i].(string)
		if !ok || i+1 == len(kv) {
			e = e.Interface(badKey, kv[i])
			continue
		}
		i++
		switch v := kv[i].(type) {
		case error:
			e = e.AnErr(key, v)
		case time.Duration:
			e = e.Float64(key, float64(v.Microseconds())/1000)
		case string:
			e = e.Str(key, v)
		case int:
			e = e.Int(key, v)
		case fmt.Stringer:
			e = e.Stringer(key, v)
		default:
			e = e.Interface(key, v)
		}
	}
	return e
}

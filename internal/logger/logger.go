package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu   sync.RWMutex
	base = newLogger(os.Stderr, "console", levelFromEnv("info"))
)

// Setup replaces the process logger. format is "json" or "console".
func Setup(level, format string, out io.Writer) {
	if out == nil {
		out = os.Stderr
	}
	l := newLogger(out, format, levelFromEnv(level))
	mu.Lock()
	base = l
	mu.Unlock()
}

// L returns the process logger.
func L() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := base
	return &l
}

// DebugLog writes a formatted debug message.
func DebugLog(format string, args ...any) {
	L().Debug().Msgf(format, args...)
}

func newLogger(out io.Writer, format string, level zerolog.Level) zerolog.Logger {
	var w io.Writer = out
	if format != "json" {
		w = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Str("service", "idscan").Logger()
}

// DEBUG=1 forces debug output regardless of the configured level.
func levelFromEnv(level string) zerolog.Level {
	if os.Getenv("DEBUG") == "1" {
		return zerolog.DebugLevel
	}
	return parseLevel(level)
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

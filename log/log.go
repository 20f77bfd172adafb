// Package log configures the process-wide zerolog logger. Components derive
// child loggers with log.With().Str("component", ...).Logger().
package log

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger so callers can depend on this package alone.
type Logger struct {
	zerolog.Logger
}

// New creates a root logger at the given level. When pretty is true, output is
// human-readable console format instead of JSON.
func New(level string, pretty bool) Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var out io.Writer = os.Stdout
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(out).
		Level(lvl).
		With().
		Timestamp().
		Logger()

	return Logger{logger}
}

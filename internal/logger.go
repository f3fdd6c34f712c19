package internal

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
)

// ParseLogLevel converts a string log level name to a slog.Level.
// Recognized values: "debug", "info", "warning"/"warn", "error", in any case.
// Defaults to slog.LevelInfo for unrecognized values.
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warning", "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		slog.Warn("unknown log level, defaulting to info", "level", level)
		return slog.LevelInfo
	}
}

// NewLogger returns a text logger writing to w. Every record carries a run
// attribute so interleaved output from concurrent invocations can be told apart.
func NewLogger(w io.Writer, level string) *slog.Logger {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLogLevel(level)})
	return slog.New(h).With("run", uuid.NewString()[:8])
}

// SetupLogger configures the default slog logger on stderr with the given level string.
func SetupLogger(level string) {
	slog.SetDefault(NewLogger(os.Stderr, level))
}

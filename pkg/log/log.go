// Package log configures the process-wide slog logger shared by the
// flowdesk binaries.
package log

import (
	"log/slog"
	"os"
)

// Setup installs a text handler on stderr at the given level. Unknown
// levels fall back to info.
func Setup(logLevel string) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		level = slog.LevelInfo
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})

	slog.SetDefault(slog.New(handler).With("app", "flowdesk"))
}

// WithModule tags the default logger with the flowdesk component name
// (api, scheduler, worker).
func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}

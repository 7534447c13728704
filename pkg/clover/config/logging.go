package config

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger builds the root slog logger from LoggingConfig. Components
// derive their own loggers with logger.With("component", ...). The returned
// close func releases the log file, if one was opened; it is a no-op for
// stdout logging.
func NewLogger(cfg LoggingConfig) (*slog.Logger, func()) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stdout
	closeFn := func() {}
	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			out = f
			closeFn = func() { _ = f.Close() }
		}
		// On open failure keep stdout; the daemon must come up regardless.
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler), closeFn
}

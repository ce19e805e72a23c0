// Package logging configures the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Init installs a text handler as slog's default logger. Records go to
// stderr and, when logPath is set, are appended to that file too. The
// returned func closes the file.
func Init(logPath, logLevel string) (func() error, error) {
	var w io.Writer = os.Stderr
	closer := func() error { return nil }
	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o666)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		w = io.MultiWriter(os.Stderr, f)
		closer = f.Close
	}

	level, err := ParseLevel(logLevel)
	slog.SetDefault(New(w, level))
	if err != nil {
		slog.Warn(err.Error())
	}
	slog.Debug("logger configured", "level", level.String(), "file", logPath)
	return closer, nil
}

// New builds a text logger writing to w.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// ParseLevel maps a configuration level name to a slog.Level. Unknown
// names fall back to INFO and report an error.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToUpper(name) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO", "":
		return slog.LevelInfo, nil
	case "WARN":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q, using INFO", name)
	}
}

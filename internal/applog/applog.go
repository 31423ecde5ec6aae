// Package applog routes the client's slog output to daily files under the
// log directory. While a TUI is on screen nothing may reach the terminal,
// so stderr is opt-in for the plain CLI commands.
package applog

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
)

const (
	DefaultPrefix   = "flowcontrol"
	DefaultKeepDays = 7
)

type Options struct {
	Dir      string
	Level    string
	Prefix   string
	KeepDays int
	Stderr   bool
}

// Setup builds the logger, makes it slog's default and sends the stdlib log
// package to the same file. The caller closes the returned Closer on exit.
func Setup(opts Options) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log dir: %w", err)
	}
	sink := NewRotator(opts.Dir, opts.Prefix, opts.KeepDays)

	var out io.Writer = sink
	if opts.Stderr {
		out = io.MultiWriter(sink, os.Stderr)
	}
	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: ParseLevel(opts.Level)}))
	slog.SetDefault(logger)
	log.SetOutput(sink)
	log.SetFlags(0)
	return logger, sink, nil
}

// Component tags records with the subsystem that wrote them, e.g. "push".
func Component(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With("component", name)
}

// ParseLevel reads the log_level setting. Unknown values mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

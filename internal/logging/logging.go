// Package logging builds the structured logger shared by every command.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/survey-engine/pkg/types"
)

// ParseLevel maps a level name to a slog level. Unknown names are an error.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if name == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.ToUpper(name))); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
	return level, nil
}

// Setup returns a logger writing to w and, when cfg.File is set, appending
// to that file as well. Verbose forces debug level. The returned close
// function releases the log file and is never nil.
func Setup(cfg types.LoggingConfig, w io.Writer) (*slog.Logger, func() error, error) {
	noop := func() error { return nil }
	if w == nil {
		w = os.Stderr
	}

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, noop, err
	}
	if cfg.Verbose {
		level = slog.LevelDebug
	}

	closeFn := noop
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, noop, fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, noop, fmt.Errorf("opening log file: %w", err)
		}
		w = io.MultiWriter(w, f)
		closeFn = f.Close
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "", "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		closeFn()
		return nil, noop, fmt.Errorf("unknown log format %q: use text or json", cfg.Format)
	}
	return slog.New(handler), closeFn, nil
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Kunhua Huang 2026

package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// New builds a logger writing to w (stdout when nil). format is "text" or
// "json"; debug level adds source locations.
func New(level, format string, w io.Writer) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	if w == nil {
		w = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl <= slog.LevelDebug,
	}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "", "text":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	return slog.New(handler), nil
}

// Init builds a logger like New and installs it as the slog default.
func Init(level, format string) (*slog.Logger, error) {
	l, err := New(level, format, os.Stdout)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(l)
	return l, nil
}

// Component tags l with the subsystem name.
func Component(l *slog.Logger, name string) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	return l.With("component", name)
}

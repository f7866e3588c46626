package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/m-mizutani/clog"
)

const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// New builds the process logger. JSON is the default; console is for local runs.
func New(service, level, format string) *slog.Logger {
	if strings.EqualFold(strings.TrimSpace(format), FormatConsole) {
		return NewConsoleLogger(service, level, os.Stdout)
	}
	return NewJSONLogger(service, level)
}

func NewJSONLogger(service, level string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	})
	return slog.New(handler).With("service", service)
}

func NewConsoleLogger(service, level string, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	handler := clog.New(
		clog.WithWriter(w),
		clog.WithLevel(parseLevel(level)),
		clog.WithTimeFmt("15:04:05"),
		clog.WithSource(false),
	)
	return slog.New(handler).With("service", service)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

package logger

import (
	"log/slog"
	"os"
	"strings"

	console "github.com/phsym/console-slog"
)

// Init installs the process-wide logger. Pretty output is meant for local
// development; production logs are JSON lines on stdout.
func Init(level string, pretty bool) {
	lvl := parseLevel(level)

	var h slog.Handler
	if pretty {
		h = console.NewHandler(os.Stderr, &console.HandlerOptions{Level: lvl})
	} else {
		h = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(h))

	slog.Info("logger initialized", "level", lvl.String())
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

func attrs(fields map[string]any) []any {
	if len(fields) == 0 {
		return nil
	}
	out := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		out = append(out, k, v)
	}
	return out
}

func Debug(msg string, fields map[string]any) {
	slog.Debug(msg, attrs(fields)...)
}

func Info(msg string, fields map[string]any) {
	slog.Info(msg, attrs(fields)...)
}

func Warn(msg string, fields map[string]any) {
	slog.Warn(msg, attrs(fields)...)
}

func Error(msg string, fields map[string]any) {
	slog.Error(msg, attrs(fields)...)
}

func Fatal(msg string, fields map[string]any) {
	slog.Error(msg, append(attrs(fields), "fatal", true)...)
	os.Exit(1)
}

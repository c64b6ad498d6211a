// Package logger builds the JSON structured logger used by the server.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup returns a JSON slog.Logger writing to w.
func Setup(w io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler)
}

// SetupDefault installs a JSON logger as the process default. Gin's debug mode
// logs at debug level, anything else at info.
func SetupDefault(w io.Writer, ginMode string) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	level := slog.LevelInfo
	if strings.EqualFold(ginMode, "debug") {
		level = slog.LevelDebug
	}
	l := Setup(w, level)
	slog.SetDefault(l)
	return l
}

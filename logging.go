package main

import (
	"io"
	"log/slog"
	"strings"

	"github.com/brawer/globemesh/mesh"
)

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// setupLogging installs the default slog logger. level may be "debug",
// "info", "warn" or "error"; format may be "json" or "text". At debug level
// the mesh package logs through the same handler.
func setupLogging(out io.Writer, level, format string) *slog.Logger {
	lvl := parseLevel(level)
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	if strings.ToLower(format) == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	if lvl <= slog.LevelDebug {
		mesh.SetLogger(logger.With("component", "mesh"))
	} else {
		mesh.SetLogger(nil)
	}
	return logger
}

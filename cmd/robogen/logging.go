package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

func setupLogger(level, format string) *slog.Logger {
	var handler slog.Handler

	// Parse level
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: level == "debug",
	}

	// Create handler based on format
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler).With(
		"service", appName,
		"version", Version,
		"pid", os.Getpid(),
	)
}

// natsLogger adapts slog to the NATS client's logging interface.
type natsLogger struct {
	logger *slog.Logger
}

func (n *natsLogger) Printf(format string, v ...interface{}) {
	n.logger.Info(fmt.Sprintf(format, v...))
}

func (n *natsLogger) Errorf(format string, v ...interface{}) {
	n.logger.Error(fmt.Sprintf(format, v...))
}

func (n *natsLogger) Debugf(format string, v ...interface{}) {
	n.logger.Debug(fmt.Sprintf(format, v...))
}

// Package common contains shared service plumbing: structured logging setup
// and build version information.
package common

import (
	"log/slog"
	"os"
)

// Version is set at build time via -ldflags.
var Version = "dev"

type LoggingOpts struct {
	// Debug lowers the log level to debug.
	Debug bool

	// JSON enables JSON log output.
	JSON bool

	// Service adds a 'service' tag to all log lines.
	Service string

	// Version adds a 'version' tag to all log lines.
	Version string
}

// SetupLogger creates a slog logger per the given options, writing to stdout.
func SetupLogger(opts *LoggingOpts) *slog.Logger {
	logLevel := slog.LevelInfo
	if opts.Debug {
		logLevel = slog.LevelDebug
	}

	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}

	logger := slog.New(handler)
	if opts.Service != "" {
		logger = logger.With("service", opts.Service)
	}
	if opts.Version != "" {
		logger = logger.With("version", opts.Version)
	}
	return logger
}

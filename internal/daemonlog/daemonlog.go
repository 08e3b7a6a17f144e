// Package daemonlog centralizes the daemon's structured logging setup so
// every component logs through the same charmbracelet/log configuration
// (level, timestamp, and caller formatting) instead of each package dialing
// its own.
package daemonlog

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// Logger is the structured logger type used throughout the daemon.
type Logger = log.Logger

// Options configures a daemon-wide logger.
type Options struct {
	Writer         io.Writer
	Level          log.Level
	ReportTimestamp bool
	ReportCaller    bool
	Prefix          string
}

// DefaultOptions returns the daemon's standard logging configuration:
// info level, timestamps on, caller off, writing to stderr.
func DefaultOptions() Options {
	return Options{
		Writer:          os.Stderr,
		Level:           log.InfoLevel,
		ReportTimestamp: true,
		ReportCaller:    false,
	}
}

// New builds a Logger from opts.
func New(opts Options) *Logger {
	l := log.NewWithOptions(opts.Writer, log.Options{
		Level:           opts.Level,
		ReportTimestamp: opts.ReportTimestamp,
		ReportCaller:    opts.ReportCaller,
		Prefix:          opts.Prefix,
	})
	return l
}

// Default builds a Logger using DefaultOptions, optionally scoped under a
// named subsystem prefix (e.g. "vad", "asr", "broadcast").
func Default(component string) *Logger {
	opts := DefaultOptions()
	opts.Prefix = component
	return New(opts)
}

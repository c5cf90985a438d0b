// Package logger provides leveled logging with a split between internal
// (debug-file) messages and user-facing output.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Logger is the logging interface used throughout devtrack. Info, Warning
// and Error are internal messages written to the debug log when enabled;
// the *ToUser variants and Success/StatusMessage are always shown.
type Logger interface {
	Info(format string, args ...interface{})
	Warning(format string, args ...interface{})
	Error(format string, args ...interface{})

	InfoToUser(format string, args ...interface{})
	WarningToUser(format string, args ...interface{})
	Success(format string, args ...interface{})
	StatusMessage(format string, args ...interface{})

	Close() error
}

// DefaultLogger implements Logger over log/slog with an optional file sink.
type DefaultLogger struct {
	mu      sync.Mutex
	slogger *slog.Logger
	enabled bool
	verbose bool
	stdout  io.Writer
	stderr  io.Writer
	file    *os.File
}

// New creates a Logger. When enabled is true, internal messages are
// appended to logFile; verbose additionally mirrors warnings to stdout.
func New(enabled bool, logFile string, verbose bool) Logger {
	return NewWithOutput(enabled, logFile, verbose, os.Stdout, os.Stderr)
}

// NewWithOutput creates a DefaultLogger with custom user-facing writers.
func NewWithOutput(enabled bool, logFile string, verbose bool, stdout, stderr io.Writer) *DefaultLogger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var slogger *slog.Logger
	var file *os.File

	if enabled && logFile != "" {
		if dir := filepath.Dir(logFile); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				_, _ = fmt.Fprintf(stderr, "warning: failed to create log directory: %v\n", err)
			}
		}
		f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err == nil {
			file = f
			slogger = slog.New(slog.NewTextHandler(f, opts))
		} else {
			slogger = slog.New(slog.NewTextHandler(stderr, opts))
			_, _ = fmt.Fprintf(stderr, "warning: failed to open log file: %v, using stderr\n", err)
		}
	} else {
		slogger = slog.New(slog.NewTextHandler(stderr, opts))
	}

	return &DefaultLogger{
		slogger: slogger,
		enabled: enabled,
		verbose: verbose,
		stdout:  stdout,
		stderr:  stderr,
		file:    file,
	}
}

func (l *DefaultLogger) Info(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.enabled {
		return
	}
	l.slogger.Info(fmt.Sprintf(format, args...))
}

func (l *DefaultLogger) Warning(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	msg := fmt.Sprintf(format, args...)
	if l.enabled {
		l.slogger.Warn(msg)
	}
	if l.verbose {
		_, _ = fmt.Fprintf(l.stdout, "warning: %s\n", msg)
	}
}

func (l *DefaultLogger) Error(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	msg := fmt.Sprintf(format, args...)
	if l.enabled {
		l.slogger.Error(msg)
	}
	_, _ = fmt.Fprintf(l.stderr, "error: %s\n", msg)
}

func (l *DefaultLogger) InfoToUser(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	msg := fmt.Sprintf(format, args...)
	if l.enabled {
		l.slogger.Info(msg)
	}
	_, _ = fmt.Fprintf(l.stdout, "%s\n", msg)
}

func (l *DefaultLogger) WarningToUser(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	msg := fmt.Sprintf(format, args...)
	if l.enabled {
		l.slogger.Warn(msg)
	}
	_, _ = fmt.Fprintf(l.stdout, "warning: %s\n", msg)
}

func (l *DefaultLogger) Success(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	msg := fmt.Sprintf(format, args...)
	if l.enabled {
		l.slogger.Info(msg)
	}
	_, _ = fmt.Fprintf(l.stdout, "✓ %s\n", msg)
}

func (l *DefaultLogger) StatusMessage(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = fmt.Fprintf(l.stdout, format+"\n", args...)
}

// Close flushes and closes the debug log file, if one is open.
func (l *DefaultLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		if err := l.file.Sync(); err != nil {
			return err
		}
		return l.file.Close()
	}
	return nil
}

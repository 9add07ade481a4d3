package definition

import (
	"context"
	"log/slog"
	"os"
)

// Logger is the logging abstraction used across the core. Implementations
// can wrap any backend; DefaultLogger wraps log/slog.
type Logger interface {
	Info(v ...interface{})
	Infof(format string, v ...interface{})
	Warn(v ...interface{})
	Warnf(format string, v ...interface{})
	Error(v ...interface{})
	Errorf(format string, v ...interface{})
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})
	Fatal(v ...interface{})
	Fatalf(format string, v ...interface{})

	// ToggleDebug enables or disables debug-level output and returns the
	// new state.
	ToggleDebug(value bool) bool
}

// SlogLogger is the default Logger implementation, backed by a
// *slog.Logger. The library never writes to stdout/stderr unless a
// non-discarding handler is supplied.
type SlogLogger struct {
	inner *slog.Logger
	debug bool
}

var _ Logger = (*SlogLogger)(nil)

// NewSlogLogger wraps the given *slog.Logger.
func NewSlogLogger(l *slog.Logger) *SlogLogger {
	return &SlogLogger{inner: l}
}

// DiscardLogger returns a Logger that drops everything. This is the
// default used when no Logger is configured, matching the library
// convention of staying silent unless explicitly configured.
func DiscardLogger() Logger {
	return NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError + 1, // above Error: nothing is ever logged
	})))
}

func (l *SlogLogger) Info(v ...interface{})                 { l.inner.Info(sprint(v...)) }
func (l *SlogLogger) Infof(format string, v ...interface{}) { l.inner.Info(sprintf(format, v...)) }
func (l *SlogLogger) Warn(v ...interface{})                 { l.inner.Warn(sprint(v...)) }
func (l *SlogLogger) Warnf(format string, v ...interface{}) { l.inner.Warn(sprintf(format, v...)) }
func (l *SlogLogger) Error(v ...interface{})                { l.inner.Error(sprint(v...)) }
func (l *SlogLogger) Errorf(format string, v ...interface{}) {
	l.inner.Error(sprintf(format, v...))
}

func (l *SlogLogger) Debug(v ...interface{}) {
	if l.debug {
		l.inner.Debug(sprint(v...))
	}
}

func (l *SlogLogger) Debugf(format string, v ...interface{}) {
	if l.debug {
		l.inner.Debug(sprintf(format, v...))
	}
}

func (l *SlogLogger) Fatal(v ...interface{}) {
	l.inner.ErrorContext(context.Background(), sprint(v...))
	os.Exit(1)
}

func (l *SlogLogger) Fatalf(format string, v ...interface{}) {
	l.inner.ErrorContext(context.Background(), sprintf(format, v...))
	os.Exit(1)
}

func (l *SlogLogger) ToggleDebug(value bool) bool {
	l.debug = value
	return l.debug
}

// Package log provides the Logger interface used throughout this module,
// so that callers embedding the patcher as a library can supply their own
// implementation (or a no-op one) instead of the logrus-backed default.
package log

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the minimal surface the patcher needs. It mirrors the shape of
// the logrus.FieldLogger methods actually used here, rather than exposing
// logrus types directly, so embedders are never forced onto our logging
// backend.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

type logrusLogger struct {
	entry *logrus.Logger
}

// New returns a Logger backed by logrus, writing to stderr with a plain
// text formatter. level is a logrus level name ("debug", "info", "warn",
// "error"); an unrecognised name falls back to "info".
func New(level string) Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.Formatter = &logrus.TextFormatter{
		FullTimestamp: true,
	}

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	l.SetLevel(parsed)

	return &logrusLogger{entry: l}
}

func (l *logrusLogger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *logrusLogger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *logrusLogger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }
func (l *logrusLogger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }

// nullLogger is a Logger that does nothing. Useful for library embedders
// who already route their own diagnostics and don't want ours interleaved.
type nullLogger struct{}

// NewNull returns a Logger that discards everything.
func NewNull() Logger {
	return nullLogger{}
}

func (nullLogger) Infof(string, ...interface{})  {}
func (nullLogger) Warnf(string, ...interface{})  {}
func (nullLogger) Errorf(string, ...interface{}) {}
func (nullLogger) Debugf(string, ...interface{}) {}

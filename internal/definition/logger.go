// Package definition holds the engine's default, user-replaceable
// collaborators: the logger implementation handed to an Endpoint when the
// caller doesn't supply its own.
package definition

import (
	"os"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
)

// Logger is the logging surface every engine component depends on. Callers
// may plug in their own implementation through socket.WithLogger; this
// interface is intentionally narrow so that wrapping any existing logger
// (zap, zerolog, a test recorder) is a handful of methods.
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
	ToggleDebug(value bool) bool
}

var (
	tagInfo  = color.New(color.FgCyan).SprintFunc()
	tagWarn  = color.New(color.FgYellow).SprintFunc()
	tagError = color.New(color.FgRed, color.Bold).SprintFunc()
	tagDebug = color.New(color.FgMagenta).SprintFunc()
	tagFatal = color.New(color.FgRed, color.Bold, color.Underline).SprintFunc()
)

// DefaultLogger is a logrus-backed Logger used when the caller doesn't
// supply one, colorizing level tags when stderr is a terminal.
type DefaultLogger struct {
	entry *logrus.Entry
	debug bool
}

// NewDefaultLogger builds a DefaultLogger writing to stderr.
func NewDefaultLogger() *DefaultLogger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:          true,
		DisableLevelTruncation: true,
	})
	return &DefaultLogger{entry: logrus.NewEntry(l)}
}

func (l *DefaultLogger) Info(v ...interface{})  { l.entry.Info(tagInfo("[INFO] "), v) }
func (l *DefaultLogger) Infof(format string, v ...interface{}) {
	l.entry.Infof(tagInfo("[INFO] ")+format, v...)
}
func (l *DefaultLogger) Warn(v ...interface{}) { l.entry.Warn(tagWarn("[WARN] "), v) }
func (l *DefaultLogger) Warnf(format string, v ...interface{}) {
	l.entry.Warnf(tagWarn("[WARN] ")+format, v...)
}
func (l *DefaultLogger) Error(v ...interface{}) { l.entry.Error(tagError("[ERROR] "), v) }
func (l *DefaultLogger) Errorf(format string, v ...interface{}) {
	l.entry.Errorf(tagError("[ERROR] ")+format, v...)
}

func (l *DefaultLogger) Debug(v ...interface{}) {
	if l.debug {
		l.entry.Debug(tagDebug("[DEBUG] "), v)
	}
}

func (l *DefaultLogger) Debugf(format string, v ...interface{}) {
	if l.debug {
		l.entry.Debugf(tagDebug("[DEBUG] ")+format, v...)
	}
}

func (l *DefaultLogger) Fatal(v ...interface{}) {
	l.entry.Error(tagFatal("[FATAL] "), v)
	os.Exit(1)
}

func (l *DefaultLogger) Fatalf(format string, v ...interface{}) {
	l.entry.Errorf(tagFatal("[FATAL] ")+format, v...)
	os.Exit(1)
}

// ToggleDebug enables or disables Debug/Debugf output and returns the new state.
func (l *DefaultLogger) ToggleDebug(value bool) bool {
	l.debug = value
	if value {
		l.entry.Logger.SetLevel(logrus.DebugLevel)
	} else {
		l.entry.Logger.SetLevel(logrus.InfoLevel)
	}
	return l.debug
}

// Package definition holds the default, swappable implementations of
// the core's seam interfaces (types.Logger, types.Storage) used when a
// caller does not supply its own.
package definition

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/agobrik/unity-sim-packs-sub001/pkg/replicore/types"
)

// DefaultLogger is the logger used if the caller does not provide its
// own implementation. Grounded on the teacher's
// definition.DefaultLogger, backed by logrus instead of stdlib log so
// every line is field-tagged and leveled.
type DefaultLogger struct {
	entry *logrus.Entry
	debug bool
}

// NewDefaultLogger builds a DefaultLogger writing to stderr in logrus's
// key=value text format with full timestamps.
func NewDefaultLogger() *DefaultLogger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return &DefaultLogger{entry: logrus.NewEntry(l)}
}

// WithField returns a DefaultLogger that tags every subsequent line
// with key=value, useful for scoping a logger to one peer or entity.
func (l *DefaultLogger) WithField(key string, value interface{}) *DefaultLogger {
	return &DefaultLogger{entry: l.entry.WithField(key, value), debug: l.debug}
}

func (l *DefaultLogger) Info(v ...interface{})                    { l.entry.Info(v...) }
func (l *DefaultLogger) Infof(format string, v ...interface{})    { l.entry.Infof(format, v...) }
func (l *DefaultLogger) Warn(v ...interface{})                    { l.entry.Warn(v...) }
func (l *DefaultLogger) Warnf(format string, v ...interface{})    { l.entry.Warnf(format, v...) }
func (l *DefaultLogger) Error(v ...interface{})                   { l.entry.Error(v...) }
func (l *DefaultLogger) Errorf(format string, v ...interface{})   { l.entry.Errorf(format, v...) }

func (l *DefaultLogger) Debug(v ...interface{}) {
	if l.debug {
		l.entry.Debug(v...)
	}
}

func (l *DefaultLogger) Debugf(format string, v ...interface{}) {
	if l.debug {
		l.entry.Debugf(format, v...)
	}
}

func (l *DefaultLogger) ToggleDebug(value bool) bool {
	l.debug = value
	if value {
		l.entry.Logger.SetLevel(logrus.DebugLevel)
	} else {
		l.entry.Logger.SetLevel(logrus.InfoLevel)
	}
	return l.debug
}

var _ types.Logger = (*DefaultLogger)(nil)

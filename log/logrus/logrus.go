// Package logrus adapts a *logrus.Entry to kvcache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"

	"github.com/eaglemoor/kvcache"
)

type Logger struct{ E *logrus.Entry }

var _ kvcache.Logger = Logger{}

// New tags every entry with component=kvcache.
func New(l *logrus.Logger) Logger {
	return Logger{E: l.WithField("component", "kvcache")}
}

func (l Logger) Debug(msg string, f kvcache.Fields) { l.with(f).Debug(msg) }
func (l Logger) Info(msg string, f kvcache.Fields)  { l.with(f).Info(msg) }
func (l Logger) Warn(msg string, f kvcache.Fields)  { l.with(f).Warn(msg) }
func (l Logger) Error(msg string, f kvcache.Fields) { l.with(f).Error(msg) }

// with puts an "err" field under logrus.ErrorKey so formatters render it as the entry error.
func (l Logger) with(f kvcache.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	out := make(logrus.Fields, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok && k == "err" {
			out[logrus.ErrorKey] = err
			continue
		}
		out[k] = v
	}
	return l.E.WithFields(out)
}

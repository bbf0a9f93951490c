// Package zap adapts a *zap.Logger to kvcache.Logger.
package zap

import (
	"go.uber.org/zap"

	"github.com/eaglemoor/kvcache"
)

type Logger struct{ L *zap.Logger }

var _ kvcache.Logger = Logger{}

// New names the logger "kvcache". A nil l gives a no-op logger.
func New(l *zap.Logger) Logger {
	if l == nil {
		l = zap.NewNop()
	}
	return Logger{L: l.Named("kvcache")}
}

func (z Logger) Debug(msg string, f kvcache.Fields) { z.L.Debug(msg, fields(f)...) }
func (z Logger) Info(msg string, f kvcache.Fields)  { z.L.Info(msg, fields(f)...) }
func (z Logger) Warn(msg string, f kvcache.Fields)  { z.L.Warn(msg, fields(f)...) }
func (z Logger) Error(msg string, f kvcache.Fields) { z.L.Error(msg, fields(f)...) }

func fields(f kvcache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, v))
	}
	return out
}

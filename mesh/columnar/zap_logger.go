package columnar

import (
	"strings"

	"go.uber.org/zap"
)

// ZapBadgerLogger adapts a zap logger to badger.Logger
type ZapBadgerLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapBadgerLogger returns a badger logger writing through l
func NewZapBadgerLogger(l *zap.Logger) *ZapBadgerLogger {
	return &ZapBadgerLogger{sugar: l.Named("badger").Sugar()}
}

// Badger terminates most messages with a newline
func trim(format string) string {
	return strings.TrimRight(format, "\n")
}

func (z *ZapBadgerLogger) Errorf(format string, args ...interface{}) {
	z.sugar.Errorf(trim(format), args...)
}

func (z *ZapBadgerLogger) Warningf(format string, args ...interface{}) {
	z.sugar.Warnf(trim(format), args...)
}

func (z *ZapBadgerLogger) Infof(format string, args ...interface{}) {
	z.sugar.Infof(trim(format), args...)
}

func (z *ZapBadgerLogger) Debugf(format string, args ...interface{}) {
	z.sugar.Debugf(trim(format), args...)
}

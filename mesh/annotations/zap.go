package annotations

import (
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapHandler forwards events to a structured logger. Events under error/
// are logged at error level, everything else at debug.
func ZapHandler(logger *zap.Logger) Handler {
	return func(event Event) {
		fields := make([]zap.Field, 0, len(event.Data)+2)
		fields = append(fields, zap.Duration("latency", event.Latency))
		if event.Caller != "" {
			fields = append(fields, zap.String("caller.site", event.Caller))
		}

		keys := make([]string, 0, len(event.Data))
		for k := range event.Data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fields = append(fields, zap.Any(k, event.Data[k]))
		}

		level := zapcore.DebugLevel
		if strings.HasPrefix(event.Name, "error/") {
			level = zapcore.ErrorLevel
		} else if ok, present := event.Data["success"].(bool); present && !ok {
			level = zapcore.WarnLevel
		}
		if ce := logger.Check(level, event.Name); ce != nil {
			ce.Write(fields...)
		}
	}
}

// Tee fans one event out to several handlers. Nil handlers are skipped.
func Tee(handlers ...Handler) Handler {
	var live []Handler
	for _, h := range handlers {
		if h != nil {
			live = append(live, h)
		}
	}
	switch len(live) {
	case 0:
		return nil
	case 1:
		return live[0]
	}
	return func(event Event) {
		for _, h := range live {
			h(event)
		}
	}
}

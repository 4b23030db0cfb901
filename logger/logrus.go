package logger

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// LogrusLogger adapts a logrus logger to the Logger interface.
type LogrusLogger struct {
	base  *logrus.Logger
	entry *logrus.Entry
}

// NewLogrus wraps base. A nil base uses logrus.StandardLogger().
//
// Note: SetLevel changes the level of base and therefore affects every logger sharing it.
func NewLogrus(base *logrus.Logger, level Level) Logger {
	if base == nil {
		base = logrus.StandardLogger()
	}
	base.SetLevel(toLogrusLevel(level))

	return &LogrusLogger{base: base, entry: logrus.NewEntry(base)}
}

func (l *LogrusLogger) Debug(msg string, keysAndValues ...any) {
	l.entry.WithFields(toLogrusFields(keysAndValues)).Debug(msg)
}

func (l *LogrusLogger) Info(msg string, keysAndValues ...any) {
	l.entry.WithFields(toLogrusFields(keysAndValues)).Info(msg)
}

func (l *LogrusLogger) Warn(msg string, keysAndValues ...any) {
	l.entry.WithFields(toLogrusFields(keysAndValues)).Warn(msg)
}

func (l *LogrusLogger) Error(msg string, keysAndValues ...any) {
	l.entry.WithFields(toLogrusFields(keysAndValues)).Error(msg)
}

func (l *LogrusLogger) Fatal(msg string, keysAndValues ...any) {
	l.entry.WithFields(toLogrusFields(keysAndValues)).Fatal(msg)
}

func (l *LogrusLogger) With(keyValues ...any) Logger {
	return &LogrusLogger{base: l.base, entry: l.entry.WithFields(toLogrusFields(keyValues))}
}

func (l *LogrusLogger) Level() Level {
	switch l.base.GetLevel() {
	case logrus.TraceLevel, logrus.DebugLevel:
		return DebugLevel
	case logrus.InfoLevel:
		return InfoLevel
	case logrus.WarnLevel:
		return WarnLevel
	case logrus.ErrorLevel:
		return ErrorLevel
	default:
		return FatalLevel
	}
}

func (l *LogrusLogger) SetLevel(level Level) { l.base.SetLevel(toLogrusLevel(level)) }

// toLogrusFields pairs up alternating keys and values; a dangling key gets the value "!MISSING".
func toLogrusFields(keysAndValues []any) logrus.Fields {
	fields := make(logrus.Fields, len(keysAndValues)/2+1)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		if i+1 < len(keysAndValues) {
			fields[key] = keysAndValues[i+1]
		} else {
			fields[key] = "!MISSING"
		}
	}

	return fields
}

func toLogrusLevel(level Level) logrus.Level {
	switch level {
	case DebugLevel:
		return logrus.DebugLevel
	case InfoLevel:
		return logrus.InfoLevel
	case WarnLevel:
		return logrus.WarnLevel
	case ErrorLevel:
		return logrus.ErrorLevel
	default:
		return logrus.FatalLevel
	}
}

package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger adapts a *zap.Logger to the Logger interface.
type ZapLogger struct {
	sugar *zap.SugaredLogger
	level zap.AtomicLevel
}

// NewZap wraps base, gating records through its own atomic level so SetLevel works
// regardless of how base was built. A nil base builds a production logger.
func NewZap(base *zap.Logger, level Level) Logger {
	if base == nil {
		var err error
		if base, err = zap.NewProduction(); err != nil {
			base = zap.NewNop()
		}
	}

	atom := zap.NewAtomicLevelAt(toZapLevel(level))
	gated := base.WithOptions(zap.AddCallerSkip(1), zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return &levelCore{Core: c, level: atom}
	}))

	return &ZapLogger{sugar: gated.Sugar(), level: atom}
}

func (l *ZapLogger) Debug(msg string, keysAndValues ...any) { l.sugar.Debugw(msg, keysAndValues...) }
func (l *ZapLogger) Info(msg string, keysAndValues ...any)  { l.sugar.Infow(msg, keysAndValues...) }
func (l *ZapLogger) Warn(msg string, keysAndValues ...any)  { l.sugar.Warnw(msg, keysAndValues...) }
func (l *ZapLogger) Error(msg string, keysAndValues ...any) { l.sugar.Errorw(msg, keysAndValues...) }
func (l *ZapLogger) Fatal(msg string, keysAndValues ...any) { l.sugar.Fatalw(msg, keysAndValues...) }

func (l *ZapLogger) With(keyValues ...any) Logger {
	return &ZapLogger{sugar: l.sugar.With(keyValues...), level: l.level}
}

func (l *ZapLogger) Level() Level {
	switch l.level.Level() {
	case zapcore.DebugLevel:
		return DebugLevel
	case zapcore.InfoLevel:
		return InfoLevel
	case zapcore.WarnLevel:
		return WarnLevel
	case zapcore.ErrorLevel:
		return ErrorLevel
	default:
		return FatalLevel
	}
}

func (l *ZapLogger) SetLevel(level Level) { l.level.SetLevel(toZapLevel(level)) }

// levelCore filters entries below the adapter's level before the wrapped core sees them.
type levelCore struct {
	zapcore.Core
	level zap.AtomicLevel
}

func (c *levelCore) Enabled(lvl zapcore.Level) bool {
	return c.level.Enabled(lvl) && c.Core.Enabled(lvl)
}

func (c *levelCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelCore{Core: c.Core.With(fields), level: c.level}
}

func (c *levelCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.level.Enabled(ent.Level) {
		return ce
	}
	return c.Core.Check(ent, ce)
}

func toZapLevel(level Level) zapcore.Level {
	switch level {
	case DebugLevel:
		return zapcore.DebugLevel
	case InfoLevel:
		return zapcore.InfoLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.FatalLevel
	}
}

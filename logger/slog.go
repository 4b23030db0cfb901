package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/phsym/console-slog"
)

// Format selects the slog handler used by NewSlog.
type Format string

const (
	// FormatAuto picks the console handler when ENV=development and JSON otherwise.
	FormatAuto Format = ""
	// FormatJSON writes one JSON object per record.
	FormatJSON Format = "json"
	// FormatConsole writes colored, human readable records.
	FormatConsole Format = "console"
)

type SlogLogger struct {
	mu     sync.Mutex
	logger *slog.Logger
	level  *slog.LevelVar
}

type slogOptions struct {
	output io.Writer
	format Format
}

// SlogOption customizes NewSlog.
type SlogOption func(*slogOptions)

// WithOutput sets the destination of log records. Defaults to os.Stdout.
//
// The CLI passes a lumberjack rotating file here.
func WithOutput(w io.Writer) SlogOption {
	return func(o *slogOptions) {
		if w != nil {
			o.output = w
		}
	}
}

// WithFormat forces a handler format instead of deriving it from the ENV variable.
func WithFormat(f Format) SlogOption {
	return func(o *slogOptions) { o.format = f }
}

// NewSlog create a slog instance
func NewSlog(level Level, addSource bool, opts ...SlogOption) Logger {
	o := &slogOptions{output: os.Stdout}
	for _, opt := range opts {
		opt(o)
	}

	inst := &SlogLogger{level: &slog.LevelVar{}}
	inst.level.Set(toSlogLevel(level))

	format := o.format
	if format == FormatAuto {
		format = FormatJSON
		if os.Getenv("ENV") == "development" {
			format = FormatConsole
		}
	}

	var handler slog.Handler
	if format == FormatConsole {
		handler = console.NewHandler(o.output, &console.HandlerOptions{
			AddSource: addSource,
			Level:     inst.level,
		})
	} else {
		handler = slog.NewJSONHandler(o.output, &slog.HandlerOptions{
			AddSource: addSource,
			Level:     inst.level,
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey {
					a.Key = "ts"
				}
				return a
			},
		})
	}
	inst.logger = slog.New(handler)

	return inst
}

func (l *SlogLogger) Debug(msg string, keysAndValues ...any) {
	l.log(context.Background(), slog.LevelDebug, msg, keysAndValues...)
}

func (l *SlogLogger) Info(msg string, keysAndValues ...any) {
	l.log(context.Background(), slog.LevelInfo, msg, keysAndValues...)
}

func (l *SlogLogger) Warn(msg string, keysAndValues ...any) {
	l.log(context.Background(), slog.LevelWarn, msg, keysAndValues...)
}

func (l *SlogLogger) Error(msg string, keysAndValues ...any) {
	l.log(context.Background(), slog.LevelError, msg, keysAndValues...)
}

func (l *SlogLogger) Fatal(msg string, keysAndValues ...any) {
	l.log(context.Background(), slog.LevelError, msg, keysAndValues...)
	os.Exit(1)
}

func (l *SlogLogger) With(keyValues ...any) Logger {
	return &SlogLogger{
		logger: l.logger.With(keyValues...),
		level:  l.level,
	}
}

func (l *SlogLogger) Level() Level {
	switch lv := l.level.Level(); {
	case lv <= slog.LevelDebug:
		return DebugLevel
	case lv <= slog.LevelInfo:
		return InfoLevel
	case lv <= slog.LevelWarn:
		return WarnLevel
	default:
		return ErrorLevel
	}
}

func (l *SlogLogger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.level.Set(toSlogLevel(level))
}

// log is the low-level logging method for methods that take ...any.
// It must always be called directly by an exported logging method
// or function, because it uses a fixed call depth to obtain the pc.
func (l *SlogLogger) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	if !l.logger.Enabled(ctx, level) {
		return
	}
	var pcs [1]uintptr
	// skip [runtime.Callers, this function, this function's caller]
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	r.Add(args...)
	_ = l.logger.Handler().Handle(ctx, r)
}

func toSlogLevel(level Level) slog.Level {
	switch level {
	case DebugLevel:
		return slog.LevelDebug
	case InfoLevel:
		return slog.LevelInfo
	case WarnLevel:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

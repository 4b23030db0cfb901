package config

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/arloliu/go-saxs/logger"
)

// Log formats accepted in LogConfig.Format.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
	FormatZap     = "zap"
	FormatLogrus  = "logrus"
)

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// Output returns the log destination: a lumberjack rotating file when File is set,
// otherwise stderr. The returned closer releases the file.
func (lc LogConfig) Output() io.WriteCloser {
	if lc.File == "" {
		return nopCloser{os.Stderr}
	}

	return &lumberjack.Logger{
		Filename:   lc.File,
		MaxSize:    lc.MaxSizeMB,
		MaxBackups: lc.MaxBackups,
		MaxAge:     lc.MaxAgeDays,
		Compress:   true,
	}
}

// NewLogger builds the configured logger writing to w.
func (lc LogConfig) NewLogger(w io.Writer) (logger.Logger, error) {
	level, err := logger.ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}

	switch lc.Format {
	case FormatZap:
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.TimeKey = "ts"
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(w), zapcore.DebugLevel)

		return logger.NewZap(zap.New(core), level), nil

	case FormatLogrus:
		base := logrus.New()
		base.SetOutput(w)
		base.SetFormatter(&logrus.JSONFormatter{})

		return logger.NewLogrus(base, level), nil

	case FormatConsole:
		return logger.NewSlog(level, false, logger.WithOutput(w), logger.WithFormat(logger.FormatConsole)), nil

	default:
		return logger.NewSlog(level, false, logger.WithOutput(w), logger.WithFormat(logger.FormatJSON)), nil
	}
}

// Package config loads consumer settings from files and the environment.
//
// Files may be YAML, TOML or JSON. Every key can be overridden by an environment
// variable prefixed with SAXS_, with dots replaced by underscores, e.g.
// SAXS_DATABASE_URL or SAXS_HANDSHAKE_ATTEMPTS.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/arloliu/go-saxs/command"
	"github.com/arloliu/go-saxs/consumer"
	"github.com/arloliu/go-saxs/logger"
	"github.com/arloliu/go-saxs/process"
	"github.com/arloliu/go-saxs/protocol"
	"github.com/arloliu/go-saxs/stream"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "SAXS"

// Config holds every setting of a consumer and its producer.
type Config struct {
	Binary              string            `mapstructure:"binary"`
	Args                []string          `mapstructure:"args"`
	Dir                 string            `mapstructure:"dir"`
	Env                 map[string]string `mapstructure:"env"`
	DatabaseURL         string            `mapstructure:"database_url"`
	DatabaseURLEnv      string            `mapstructure:"database_url_env"`
	VerifyChecksum      bool              `mapstructure:"verify_checksum"`
	MaxPayloadSize      uint64            `mapstructure:"max_payload_size"`
	ExtendedCompression bool              `mapstructure:"extended_compression"`
	StderrTail          int               `mapstructure:"stderr_tail"`
	Handshake           HandshakeConfig   `mapstructure:"handshake"`
	Shutdown            ShutdownConfig    `mapstructure:"shutdown"`
	Log                 LogConfig         `mapstructure:"log"`
}

// HandshakeConfig holds the init handshake settings.
type HandshakeConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Attempts   int           `mapstructure:"attempts"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Ack        []string      `mapstructure:"ack"`
}

// ShutdownConfig holds the producer shutdown timeouts.
type ShutdownConfig struct {
	GracePeriod      time.Duration `mapstructure:"grace_period"`
	TerminateTimeout time.Duration `mapstructure:"terminate_timeout"`
}

// LogConfig selects the logging backend.
type LogConfig struct {
	// Level is one of debug, info, warn, error, fatal.
	Level string `mapstructure:"level"`
	// Format is one of json, console, zap, logrus.
	Format string `mapstructure:"format"`
	// File enables size-based rotation into the given file instead of stdout.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// SetDefaults registers the default of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("binary", consumer.DefaultBinaryPath)
	v.SetDefault("args", []string{})
	v.SetDefault("dir", "")
	v.SetDefault("env", map[string]string{})
	v.SetDefault("database_url", "")
	v.SetDefault("database_url_env", consumer.DefaultDatabaseURLEnv)
	v.SetDefault("verify_checksum", true)
	v.SetDefault("max_payload_size", stream.DefaultMaxPayloadSize)
	v.SetDefault("extended_compression", false)
	v.SetDefault("stderr_tail", process.DefaultStderrTail)

	v.SetDefault("handshake.enabled", false)
	v.SetDefault("handshake.attempts", command.DefaultHandshakeAttempts)
	v.SetDefault("handshake.retry_delay", command.DefaultHandshakeRetryDelay)
	v.SetDefault("handshake.timeout", command.DefaultHandshakeTimeout)
	v.SetDefault("handshake.ack", []string{"ok"})

	v.SetDefault("shutdown.grace_period", process.DefaultGracePeriod)
	v.SetDefault("shutdown.terminate_timeout", process.DefaultTerminateTimeout)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
}

// NewViper returns a viper instance with defaults and environment overrides configured.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads the configuration file at path, which may be empty, and applies the
// environment overrides.
func Load(path string) (*Config, error) {
	v := NewViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, protocol.NewConfigError(protocol.ErrInvalidConfig, "read %s: %v", path, err)
		}
	}

	return FromViper(v)
}

// FromViper decodes the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, protocol.NewConfigError(protocol.ErrInvalidConfig, "decode: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks values that the consumer options cannot check on their own.
func (c *Config) Validate() error {
	var errs []error

	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}

	switch c.Log.Format {
	case FormatJSON, FormatConsole, FormatZap, FormatLogrus:
	default:
		errs = append(errs, fmt.Errorf("log.format: unknown format %q", c.Log.Format))
	}

	if len(errs) > 0 {
		return protocol.NewConfigError(protocol.ErrInvalidConfig, "%v", errors.Join(errs...))
	}

	return nil
}

// ConnOptions converts the configuration into consumer options. l may be nil to keep
// the default logger.
func (c *Config) ConnOptions(l logger.Logger) []consumer.ConnOption {
	opts := []consumer.ConnOption{
		consumer.WithArgs(c.Args...),
		consumer.WithDir(c.Dir),
		consumer.WithDatabaseURL(c.DatabaseURL),
		consumer.WithDatabaseURLEnv(c.DatabaseURLEnv),
		consumer.WithVerifyChecksum(c.VerifyChecksum),
		consumer.WithMaxPayloadSize(c.MaxPayloadSize),
		consumer.WithExtendedCompression(c.ExtendedCompression),
		consumer.WithStderrTail(c.StderrTail),
		consumer.WithHandshake(c.Handshake.Enabled),
		consumer.WithHandshakeAttempts(c.Handshake.Attempts),
		consumer.WithHandshakeRetryDelay(c.Handshake.RetryDelay),
		consumer.WithHandshakeTimeout(c.Handshake.Timeout),
		consumer.WithAckStatuses(c.Handshake.Ack...),
		consumer.WithGracePeriod(c.Shutdown.GracePeriod),
		consumer.WithTerminateTimeout(c.Shutdown.TerminateTimeout),
	}

	for key, value := range c.Env {
		opts = append(opts, consumer.WithEnv(strings.ToUpper(key), value))
	}

	if l != nil {
		opts = append(opts, consumer.WithLogger(l))
	}

	return opts
}

// ConnectionConfig builds the consumer configuration.
func (c *Config) ConnectionConfig(l logger.Logger) (*consumer.ConnectionConfig, error) {
	return consumer.NewConnectionConfig(c.Binary, c.ConnOptions(l)...)
}

package consumer

import (
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/arloliu/go-saxs/command"
	"github.com/arloliu/go-saxs/logger"
	"github.com/arloliu/go-saxs/process"
	"github.com/arloliu/go-saxs/protocol"
	"github.com/arloliu/go-saxs/stream"
)

// Defaults of a ConnectionConfig.
const (
	DefaultBinaryPath     = "./dbreader"
	DefaultDatabaseURLEnv = "DATABASE_URL"
)

// ConnectionConfig represents the configuration of a consumer and the producer process
// it supervises.
type ConnectionConfig struct {
	mu sync.RWMutex

	// binaryPath is the producer executable, resolved through PATH when it has no separator.
	// Defaults to "./dbreader".
	binaryPath string
	args       []string
	dir        string
	// env holds extra KEY=VALUE pairs for the producer, applied at start only.
	env []string

	// databaseURL is the data source passed to the producer in the databaseURLEnv variable.
	// Empty means the producer inherits whatever the current environment holds.
	databaseURL string
	// databaseURLEnv is the name of the variable carrying databaseURL.
	// Defaults to "DATABASE_URL".
	databaseURLEnv string

	// verifyChecksum enables CRC32 verification of every frame.
	// Defaults to true.
	verifyChecksum bool
	// maxPayloadSize bounds the declared payload length of a frame.
	// Defaults to 256 MiB.
	maxPayloadSize uint64
	// extendedCompression additionally accepts the Snappy and Brotli compression codes.
	// Defaults to false.
	extendedCompression bool

	// handshake enables the init handshake after the producer started.
	// Defaults to false.
	handshake bool
	// handshakeAttempts defines how many init commands are sent before giving up.
	// Defaults to 3.
	handshakeAttempts int
	// handshakeRetryDelay defines the fixed pause between handshake attempts.
	// Defaults to 100 milliseconds.
	handshakeRetryDelay time.Duration
	// handshakeTimeout bounds the wait for each handshake reply.
	// Defaults to 5 seconds.
	handshakeTimeout time.Duration
	// ackStatuses lists the reply status values accepted as an acknowledgement.
	// Defaults to "ok".
	ackStatuses []string

	// gracePeriod defines how long the producer may take to exit after its stdin closed.
	// Defaults to 2 seconds.
	gracePeriod time.Duration
	// terminateTimeout defines how long the producer may take to exit after SIGTERM
	// before it is killed.
	// Defaults to 3 seconds.
	terminateTimeout time.Duration
	// stderrTail defines how many recent producer stderr lines are kept.
	// Defaults to 64.
	stderrTail int

	logger logger.Logger
}

// NewConnectionConfig creates a configuration for the producer at binaryPath with the
// given options applied over the defaults. An empty binaryPath selects DefaultBinaryPath.
//
// Invalid options fail with a ConfigError wrapping protocol.ErrInvalidConfig.
func NewConnectionConfig(binaryPath string, opts ...ConnOption) (*ConnectionConfig, error) {
	if binaryPath == "" {
		binaryPath = DefaultBinaryPath
	}

	cfg := &ConnectionConfig{
		binaryPath:          binaryPath,
		databaseURLEnv:      DefaultDatabaseURLEnv,
		verifyChecksum:      true,
		maxPayloadSize:      stream.DefaultMaxPayloadSize,
		handshakeAttempts:   command.DefaultHandshakeAttempts,
		handshakeRetryDelay: command.DefaultHandshakeRetryDelay,
		handshakeTimeout:    command.DefaultHandshakeTimeout,
		ackStatuses:         []string{"ok"},
		gracePeriod:         process.DefaultGracePeriod,
		terminateTimeout:    process.DefaultTerminateTimeout,
		stderrTail:          process.DefaultStderrTail,
		logger:              logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return cfg, err
		}
	}

	return cfg, nil
}

// BinaryPath returns the producer executable path.
func (cfg *ConnectionConfig) BinaryPath() string {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.binaryPath
}

// VerifyChecksum reports whether frame checksums are verified.
func (cfg *ConnectionConfig) VerifyChecksum() bool {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.verifyChecksum
}

// HandshakeEnabled reports whether the init handshake runs at start.
func (cfg *ConnectionConfig) HandshakeEnabled() bool {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.handshake
}

// Logger returns the configured logger.
func (cfg *ConnectionConfig) Logger() logger.Logger {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return cfg.logger
}

func (cfg *ConnectionConfig) processOptions() []process.Option {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	opts := []process.Option{
		process.WithArgs(cfg.args...),
		process.WithDir(cfg.dir),
		process.WithGracePeriod(cfg.gracePeriod),
		process.WithTerminateTimeout(cfg.terminateTimeout),
		process.WithStderrTail(cfg.stderrTail),
		process.WithLogger(cfg.logger),
	}

	if cfg.databaseURL != "" {
		opts = append(opts, process.WithEnv(cfg.databaseURLEnv, cfg.databaseURL))
	}
	for _, kv := range cfg.env {
		key, value, _ := strings.Cut(kv, "=")
		opts = append(opts, process.WithEnv(key, value))
	}

	return opts
}

func (cfg *ConnectionConfig) handshakeOptions() []command.HandshakeOption {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	return []command.HandshakeOption{
		command.WithAttempts(cfg.handshakeAttempts),
		command.WithRetryDelay(cfg.handshakeRetryDelay),
		command.WithReplyTimeout(cfg.handshakeTimeout),
		command.WithAckStatuses(cfg.ackStatuses...),
		command.WithHandshakeLogger(cfg.logger),
	}
}

// ConnOption represents a functional option for configuring a ConnectionConfig.
type ConnOption interface {
	apply(*ConnectionConfig) error
}

type connOptFunc struct {
	name      string
	applyFunc func(*ConnectionConfig) error
}

func (c *connOptFunc) apply(cfg *ConnectionConfig) error {
	if cfg == nil {
		return protocol.NewConfigError(protocol.ErrInvalidConfig, "%s: nil configuration", c.name)
	}

	cfg.mu.Lock()
	defer cfg.mu.Unlock()

	return c.applyFunc(cfg)
}

func newConnOptFunc(name string, f func(*ConnectionConfig) error) *connOptFunc {
	return &connOptFunc{name: name, applyFunc: f}
}

func invalid(name string, format string, args ...any) error {
	return protocol.NewConfigError(protocol.ErrInvalidConfig, name+": "+format, args...)
}

// WithArgs sets the producer's command line arguments.
func WithArgs(args ...string) ConnOption {
	return newConnOptFunc("WithArgs", func(cfg *ConnectionConfig) error {
		cfg.args = slices.Clone(args)
		return nil
	})
}

// WithDir sets the producer's working directory.
func WithDir(dir string) ConnOption {
	return newConnOptFunc("WithDir", func(cfg *ConnectionConfig) error {
		cfg.dir = dir
		return nil
	})
}

// WithEnv adds an environment variable to the producer's environment.
func WithEnv(key, value string) ConnOption {
	return newConnOptFunc("WithEnv", func(cfg *ConnectionConfig) error {
		if key == "" || strings.ContainsAny(key, "=\x00") {
			return invalid("WithEnv", "invalid variable name %q", key)
		}
		cfg.env = append(cfg.env, key+"="+value)

		return nil
	})
}

// WithDatabaseURL sets the data source handed to the producer.
func WithDatabaseURL(url string) ConnOption {
	return newConnOptFunc("WithDatabaseURL", func(cfg *ConnectionConfig) error {
		cfg.databaseURL = url
		return nil
	})
}

// WithDatabaseURLEnv sets the name of the variable carrying the data source.
func WithDatabaseURLEnv(name string) ConnOption {
	return newConnOptFunc("WithDatabaseURLEnv", func(cfg *ConnectionConfig) error {
		if name == "" || strings.ContainsAny(name, "=\x00") {
			return invalid("WithDatabaseURLEnv", "invalid variable name %q", name)
		}
		cfg.databaseURLEnv = name

		return nil
	})
}

// WithVerifyChecksum enables or disables CRC32 verification.
func WithVerifyChecksum(verify bool) ConnOption {
	return newConnOptFunc("WithVerifyChecksum", func(cfg *ConnectionConfig) error {
		cfg.verifyChecksum = verify
		return nil
	})
}

// WithMaxPayloadSize sets the largest accepted payload length, between 1 byte and 4 GiB.
// It bounds both the bytes on the wire and the decompressed payload.
func WithMaxPayloadSize(n uint64) ConnOption {
	return newConnOptFunc("WithMaxPayloadSize", func(cfg *ConnectionConfig) error {
		if n == 0 || n > 4<<30 {
			return invalid("WithMaxPayloadSize", "%d out of range", n)
		}
		cfg.maxPayloadSize = n

		return nil
	})
}

// WithExtendedCompression accepts the Snappy and Brotli extension codes.
func WithExtendedCompression(enabled bool) ConnOption {
	return newConnOptFunc("WithExtendedCompression", func(cfg *ConnectionConfig) error {
		cfg.extendedCompression = enabled
		return nil
	})
}

// WithHandshake enables or disables the init handshake.
func WithHandshake(enabled bool) ConnOption {
	return newConnOptFunc("WithHandshake", func(cfg *ConnectionConfig) error {
		cfg.handshake = enabled
		return nil
	})
}

// WithHandshakeAttempts sets the number of handshake attempts, between 1 and 100.
func WithHandshakeAttempts(n int) ConnOption {
	return newConnOptFunc("WithHandshakeAttempts", func(cfg *ConnectionConfig) error {
		if n < 1 || n > 100 {
			return invalid("WithHandshakeAttempts", "%d out of range [1, 100]", n)
		}
		cfg.handshakeAttempts = n

		return nil
	})
}

// WithHandshakeRetryDelay sets the pause between handshake attempts, at most 1 minute.
func WithHandshakeRetryDelay(d time.Duration) ConnOption {
	return newConnOptFunc("WithHandshakeRetryDelay", func(cfg *ConnectionConfig) error {
		if d < 0 || d > time.Minute {
			return invalid("WithHandshakeRetryDelay", "%s out of range", d)
		}
		cfg.handshakeRetryDelay = d

		return nil
	})
}

// WithHandshakeTimeout sets the wait for each handshake reply, between 1ms and 5 minutes.
func WithHandshakeTimeout(d time.Duration) ConnOption {
	return newConnOptFunc("WithHandshakeTimeout", func(cfg *ConnectionConfig) error {
		if d < time.Millisecond || d > 5*time.Minute {
			return invalid("WithHandshakeTimeout", "%s out of range", d)
		}
		cfg.handshakeTimeout = d

		return nil
	})
}

// WithAckStatuses sets the reply status values accepted by the handshake.
func WithAckStatuses(statuses ...string) ConnOption {
	return newConnOptFunc("WithAckStatuses", func(cfg *ConnectionConfig) error {
		if len(statuses) == 0 {
			return invalid("WithAckStatuses", "at least one status is required")
		}
		cfg.ackStatuses = slices.Clone(statuses)

		return nil
	})
}

// WithGracePeriod sets how long the producer may take to exit after stdin closes.
func WithGracePeriod(d time.Duration) ConnOption {
	return newConnOptFunc("WithGracePeriod", func(cfg *ConnectionConfig) error {
		if d < 0 {
			return invalid("WithGracePeriod", "negative duration %s", d)
		}
		cfg.gracePeriod = d

		return nil
	})
}

// WithTerminateTimeout sets how long the producer may take to exit after SIGTERM.
func WithTerminateTimeout(d time.Duration) ConnOption {
	return newConnOptFunc("WithTerminateTimeout", func(cfg *ConnectionConfig) error {
		if d < 0 {
			return invalid("WithTerminateTimeout", "negative duration %s", d)
		}
		cfg.terminateTimeout = d

		return nil
	})
}

// WithStderrTail sets how many recent producer stderr lines are kept.
func WithStderrTail(lines int) ConnOption {
	return newConnOptFunc("WithStderrTail", func(cfg *ConnectionConfig) error {
		if lines < 0 {
			return invalid("WithStderrTail", "negative line count %d", lines)
		}
		cfg.stderrTail = lines

		return nil
	})
}

// WithLogger sets the logger used by the consumer and its components.
func WithLogger(l logger.Logger) ConnOption {
	return newConnOptFunc("WithLogger", func(cfg *ConnectionConfig) error {
		if l == nil {
			return invalid("WithLogger", "nil logger")
		}
		cfg.logger = l

		return nil
	})
}

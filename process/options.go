package process

import (
	"time"

	"github.com/arloliu/go-saxs/logger"
)

// Default supervisor settings.
const (
	DefaultGracePeriod      = 2 * time.Second
	DefaultTerminateTimeout = 3 * time.Second
	DefaultStderrTail       = 64
)

type options struct {
	args             []string
	env              []string
	dir              string
	gracePeriod      time.Duration
	terminateTimeout time.Duration
	stderrTail       int
	logger           logger.Logger
}

func defaultOptions() options {
	return options{
		gracePeriod:      DefaultGracePeriod,
		terminateTimeout: DefaultTerminateTimeout,
		stderrTail:       DefaultStderrTail,
	}
}

// Option configures a Supervisor.
type Option func(*options)

// WithArgs sets the command line arguments passed to the executable.
func WithArgs(args ...string) Option {
	return func(o *options) { o.args = append([]string(nil), args...) }
}

// WithEnv adds an environment variable to the child's environment, on top of the
// environment of the current process. It only takes effect at start.
func WithEnv(key, value string) Option {
	return func(o *options) { o.env = append(o.env, key+"="+value) }
}

// WithDir sets the working directory of the child.
func WithDir(dir string) Option {
	return func(o *options) { o.dir = dir }
}

// WithGracePeriod sets how long Stop waits for the child to exit after closing its stdin.
func WithGracePeriod(d time.Duration) Option {
	return func(o *options) { o.gracePeriod = d }
}

// WithTerminateTimeout sets how long Stop waits after the terminate signal before killing.
func WithTerminateTimeout(d time.Duration) Option {
	return func(o *options) { o.terminateTimeout = d }
}

// WithStderrTail sets how many of the most recent stderr lines are kept. Zero keeps none.
func WithStderrTail(lines int) Option {
	return func(o *options) { o.stderrTail = lines }
}

// WithLogger sets the logger. Defaults to logger.GetLogger().
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

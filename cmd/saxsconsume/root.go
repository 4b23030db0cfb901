package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/arloliu/go-saxs/config"
	"github.com/arloliu/go-saxs/consumer"
	"github.com/arloliu/go-saxs/logger"
)

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"binary":       "binary",
	"database-url": "database_url",
	"verify-crc":   "verify_checksum",
	"handshake":    "handshake.enabled",
	"log-level":    "log.level",
	"log-format":   "log.format",
	"log-file":     "log.file",
}

type rootFlags struct {
	configPath string
	maxSamples int
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "saxsconsume [flags] [-- producer args]",
		Short: "Consume the SAXS sample stream of a producer process",
		Long: `saxsconsume starts a producer binary, optionally performs the init handshake,
and prints every (Sample, FlowMetadata) pair it streams.

Examples:
  saxsconsume --binary ./dbreader --database-url postgres://localhost/saxs
  saxsconsume -c saxs.yaml --max-samples 10
  saxsconsume --binary ./saxsproducer -- --count 5 --compression zstd`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags.configPath, cmd.Flags())
			if err != nil {
				return err
			}
			if len(args) > 0 {
				cfg.Args = append(cfg.Args, args...)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
			defer stop()

			return run(ctx, cfg, flags.maxSamples, cmd.OutOrStdout())
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.configPath, "config", "c", "", "configuration file (yaml, toml or json)")
	f.IntVarP(&flags.maxSamples, "max-samples", "n", 0, "stop after this many samples, 0 for no limit")
	f.String("binary", consumer.DefaultBinaryPath, "producer executable")
	f.String("database-url", "", "data source handed to the producer")
	f.Bool("verify-crc", true, "verify the CRC32 footer of every frame")
	f.Bool("handshake", false, "perform the init handshake before streaming")
	f.String("log-level", "info", "log level: debug, info, warn, error")
	f.String("log-format", config.FormatJSON, "log format: json, console, zap, logrus")
	f.String("log-file", "", "write logs to a rotating file instead of stderr")

	return cmd
}

// loadConfig merges defaults, the configuration file, SAXS_* variables and the flags
// that were set explicitly, in increasing priority.
func loadConfig(path string, flags *pflag.FlagSet) (*config.Config, error) {
	v := config.NewViper()
	for name, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) {
				return nil, fmt.Errorf("config file %s not found", path)
			}

			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	return config.FromViper(v)
}

func run(ctx context.Context, cfg *config.Config, maxSamples int, out io.Writer) error {
	logOut := cfg.Log.Output()
	defer logOut.Close()

	l, err := cfg.Log.NewLogger(logOut)
	if err != nil {
		return err
	}
	logger.SetLogger(l)

	connCfg, err := cfg.ConnectionConfig(l)
	if err != nil {
		return err
	}

	c := consumer.NewConsumer(connCfg)
	defer c.Close()

	h := consumer.NewPrintHandler(out, maxSamples)
	if err := c.Run(ctx, h, consumer.WithSampleLimit(maxSamples)); err != nil {
		for _, line := range c.StderrTail() {
			l.Warn("producer stderr", "line", line)
		}

		return err
	}

	m := c.Metrics()
	l.Info("stream finished",
		"samples", h.Count(),
		"frames", m.FrameCount.Load(),
		"bytes", m.ByteCount.Load(),
		"checksumErrors", m.ChecksumErrCount.Load(),
	)

	return nil
}

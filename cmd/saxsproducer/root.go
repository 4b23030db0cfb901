package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/arloliu/go-saxs/command"
	"github.com/arloliu/go-saxs/compression"
	"github.com/arloliu/go-saxs/logger"
	"github.com/arloliu/go-saxs/protocol"
	"github.com/arloliu/go-saxs/stream"
)

type rootFlags struct {
	count       int
	points      int
	qMin        float64
	qMax        float64
	noise       float64
	interval    time.Duration
	compression string
	waitInit    bool
	logLevel    string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "saxsproducer",
		Short: "Stream synthetic SAXS profiles on stdout",
		Long: `saxsproducer writes Combined messages carrying synthetic scattering profiles
to stdout and answers commands read from stdin.

Examples:
  saxsproducer --count 100 --compression zstd
  saxsproducer --count 0 --interval 100ms --wait-init`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			level, err := logger.ParseLevel(flags.logLevel)
			if err != nil {
				return err
			}
			l := logger.NewSlog(level, false, logger.WithOutput(os.Stderr), logger.WithFormat(logger.FormatJSON))

			code, err := protocol.ParseCompressionType(flags.compression)
			if err != nil {
				return err
			}

			gen, err := newGenerator(flags.points, flags.qMin, flags.qMax, flags.noise)
			if err != nil {
				return err
			}

			p := &producer{
				w: stream.NewWriter(os.Stdout,
					stream.WithCompression(code),
					stream.WithWriterRegistry(compression.NewRegistry(compression.WithExtendedCodecs())),
				),
				cmds:     command.NewReader(os.Stdin),
				gen:      gen,
				count:    flags.count,
				interval: flags.interval,
				waitInit: flags.waitInit,
				logger:   l,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return p.run(ctx)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&flags.count, "count", "n", 10, "number of profiles, 0 streams until stopped")
	f.IntVar(&flags.points, "points", 512, "points per profile")
	f.Float64Var(&flags.qMin, "q-min", 0.005, "lowest q value")
	f.Float64Var(&flags.qMax, "q-max", 0.5, "highest q value")
	f.Float64Var(&flags.noise, "noise", 2, "standard deviation of the intensity noise")
	f.DurationVar(&flags.interval, "interval", 0, "pause between profiles")
	f.StringVar(&flags.compression, "compression", "none", "payload compression: none, lz4, zstd, snappy, brotli")
	f.BoolVar(&flags.waitInit, "wait-init", false, "wait for the init command before streaming")
	f.StringVar(&flags.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	return cmd
}

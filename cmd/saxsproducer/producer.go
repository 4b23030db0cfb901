package main

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/arloliu/go-saxs/command"
	"github.com/arloliu/go-saxs/internal/pool"
	"github.com/arloliu/go-saxs/logger"
	"github.com/arloliu/go-saxs/payload"
	"github.com/arloliu/go-saxs/stream"
)

type producer struct {
	w        *stream.Writer
	cmds     *command.Reader
	gen      *generator
	count    int
	interval time.Duration
	waitInit bool
	logger   logger.Logger
}

// run streams count profiles, or profiles until stopped when count is zero. It returns
// nil when stdin closes, a stop command arrives or ctx is cancelled.
func (p *producer) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	initDone := make(chan struct{})
	var once sync.Once
	go p.serveCommands(cancel, func() { once.Do(func() { close(initDone) }) })

	if p.waitInit {
		select {
		case <-initDone:
		case <-ctx.Done():
			return nil
		}
	}

	for i := 0; p.count == 0 || i < p.count; i++ {
		if ctx.Err() != nil {
			p.logger.Info("stream interrupted", "sent", i)
			return nil
		}

		s, f, err := p.gen.next(i)
		if err != nil {
			return err
		}
		if err := p.w.WriteCombined(s, f); err != nil {
			return err
		}

		if p.interval > 0 {
			if err := pool.Sleep(ctx, p.interval); err != nil {
				p.logger.Info("stream interrupted", "sent", i+1)
				return nil
			}
		}
	}

	m := p.w.Metrics()
	p.logger.Info("stream finished", "frames", m.FrameCount.Load(), "bytes", m.ByteCount.Load())

	return nil
}

func (p *producer) serveCommands(cancel context.CancelFunc, initialized func()) {
	defer cancel()

	for {
		cmd, err := p.cmds.ReadCommand()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				p.logger.Warn("read command failed", "error", err)
			}

			return
		}

		switch name := command.Name(cmd); name {
		case command.InitCommand:
			if err := p.w.WriteControl(payload.NewMap("status", "ok")); err != nil {
				p.logger.Error("init reply failed", "error", err)
				return
			}
			initialized()
		case command.StopCommand:
			p.logger.Info("stop requested")
			return
		default:
			p.logger.Warn("unknown command", "cmd", name)
		}
	}
}

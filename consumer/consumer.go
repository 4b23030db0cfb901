package consumer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-saxs/command"
	"github.com/arloliu/go-saxs/compression"
	"github.com/arloliu/go-saxs/logger"
	"github.com/arloliu/go-saxs/message"
	"github.com/arloliu/go-saxs/payload"
	"github.com/arloliu/go-saxs/process"
	"github.com/arloliu/go-saxs/stream"
)

var (
	// ErrAlreadyConsumed is reported when the stream of a consumer is iterated twice.
	ErrAlreadyConsumed = errors.New("stream already consumed")

	// ErrNotStarted is returned by operations that need a started consumer.
	ErrNotStarted = errors.New("consumer not started")

	// ErrAlreadyStarted is returned by Start on a consumer that was already started.
	ErrAlreadyStarted = errors.New("consumer already started")
)

// Consumer reads the stream of one producer process.
type Consumer struct {
	cfg     *ConnectionConfig
	logger  logger.Logger
	metrics *stream.Metrics

	mu      sync.Mutex
	started bool
	sv      *process.Supervisor
	reader  *stream.Reader
	ch      *command.Channel

	consumed atomic.Bool
	errMu    sync.Mutex
	err      error
}

// NewConsumer returns a consumer for cfg. A nil cfg uses the defaults.
func NewConsumer(cfg *ConnectionConfig) *Consumer {
	if cfg == nil {
		cfg, _ = NewConnectionConfig("")
	}

	return &Consumer{
		cfg:     cfg,
		logger:  cfg.Logger(),
		metrics: stream.NewMetrics(),
	}
}

// Start launches the producer and, when enabled, performs the init handshake.
// A failed handshake stops the producer before returning.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return ErrAlreadyStarted
	}

	cfg := c.cfg
	sv := process.NewSupervisor(cfg.BinaryPath(), cfg.processOptions()...)
	if err := sv.Start(); err != nil {
		return err
	}

	cfg.mu.RLock()
	regOpts := []compression.RegistryOption{compression.WithMaxDecompressedSize(int(cfg.maxPayloadSize))}
	if cfg.extendedCompression {
		regOpts = append(regOpts, compression.WithExtendedCodecs())
	}
	readerOpts := []stream.ReaderOption{
		stream.WithVerifyChecksum(cfg.verifyChecksum),
		stream.WithMaxPayloadSize(cfg.maxPayloadSize),
		stream.WithReaderLogger(cfg.logger),
		stream.WithMetrics(c.metrics),
	}
	cfg.mu.RUnlock()
	readerOpts = append(readerOpts, stream.WithRegistry(compression.NewRegistry(regOpts...)))

	c.sv = sv
	c.reader = stream.NewReader(sv.Stdout(), readerOpts...)
	c.ch = command.NewChannel(sv.Stdin(), sv.IsRunning)
	c.started = true

	if cfg.HandshakeEnabled() {
		if err := command.Handshake(ctx, c.ch, c.reader, cfg.handshakeOptions()...); err != nil {
			_ = sv.Stop()
			return err
		}
	}

	c.logger.Info("consumer started", "method", "Start", "pid", sv.Pid(), "handshake", cfg.HandshakeEnabled())

	return nil
}

// Close stops the producer and releases its pipes. It is idempotent.
func (c *Consumer) Close() error {
	sv := c.supervisor()
	if sv == nil {
		return nil
	}

	return sv.Stop()
}

// SendCommand sends a command to the producer's stdin.
func (c *Consumer) SendCommand(cmd payload.Map) error {
	c.mu.Lock()
	ch := c.ch
	c.mu.Unlock()

	if ch == nil {
		return ErrNotStarted
	}

	return ch.Send(cmd)
}

// Metrics returns the stream metrics.
func (c *Consumer) Metrics() *stream.Metrics { return c.metrics }

// StderrTail returns the most recent stderr lines of the producer.
func (c *Consumer) StderrTail() []string {
	sv := c.supervisor()
	if sv == nil {
		return nil
	}

	return sv.StderrTail()
}

// State returns the lifecycle state of the producer process.
func (c *Consumer) State() process.State {
	sv := c.supervisor()
	if sv == nil {
		return process.NotStartedState
	}

	return sv.State()
}

// Err returns the error that ended the last Samples iteration, nil after a clean end.
func (c *Consumer) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()

	return c.err
}

func (c *Consumer) setErr(err error) {
	c.errMu.Lock()
	defer c.errMu.Unlock()

	c.err = err
}

func (c *Consumer) supervisor() *process.Supervisor {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.sv
}

// Messages returns every decoded message, in stream order.
//
// The sequence ends after the clean end of the stream, or after yielding a terminal
// error. A terminal read error also stops the producer. Cancelling ctx stops the producer to unblock a pending read, and the sequence
// then yields ctx's error. The stream can be iterated only once.
func (c *Consumer) Messages(ctx context.Context) iter.Seq2[*message.Message, error] {
	return func(yield func(*message.Message, error) bool) {
		err := c.iterate(ctx, func(msg *message.Message) bool {
			return yield(msg, nil)
		})
		if err != nil {
			yield(nil, err)
		}
	}
}

// Samples returns the (Sample, FlowMetadata) pairs of the stream.
//
// Sample messages are paired with an empty FlowMetadata; FlowMetadata-only, control and
// unknown messages are skipped. The terminal error, if any, is available from Err once
// the sequence ends. The stream can be iterated only once; a second iteration yields
// nothing and Err returns ErrAlreadyConsumed.
func (c *Consumer) Samples(ctx context.Context) iter.Seq2[*message.Sample, *message.FlowMetadata] {
	return func(yield func(*message.Sample, *message.FlowMetadata) bool) {
		err := c.iterate(ctx, func(msg *message.Message) bool {
			s, f, ok := samplePair(msg)
			if !ok {
				return true
			}

			return yield(s, f)
		})
		c.setErr(err)
	}
}

// iterate feeds every message to fn until the stream ends, fn returns false, or an
// error occurs. A clean end of the stream returns nil.
func (c *Consumer) iterate(ctx context.Context, fn func(*message.Message) bool) error {
	if !c.consumed.CompareAndSwap(false, true) {
		return ErrAlreadyConsumed
	}

	c.mu.Lock()
	sv, reader := c.sv, c.reader
	c.mu.Unlock()
	if sv == nil {
		return ErrNotStarted
	}

	stopFunc := context.AfterFunc(ctx, func() {
		c.logger.Debug("context done, stopping producer", "method", "iterate")
		_ = sv.Stop()
	})
	defer stopFunc()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg, err := reader.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if errors.Is(err, io.EOF) {
				c.logger.Debug("end of stream", "method", "iterate", "frames", c.metrics.FrameCount.Load())
				return nil
			}

			// the stream cannot be resynchronized; release the producer
			c.logger.Error("stream failed, stopping producer", "method", "iterate", "error", err)
			if stopErr := sv.Stop(); stopErr != nil {
				c.logger.Warn("stop after stream failure", "method", "iterate", "error", stopErr)
			}

			return fmt.Errorf("read stream: %w", err)
		}

		if !fn(msg) {
			return nil
		}
	}
}

func samplePair(msg *message.Message) (*message.Sample, *message.FlowMetadata, bool) {
	switch msg.Kind() {
	case message.SampleKind:
		return msg.Sample, message.EmptyFlowMetadata(), true
	case message.CombinedKind:
		return msg.Sample, msg.FlowMetadata, true
	default:
		return nil, nil, false
	}
}

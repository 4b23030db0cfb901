package main

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/arloliu/go-saxs/command"
	"github.com/arloliu/go-saxs/logger"
	"github.com/arloliu/go-saxs/message"
	"github.com/arloliu/go-saxs/protocol"
	"github.com/arloliu/go-saxs/stream"
)

type harness struct {
	log  *logger.MockLogger
	cmdW *io.PipeWriter
	outW *io.PipeWriter
	out  *stream.Reader
	ch   *command.Channel
	errs chan error
}

func startProducer(t *testing.T, count int, interval time.Duration, waitInit bool, code protocol.CompressionType) *harness {
	t.Helper()

	gen, err := newGenerator(64, 0.01, 0.3, 0)
	require.NoError(t, err)

	cmdR, cmdW := io.Pipe()
	outR, outW := io.Pipe()

	l := logger.NewMockLogger()
	p := &producer{
		w:        stream.NewWriter(outW, stream.WithCompression(code)),
		cmds:     command.NewReader(cmdR),
		gen:      gen,
		count:    count,
		interval: interval,
		waitInit: waitInit,
		logger:   l,
	}

	h := &harness{
		log:  l,
		cmdW: cmdW,
		outW: outW,
		out:  stream.NewReader(outR),
		ch:   command.NewChannel(cmdW, func() bool { return true }),
		errs: make(chan error, 1),
	}

	go func() {
		err := p.run(context.Background())
		outW.Close()
		h.errs <- err
	}()

	t.Cleanup(func() {
		cmdW.Close()
		outR.Close()
	})

	return h
}

func (h *harness) wait(t *testing.T) error {
	t.Helper()

	select {
	case err := <-h.errs:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("producer did not finish")
		return nil
	}
}

func (h *harness) drain() {
	go func() {
		for {
			if _, err := h.out.ReadFrame(); err != nil {
				return
			}
		}
	}()
}

func TestProducerStreamsCount(t *testing.T) {
	for _, code := range []protocol.CompressionType{protocol.NoCompression, protocol.LZ4Compression, protocol.ZstdCompression} {
		t.Run(code.String(), func(t *testing.T) {
			require := require.New(t)
			h := startProducer(t, 3, 0, false, code)

			for i := range 3 {
				msg, err := h.out.ReadMessage()
				require.NoError(err)
				require.Equal(message.CombinedKind, msg.Kind())
				require.Equal(code, msg.Compression)
				require.Equal(msg.Sample.ID(), msg.FlowMetadata.Sample())
				require.Equal(64, msg.Sample.Len(), "profile %d", i)
			}

			_, err := h.out.ReadMessage()
			require.ErrorIs(err, io.EOF)
			require.NoError(h.wait(t))
		})
	}
}

func TestProducerAnswersHandshake(t *testing.T) {
	require := require.New(t)
	h := startProducer(t, 2, 0, true, protocol.NoCompression)

	err := command.Handshake(context.Background(), h.ch, h.out, command.WithAttempts(1))
	require.NoError(err)

	for range 2 {
		msg, err := h.out.ReadMessage()
		require.NoError(err)
		require.Equal(message.CombinedKind, msg.Kind())
	}

	require.NoError(h.wait(t))
}

func TestProducerStopCommand(t *testing.T) {
	require := require.New(t)
	h := startProducer(t, 0, 5*time.Millisecond, false, protocol.NoCompression)

	for range 2 {
		_, err := h.out.ReadMessage()
		require.NoError(err)
	}

	h.drain()
	require.NoError(h.ch.SendStop())
	require.NoError(h.wait(t))
	require.True(h.log.Logged(logger.InfoLevel, "stop requested"))
}

func TestProducerStdinClosed(t *testing.T) {
	require := require.New(t)
	h := startProducer(t, 0, 5*time.Millisecond, false, protocol.NoCompression)

	_, err := h.out.ReadMessage()
	require.NoError(err)

	h.drain()
	require.NoError(h.cmdW.Close())
	require.NoError(h.wait(t))
}

func TestGeneratorProfile(t *testing.T) {
	require := require.New(t)

	gen, err := newGenerator(200, 0.01, 0.5, 0)
	require.NoError(err)

	s, f, err := gen.next(0)
	require.NoError(err)
	require.Equal("synthetic-000000", s.ID())
	require.Equal(200, s.Len())
	require.True(s.HasUncertainty())
	require.InDelta(0.01, s.Q()[0], 1e-12)
	require.InDelta(0.5, s.Q()[199], 1e-12)

	// The tallest peak dominates a noise-free profile.
	intensity := s.Intensity()
	top := floats.MaxIdx(intensity)
	require.InDelta(f.ProcessedPeaks()[0], s.Q()[top], s.Q()[1]-s.Q()[0])
	require.GreaterOrEqual(floats.Min(intensity), 10.0)

	require.Len(f.ProcessedPeaks(), 3)
	require.Empty(f.UnprocessedPeaks())
	require.Contains(f.Current(), 0)
}

func TestGeneratorNoiseKeepsIntensityNonNegative(t *testing.T) {
	gen, err := newGenerator(32, 0.01, 0.5, 50)
	require.NoError(t, err)

	for i := range 20 {
		s, _, err := gen.next(i)
		require.NoError(t, err)
		require.GreaterOrEqual(t, floats.Min(s.Intensity()), 0.0)
	}
}

func TestNewGeneratorErrors(t *testing.T) {
	_, err := newGenerator(1, 0, 1, 0)
	require.Error(t, err)
	_, err = newGenerator(10, 1, 1, 0)
	require.Error(t, err)
	_, err = newGenerator(10, 0, 1, -1)
	require.Error(t, err)
}

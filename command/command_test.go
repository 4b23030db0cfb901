package command

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-saxs/payload"
	"github.com/arloliu/go-saxs/process"
	"github.com/arloliu/go-saxs/protocol"
	"github.com/arloliu/go-saxs/stream"
)

// fakeProducer reads commands from one pipe and answers on another. reply decides the
// answer to the n-th init command (1-based); nil means no answer at all.
type fakeProducer struct {
	inits atomic.Int32
	done  chan struct{}
}

func startFakeProducer(t *testing.T, reply func(n int) payload.Map) (*Channel, *stream.Reader, *fakeProducer, func()) {
	t.Helper()

	cmdClient, cmdServer := net.Pipe()
	replyClient, replyServer := net.Pipe()

	fp := &fakeProducer{done: make(chan struct{})}
	go func() {
		defer close(fp.done)

		r := NewReader(cmdServer)
		w := stream.NewWriter(replyServer)
		for {
			cmd, err := r.ReadCommand()
			if err != nil {
				return
			}
			if Name(cmd) != InitCommand {
				continue
			}

			n := int(fp.inits.Add(1))
			if body := reply(n); body != nil {
				if err := w.WriteControl(body); err != nil {
					return
				}
			}
		}
	}()

	cleanup := func() {
		_ = cmdClient.Close()
		<-fp.done
		_ = cmdServer.Close()
		_ = replyClient.Close()
		_ = replyServer.Close()
	}

	return NewChannel(cmdClient, nil), stream.NewReader(replyClient), fp, cleanup
}

func TestHandshakeNineTimeoutsThenSuccess(t *testing.T) {
	require := require.New(t)

	ch, src, fp, cleanup := startFakeProducer(t, func(n int) payload.Map {
		if n < 10 {
			return nil
		}
		return payload.NewMap("status", "ok")
	})

	err := Handshake(context.Background(), ch, src,
		WithAttempts(10),
		WithReplyTimeout(30*time.Millisecond),
		WithRetryDelay(5*time.Millisecond),
	)
	cleanup()

	require.NoError(err)
	require.Equal(int32(10), fp.inits.Load())
}

func TestHandshakeAllAttemptsFail(t *testing.T) {
	require := require.New(t)

	ch, src, fp, cleanup := startFakeProducer(t, func(int) payload.Map { return nil })

	err := Handshake(context.Background(), ch, src,
		WithAttempts(4),
		WithReplyTimeout(20*time.Millisecond),
		WithRetryDelay(time.Millisecond),
	)
	cleanup()

	require.ErrorIs(err, ErrHandshakeFailed)
	require.ErrorContains(err, "after 4 attempts")
	require.Equal(int32(4), fp.inits.Load())
}

func TestHandshakeReplyCutMidFrame(t *testing.T) {
	require := require.New(t)

	cmdClient, cmdServer := net.Pipe()
	replyClient, replyServer := net.Pipe()
	defer replyClient.Close()
	defer replyServer.Close()

	var inits atomic.Int32
	done := make(chan struct{})
	go func() {
		defer close(done)

		r := NewReader(cmdServer)
		for {
			cmd, err := r.ReadCommand()
			if err != nil {
				return
			}
			if Name(cmd) != InitCommand {
				continue
			}
			// half a header, then silence
			if inits.Add(1) == 1 {
				if _, err := replyServer.Write([]byte{0x53, 0x58, 0x41, 0x53, 0x01, 0x03, 0x00, 0x00}); err != nil {
					return
				}
			}
		}
	}()

	err := Handshake(context.Background(), NewChannel(cmdClient, nil), stream.NewReader(replyClient),
		WithAttempts(5),
		WithReplyTimeout(30*time.Millisecond),
		WithRetryDelay(time.Millisecond),
	)
	_ = cmdClient.Close()
	<-done
	_ = cmdServer.Close()

	require.ErrorIs(err, ErrHandshakeFailed)
	require.ErrorIs(err, protocol.ErrPartialFrame)
	require.ErrorIs(err, os.ErrDeadlineExceeded)
	require.NotErrorIs(err, protocol.ErrInvalidMagic)
	require.Equal(int32(1), inits.Load())
}

func TestHandshakeStatusValues(t *testing.T) {
	require := require.New(t)

	ch, src, fp, cleanup := startFakeProducer(t, func(n int) payload.Map {
		switch n {
		case 1:
			return payload.NewMap("status", "busy")
		case 2:
			return payload.NewMap("other", "field")
		default:
			return payload.NewMap("Status", "ready")
		}
	})

	err := Handshake(context.Background(), ch, src,
		WithAckStatuses("ok", "ready"),
		WithRetryDelay(time.Millisecond),
	)
	cleanup()

	require.NoError(err)
	require.Equal(int32(3), fp.inits.Load())
}

func TestHandshakeContextCanceled(t *testing.T) {
	require := require.New(t)

	ch, src, _, cleanup := startFakeProducer(t, func(int) payload.Map { return nil })
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	begin := time.Now()
	err := Handshake(ctx, ch, src,
		WithAttempts(100),
		WithReplyTimeout(10*time.Millisecond),
		WithRetryDelay(time.Hour),
	)
	require.ErrorIs(err, context.Canceled)
	require.Less(time.Since(begin), time.Second)
}

func TestHandshakeNotRunning(t *testing.T) {
	require := require.New(t)

	ch := NewChannel(io.Discard, func() bool { return false })
	src := stream.NewReader(bytes.NewReader(nil))

	err := Handshake(context.Background(), ch, src, WithAttempts(2), WithRetryDelay(0))
	require.ErrorIs(err, ErrHandshakeFailed)
	require.ErrorIs(err, process.ErrNotRunning)
}

func TestChannelSendFraming(t *testing.T) {
	require := require.New(t)

	var out bytes.Buffer
	bw := bufio.NewWriter(&out)
	ch := NewChannel(bw, nil)

	require.NoError(ch.SendInit(1))
	require.NoError(ch.SendStop())

	data := out.Bytes()
	size := binary.LittleEndian.Uint32(data[:4])
	body, err := payload.Decode(data[4 : 4+size])
	require.NoError(err)
	require.Equal(payload.NewMap("cmd", "init", "version", int64(1)), body)

	r := NewReader(bytes.NewReader(data))
	cmd, err := r.ReadCommand()
	require.NoError(err)
	require.Equal(InitCommand, Name(cmd))

	cmd, err = r.ReadCommand()
	require.NoError(err)
	require.Equal(StopCommand, Name(cmd))

	_, err = r.ReadCommand()
	require.Equal(io.EOF, err)
}

func TestChannelConcurrentSends(t *testing.T) {
	require := require.New(t)

	var out bytes.Buffer
	ch := NewChannel(&out, nil)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = ch.SendStop()
		}()
	}
	wg.Wait()

	r := NewReader(&out)
	for range 20 {
		cmd, err := r.ReadCommand()
		require.NoError(err)
		require.Equal(StopCommand, Name(cmd))
	}
}

func TestReaderTruncatedCommand(t *testing.T) {
	require := require.New(t)

	frame := protocol.AppendCommand(nil, []byte{0x81, 0xa3, 'c', 'm', 'd', 0xa4, 's', 't', 'o', 'p'})

	_, err := NewReader(bytes.NewReader(frame[:2])).ReadCommand()
	require.ErrorIs(err, protocol.ErrIncompletePayload)

	_, err = NewReader(bytes.NewReader(frame[:len(frame)-1])).ReadCommand()
	require.ErrorIs(err, protocol.ErrIncompletePayload)

	huge := binary.LittleEndian.AppendUint32(nil, MaxCommandSize+1)
	_, err = NewReader(bytes.NewReader(huge)).ReadCommand()
	require.ErrorIs(err, protocol.ErrPayloadTooLarge)

	oversized := protocol.AppendCommand(nil, []byte{0xdf, 0xff, 0xff, 0xff, 0xff})
	_, err = NewReader(bytes.NewReader(oversized)).ReadCommand()
	require.ErrorIs(err, protocol.ErrMalformedPayload)

	garbage := protocol.AppendCommand(nil, []byte{0xc1})
	_, err = NewReader(bytes.NewReader(garbage)).ReadCommand()
	require.ErrorIs(err, protocol.ErrMalformedPayload)
	require.False(errors.Is(err, io.EOF))
}

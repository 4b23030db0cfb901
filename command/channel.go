package command

import (
	"fmt"
	"io"
	"sync"

	"github.com/arloliu/go-saxs/internal/pool"
	"github.com/arloliu/go-saxs/payload"
	"github.com/arloliu/go-saxs/process"
	"github.com/arloliu/go-saxs/protocol"
)

// Command names understood by the reference producer.
const (
	InitCommand = "init"
	StopCommand = "stop"
)

type flusher interface {
	Flush() error
}

// Channel writes length-prefixed commands to a producer.
//
// Sends are serialized by a mutex, so concurrent callers never interleave frames.
type Channel struct {
	mu      sync.Mutex
	w       io.Writer
	running func() bool
}

// NewChannel returns a channel writing to w. running reports whether the receiving
// process is alive; a nil running func means always running.
func NewChannel(w io.Writer, running func() bool) *Channel {
	if running == nil {
		running = func() bool { return true }
	}

	return &Channel{w: w, running: running}
}

// Send encodes cmd and writes it as one length-prefixed frame.
// It returns process.ErrNotRunning when the receiver is not running.
func (c *Channel) Send(cmd payload.Map) error {
	if !c.running() {
		return process.ErrNotRunning
	}

	body, err := payload.Encode(cmd)
	if err != nil {
		return fmt.Errorf("encode command: %w", err)
	}

	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)

	buf.Grow(protocol.LengthPrefixSize + len(body))
	frame := protocol.AppendCommand(buf.AvailableBuffer(), body)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.w.Write(frame); err != nil {
		return fmt.Errorf("write command: %w", err)
	}

	if f, ok := c.w.(flusher); ok {
		if err := f.Flush(); err != nil {
			return fmt.Errorf("flush command: %w", err)
		}
	}

	return nil
}

// InitRequest returns the handshake command {"cmd": "init", "version": version}.
func InitRequest(version int) payload.Map {
	return payload.NewMap("cmd", InitCommand, "version", int64(version))
}

// SendInit sends the handshake command.
func (c *Channel) SendInit(version int) error {
	return c.Send(InitRequest(version))
}

// SendStop asks the producer to stop streaming.
func (c *Channel) SendStop() error {
	return c.Send(payload.NewMap("cmd", StopCommand))
}

package command

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/arloliu/go-saxs/internal/pool"
	"github.com/arloliu/go-saxs/logger"
	"github.com/arloliu/go-saxs/message"
	"github.com/arloliu/go-saxs/payload"
	"github.com/arloliu/go-saxs/protocol"
)

// Default handshake settings.
const (
	DefaultHandshakeAttempts   = 3
	DefaultHandshakeRetryDelay = 100 * time.Millisecond
	DefaultHandshakeTimeout    = 5 * time.Second
)

// ErrHandshakeFailed is returned when no attempt received an acknowledgement.
var ErrHandshakeFailed = errors.New("handshake failed")

// errNotAcknowledged is the cause of an attempt whose reply was not an acknowledgement.
var errNotAcknowledged = errors.New("reply not acknowledged")

// FrameSource is the reply side of a handshake, usually a *stream.Reader.
//
// When the source also implements SetReadDeadline(time.Time) error, each reply read is
// bounded by the reply timeout; otherwise the read blocks until a frame arrives.
type FrameSource interface {
	ReadMessage() (*message.Message, error)
}

type deadlineSetter interface {
	SetReadDeadline(t time.Time) error
}

type handshakeOptions struct {
	attempts     int
	retryDelay   time.Duration
	replyTimeout time.Duration
	ackStatuses  []string
	initCommand  payload.Map
	logger       logger.Logger
}

// HandshakeOption configures Handshake.
type HandshakeOption func(*handshakeOptions)

// WithAttempts sets the number of attempts, at least 1. Defaults to 3.
func WithAttempts(n int) HandshakeOption {
	return func(o *handshakeOptions) { o.attempts = max(n, 1) }
}

// WithRetryDelay sets the fixed delay between attempts. Defaults to 100ms.
func WithRetryDelay(d time.Duration) HandshakeOption {
	return func(o *handshakeOptions) { o.retryDelay = d }
}

// WithReplyTimeout bounds each reply read when the source supports deadlines. Defaults to 5s.
func WithReplyTimeout(d time.Duration) HandshakeOption {
	return func(o *handshakeOptions) { o.replyTimeout = d }
}

// WithAckStatuses sets the reply status values accepted as an acknowledgement.
// Defaults to "ok".
func WithAckStatuses(statuses ...string) HandshakeOption {
	return func(o *handshakeOptions) { o.ackStatuses = slices.Clone(statuses) }
}

// WithInitCommand replaces the command sent on every attempt.
// Defaults to {"cmd": "init", "version": 1}.
func WithInitCommand(cmd payload.Map) HandshakeOption {
	return func(o *handshakeOptions) { o.initCommand = cmd }
}

// WithHandshakeLogger sets the logger. Defaults to logger.GetLogger().
func WithHandshakeLogger(l logger.Logger) HandshakeOption {
	return func(o *handshakeOptions) { o.logger = l }
}

// Handshake confirms that the producer is ready.
//
// Each attempt sends the init command and reads one reply frame. The handshake succeeds
// when the reply's "status" (or "Status") field is one of the acknowledgement values.
// Failed attempts, including reply timeouts, are retried after the retry delay. When
// every attempt failed, the returned error wraps ErrHandshakeFailed and the last cause.
// A reply cut off mid-frame, e.g. by the reply timeout, aborts the handshake at once
// with an error wrapping ErrHandshakeFailed and protocol.ErrPartialFrame. Context
// cancellation aborts the handshake immediately.
func Handshake(ctx context.Context, ch *Channel, src FrameSource, opts ...HandshakeOption) error {
	o := &handshakeOptions{
		attempts:     DefaultHandshakeAttempts,
		retryDelay:   DefaultHandshakeRetryDelay,
		replyTimeout: DefaultHandshakeTimeout,
		ackStatuses:  []string{"ok"},
		initCommand:  InitRequest(int(protocol.Version)),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = logger.GetLogger()
	}

	ds, hasDeadline := src.(deadlineSetter)
	if hasDeadline {
		defer func() { _ = ds.SetReadDeadline(time.Time{}) }()
	}

	var lastErr error
	for attempt := 1; attempt <= o.attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = attemptHandshake(ch, src, ds, hasDeadline, o)
		if lastErr == nil {
			o.logger.Debug("handshake succeeded", "method", "Handshake", "attempt", attempt)
			return nil
		}

		o.logger.Warn("handshake attempt failed",
			"method", "Handshake", "attempt", attempt, "attempts", o.attempts, "error", lastErr)

		// the reply stream lost its position; another attempt would read garbage
		if errors.Is(lastErr, protocol.ErrPartialFrame) {
			return fmt.Errorf("%w at attempt %d: %w", ErrHandshakeFailed, attempt, lastErr)
		}

		if attempt < o.attempts {
			if err := pool.Sleep(ctx, o.retryDelay); err != nil {
				return err
			}
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrHandshakeFailed, o.attempts, lastErr)
}

func attemptHandshake(ch *Channel, src FrameSource, ds deadlineSetter, hasDeadline bool, o *handshakeOptions) error {
	if err := ch.Send(o.initCommand); err != nil {
		return err
	}

	if hasDeadline && o.replyTimeout > 0 {
		// sources without deadline support fall back to a blocking read
		if err := ds.SetReadDeadline(time.Now().Add(o.replyTimeout)); err != nil {
			o.logger.Debug("reply deadline not applied", "method", "Handshake", "error", err)
		}
	}

	reply, err := src.ReadMessage()
	if err != nil {
		return fmt.Errorf("read reply: %w", err)
	}

	return checkReply(reply, o.ackStatuses)
}

func checkReply(reply *message.Message, ackStatuses []string) error {
	if reply.Kind() != message.RawKind {
		return fmt.Errorf("%w: got %s message", errNotAcknowledged, reply.Type)
	}

	body, err := reply.Control()
	if err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}

	v, ok := body.Lookup("status", "Status")
	if !ok {
		return fmt.Errorf("%w: no status field", errNotAcknowledged)
	}

	status, err := payload.ToString(v)
	if err != nil || !slices.Contains(ackStatuses, status) {
		return fmt.Errorf("%w: status %v", errNotAcknowledged, v)
	}

	return nil
}

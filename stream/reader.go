package stream

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/arloliu/go-saxs/compression"
	"github.com/arloliu/go-saxs/logger"
	"github.com/arloliu/go-saxs/message"
	"github.com/arloliu/go-saxs/protocol"
)

// DefaultMaxPayloadSize is the largest declared payload length accepted by default.
const DefaultMaxPayloadSize = 256 << 20

// ErrDeadlineUnsupported is returned by SetReadDeadline when the source has no deadlines.
var ErrDeadlineUnsupported = errors.New("read deadline not supported by source")

// DeadlineReader is a source supporting read deadlines, such as *os.File pipes and net.Conn.
type DeadlineReader interface {
	io.Reader
	SetReadDeadline(t time.Time) error
}

// Reader reads frames sequentially from a byte stream.
//
// Reader is NOT goroutine-safe; the caller must ensure that only one read is active
// at a time.
type Reader struct {
	r          io.Reader
	verify     bool
	registry   *compression.Registry
	maxPayload uint64
	logger     logger.Logger
	metrics    *Metrics

	hdrBuf [protocol.HeaderSize]byte
	ftrBuf [protocol.FooterSize]byte

	// broken is set once a read fails inside a frame and is returned from then on.
	broken error
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithVerifyChecksum enables or disables CRC verification. Enabled by default.
func WithVerifyChecksum(verify bool) ReaderOption {
	return func(r *Reader) { r.verify = verify }
}

// WithRegistry sets the compression registry. Defaults to compression.Default.
func WithRegistry(reg *compression.Registry) ReaderOption {
	return func(r *Reader) { r.registry = reg }
}

// WithMaxPayloadSize sets the largest accepted declared payload length.
func WithMaxPayloadSize(n uint64) ReaderOption {
	return func(r *Reader) { r.maxPayload = n }
}

// WithReaderLogger sets the logger. Defaults to logger.GetLogger().
func WithReaderLogger(l logger.Logger) ReaderOption {
	return func(r *Reader) { r.logger = l }
}

// WithMetrics sets the metrics updated by the reader.
func WithMetrics(m *Metrics) ReaderOption {
	return func(r *Reader) { r.metrics = m }
}

// NewReader returns a Reader reading from r.
func NewReader(r io.Reader, opts ...ReaderOption) *Reader {
	sr := &Reader{
		r:          r,
		verify:     true,
		maxPayload: DefaultMaxPayloadSize,
	}
	for _, opt := range opts {
		opt(sr)
	}

	if sr.registry == nil {
		sr.registry = compression.Default
	}
	if sr.logger == nil {
		sr.logger = logger.GetLogger()
	}
	if sr.metrics == nil {
		sr.metrics = NewMetrics()
	}

	return sr
}

// Metrics returns the metrics updated by the reader.
func (sr *Reader) Metrics() *Metrics { return sr.metrics }

// SetReadDeadline sets the deadline for future reads when the source supports it.
// A zero time clears the deadline.
func (sr *Reader) SetReadDeadline(t time.Time) error {
	dr, ok := sr.r.(DeadlineReader)
	if !ok {
		return ErrDeadlineUnsupported
	}

	return dr.SetReadDeadline(t)
}

// ReadFrame reads one complete frame.
//
// It returns io.EOF when the stream ends cleanly before a new frame. A stream ending
// inside a frame fails with a ProtocolError wrapping ErrIncompleteHeader,
// ErrIncompletePayload or ErrIncompleteFooter. Errors of the underlying reader, such as
// a deadline or a closed pipe, are returned wrapped. When such an error strikes after
// part of a frame was consumed it also wraps protocol.ErrPartialFrame, and every later
// call returns the same error.
func (sr *Reader) ReadFrame() (protocol.Frame, error) {
	if sr.broken != nil {
		return protocol.Frame{}, sr.broken
	}

	frame, err := sr.readFrame()
	if err != nil && protocol.IsProtocolError(err) {
		sr.metrics.incProtocolErr()
		if errors.Is(err, protocol.ErrChecksumMismatch) {
			sr.metrics.incChecksumErr()
		}
	}

	return frame, err
}

func (sr *Reader) readFrame() (protocol.Frame, error) {
	var frame protocol.Frame

	// Phase 1: header. Zero bytes is a clean end of stream.
	n, err := io.ReadFull(sr.r, sr.hdrBuf[:])
	switch {
	case errors.Is(err, io.EOF):
		return frame, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return frame, protocol.NewProtocolError(protocol.ErrIncompleteHeader, "got %d of %d bytes", n, protocol.HeaderSize)
	case err != nil && n > 0:
		return frame, sr.interrupted("header", n, err)
	case err != nil:
		return frame, fmt.Errorf("read header: %w", err)
	}

	header, err := protocol.DecodeHeader(sr.hdrBuf[:])
	if err != nil {
		return frame, err
	}

	// Phase 2: validate the length.
	if header.PayloadLen > sr.maxPayload {
		return frame, protocol.NewProtocolError(protocol.ErrPayloadTooLarge,
			"declared %d bytes, maximum %d", header.PayloadLen, sr.maxPayload)
	}

	// Phase 3: payload and footer.
	payload := make([]byte, header.PayloadLen)
	if n, err = io.ReadFull(sr.r, payload); err != nil {
		if isEOF(err) {
			return frame, protocol.NewProtocolError(protocol.ErrIncompletePayload,
				"got %d of %d bytes", n, header.PayloadLen)
		}

		return frame, sr.interrupted("payload", protocol.HeaderSize+n, err)
	}

	if n, err = io.ReadFull(sr.r, sr.ftrBuf[:]); err != nil {
		if isEOF(err) {
			return frame, protocol.NewProtocolError(protocol.ErrIncompleteFooter,
				"got %d of %d bytes", n, protocol.FooterSize)
		}

		return frame, sr.interrupted("footer", protocol.HeaderSize+len(payload)+n, err)
	}

	// Phase 4: integrity.
	if sr.verify {
		if err := protocol.VerifyFooter(payload, sr.ftrBuf[:]); err != nil {
			return frame, err
		}
	}
	checksum, _ := protocol.DecodeFooter(sr.ftrBuf[:])

	return protocol.Frame{Header: header, Payload: payload, Checksum: checksum}, nil
}

func (sr *Reader) interrupted(phase string, consumed int, err error) error {
	sr.broken = fmt.Errorf("%w: read %s after %d bytes: %w", protocol.ErrPartialFrame, phase, consumed, err)
	sr.logger.Warn("stream interrupted inside a frame", "method", "ReadFrame", "phase", phase, "consumed", consumed, "error", err)

	return sr.broken
}

// ReadMessage reads one frame, decompresses its payload and builds the message.
// It returns io.EOF when the stream ends cleanly.
func (sr *Reader) ReadMessage() (*message.Message, error) {
	frame, err := sr.ReadFrame()
	if err != nil {
		return nil, err
	}

	data, err := sr.registry.Decompress(frame.Payload, frame.Header.Compression)
	if err != nil {
		if protocol.IsProtocolError(err) {
			sr.metrics.incProtocolErr()
		}

		return nil, err
	}

	msg, err := message.Build(frame.Header, data)
	if err != nil {
		sr.metrics.incProtocolErr()
		sr.logger.Debug("failed to build message",
			"method", "ReadMessage", "type", frame.Header.Type, "payload_len", len(data), "error", err)

		return nil, err
	}

	sr.metrics.incFrame(frame.Header.Type, protocol.HeaderSize+len(frame.Payload)+protocol.FooterSize)
	message.LogDebug(sr.logger, msg, "method", "ReadMessage", "wire_len", len(frame.Payload))

	return msg, nil
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

package stream

import (
	"fmt"
	"io"
	"sync"

	"github.com/arloliu/go-saxs/compression"
	"github.com/arloliu/go-saxs/internal/pool"
	"github.com/arloliu/go-saxs/message"
	"github.com/arloliu/go-saxs/payload"
	"github.com/arloliu/go-saxs/protocol"
)

// Writer frames messages onto a byte stream, one Write call per frame.
//
// Writer is safe for concurrent use; frames are never interleaved.
type Writer struct {
	mu          sync.Mutex
	w           io.Writer
	compression protocol.CompressionType
	registry    *compression.Registry
	metrics     *Metrics
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithCompression sets the compression code applied to every payload. Defaults to none.
func WithCompression(code protocol.CompressionType) WriterOption {
	return func(w *Writer) { w.compression = code }
}

// WithWriterRegistry sets the compression registry. Defaults to compression.Default.
func WithWriterRegistry(reg *compression.Registry) WriterOption {
	return func(w *Writer) { w.registry = reg }
}

// WithWriterMetrics sets the metrics updated by the writer.
func WithWriterMetrics(m *Metrics) WriterOption {
	return func(w *Writer) { w.metrics = m }
}

// NewWriter returns a Writer writing to w.
func NewWriter(w io.Writer, opts ...WriterOption) *Writer {
	sw := &Writer{w: w, compression: protocol.NoCompression}
	for _, opt := range opts {
		opt(sw)
	}

	if sw.registry == nil {
		sw.registry = compression.Default
	}
	if sw.metrics == nil {
		sw.metrics = NewMetrics()
	}

	return sw
}

// Metrics returns the metrics updated by the writer.
func (sw *Writer) Metrics() *Metrics { return sw.metrics }

// WriteMessage encodes, compresses and frames msg.
func (sw *Writer) WriteMessage(msg *message.Message) error {
	data, err := message.Encode(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Type, err)
	}

	return sw.WriteRaw(msg.Type, data)
}

// WriteSample writes a Sample message.
func (sw *Writer) WriteSample(s *message.Sample) error {
	return sw.WriteMessage(message.NewSampleMessage(s))
}

// WriteFlowMetadata writes a FlowMetadata message.
func (sw *Writer) WriteFlowMetadata(f *message.FlowMetadata) error {
	return sw.WriteMessage(message.NewFlowMetadataMessage(f))
}

// WriteCombined writes a Combined message.
func (sw *Writer) WriteCombined(s *message.Sample, f *message.FlowMetadata) error {
	return sw.WriteMessage(message.NewCombinedMessage(s, f))
}

// WriteControl writes a control message with the given body, such as a handshake reply.
func (sw *Writer) WriteControl(body payload.Map) error {
	data, err := payload.Encode(body)
	if err != nil {
		return err
	}

	return sw.WriteRaw(protocol.ControlRequestType, data)
}

// WriteRaw compresses data with the writer's compression code and writes it as a frame
// of msgType.
func (sw *Writer) WriteRaw(msgType protocol.MessageType, data []byte) error {
	compressed, err := sw.registry.Compress(data, sw.compression)
	if err != nil {
		return err
	}

	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)

	buf.Grow(protocol.HeaderSize + len(compressed) + protocol.FooterSize)
	frame := protocol.AppendFrame(buf.AvailableBuffer(), msgType, sw.compression, compressed)

	sw.mu.Lock()
	defer sw.mu.Unlock()

	if _, err := sw.w.Write(frame); err != nil {
		return fmt.Errorf("write %s frame: %w", msgType, err)
	}
	sw.metrics.incFrame(msgType, len(frame))

	return nil
}

package stream

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/arloliu/go-saxs/message"
	"github.com/arloliu/go-saxs/payload"
	"github.com/arloliu/go-saxs/protocol"
)

// FuzzReadMessage feeds arbitrary byte streams to the reader.
//
// The invariant is: the reader never panics, and every failure is either io.EOF, a
// ProtocolError, or an unavailable codec.
func FuzzReadMessage(f *testing.F) {
	s, _ := message.NewSample("fuzz", []float64{0.1, 0.2}, []float64{3, 4}, nil)
	body, _ := message.Encode(message.NewSampleMessage(s))
	f.Add(protocol.AppendFrame(nil, protocol.SampleType, protocol.NoCompression, body))

	ctl, _ := payload.Encode(payload.NewMap("status", "ok"))
	f.Add(protocol.AppendFrame(nil, protocol.ControlRequestType, protocol.NoCompression, ctl))

	f.Add(protocol.AppendFrame(nil, protocol.CombinedType, protocol.LZ4Compression, []byte{0x04, 0x22, 0x4d, 0x18}))
	f.Add(protocol.AppendFrame(nil, 0x7F, protocol.NoCompression, []byte("raw")))
	f.Add([]byte{})
	f.Add(protocol.AppendFrame(nil, protocol.SampleType, protocol.NoCompression, []byte{0xdf, 0xff, 0xff, 0xff, 0xff}))
	f.Add(protocol.AppendFrame(nil, protocol.CombinedType, protocol.NoCompression, []byte{0x81, 0xa1, 'Q', 0xdd, 0xff, 0xff, 0xff, 0xff}))

	f.Fuzz(func(t *testing.T, data []byte) {
		r := NewReader(bytes.NewReader(data), WithMaxPayloadSize(1<<16))
		for range 64 {
			_, err := r.ReadMessage()
			if err == nil {
				continue
			}
			if errors.Is(err, io.EOF) || protocol.IsProtocolError(err) || protocol.IsConfigError(err) {
				return
			}
			t.Fatalf("unexpected error type %T: %v", err, err)
		}
	})
}

package stream

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-saxs/protocol"
)

// Metrics contains atomic counters for a frame stream.
// Metrics can be used as the value of a prometheus CounterFunc or GaugeFunc.
type Metrics struct {
	// FrameCount indicates the number of frames read or written successfully.
	FrameCount atomic.Uint64
	// ByteCount indicates the number of on-wire bytes of those frames.
	ByteCount atomic.Uint64
	// ChecksumErrCount indicates the number of frames failing CRC verification.
	ChecksumErrCount atomic.Uint64
	// ProtocolErrCount indicates the number of protocol errors of any kind.
	ProtocolErrCount atomic.Uint64

	perType *xsync.MapOf[protocol.MessageType, *xsync.Counter]
}

// NewMetrics returns zeroed metrics.
func NewMetrics() *Metrics {
	return &Metrics{perType: xsync.NewMapOf[protocol.MessageType, *xsync.Counter]()}
}

// TypeCount returns the number of frames of msgType.
func (m *Metrics) TypeCount(msgType protocol.MessageType) uint64 {
	c, ok := m.perType.Load(msgType)
	if !ok {
		return 0
	}

	return uint64(c.Value()) //nolint:gosec
}

// TypeCounts returns a snapshot of the per-type frame counts.
func (m *Metrics) TypeCounts() map[protocol.MessageType]uint64 {
	out := make(map[protocol.MessageType]uint64, m.perType.Size())
	m.perType.Range(func(t protocol.MessageType, c *xsync.Counter) bool {
		out[t] = uint64(c.Value()) //nolint:gosec
		return true
	})

	return out
}

func (m *Metrics) incFrame(msgType protocol.MessageType, wireBytes int) {
	m.FrameCount.Add(1)
	m.ByteCount.Add(uint64(wireBytes)) //nolint:gosec

	c, _ := m.perType.LoadOrCompute(msgType, xsync.NewCounter)
	c.Inc()
}

func (m *Metrics) incChecksumErr() {
	m.ChecksumErrCount.Add(1)
}

func (m *Metrics) incProtocolErr() {
	m.ProtocolErrCount.Add(1)
}

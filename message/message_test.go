package message

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/arloliu/go-saxs/payload"
	"github.com/arloliu/go-saxs/protocol"
)

func testSample(t *testing.T) *Sample {
	t.Helper()

	s, err := NewSample("AgBeh-001",
		[]float64{0.01, 0.02, 0.03},
		[]float64{1520.5, 1310.2, 990.0},
		[]float64{12.1, 11.4, 9.8},
	)
	require.NoError(t, err)

	return s
}

func testFlow() *FlowMetadata {
	return NewFlowMetadata("AgBeh-001",
		map[int]float64{12: 0.107, 40: 0.215},
		map[int]float64{3: 0.5},
		nil,
	)
}

func header(t protocol.MessageType, n int) protocol.Header {
	return protocol.NewHeader(t, protocol.NoCompression, uint64(n))
}

func TestRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		msg  *Message
	}{
		{"sample", NewSampleMessage(testSample(t))},
		{"flow metadata", NewFlowMetadataMessage(testFlow())},
		{"combined", NewCombinedMessage(testSample(t), testFlow())},
		{"control", NewRawMessage(protocol.ControlRequestType, []byte{0x81, 0xa1, 'a', 0x01})},
		{"unknown", NewRawMessage(0x7E, []byte("opaque"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			data, err := Encode(tt.msg)
			require.NoError(err)

			got, err := Build(header(tt.msg.Type, len(data)), data)
			require.NoError(err)
			require.Equal(tt.msg.Type, got.Type)
			require.Equal(tt.msg.Kind(), got.Kind())
			require.True(tt.msg.Sample.Equal(got.Sample), "sample %v != %v", tt.msg.Sample, got.Sample)
			require.True(tt.msg.FlowMetadata.Equal(got.FlowMetadata))
			require.Equal(data, got.Raw)
		})
	}
}

func TestBuildLegacyKeys(t *testing.T) {
	require := require.New(t)

	inner := payload.NewMap(
		"id", "legacy",
		"q", []float64{1, 2},
		"intensity", []float64{3, 4},
	)
	flow := payload.NewMap(
		"Sample", "legacy",
		"ProcessedPeaks", map[int]float64{1: 2},
	)
	data, err := payload.Encode(payload.NewMap("Sample", inner, "FlowMetadata", flow))
	require.NoError(err)

	msg, err := Build(header(protocol.CombinedType, len(data)), data)
	require.NoError(err)
	require.Equal(CombinedKind, msg.Kind())
	require.Equal("legacy", msg.Sample.ID())
	require.Equal([]float64{1, 2}, msg.Sample.Q())
	require.Equal([]float64{3, 4}, msg.Sample.Intensity())
	require.Empty(msg.Sample.Uncertainty())
	require.False(msg.Sample.HasUncertainty())
	require.Equal(2, msg.Sample.Len())
	require.Equal(map[int]float64{1: 2}, msg.FlowMetadata.ProcessedPeaks())
	require.Empty(msg.FlowMetadata.UnprocessedPeaks())
}

func TestBuildPrefersPrimaryKey(t *testing.T) {
	require := require.New(t)

	data, err := payload.Encode(payload.NewMap("id", "alias", "ID", "primary"))
	require.NoError(err)

	msg, err := Build(header(protocol.SampleType, len(data)), data)
	require.NoError(err)
	require.Equal("primary", msg.Sample.ID())
	require.Equal(0, msg.Sample.Len())
}

func TestBuildFromProducerStruct(t *testing.T) {
	require := require.New(t)

	type sample struct {
		ID  string
		Q   []float64
		I   []float64
		Err []float64
	}
	type flow struct {
		Sample         string          `msgpack:"sample"`
		ProcessedPeaks map[int]float64 `msgpack:"processed_peaks"`
	}
	type combined struct {
		Sample       sample `msgpack:"sample"`
		FlowMetadata flow   `msgpack:"flow_metadata"`
	}

	data, err := msgpack.Marshal(combined{
		Sample:       sample{ID: "p", Q: []float64{0.5}, I: []float64{7}},
		FlowMetadata: flow{Sample: "p", ProcessedPeaks: map[int]float64{0: 0.5}},
	})
	require.NoError(err)

	msg, err := Build(header(protocol.CombinedType, len(data)), data)
	require.NoError(err)
	require.Equal("p", msg.Sample.ID())
	require.Equal(map[int]float64{0: 0.5}, msg.FlowMetadata.ProcessedPeaks())
	require.Empty(msg.FlowMetadata.Current())
}

func TestBuildCombinedWithoutSample(t *testing.T) {
	require := require.New(t)

	data, err := payload.Encode(payload.NewMap(
		"flow_metadata", payload.NewMap("sample", "orphan", "processed_peaks", map[int]float64{2: 0.1}),
	))
	require.NoError(err)

	msg, err := Build(header(protocol.CombinedType, len(data)), data)
	require.NoError(err)
	require.Equal(CombinedKind, msg.Kind())
	require.Empty(msg.Sample.ID())
	require.Zero(msg.Sample.Len())
	require.False(msg.Sample.HasUncertainty())
	require.Equal("orphan", msg.FlowMetadata.Sample())
	require.Equal(map[int]float64{2: 0.1}, msg.FlowMetadata.ProcessedPeaks())

	data, err = payload.Encode(payload.NewMap("sample", nil))
	require.NoError(err)
	msg, err = Build(header(protocol.CombinedType, len(data)), data)
	require.NoError(err)
	require.True(msg.Sample.Equal(EmptySample()))
	require.True(msg.FlowMetadata.IsEmpty())
}

func TestBuildMalformed(t *testing.T) {
	tests := []struct {
		name string
		typ  protocol.MessageType
		data func() []byte
	}{
		{"not msgpack", protocol.SampleType, func() []byte { return []byte{0xc1} }},
		{"not a map", protocol.FlowMetadataType, func() []byte {
			b, _ := msgpack.Marshal([]int{1})
			return b
		}},
		{"length mismatch", protocol.SampleType, func() []byte {
			b, _ := payload.Encode(payload.NewMap("ID", "x", "Q", []float64{1, 2}, "I", []float64{1}))
			return b
		}},
		{"series of strings", protocol.SampleType, func() []byte {
			b, _ := payload.Encode(payload.NewMap("Q", []string{"a"}))
			return b
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require := require.New(t)

			data := tt.data()
			_, err := Build(header(tt.typ, len(data)), data)
			require.ErrorIs(err, protocol.ErrMalformedPayload)
			require.True(protocol.IsProtocolError(err))
		})
	}
}

func TestRawMessagesAreNotDecoded(t *testing.T) {
	require := require.New(t)

	garbage := []byte{0xc1, 0xff, 0x00}
	for _, typ := range []protocol.MessageType{protocol.ControlRequestType, 0x09} {
		msg, err := Build(header(typ, len(garbage)), garbage)
		require.NoError(err)
		require.Equal(RawKind, msg.Kind())
		require.Nil(msg.Sample)
		require.Nil(msg.FlowMetadata)
		require.Equal(garbage, msg.Raw)
	}

	data, err := payload.Encode(payload.NewMap("status", "ok"))
	require.NoError(err)
	msg, err := Build(header(protocol.ControlRequestType, len(data)), data)
	require.NoError(err)
	require.True(msg.IsControl())

	ctrl, err := msg.Control()
	require.NoError(err)
	status, _ := ctrl.Get("status")
	require.Equal("ok", status)
}

func TestSampleImmutable(t *testing.T) {
	require := require.New(t)

	q := []float64{1, 2}
	s, err := NewSample("x", q, []float64{3, 4}, nil)
	require.NoError(err)

	q[0] = 99
	got := s.Q()
	require.Equal(1.0, got[0])

	got[1] = 42
	require.Equal([]float64{1, 2}, s.Q())

	_, err = NewSample("x", []float64{1}, []float64{1}, []float64{1, 2})
	require.ErrorIs(err, ErrLengthMismatch)
}

func TestFlowMetadataDefaults(t *testing.T) {
	require := require.New(t)

	f := EmptyFlowMetadata()
	require.True(f.IsEmpty())
	require.NotNil(f.ProcessedPeaks())

	peaks := f.Current()
	peaks[1] = 1
	require.Empty(f.Current())
}

func TestLogFields(t *testing.T) {
	require := require.New(t)

	kv := LogFields(NewCombinedMessage(testSample(t), testFlow()))
	require.Contains(kv, "sample_id")
	require.Contains(kv, "AgBeh-001")
	require.Contains(kv, "combined")
}

package payload

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

type producerFlow struct {
	Sample         string          `msgpack:"sample"`
	ProcessedPeaks map[int]float64 `msgpack:"processed_peaks"`
}

type producerSample struct {
	ID  string
	Q   []float64
	I   []float64
	Err []float64
}

func TestDecodeStructFromProducer(t *testing.T) {
	require := require.New(t)

	b, err := msgpack.Marshal(producerSample{ID: "s-1", Q: []float64{0.1, 0.2}, I: []float64{10, 20}})
	require.NoError(err)

	m, err := Decode(b)
	require.NoError(err)
	require.Equal([]any{"ID", "Q", "I", "Err"}, m.Keys())

	id, ok := m.Lookup("ID", "id")
	require.True(ok)
	s, err := ToString(id)
	require.NoError(err)
	require.Equal("s-1", s)

	q, _ := m.Get("Q")
	qs, err := ToFloat64Slice(q)
	require.NoError(err)
	require.Equal([]float64{0.1, 0.2}, qs)

	e, ok := m.Get("Err")
	require.True(ok)
	es, err := ToFloat64Slice(e)
	require.NoError(err)
	require.Empty(es)
}

func TestDecodeIntKeyedMap(t *testing.T) {
	require := require.New(t)

	b, err := msgpack.Marshal(producerFlow{Sample: "s-1", ProcessedPeaks: map[int]float64{3: 1.5}})
	require.NoError(err)

	m, err := Decode(b)
	require.NoError(err)

	v, ok := m.Lookup("ProcessedPeaks", "processed_peaks")
	require.True(ok)
	peaks, err := ToIntFloatMap(v)
	require.NoError(err)
	require.Equal(map[int]float64{3: 1.5}, peaks)
}

func TestEncodeKeepsOrder(t *testing.T) {
	require := require.New(t)

	inner := NewMap("b", int64(2), "a", int64(1))
	m := NewMap("z", "last-first", "nested", inner, "list", []any{int64(1), "x", 2.5})

	b, err := Encode(m)
	require.NoError(err)

	out, err := Decode(b)
	require.NoError(err)
	require.Equal(m, out)
}

func TestMapSet(t *testing.T) {
	require := require.New(t)

	m := NewMap("cmd", "init")
	m.Set("version", int64(1))
	m.Set("cmd", "stop")

	require.Equal(2, m.Len())
	v, ok := m.Get("cmd")
	require.True(ok)
	require.Equal("stop", v)

	_, ok = m.Lookup("missing", "absent")
	require.False(ok)

	require.Panics(func() { NewMap("odd") })
}

func TestDecodeErrors(t *testing.T) {
	require := require.New(t)

	_, err := Decode(nil)
	require.Error(err)

	b, err := msgpack.Marshal([]int{1, 2})
	require.NoError(err)
	_, err = Decode(b)
	require.ErrorIs(err, ErrNotMap)

	b, err = msgpack.Marshal(map[string]int{"a": 1})
	require.NoError(err)
	_, err = Decode(b[:len(b)-1])
	require.Error(err)

	_, err = Decode(append(b, 0x01))
	require.Error(err)
}

func TestDecodeOversizedCounts(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "map32 top level", data: []byte{0xdf, 0xff, 0xff, 0xff, 0xff}},
		{name: "map16 top level", data: []byte{0xde, 0xff, 0xff, 0x01}},
		{name: "array32 value", data: []byte{0x81, 0xa1, 'q', 0xdd, 0xff, 0xff, 0xff, 0xff}},
		{name: "map32 value", data: []byte{0x81, 0xa1, 'm', 0xdf, 0x0f, 0xff, 0xff, 0xff, 0x01, 0x02}},
		{name: "array32 in array", data: []byte{0x81, 0xa1, 'a', 0x91, 0xdd, 0x0f, 0xff, 0xff, 0xff}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			require.ErrorContains(t, err, "bytes left")
		})
	}

	_, err := Decode([]byte{0xdd, 0xff, 0xff, 0xff, 0xff})
	require.ErrorIs(t, err, ErrNotMap)
}

func TestDecodeDepthLimit(t *testing.T) {
	require := require.New(t)

	var v any = "leaf"
	for range maxDepth + 2 {
		v = []any{v}
	}

	b, err := Encode(NewMap("deep", v))
	require.NoError(err)

	_, err = Decode(b)
	require.ErrorContains(err, "nesting")
}

func TestCoercionErrors(t *testing.T) {
	require := require.New(t)

	_, err := ToFloat64Slice("nope")
	require.ErrorIs(err, ErrType)

	_, err = ToFloat64Slice([]any{1.0, "x"})
	require.ErrorIs(err, ErrType)

	_, err = ToIntFloatMap(NewMap(1.5, 2.0))
	require.ErrorIs(err, ErrType)

	_, err = ToString(42)
	require.ErrorIs(err, ErrType)

	_, err = ToMap([]any{})
	require.ErrorIs(err, ErrType)

	n, err := ToInt("12")
	require.NoError(err)
	require.Equal(12, n)

	s, err := ToString([]byte("bin"))
	require.NoError(err)
	require.Equal("bin", s)
}

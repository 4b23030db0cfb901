package protocol

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	require := require.New(t)

	for _, msgType := range []MessageType{SampleType, FlowMetadataType, ControlRequestType, CombinedType, 0x7F} {
		for _, comp := range []CompressionType{NoCompression, LZ4Compression, ZstdCompression} {
			h := NewHeader(msgType, comp, 1<<40+3)
			buf := EncodeHeader(h)
			require.Len(buf, HeaderSize)

			decoded, err := DecodeHeader(buf)
			require.NoError(err)
			require.Equal(h, decoded)
		}
	}
}

func TestHeaderLayout(t *testing.T) {
	require := require.New(t)

	buf := EncodeHeader(NewHeader(CombinedType, ZstdCompression, 0x0102))
	require.Equal([]byte{0x53, 0x58, 0x41, 0x53}, buf[0:4]) // "SAXS" little-endian
	require.Equal([]byte{0x01, 0x00}, buf[4:6])
	require.Equal(byte(0x04), buf[6])
	require.Equal(byte(0x02), buf[7])
	require.Equal(uint64(0x0102), binary.LittleEndian.Uint64(buf[8:16]))
}

func TestDecodeHeaderErrors(t *testing.T) {
	require := require.New(t)

	t.Run("bad magic", func(t *testing.T) {
		h := NewHeader(SampleType, NoCompression, 4)
		h.Magic = 0xDEADBEEF
		_, err := DecodeHeader(EncodeHeader(h))
		require.ErrorIs(err, ErrInvalidMagic)
		require.True(IsProtocolError(err))
	})

	t.Run("bad version", func(t *testing.T) {
		h := NewHeader(SampleType, NoCompression, 4)
		h.Version = 2
		_, err := DecodeHeader(EncodeHeader(h))
		require.ErrorIs(err, ErrUnsupportedVersion)
		require.Contains(err.Error(), "0x2")
	})

	t.Run("short", func(t *testing.T) {
		_, err := DecodeHeader(make([]byte, HeaderSize-1))
		require.ErrorIs(err, ErrIncompleteHeader)
	})
}

func TestFooter(t *testing.T) {
	require := require.New(t)

	payload := []byte("the quick brown fox jumps over the lazy dog")
	footer := EncodeFooter(payload)
	require.Len(footer, FooterSize)
	require.NoError(VerifyFooter(payload, footer))

	err := VerifyFooter(payload, footer[:2])
	require.ErrorIs(err, ErrIncompleteFooter)
}

func TestChecksumDetectsSingleByteChange(t *testing.T) {
	require := require.New(t)

	payload := make([]byte, 64)
	for i := range payload {
		payload[i] = byte(i * 7)
	}
	footer := EncodeFooter(payload)

	for i := range payload {
		for bit := range 8 {
			corrupted := append([]byte(nil), payload...)
			corrupted[i] ^= 1 << bit
			require.ErrorIs(VerifyFooter(corrupted, footer), ErrChecksumMismatch, "payload byte %d bit %d", i, bit)
		}
	}

	for i := range footer {
		for bit := range 8 {
			corrupted := append([]byte(nil), footer...)
			corrupted[i] ^= 1 << bit
			require.ErrorIs(VerifyFooter(payload, corrupted), ErrChecksumMismatch, "footer byte %d bit %d", i, bit)
		}
	}
}

func TestAppendFrame(t *testing.T) {
	require := require.New(t)

	payload := []byte{0x81, 0xA2, 'i', 'd', 0xA1, 'x'}
	frame := AppendFrame([]byte{0xFF}, SampleType, NoCompression, payload)
	frame = frame[1:]
	require.Len(frame, HeaderSize+len(payload)+FooterSize)

	h, err := DecodeHeader(frame[:HeaderSize])
	require.NoError(err)
	require.Equal(SampleType, h.Type)
	require.Equal(uint64(len(payload)), h.PayloadLen)
	require.Equal(payload, frame[HeaderSize:HeaderSize+len(payload)])
	require.NoError(VerifyFooter(payload, frame[HeaderSize+len(payload):]))

	cmd := AppendCommand(nil, []byte("abc"))
	require.Equal([]byte{3, 0, 0, 0, 'a', 'b', 'c'}, cmd)
}

func TestErrorTypes(t *testing.T) {
	require := require.New(t)

	perr := NewProtocolError(ErrChecksumMismatch, "got %d", 1)
	require.Equal("protocol error: checksum mismatch: got 1", perr.Error())
	require.True(errors.Is(perr, ErrChecksumMismatch))
	require.False(IsConfigError(perr))

	cerr := NewConfigError(ErrCodecUnavailable, "")
	require.Equal("config error: compression codec unavailable", cerr.Error())
	require.True(IsConfigError(cerr))
	require.False(IsProtocolError(cerr))

	_, err := ParseCompressionType("gzip")
	require.ErrorIs(err, ErrInvalidConfig)
	c, err := ParseCompressionType("ZSTD")
	require.NoError(err)
	require.Equal(ZstdCompression, c)
	require.Equal("Unknown(0x09)", CompressionType(9).String())
	require.Equal("Combined", CombinedType.String())
	require.False(MessageType(0x05).IsKnown())
}

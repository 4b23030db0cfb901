package protocol

import (
	"encoding/binary"
	"hash/crc32"
)

// Header is the decoded fixed frame header.
type Header struct {
	Magic       uint32
	Version     uint16
	Type        MessageType
	Compression CompressionType
	PayloadLen  uint64
}

// NewHeader returns a header for the current protocol version.
func NewHeader(msgType MessageType, compression CompressionType, payloadLen uint64) Header {
	return Header{
		Magic:       MagicNumber,
		Version:     Version,
		Type:        msgType,
		Compression: compression,
		PayloadLen:  payloadLen,
	}
}

// Frame is one header, payload and footer unit as read from the wire.
//
// Payload holds the bytes as transmitted, i.e. still compressed. A Frame is scoped to a
// single receive and must not be retained after the message has been decoded.
type Frame struct {
	Header   Header
	Payload  []byte
	Checksum uint32
}

// EncodeHeader encodes h into a new HeaderSize byte slice.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	PutHeader(buf, h)

	return buf
}

// PutHeader encodes h into dst, which must be at least HeaderSize bytes long.
func PutHeader(dst []byte, h Header) {
	_ = dst[HeaderSize-1] // bounds check hint
	binary.LittleEndian.PutUint32(dst[0:4], h.Magic)
	binary.LittleEndian.PutUint16(dst[4:6], h.Version)
	dst[6] = byte(h.Type)
	dst[7] = byte(h.Compression)
	binary.LittleEndian.PutUint64(dst[8:16], h.PayloadLen)
}

// DecodeHeader decodes and validates a header.
//
// It returns a *ProtocolError wrapping ErrIncompleteHeader when b is shorter than
// HeaderSize, ErrInvalidMagic when the magic number does not match, and
// ErrUnsupportedVersion for any version other than Version.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, NewProtocolError(ErrIncompleteHeader, "got %d bytes, want %d", len(b), HeaderSize)
	}

	h := Header{
		Magic:       binary.LittleEndian.Uint32(b[0:4]),
		Version:     binary.LittleEndian.Uint16(b[4:6]),
		Type:        MessageType(b[6]),
		Compression: CompressionType(b[7]),
		PayloadLen:  binary.LittleEndian.Uint64(b[8:16]),
	}

	if h.Magic != MagicNumber {
		return h, NewProtocolError(ErrInvalidMagic, "got %#x, want %#x", h.Magic, MagicNumber)
	}

	if h.Version != Version {
		return h, NewProtocolError(ErrUnsupportedVersion, "got %#x, want %#x", h.Version, Version)
	}

	return h, nil
}

// Checksum returns the CRC32 (IEEE) of payload.
func Checksum(payload []byte) uint32 {
	return crc32.ChecksumIEEE(payload)
}

// EncodeFooter returns the footer for payload, which must be the bytes as transmitted.
func EncodeFooter(payload []byte) []byte {
	buf := make([]byte, FooterSize)
	binary.LittleEndian.PutUint32(buf, Checksum(payload))

	return buf
}

// DecodeFooter returns the checksum stored in footer.
func DecodeFooter(footer []byte) (uint32, error) {
	if len(footer) < FooterSize {
		return 0, NewProtocolError(ErrIncompleteFooter, "got %d bytes, want %d", len(footer), FooterSize)
	}

	return binary.LittleEndian.Uint32(footer), nil
}

// VerifyFooter recomputes the checksum of payload and compares it with footer.
func VerifyFooter(payload []byte, footer []byte) error {
	expected, err := DecodeFooter(footer)
	if err != nil {
		return err
	}

	if actual := Checksum(payload); actual != expected {
		return NewProtocolError(ErrChecksumMismatch, "got %#08x, want %#08x", actual, expected)
	}

	return nil
}

// AppendFrame appends a complete frame (header, payload, footer) to dst.
func AppendFrame(dst []byte, msgType MessageType, compression CompressionType, payload []byte) []byte {
	var hdr [HeaderSize]byte
	PutHeader(hdr[:], NewHeader(msgType, compression, uint64(len(payload))))

	dst = append(dst, hdr[:]...)
	dst = append(dst, payload...)

	return binary.LittleEndian.AppendUint32(dst, Checksum(payload))
}

// AppendCommand appends a length-prefixed command frame to dst.
func AppendCommand(dst []byte, body []byte) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(body))) //nolint:gosec

	return append(dst, body...)
}

package protocol

import (
	"fmt"
	"strings"
)

const (
	// MagicNumber is the protocol identifier "SAXS" in ASCII.
	MagicNumber uint32 = 0x53415853

	// Version is the single supported protocol version. There is no negotiation.
	Version uint16 = 0x0001

	// HeaderSize is the size of the frame header in bytes.
	HeaderSize = 16
	// FooterSize is the size of the frame footer (CRC32) in bytes.
	FooterSize = 4
	// LengthPrefixSize is the size of the length prefix of a command frame.
	LengthPrefixSize = 4
)

// MessageType represents the type of message carried by a frame.
type MessageType byte

const (
	// SampleType indicates a message carrying a sample only.
	SampleType MessageType = 0x01
	// FlowMetadataType indicates a message carrying flow metadata only.
	FlowMetadataType MessageType = 0x02
	// ControlRequestType indicates a control message, such as a handshake reply.
	ControlRequestType MessageType = 0x03
	// CombinedType indicates a message carrying a sample and its flow metadata.
	CombinedType MessageType = 0x04
)

// IsKnown reports whether m is one of the message types defined by this protocol version.
func (m MessageType) IsKnown() bool {
	return m >= SampleType && m <= CombinedType
}

// String returns the string representation of MessageType.
func (m MessageType) String() string {
	switch m {
	case SampleType:
		return "Sample"
	case FlowMetadataType:
		return "FlowMetadata"
	case ControlRequestType:
		return "ControlRequest"
	case CombinedType:
		return "Combined"
	default:
		return fmt.Sprintf("Unknown(%#02x)", byte(m))
	}
}

// CompressionType represents the compression algorithm applied to a frame payload.
type CompressionType byte

const (
	// NoCompression indicates the payload is sent as is.
	NoCompression CompressionType = 0x00
	// LZ4Compression indicates an LZ4 frame-format payload.
	LZ4Compression CompressionType = 0x01
	// ZstdCompression indicates a Zstandard payload.
	ZstdCompression CompressionType = 0x02
	// SnappyCompression is an extension code, only accepted when extended codecs are enabled.
	SnappyCompression CompressionType = 0x03
	// BrotliCompression is an extension code, only accepted when extended codecs are enabled.
	BrotliCompression CompressionType = 0x04
)

// IsStandard reports whether c is one of the codes every consumer must declare.
func (c CompressionType) IsStandard() bool {
	return c <= ZstdCompression
}

// String returns the string representation of CompressionType.
func (c CompressionType) String() string {
	switch c {
	case NoCompression:
		return "None"
	case LZ4Compression:
		return "LZ4"
	case ZstdCompression:
		return "Zstd"
	case SnappyCompression:
		return "Snappy"
	case BrotliCompression:
		return "Brotli"
	default:
		return fmt.Sprintf("Unknown(%#02x)", byte(c))
	}
}

// ParseCompressionType parses a case-insensitive compression name.
func ParseCompressionType(s string) (CompressionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return NoCompression, nil
	case "lz4":
		return LZ4Compression, nil
	case "zstd":
		return ZstdCompression, nil
	case "snappy":
		return SnappyCompression, nil
	case "brotli":
		return BrotliCompression, nil
	default:
		return NoCompression, NewConfigError(ErrInvalidConfig, "unknown compression %q", s)
	}
}

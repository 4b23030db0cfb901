// Package protocol defines the SAXS stream wire format shared by the producer process and
// its consumers.
//
// Every message travels in a frame made of a fixed 16-byte header, a variable-length
// payload and a 4-byte footer. All integers are little-endian.
//
//	offset  size  field
//	0       4     magic number, 0x53415853 ("SAXS")
//	4       2     protocol version, must equal Version
//	6       1     message type (MessageType)
//	7       1     compression type (CompressionType)
//	8       8     payload length in bytes, as transmitted
//	16      N     payload (msgpack map, possibly compressed)
//	16+N    4     CRC32 (IEEE) of the N payload bytes as transmitted
//
// Commands flowing in the opposite direction, from the consumer to the producer's standard
// input, carry no header or footer: a 4-byte little-endian length prefix is followed by
// that many msgpack bytes.
//
// The package also defines the error taxonomy used by the rest of the module:
// ProtocolError for wire-level corruption that tears the stream down, and ConfigError for
// problems detected at start that are never retried.
package protocol

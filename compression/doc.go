// Package compression implements the payload compression codecs selected by the
// compression field of a frame header.
//
// Code 0x00 is the identity, 0x01 is the LZ4 frame format and 0x02 is Zstandard. These three
// codes are always declared. Snappy (0x03) and Brotli (0x04) are extension codes that a
// Registry only declares when built with WithExtendedCodecs.
//
// A Registry distinguishes two failure modes:
//
//   - a declared code whose implementation has been removed with Unregister fails with a
//     protocol.ConfigError wrapping protocol.ErrCodecUnavailable;
//   - an undeclared code fails with a protocol.ProtocolError wrapping
//     protocol.ErrUnknownCompression.
package compression

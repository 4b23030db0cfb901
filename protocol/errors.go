package protocol

import (
	"errors"
	"fmt"
)

// Protocol errors. They are fatal to the current stream and always arrive wrapped in a
// *ProtocolError.
var (
	// ErrInvalidMagic indicates the header does not start with MagicNumber.
	ErrInvalidMagic = errors.New("invalid magic number")

	// ErrUnsupportedVersion indicates a header version other than Version.
	ErrUnsupportedVersion = errors.New("unsupported protocol version")

	// ErrIncompleteHeader indicates the stream ended after 1 to 15 header bytes.
	ErrIncompleteHeader = errors.New("incomplete header")

	// ErrIncompletePayload indicates the stream ended before the declared payload length.
	ErrIncompletePayload = errors.New("incomplete payload")

	// ErrIncompleteFooter indicates the stream ended inside the footer.
	ErrIncompleteFooter = errors.New("incomplete footer")

	// ErrChecksumMismatch indicates the CRC32 footer does not match the payload.
	ErrChecksumMismatch = errors.New("checksum mismatch")

	// ErrUnknownCompression indicates an undeclared compression code.
	ErrUnknownCompression = errors.New("unknown compression type")

	// ErrMalformedPayload indicates a payload that cannot be decompressed or decoded.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrPayloadTooLarge indicates a declared payload length above the configured maximum.
	ErrPayloadTooLarge = errors.New("payload too large")
)

// Configuration errors. They are detected at start and are never retried.
var (
	// ErrCodecUnavailable indicates a declared compression code without an implementation.
	ErrCodecUnavailable = errors.New("compression codec unavailable")

	// ErrExecutableNotFound indicates the producer executable cannot be resolved.
	ErrExecutableNotFound = errors.New("executable not found")

	// ErrInvalidConfig indicates an invalid configuration value.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ErrPartialFrame indicates the underlying reader failed after part of a frame was
// consumed, e.g. on a read deadline. The stream position is lost and later reads on the
// same stream cannot be trusted.
var ErrPartialFrame = errors.New("read interrupted inside a frame")

// ProtocolError reports wire-level corruption. Err is one of the protocol sentinels.
type ProtocolError struct {
	Err    error
	Detail string
}

// NewProtocolError returns a *ProtocolError wrapping kind with a formatted detail.
func NewProtocolError(kind error, format string, args ...any) *ProtocolError {
	return &ProtocolError{Err: kind, Detail: fmt.Sprintf(format, args...)}
}

func (e *ProtocolError) Error() string {
	if e.Detail == "" {
		return "protocol error: " + e.Err.Error()
	}

	return "protocol error: " + e.Err.Error() + ": " + e.Detail
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ConfigError reports a configuration problem. Err is one of the configuration sentinels.
type ConfigError struct {
	Err    error
	Detail string
}

// NewConfigError returns a *ConfigError wrapping kind with a formatted detail.
func NewConfigError(kind error, format string, args ...any) *ConfigError {
	return &ConfigError{Err: kind, Detail: fmt.Sprintf(format, args...)}
}

func (e *ConfigError) Error() string {
	if e.Detail == "" {
		return "config error: " + e.Err.Error()
	}

	return "config error: " + e.Err.Error() + ": " + e.Detail
}

func (e *ConfigError) Unwrap() error { return e.Err }

// IsProtocolError reports whether err wraps a *ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// IsConfigError reports whether err wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

package compression

import (
	"errors"
	"fmt"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"

	"github.com/arloliu/go-saxs/protocol"
)

// Registry maps compression codes to codecs.
//
// A code is either declared (part of the protocol the registry speaks) or unknown.
// Registry is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	declared map[protocol.CompressionType]bool
	codecs   map[protocol.CompressionType]Codec
	maxSize  int
}

// DefaultMaxDecompressedSize bounds the decoded size of one payload.
const DefaultMaxDecompressedSize = 256 << 20

type registryOptions struct {
	extended  bool
	zstdLevel zstd.EncoderLevel
	maxSize   int
}

// RegistryOption customizes NewRegistry.
type RegistryOption func(*registryOptions)

// WithExtendedCodecs declares and registers the Snappy and Brotli extension codes.
func WithExtendedCodecs() RegistryOption {
	return func(o *registryOptions) { o.extended = true }
}

// WithZstdLevel sets the encoder level of the Zstandard codec. Defaults to zstd.SpeedDefault.
func WithZstdLevel(level zstd.EncoderLevel) RegistryOption {
	return func(o *registryOptions) { o.zstdLevel = level }
}

// WithMaxDecompressedSize sets the largest decoded payload Decompress accepts. Values
// below 1 keep DefaultMaxDecompressedSize.
func WithMaxDecompressedSize(n int) RegistryOption {
	return func(o *registryOptions) {
		if n > 0 {
			o.maxSize = n
		}
	}
}

// NewRegistry returns a registry declaring the standard codes with their codecs registered.
func NewRegistry(opts ...RegistryOption) *Registry {
	o := &registryOptions{zstdLevel: zstd.SpeedDefault, maxSize: DefaultMaxDecompressedSize}
	for _, opt := range opts {
		opt(o)
	}

	r := &Registry{
		declared: map[protocol.CompressionType]bool{
			protocol.NoCompression:   true,
			protocol.LZ4Compression:  true,
			protocol.ZstdCompression: true,
		},
		codecs:  make(map[protocol.CompressionType]Codec),
		maxSize: o.maxSize,
	}

	r.codecs[protocol.NoCompression] = identityCodec{}
	r.codecs[protocol.LZ4Compression] = NewLZ4Codec()
	// zstd only fails on invalid options; leaving the code unregistered surfaces that as
	// ErrCodecUnavailable on first use.
	if zc, err := NewZstdCodec(o.zstdLevel, zstd.WithDecoderMaxMemory(uint64(o.maxSize))); err == nil {
		r.codecs[protocol.ZstdCompression] = zc
	}

	if o.extended {
		r.declared[protocol.SnappyCompression] = true
		r.declared[protocol.BrotliCompression] = true
		r.codecs[protocol.SnappyCompression] = SnappyCodec{}
		r.codecs[protocol.BrotliCompression] = BrotliCodec{Quality: brotli.DefaultCompression}
	}

	return r
}

// Register declares the codec's code and installs the codec, replacing any previous one.
func (r *Registry) Register(c Codec) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.declared[c.Type()] = true
	r.codecs[c.Type()] = c
}

// Unregister removes the implementation of code but keeps it declared.
// The identity code cannot be removed.
func (r *Registry) Unregister(code protocol.CompressionType) {
	if code == protocol.NoCompression {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.codecs, code)
}

// Declared reports whether code is part of the protocol spoken by r.
func (r *Registry) Declared(code protocol.CompressionType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.declared[code]
}

// Available reports whether code is declared and has an implementation.
func (r *Registry) Available(code protocol.CompressionType) bool {
	_, err := r.codec(code)
	return err == nil
}

// Codec returns the codec for code.
func (r *Registry) Codec(code protocol.CompressionType) (Codec, error) {
	return r.codec(code)
}

// MaxDecompressedSize returns the largest decoded payload Decompress accepts.
func (r *Registry) MaxDecompressedSize() int { return r.maxSize }

// Decompress decodes data according to code.
//
// A decoded payload larger than the registry's limit fails with a ProtocolError wrapping
// ErrPayloadTooLarge; codecs implementing LimitedCodec stop decoding at the limit.
func (r *Registry) Decompress(data []byte, code protocol.CompressionType) ([]byte, error) {
	c, err := r.codec(code)
	if err != nil {
		return nil, err
	}

	var out []byte
	if lc, ok := c.(LimitedCodec); ok {
		out, err = lc.DecompressLimit(data, r.maxSize)
	} else {
		out, err = c.Decompress(data)
		if err == nil && len(out) > r.maxSize {
			err = ErrDecompressedTooLarge
		}
	}

	switch {
	case errors.Is(err, ErrDecompressedTooLarge):
		return nil, protocol.NewProtocolError(protocol.ErrPayloadTooLarge,
			"%s payload of %d bytes decodes beyond %d bytes", code, len(data), r.maxSize)
	case err != nil:
		return nil, protocol.NewProtocolError(protocol.ErrMalformedPayload, "%s decompress: %v", code, err)
	}

	return out, nil
}

// Compress encodes data according to code.
func (r *Registry) Compress(data []byte, code protocol.CompressionType) ([]byte, error) {
	c, err := r.codec(code)
	if err != nil {
		return nil, err
	}

	out, err := c.Compress(data)
	if err != nil {
		return nil, fmt.Errorf("%s compress: %w", code, err)
	}

	return out, nil
}

func (r *Registry) codec(code protocol.CompressionType) (Codec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.declared[code] {
		return nil, protocol.NewProtocolError(protocol.ErrUnknownCompression, "code %#02x", byte(code))
	}

	c, ok := r.codecs[code]
	if !ok {
		return nil, protocol.NewConfigError(protocol.ErrCodecUnavailable, "%s (%#02x) has no implementation", code, byte(code))
	}

	return c, nil
}

// Default is the registry used by the package-level helpers.
var Default = NewRegistry()

// Decompress decodes data with the Default registry.
func Decompress(data []byte, code protocol.CompressionType) ([]byte, error) {
	return Default.Decompress(data, code)
}

// Compress encodes data with the Default registry.
func Compress(data []byte, code protocol.CompressionType) ([]byte, error) {
	return Default.Compress(data, code)
}

package compression

import (
	"bytes"
	"errors"
	"io"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/arloliu/go-saxs/protocol"
)

// Codec compresses and decompresses whole payloads for one compression code.
type Codec interface {
	Type() protocol.CompressionType
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// ErrDecompressedTooLarge is returned by DecompressLimit when the decoded payload would
// exceed the limit.
var ErrDecompressedTooLarge = errors.New("decompressed payload exceeds limit")

// LimitedCodec is implemented by codecs that can stop decoding once the output exceeds a
// limit instead of materializing the whole payload first.
type LimitedCodec interface {
	Codec
	DecompressLimit(data []byte, limit int) ([]byte, error)
}

// readLimited drains r, failing with ErrDecompressedTooLarge past limit bytes.
func readLimited(r io.Reader, limit int) ([]byte, error) {
	out, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return nil, err
	}
	if len(out) > limit {
		return nil, ErrDecompressedTooLarge
	}

	return out, nil
}

type identityCodec struct{}

func (identityCodec) Type() protocol.CompressionType { return protocol.NoCompression }

func (identityCodec) Compress(data []byte) ([]byte, error) { return data, nil }

func (identityCodec) Decompress(data []byte) ([]byte, error) { return data, nil }

func (identityCodec) DecompressLimit(data []byte, limit int) ([]byte, error) {
	if len(data) > limit {
		return nil, ErrDecompressedTooLarge
	}

	return data, nil
}

// LZ4Codec implements the LZ4 frame format, as produced by lz4.frame in other runtimes.
type LZ4Codec struct {
	writers sync.Pool
	readers sync.Pool
}

// NewLZ4Codec returns an LZ4 frame codec with pooled readers and writers.
func NewLZ4Codec() *LZ4Codec {
	return &LZ4Codec{
		writers: sync.Pool{New: func() any { return lz4.NewWriter(nil) }},
		readers: sync.Pool{New: func() any { return lz4.NewReader(nil) }},
	}
}

func (c *LZ4Codec) Type() protocol.CompressionType { return protocol.LZ4Compression }

func (c *LZ4Codec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, _ := c.writers.Get().(*lz4.Writer)
	defer c.writers.Put(w)

	w.Reset(&buf)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (c *LZ4Codec) Decompress(data []byte) ([]byte, error) {
	r, _ := c.readers.Get().(*lz4.Reader)
	defer c.readers.Put(r)

	r.Reset(bytes.NewReader(data))

	return io.ReadAll(r)
}

func (c *LZ4Codec) DecompressLimit(data []byte, limit int) ([]byte, error) {
	r, _ := c.readers.Get().(*lz4.Reader)
	defer c.readers.Put(r)

	r.Reset(bytes.NewReader(data))

	return readLimited(r, limit)
}

// ZstdCodec implements Zstandard using a shared stateless encoder and decoder.
type ZstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewZstdCodec returns a Zstandard codec at the given encoder level. Decoder options,
// such as zstd.WithDecoderMaxMemory, apply to every Decompress call.
func NewZstdCodec(level zstd.EncoderLevel, decOpts ...zstd.DOption) (*ZstdCodec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(level))
	if err != nil {
		return nil, err
	}

	dec, err := zstd.NewReader(nil, decOpts...)
	if err != nil {
		return nil, err
	}

	return &ZstdCodec{enc: enc, dec: dec}, nil
}

func (c *ZstdCodec) Type() protocol.CompressionType { return protocol.ZstdCompression }

func (c *ZstdCodec) Compress(data []byte) ([]byte, error) {
	return c.enc.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

func (c *ZstdCodec) Decompress(data []byte) ([]byte, error) {
	return c.dec.DecodeAll(data, nil)
}

// DecompressLimit decodes data and rejects outputs above limit. Frames that declare a
// content size beyond the decoder's max memory fail before any allocation.
func (c *ZstdCodec) DecompressLimit(data []byte, limit int) ([]byte, error) {
	out, err := c.dec.DecodeAll(data, nil)
	if err != nil {
		if errors.Is(err, zstd.ErrDecoderSizeExceeded) {
			return nil, ErrDecompressedTooLarge
		}

		return nil, err
	}
	if len(out) > limit {
		return nil, ErrDecompressedTooLarge
	}

	return out, nil
}

// SnappyCodec implements the snappy block format.
type SnappyCodec struct{}

func (SnappyCodec) Type() protocol.CompressionType { return protocol.SnappyCompression }

func (SnappyCodec) Compress(data []byte) ([]byte, error) { return snappy.Encode(nil, data), nil }

func (SnappyCodec) Decompress(data []byte) ([]byte, error) { return snappy.Decode(nil, data) }

func (SnappyCodec) DecompressLimit(data []byte, limit int) ([]byte, error) {
	n, err := snappy.DecodedLen(data)
	if err != nil {
		return nil, err
	}
	if n > limit {
		return nil, ErrDecompressedTooLarge
	}

	return snappy.Decode(nil, data)
}

// BrotliCodec implements Brotli at a fixed quality level.
type BrotliCodec struct {
	Quality int
}

func (BrotliCodec) Type() protocol.CompressionType { return protocol.BrotliCompression }

func (c BrotliCodec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, c.Quality)
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func (BrotliCodec) Decompress(data []byte) ([]byte, error) {
	return io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
}

func (BrotliCodec) DecompressLimit(data []byte, limit int) ([]byte, error) {
	return readLimited(brotli.NewReader(bytes.NewReader(data)), limit)
}

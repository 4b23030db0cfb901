package payload

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// ErrNotMap is returned by Decode when the top-level value is not a msgpack map.
var ErrNotMap = errors.New("payload is not a msgpack map")

// maxDepth bounds the nesting of maps and arrays accepted by Decode.
const maxDepth = 64

// Decode parses a msgpack document whose top-level value is a map.
// Trailing bytes after the map are rejected.
func Decode(b []byte) (Map, error) {
	r := bytes.NewReader(b)
	dec := msgpack.NewDecoder(r)

	code, err := dec.PeekCode()
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if !isMapCode(code) {
		return nil, fmt.Errorf("%w: leading code %#02x", ErrNotMap, code)
	}

	m, err := decodeMap(dec, r, 0)
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("decode payload: %d trailing bytes", r.Len())
	}

	return m, nil
}

// Encode serializes m as a msgpack map.
func Encode(m Map) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := m.EncodeMsgpack(enc); err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	return buf.Bytes(), nil
}

func decodeValue(dec *msgpack.Decoder, r *bytes.Reader, depth int) (any, error) {
	code, err := dec.PeekCode()
	if err != nil {
		return nil, err
	}

	switch {
	case isMapCode(code):
		m, err := decodeMap(dec, r, depth+1)
		if err != nil || m == nil {
			return nil, err
		}

		return m, nil
	case isArrayCode(code):
		return decodeArray(dec, r, depth+1)
	default:
		return dec.DecodeInterfaceLoose()
	}
}

func decodeMap(dec *msgpack.Decoder, r *bytes.Reader, depth int) (Map, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("nesting deeper than %d", maxDepth)
	}

	n, err := dec.DecodeMapLen()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, nil
	}

	// the count comes from the wire; an entry takes at least two bytes
	if n > r.Len()/2 {
		return nil, fmt.Errorf("map declares %d entries with %d bytes left", n, r.Len())
	}

	m := make(Map, 0, n)
	for range n {
		key, err := dec.DecodeInterfaceLoose()
		if err != nil {
			return nil, fmt.Errorf("map key: %w", err)
		}
		if b, ok := key.([]byte); ok {
			key = string(b)
		}

		value, err := decodeValue(dec, r, depth)
		if err != nil {
			return nil, fmt.Errorf("value of %v: %w", key, err)
		}

		m = append(m, Entry{Key: key, Value: value})
	}

	return m, nil
}

func decodeArray(dec *msgpack.Decoder, r *bytes.Reader, depth int) ([]any, error) {
	if depth > maxDepth {
		return nil, fmt.Errorf("nesting deeper than %d", maxDepth)
	}

	n, err := dec.DecodeArrayLen()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, nil
	}

	// an item takes at least one byte
	if n > r.Len() {
		return nil, fmt.Errorf("array declares %d items with %d bytes left", n, r.Len())
	}

	items := make([]any, 0, n)
	for range n {
		v, err := decodeValue(dec, r, depth)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}

	return items, nil
}

func isMapCode(c byte) bool {
	return msgpcode.IsFixedMap(c) || c == msgpcode.Map16 || c == msgpcode.Map32
}

func isArrayCode(c byte) bool {
	return msgpcode.IsFixedArray(c) || c == msgpcode.Array16 || c == msgpcode.Array32
}

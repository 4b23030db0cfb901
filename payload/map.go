package payload

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Entry is a single key-value pair of a Map.
type Entry struct {
	Key   any
	Value any
}

// Map is an ordered msgpack map.
//
// Keys are usually strings; integer keys are preserved as int64 or uint64.
type Map []Entry

var _ msgpack.CustomEncoder = Map(nil)

// NewMap builds a Map from alternating keys and values.
// It panics when kv has an odd length, as the argument list is a programming error.
func NewMap(kv ...any) Map {
	if len(kv)%2 != 0 {
		panic(fmt.Sprintf("payload.NewMap: odd number of arguments (%d)", len(kv)))
	}

	m := make(Map, 0, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		m = append(m, Entry{Key: kv[i], Value: kv[i+1]})
	}

	return m
}

// Len returns the number of entries.
func (m Map) Len() int { return len(m) }

// Get returns the value stored under the string key.
func (m Map) Get(key string) (any, bool) {
	for _, e := range m {
		if k, ok := e.Key.(string); ok && k == key {
			return e.Value, true
		}
	}

	return nil, false
}

// Lookup returns the value of the first key that is present, trying keys in order.
func (m Map) Lookup(keys ...string) (any, bool) {
	for _, key := range keys {
		if v, ok := m.Get(key); ok {
			return v, true
		}
	}

	return nil, false
}

// Set replaces the value stored under key, or appends a new entry.
func (m *Map) Set(key string, value any) {
	for i, e := range *m {
		if k, ok := e.Key.(string); ok && k == key {
			(*m)[i].Value = value
			return
		}
	}

	*m = append(*m, Entry{Key: key, Value: value})
}

// Keys returns the keys in wire order.
func (m Map) Keys() []any {
	keys := make([]any, len(m))
	for i, e := range m {
		keys[i] = e.Key
	}

	return keys
}

// EncodeMsgpack writes m as a msgpack map, keeping entry order.
func (m Map) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeMapLen(len(m)); err != nil {
		return err
	}

	for _, e := range m {
		if err := enc.Encode(e.Key); err != nil {
			return err
		}
		if err := enc.Encode(e.Value); err != nil {
			return err
		}
	}

	return nil
}

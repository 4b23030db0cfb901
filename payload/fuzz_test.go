package payload

import (
	"testing"
)

// FuzzDecode checks that Decode never panics and that every map it accepts survives
// an encode and decode cycle with the same keys.
func FuzzDecode(f *testing.F) {
	seed, _ := Encode(NewMap("ID", "s1", "Q", []any{0.1, 0.2}, "nested", NewMap("k", int64(1))))
	f.Add(seed)
	f.Add([]byte{0x80})
	f.Add([]byte{0x91, 0x01})
	f.Add([]byte{})
	f.Add([]byte{0xdf, 0xff, 0xff, 0xff, 0xff})
	f.Add([]byte{0x81, 0xa1, 'q', 0xdd, 0xff, 0xff, 0xff, 0xff})

	f.Fuzz(func(t *testing.T, data []byte) {
		m, err := Decode(data)
		if err != nil {
			return
		}

		out, err := Encode(m)
		if err != nil {
			t.Fatalf("encode decoded map: %v", err)
		}
		again, err := Decode(out)
		if err != nil {
			t.Fatalf("decode re-encoded map: %v", err)
		}
		if len(again.Keys()) != len(m.Keys()) {
			t.Fatalf("key count changed: %d != %d", len(again.Keys()), len(m.Keys()))
		}
	})
}

package persist

import (
	"encoding/binary"
	"testing"

	"github.com/flashlog/nvpersist/pkg/geometry"
	"github.com/flashlog/nvpersist/pkg/memory"
)

type counterCodec struct{}

func (counterCodec) Encode(dst []byte, v uint32) ([]byte, error) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, v)
	return append(dst, buf...), nil
}

func (counterCodec) Decode(payload []byte) (uint32, error) {
	return binary.LittleEndian.Uint32(payload), nil
}

func (counterCodec) Size() uint32 { return 4 }

func TestTypedStoreRoundTrip(t *testing.T) {
	backend := memory.NewRAMBackend(256, 64, 16, 0xFF)
	geom, err := geometry.New(256, 64, 16, 4, 0xFF)
	if err != nil {
		t.Fatalf("geometry.New: %v", err)
	}
	store, err := New(backend, geom, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	typed, err := NewTypedStore[uint32](store, counterCodec{})
	if err != nil {
		t.Fatalf("NewTypedStore: %v", err)
	}
	if _, err := typed.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	for _, v := range []uint32{1, 2, 3, 4096} {
		if _, err := typed.Save(v); err != nil {
			t.Fatalf("Save(%d): %v", v, err)
		}
		got, result, err := typed.Load()
		if err != nil || result != ResultSuccess {
			t.Fatalf("Load() = %v, %v, %v", got, result, err)
		}
		if got != v {
			t.Fatalf("Load() = %d, want %d", got, v)
		}
	}
}

func TestTypedStoreSizeMismatch(t *testing.T) {
	backend := memory.NewRAMBackend(256, 64, 16, 0xFF)
	geom, err := geometry.New(256, 64, 16, 2, 0xFF)
	if err != nil {
		t.Fatalf("geometry.New: %v", err)
	}
	store, err := New(backend, geom, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := NewTypedStore[uint32](store, counterCodec{}); err == nil {
		t.Fatalf("NewTypedStore: expected error for payload size mismatch")
	}
}

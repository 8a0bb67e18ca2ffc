package memory

import "testing"

// Conformance exercises the §6.1 backend contract against any Backend
// implementation, so a new adapter's own tests can call
// memory.Conformance(t, newBackend()) instead of re-deriving these checks.
func Conformance(t *testing.T, b Backend) {
	t.Helper()

	size := b.Size()
	if size == 0 {
		t.Fatal("backend reports zero size")
	}

	fill := b.FillByte()
	probe := make([]byte, 1)
	if err := b.Read(probe, 0, 1); err != nil {
		t.Fatalf("Read at offset 0: %v", err)
	}
	if probe[0] != fill {
		t.Fatalf("fresh backend byte 0 = 0x%02X, want fill byte 0x%02X", probe[0], fill)
	}

	w := b.WriteGranularity()
	if !b.Writable(0, w) {
		t.Fatalf("fresh backend should be Writable(0, %d)", w)
	}

	payload := make([]byte, w)
	for i := range payload {
		payload[i] = 0x42
	}
	if err := b.Write(0, payload); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got := make([]byte, w)
	if err := b.Read(got, 0, w); err != nil {
		t.Fatalf("Read after Write: %v", err)
	}
	for i, v := range got {
		if v != 0x42 {
			t.Fatalf("byte %d after write = 0x%02X, want 0x42", i, v)
		}
	}

	if b.Writable(0, w) {
		t.Fatal("backend reports Writable(0, w) true after a non-fill write")
	}

	e := b.EraseGranularity()
	if size < e {
		return
	}
	if err := b.Erase(0, e); err != nil {
		t.Fatalf("Erase: %v", err)
	}
	if !b.Writable(0, w) {
		t.Fatal("backend should be Writable(0, w) again after Erase")
	}

	if err := b.Read(probe, size-1, 1); err != nil {
		t.Fatalf("Read at last byte: %v", err)
	}
	if err := b.Read(probe, size, 1); err == nil {
		t.Fatal("Read past the end of the region should fail")
	}
}

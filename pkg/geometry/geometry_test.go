package geometry

import (
	"bytes"
	"testing"
)

func TestNewRejectsUnusableRegion(t *testing.T) {
	// payload + header + checksum exceeds region size
	_, err := New(8, 1, 1, 150, 0xFF)
	if err == nil {
		t.Fatal("expected ErrInvalidGeometry, got nil")
	}
}

func TestStrideIsLCMAligned(t *testing.T) {
	g, err := New(256, 64, 16, 1, 0xFF)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// record = 1 + 4 + 1 + 2 = 8; lcm(64,16) = 64; stride must be 64
	if g.Stride != 64 {
		t.Fatalf("stride = %d, want 64", g.Stride)
	}
	if g.Stride%g.EraseGranularity != 0 || g.Stride%g.WriteGranularity != 0 {
		t.Fatalf("stride %d not aligned to E=%d W=%d", g.Stride, g.EraseGranularity, g.WriteGranularity)
	}
	if g.Count != 4 {
		t.Fatalf("count = %d, want 4", g.Count)
	}
}

func TestSingleBlockRegion(t *testing.T) {
	// S5 from spec.md: P=150, S=256, E=4, W=32 -> N == 1
	g, err := New(256, 4, 32, 150, 0xFF)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if g.Count != 1 {
		t.Fatalf("count = %d, want 1", g.Count)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	g, err := New(256, 64, 16, 4, 0xFF)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	scratch := make([]byte, g.RecordSize())
	payload := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	record := EncodeBlock(scratch, 7, 42, payload, g)

	seq, got, ok := DecodeBlock(record, 7, g)
	if !ok {
		t.Fatal("decode rejected a freshly encoded block")
	}
	if seq != 42 {
		t.Fatalf("seq = %d, want 42", seq)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload = %x, want %x", got, payload)
	}
}

func TestDecodeRejectsWrongVersion(t *testing.T) {
	g, _ := New(256, 64, 16, 4, 0xFF)
	scratch := make([]byte, g.RecordSize())
	record := EncodeBlock(scratch, 7, 1, []byte{1, 2, 3, 4}, g)

	if _, _, ok := DecodeBlock(record, 8, g); ok {
		t.Fatal("decode accepted a block with the wrong version tag")
	}
}

func TestDecodeRejectsBitFlip(t *testing.T) {
	g, _ := New(256, 64, 16, 4, 0xFF)
	scratch := make([]byte, g.RecordSize())
	record := EncodeBlock(scratch, 7, 1, []byte{1, 2, 3, 4}, g)

	tampered := append([]byte(nil), record...)
	tampered[0] ^= 1
	if _, _, ok := DecodeBlock(tampered, 7, g); ok {
		t.Fatal("decode accepted a tampered block")
	}
}

package persist

import (
	"bytes"
	"testing"

	"github.com/flashlog/nvpersist/pkg/geometry"
	"github.com/flashlog/nvpersist/pkg/memory"
)

// Invariant 10 / Scenario S6: a sequence wrap around 2^32 must not
// corrupt recovery, driven through real Init/Save/Load against real
// encoded backend bytes rather than by calling selectTail directly.
// This variant seeds the sequence counter near 2^32 by writing one
// pre-encoded block, then crosses the wrap with a handful of real
// Save calls — fast enough to run unconditionally.
func TestScenarioS6SequenceWrapFast(t *testing.T) {
	const regionSize, erase, write, payloadSize = 64, 1, 1, 4
	geom := mustGeometry(t, regionSize, erase, write, payloadSize)
	backend := memory.NewRAMBackend(regionSize, erase, write, 0xFF)

	scratch := make([]byte, geom.RecordSize())
	record := geometry.EncodeBlock(scratch, 0, 0xFFFFFFFF, []byte{9, 9, 9, 9}, geom)
	buf := make([]byte, geom.WriteLength())
	copy(buf, record)
	for i := uint32(len(record)); i < uint32(len(buf)); i++ {
		buf[i] = geom.FillByte
	}
	if err := backend.Write(geom.Offset(0), buf); err != nil {
		t.Fatalf("seed write: %v", err)
	}

	store, err := New(backend, geom, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if res, err := store.Init(); err != nil || res != ResultSuccess {
		t.Fatalf("Init() = %v, %v; want ResultSuccess", res, err)
	}
	if store.currentSeq != 0xFFFFFFFF {
		t.Fatalf("currentSeq = %#x, want 0xFFFFFFFF", store.currentSeq)
	}

	for _, payload := range [][]byte{{1, 2, 3, 4}, {5, 6, 7, 8}, {9, 10, 11, 12}} {
		if _, err := store.Save(payload); err != nil {
			t.Fatalf("Save(%v): %v", payload, err)
		}

		fresh, err := New(backend, geom, 0)
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if _, err := fresh.Init(); err != nil {
			t.Fatalf("Init after wrap: %v", err)
		}
		got := make([]byte, payloadSize)
		if res, err := fresh.Load(got); err != nil || res != ResultSuccess {
			t.Fatalf("Load() = %v, %v", res, err)
		}
		if !bytes.Equal(got, payload) {
			t.Fatalf("Load() = %v, want %v (most recent save must survive the wrap)", got, payload)
		}
	}

	if store.currentSeq >= 0xFFFFFFFF-3 {
		t.Fatalf("currentSeq = %#x, never advanced past the wrap", store.currentSeq)
	}
}

// TestScenarioS6SequenceWrapLong drives hundreds of thousands of real
// Save calls from a seeded starting sequence number to reach and cross
// the 2^32 wrap boundary, with no hand-set final sequence number, the
// slow complement to
// TestScenarioS6SequenceWrapFast. Gated behind testing.Short(), the
// same gate the teacher's own slower tests use for runs that are real
// but not worth paying for on every `go test`.
func TestScenarioS6SequenceWrapLong(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping long sequence-wrap scenario in short mode")
	}

	const regionSize, erase, write, payloadSize = 64, 1, 1, 4
	const runUpToWrap = 300000
	geom := mustGeometry(t, regionSize, erase, write, payloadSize)
	backend := memory.NewRAMBackend(regionSize, erase, write, 0xFF)

	scratch := make([]byte, geom.RecordSize())
	record := geometry.EncodeBlock(scratch, 0, 0xFFFFFFFF-runUpToWrap, []byte{0xFF, 0xFF, 0xFF, 0xFF}, geom)
	buf := make([]byte, geom.WriteLength())
	copy(buf, record)
	for i := uint32(len(record)); i < uint32(len(buf)); i++ {
		buf[i] = geom.FillByte
	}
	if err := backend.Write(geom.Offset(0), buf); err != nil {
		t.Fatalf("seed write: %v", err)
	}

	store, err := New(backend, geom, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := store.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	var last []byte
	for i := 0; i < runUpToWrap+10; i++ {
		payload := []byte{byte(i), byte(i >> 8), byte(i >> 16), byte(i >> 24)}
		if _, err := store.Save(payload); err != nil {
			t.Fatalf("Save(%d): %v", i, err)
		}
		last = payload
	}

	if store.currentSeq != 9 {
		t.Fatalf("currentSeq = %d after wrapping, want 9", store.currentSeq)
	}

	fresh, err := New(backend, geom, 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := fresh.Init(); err != nil {
		t.Fatalf("Init after wrap: %v", err)
	}
	got := make([]byte, payloadSize)
	if res, err := fresh.Load(got); err != nil || res != ResultSuccess {
		t.Fatalf("Load() = %v, %v", res, err)
	}
	if !bytes.Equal(got, last) {
		t.Fatalf("Load() after %d saves = %v, want %v", runUpToWrap+10, got, last)
	}
}

package persist

import (
	"fmt"
	"testing"

	"github.com/flashlog/nvpersist/pkg/geometry"
	"github.com/flashlog/nvpersist/pkg/memory"
)

// TestInvariantGrid drives Invariants 1, 2, 4, 5, 6, and 9 across a
// trimmed parameter grid: every (EraseGranularity, WriteGranularity)
// corner named by spec.md's full combinatorial grid, crossed with the
// payload-size extremes. A single 4096-byte region is large enough to
// hold at least one block under every corner, so one S value covers the
// whole grid without a wasted dimension.
func TestInvariantGrid(t *testing.T) {
	erases := []uint32{1, 4, 256, 1024}
	writes := []uint32{1, 4, 32}
	payloadSizes := []uint32{1, 150}
	const regionSize = 4096
	const fillByte = 0xFF

	for _, e := range erases {
		for _, w := range writes {
			for _, p := range payloadSizes {
				e, w, p := e, w, p
				t.Run(fmt.Sprintf("E=%d/W=%d/P=%d", e, w, p), func(t *testing.T) {
					geom, err := geometry.New(regionSize, e, w, p, fillByte)
					if err != nil {
						t.Fatalf("geometry.New(%d,%d,%d,%d): %v", regionSize, e, w, p, err)
					}

					t.Run("Invariant1_FirstReadIsNoData", func(t *testing.T) {
						backend := memory.NewRAMBackend(regionSize, e, w, fillByte)
						store, err := New(backend, geom, 0)
						if err != nil {
							t.Fatalf("New: %v", err)
						}
						if res, err := store.Init(); err != nil || res != ResultNoData {
							t.Fatalf("Init() = %v, %v; want ResultNoData", res, err)
						}
						if res, err := store.Load(make([]byte, p)); err != nil || res != ResultNoData {
							t.Fatalf("Load() = %v, %v; want ResultNoData", res, err)
						}
					})

					t.Run("Invariant2_SaveLoadRoundTrip", func(t *testing.T) {
						backend := memory.NewRAMBackend(regionSize, e, w, fillByte)
						store, err := New(backend, geom, 0)
						if err != nil {
							t.Fatalf("New: %v", err)
						}
						if _, err := store.Init(); err != nil {
							t.Fatalf("Init: %v", err)
						}

						payload := make([]byte, p)
						for i := range payload {
							payload[i] = byte(i)
						}
						if res, err := store.Save(payload); err != nil || res != ResultSuccess {
							t.Fatalf("Save() = %v, %v", res, err)
						}
						got := make([]byte, p)
						if res, err := store.Load(got); err != nil || res != ResultSuccess {
							t.Fatalf("Load() = %v, %v", res, err)
						}
						if string(got) != string(payload) {
							t.Fatalf("Load() did not round-trip the payload")
						}
					})

					t.Run("Invariant4_TamperDetection", func(t *testing.T) {
						backend := memory.NewRAMBackend(regionSize, e, w, fillByte)
						store, err := New(backend, geom, 0)
						if err != nil {
							t.Fatalf("New: %v", err)
						}
						if _, err := store.Init(); err != nil {
							t.Fatalf("Init: %v", err)
						}

						payload := make([]byte, p)
						for i := range payload {
							payload[i] = byte(i + 1)
						}
						if _, err := store.Save(payload); err != nil {
							t.Fatalf("Save: %v", err)
						}

						ram := backend
						ram.FlipBit(0, 0)

						fresh, err := New(backend, geom, 0)
						if err != nil {
							t.Fatalf("New: %v", err)
						}
						if res, err := fresh.Init(); err != nil || res != ResultNoData {
							t.Fatalf("Init() after tamper = %v, %v; want ResultNoData", res, err)
						}
					})

					t.Run("Invariant5_AllFillValueIsNoData", func(t *testing.T) {
						for _, fill := range []byte{0x00, 0xFF} {
							backend := memory.NewRAMBackend(regionSize, e, w, fillByte)
							store, err := New(backend, geom, 0)
							if err != nil {
								t.Fatalf("New: %v", err)
							}
							if _, err := store.Init(); err != nil {
								t.Fatalf("Init: %v", err)
							}

							payload := make([]byte, p)
							if _, err := store.Save(payload); err != nil {
								t.Fatalf("Save: %v", err)
							}

							ram := backend
							ram.Fill(fill)

							fresh, err := New(backend, geom, 0)
							if err != nil {
								t.Fatalf("New: %v", err)
							}
							if res, err := fresh.Init(); err != nil || res != ResultNoData {
								t.Fatalf("fill=%#x: Init() = %v, %v; want ResultNoData", fill, res, err)
							}
						}
					})

					t.Run("Invariant6_VersionMismatchIsNoData", func(t *testing.T) {
						backend := memory.NewRAMBackend(regionSize, e, w, fillByte)
						store, err := New(backend, geom, 0)
						if err != nil {
							t.Fatalf("New: %v", err)
						}
						if _, err := store.Init(); err != nil {
							t.Fatalf("Init: %v", err)
						}

						payload := make([]byte, p)
						if _, err := store.Save(payload); err != nil {
							t.Fatalf("Save: %v", err)
						}

						other, err := New(backend, geom, 1)
						if err != nil {
							t.Fatalf("New: %v", err)
						}
						if res, err := other.Init(); err != nil || res != ResultNoData {
							t.Fatalf("Init() under other version = %v, %v; want ResultNoData", res, err)
						}
					})

					t.Run("Invariant9_SameDataSuppression", func(t *testing.T) {
						backend := memory.NewRAMBackend(regionSize, e, w, fillByte)
						store, err := New(backend, geom, 0)
						if err != nil {
							t.Fatalf("New: %v", err)
						}
						if _, err := store.Init(); err != nil {
							t.Fatalf("Init: %v", err)
						}

						payload := make([]byte, p)
						if _, err := store.Save(payload); err != nil {
							t.Fatalf("Save: %v", err)
						}

						instrumented := memory.NewInstrumentedBackend(backend)
						suppressed, err := New(instrumented, geom, 0)
						if err != nil {
							t.Fatalf("New: %v", err)
						}
						if _, err := suppressed.Init(); err != nil {
							t.Fatalf("Init: %v", err)
						}
						if res, err := suppressed.Save(payload); err != nil || res != ResultSuccess {
							t.Fatalf("Save(same) = %v, %v", res, err)
						}
						if n := instrumented.TotalWriteBytes(); n != 0 {
							t.Fatalf("TotalWriteBytes() = %d, want 0 after suppressed save", n)
						}
						if n := instrumented.TotalEraseBytes(); n != 0 {
							t.Fatalf("TotalEraseBytes() = %d, want 0 after suppressed save", n)
						}
					})
				})
			}
		}
	}
}

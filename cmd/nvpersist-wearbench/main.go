// Command nvpersist-wearbench drives the wear-leveling and sequence-wrap
// scenarios of the persist engine against an in-memory backend and
// reports the resulting erase/write histograms, ported in spirit (not in
// bulk) from the teacher's storage-bench harness.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/flashlog/nvpersist/pkg/geometry"
	"github.com/flashlog/nvpersist/pkg/memory"
	"github.com/flashlog/nvpersist/pkg/persist"
)

var (
	scenario      = flag.String("scenario", "all", "Scenario to run: wear, wrap, or all")
	wearSaves     = flag.Int("wear-saves", 10000, "Number of distinct payloads to save for the wear-leveling scenario")
	wrapSaves     = flag.Int("wrap-saves", 200000, "Number of saves for the sequence-wrap scenario (the spec scenario uses 10,000,000; this defaults lower for a quick run)")
	wrapCheckStep = flag.Int("wrap-check-every", 32768, "Re-Init and Load a fresh instance every N saves during the wrap scenario")
)

func main() {
	flag.Parse()

	var results []string
	switch *scenario {
	case "wear":
		results = append(results, runWearScenario(*wearSaves))
	case "wrap":
		results = append(results, runWrapScenario(*wrapSaves, *wrapCheckStep))
	case "all":
		results = append(results, runWearScenario(*wearSaves))
		results = append(results, runWrapScenario(*wrapSaves, *wrapCheckStep))
	default:
		fmt.Fprintf(os.Stderr, "unknown scenario: %s\n", *scenario)
		os.Exit(1)
	}

	for _, r := range results {
		fmt.Println(r)
	}
}

// runWearScenario mirrors spec.md scenario S3: S=4096, E=1, W=1, P=4,
// saving n distinct 4-byte payloads and reporting the spread between the
// most- and least-worn bytes in the region.
func runWearScenario(n int) string {
	const regionSize, eraseGranularity, writeGranularity, payloadSize = 4096, 1, 1, 4

	backend := memory.NewRAMBackend(regionSize, eraseGranularity, writeGranularity, 0xFF)
	instrumented := memory.NewInstrumentedBackend(backend)

	geom, err := geometry.New(regionSize, eraseGranularity, writeGranularity, payloadSize, backend.FillByte())
	if err != nil {
		return fmt.Sprintf("wear: geometry error: %v", err)
	}

	store, err := persist.New(instrumented, geom, 1)
	if err != nil {
		return fmt.Sprintf("wear: store construction error: %v", err)
	}
	if _, err := store.Init(); err != nil {
		return fmt.Sprintf("wear: init error: %v", err)
	}

	start := time.Now()
	payload := make([]byte, payloadSize)
	for i := 0; i < n; i++ {
		payload[0], payload[1], payload[2], payload[3] = byte(i), byte(i>>8), byte(i>>16), byte(i>>24)
		if _, err := store.Save(payload); err != nil {
			return fmt.Sprintf("wear: save %d failed: %v", i, err)
		}
	}
	elapsed := time.Since(start)

	_, eraseDelta, eraseOK := memory.HistogramSpread(instrumented.EraseHistogram())
	_, writeDelta, writeOK := memory.HistogramSpread(instrumented.WriteHistogram())

	return fmt.Sprintf(
		"wear: %d saves over %d blocks in %s (%.1f saves/sec) — erase spread=%d (even=%v), write spread=%d (even=%v), total erased=%d, total written=%d",
		n, geom.Count, elapsed, float64(n)/elapsed.Seconds(), eraseDelta, eraseOK, writeDelta, writeOK,
		instrumented.TotalEraseBytes(), instrumented.TotalWriteBytes(),
	)
}

// runWrapScenario mirrors spec.md scenario S6: a 1 MiB RAM backend, 4-byte
// payloads, saving sequentially increasing integers far enough to wrap the
// block ring many times, re-checking survival from a fresh instance every
// checkEvery saves. The sequence number starts at 0, so at these save
// counts it does not reach the 32-bit wrap.
func runWrapScenario(n, checkEvery int) string {
	const regionSize, payloadSize = 1 << 20, 4
	const eraseGranularity, writeGranularity = 1, 1

	backend := memory.NewRAMBackend(regionSize, eraseGranularity, writeGranularity, 0xFF)
	geom, err := geometry.New(regionSize, eraseGranularity, writeGranularity, payloadSize, backend.FillByte())
	if err != nil {
		return fmt.Sprintf("wrap: geometry error: %v", err)
	}

	store, err := persist.New(backend, geom, 1)
	if err != nil {
		return fmt.Sprintf("wrap: store construction error: %v", err)
	}
	if _, err := store.Init(); err != nil {
		return fmt.Sprintf("wrap: init error: %v", err)
	}

	start := time.Now()
	payload := make([]byte, payloadSize)
	checks := 0
	for i := 0; i < n; i++ {
		payload[0], payload[1], payload[2], payload[3] = byte(i), byte(i>>8), byte(i>>16), byte(i>>24)
		if _, err := store.Save(payload); err != nil {
			return fmt.Sprintf("wrap: save %d failed: %v", i, err)
		}

		if checkEvery > 0 && (i+1)%checkEvery == 0 {
			fresh, err := persist.New(backend, geom, 1)
			if err != nil {
				return fmt.Sprintf("wrap: fresh store construction error at save %d: %v", i, err)
			}
			if _, err := fresh.Init(); err != nil {
				return fmt.Sprintf("wrap: fresh Init failed at save %d: %v", i, err)
			}

			readBack := make([]byte, payloadSize)
			if _, err := fresh.Load(readBack); err != nil {
				return fmt.Sprintf("wrap: fresh Load failed at save %d: %v", i, err)
			}
			want := payload
			for b := 0; b < payloadSize; b++ {
				if readBack[b] != want[b] {
					return fmt.Sprintf("wrap: survival check failed at save %d: got %x want %x", i, readBack, want)
				}
			}
			checks++
		}
	}
	elapsed := time.Since(start)

	return fmt.Sprintf(
		"wrap: %d saves over %d blocks in %s (%.1f saves/sec), %d survival checks passed",
		n, geom.Count, elapsed, float64(n)/elapsed.Seconds(), checks,
	)
}

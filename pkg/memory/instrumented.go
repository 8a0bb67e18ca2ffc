package memory

// InstrumentedBackend wraps a Backend and records a per-byte write and
// erase histogram, ported from the anonymous Memory<S,E,W> fixture in
// original_source's persist test suite. It is used by the wear-leveling
// property tests and by cmd/nvpersist-wearbench.
type InstrumentedBackend struct {
	Backend
	writeHistogram []uint64
	eraseHistogram []uint64
	writeBytes     uint64
	eraseBytes     uint64
}

// NewInstrumentedBackend wraps backend with per-byte write/erase counters.
func NewInstrumentedBackend(backend Backend) *InstrumentedBackend {
	return &InstrumentedBackend{
		Backend:        backend,
		writeHistogram: make([]uint64, backend.Size()),
		eraseHistogram: make([]uint64, backend.Size()),
	}
}

func (b *InstrumentedBackend) Write(offset uint32, src []byte) error {
	if err := b.Backend.Write(offset, src); err != nil {
		return err
	}
	for i := range src {
		b.writeHistogram[offset+uint32(i)]++
	}
	b.writeBytes += uint64(len(src))
	return nil
}

func (b *InstrumentedBackend) Erase(offset, length uint32) error {
	if err := b.Backend.Erase(offset, length); err != nil {
		return err
	}
	for i := offset; i < offset+length; i++ {
		b.eraseHistogram[i]++
	}
	b.eraseBytes += uint64(length)
	return nil
}

// WriteHistogram returns the per-byte write count across the region.
func (b *InstrumentedBackend) WriteHistogram() []uint64 {
	return b.writeHistogram
}

// EraseHistogram returns the per-byte erase count across the region.
func (b *InstrumentedBackend) EraseHistogram() []uint64 {
	return b.eraseHistogram
}

// TotalWriteBytes returns the cumulative number of bytes written.
func (b *InstrumentedBackend) TotalWriteBytes() uint64 { return b.writeBytes }

// TotalEraseBytes returns the cumulative number of bytes erased.
func (b *InstrumentedBackend) TotalEraseBytes() uint64 { return b.eraseBytes }

// HistogramSpread returns the set of distinct nonzero values present in a
// histogram and, if exactly two are present, their difference. Spec.md §8's
// wear-leveling invariant requires at most two distinct nonzero values,
// differing by exactly one.
func HistogramSpread(histogram []uint64) (distinct map[uint64]struct{}, delta uint64, ok bool) {
	distinct = make(map[uint64]struct{})
	for _, v := range histogram {
		if v != 0 {
			distinct[v] = struct{}{}
		}
	}

	if len(distinct) > 2 {
		return distinct, 0, false
	}
	if len(distinct) < 2 {
		return distinct, 0, true
	}

	var lo, hi uint64
	first := true
	for v := range distinct {
		if first {
			lo, hi = v, v
			first = false
			continue
		}
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	return distinct, hi - lo, hi-lo == 1
}

package memory

// RAMBackend is an in-process, byte-slice-backed Backend, ported from
// original_source's RamMemory test double. Erase and write granularity
// default to 1 (fully addressable) but may be configured for coarser
// simulated geometries.
type RAMBackend struct {
	mem   []byte
	erase uint32
	write uint32
	fill  byte
}

// NewRAMBackend allocates a RAM-backed region of size bytes, filled with
// fill, with the given erase and write granularities.
func NewRAMBackend(size, eraseGranularity, writeGranularity uint32, fill byte) *RAMBackend {
	mem := make([]byte, size)
	for i := range mem {
		mem[i] = fill
	}
	return &RAMBackend{mem: mem, erase: eraseGranularity, write: writeGranularity, fill: fill}
}

func (b *RAMBackend) Size() uint32             { return uint32(len(b.mem)) }
func (b *RAMBackend) EraseGranularity() uint32 { return b.erase }
func (b *RAMBackend) WriteGranularity() uint32 { return b.write }
func (b *RAMBackend) FillByte() byte           { return b.fill }

func (b *RAMBackend) Read(dst []byte, offset, length uint32) error {
	if err := checkBounds(b.Size(), offset, length); err != nil {
		return err
	}
	copy(dst[:length], b.mem[offset:offset+length])
	return nil
}

func (b *RAMBackend) Writable(offset, length uint32) bool {
	if checkBounds(b.Size(), offset, length) != nil {
		return false
	}
	if b.write != 0 && (offset%b.write != 0 || length%b.write != 0) {
		return false
	}
	for _, v := range b.mem[offset : offset+length] {
		if v != b.fill {
			return false
		}
	}
	return true
}

func (b *RAMBackend) Write(offset uint32, src []byte) error {
	length := uint32(len(src))
	if err := checkBounds(b.Size(), offset, length); err != nil {
		return err
	}
	if !b.Writable(offset, length) {
		return ErrNotErased
	}
	copy(b.mem[offset:offset+length], src)
	return nil
}

func (b *RAMBackend) Erase(offset, length uint32) error {
	if err := checkBounds(b.Size(), offset, length); err != nil {
		return err
	}
	if b.erase != 0 && (offset%b.erase != 0 || length%b.erase != 0) {
		return ErrMisaligned
	}
	for i := offset; i < offset+length; i++ {
		b.mem[i] = b.fill
	}
	return nil
}

// Fill overwrites the entire region with byte, bypassing erase-alignment
// checks; used by tests that simulate an all-zeros or all-ones medium.
func (b *RAMBackend) Fill(byte_ byte) {
	for i := range b.mem {
		b.mem[i] = byte_
	}
}

// FlipBit XORs a single bit at the given byte offset, used by tamper tests.
func (b *RAMBackend) FlipBit(offset uint32, bit uint) {
	b.mem[offset] ^= 1 << bit
}

// TruncateWrite simulates a crash partway through a write: it copies
// only the first k bytes of src into the region at offset, leaving the
// rest of that range exactly as it was (ordinarily whatever Erase last
// left it). It bypasses the Writable/erased-range check Write enforces,
// since a power loss mid-write doesn't ask permission either.
func (b *RAMBackend) TruncateWrite(offset uint32, src []byte, k uint32) error {
	if err := checkBounds(b.Size(), offset, uint32(len(src))); err != nil {
		return err
	}
	if k > uint32(len(src)) {
		k = uint32(len(src))
	}
	copy(b.mem[offset:offset+k], src[:k])
	return nil
}

// Raw exposes the underlying bytes for inspection (tests, snapshotting).
// Callers must not retain a reference past the backend's lifetime.
func (b *RAMBackend) Raw() []byte {
	return b.mem
}

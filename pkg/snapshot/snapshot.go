// Package snapshot dumps a memory region to a compressed archive and
// restores it again, for offline diagnostics and replay-based testing.
// It reuses the zstd encoder/decoder lifecycle pattern the rest of the
// corpus uses for wire-level compression, and fingerprints each dump with
// xxhash-64 so two dumps (or a dump and a live region) can be compared
// without a byte-for-byte diff.
package snapshot

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/flashlog/nvpersist/pkg/memory"
)

// ErrMagicMismatch is returned when a reader's contents don't start with
// the snapshot archive magic.
var ErrMagicMismatch = errors.New("nvpersist: not a snapshot archive")

// ErrSizeMismatch is returned by Restore when the archive's region size
// doesn't match the target backend's size.
var ErrSizeMismatch = errors.New("nvpersist: snapshot region size does not match backend")

// ErrFingerprintMismatch is returned by Restore when the decompressed
// contents don't hash to the fingerprint recorded in the archive header.
var ErrFingerprintMismatch = errors.New("nvpersist: snapshot fingerprint does not match decompressed contents")

const magic = "NVPSNAP1"

const headerSize = len(magic) + 4 + 8

// Dumper compresses and decompresses region snapshots. It keeps a single
// zstd encoder and decoder alive across calls, mirroring the
// CompressionManager lifecycle: construct once, reuse, Close when done.
type Dumper struct {
	mu      sync.Mutex
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewDumper constructs a Dumper with a default-level zstd encoder.
func NewDumper() (*Dumper, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("nvpersist: create zstd encoder: %w", err)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("nvpersist: create zstd decoder: %w", err)
	}

	return &Dumper{encoder: enc, decoder: dec}, nil
}

// Close releases the encoder and decoder. A closed Dumper must not be used
// again.
func (d *Dumper) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.encoder != nil {
		d.encoder.Close()
		d.encoder = nil
	}
	if d.decoder != nil {
		d.decoder.Close()
		d.decoder = nil
	}
	return nil
}

// Fingerprint returns the xxhash-64 digest of data.
func Fingerprint(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// Dump reads the entire region from backend, compresses it, and writes a
// self-describing archive to w: an 8-byte magic, the little-endian region
// size, the little-endian xxhash-64 fingerprint of the uncompressed
// contents, then the zstd stream.
func (d *Dumper) Dump(w io.Writer, backend memory.Backend) error {
	size := backend.Size()
	raw := make([]byte, size)
	if err := backend.Read(raw, 0, size); err != nil {
		return fmt.Errorf("nvpersist: reading region for dump: %w", err)
	}

	d.mu.Lock()
	compressed := d.encoder.EncodeAll(raw, nil)
	d.mu.Unlock()

	header := make([]byte, headerSize)
	copy(header, magic)
	binary.LittleEndian.PutUint32(header[len(magic):], size)
	binary.LittleEndian.PutUint64(header[len(magic)+4:], Fingerprint(raw))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("nvpersist: writing dump header: %w", err)
	}
	if _, err := w.Write(compressed); err != nil {
		return fmt.Errorf("nvpersist: writing dump body: %w", err)
	}
	return nil
}

// Restore decompresses an archive produced by Dump and writes its contents
// back onto backend, which must be exactly the dumped region's size.
// Restore erases the entire region before writing, so it is meant for
// replay-based testing against a backend that isn't holding data worth
// keeping, not for merging a dump into a live store.
func (d *Dumper) Restore(r io.Reader, backend memory.Backend) error {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("nvpersist: reading dump header: %w", err)
	}
	if string(header[:len(magic)]) != magic {
		return ErrMagicMismatch
	}

	size := binary.LittleEndian.Uint32(header[len(magic):])
	wantFingerprint := binary.LittleEndian.Uint64(header[len(magic)+4:])

	if size != backend.Size() {
		return fmt.Errorf("%w: dump is %d bytes, backend is %d", ErrSizeMismatch, size, backend.Size())
	}

	compressed, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("nvpersist: reading dump body: %w", err)
	}

	d.mu.Lock()
	raw, err := d.decoder.DecodeAll(compressed, make([]byte, 0, size))
	d.mu.Unlock()
	if err != nil {
		return fmt.Errorf("nvpersist: decompressing dump: %w", err)
	}

	if Fingerprint(raw) != wantFingerprint {
		return ErrFingerprintMismatch
	}

	if err := backend.Erase(0, size); err != nil {
		return fmt.Errorf("nvpersist: erasing region before restore: %w", err)
	}
	if err := backend.Write(0, raw); err != nil {
		return fmt.Errorf("nvpersist: writing restored region: %w", err)
	}
	return nil
}

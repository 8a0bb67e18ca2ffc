// Package memory provides the nvpersist memory backend contract and the
// backend adapters the rest of the repository exercises the persist engine
// against: an in-process RAM backend, a file-backed backend, and an
// instrumented wrapper used by the wear-leveling property tests.
package memory

import (
	"errors"
	"fmt"
)

// ErrOutOfBounds is returned when an operation's offset/length range falls
// outside the backend's addressable span.
var ErrOutOfBounds = errors.New("nvpersist: backend access out of bounds")

// ErrMisaligned is returned when Write or Erase is asked to operate on a
// range that isn't a multiple of the relevant granularity.
var ErrMisaligned = errors.New("nvpersist: backend access misaligned")

// ErrNotErased is returned by Write when the target range has not been
// confirmed erased via Writable.
var ErrNotErased = errors.New("nvpersist: backend write target not erased")

// Backend abstracts a physical or simulated medium exposing erase/write/read
// at configurable granularity, per spec.md §6.1.
type Backend interface {
	// Size is the total addressable span in bytes (S).
	Size() uint32
	// EraseGranularity is the smallest unit the medium can clear (E).
	EraseGranularity() uint32
	// WriteGranularity is the smallest unit the medium can program (W).
	WriteGranularity() uint32
	// FillByte is the value a freshly erased medium presents (F).
	FillByte() byte

	// Read copies length bytes starting at offset into dst.
	Read(dst []byte, offset, length uint32) error
	// Writable reports whether offset and length are write-aligned,
	// in-bounds, and every byte in range currently equals FillByte.
	Writable(offset, length uint32) bool
	// Write programs src at offset. The precondition is that Writable
	// most recently returned true for this exact range.
	Write(offset uint32, src []byte) error
	// Erase sets length bytes starting at offset to FillByte. offset and
	// length must both be multiples of EraseGranularity.
	Erase(offset, length uint32) error
}

func checkBounds(size, offset, length uint32) error {
	if offset > size || length > size-offset {
		return fmt.Errorf("%w: offset=%d length=%d size=%d", ErrOutOfBounds, offset, length, size)
	}
	return nil
}

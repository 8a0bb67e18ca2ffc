// Package geometry computes nvpersist's block layout (stride and count) from
// a memory region's size and granularities, and encodes/decodes individual
// blocks: a one-byte version tag, a little-endian 32-bit sequence number,
// the payload, and a little-endian CRC-16 over header+payload.
package geometry

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/flashlog/nvpersist/pkg/crc16"
)

// ErrInvalidGeometry is returned when the region cannot hold even one block
// under the requested payload size and granularities.
var ErrInvalidGeometry = errors.New("nvpersist: invalid geometry")

// HeaderSize is the byte length of the version tag plus the sequence
// number, before the payload.
const HeaderSize = 1 + 4

// ChecksumSize is the byte length of the trailing CRC-16.
const ChecksumSize = 2

// Geometry describes how a memory region of size RegionSize, with erase
// granularity EraseGranularity and write granularity WriteGranularity, is
// carved into fixed-size blocks holding a PayloadSize-byte payload.
type Geometry struct {
	RegionSize        uint32
	EraseGranularity  uint32
	WriteGranularity  uint32
	PayloadSize       uint32
	FillByte          byte

	// Stride is B: the byte distance between the start of successive
	// blocks, a multiple of lcm(EraseGranularity, WriteGranularity).
	Stride uint32

	// Count is N: the number of blocks the region holds.
	Count uint32
}

// RecordSize is the length of the non-padding portion of a block: header +
// payload + checksum.
func (g Geometry) RecordSize() uint32 {
	return HeaderSize + g.PayloadSize + ChecksumSize
}

// Offset returns the byte offset of block index within the region.
func (g Geometry) Offset(index uint32) uint32 {
	return index * g.Stride
}

// WriteLength is the number of bytes a Save actually programs: the record
// size rounded up to the next WriteGranularity boundary. It is at most
// Stride, since Stride is itself a multiple of WriteGranularity.
func (g Geometry) WriteLength() uint32 {
	return ceilToMultiple(g.RecordSize(), g.WriteGranularity)
}

// New computes the block stride and count for a region of the given
// parameters. It fails with ErrInvalidGeometry if the region cannot hold at
// least one block.
func New(regionSize, eraseGranularity, writeGranularity, payloadSize uint32, fillByte byte) (Geometry, error) {
	if eraseGranularity == 0 || writeGranularity == 0 {
		return Geometry{}, fmt.Errorf("%w: granularities must be nonzero", ErrInvalidGeometry)
	}

	record := uint32(HeaderSize) + payloadSize + ChecksumSize
	l := lcm(eraseGranularity, writeGranularity)
	stride := ceilToMultiple(record, l)

	if stride == 0 {
		return Geometry{}, fmt.Errorf("%w: zero stride", ErrInvalidGeometry)
	}

	count := regionSize / stride
	if count == 0 {
		return Geometry{}, fmt.Errorf("%w: region of %d bytes cannot hold a %d-byte block", ErrInvalidGeometry, regionSize, stride)
	}

	return Geometry{
		RegionSize:       regionSize,
		EraseGranularity: eraseGranularity,
		WriteGranularity: writeGranularity,
		PayloadSize:      payloadSize,
		FillByte:         fillByte,
		Stride:           stride,
		Count:            count,
	}, nil
}

func gcd(a, b uint32) uint32 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b uint32) uint32 {
	return a / gcd(a, b) * b
}

func ceilToMultiple(n, m uint32) uint32 {
	if n%m == 0 {
		return n
	}
	return (n/m + 1) * m
}

// EncodeBlock writes the header, payload, and checksum into scratch (which
// must be at least g.RecordSize() bytes long) and returns the filled
// prefix. It performs no allocation, matching the constraint that the
// store must not allocate at steady state. Padding (if the caller writes
// the full stride to the backend) is the caller's responsibility.
func EncodeBlock(scratch []byte, version byte, seq uint32, payload []byte, g Geometry) []byte {
	record := scratch[:g.RecordSize()]
	record[0] = version
	binary.LittleEndian.PutUint32(record[1:5], seq)
	copy(record[HeaderSize:HeaderSize+g.PayloadSize], payload)

	sum := crc16.Checksum(crc16.Init, record[:HeaderSize+g.PayloadSize])
	binary.LittleEndian.PutUint16(record[HeaderSize+g.PayloadSize:], sum)

	return record
}

// DecodeBlock reads a raw block (at least g.RecordSize() bytes) and
// validates it against the expected version tag. A version or checksum
// mismatch is reported via ok=false, never an error: per the block codec's
// decode contract, "not ours" is not a failure.
func DecodeBlock(raw []byte, version byte, g Geometry) (seq uint32, payload []byte, ok bool) {
	if uint32(len(raw)) < g.RecordSize() {
		return 0, nil, false
	}

	if raw[0] != version {
		return 0, nil, false
	}

	seq = binary.LittleEndian.Uint32(raw[1:5])
	payloadEnd := HeaderSize + g.PayloadSize
	want := binary.LittleEndian.Uint16(raw[payloadEnd : payloadEnd+ChecksumSize])
	got := crc16.Checksum(crc16.Init, raw[:payloadEnd])

	if got != want {
		return 0, nil, false
	}

	return seq, raw[HeaderSize:payloadEnd], true
}

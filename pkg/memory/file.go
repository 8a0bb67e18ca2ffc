package memory

import (
	"fmt"
	"os"
)

// FileBackend is a Backend over an os.File, padded to size bytes with
// fillByte on open, ported from original_source's FileMemory.
type FileBackend struct {
	file  *os.File
	size  uint32
	erase uint32
	write uint32
	fill  byte
}

// OpenFileBackend opens (creating if necessary) the file at path and pads
// it to size bytes with fillByte.
func OpenFileBackend(path string, size, eraseGranularity, writeGranularity uint32, fillByte byte) (*FileBackend, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("nvpersist: open backend file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("nvpersist: stat backend file: %w", err)
	}

	if uint32(info.Size()) < size {
		pad := make([]byte, size-uint32(info.Size()))
		for i := range pad {
			pad[i] = fillByte
		}
		if _, err := f.WriteAt(pad, info.Size()); err != nil {
			f.Close()
			return nil, fmt.Errorf("nvpersist: pad backend file: %w", err)
		}
	}

	return &FileBackend{file: f, size: size, erase: eraseGranularity, write: writeGranularity, fill: fillByte}, nil
}

// Close releases the underlying file handle.
func (b *FileBackend) Close() error {
	return b.file.Close()
}

func (b *FileBackend) Size() uint32             { return b.size }
func (b *FileBackend) EraseGranularity() uint32 { return b.erase }
func (b *FileBackend) WriteGranularity() uint32 { return b.write }
func (b *FileBackend) FillByte() byte           { return b.fill }

func (b *FileBackend) Read(dst []byte, offset, length uint32) error {
	if err := checkBounds(b.size, offset, length); err != nil {
		return err
	}
	n, err := b.file.ReadAt(dst[:length], int64(offset))
	if err != nil {
		return fmt.Errorf("nvpersist: read backend file: %w", err)
	}
	if uint32(n) != length {
		return fmt.Errorf("nvpersist: short read: got %d want %d", n, length)
	}
	return nil
}

func (b *FileBackend) Writable(offset, length uint32) bool {
	if checkBounds(b.size, offset, length) != nil {
		return false
	}
	if b.write != 0 && (offset%b.write != 0 || length%b.write != 0) {
		return false
	}

	buf := make([]byte, length)
	if _, err := b.file.ReadAt(buf, int64(offset)); err != nil {
		return false
	}
	for _, v := range buf {
		if v != b.fill {
			return false
		}
	}
	return true
}

func (b *FileBackend) Write(offset uint32, src []byte) error {
	length := uint32(len(src))
	if err := checkBounds(b.size, offset, length); err != nil {
		return err
	}
	if !b.Writable(offset, length) {
		return ErrNotErased
	}
	n, err := b.file.WriteAt(src, int64(offset))
	if err != nil {
		return fmt.Errorf("nvpersist: write backend file: %w", err)
	}
	if uint32(n) != length {
		return fmt.Errorf("nvpersist: short write: wrote %d want %d", n, length)
	}
	return b.file.Sync()
}

func (b *FileBackend) Erase(offset, length uint32) error {
	if err := checkBounds(b.size, offset, length); err != nil {
		return err
	}
	if b.erase != 0 && (offset%b.erase != 0 || length%b.erase != 0) {
		return ErrMisaligned
	}

	buf := make([]byte, length)
	for i := range buf {
		buf[i] = b.fill
	}
	if _, err := b.file.WriteAt(buf, int64(offset)); err != nil {
		return fmt.Errorf("nvpersist: erase backend file: %w", err)
	}
	return b.file.Sync()
}

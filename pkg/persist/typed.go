package persist

import "fmt"

// Codec converts a typed value to and from the fixed-size byte payload a
// Store persists. Encode must always produce exactly the same length
// buffer; TypedStore relies on that to size its scratch payload once at
// construction.
type Codec[T any] interface {
	// Encode appends the wire representation of v to dst and returns the
	// extended slice, mirroring the append-style convention the rest of
	// the package's encoders use to avoid allocation on the hot path.
	Encode(dst []byte, v T) ([]byte, error)
	// Decode parses a payload previously produced by Encode.
	Decode(payload []byte) (T, error)
	// Size is the exact encoded length Encode must produce.
	Size() uint32
}

// TypedStore wraps a Store with a Codec, so callers work in terms of a
// value type T instead of raw payload bytes.
type TypedStore[T any] struct {
	store   *Store
	codec   Codec[T]
	payload []byte
}

// NewTypedStore builds a TypedStore over store using codec. It returns an
// error if store's configured payload size doesn't match codec.Size().
func NewTypedStore[T any](store *Store, codec Codec[T]) (*TypedStore[T], error) {
	if store.PayloadSize() != codec.Size() {
		return nil, fmt.Errorf("%w: codec produces %d bytes, store expects %d", ErrPayloadSize, codec.Size(), store.PayloadSize())
	}
	return &TypedStore[T]{
		store:   store,
		codec:   codec,
		payload: make([]byte, 0, codec.Size()),
	}, nil
}

// Init delegates to the underlying Store.
func (t *TypedStore[T]) Init() (Result, error) {
	return t.store.Init()
}

// Load returns the decoded value currently held by the underlying Store.
func (t *TypedStore[T]) Load() (T, Result, error) {
	var zero T
	buf := make([]byte, t.codec.Size())
	result, err := t.store.Load(buf)
	if err != nil || result != ResultSuccess {
		return zero, result, err
	}
	v, err := t.codec.Decode(buf)
	if err != nil {
		return zero, ResultFail, err
	}
	return v, result, nil
}

// Save encodes v and persists it through the underlying Store.
func (t *TypedStore[T]) Save(v T) (Result, error) {
	encoded, err := t.codec.Encode(t.payload[:0], v)
	if err != nil {
		return ResultFail, err
	}
	return t.store.Save(encoded)
}

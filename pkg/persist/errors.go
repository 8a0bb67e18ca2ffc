package persist

import "errors"

// ErrNotInitialized is returned by Load and Save if Init has not yet
// completed successfully.
var ErrNotInitialized = errors.New("nvpersist: store not initialized")

// ErrBackendFailure wraps an underlying Backend error.
var ErrBackendFailure = errors.New("nvpersist: backend failure")

// ErrPayloadSize is returned when a caller-supplied buffer doesn't match
// the store's configured payload size.
var ErrPayloadSize = errors.New("nvpersist: payload size mismatch")

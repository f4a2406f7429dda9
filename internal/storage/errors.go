package storage

import "errors"

var (
	// ErrInvalidInput means client-supplied data failed validation before
	// any mutation happened.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound means a referenced item id is absent from the catalog.
	ErrNotFound = errors.New("item not found")

	// ErrStorageUnavailable means the backing file exists but could not be
	// read as structured data. The store stays usable with an empty catalog.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrStorageWriteFailed means a mutation could not be persisted. The
	// in-memory state is left as it was before the mutation.
	ErrStorageWriteFailed = errors.New("storage write failed")
)

package storage

import "errors"

var (
	// ErrNotFound reports a response that never existed or was deleted.
	ErrNotFound = errors.New("response not found")

	// ErrConflict reports an attempt to save a duplicate response ID.
	ErrConflict = errors.New("response already exists")
)

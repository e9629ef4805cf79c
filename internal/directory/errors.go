package directory

import "errors"

var (
	// ErrNotFound is returned when a client or file record is absent.
	ErrNotFound = errors.New("record not found")

	// ErrFileExists is returned when an append carries a file id the client
	// already holds. Storage nodes retrying a new-file notification after a
	// timeout hit this instead of creating a duplicate record.
	ErrFileExists = errors.New("file id already registered")
)

package storage

import "errors"

// Errors returned by the document store.
var (
	// ErrInvalidPath indicates a path that escapes the store root.
	ErrInvalidPath = errors.New("invalid path")

	// ErrNotFound indicates the file or directory does not exist.
	ErrNotFound = errors.New("file or directory not found")

	// ErrNotDirectory indicates a directory operation on a file.
	ErrNotDirectory = errors.New("not a directory")

	// ErrAlreadyExists indicates the target already exists.
	ErrAlreadyExists = errors.New("already exists")
)

// Package common defines sentinel errors shared by the index engine, the
// storage backends and the application layer. Callers should use errors.Is
// to match these values.
package common

import "errors"

var (
	// Storage-level errors.
	ErrNotFound     = errors.New("not found")
	ErrReadOnly     = errors.New("read-only source")
	ErrNotSupported = errors.New("operation not supported")

	// Index build errors.
	ErrConsistency       = errors.New("index consistency fault")
	ErrMalformedManifest = errors.New("malformed manifest")

	// Key material / format errors.
	ErrInvalidKeys    = errors.New("invalid key material")
	ErrUnknownDialect = errors.New("unknown manifest dialect")
)

package domain

import "errors"

var (
	// ErrSessionNotFound is returned by stores that distinguish a missing
	// session from an empty one.
	ErrSessionNotFound = errors.New("session not found")

	// ErrUnknownField marks an extracted field name that resolved to no
	// enabled schema, even after alias resolution.
	ErrUnknownField = errors.New("unknown field")

	// ErrFieldRejected marks a field value that failed schema validation.
	// One rejected field never aborts the remaining extracted fields.
	ErrFieldRejected = errors.New("field rejected")
)

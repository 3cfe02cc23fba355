// Package common defines sentinel errors shared by the client layers.
// Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Input errors.
	ErrValidation  = errors.New("validation error")
	ErrUnknownKind = errors.New("unknown entity kind")
)

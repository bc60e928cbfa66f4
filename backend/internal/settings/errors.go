package settings

import (
	"errors"
)

// ErrMalformed is returned for an empty, truncated or non-JSON settings payload.
var ErrMalformed = errors.New("could not parse settings JSON")

// Reason classifies a ValidationError.
type Reason string

const (
	ReasonMissing Reason = "missing"
	ReasonInvalid Reason = "invalid"
)

// ValidationError rejects a settings payload because of a single field.
type ValidationError struct {
	Field  string
	Reason Reason
	Err    error
}

func (e *ValidationError) Error() string {
	return e.Field + " " + string(e.Reason) + "!"
}

func (e *ValidationError) Unwrap() error { return e.Err }

// StorageError means the persistence layer is unavailable. Settings cannot be trusted without it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "settings storage " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }

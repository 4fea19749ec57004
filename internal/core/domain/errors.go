package domain

import "errors"

var (
	ErrStoreUnavailable   = errors.New("store unavailable")
	ErrTransactionAborted = errors.New("transaction aborted")
	ErrDuplicateKey       = errors.New("duplicate key")
	ErrValidationFailed   = errors.New("validation failed")
	ErrNotFound           = errors.New("whiskey not found")
	ErrNoSelection        = errors.New("no whiskey selected")
)

// ValidationError carries the message shown to the user.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

package services

import (
	"errors"

	"hisaab/internal/storage"
)

var (
	ErrNotFound           = storage.ErrNotFound
	ErrForbidden          = errors.New("not allowed to access this record")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidEmail       = errors.New("invalid email address")
)

// ValidationError marks input the caller must fix. The wrapped error is a
// core sentinel or a parse failure.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

func invalid(err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Err: err}
}

// IsValidation reports whether err was caused by bad input.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

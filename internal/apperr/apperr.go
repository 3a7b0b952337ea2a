// Package apperr holds the error kinds shared by the auth, session and
// attempt packages. Callers wrap them with fmt.Errorf and test with errors.Is.
package apperr

import "errors"

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrDuplicateUsername  = errors.New("username already exists")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrUnauthenticated    = errors.New("user not logged in")
	ErrStore              = errors.New("store error")
)

// MinPasswordLen is the shortest password accepted on reset and change.
const MinPasswordLen = 6

// Invalid wraps ErrInvalidInput with a caller-facing reason.
func Invalid(reason string) error {
	return &inputError{reason: reason}
}

type inputError struct{ reason string }

func (e *inputError) Error() string { return e.reason }
func (e *inputError) Unwrap() error { return ErrInvalidInput }

// Store wraps a persistence failure so it matches ErrStore while keeping the cause.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	return &storeError{op: op, err: err}
}

type storeError struct {
	op  string
	err error
}

func (e *storeError) Error() string { return e.op + ": " + e.err.Error() }
func (e *storeError) Is(target error) bool {
	return target == ErrStore
}
func (e *storeError) Unwrap() error { return e.err }

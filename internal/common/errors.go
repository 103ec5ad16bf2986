// Package common defines sentinel errors and small helpers shared by the
// auth core packages. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Lifecycle errors (programmer errors, never retried).
	ErrNotInitialized     = errors.New("connection pool is not initialized")
	ErrAlreadyInitialized = errors.New("connection pool is already initialized")

	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrDuplicateEmail  = errors.New("email already registered")
	ErrAlreadyInactive = errors.New("user already inactive")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorValidation   = errors.New("validation error")

	// Data-integrity errors. Should trigger alerting.
	ErrInvalidHashFormat = errors.New("invalid password hash format")

	// Token lifecycle errors.
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrTokenExpired     = errors.New("token expired")
)

// IsAuthFailure reports whether err is an expected authentication failure
// that should be surfaced to end users as a generic "unauthorized".
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrorUnauthorized) ||
		errors.Is(err, ErrInvalidSignature) ||
		errors.Is(err, ErrTokenExpired)
}

// Package common defines shared constants and sentinel errors used across
// the accounts service layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Form input rejected; the concrete value is a validation.Errors.
	ErrValidation = errors.New("validation error")

	// Login errors. Both are shown to the user without saying why.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLockedOut          = errors.New("account locked")

	// Covers expired, tampered, wrong-purpose and unknown-user links alike.
	ErrInvalidToken = errors.New("invalid token")

	// The mail transport refused or could not be reached.
	ErrMailDelivery = errors.New("mail delivery failed")
)

// Package service provides business logic services for Doaqui.
package service

import "errors"

// Common service errors.
var (
	// ErrInternal wraps unexpected collaborator failures. The boundary maps
	// it to 500; the underlying cause stays attached for logs.
	ErrInternal = errors.New("internal server error")

	// ErrInvalidPassword indicates the password does not meet the minimum.
	ErrInvalidPassword = errors.New("invalid password: must be at least 8 characters")

	// ErrInvalidEmail indicates the email format is invalid.
	ErrInvalidEmail = errors.New("invalid email format")

	// ErrMissingUserFields indicates a registration field is missing.
	ErrMissingUserFields = errors.New("name, email, phone and password are required")
)

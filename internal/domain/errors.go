// Package domain contains the core business entities for Doaqui.
package domain

import (
	"errors"
	"fmt"
)

// Domain errors - these represent business rule violations.
// They are distinct from infrastructure errors (database, network, etc.).

var (
	// ===========================================
	// Validation Errors (422)
	// ===========================================

	// ErrMissingName indicates the product name was not provided.
	ErrMissingName = errors.New("name is required")

	// ErrMissingDescription indicates the product description was not provided.
	ErrMissingDescription = errors.New("description is required")

	// ErrMissingState indicates the product condition was not provided.
	ErrMissingState = errors.New("state is required")

	// ErrMissingPurchaseDate indicates the purchase date was not provided.
	ErrMissingPurchaseDate = errors.New("purchase date is required")

	// ErrMissingImage indicates no product image was provided.
	ErrMissingImage = errors.New("at least one image is required")

	// ===========================================
	// Field Errors (400)
	// ===========================================

	// ErrInvalidState indicates the condition is not one of good, fair, bad.
	ErrInvalidState = errors.New("state must be one of: good, fair, bad")

	// ErrMissingAvailability indicates the update payload lacks a strict boolean
	// for availability.
	ErrMissingAvailability = errors.New("available must be a boolean")

	// ErrInvalidOwnerID indicates a referenced owner identifier is malformed.
	ErrInvalidOwnerID = errors.New("invalid owner id")

	// ErrInvalidReceiverID indicates a referenced receiver identifier is malformed.
	ErrInvalidReceiverID = errors.New("invalid receiver id")

	// ErrPartiesImmutable indicates a generic update attempted to reassign the
	// owner or receiver. Ownership changes go through the transfer operation.
	ErrPartiesImmutable = errors.New("owner and receiver cannot be changed by update")

	// ===========================================
	// Identifier / Lookup Errors (404)
	// ===========================================

	// ErrInvalidProductID indicates the product identifier is malformed.
	// Deliberately indistinguishable from a missing product on the read path,
	// so malformed ids do not confirm or deny existence.
	ErrInvalidProductID = errors.New("invalid product id")

	// ErrProductNotFound indicates the requested product does not exist.
	ErrProductNotFound = errors.New("product not found")

	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = errors.New("user not found")

	// ===========================================
	// Lifecycle Errors
	// ===========================================

	// ErrProductNotAvailable indicates the product is already reserved or donated.
	ErrProductNotAvailable = errors.New("product is not available")

	// ErrOwnProduct indicates an owner tried to schedule their own product.
	ErrOwnProduct = errors.New("cannot schedule your own product")

	// ErrNotOwner indicates the actor does not own the product.
	ErrNotOwner = errors.New("only the owner may perform this operation")

	// ErrNotParticipant indicates the actor is neither owner nor receiver.
	ErrNotParticipant = errors.New("only the owner or the receiver may conclude a donation")

	// ErrNotReserved indicates a conclusion was attempted on a product that
	// was never scheduled.
	ErrNotReserved = errors.New("product has no pending reservation")

	// ErrAlreadyConcluded indicates the donation was already concluded.
	ErrAlreadyConcluded = errors.New("donation already concluded")

	// ErrStateCorrupted indicates the availability invariant does not hold.
	ErrStateCorrupted = errors.New("product state is corrupted")

	// ===========================================
	// User / Authentication Errors
	// ===========================================

	// ErrUserAlreadyExists indicates a user with the same email exists.
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrInvalidCredentials indicates authentication failed.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthenticated indicates the request carries no valid identity.
	ErrUnauthenticated = errors.New("access denied")
)

// DomainError wraps a domain error with additional context.
type DomainError struct {
	// Err is the underlying domain error.
	Err error

	// Message provides additional context.
	Message string

	// Resource identifies the affected resource (e.g., product id).
	Resource string
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Resource != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Err.Error(), e.Message, e.Resource)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error for errors.Is/errors.As.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError with context.
func NewDomainError(err error, message, resource string) *DomainError {
	return &DomainError{
		Err:      err,
		Message:  message,
		Resource: resource,
	}
}

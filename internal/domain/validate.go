// Package domain contains the core business entities for Doaqui.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Validation is a set of pure functions. Rules are evaluated in a fixed
// order and the first failure wins; errors are never aggregated.

// CreationFields holds the raw fields of a listing request.
type CreationFields struct {
	Name        string
	Description string
	State       Condition
	PurchasedAt time.Time
	Images      []string
}

// ValidateCreation checks the required fields of a new listing in order:
// name, description, state, purchase date, images.
func ValidateCreation(f CreationFields) error {
	if f.Name == "" {
		return ErrMissingName
	}
	if f.Description == "" {
		return ErrMissingDescription
	}
	if f.State == "" {
		return ErrMissingState
	}
	if !ValidCondition(f.State) {
		return ErrInvalidState
	}
	if f.PurchasedAt.IsZero() {
		return ErrMissingPurchaseDate
	}
	if len(f.Images) == 0 {
		return ErrMissingImage
	}
	return nil
}

// UpdateFields holds the raw fields of a full-document update request.
// Available is a pointer so that a missing boolean is distinguishable
// from an explicit false.
type UpdateFields struct {
	Name        string
	Description string
	State       Condition
	PurchasedAt time.Time
	Images      []string
	Available   *bool
	Owner       string
	Receiver    string
}

// ValidateUpdate checks the field set of an update. All descriptive fields
// must be present and well formed; referenced identifiers must parse even
// though updates may not reassign them.
func ValidateUpdate(f UpdateFields) error {
	if f.Name == "" {
		return ErrMissingName
	}
	if f.Description == "" {
		return ErrMissingDescription
	}
	if len(f.Images) == 0 {
		return ErrMissingImage
	}
	if f.Available == nil {
		return ErrMissingAvailability
	}
	if f.State != "" && !ValidCondition(f.State) {
		return ErrInvalidState
	}
	if f.Owner != "" {
		if _, err := uuid.Parse(f.Owner); err != nil {
			return ErrInvalidOwnerID
		}
	}
	if f.Receiver != "" {
		if _, err := uuid.Parse(f.Receiver); err != nil {
			return ErrInvalidReceiverID
		}
	}
	return nil
}

// ParseProductID validates the identifier shape and parses it.
// A malformed identifier yields ErrInvalidProductID, which the boundary
// maps to the same response as a missing product.
func ParseProductID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, ErrInvalidProductID
	}
	return parsed, nil
}

// ParseUserID validates and parses a user identifier.
func ParseUserID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, ErrUserNotFound
	}
	return parsed, nil
}

// Package domain contains the core business entities for Doaqui.
// These are pure Go structs with no infrastructure dependencies, representing
// the fundamental concepts of the donation marketplace.
package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Condition represents the physical condition of a listed product.
type Condition string

const (
	// ConditionGood means the product is in good shape.
	ConditionGood Condition = "good"

	// ConditionFair means the product shows visible wear but works.
	ConditionFair Condition = "fair"

	// ConditionBad means the product is damaged or incomplete.
	ConditionBad Condition = "bad"
)

// ValidCondition reports whether s is one of the allowed condition values.
func ValidCondition(s Condition) bool {
	switch s {
	case ConditionGood, ConditionFair, ConditionBad:
		return true
	}
	return false
}

// Status represents the lifecycle state of a product.
// A product moves available -> reserved -> donated; donated is terminal.
type Status string

const (
	// StatusAvailable means no receiver is assigned and the product may be scheduled.
	StatusAvailable Status = "available"

	// StatusReserved means a receiver has scheduled the product.
	StatusReserved Status = "reserved"

	// StatusDonated means the donation has been concluded.
	StatusDonated Status = "donated"
)

// Product is a physical item listed for donation.
//
// The state machine is encoded explicitly in Status. The legacy two-field
// view (boolean `available` plus nullable `receiver`) is derived from it at
// the serialization boundary: available == true iff ReceiverID == nil.
type Product struct {
	// ID is the unique identifier for the product, immutable once created.
	ID uuid.UUID `json:"id"`

	// Name is the display name. Required, non-empty.
	Name string `json:"name"`

	// Description describes the product. Required, non-empty.
	Description string `json:"description"`

	// State is the product condition: good, fair, or bad.
	State Condition `json:"state"`

	// PurchasedAt is when the owner originally purchased the product.
	PurchasedAt time.Time `json:"purchased_at"`

	// Images holds the file identifiers of the product photos.
	// At least one image is required.
	Images []string `json:"images"`

	// OwnerID is the user who listed the product. Set at creation, only
	// reassigned through an explicit ownership transfer.
	OwnerID uuid.UUID `json:"owner"`

	// ReceiverID is the user who scheduled the product, nil while available.
	ReceiverID *uuid.UUID `json:"reciever,omitempty"`

	// Status is the lifecycle state.
	Status Status `json:"status"`

	// ReservedAt is when the product was scheduled, nil while available.
	ReservedAt *time.Time `json:"reserved_at,omitempty"`

	// CreatedAt is when the product was listed.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the product was last modified.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewProduct creates an available Product owned by ownerID.
func NewProduct(ownerID uuid.UUID, name, description string, state Condition, purchasedAt time.Time, images []string) *Product {
	now := time.Now().UTC()
	return &Product{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		State:       state,
		PurchasedAt: purchasedAt,
		Images:      images,
		OwnerID:     ownerID,
		Status:      StatusAvailable,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Available reports whether the product may still be scheduled.
func (p *Product) Available() bool {
	return p.Status == StatusAvailable
}

// IsOwner reports whether userID owns the product.
func (p *Product) IsOwner(userID uuid.UUID) bool {
	return p.OwnerID == userID
}

// IsReceiver reports whether userID is the assigned receiver.
func (p *Product) IsReceiver(userID uuid.UUID) bool {
	return p.ReceiverID != nil && *p.ReceiverID == userID
}

// CheckInvariant verifies that the status and the legacy receiver field
// agree: an available product has no receiver, a reserved or donated
// product always has one.
func (p *Product) CheckInvariant() error {
	switch p.Status {
	case StatusAvailable:
		if p.ReceiverID != nil {
			return NewDomainError(ErrStateCorrupted, "available product has a receiver", p.ID.String())
		}
	case StatusReserved, StatusDonated:
		if p.ReceiverID == nil {
			return NewDomainError(ErrStateCorrupted, "reserved product has no receiver", p.ID.String())
		}
	default:
		return NewDomainError(ErrStateCorrupted, "unknown status "+string(p.Status), p.ID.String())
	}
	return nil
}

// MarshalJSON emits the legacy wire shape alongside the explicit status:
// `available` is derived from Status so existing clients keep working.
func (p *Product) MarshalJSON() ([]byte, error) {
	type alias Product
	return json.Marshal(struct {
		*alias
		Available bool `json:"available"`
	}{
		alias:     (*alias)(p),
		Available: p.Available(),
	})
}

// UserSummary is the subset of a user that listings disclose.
// The password hash is never part of it.
type UserSummary struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Phone string    `json:"phone"`
}

// ProductListing is a product joined with the identities of its parties.
// The owner is always summarized (sensitive fields excluded); the receiver
// is present only once the product has been scheduled.
type ProductListing struct {
	Product  *Product     `json:"product"`
	Owner    *UserSummary `json:"owner,omitempty"`
	Receiver *UserSummary `json:"reciever,omitempty"`
}

// Package domain contains the core business entities for Doaqui.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered user in the marketplace.
// Users list products as owners and schedule them as receivers.
type User struct {
	// ID is the unique identifier for the user.
	ID uuid.UUID `json:"id"`

	// Name is the display name shown to counterparties.
	Name string `json:"name"`

	// Email is the unique login email.
	Email string `json:"email"`

	// Phone is the contact number disclosed after a scheduling.
	Phone string `json:"phone"`

	// PasswordHash is the bcrypt hash of the user's password.
	// Never exposed in API responses.
	PasswordHash string `json:"-"`

	// CreatedAt is the timestamp when the user registered.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the timestamp when the user was last updated.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewUser creates a new User with a fresh identifier.
func NewUser(name, email, phone, passwordHash string) *User {
	now := time.Now().UTC()
	return &User{
		ID:           uuid.New(),
		Name:         name,
		Email:        email,
		Phone:        phone,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Summary returns the disclosure-safe view of the user.
func (u *User) Summary() *UserSummary {
	return &UserSummary{
		ID:    u.ID,
		Name:  u.Name,
		Phone: u.Phone,
	}
}

// UserIdentity is the resolved identity of an authenticated request actor.
// It carries only what lifecycle operations need: the acting user's id and
// the contact details embedded in scheduling confirmations.
type UserIdentity struct {
	ID    uuid.UUID
	Name  string
	Phone string
}

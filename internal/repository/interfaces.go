// Package repository defines data access interfaces for Doaqui.
// These interfaces abstract database operations, allowing for different
// implementations (PostgreSQL, SQLite, in-memory for testing) while keeping
// the service layer clean.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/doaqui/doaqui/internal/domain"
)

// =============================================================================
// Product Repository
// =============================================================================

// ProductRepository defines the interface for product data access.
//
// Reserve, Conclude and DeleteOwned are conditional single-statement updates:
// the precondition travels with the write so that two concurrent actors can
// never both succeed. Implementations must not use separate read+write calls.
type ProductRepository interface {
	// Create persists a new product.
	Create(ctx context.Context, product *domain.Product) error

	// GetByID retrieves a product by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)

	// List returns products joined with owner and receiver identities,
	// sorted by creation time descending.
	List(ctx context.Context, opts ListOptions) ([]*domain.ProductListing, error)

	// ListByOwner returns all products owned by the given user.
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Product, error)

	// ListByReceiver returns all products scheduled by the given user.
	ListByReceiver(ctx context.Context, receiverID uuid.UUID) ([]*domain.Product, error)

	// Update replaces the editable fields of an existing product.
	// Owner, receiver and status are not touched.
	Update(ctx context.Context, product *domain.Product) error

	// Reserve atomically assigns a receiver if and only if the product is
	// still available. Returns domain.ErrProductNotAvailable if the product
	// exists but was already reserved or donated, domain.ErrProductNotFound
	// if it does not exist.
	Reserve(ctx context.Context, id, receiverID uuid.UUID, at time.Time) error

	// Conclude atomically marks a reserved product as donated. Returns
	// domain.ErrAlreadyConcluded if it was already donated,
	// domain.ErrNotReserved if it is still available,
	// domain.ErrProductNotFound if it does not exist.
	Conclude(ctx context.Context, id uuid.UUID, at time.Time) error

	// TransferOwner atomically reassigns the owner if and only if fromOwner
	// still owns the product. Returns domain.ErrNotOwner if the guard fails
	// on an existing product, domain.ErrProductNotFound otherwise.
	TransferOwner(ctx context.Context, id, fromOwner, toOwner uuid.UUID) error

	// DeleteOwned deletes a product if and only if ownerID owns it.
	// Returns domain.ErrNotOwner if the product exists under another owner,
	// domain.ErrProductNotFound if it does not exist.
	DeleteOwned(ctx context.Context, id, ownerID uuid.UUID) error

	// ReleaseExpired returns reservations scheduled before the cutoff to the
	// available state and reports how many were released.
	ReleaseExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// =============================================================================
// User Repository
// =============================================================================

// UserRepository defines the interface for user data access.
type UserRepository interface {
	// Create creates a new user.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetByEmail retrieves a user by email.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// ExistsByEmail checks if a user with the given email exists.
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// =============================================================================
// Common Types
// =============================================================================

// ListOptions contains pagination options for listings.
type ListOptions struct {
	// Page is the 1-based page number.
	Page int

	// Limit is the maximum number of records per page.
	Limit int
}

// Offset returns the number of records to skip: (page-1) * limit.
func (o ListOptions) Offset() int {
	page := o.Page
	if page < 1 {
		page = 1
	}
	return (page - 1) * o.Limit
}

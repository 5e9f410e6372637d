// Package memory provides in-memory repository implementations.
// They are safe for concurrent use and back tests and single-binary
// development deployments; nothing survives a process restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/doaqui/doaqui/internal/domain"
	"github.com/doaqui/doaqui/internal/repository"
)

// ProductRepository implements repository.ProductRepository in memory.
// The mutex makes every conditional update atomic, matching the
// compare-and-set semantics of the SQL implementations.
type ProductRepository struct {
	mu       sync.RWMutex
	products map[uuid.UUID]*domain.Product
	users    *UserRepository
}

// NewProductRepository creates a new in-memory product repository.
// The user repository is used to join party identities in List.
func NewProductRepository(users *UserRepository) *ProductRepository {
	return &ProductRepository{
		products: make(map[uuid.UUID]*domain.Product),
		users:    users,
	}
}

// Create persists a new product.
func (r *ProductRepository) Create(ctx context.Context, product *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	clone := *product
	r.products[product.ID] = &clone
	return nil
}

// GetByID retrieves a product by ID.
func (r *ProductRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, ok := r.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	clone := *product
	return &clone, nil
}

// List returns products joined with party identities, newest first.
func (r *ProductRepository) List(ctx context.Context, opts repository.ListOptions) ([]*domain.ProductListing, error) {
	r.mu.RLock()
	all := make([]*domain.Product, 0, len(r.products))
	for _, p := range r.products {
		clone := *p
		all = append(all, &clone)
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	offset := opts.Offset()
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + opts.Limit
	if opts.Limit <= 0 || end > len(all) {
		end = len(all)
	}

	listings := make([]*domain.ProductListing, 0, end-offset)
	for _, p := range all[offset:end] {
		listing := &domain.ProductListing{Product: p}
		if owner, err := r.users.GetByID(ctx, p.OwnerID); err == nil {
			listing.Owner = owner.Summary()
		}
		if p.ReceiverID != nil {
			if recv, err := r.users.GetByID(ctx, *p.ReceiverID); err == nil {
				listing.Receiver = recv.Summary()
			}
		}
		listings = append(listings, listing)
	}

	return listings, nil
}

// ListByOwner returns all products owned by the given user.
func (r *ProductRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Product, error) {
	return r.listMatching(func(p *domain.Product) bool { return p.OwnerID == ownerID })
}

// ListByReceiver returns all products scheduled by the given user.
func (r *ProductRepository) ListByReceiver(ctx context.Context, receiverID uuid.UUID) ([]*domain.Product, error) {
	return r.listMatching(func(p *domain.Product) bool {
		return p.ReceiverID != nil && *p.ReceiverID == receiverID
	})
}

func (r *ProductRepository) listMatching(match func(*domain.Product) bool) ([]*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.Product
	for _, p := range r.products {
		if match(p) {
			clone := *p
			result = append(result, &clone)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	return result, nil
}

// Update replaces the editable fields of an existing product.
func (r *ProductRepository) Update(ctx context.Context, product *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.products[product.ID]
	if !ok {
		return domain.ErrProductNotFound
	}

	existing.Name = product.Name
	existing.Description = product.Description
	existing.State = product.State
	existing.PurchasedAt = product.PurchasedAt
	existing.Images = append([]string(nil), product.Images...)
	existing.UpdatedAt = time.Now().UTC()
	return nil
}

// Reserve atomically assigns a receiver if the product is still available.
func (r *ProductRepository) Reserve(ctx context.Context, id, receiverID uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.products[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	if product.Status != domain.StatusAvailable {
		return domain.ErrProductNotAvailable
	}

	recv := receiverID
	reservedAt := at
	product.Status = domain.StatusReserved
	product.ReceiverID = &recv
	product.ReservedAt = &reservedAt
	product.UpdatedAt = at
	return nil
}

// Conclude atomically marks a reserved product as donated.
func (r *ProductRepository) Conclude(ctx context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.products[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	switch product.Status {
	case domain.StatusDonated:
		return domain.ErrAlreadyConcluded
	case domain.StatusAvailable:
		return domain.ErrNotReserved
	}

	product.Status = domain.StatusDonated
	product.UpdatedAt = at
	return nil
}

// TransferOwner atomically reassigns the owner with an ownership guard.
func (r *ProductRepository) TransferOwner(ctx context.Context, id, fromOwner, toOwner uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.products[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	if product.OwnerID != fromOwner {
		return domain.ErrNotOwner
	}

	product.OwnerID = toOwner
	product.UpdatedAt = time.Now().UTC()
	return nil
}

// DeleteOwned deletes a product guarded on ownership.
func (r *ProductRepository) DeleteOwned(ctx context.Context, id, ownerID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, ok := r.products[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	if product.OwnerID != ownerID {
		return domain.ErrNotOwner
	}

	delete(r.products, id)
	return nil
}

// ReleaseExpired returns stale reservations to the available state.
func (r *ProductRepository) ReleaseExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var released int64
	now := time.Now().UTC()
	for _, p := range r.products {
		if p.Status == domain.StatusReserved && p.ReservedAt != nil && p.ReservedAt.Before(cutoff) {
			p.Status = domain.StatusAvailable
			p.ReceiverID = nil
			p.ReservedAt = nil
			p.UpdatedAt = now
			released++
		}
	}

	return released, nil
}

// Ensure ProductRepository implements repository.ProductRepository.
var _ repository.ProductRepository = (*ProductRepository)(nil)

package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/doaqui/doaqui/internal/domain"
	"github.com/doaqui/doaqui/internal/repository"
)

// MockProductRepository is a mock implementation of repository.ProductRepository.
// The conditional operations take the same locks a database would, so
// concurrency tests exercise real exactly-one-winner behavior.
type MockProductRepository struct {
	mu       sync.Mutex
	products map[uuid.UUID]*domain.Product
	users    *MockUserRepository

	createErr error
	getErr    error
	updateErr error
}

func NewMockProductRepository(users *MockUserRepository) *MockProductRepository {
	return &MockProductRepository{
		products: make(map[uuid.UUID]*domain.Product),
		users:    users,
	}
}

// Add seeds a product, bypassing validation.
func (m *MockProductRepository) Add(p *domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *p
	m.products[p.ID] = &clone
}

// Get returns the stored product for assertions.
func (m *MockProductRepository) Get(id uuid.UUID) *domain.Product {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.products[id]; ok {
		clone := *p
		return &clone
	}
	return nil
}

func (m *MockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *product
	m.products[product.ID] = &clone
	return nil
}

func (m *MockProductRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	clone := *p
	return &clone, nil
}

func (m *MockProductRepository) List(ctx context.Context, opts repository.ListOptions) ([]*domain.ProductListing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]*domain.Product, 0, len(m.products))
	for _, p := range m.products {
		clone := *p
		all = append(all, &clone)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	offset := opts.Offset()
	if offset >= len(all) {
		return []*domain.ProductListing{}, nil
	}
	end := offset + opts.Limit
	if end > len(all) {
		end = len(all)
	}

	listings := make([]*domain.ProductListing, 0, end-offset)
	for _, p := range all[offset:end] {
		listing := &domain.ProductListing{Product: p}
		if m.users != nil {
			if owner := m.users.get(p.OwnerID); owner != nil {
				listing.Owner = owner.Summary()
			}
			if p.ReceiverID != nil {
				if rc := m.users.get(*p.ReceiverID); rc != nil {
					listing.Receiver = rc.Summary()
				}
			}
		}
		listings = append(listings, listing)
	}
	return listings, nil
}

func (m *MockProductRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.Product
	for _, p := range m.products {
		if p.OwnerID == ownerID {
			clone := *p
			result = append(result, &clone)
		}
	}
	return result, nil
}

func (m *MockProductRepository) ListByReceiver(ctx context.Context, receiverID uuid.UUID) ([]*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.Product
	for _, p := range m.products {
		if p.ReceiverID != nil && *p.ReceiverID == receiverID {
			clone := *p
			result = append(result, &clone)
		}
	}
	return result, nil
}

func (m *MockProductRepository) Update(ctx context.Context, product *domain.Product) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.products[product.ID]
	if !ok {
		return domain.ErrProductNotFound
	}
	clone := *product
	clone.OwnerID = current.OwnerID
	clone.ReceiverID = current.ReceiverID
	clone.Status = current.Status
	clone.ReservedAt = current.ReservedAt
	m.products[product.ID] = &clone
	return nil
}

func (m *MockProductRepository) Reserve(ctx context.Context, id, receiverID uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	if p.Status != domain.StatusAvailable {
		return domain.ErrProductNotAvailable
	}
	rc := receiverID
	reserved := at
	p.Status = domain.StatusReserved
	p.ReceiverID = &rc
	p.ReservedAt = &reserved
	p.UpdatedAt = at
	return nil
}

func (m *MockProductRepository) Conclude(ctx context.Context, id uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	switch p.Status {
	case domain.StatusDonated:
		return domain.ErrAlreadyConcluded
	case domain.StatusAvailable:
		return domain.ErrNotReserved
	}
	p.Status = domain.StatusDonated
	p.UpdatedAt = at
	return nil
}

func (m *MockProductRepository) TransferOwner(ctx context.Context, id, fromOwner, toOwner uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	if p.OwnerID != fromOwner {
		return domain.ErrNotOwner
	}
	p.OwnerID = toOwner
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *MockProductRepository) DeleteOwned(ctx context.Context, id, ownerID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	if p.OwnerID != ownerID {
		return domain.ErrNotOwner
	}
	delete(m.products, id)
	return nil
}

func (m *MockProductRepository) ReleaseExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var released int64
	for _, p := range m.products {
		if p.Status == domain.StatusReserved && p.ReservedAt != nil && p.ReservedAt.Before(cutoff) {
			p.Status = domain.StatusAvailable
			p.ReceiverID = nil
			p.ReservedAt = nil
			released++
		}
	}
	return released, nil
}

// MockUserRepository is a mock implementation of repository.UserRepository.
type MockUserRepository struct {
	mu    sync.Mutex
	users map[uuid.UUID]*domain.User

	createErr error
	getErr    error
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[uuid.UUID]*domain.User)}
}

// Add seeds a user.
func (m *MockUserRepository) Add(u *domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *u
	m.users[u.ID] = &clone
}

func (m *MockUserRepository) get(id uuid.UUID) *domain.User {
	if u, ok := m.users[id]; ok {
		clone := *u
		return &clone
	}
	return nil
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return domain.ErrUserAlreadyExists
		}
	}
	clone := *user
	m.users[user.ID] = &clone
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if u := m.get(id); u != nil {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			clone := *u
			return &clone, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

// MockCache is an in-memory repository.Cache.
type MockCache struct {
	mu    sync.Mutex
	items map[string][]byte

	getErr error
	setErr error
}

func NewMockCache() *MockCache {
	return &MockCache{items: make(map[string][]byte)}
}

func (m *MockCache) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.items[key]; ok {
		return v, nil
	}
	return nil, repository.ErrCacheMiss
}

func (m *MockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = value
	return nil
}

func (m *MockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// MockLock is a repository.DistributedLock that can simulate contention.
type MockLock struct {
	mu       sync.Mutex
	held     map[string]bool
	denyAll  bool
	acquires int
	releases int
}

func NewMockLock() *MockLock {
	return &MockLock{held: make(map[string]bool)}
}

func (m *MockLock) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.denyAll || m.held[key] {
		return false, nil
	}
	m.held[key] = true
	m.acquires++
	return true, nil
}

func (m *MockLock) Release(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.held[key] {
		return false, nil
	}
	delete(m.held, key)
	m.releases++
	return true, nil
}

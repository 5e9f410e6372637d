package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/doaqui/doaqui/internal/domain"
	"github.com/doaqui/doaqui/internal/repository"
)

// productRepository implements repository.ProductRepository for PostgreSQL.
type productRepository struct {
	db *DB
}

// NewProductRepository creates a new PostgreSQL product repository.
func NewProductRepository(db *DB) repository.ProductRepository {
	return &productRepository{db: db}
}

const productColumns = `id, name, description, state, purchased_at, images,
	owner_id, receiver_id, status, reserved_at, created_at, updated_at`

// Create persists a new product.
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		product.ID,
		product.Name,
		product.Description,
		string(product.State),
		product.PurchasedAt,
		product.Images,
		product.OwnerID,
		product.ReceiverID,
		string(product.Status),
		product.ReservedAt,
		product.CreatedAt,
		product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// GetByID retrieves a product by ID.
func (r *productRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	product, err := scanProduct(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product by ID: %w", err)
	}

	return product, nil
}

// List returns products joined with owner and receiver identities,
// newest first. The owner join never includes the password hash.
func (r *productRepository) List(ctx context.Context, opts repository.ListOptions) ([]*domain.ProductListing, error) {
	query := `
		SELECT p.id, p.name, p.description, p.state, p.purchased_at, p.images,
		       p.owner_id, p.receiver_id, p.status, p.reserved_at, p.created_at, p.updated_at,
		       o.id, o.name, o.phone,
		       rc.id, rc.name, rc.phone
		FROM products p
		JOIN users o ON o.id = p.owner_id
		LEFT JOIN users rc ON rc.id = p.receiver_id
		ORDER BY p.created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.Pool.Query(ctx, query, opts.Limit, opts.Offset())
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var listings []*domain.ProductListing
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product listing: %w", err)
		}
		listings = append(listings, listing)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return listings, nil
}

// ListByOwner returns all products owned by the given user.
func (r *productRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Product, error) {
	return r.listByParty(ctx, "owner_id", ownerID)
}

// ListByReceiver returns all products scheduled by the given user.
func (r *productRepository) ListByReceiver(ctx context.Context, receiverID uuid.UUID) ([]*domain.Product, error) {
	return r.listByParty(ctx, "receiver_id", receiverID)
}

func (r *productRepository) listByParty(ctx context.Context, column string, userID uuid.UUID) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE ` + column + ` = $1 ORDER BY created_at DESC`

	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list products by %s: %w", column, err)
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

// Update replaces the editable fields of an existing product.
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	query := `
		UPDATE products
		SET name = $1, description = $2, state = $3, purchased_at = $4, images = $5, updated_at = $6
		WHERE id = $7
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		product.Name,
		product.Description,
		string(product.State),
		product.PurchasedAt,
		product.Images,
		time.Now().UTC(),
		product.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrProductNotFound
	}

	return nil
}

// Reserve atomically assigns a receiver to a still-available product.
func (r *productRepository) Reserve(ctx context.Context, id, receiverID uuid.UUID, at time.Time) error {
	query := `
		UPDATE products
		SET status = $1, receiver_id = $2, reserved_at = $3, updated_at = $3
		WHERE id = $4 AND status = $5
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		string(domain.StatusReserved),
		receiverID,
		at,
		id,
		string(domain.StatusAvailable),
	)
	if err != nil {
		return fmt.Errorf("failed to reserve product: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return r.classifyMiss(ctx, id, domain.ErrProductNotAvailable, domain.ErrProductNotAvailable)
	}

	return nil
}

// Conclude atomically marks a reserved product as donated.
func (r *productRepository) Conclude(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE products
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		string(domain.StatusDonated),
		at,
		id,
		string(domain.StatusReserved),
	)
	if err != nil {
		return fmt.Errorf("failed to conclude donation: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return r.classifyMiss(ctx, id, domain.ErrNotReserved, domain.ErrAlreadyConcluded)
	}

	return nil
}

// TransferOwner atomically reassigns the owner with an ownership guard.
func (r *productRepository) TransferOwner(ctx context.Context, id, fromOwner, toOwner uuid.UUID) error {
	query := `
		UPDATE products
		SET owner_id = $1, updated_at = $2
		WHERE id = $3 AND owner_id = $4
	`

	tag, err := r.db.Pool.Exec(ctx, query, toOwner, time.Now().UTC(), id, fromOwner)
	if err != nil {
		return fmt.Errorf("failed to transfer ownership: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return r.classifyMiss(ctx, id, domain.ErrNotOwner, domain.ErrNotOwner)
	}

	return nil
}

// DeleteOwned deletes a product guarded on ownership.
func (r *productRepository) DeleteOwned(ctx context.Context, id, ownerID uuid.UUID) error {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM products WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return r.classifyMiss(ctx, id, domain.ErrNotOwner, domain.ErrNotOwner)
	}

	return nil
}

// ReleaseExpired returns stale reservations to the available state.
func (r *productRepository) ReleaseExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		UPDATE products
		SET status = $1, receiver_id = NULL, reserved_at = NULL, updated_at = $2
		WHERE status = $3 AND reserved_at < $4
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		string(domain.StatusAvailable),
		time.Now().UTC(),
		string(domain.StatusReserved),
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to release expired reservations: %w", err)
	}

	return tag.RowsAffected(), nil
}

// classifyMiss resolves a zero-row conditional update into the precise
// domain error, mirroring the SQLite implementation.
func (r *productRepository) classifyMiss(ctx context.Context, id uuid.UUID, whenAvailable, whenDonated error) error {
	var status string
	err := r.db.Pool.QueryRow(ctx, `SELECT status FROM products WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrProductNotFound
		}
		return fmt.Errorf("failed to inspect product state: %w", err)
	}

	if status == string(domain.StatusDonated) {
		return whenDonated
	}
	return whenAvailable
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var (
		product domain.Product
		state   string
		status  string
	)

	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&state,
		&product.PurchasedAt,
		&product.Images,
		&product.OwnerID,
		&product.ReceiverID,
		&status,
		&product.ReservedAt,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	product.State = domain.Condition(state)
	product.Status = domain.Status(status)

	return &product, nil
}

func scanListing(row pgx.Row) (*domain.ProductListing, error) {
	var (
		product            domain.Product
		state, status      string
		ownerID            uuid.UUID
		ownerName, ownerPh string
		recvID             *uuid.UUID
		recvName, recvPh   *string
	)

	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Description,
		&state,
		&product.PurchasedAt,
		&product.Images,
		&product.OwnerID,
		&product.ReceiverID,
		&status,
		&product.ReservedAt,
		&product.CreatedAt,
		&product.UpdatedAt,
		&ownerID, &ownerName, &ownerPh,
		&recvID, &recvName, &recvPh,
	)
	if err != nil {
		return nil, err
	}

	product.State = domain.Condition(state)
	product.Status = domain.Status(status)

	listing := &domain.ProductListing{
		Product: &product,
		Owner:   &domain.UserSummary{ID: ownerID, Name: ownerName, Phone: ownerPh},
	}
	if recvID != nil {
		listing.Receiver = &domain.UserSummary{ID: *recvID, Name: *recvName, Phone: *recvPh}
	}

	return listing, nil
}

// Ensure productRepository implements repository.ProductRepository.
var _ repository.ProductRepository = (*productRepository)(nil)

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/doaqui/doaqui/internal/domain"
	"github.com/doaqui/doaqui/internal/repository"
)

// productRepository implements repository.ProductRepository for SQLite.
type productRepository struct {
	db *DB
}

// NewProductRepository creates a new SQLite product repository.
func NewProductRepository(db *DB) repository.ProductRepository {
	return &productRepository{db: db}
}

const productColumns = `id, name, description, state, purchased_at, images,
	owner_id, receiver_id, status, reserved_at, created_at, updated_at`

// Create persists a new product.
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	images, err := json.Marshal(product.Images)
	if err != nil {
		return fmt.Errorf("failed to encode images: %w", err)
	}

	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		product.ID.String(),
		product.Name,
		product.Description,
		string(product.State),
		product.PurchasedAt.Format(time.RFC3339),
		string(images),
		product.OwnerID.String(),
		nullableID(product.ReceiverID),
		string(product.Status),
		nullableTime(product.ReservedAt),
		product.CreatedAt.Format(time.RFC3339),
		product.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// GetByID retrieves a product by ID.
func (r *productRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = ?`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if isNoRows(err) {
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
		LIMIT ? OFFSET ?
	`

	rows, err := r.db.QueryContext(ctx, query, opts.Limit, opts.Offset())
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
	query := `SELECT ` + productColumns + ` FROM products WHERE ` + column + ` = ? ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, userID.String())
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
	images, err := json.Marshal(product.Images)
	if err != nil {
		return fmt.Errorf("failed to encode images: %w", err)
	}

	query := `
		UPDATE products
		SET name = ?, description = ?, state = ?, purchased_at = ?, images = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		product.Name,
		product.Description,
		string(product.State),
		product.PurchasedAt.Format(time.RFC3339),
		string(images),
		time.Now().UTC().Format(time.RFC3339),
		product.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return domain.ErrProductNotFound
	}

	return nil
}

// Reserve atomically assigns a receiver to a still-available product.
// The availability precondition is part of the UPDATE, so concurrent
// schedules on the same product resolve to exactly one winner.
func (r *productRepository) Reserve(ctx context.Context, id, receiverID uuid.UUID, at time.Time) error {
	query := `
		UPDATE products
		SET status = ?, receiver_id = ?, reserved_at = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		string(domain.StatusReserved),
		receiverID.String(),
		at.Format(time.RFC3339),
		at.Format(time.RFC3339),
		id.String(),
		string(domain.StatusAvailable),
	)
	if err != nil {
		return fmt.Errorf("failed to reserve product: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return r.classifyMiss(ctx, id, domain.ErrProductNotAvailable, domain.ErrProductNotAvailable)
	}

	return nil
}

// Conclude atomically marks a reserved product as donated.
func (r *productRepository) Conclude(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `
		UPDATE products
		SET status = ?, updated_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		string(domain.StatusDonated),
		at.Format(time.RFC3339),
		id.String(),
		string(domain.StatusReserved),
	)
	if err != nil {
		return fmt.Errorf("failed to conclude donation: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return r.classifyMiss(ctx, id, domain.ErrNotReserved, domain.ErrAlreadyConcluded)
	}

	return nil
}

// TransferOwner atomically reassigns the owner with an ownership guard.
func (r *productRepository) TransferOwner(ctx context.Context, id, fromOwner, toOwner uuid.UUID) error {
	query := `
		UPDATE products
		SET owner_id = ?, updated_at = ?
		WHERE id = ? AND owner_id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		toOwner.String(),
		time.Now().UTC().Format(time.RFC3339),
		id.String(),
		fromOwner.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to transfer ownership: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return r.classifyMiss(ctx, id, domain.ErrNotOwner, domain.ErrNotOwner)
	}

	return nil
}

// DeleteOwned deletes a product guarded on ownership.
func (r *productRepository) DeleteOwned(ctx context.Context, id, ownerID uuid.UUID) error {
	query := `DELETE FROM products WHERE id = ? AND owner_id = ?`

	result, err := r.db.ExecContext(ctx, query, id.String(), ownerID.String())
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return r.classifyMiss(ctx, id, domain.ErrNotOwner, domain.ErrNotOwner)
	}

	return nil
}

// ReleaseExpired returns stale reservations to the available state.
func (r *productRepository) ReleaseExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `
		UPDATE products
		SET status = ?, receiver_id = NULL, reserved_at = NULL, updated_at = ?
		WHERE status = ? AND reserved_at < ?
	`

	result, err := r.db.ExecContext(ctx, query,
		string(domain.StatusAvailable),
		time.Now().UTC().Format(time.RFC3339),
		string(domain.StatusReserved),
		cutoff.Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to release expired reservations: %w", err)
	}

	released, _ := result.RowsAffected()
	return released, nil
}

// classifyMiss resolves a zero-row conditional update into the precise
// domain error: not found if the product is gone, otherwise the error
// matching its current state.
func (r *productRepository) classifyMiss(ctx context.Context, id uuid.UUID, whenAvailable, whenDonated error) error {
	var status string
	err := r.db.QueryRowContext(ctx, `SELECT status FROM products WHERE id = ?`, id.String()).Scan(&status)
	if err != nil {
		if isNoRows(err) {
			return domain.ErrProductNotFound
		}
		return fmt.Errorf("failed to inspect product state: %w", err)
	}

	if status == string(domain.StatusDonated) {
		return whenDonated
	}
	return whenAvailable
}

// rowScanner abstracts *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var (
		product                   domain.Product
		id, ownerID, state        string
		status, images            string
		receiverID, reservedAt    sql.NullString
		purchasedAt               string
		createdAt, updatedAt      string
	)

	err := row.Scan(
		&id,
		&product.Name,
		&product.Description,
		&state,
		&purchasedAt,
		&images,
		&ownerID,
		&receiverID,
		&status,
		&reservedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	product.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid product id %q: %w", id, err)
	}
	product.OwnerID, err = uuid.Parse(ownerID)
	if err != nil {
		return nil, fmt.Errorf("invalid owner id %q: %w", ownerID, err)
	}
	if receiverID.Valid {
		parsed, err := uuid.Parse(receiverID.String)
		if err != nil {
			return nil, fmt.Errorf("invalid receiver id %q: %w", receiverID.String, err)
		}
		product.ReceiverID = &parsed
	}

	product.State = domain.Condition(state)
	product.Status = domain.Status(status)
	if err := json.Unmarshal([]byte(images), &product.Images); err != nil {
		return nil, fmt.Errorf("failed to decode images: %w", err)
	}

	if err := scanTimestamps(&product, purchasedAt, createdAt, updatedAt, reservedAt); err != nil {
		return nil, err
	}

	return &product, nil
}

func scanListing(row rowScanner) (*domain.ProductListing, error) {
	var (
		product                   domain.Product
		id, ownerID, state        string
		status, images            string
		receiverID, reservedAt    sql.NullString
		purchasedAt               string
		createdAt, updatedAt      string
		oID, oName, oPhone        string
		rID, rName, rPhone        sql.NullString
	)

	err := row.Scan(
		&id,
		&product.Name,
		&product.Description,
		&state,
		&purchasedAt,
		&images,
		&ownerID,
		&receiverID,
		&status,
		&reservedAt,
		&createdAt,
		&updatedAt,
		&oID, &oName, &oPhone,
		&rID, &rName, &rPhone,
	)
	if err != nil {
		return nil, err
	}

	product.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid product id %q: %w", id, err)
	}
	product.OwnerID, err = uuid.Parse(ownerID)
	if err != nil {
		return nil, fmt.Errorf("invalid owner id %q: %w", ownerID, err)
	}
	if receiverID.Valid {
		parsed, err := uuid.Parse(receiverID.String)
		if err != nil {
			return nil, fmt.Errorf("invalid receiver id %q: %w", receiverID.String, err)
		}
		product.ReceiverID = &parsed
	}

	product.State = domain.Condition(state)
	product.Status = domain.Status(status)
	if err := json.Unmarshal([]byte(images), &product.Images); err != nil {
		return nil, fmt.Errorf("failed to decode images: %w", err)
	}

	if err := scanTimestamps(&product, purchasedAt, createdAt, updatedAt, reservedAt); err != nil {
		return nil, err
	}

	listing := &domain.ProductListing{Product: &product}

	ownerUUID, err := uuid.Parse(oID)
	if err != nil {
		return nil, fmt.Errorf("invalid owner id %q: %w", oID, err)
	}
	listing.Owner = &domain.UserSummary{ID: ownerUUID, Name: oName, Phone: oPhone}

	if rID.Valid {
		recvUUID, err := uuid.Parse(rID.String)
		if err != nil {
			return nil, fmt.Errorf("invalid receiver id %q: %w", rID.String, err)
		}
		listing.Receiver = &domain.UserSummary{ID: recvUUID, Name: rName.String, Phone: rPhone.String}
	}

	return listing, nil
}

// scanTimestamps decodes the stored RFC 3339 columns. A row that does not
// parse is corrupt and surfaces as an error, same as a malformed uuid.
func scanTimestamps(product *domain.Product, purchasedAt, createdAt, updatedAt string, reservedAt sql.NullString) error {
	var err error
	if product.PurchasedAt, err = parseTime("purchased_at", purchasedAt); err != nil {
		return err
	}
	if product.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return err
	}
	if product.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return err
	}
	if reservedAt.Valid {
		t, err := parseTime("reserved_at", reservedAt.String)
		if err != nil {
			return err
		}
		product.ReservedAt = &t
	}
	return nil
}

func parseTime(column, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q: %w", column, value, err)
	}
	return t, nil
}

func nullableID(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return id.String()
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339)
}

// Ensure productRepository implements repository.ProductRepository.
var _ repository.ProductRepository = (*productRepository)(nil)

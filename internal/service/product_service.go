package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/doaqui/doaqui/internal/domain"
	"github.com/doaqui/doaqui/internal/metrics"
	"github.com/doaqui/doaqui/internal/repository"
)

// ProductService handles the product donation lifecycle: listing a product,
// scheduling a pickup, concluding the donation, transferring ownership and
// removing the listing. Every transition is a conditional repository write,
// so concurrent actors race at the database and exactly one wins.
type ProductService struct {
	productRepo repository.ProductRepository
	userRepo    repository.UserRepository
	cache       repository.Cache
	metrics     *metrics.Metrics
	logger      zerolog.Logger
}

// NewProductService creates a new ProductService. cache and m may be nil.
func NewProductService(
	productRepo repository.ProductRepository,
	userRepo repository.UserRepository,
	cache repository.Cache,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *ProductService {
	return &ProductService{
		productRepo: productRepo,
		userRepo:    userRepo,
		cache:       cache,
		metrics:     m,
		logger:      logger.With().Str("service", "product").Logger(),
	}
}

// =============================================================================
// Input/Output Structs
// =============================================================================

// CreateProductInput contains the data needed to list a product.
type CreateProductInput struct {
	Actor  domain.UserIdentity
	Fields domain.CreationFields
}

// CreateProductOutput contains the result of listing a product.
type CreateProductOutput struct {
	Product *domain.Product
}

// UpdateProductInput contains the data needed to edit a listing.
type UpdateProductInput struct {
	Actor     domain.UserIdentity
	ProductID string
	Fields    domain.UpdateFields
}

// UpdateProductOutput contains the updated listing.
type UpdateProductOutput struct {
	Product *domain.Product
}

// ScheduleInput contains the data needed to schedule a pickup.
type ScheduleInput struct {
	Actor     domain.UserIdentity
	ProductID string
}

// ScheduleOutput contains the scheduling confirmation.
type ScheduleOutput struct {
	Message string
}

// ConcludeInput contains the data needed to conclude a donation.
type ConcludeInput struct {
	Actor     domain.UserIdentity
	ProductID string
}

// ConcludeOutput contains the concluded product.
type ConcludeOutput struct {
	Product *domain.Product
}

// TransferInput contains the data needed to transfer ownership.
type TransferInput struct {
	Actor      domain.UserIdentity
	ProductID  string
	NewOwnerID string
}

// TransferOutput contains the product under its new owner.
type TransferOutput struct {
	Product *domain.Product
}

// DeleteProductInput contains the data needed to remove a listing.
type DeleteProductInput struct {
	Actor     domain.UserIdentity
	ProductID string
}

// =============================================================================
// Service Methods
// =============================================================================

// Create validates the listing fields and persists a new available product
// owned by the actor.
func (s *ProductService) Create(ctx context.Context, input CreateProductInput) (*CreateProductOutput, error) {
	if err := domain.ValidateCreation(input.Fields); err != nil {
		return nil, err
	}

	product := domain.NewProduct(
		input.Actor.ID,
		input.Fields.Name,
		input.Fields.Description,
		input.Fields.State,
		input.Fields.PurchasedAt,
		input.Fields.Images,
	)

	if err := s.productRepo.Create(ctx, product); err != nil {
		s.logger.Error().Err(err).Str("product_id", product.ID.String()).Msg("failed to create product")
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	s.metrics.ObserveTransition("create")
	s.logger.Info().
		Str("product_id", product.ID.String()).
		Str("owner_id", input.Actor.ID.String()).
		Msg("product listed")

	return &CreateProductOutput{Product: product}, nil
}

// Update replaces the descriptive fields of a listing. Only the owner may
// edit, and the owner and receiver cannot be reassigned here: ownership
// changes go through TransferOwnership, receivers through Schedule.
func (s *ProductService) Update(ctx context.Context, input UpdateProductInput) (*UpdateProductOutput, error) {
	id, err := domain.ParseProductID(input.ProductID)
	if err != nil {
		return nil, err
	}

	if err := domain.ValidateUpdate(input.Fields); err != nil {
		return nil, err
	}

	product, err := s.getProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if !product.IsOwner(input.Actor.ID) {
		return nil, domain.ErrNotOwner
	}

	if err := s.checkPartiesUnchanged(product, input.Fields); err != nil {
		return nil, err
	}

	product.Name = input.Fields.Name
	product.Description = input.Fields.Description
	if input.Fields.State != "" {
		product.State = input.Fields.State
	}
	if !input.Fields.PurchasedAt.IsZero() {
		product.PurchasedAt = input.Fields.PurchasedAt
	}
	product.Images = input.Fields.Images
	product.UpdatedAt = time.Now().UTC()

	if err := s.productRepo.Update(ctx, product); err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return nil, domain.ErrProductNotFound
		}
		s.logger.Error().Err(err).Str("product_id", id.String()).Msg("failed to update product")
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	s.invalidate(ctx, id)

	return &UpdateProductOutput{Product: product}, nil
}

// Schedule reserves an available product for the acting user and returns a
// confirmation telling the owner how to reach the receiver. Owners cannot
// schedule their own products. The reservation itself is a conditional
// write: if two users schedule concurrently, exactly one succeeds and the
// other sees the product as no longer available.
func (s *ProductService) Schedule(ctx context.Context, input ScheduleInput) (*ScheduleOutput, error) {
	id, err := domain.ParseProductID(input.ProductID)
	if err != nil {
		return nil, err
	}

	product, err := s.getProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if !product.Available() {
		return nil, domain.ErrProductNotAvailable
	}

	if product.IsOwner(input.Actor.ID) {
		return nil, domain.ErrOwnProduct
	}

	err = s.productRepo.Reserve(ctx, id, input.Actor.ID, time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrProductNotFound),
			errors.Is(err, domain.ErrProductNotAvailable):
			return nil, err
		}
		s.logger.Error().Err(err).Str("product_id", id.String()).Msg("failed to reserve product")
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	s.invalidate(ctx, id)
	s.metrics.ObserveTransition("schedule")
	s.logger.Info().
		Str("product_id", id.String()).
		Str("receiver_id", input.Actor.ID.String()).
		Msg("pickup scheduled")

	message := fmt.Sprintf(
		"The visit has been scheduled successfully. Contact %s on %s to arrange the pickup.",
		input.Actor.Name, input.Actor.Phone,
	)
	return &ScheduleOutput{Message: message}, nil
}

// ConcludeDonation marks a reserved product as donated. Either party of the
// reservation may conclude: the owner confirming the handover or the
// receiver confirming the pickup. Concluding twice fails with
// ErrAlreadyConcluded, so the operation is safe to retry but never silently
// repeats.
func (s *ProductService) ConcludeDonation(ctx context.Context, input ConcludeInput) (*ConcludeOutput, error) {
	id, err := domain.ParseProductID(input.ProductID)
	if err != nil {
		return nil, err
	}

	product, err := s.getProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if !product.IsOwner(input.Actor.ID) && !product.IsReceiver(input.Actor.ID) {
		return nil, domain.ErrNotParticipant
	}

	err = s.productRepo.Conclude(ctx, id, time.Now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrProductNotFound),
			errors.Is(err, domain.ErrNotReserved),
			errors.Is(err, domain.ErrAlreadyConcluded):
			return nil, err
		}
		s.logger.Error().Err(err).Str("product_id", id.String()).Msg("failed to conclude donation")
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	s.invalidate(ctx, id)
	s.metrics.ObserveTransition("conclude")
	s.logger.Info().
		Str("product_id", id.String()).
		Str("actor_id", input.Actor.ID.String()).
		Msg("donation concluded")

	concluded, err := s.getProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := concluded.CheckInvariant(); err != nil {
		s.logger.Error().Err(err).Str("product_id", id.String()).Msg("state invariant violated after conclude")
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	return &ConcludeOutput{Product: concluded}, nil
}

// TransferOwnership reassigns a listing to another registered user. Only
// the current owner may transfer, and the new owner must exist. The
// reassignment is guarded on the current owner so a concurrent transfer
// cannot be overwritten.
func (s *ProductService) TransferOwnership(ctx context.Context, input TransferInput) (*TransferOutput, error) {
	id, err := domain.ParseProductID(input.ProductID)
	if err != nil {
		return nil, err
	}

	newOwnerID, err := uuid.Parse(input.NewOwnerID)
	if err != nil {
		return nil, domain.ErrInvalidOwnerID
	}

	product, err := s.getProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	if !product.IsOwner(input.Actor.ID) {
		return nil, domain.ErrNotOwner
	}

	if _, err := s.userRepo.GetByID(ctx, newOwnerID); err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrUserNotFound
		}
		s.logger.Error().Err(err).Str("user_id", newOwnerID.String()).Msg("failed to look up new owner")
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	err = s.productRepo.TransferOwner(ctx, id, input.Actor.ID, newOwnerID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrProductNotFound),
			errors.Is(err, domain.ErrNotOwner):
			return nil, err
		}
		s.logger.Error().Err(err).Str("product_id", id.String()).Msg("failed to transfer ownership")
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	s.invalidate(ctx, id)
	s.metrics.ObserveTransition("transfer")
	s.logger.Info().
		Str("product_id", id.String()).
		Str("from_owner", input.Actor.ID.String()).
		Str("to_owner", newOwnerID.String()).
		Msg("ownership transferred")

	product.OwnerID = newOwnerID
	product.UpdatedAt = time.Now().UTC()
	return &TransferOutput{Product: product}, nil
}

// Delete removes a listing. Only the owner may delete, and the guard
// travels with the delete statement.
func (s *ProductService) Delete(ctx context.Context, input DeleteProductInput) error {
	id, err := domain.ParseProductID(input.ProductID)
	if err != nil {
		return err
	}

	err = s.productRepo.DeleteOwned(ctx, id, input.Actor.ID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrProductNotFound),
			errors.Is(err, domain.ErrNotOwner):
			return err
		}
		s.logger.Error().Err(err).Str("product_id", id.String()).Msg("failed to delete product")
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}

	s.invalidate(ctx, id)
	s.metrics.ObserveTransition("delete")
	s.logger.Info().
		Str("product_id", id.String()).
		Str("owner_id", input.Actor.ID.String()).
		Msg("product deleted")

	return nil
}

// =============================================================================
// Helpers
// =============================================================================

// getProduct fetches a product, passing through not-found and wrapping
// everything else as internal.
func (s *ProductService) getProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return nil, domain.ErrProductNotFound
		}
		s.logger.Error().Err(err).Str("product_id", id.String()).Msg("failed to get product")
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return product, nil
}

// checkPartiesUnchanged rejects updates that attempt to reassign the owner
// or the receiver. The full-document update format still carries both
// fields, so an unchanged echo of the current values is accepted.
func (s *ProductService) checkPartiesUnchanged(product *domain.Product, fields domain.UpdateFields) error {
	if fields.Owner != "" && fields.Owner != product.OwnerID.String() {
		return domain.ErrPartiesImmutable
	}
	if fields.Receiver != "" {
		if product.ReceiverID == nil || fields.Receiver != product.ReceiverID.String() {
			return domain.ErrPartiesImmutable
		}
	}
	return nil
}

// productCacheKey returns the cache key of a single product.
func productCacheKey(id uuid.UUID) string {
	return "product:" + id.String()
}

// invalidate drops the cached copy of a product after a write. Cache
// failures are logged and ignored; the database remains the source of truth.
func (s *ProductService) invalidate(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, productCacheKey(id)); err != nil {
		s.logger.Warn().Err(err).Str("product_id", id.String()).Msg("failed to invalidate product cache")
	}
}

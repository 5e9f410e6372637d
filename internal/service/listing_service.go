package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/doaqui/doaqui/internal/domain"
	"github.com/doaqui/doaqui/internal/repository"
)

// productCacheTTL bounds how stale a cached product may get if an
// invalidation is lost.
const productCacheTTL = 5 * time.Minute

// ListingService handles the read side of the marketplace: the public
// catalog, single-product lookups and the per-user dashboards. Single
// lookups go through the cache; list queries always hit the database.
type ListingService struct {
	productRepo repository.ProductRepository
	cache       repository.Cache
	logger      zerolog.Logger
}

// NewListingService creates a new ListingService. cache may be nil.
func NewListingService(
	productRepo repository.ProductRepository,
	cache repository.Cache,
	logger zerolog.Logger,
) *ListingService {
	return &ListingService{
		productRepo: productRepo,
		cache:       cache,
		logger:      logger.With().Str("service", "listing").Logger(),
	}
}

// =============================================================================
// Input/Output Structs
// =============================================================================

// IndexInput contains the pagination parameters of the catalog.
type IndexInput struct {
	Page  int
	Limit int
}

// IndexOutput contains one page of the catalog, newest first.
type IndexOutput struct {
	Products []*domain.ProductListing
	Page     int
	Limit    int
}

// ShowInput contains the data needed to fetch a single product.
type ShowInput struct {
	ProductID string
}

// ShowOutput contains the requested product.
type ShowOutput struct {
	Product *domain.Product
}

// DashboardInput identifies the user whose products to list.
type DashboardInput struct {
	Actor domain.UserIdentity
}

// DashboardOutput contains the user's side of the marketplace.
type DashboardOutput struct {
	Products []*domain.Product
}

// =============================================================================
// Service Methods
// =============================================================================

// Index returns a page of the public catalog. Page defaults to 1 and limit
// to 10; out-of-range pages return an empty list, not an error.
func (s *ListingService) Index(ctx context.Context, input IndexInput) (*IndexOutput, error) {
	page := input.Page
	if page < 1 {
		page = 1
	}
	limit := input.Limit
	if limit < 1 {
		limit = 10
	}

	products, err := s.productRepo.List(ctx, repository.ListOptions{Page: page, Limit: limit})
	if err != nil {
		s.logger.Error().Err(err).Int("page", page).Msg("failed to list products")
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	return &IndexOutput{Products: products, Page: page, Limit: limit}, nil
}

// ShowById returns a single product. A malformed identifier is reported the
// same way as a missing product.
func (s *ListingService) ShowById(ctx context.Context, input ShowInput) (*ShowOutput, error) {
	id, err := domain.ParseProductID(input.ProductID)
	if err != nil {
		return nil, err
	}

	if cached := s.fromCache(ctx, productCacheKey(id)); cached != nil {
		return &ShowOutput{Product: cached}, nil
	}

	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return nil, domain.ErrProductNotFound
		}
		s.logger.Error().Err(err).Str("product_id", id.String()).Msg("failed to get product")
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	s.toCache(ctx, productCacheKey(id), product)

	return &ShowOutput{Product: product}, nil
}

// FindByOwner returns the products the acting user has listed.
func (s *ListingService) FindByOwner(ctx context.Context, input DashboardInput) (*DashboardOutput, error) {
	products, err := s.productRepo.ListByOwner(ctx, input.Actor.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("owner_id", input.Actor.ID.String()).Msg("failed to list owned products")
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return &DashboardOutput{Products: products}, nil
}

// FindByReceiver returns the products the acting user has scheduled.
func (s *ListingService) FindByReceiver(ctx context.Context, input DashboardInput) (*DashboardOutput, error) {
	products, err := s.productRepo.ListByReceiver(ctx, input.Actor.ID)
	if err != nil {
		s.logger.Error().Err(err).Str("receiver_id", input.Actor.ID.String()).Msg("failed to list scheduled products")
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	return &DashboardOutput{Products: products}, nil
}

// =============================================================================
// Cache Helpers
// =============================================================================

// fromCache returns the cached product or nil. Decode failures evict the
// entry so a bad payload cannot stick.
func (s *ListingService) fromCache(ctx context.Context, key string) *domain.Product {
	if s.cache == nil {
		return nil
	}

	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, repository.ErrCacheMiss) {
			s.logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
		}
		return nil
	}

	var product domain.Product
	if err := json.Unmarshal(data, &product); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache entry corrupted, evicting")
		_ = s.cache.Delete(ctx, key)
		return nil
	}
	return &product
}

// toCache stores a product. Failures are logged and ignored.
func (s *ListingService) toCache(ctx context.Context, key string, product *domain.Product) {
	if s.cache == nil {
		return
	}

	data, err := json.Marshal(product)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, productCacheTTL); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

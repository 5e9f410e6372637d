package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/doaqui/doaqui/internal/domain"
)

func TestListingService_Index(t *testing.T) {
	users := NewMockUserRepository()
	products := NewMockProductRepository(users)
	svc := NewListingService(products, nil, zerolog.Nop())

	owner := domain.NewUser("alice", "alice@example.com", "555-0100", "hash")
	users.Add(owner)

	// Seed 15 products with distinct creation times.
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 15; i++ {
		p := domain.NewProduct(owner.ID, "item", "desc", domain.ConditionGood, base, []string{"img.png"})
		p.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		products.Add(p)
	}

	t.Run("defaults to first page of ten", func(t *testing.T) {
		output, err := svc.Index(context.Background(), IndexInput{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(output.Products) != 10 {
			t.Errorf("expected 10 products, got %d", len(output.Products))
		}
		if output.Page != 1 || output.Limit != 10 {
			t.Errorf("expected page 1 limit 10, got page %d limit %d", output.Page, output.Limit)
		}
	})

	t.Run("newest first", func(t *testing.T) {
		output, err := svc.Index(context.Background(), IndexInput{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for i := 1; i < len(output.Products); i++ {
			if output.Products[i].Product.CreatedAt.After(output.Products[i-1].Product.CreatedAt) {
				t.Fatal("products are not sorted newest first")
			}
		}
	})

	t.Run("second page holds the remainder", func(t *testing.T) {
		output, err := svc.Index(context.Background(), IndexInput{Page: 2, Limit: 10})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(output.Products) != 5 {
			t.Errorf("expected 5 products, got %d", len(output.Products))
		}
	})

	t.Run("page past the end is empty", func(t *testing.T) {
		output, err := svc.Index(context.Background(), IndexInput{Page: 99, Limit: 10})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(output.Products) != 0 {
			t.Errorf("expected empty page, got %d products", len(output.Products))
		}
	})

	t.Run("owner summary is joined", func(t *testing.T) {
		output, err := svc.Index(context.Background(), IndexInput{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		listing := output.Products[0]
		if listing.Owner == nil || listing.Owner.Name != "alice" {
			t.Error("owner summary missing from listing")
		}
		if listing.Receiver != nil {
			t.Error("available product should have no receiver")
		}
	})
}

func TestListingService_ShowById(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		users := NewMockUserRepository()
		products := NewMockProductRepository(users)
		svc := NewListingService(products, nil, zerolog.Nop())

		p := domain.NewProduct(uuid.New(), "lamp", "desk lamp", domain.ConditionGood, time.Now(), []string{"img.png"})
		products.Add(p)

		output, err := svc.ShowById(context.Background(), ShowInput{ProductID: p.ID.String()})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if output.Product.ID != p.ID {
			t.Errorf("expected product %s, got %s", p.ID, output.Product.ID)
		}
	})

	t.Run("malformed id reads as missing", func(t *testing.T) {
		users := NewMockUserRepository()
		products := NewMockProductRepository(users)
		svc := NewListingService(products, nil, zerolog.Nop())

		_, err := svc.ShowById(context.Background(), ShowInput{ProductID: "not-a-uuid"})
		if !errors.Is(err, domain.ErrInvalidProductID) {
			t.Fatalf("expected ErrInvalidProductID, got %v", err)
		}
	})

	t.Run("not found", func(t *testing.T) {
		users := NewMockUserRepository()
		products := NewMockProductRepository(users)
		svc := NewListingService(products, nil, zerolog.Nop())

		_, err := svc.ShowById(context.Background(), ShowInput{ProductID: uuid.NewString()})
		if !errors.Is(err, domain.ErrProductNotFound) {
			t.Fatalf("expected ErrProductNotFound, got %v", err)
		}
	})

	t.Run("second read is served from cache", func(t *testing.T) {
		users := NewMockUserRepository()
		products := NewMockProductRepository(users)
		cache := NewMockCache()
		svc := NewListingService(products, cache, zerolog.Nop())

		p := domain.NewProduct(uuid.New(), "lamp", "desk lamp", domain.ConditionGood, time.Now(), []string{"img.png"})
		products.Add(p)

		if _, err := svc.ShowById(context.Background(), ShowInput{ProductID: p.ID.String()}); err != nil {
			t.Fatalf("first read failed: %v", err)
		}

		// Break the repository: a cached read must not notice.
		products.getErr = errors.New("database down")

		output, err := svc.ShowById(context.Background(), ShowInput{ProductID: p.ID.String()})
		if err != nil {
			t.Fatalf("cached read failed: %v", err)
		}
		if output.Product.ID != p.ID {
			t.Errorf("cached product mismatch: %s", output.Product.ID)
		}
	})
}

func TestListingService_Dashboards(t *testing.T) {
	users := NewMockUserRepository()
	products := NewMockProductRepository(users)
	svc := NewListingService(products, nil, zerolog.Nop())

	owner := domain.UserIdentity{ID: uuid.New(), Name: "alice", Phone: "555-0100"}
	receiver := domain.UserIdentity{ID: uuid.New(), Name: "bob", Phone: "555-0101"}

	mine := domain.NewProduct(owner.ID, "chair", "desc", domain.ConditionGood, time.Now(), []string{"img.png"})
	products.Add(mine)

	other := domain.NewProduct(uuid.New(), "table", "desc", domain.ConditionGood, time.Now(), []string{"img.png"})
	rc := receiver.ID
	now := time.Now().UTC()
	other.Status = domain.StatusReserved
	other.ReceiverID = &rc
	other.ReservedAt = &now
	products.Add(other)

	t.Run("find by owner", func(t *testing.T) {
		output, err := svc.FindByOwner(context.Background(), DashboardInput{Actor: owner})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(output.Products) != 1 || output.Products[0].ID != mine.ID {
			t.Errorf("expected only the owned product, got %d products", len(output.Products))
		}
	})

	t.Run("find by receiver", func(t *testing.T) {
		output, err := svc.FindByReceiver(context.Background(), DashboardInput{Actor: receiver})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(output.Products) != 1 || output.Products[0].ID != other.ID {
			t.Errorf("expected only the scheduled product, got %d products", len(output.Products))
		}
	})
}

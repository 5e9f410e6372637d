package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/doaqui/doaqui/internal/domain"
)

func reservedProduct(products *MockProductRepository, reservedAt time.Time) *domain.Product {
	p := domain.NewProduct(uuid.New(), "box", "desc", domain.ConditionGood, time.Now(), []string{"img.png"})
	rc := uuid.New()
	p.Status = domain.StatusReserved
	p.ReceiverID = &rc
	p.ReservedAt = &reservedAt
	products.Add(p)
	return p
}

func TestReservationSweeper_RunOnce(t *testing.T) {
	t.Run("releases only stale reservations", func(t *testing.T) {
		users := NewMockUserRepository()
		products := NewMockProductRepository(users)
		locker := NewMockLock()

		stale := reservedProduct(products, time.Now().UTC().Add(-48*time.Hour))
		fresh := reservedProduct(products, time.Now().UTC().Add(-time.Hour))

		sweeper := NewReservationSweeper(products, locker, nil, zerolog.Nop(), SweeperConfig{
			Interval:       time.Hour,
			ReservationTTL: 24 * time.Hour,
		})

		result := sweeper.RunOnce(context.Background())
		if result.Released != 1 {
			t.Fatalf("expected 1 released, got %d", result.Released)
		}

		got := products.Get(stale.ID)
		if got.Status != domain.StatusAvailable || got.ReceiverID != nil || got.ReservedAt != nil {
			t.Errorf("stale reservation not fully released: %+v", got)
		}
		if err := got.CheckInvariant(); err != nil {
			t.Errorf("invariant violated after release: %v", err)
		}

		if products.Get(fresh.ID).Status != domain.StatusReserved {
			t.Error("fresh reservation should be untouched")
		}
	})

	t.Run("releases the lock after the run", func(t *testing.T) {
		users := NewMockUserRepository()
		products := NewMockProductRepository(users)
		locker := NewMockLock()

		sweeper := NewReservationSweeper(products, locker, nil, zerolog.Nop(), SweeperConfig{
			Interval:       time.Hour,
			ReservationTTL: 24 * time.Hour,
		})
		sweeper.RunOnce(context.Background())

		if locker.acquires != 1 || locker.releases != 1 {
			t.Errorf("expected 1 acquire and 1 release, got %d/%d", locker.acquires, locker.releases)
		}
	})

	t.Run("survives a stop and restart cycle", func(t *testing.T) {
		users := NewMockUserRepository()
		products := NewMockProductRepository(users)
		locker := NewMockLock()

		sweeper := NewReservationSweeper(products, locker, nil, zerolog.Nop(), SweeperConfig{
			Interval:       time.Hour,
			ReservationTTL: 24 * time.Hour,
		})

		for i := 0; i < 3; i++ {
			sweeper.Start()
			sweeper.Stop()
		}
		// Stopping an already-stopped sweeper is a no-op.
		sweeper.Stop()
	})

	t.Run("skips when the lock is held elsewhere", func(t *testing.T) {
		users := NewMockUserRepository()
		products := NewMockProductRepository(users)
		locker := NewMockLock()
		locker.denyAll = true

		stale := reservedProduct(products, time.Now().UTC().Add(-48*time.Hour))

		sweeper := NewReservationSweeper(products, locker, nil, zerolog.Nop(), SweeperConfig{
			Interval:       time.Hour,
			ReservationTTL: 24 * time.Hour,
		})

		result := sweeper.RunOnce(context.Background())
		if !result.Skipped {
			t.Error("expected the run to be skipped")
		}
		if products.Get(stale.ID).Status != domain.StatusReserved {
			t.Error("reservation should be untouched when the lock is held")
		}
	})
}

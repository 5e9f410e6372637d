package sqlite

import (
	"database/sql"
	"testing"
	"time"

	"github.com/doaqui/doaqui/internal/domain"
)

func TestScanTimestamps(t *testing.T) {
	valid := time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC).Format(time.RFC3339)

	t.Run("decodes all columns", func(t *testing.T) {
		var product domain.Product
		err := scanTimestamps(&product, valid, valid, valid, sql.NullString{String: valid, Valid: true})
		if err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		if product.PurchasedAt.IsZero() || product.CreatedAt.IsZero() || product.UpdatedAt.IsZero() {
			t.Error("timestamps not decoded")
		}
		if product.ReservedAt == nil || product.ReservedAt.IsZero() {
			t.Error("reserved_at not decoded")
		}
	})

	t.Run("null reserved_at stays nil", func(t *testing.T) {
		var product domain.Product
		if err := scanTimestamps(&product, valid, valid, valid, sql.NullString{}); err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		if product.ReservedAt != nil {
			t.Error("expected nil ReservedAt")
		}
	})

	t.Run("corrupt column is an error", func(t *testing.T) {
		tests := []struct {
			name                              string
			purchasedAt, createdAt, updatedAt string
			reservedAt                        sql.NullString
		}{
			{"purchased_at", "not-a-time", valid, valid, sql.NullString{}},
			{"created_at", valid, "not-a-time", valid, sql.NullString{}},
			{"updated_at", valid, valid, "not-a-time", sql.NullString{}},
			{"reserved_at", valid, valid, valid, sql.NullString{String: "not-a-time", Valid: true}},
		}
		for _, tt := range tests {
			var product domain.Product
			err := scanTimestamps(&product, tt.purchasedAt, tt.createdAt, tt.updatedAt, tt.reservedAt)
			if err == nil {
				t.Errorf("corrupt %s: expected an error", tt.name)
			}
		}
	})
}

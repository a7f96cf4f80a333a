package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/ariefcatur/equipment-orders/internal/catalog"
	"github.com/ariefcatur/equipment-orders/internal/store"
)

func newTent() catalog.Equipment {
	return catalog.Equipment{
		Name:        "Tent",
		Category:    "Camping",
		Description: "Four person dome tent with rain fly",
		Stock:       5,
		UnitPrice:   decimal.RequireFromString("199.99"),
	}
}

func TestEquipmentCRUD(t *testing.T) {
	s := NewStore(NewTestDB(t))
	ctx := context.Background()

	created, err := s.Equipment().Create(ctx, newTent())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated id")
	}
	if !created.UnitPrice.Equal(decimal.RequireFromString("199.99")) {
		t.Errorf("price = %s, want 199.99", created.UnitPrice)
	}

	created.Stock = 2
	updated, err := s.Equipment().Update(ctx, created.ID, created)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Stock != 2 {
		t.Errorf("stock = %d, want 2", updated.Stock)
	}

	items, err := s.Equipment().List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 1 || items[0].ID != created.ID {
		t.Fatalf("unexpected list %+v", items)
	}

	if err := s.Equipment().Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Equipment().Delete(ctx, created.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second Delete: expected ErrNotFound, got %v", err)
	}
}

func TestOrderReferencesEquipment(t *testing.T) {
	s := NewStore(NewTestDB(t))
	ctx := context.Background()

	eq, err := s.Equipment().Create(ctx, newTent())
	if err != nil {
		t.Fatalf("Create equipment: %v", err)
	}

	if _, err := s.Orders().Create(ctx, catalog.Order{EquipmentID: "missing", Quantity: 1, TotalPrice: decimal.NewFromInt(1)}); err == nil {
		t.Error("expected foreign key violation for unknown equipment")
	}

	order, err := s.Orders().Create(ctx, catalog.Order{EquipmentID: eq.ID, Quantity: 2, TotalPrice: decimal.RequireFromString("399.98")})
	if err != nil {
		t.Fatalf("Create order: %v", err)
	}
	if err := s.Equipment().Delete(ctx, eq.ID); err == nil {
		t.Error("expected foreign key violation deleting referenced equipment")
	}

	order.Quantity = 3
	order.TotalPrice = decimal.RequireFromString("599.97")
	got, err := s.Orders().Update(ctx, order.ID, order)
	if err != nil {
		t.Fatalf("Update order: %v", err)
	}
	if got.Quantity != 3 || !got.TotalPrice.Equal(decimal.RequireFromString("599.97")) {
		t.Errorf("unexpected order %+v", got)
	}

	if _, err := s.Orders().Update(ctx, "missing", order); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Update missing: expected ErrNotFound, got %v", err)
	}
}

func TestUpdateIfStockFencesStaleWriters(t *testing.T) {
	s := NewStore(NewTestDB(t))
	ctx := context.Background()

	eq, err := s.Equipment().Create(ctx, newTent())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	next := eq
	next.Stock = 1
	if _, err := s.Equipment().UpdateIfStock(ctx, eq.ID, 5, next); err != nil {
		t.Fatalf("UpdateIfStock: %v", err)
	}

	// A second writer that also read 5 must not overwrite the new figure.
	stale := eq
	stale.Stock = 2
	if _, err := s.Equipment().UpdateIfStock(ctx, eq.ID, 5, stale); !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if _, err := s.Equipment().UpdateIfStock(ctx, "missing", 5, stale); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	items, _ := s.Equipment().List(ctx)
	if items[0].Stock != 1 {
		t.Errorf("stock = %d, want 1", items[0].Stock)
	}
}

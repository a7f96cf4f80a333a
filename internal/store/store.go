// Package store defines the resource collections the service persists to.
package store

import (
	"context"
	"errors"

	"github.com/ariefcatur/equipment-orders/internal/catalog"
)

var (
	// ErrNotFound is returned by Update and Delete when no record has the id.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned by a conditional update when the record no
	// longer matches what the caller read.
	ErrConflict = errors.New("record changed concurrently")
)

// Collection is the CRUD surface of one resource kind. Each call succeeds or
// fails as a unit.
type Collection[T any] interface {
	List(ctx context.Context) ([]T, error)
	// Create assigns the id and timestamps and returns the stored record.
	Create(ctx context.Context, v T) (T, error)
	Update(ctx context.Context, id string, v T) (T, error)
	Delete(ctx context.Context, id string) error
}

// EquipmentCollection adds a stock-fenced update to the equipment CRUD.
type EquipmentCollection interface {
	Collection[catalog.Equipment]
	// UpdateIfStock writes e only while the stored stock still equals
	// expected, and returns ErrConflict otherwise.
	UpdateIfStock(ctx context.Context, id string, expected int, e catalog.Equipment) (catalog.Equipment, error)
}

type Store interface {
	Equipment() EquipmentCollection
	Orders() Collection[catalog.Order]
	Close() error
}

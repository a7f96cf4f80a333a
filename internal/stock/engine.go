// Package stock applies the stock effect of reserving, amending and releasing
// orders. Transitions are pure functions over value objects; Engine.WithItem
// serialises the read-modify-write cycle of one equipment item.
package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/equipment-orders/internal/catalog"
)

// Locker serialises work per key. The returned held context is derived from
// ctx and is done once the lock is no longer held, so work bound to it stops
// when a lease is lost. Unlock must be safe to call more than once.
type Locker interface {
	Lock(ctx context.Context, key string) (held context.Context, unlock func(), err error)
}

// ErrLockLost reports that the lock ended before the work under it did.
var ErrLockLost = errors.New("lock lost while held")

// LockError reports that the per-item lock could not be taken.
type LockError struct {
	EquipmentID string
	Err         error
}

func (e *LockError) Error() string {
	return fmt.Sprintf("lock equipment %s: %v", e.EquipmentID, e.Err)
}

func (e *LockError) Unwrap() error { return e.Err }

type Engine struct {
	locker Locker
}

func NewEngine(l Locker) *Engine {
	if l == nil {
		l = NewKeyedMutex()
	}
	return &Engine{locker: l}
}

// WithItem runs fn while holding the lock for equipmentID. Work on other
// items proceeds concurrently. fn receives the held context; if the lock is
// lost underneath it, the failure is reported as a *LockError.
func (e *Engine) WithItem(ctx context.Context, equipmentID string, fn func(ctx context.Context) error) error {
	held, unlock, err := e.locker.Lock(ctx, equipmentID)
	if err != nil {
		return &LockError{EquipmentID: equipmentID, Err: err}
	}
	defer unlock()

	err = fn(held)
	if err != nil && ctx.Err() == nil && held.Err() != nil {
		return &LockError{EquipmentID: equipmentID, Err: errors.Join(ErrLockLost, context.Cause(held), err)}
	}
	return err
}

// Reserve takes quantity units from eq and returns the decremented item and
// a new order priced at the current unit price. The order has no id yet.
func (e *Engine) Reserve(eq catalog.Equipment, quantity int) (catalog.Equipment, catalog.Order, error) {
	if eq.ID == "" {
		return eq, catalog.Order{}, catalog.ErrUnknownEquipment
	}
	if quantity <= 0 {
		return eq, catalog.Order{}, catalog.ErrInvalidQuantity
	}
	if quantity > eq.Stock {
		return eq, catalog.Order{}, fmt.Errorf("%w: available %d, requested %d", catalog.ErrInsufficientStock, eq.Stock, quantity)
	}

	next := eq
	next.Stock = eq.Stock - quantity
	order := catalog.Order{
		EquipmentID: eq.ID,
		Quantity:    quantity,
		TotalPrice:  catalog.ComputeTotal(eq.UnitPrice, quantity),
	}
	return next, order, nil
}

// Amend changes o's quantity. The old quantity is restored to stock first and
// the new one validated against that restored figure; if it does not fit,
// neither eq nor o change. Net effect on stock equals Release followed by
// Reserve, but the order keeps its id.
func (e *Engine) Amend(eq catalog.Equipment, o catalog.Order, quantity int) (catalog.Equipment, catalog.Order, error) {
	if o.EquipmentID != eq.ID {
		return eq, o, fmt.Errorf("%w: order %s references %s, not %s", catalog.ErrUnknownEquipment, o.ID, o.EquipmentID, eq.ID)
	}

	restored := eq.Stock + o.Quantity
	form := catalog.OrderForm{EquipmentID: eq.ID, Quantity: catalog.IntValue(quantity)}
	if err := catalog.CheckOrder(form, catalog.StockSnapshot{eq.ID: restored}); err != nil {
		return eq, o, err
	}

	nextEq := eq
	nextEq.Stock = restored - quantity
	nextOrder := o
	nextOrder.Quantity = quantity
	nextOrder.TotalPrice = catalog.ComputeTotal(eq.UnitPrice, quantity)
	return nextEq, nextOrder, nil
}

// Release returns o's quantity to eq.
func (e *Engine) Release(eq catalog.Equipment, o catalog.Order) (catalog.Equipment, error) {
	if o.EquipmentID != eq.ID {
		return eq, fmt.Errorf("%w: order %s references %s, not %s", catalog.ErrUnknownEquipment, o.ID, o.EquipmentID, eq.ID)
	}
	next := eq
	next.Stock = eq.Stock + o.Quantity
	return next, nil
}

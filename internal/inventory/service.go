// Package inventory coordinates catalog management and order placement
// against the store. Every stock-changing operation runs under the lock of
// the equipment it touches, persists the engine's result and, when a later
// write fails, restores what was already written. Equipment writes are
// conditional on the stock read under the lock, and events are published
// before the lock is released.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ariefcatur/equipment-orders/internal/catalog"
	kafkax "github.com/ariefcatur/equipment-orders/internal/kafka"
	"github.com/ariefcatur/equipment-orders/internal/stock"
	"github.com/ariefcatur/equipment-orders/internal/store"
)

const defaultStoreTimeout = 5 * time.Second

// Publisher receives committed domain events. *kafka.Producer satisfies it.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// StoreError reports a failed store call. Writes made before the failure
// have been rolled back unless Err also carries a rollback error.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store: %s: %v", e.Op, e.Err) }

func (e *StoreError) Unwrap() error { return e.Err }

type Service struct {
	Store        store.Store
	Engine       *stock.Engine
	Publisher    Publisher // nil disables events
	Logger       *zap.Logger
	ServiceName  string
	StoreTimeout time.Duration
}

func (s *Service) log() *zap.Logger {
	if s.Logger == nil {
		return zap.NewNop()
	}
	return s.Logger
}

func (s *Service) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	d := s.StoreTimeout
	if d <= 0 {
		d = defaultStoreTimeout
	}
	return context.WithTimeout(ctx, d)
}

// withItem locks equipmentID through the engine. A lock that cannot be taken
// is reported as a store failure, since nothing has been written yet.
func (s *Service) withItem(ctx context.Context, equipmentID string, fn func(ctx context.Context) error) error {
	err := s.Engine.WithItem(ctx, equipmentID, fn)
	var le *stock.LockError
	if errors.As(err, &le) {
		return &StoreError{Op: "lock equipment", Err: err}
	}
	return err
}

func (s *Service) listEquipment(ctx context.Context) ([]catalog.Equipment, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	items, err := s.Store.Equipment().List(ctx)
	if err != nil {
		return nil, &StoreError{Op: "list equipment", Err: err}
	}
	return items, nil
}

func (s *Service) listOrders(ctx context.Context) ([]catalog.Order, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	orders, err := s.Store.Orders().List(ctx)
	if err != nil {
		return nil, &StoreError{Op: "list orders", Err: err}
	}
	return orders, nil
}

// updateEquipment writes eq only if the stored stock still equals expected.
func (s *Service) updateEquipment(ctx context.Context, expected int, eq catalog.Equipment) (catalog.Equipment, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()
	return s.Store.Equipment().UpdateIfStock(ctx, eq.ID, expected, eq)
}

// restore puts prev back over a write that left the stock at written.
func (s *Service) restore(prev catalog.Equipment, written int) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		_, err := s.Store.Equipment().UpdateIfStock(ctx, prev.ID, written, prev)
		return err
	}
}

// rollback runs undo on a context that survives the caller's cancellation,
// bounded by the store timeout, and folds its outcome into a StoreError.
func (s *Service) rollback(ctx context.Context, op string, cause error, undo func(ctx context.Context) error) error {
	ctx, cancel := s.storeCtx(context.WithoutCancel(ctx))
	defer cancel()
	if err := undo(ctx); err != nil {
		s.log().Error("rollback failed", zap.String("op", op), zap.NamedError("cause", cause), zap.Error(err))
		return &StoreError{Op: op, Err: errors.Join(cause, fmt.Errorf("rollback: %w", err))}
	}
	s.log().Warn("rolled back", zap.String("op", op), zap.Error(cause))
	return &StoreError{Op: op, Err: cause}
}

func unknownEquipment(id string) error {
	return fmt.Errorf("%w: %s", catalog.ErrUnknownEquipment, id)
}

func unknownOrder(id string) error {
	return fmt.Errorf("%w: %s", catalog.ErrUnknownOrder, id)
}

// ---- catalog ----

func (s *Service) ListEquipment(ctx context.Context) ([]catalog.Equipment, error) {
	return s.listEquipment(ctx)
}

func (s *Service) GetEquipment(ctx context.Context, id string) (catalog.Equipment, error) {
	items, err := s.listEquipment(ctx)
	if err != nil {
		return catalog.Equipment{}, err
	}
	eq, ok := catalog.FindEquipment(items, id)
	if !ok {
		return eq, unknownEquipment(id)
	}
	return eq, nil
}

func (s *Service) CreateEquipment(ctx context.Context, form catalog.EquipmentForm) (catalog.Equipment, error) {
	if err := catalog.CheckEquipment(form); err != nil {
		return catalog.Equipment{}, err
	}

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	eq, err := s.Store.Equipment().Create(sctx, form.Equipment())
	if err != nil {
		return catalog.Equipment{}, &StoreError{Op: "create equipment", Err: err}
	}

	s.log().Info("equipment created", zap.String("equipment_id", eq.ID), zap.Int("stock", eq.Stock))
	s.publishEquipment(catalog.EventEquipmentCreated, eq)
	return eq, nil
}

// UpdateEquipment replaces the catalog fields of id, stock included.
func (s *Service) UpdateEquipment(ctx context.Context, id string, form catalog.EquipmentForm) (catalog.Equipment, error) {
	if err := catalog.CheckEquipment(form); err != nil {
		return catalog.Equipment{}, err
	}

	var updated catalog.Equipment
	err := s.withItem(ctx, id, func(ctx context.Context) error {
		items, err := s.listEquipment(ctx)
		if err != nil {
			return err
		}
		cur, ok := catalog.FindEquipment(items, id)
		if !ok {
			return unknownEquipment(id)
		}

		next := form.Equipment()
		next.ID = id
		updated, err = s.updateEquipment(ctx, cur.Stock, next)
		if errors.Is(err, store.ErrNotFound) {
			return unknownEquipment(id)
		}
		if err != nil {
			return &StoreError{Op: "update equipment", Err: err}
		}

		s.log().Info("equipment updated", zap.String("equipment_id", id), zap.Int("stock", updated.Stock))
		s.publishEquipment(catalog.EventEquipmentUpdated, updated)
		return nil
	})
	if err != nil {
		return catalog.Equipment{}, err
	}
	return updated, nil
}

// DeleteEquipment removes id unless orders still reference it.
func (s *Service) DeleteEquipment(ctx context.Context, id string) error {
	return s.withItem(ctx, id, func(ctx context.Context) error {
		items, err := s.listEquipment(ctx)
		if err != nil {
			return err
		}
		eq, ok := catalog.FindEquipment(items, id)
		if !ok {
			return unknownEquipment(id)
		}
		orders, err := s.listOrders(ctx)
		if err != nil {
			return err
		}
		if n := len(catalog.OrdersFor(orders, id)); n > 0 {
			return fmt.Errorf("%w: %s still holds %d orders", catalog.ErrEquipmentInUse, id, n)
		}

		sctx, cancel := s.storeCtx(ctx)
		defer cancel()
		if err := s.Store.Equipment().Delete(sctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return unknownEquipment(id)
			}
			return &StoreError{Op: "delete equipment", Err: err}
		}

		s.log().Info("equipment deleted", zap.String("equipment_id", id))
		eq.Stock = 0
		s.publishEquipment(catalog.EventEquipmentDeleted, eq)
		return nil
	})
}

// ---- orders ----

func (s *Service) ListOrders(ctx context.Context) ([]catalog.Order, error) {
	return s.listOrders(ctx)
}

func (s *Service) GetOrder(ctx context.Context, id string) (catalog.Order, error) {
	orders, err := s.listOrders(ctx)
	if err != nil {
		return catalog.Order{}, err
	}
	o, ok := catalog.FindOrder(orders, id)
	if !ok {
		return o, unknownOrder(id)
	}
	return o, nil
}

// PreviewOrder prices form at the current unit price. Incomplete input
// yields zero.
func (s *Service) PreviewOrder(ctx context.Context, form catalog.OrderForm) (decimal.Decimal, error) {
	if form.EquipmentID == "" {
		return decimal.Zero, nil
	}
	items, err := s.listEquipment(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return catalog.PreviewOrderTotal(items, form), nil
}

// PlaceOrder reserves stock for a new order.
func (s *Service) PlaceOrder(ctx context.Context, form catalog.OrderForm) (catalog.Order, error) {
	if form.EquipmentID == "" {
		return catalog.Order{}, catalog.CheckOrder(form, nil)
	}

	var created catalog.Order
	err := s.withItem(ctx, form.EquipmentID, func(ctx context.Context) error {
		items, err := s.listEquipment(ctx)
		if err != nil {
			return err
		}
		if err := catalog.CheckOrder(form, catalog.SnapshotOf(items)); err != nil {
			return err
		}
		eq, _ := catalog.FindEquipment(items, form.EquipmentID)
		quantity, _ := form.Quantity.Int()

		next, order, err := s.Engine.Reserve(eq, quantity)
		if err != nil {
			return err
		}

		after, err := s.updateEquipment(ctx, eq.Stock, next)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return unknownEquipment(eq.ID)
			}
			return &StoreError{Op: "reserve stock", Err: err}
		}

		sctx, cancel := s.storeCtx(ctx)
		defer cancel()
		if created, err = s.Store.Orders().Create(sctx, order); err != nil {
			return s.rollback(ctx, "create order", err, s.restore(eq, after.Stock))
		}

		s.log().Info("order reserved",
			zap.String("order_id", created.ID),
			zap.String("equipment_id", created.EquipmentID),
			zap.Int("quantity", created.Quantity),
			zap.Int("stock", after.Stock))
		s.publishOrder(catalog.EventOrderReserved, created, 0, after.Stock)
		return nil
	})
	if err != nil {
		return catalog.Order{}, err
	}
	return created, nil
}

// AmendOrder changes the quantity of orderID. The order must stay on the
// same equipment.
func (s *Service) AmendOrder(ctx context.Context, orderID string, form catalog.OrderForm) (catalog.Order, error) {
	if form.EquipmentID == "" {
		return catalog.Order{}, catalog.CheckOrder(form, nil)
	}
	current, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return catalog.Order{}, err
	}
	if form.EquipmentID != current.EquipmentID {
		return catalog.Order{}, fmt.Errorf("order %s: %w", orderID, catalog.ErrEquipmentChange)
	}

	var amended catalog.Order
	err = s.withItem(ctx, current.EquipmentID, func(ctx context.Context) error {
		// Re-read under the lock; the order may have changed meanwhile.
		orders, err := s.listOrders(ctx)
		if err != nil {
			return err
		}
		o, ok := catalog.FindOrder(orders, orderID)
		if !ok {
			return unknownOrder(orderID)
		}
		items, err := s.listEquipment(ctx)
		if err != nil {
			return err
		}
		eq, ok := catalog.FindEquipment(items, o.EquipmentID)
		if !ok {
			return unknownEquipment(o.EquipmentID)
		}

		snap := catalog.SnapshotOf(items)
		snap[eq.ID] += o.Quantity
		if err := catalog.CheckOrder(form, snap); err != nil {
			return err
		}
		quantity, _ := form.Quantity.Int()

		nextEq, nextOrder, err := s.Engine.Amend(eq, o, quantity)
		if err != nil {
			return err
		}

		after, err := s.updateEquipment(ctx, eq.Stock, nextEq)
		if err != nil {
			return &StoreError{Op: "amend stock", Err: err}
		}

		sctx, cancel := s.storeCtx(ctx)
		defer cancel()
		if amended, err = s.Store.Orders().Update(sctx, o.ID, nextOrder); err != nil {
			return s.rollback(ctx, "update order", err, s.restore(eq, after.Stock))
		}

		s.log().Info("order amended",
			zap.String("order_id", amended.ID),
			zap.String("equipment_id", amended.EquipmentID),
			zap.Int("previous_quantity", o.Quantity),
			zap.Int("quantity", amended.Quantity),
			zap.Int("stock", after.Stock))
		s.publishOrder(catalog.EventOrderAmended, amended, o.Quantity, after.Stock)
		return nil
	})
	if err != nil {
		return catalog.Order{}, err
	}
	return amended, nil
}

// CancelOrder releases orderID's stock and deletes the order.
func (s *Service) CancelOrder(ctx context.Context, orderID string) error {
	current, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}

	return s.withItem(ctx, current.EquipmentID, func(ctx context.Context) error {
		orders, err := s.listOrders(ctx)
		if err != nil {
			return err
		}
		o, ok := catalog.FindOrder(orders, orderID)
		if !ok {
			return unknownOrder(orderID)
		}
		items, err := s.listEquipment(ctx)
		if err != nil {
			return err
		}
		eq, ok := catalog.FindEquipment(items, o.EquipmentID)
		if !ok {
			return unknownEquipment(o.EquipmentID)
		}

		next, err := s.Engine.Release(eq, o)
		if err != nil {
			return err
		}

		after, err := s.updateEquipment(ctx, eq.Stock, next)
		if err != nil {
			return &StoreError{Op: "release stock", Err: err}
		}

		sctx, cancel := s.storeCtx(ctx)
		defer cancel()
		if err := s.Store.Orders().Delete(sctx, o.ID); err != nil {
			return s.rollback(ctx, "delete order", err, s.restore(eq, after.Stock))
		}

		s.log().Info("order released",
			zap.String("order_id", o.ID),
			zap.String("equipment_id", o.EquipmentID),
			zap.Int("quantity", o.Quantity),
			zap.Int("stock", after.Stock))
		s.publishOrder(catalog.EventOrderReleased, o, 0, after.Stock)
		return nil
	})
}

// ---- events ----

func (s *Service) publishEquipment(eventType string, eq catalog.Equipment) {
	s.publish(eventType, eq.ID, catalog.EquipmentPayload{
		EquipmentID: eq.ID,
		Name:        eq.Name,
		Category:    eq.Category,
		Stock:       eq.Stock,
		UnitPrice:   eq.UnitPrice,
	})
}

func (s *Service) publishOrder(eventType string, o catalog.Order, previous, stockAfter int) {
	s.publish(eventType, o.EquipmentID, catalog.OrderPayload{
		OrderID:          o.ID,
		EquipmentID:      o.EquipmentID,
		Quantity:         o.Quantity,
		PreviousQuantity: previous,
		TotalPrice:       o.TotalPrice,
		Stock:            stockAfter,
	})
}

func (s *Service) publish(eventType, equipmentID string, payload any) {
	if s.Publisher == nil {
		return
	}
	env, err := kafkax.NewEnvelope(eventType, s.ServiceName, equipmentID, payload)
	if err != nil {
		s.log().Error("build event", zap.String("event_type", eventType), zap.Error(err))
		return
	}
	s.Publisher.Publish(catalog.PartitionKey(equipmentID), kafkax.MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

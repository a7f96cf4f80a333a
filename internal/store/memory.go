package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/equipment-orders/internal/catalog"
)

// Memory keeps both collections in process. Used for local runs and tests.
type Memory struct {
	equipment memEquipment
	orders    *memCollection[catalog.Order]
}

func NewMemory() *Memory {
	return &Memory{
		equipment: memEquipment{newMemCollection(func(e *catalog.Equipment) record {
			return record{&e.ID, &e.CreatedAt, &e.UpdatedAt}
		})},
		orders: newMemCollection(func(o *catalog.Order) record {
			return record{&o.ID, &o.CreatedAt, &o.UpdatedAt}
		}),
	}
}

func (m *Memory) Equipment() EquipmentCollection    { return m.equipment }
func (m *Memory) Orders() Collection[catalog.Order] { return m.orders }
func (m *Memory) Close() error                      { return nil }

// record exposes the fields the collection manages itself.
type record struct {
	id        *string
	createdAt *time.Time
	updatedAt *time.Time
}

type memCollection[T any] struct {
	mu    sync.RWMutex
	items map[string]T
	ids   []string // insertion order
	meta  func(*T) record
	now   func() time.Time
}

func newMemCollection[T any](meta func(*T) record) *memCollection[T] {
	return &memCollection[T]{
		items: make(map[string]T),
		meta:  meta,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (c *memCollection[T]) List(ctx context.Context) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, c.items[id])
	}
	return out, nil
}

func (c *memCollection[T]) Create(ctx context.Context, v T) (T, error) {
	if err := ctx.Err(); err != nil {
		return v, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.meta(&v)
	*m.id = uuid.NewString()
	now := c.now()
	*m.createdAt, *m.updatedAt = now, now
	c.items[*m.id] = v
	c.ids = append(c.ids, *m.id)
	return v, nil
}

func (c *memCollection[T]) Update(ctx context.Context, id string, v T) (T, error) {
	if err := ctx.Err(); err != nil {
		return v, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updateLocked(id, v)
}

func (c *memCollection[T]) updateLocked(id string, v T) (T, error) {
	cur, ok := c.items[id]
	if !ok {
		return v, ErrNotFound
	}
	m := c.meta(&v)
	*m.id = id
	*m.createdAt = *c.meta(&cur).createdAt
	*m.updatedAt = c.now()
	c.items[id] = v
	return v, nil
}

func (c *memCollection[T]) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.items[id]; !ok {
		return ErrNotFound
	}
	delete(c.items, id)
	for i, x := range c.ids {
		if x == id {
			c.ids = append(c.ids[:i], c.ids[i+1:]...)
			break
		}
	}
	return nil
}

type memEquipment struct {
	*memCollection[catalog.Equipment]
}

func (c memEquipment) UpdateIfStock(ctx context.Context, id string, expected int, e catalog.Equipment) (catalog.Equipment, error) {
	if err := ctx.Err(); err != nil {
		return e, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	cur, ok := c.items[id]
	if !ok {
		return e, ErrNotFound
	}
	if cur.Stock != expected {
		return e, ErrConflict
	}
	return c.updateLocked(id, e)
}

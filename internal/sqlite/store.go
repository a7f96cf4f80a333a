package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/equipment-orders/internal/catalog"
	"github.com/ariefcatur/equipment-orders/internal/store"
)

// Store implements store.Store on a SQLite database. Prices are kept as
// decimal text.
type Store struct {
	DB *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{DB: db} }

func (s *Store) Equipment() store.EquipmentCollection { return &equipmentRepo{db: s.DB} }

func (s *Store) Orders() store.Collection[catalog.Order] { return &orderRepo{db: s.DB} }

func (s *Store) Close() error { return s.DB.Close() }

type scanner interface {
	Scan(dest ...any) error
}

type equipmentRepo struct{ db *sql.DB }

const equipmentColumns = `id, name, category, description, stock, unit_price, created_at, updated_at`

func scanEquipment(row scanner) (catalog.Equipment, error) {
	var e catalog.Equipment
	var price string
	if err := row.Scan(&e.ID, &e.Name, &e.Category, &e.Description, &e.Stock, &price, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return e, err
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return e, fmt.Errorf("parsing unit price %q: %w", price, err)
	}
	e.UnitPrice = p
	return e, nil
}

func (r *equipmentRepo) get(ctx context.Context, id string) (catalog.Equipment, error) {
	e, err := scanEquipment(r.db.QueryRowContext(ctx,
		`SELECT `+equipmentColumns+` FROM equipment WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return e, store.ErrNotFound
	}
	if err != nil {
		return e, fmt.Errorf("getting equipment: %w", err)
	}
	return e, nil
}

func (r *equipmentRepo) List(ctx context.Context) ([]catalog.Equipment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+equipmentColumns+` FROM equipment ORDER BY created_at, rowid`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing equipment: %w", err)
	}
	defer rows.Close()

	var items []catalog.Equipment
	for rows.Next() {
		e, err := scanEquipment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning equipment: %w", err)
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

func (r *equipmentRepo) Create(ctx context.Context, e catalog.Equipment) (catalog.Equipment, error) {
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO equipment (id, name, category, description, stock, unit_price) VALUES (?, ?, ?, ?, ?, ?)`,
		id, e.Name, e.Category, e.Description, e.Stock, e.UnitPrice.String(),
	)
	if err != nil {
		return e, fmt.Errorf("creating equipment: %w", err)
	}
	return r.get(ctx, id)
}

func (r *equipmentRepo) Update(ctx context.Context, id string, e catalog.Equipment) (catalog.Equipment, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE equipment SET name = ?, category = ?, description = ?, stock = ?, unit_price = ?,
		        updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		e.Name, e.Category, e.Description, e.Stock, e.UnitPrice.String(), id,
	)
	if err != nil {
		return e, fmt.Errorf("updating equipment: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return e, store.ErrNotFound
	}
	return r.get(ctx, id)
}

// UpdateIfStock is Update guarded by the stock value the caller read.
func (r *equipmentRepo) UpdateIfStock(ctx context.Context, id string, expected int, e catalog.Equipment) (catalog.Equipment, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE equipment SET name = ?, category = ?, description = ?, stock = ?, unit_price = ?,
		        updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND stock = ?`,
		e.Name, e.Category, e.Description, e.Stock, e.UnitPrice.String(), id, expected,
	)
	if err != nil {
		return e, fmt.Errorf("updating equipment: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		if _, err := r.get(ctx, id); err != nil {
			return e, err
		}
		return e, store.ErrConflict
	}
	return r.get(ctx, id)
}

func (r *equipmentRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM equipment WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting equipment: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

type orderRepo struct{ db *sql.DB }

const orderColumns = `id, equipment_id, quantity, total_price, created_at, updated_at`

func scanOrder(row scanner) (catalog.Order, error) {
	var o catalog.Order
	var total string
	if err := row.Scan(&o.ID, &o.EquipmentID, &o.Quantity, &total, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return o, err
	}
	t, err := decimal.NewFromString(total)
	if err != nil {
		return o, fmt.Errorf("parsing total price %q: %w", total, err)
	}
	o.TotalPrice = t
	return o, nil
}

func (r *orderRepo) get(ctx context.Context, id string) (catalog.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = ?`, id,
	))
	if err == sql.ErrNoRows {
		return o, store.ErrNotFound
	}
	if err != nil {
		return o, fmt.Errorf("getting order: %w", err)
	}
	return o, nil
}

func (r *orderRepo) List(ctx context.Context) ([]catalog.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders ORDER BY created_at, rowid`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	defer rows.Close()

	var orders []catalog.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (r *orderRepo) Create(ctx context.Context, o catalog.Order) (catalog.Order, error) {
	id := uuid.NewString()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO orders (id, equipment_id, quantity, total_price) VALUES (?, ?, ?, ?)`,
		id, o.EquipmentID, o.Quantity, o.TotalPrice.String(),
	)
	if err != nil {
		return o, fmt.Errorf("creating order: %w", err)
	}
	return r.get(ctx, id)
}

func (r *orderRepo) Update(ctx context.Context, id string, o catalog.Order) (catalog.Order, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE orders SET equipment_id = ?, quantity = ?, total_price = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		o.EquipmentID, o.Quantity, o.TotalPrice.String(), id,
	)
	if err != nil {
		return o, fmt.Errorf("updating order: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return o, store.ErrNotFound
	}
	return r.get(ctx, id)
}

func (r *orderRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting order: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

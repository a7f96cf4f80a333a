package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ariefcatur/equipment-orders/internal/catalog"
	"github.com/ariefcatur/equipment-orders/internal/store"
)

// Store implements store.Store on a pgx pool. Prices travel as text so that
// NUMERIC values round-trip exactly.
type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store { return &Store{DB: db} }

func (s *Store) Equipment() store.EquipmentCollection { return &EquipmentRepo{DB: s.DB} }

func (s *Store) Orders() store.Collection[catalog.Order] { return &OrderRepo{DB: s.DB} }

func (s *Store) Close() error {
	s.DB.Close()
	return nil
}

type EquipmentRepo struct{ DB *pgxpool.Pool }

const equipmentColumns = `id, name, category, description, stock, unit_price::text, created_at, updated_at`

func scanEquipment(row pgx.Row) (catalog.Equipment, error) {
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

func (r *EquipmentRepo) List(ctx context.Context) ([]catalog.Equipment, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+equipmentColumns+` FROM equipment ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing equipment: %w", err)
	}
	defer rows.Close()

	var out []catalog.Equipment
	for rows.Next() {
		e, err := scanEquipment(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning equipment: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *EquipmentRepo) Create(ctx context.Context, e catalog.Equipment) (catalog.Equipment, error) {
	row := r.DB.QueryRow(ctx, `
		INSERT INTO equipment (id, name, category, description, stock, unit_price)
		VALUES ($1, $2, $3, $4, $5, $6::numeric)
		RETURNING `+equipmentColumns,
		uuid.NewString(), e.Name, e.Category, e.Description, e.Stock, e.UnitPrice.String(),
	)
	created, err := scanEquipment(row)
	if err != nil {
		return e, fmt.Errorf("creating equipment: %w", err)
	}
	return created, nil
}

func (r *EquipmentRepo) Update(ctx context.Context, id string, e catalog.Equipment) (catalog.Equipment, error) {
	row := r.DB.QueryRow(ctx, `
		UPDATE equipment
		SET name = $2, category = $3, description = $4, stock = $5, unit_price = $6::numeric, updated_at = now()
		WHERE id = $1
		RETURNING `+equipmentColumns,
		id, e.Name, e.Category, e.Description, e.Stock, e.UnitPrice.String(),
	)
	updated, err := scanEquipment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return e, store.ErrNotFound
	}
	if err != nil {
		return e, fmt.Errorf("updating equipment: %w", err)
	}
	return updated, nil
}

// UpdateIfStock is Update guarded by the stock value the caller read.
func (r *EquipmentRepo) UpdateIfStock(ctx context.Context, id string, expected int, e catalog.Equipment) (catalog.Equipment, error) {
	row := r.DB.QueryRow(ctx, `
		UPDATE equipment
		SET name = $2, category = $3, description = $4, stock = $5, unit_price = $6::numeric, updated_at = now()
		WHERE id = $1 AND stock = $7
		RETURNING `+equipmentColumns,
		id, e.Name, e.Category, e.Description, e.Stock, e.UnitPrice.String(), expected,
	)
	updated, err := scanEquipment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		var exists bool
		if err := r.DB.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM equipment WHERE id = $1)`, id).Scan(&exists); err != nil {
			return e, fmt.Errorf("checking equipment: %w", err)
		}
		if exists {
			return e, store.ErrConflict
		}
		return e, store.ErrNotFound
	}
	if err != nil {
		return e, fmt.Errorf("updating equipment: %w", err)
	}
	return updated, nil
}

func (r *EquipmentRepo) Delete(ctx context.Context, id string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM equipment WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting equipment: %w", err)
	}
	if ct.RowsAffected() != 1 {
		return store.ErrNotFound
	}
	return nil
}

type OrderRepo struct{ DB *pgxpool.Pool }

const orderColumns = `id, equipment_id, quantity, total_price::text, created_at, updated_at`

func scanOrder(row pgx.Row) (catalog.Order, error) {
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

func (r *OrderRepo) List(ctx context.Context) ([]catalog.Order, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	defer rows.Close()

	var out []catalog.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning order: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *OrderRepo) Create(ctx context.Context, o catalog.Order) (catalog.Order, error) {
	row := r.DB.QueryRow(ctx, `
		INSERT INTO orders (id, equipment_id, quantity, total_price)
		VALUES ($1, $2, $3, $4::numeric)
		RETURNING `+orderColumns,
		uuid.NewString(), o.EquipmentID, o.Quantity, o.TotalPrice.String(),
	)
	created, err := scanOrder(row)
	if err != nil {
		return o, fmt.Errorf("creating order: %w", err)
	}
	return created, nil
}

func (r *OrderRepo) Update(ctx context.Context, id string, o catalog.Order) (catalog.Order, error) {
	row := r.DB.QueryRow(ctx, `
		UPDATE orders
		SET equipment_id = $2, quantity = $3, total_price = $4::numeric, updated_at = now()
		WHERE id = $1
		RETURNING `+orderColumns,
		id, o.EquipmentID, o.Quantity, o.TotalPrice.String(),
	)
	updated, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return o, store.ErrNotFound
	}
	if err != nil {
		return o, fmt.Errorf("updating order: %w", err)
	}
	return updated, nil
}

func (r *OrderRepo) Delete(ctx context.Context, id string) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting order: %w", err)
	}
	if ct.RowsAffected() != 1 {
		return store.ErrNotFound
	}
	return nil
}

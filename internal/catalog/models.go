package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

type Equipment struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Stock       int             `json:"stock"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Order consumes Quantity units of one Equipment item. TotalPrice is the
// snapshot taken when the quantity was last committed.
type Order struct {
	ID          string          `json:"id"`
	EquipmentID string          `json:"equipmentId"`
	Quantity    int             `json:"quantity"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// EquipmentForm is a catalog entry as submitted, before parsing.
type EquipmentForm struct {
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Stock       Value  `json:"stock"`
	UnitPrice   Value  `json:"unitPrice"`
}

// Equipment builds the catalog entry described by a validated form.
// Unparseable numeric fields come out as zero, so call ValidateEquipment first.
func (f EquipmentForm) Equipment() Equipment {
	stock, _ := f.Stock.Int()
	price, _ := f.UnitPrice.Decimal()
	return Equipment{
		Name:        f.Name,
		Category:    f.Category,
		Description: f.Description,
		Stock:       stock,
		UnitPrice:   price,
	}
}

// OrderForm is an order as submitted, before parsing.
type OrderForm struct {
	EquipmentID string `json:"equipmentId"`
	Quantity    Value  `json:"quantity"`
}

// StockSnapshot maps equipment id to the stock an order may draw from.
type StockSnapshot map[string]int

// SnapshotOf returns the current stock of every item.
func SnapshotOf(items []Equipment) StockSnapshot {
	snap := make(StockSnapshot, len(items))
	for _, it := range items {
		snap[it.ID] = it.Stock
	}
	return snap
}

// FindEquipment returns the item with the given id.
func FindEquipment(items []Equipment, id string) (Equipment, bool) {
	for _, it := range items {
		if it.ID == id {
			return it, true
		}
	}
	return Equipment{}, false
}

// FindOrder returns the order with the given id.
func FindOrder(orders []Order, id string) (Order, bool) {
	for _, o := range orders {
		if o.ID == id {
			return o, true
		}
	}
	return Order{}, false
}

// OrdersFor returns the orders referencing equipmentID.
func OrdersFor(orders []Order, equipmentID string) []Order {
	var out []Order
	for _, o := range orders {
		if o.EquipmentID == equipmentID {
			out = append(out, o)
		}
	}
	return out
}

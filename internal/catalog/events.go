package catalog

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventEquipmentCreated = "EquipmentCreated"
	EventEquipmentUpdated = "EquipmentUpdated"
	EventEquipmentDeleted = "EquipmentDeleted"
	EventOrderReserved    = "OrderReserved"
	EventOrderAmended     = "OrderAmended"
	EventOrderReleased    = "OrderReleased"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // equipment id
	Payload       json.RawMessage `json:"payload"`
}

// ---- payloads ----

type EquipmentPayload struct {
	EquipmentID string          `json:"equipment_id"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Stock       int             `json:"stock"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// OrderPayload describes a committed order change. Stock is the equipment's
// stock after the change; PreviousQuantity is set for amendments.
type OrderPayload struct {
	OrderID          string          `json:"order_id"`
	EquipmentID      string          `json:"equipment_id"`
	Quantity         int             `json:"quantity"`
	PreviousQuantity int             `json:"previous_quantity,omitempty"`
	TotalPrice       decimal.Decimal `json:"total_price"`
	Stock            int             `json:"stock"`
}

// StockView is the part every payload shares.
type StockView struct {
	EquipmentID string `json:"equipment_id"`
	Stock       int    `json:"stock"`
}

package redisx

import "time"

const (
	// Idempotent order placement: idem:order:place:{idempotency_key} -> order_id
	KeyIdemOrderPlace = "idem:order:place:%s"

	// Projected stock: equipment_stock:{equipment_id} -> {"stock": n, "updated_at": "..."}
	KeyEquipmentStock = "equipment_stock:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// Per-equipment lease: lock:equipment:{equipment_id} -> token
	KeyLock = "lock:equipment:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStockCache  = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
	TTLLock        = 30 * time.Second
)

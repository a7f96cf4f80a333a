package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// StockEntry is the cached stock level of one equipment item.
type StockEntry struct {
	Stock     int       `json:"stock"`
	UpdatedAt time.Time `json:"updated_at"`
}

type StockCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStockCache(rdb *redis.Client) *StockCache {
	return &StockCache{rdb: rdb, ttl: TTLStockCache}
}

func (c *StockCache) Set(ctx context.Context, equipmentID string, e StockEntry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, fmt.Sprintf(KeyEquipmentStock, equipmentID), b, c.ttl).Err()
}

// Get reports ok=false on a cache miss.
func (c *StockCache) Get(ctx context.Context, equipmentID string) (StockEntry, bool, error) {
	var e StockEntry
	b, err := c.rdb.Get(ctx, fmt.Sprintf(KeyEquipmentStock, equipmentID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return e, false, nil
	}
	if err != nil {
		return e, false, err
	}
	if err := json.Unmarshal(b, &e); err != nil {
		return e, false, fmt.Errorf("decode stock entry: %w", err)
	}
	return e, true, nil
}

func (c *StockCache) Delete(ctx context.Context, equipmentID string) error {
	return c.rdb.Del(ctx, fmt.Sprintf(KeyEquipmentStock, equipmentID)).Err()
}

// Idempotency maps client supplied keys to the id of the order they created.
type Idempotency struct {
	rdb *redis.Client
}

func NewIdempotency(rdb *redis.Client) *Idempotency { return &Idempotency{rdb: rdb} }

// Lookup returns the order id previously stored under key.
func (i *Idempotency) Lookup(ctx context.Context, key string) (string, bool, error) {
	id, err := i.rdb.Get(ctx, fmt.Sprintf(KeyIdemOrderPlace, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// Remember stores orderID under key unless the key is already taken.
func (i *Idempotency) Remember(ctx context.Context, key, orderID string) error {
	return i.rdb.SetNX(ctx, fmt.Sprintf(KeyIdemOrderPlace, key), orderID, TTLIdempotency).Err()
}

// MarkProcessed records eventID for service and reports whether this is the
// first time it was seen.
func MarkProcessed(ctx context.Context, rdb *redis.Client, service, eventID string) (bool, error) {
	return rdb.SetNX(ctx, fmt.Sprintf(KeyDedup, service, eventID), 1, TTLDedup).Result()
}

package redisx

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrLockNotHeld is returned by release, and set as the cause of the held
// context, when the lease expired or was taken over by another holder.
var ErrLockNotHeld = errors.New("redis lock not held")

// Deletes the key only if it still carries our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Extends the lease only if it still carries our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Locker is a per-equipment lease lock shared by every API replica. Each
// lease expires after TTL so a crashed holder cannot block an item forever;
// a live holder renews it every TTL/3.
type Locker struct {
	rdb   *redis.Client
	ttl   time.Duration
	retry time.Duration
	log   *zap.Logger
}

func NewLocker(rdb *redis.Client, ttl time.Duration, log *zap.Logger) *Locker {
	if ttl <= 0 {
		ttl = TTLLock
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Locker{rdb: rdb, ttl: ttl, retry: 25 * time.Millisecond, log: log}
}

// Lock blocks until the lease for equipmentID is acquired or ctx ends. The
// returned context is cancelled with ErrLockNotHeld as soon as the lease is
// found lost, and when unlock is called.
func (l *Locker) Lock(ctx context.Context, equipmentID string) (context.Context, func(), error) {
	key := fmt.Sprintf(KeyLock, equipmentID)
	token := uuid.NewString()

	t := time.NewTimer(0)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-t.C:
		}

		ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return nil, nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if ok {
			return l.hold(ctx, equipmentID, key, token)
		}
		t.Reset(l.retry)
	}
}

func (l *Locker) hold(ctx context.Context, equipmentID, key, token string) (context.Context, func(), error) {
	held, cancel := context.WithCancelCause(ctx)
	stop := make(chan struct{})
	done := make(chan struct{})

	go func() {
		defer close(done)
		l.renew(held, cancel, stop, equipmentID, key, token)
	}()

	var once sync.Once
	return held, func() {
		once.Do(func() {
			close(stop)
			<-done
			if err := l.release(key, token); err != nil {
				l.log.Warn("release equipment lock", zap.String("equipment_id", equipmentID), zap.Error(err))
			}
			cancel(context.Canceled)
		})
	}, nil
}

// renew extends the lease until stop closes. A missing token, or no
// successful renewal within one TTL, ends the held context.
func (l *Locker) renew(held context.Context, lose context.CancelCauseFunc, stop <-chan struct{}, equipmentID, key, token string) {
	tick := time.NewTicker(l.ttl / 3)
	defer tick.Stop()
	renewed := time.Now()

	for {
		select {
		case <-stop:
			return
		case <-held.Done():
			return
		case <-tick.C:
		}

		ok, err := l.extend(key, token)
		switch {
		case err == nil && ok:
			renewed = time.Now()
		case err == nil:
			l.log.Error("equipment lock lost", zap.String("equipment_id", equipmentID))
			lose(ErrLockNotHeld)
			return
		case time.Since(renewed) >= l.ttl:
			l.log.Error("equipment lock expired", zap.String("equipment_id", equipmentID), zap.Error(err))
			lose(fmt.Errorf("%w: %v", ErrLockNotHeld, err))
			return
		default:
			l.log.Warn("renew equipment lock", zap.String("equipment_id", equipmentID), zap.Error(err))
		}
	}
}

func (l *Locker) extend(key, token string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), l.ttl/3)
	defer cancel()
	n, err := renewScript.Run(ctx, l.rdb, []string{key}, token, l.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("renew %s: %w", key, err)
	}
	return n == 1, nil
}

func (l *Locker) release(key, token string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	n, err := unlockScript.Run(ctx, l.rdb, []string{key}, token).Int()
	if err != nil {
		return fmt.Errorf("release %s: %w", key, err)
	}
	if n == 0 {
		return ErrLockNotHeld
	}
	return nil
}

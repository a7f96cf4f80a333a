package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"HTTP_ADDR", "STORE_DRIVER", "REDIS_ADDR", "KAFKA_BROKERS", "LOCK_BACKEND", "LOCK_TTL", "STORE_TIMEOUT", "PROJECTOR_WORKERS", "POSTGRES_MAX_CONNS"} {
		t.Setenv(k, "")
	}

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.HTTPAddr != ":8081" || c.StoreDriver != StoreMemory || c.LockBackend != LockLocal {
		t.Errorf("unexpected defaults %+v", c)
	}
	if c.StoreTimeout != 5*time.Second || c.LockTTL != 30*time.Second || c.ProjectorWorkers != 4 || c.PostgresMax != 8 {
		t.Errorf("unexpected numeric defaults %+v", c)
	}
	if len(c.KafkaBrokers) != 0 || c.RedisAddr != "" {
		t.Errorf("optional backends should default off: %+v", c)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("LOCK_BACKEND", "redis")
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("STORE_TIMEOUT", "750ms")
	t.Setenv("PROJECTOR_WORKERS", "8")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(c.KafkaBrokers, []string{"k1:9092", "k2:9092"}) {
		t.Errorf("brokers = %v", c.KafkaBrokers)
	}
	if c.StoreTimeout != 750*time.Millisecond || c.ProjectorWorkers != 8 {
		t.Errorf("unexpected config %+v", c)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"STORE_DRIVER", "mongo"},
		{"LOCK_BACKEND", "zookeeper"},
		{"STORE_TIMEOUT", "soon"},
		{"PROJECTOR_WORKERS", "-1"},
		{"POSTGRES_MAX_CONNS", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestRedisLockNeedsAddress(t *testing.T) {
	t.Setenv("LOCK_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "")
	if _, err := Load(); err == nil {
		t.Error("expected error without REDIS_ADDR")
	}
}

func TestRedisLeaseMustOutliveStoreCalls(t *testing.T) {
	t.Setenv("LOCK_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("STORE_TIMEOUT", "5s")

	t.Setenv("LOCK_TTL", "10s")
	if _, err := Load(); err == nil {
		t.Error("expected error for LOCK_TTL below 5 x STORE_TIMEOUT")
	}

	t.Setenv("LOCK_TTL", "25s")
	if _, err := Load(); err != nil {
		t.Errorf("LOCK_TTL of 5 x STORE_TIMEOUT: %v", err)
	}

	// The in-process lock has no lease.
	t.Setenv("LOCK_BACKEND", "local")
	t.Setenv("LOCK_TTL", "1s")
	if _, err := Load(); err != nil {
		t.Errorf("local backend: %v", err)
	}
}

package cron

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type memoryRedis struct {
	values map[string]string
	ttls   map[string]time.Duration
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryRedis) Get(_ context.Context, key string) (string, error) {
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryRedis) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func TestRedisLockExclusivePerJob(t *testing.T) {
	store := newMemoryRedis()
	first, err := NewRedisLock(store, "ss:cron-worker:lock:dev:", time.Minute)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	second, _ := NewRedisLock(store, "ss:cron-worker:lock:dev", time.Minute)
	ctx := context.Background()

	if ok, err := first.Acquire(ctx, "payment-reconciliation", 0); err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	if store.ttls["ss:cron-worker:lock:dev:payment-reconciliation"] != time.Minute {
		t.Fatalf("expected default ttl, got %v", store.ttls)
	}
	if ok, _ := second.Acquire(ctx, "payment-reconciliation", 0); ok {
		t.Fatal("second instance must not acquire a held job")
	}
	if ok, _ := second.Acquire(ctx, "guest-cart-cleanup", time.Hour); !ok {
		t.Fatal("other jobs must stay claimable")
	}
	if store.ttls["ss:cron-worker:lock:dev:guest-cart-cleanup"] != time.Hour {
		t.Fatalf("expected period ttl, got %v", store.ttls)
	}

	if err := second.Release(ctx, "payment-reconciliation"); err != nil {
		t.Fatalf("non-owner release: %v", err)
	}
	if _, held := store.values["ss:cron-worker:lock:dev:payment-reconciliation"]; !held {
		t.Fatal("non-owner release must keep the lock")
	}
	if err := first.Release(ctx, "payment-reconciliation"); err != nil {
		t.Fatalf("owner release: %v", err)
	}
	if ok, _ := second.Acquire(ctx, "payment-reconciliation", 0); !ok {
		t.Fatal("expected lock to be free after release")
	}
}

func TestNewRedisLockRequiresPrefix(t *testing.T) {
	if _, err := NewRedisLock(newMemoryRedis(), " : ", time.Minute); err == nil {
		t.Fatal("expected error for empty prefix")
	}
}

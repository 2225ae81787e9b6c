package cron

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const defaultLockTTL = 4 * time.Minute

// Lock claims a job by name so only one worker instance runs it at a time.
// A zero ttl uses the lock's default.
type Lock interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name string) error
}

// redisStore defines the operations used by RedisLock.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisLock keeps one SETNX key per job under a shared prefix.
type RedisLock struct {
	client redisStore
	prefix string
	ttl    time.Duration

	mu     sync.Mutex
	owners map[string]string
}

// NewRedisLock constructs a Redis-backed lock. Job keys are prefix:name.
func NewRedisLock(client redisStore, prefix string, ttl time.Duration) (*RedisLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	prefix = strings.TrimRight(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		return nil, errors.New("lock key prefix is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{client: client, prefix: prefix, ttl: ttl, owners: map[string]string{}}, nil
}

func (l *RedisLock) key(name string) string {
	return l.prefix + ":" + name
}

// Acquire claims the job for ttl.
func (l *RedisLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = l.ttl
	}
	owner := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key(name), owner, ttl)
	if err != nil {
		return false, fmt.Errorf("setnx %s: %w", name, err)
	}
	if ok {
		l.mu.Lock()
		l.owners[name] = owner
		l.mu.Unlock()
	}
	return ok, nil
}

// Release frees the job only if this instance still owns it.
func (l *RedisLock) Release(ctx context.Context, name string) error {
	l.mu.Lock()
	owner := l.owners[name]
	delete(l.owners, name)
	l.mu.Unlock()
	if owner == "" {
		return nil
	}

	value, err := l.client.Get(ctx, l.key(name))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("read lock owner %s: %w", name, err)
	}
	if value != owner {
		return nil
	}
	if err := l.client.Del(ctx, l.key(name)); err != nil {
		return fmt.Errorf("delete lock %s: %w", name, err)
	}
	return nil
}

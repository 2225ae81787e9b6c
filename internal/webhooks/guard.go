// Package webhooks holds the delivery guard shared by provider webhooks.
package webhooks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/smokeshop-backend/pkg/redis"
)

// DefaultDedupeTTL covers provider retry windows.
const DefaultDedupeTTL = 72 * time.Hour

// IdempotencyGuard marks webhook deliveries as seen in Redis.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

// NewIdempotencyGuard builds a guard whose keys live under scope.
func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{store: store, ttl: ttl, scope: scope}, nil
}

// CheckAndMark reports whether the key was already seen, marking it otherwise.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, errors.New("dedupe key is required")
	}
	set, err := g.store.SetNX(ctx, g.store.IdempotencyKey(g.scope, key), "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Delete releases the key so a failed delivery can be retried.
func (g *IdempotencyGuard) Delete(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("dedupe key is required")
	}
	return g.store.Del(ctx, g.store.IdempotencyKey(g.scope, key))
}

package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"fogsly/pkg/rediskey"

	"github.com/redis/go-redis/v9"
)

// Denylist holds the ids of signed-out tokens until they would have expired.
type Denylist interface {
	Add(ctx context.Context, tokenID string, ttl time.Duration) error
	Contains(ctx context.Context, tokenID string) (bool, error)
}

type redisDenylist struct {
	rdb *redis.Client
}

func NewRedisDenylist(rdb *redis.Client) Denylist {
	return &redisDenylist{rdb: rdb}
}

func (d *redisDenylist) Add(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return d.rdb.Set(ctx, rediskey.BuildTokenDenylistKey(tokenID), 1, ttl).Err()
}

func (d *redisDenylist) Contains(ctx context.Context, tokenID string) (bool, error) {
	err := d.rdb.Get(ctx, rediskey.BuildTokenDenylistKey(tokenID)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MemoryDenylist is a process local Denylist for tests and single node tools.
type MemoryDenylist struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func (d *MemoryDenylist) Add(ctx context.Context, tokenID string, ttl time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.entries == nil {
		d.entries = map[string]time.Time{}
	}
	d.entries[tokenID] = time.Now().Add(ttl)
	return nil
}

func (d *MemoryDenylist) Contains(ctx context.Context, tokenID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	until, ok := d.entries[tokenID]
	return ok && time.Now().Before(until), nil
}

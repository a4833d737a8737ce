package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const dedupKeyTTL = 24 * time.Hour

var _ EnqueueGuard = (*RedisEnqueueGuard)(nil)

// RedisEnqueueGuard implements enqueue deduplication with SETNX keyed by
// delivery record id. The key expires after a day; by then the record has
// long since reached a terminal state and the worker-side terminal check is
// the remaining backstop.
type RedisEnqueueGuard struct {
	client *goredis.Client
}

func NewRedisEnqueueGuard(client *goredis.Client) (*RedisEnqueueGuard, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &RedisEnqueueGuard{client: client}, nil
}

func (g *RedisEnqueueGuard) Acquire(ctx context.Context, deliveryID string) (bool, error) {
	if g == nil || g.client == nil {
		return false, fmt.Errorf("enqueue guard is not initialized")
	}

	id := strings.TrimSpace(deliveryID)
	if id == "" {
		return false, fmt.Errorf("delivery id is required")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	acquired, err := g.client.SetNX(ctx, "enqueue:"+id, 1, dedupKeyTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire enqueue guard: %w", err)
	}
	return acquired, nil
}

package ratelimit

import "context"

// RateLimiter controls outbound send throughput per transport key.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	Wait(ctx context.Context, key string) error
}

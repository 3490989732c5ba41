package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type counterBackend interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	PExpire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	PTTL(ctx context.Context, key string) *redis.DurationCmd
}

// WindowCounter counts hits per key within a fixed window shared by all instances.
type WindowCounter struct {
	client counterBackend
}

// NewWindowCounter wraps a Redis client.
func NewWindowCounter(client redis.UniversalClient) *WindowCounter {
	return &WindowCounter{client: client}
}

// Increment bumps key and returns the new count with the time left in the window.
// The window starts on the first hit.
func (w *WindowCounter) Increment(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if key == "" {
		return 0, 0, errors.New("redis counter: key is required")
	}
	if window <= 0 {
		window = time.Minute
	}
	key = KeyPrefix + "rate:" + key

	count, err := w.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis counter: incr %s: %w", key, err)
	}
	if count == 1 {
		if err := w.client.PExpire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("redis counter: expire %s: %w", key, err)
		}
		return 1, window, nil
	}

	ttl, err := w.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("redis counter: ttl %s: %w", key, err)
	}
	if ttl < 0 {
		// The key lost its expiry, e.g. the first caller failed between INCR and PEXPIRE.
		if err := w.client.PExpire(ctx, key, window).Err(); err != nil {
			return 0, 0, fmt.Errorf("redis counter: expire %s: %w", key, err)
		}
		ttl = window
	}
	return int(count), ttl, nil
}

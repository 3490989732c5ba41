package cache

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if it still carries our token.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// lockBackend is the subset of redis.UniversalClient used by Locker.
type lockBackend interface {
	SetArgs(ctx context.Context, key string, value interface{}, a redis.SetArgs) *redis.StatusCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// Locker provides best-effort mutual exclusion across instances.
type Locker struct {
	client lockBackend
}

// NewLocker wraps a Redis client.
func NewLocker(client redis.UniversalClient) *Locker {
	return &Locker{client: client}
}

// TryLock sets key with NX and a TTL. When acquired it returns a release func
// that removes the key only while this holder still owns it.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, acquired bool, err error) {
	if key == "" {
		return nil, false, errors.New("redis lock: key is required")
	}
	if ttl <= 0 {
		ttl = time.Minute
	}

	token, err := newLockToken()
	if err != nil {
		return nil, false, err
	}
	key = KeyPrefix + "lock:" + key

	status, err := l.client.SetArgs(ctx, key, token, redis.SetArgs{Mode: "NX", TTL: ttl}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("redis lock: acquire %s: %w", key, err)
	}
	if status != "OK" {
		return nil, false, nil
	}

	release = func(ctx context.Context) error {
		if err := l.client.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("redis lock: release %s: %w", key, err)
		}
		return nil
	}
	return release, true, nil
}

func newLockToken() (string, error) {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", fmt.Errorf("redis lock: token: %w", err)
	}
	return hex.EncodeToString(buf[:]), nil
}

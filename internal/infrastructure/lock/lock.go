// Package lock keeps scheduled jobs from overlapping.
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"NewsAgent/internal/config"
	"NewsAgent/internal/ports"
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLock is a SET NX PX lock shared by every replica using the same Redis.
type RedisLock struct {
	client *redis.Client
}

var _ ports.RunLock = (*RedisLock)(nil)

// NewRedisLock connects using the redis config section.
func NewRedisLock(cfg config.RedisConfig) *RedisLock {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisLock{client: client}
}

// NewRedisLockWithClient wraps an existing client.
func NewRedisLockWithClient(client *redis.Client) *RedisLock {
	return &RedisLock{client: client}
}

// Ping verifies connectivity.
func (l *RedisLock) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (l *RedisLock) Close() error {
	return l.client.Close()
}

// TryAcquire returns ok=false without error when another holder owns key.
func (l *RedisLock) TryAcquire(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// The job context may already be cancelled; release on a fresh one.
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.client, []string{key}, token).Err()
	}
	return release, true, nil
}

// LocalLock is the in-process fallback when Redis is not configured.
type LocalLock struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

var _ ports.RunLock = (*LocalLock)(nil)

// NewLocalLock builds an empty lock table.
func NewLocalLock() *LocalLock {
	return &LocalLock{held: map[string]time.Time{}, now: time.Now}
}

// TryAcquire mirrors RedisLock semantics, including expiry after ttl.
func (l *LocalLock) TryAcquire(_ context.Context, key string, ttl time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if expires, ok := l.held[key]; ok && now.Before(expires) {
		return nil, false, nil
	}
	expires := now.Add(ttl)
	l.held[key] = expires

	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if l.held[key].Equal(expires) {
			delete(l.held, key)
		}
	}
	return release, true, nil
}

// internal/cache/cache.go
package cache

import (
	"context"
	"fmt"
	"time"

	"custody-service/pkg/apperr"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache holds the redis-backed coordination primitives. Redis is optional;
// the intent state machine is the source of truth either way.
type Cache struct {
	client redis.Cmdable
	logger *zap.Logger
}

func New(client redis.Cmdable, logger *zap.Logger) *Cache {
	return &Cache{client: client, logger: logger}
}

// Releaser gives up a held lock.
type Releaser interface {
	Release(ctx context.Context) error
}

// Lock represents a distributed lock
type Lock struct {
	client redis.Cmdable
	key    string
	token  string
}

const releaseScript = `
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`

// LockIntent takes the per-intent confirm lock. A held lock means another
// confirm for the same intent is in flight.
func (c *Cache) LockIntent(ctx context.Context, intentID string, ttl time.Duration) (Releaser, error) {
	key := fmt.Sprintf("lock:intent:%s", intentID)
	token := uuid.NewString()

	// SET key value NX PX ttl (atomic)
	ok, err := c.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, apperr.New(apperr.CodeAlreadyProcessing, "cache.LockIntent", "intent confirmation already in progress")
	}

	c.logger.Debug("intent lock acquired",
		zap.String("intent_id", intentID),
		zap.Duration("ttl", ttl))

	return &Lock{client: c.client, key: key, token: token}, nil
}

// Release deletes the lock only if this holder still owns it.
func (l *Lock) Release(ctx context.Context) error {
	result, err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.token).Int()
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	if result == 0 {
		return fmt.Errorf("lock not owned by this token (expired or stolen)")
	}
	return nil
}

// incrScript increments the counter and sets the window TTL whenever the key
// has none, so a lost EXPIRE can never leave a counter that lives forever.
const incrScript = `
	local n = redis.call("incr", KEYS[1])
	if redis.call("pttl", KEYS[1]) < 0 then
		redis.call("pexpire", KEYS[1], ARGV[1])
	end
	return n
`

// IncrWithExpire counts hits in a fixed window starting at the first hit.
func (c *Cache) IncrWithExpire(ctx context.Context, namespace, key string, window time.Duration) (int64, error) {
	countKey := namespace + ":" + key

	cnt, err := c.client.Eval(ctx, incrScript, []string{countKey}, window.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", countKey, err)
	}
	return cnt, nil
}

package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces every key MinutoDash writes to Redis.
const DefaultKeyPrefix = "minutodash:"

// L2 is a Redis-backed response cache shared between backend replicas. It
// fails soft: an unreachable Redis behaves like an empty cache and writes are
// dropped, so the backend keeps serving from L1 and the loaders.
type L2 struct {
	rdb    *redis.Client
	prefix string
}

// NewL2 creates a Redis-backed L2 cache.
func NewL2(addr, password string, db int) *L2 {
	return &L2{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		prefix: DefaultKeyPrefix,
	}
}

// Get returns (nil, false, nil) on a miss or when Redis is unreachable.
func (l *L2) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := l.rdb.Get(ctx, l.prefix+key).Bytes()
	if err != nil {
		return nil, false, nil
	}
	return val, true, nil
}

// Set stores val under key. Errors are discarded.
func (l *L2) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	_ = l.rdb.Set(ctx, l.prefix+key, val, ttl).Err()
	return nil
}

// GetOrSet reads through Redis to loader. It does not collapse concurrent
// loads; wrap it in a Tiered cache for that.
func (l *L2) GetOrSet(ctx context.Context, key string, ttl time.Duration, loader func(context.Context) ([]byte, error)) ([]byte, error) {
	if v, ok, _ := l.Get(ctx, key); ok {
		return v, nil
	}
	v, err := loader(ctx)
	if err != nil {
		return nil, err
	}
	_ = l.Set(ctx, key, v, ttl)
	return v, nil
}

// Ping checks the Redis connection.
func (l *L2) Ping(ctx context.Context) error {
	return l.rdb.Ping(ctx).Err()
}

// Close closes the underlying Redis client.
func (l *L2) Close() error {
	return l.rdb.Close()
}

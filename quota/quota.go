// Package quota caps image attachments per user per calendar day. The
// reservation is a single Redis INCR so concurrent sessions of the same user
// cannot slip past the limit.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultDailyLimit = 5

// Counter is the slice of Redis the limiter needs.
type Counter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Decr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

type Limiter struct {
	counter Counter
	limit   int64
}

func NewLimiter(counter Counter, limit int64) *Limiter {
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	return &Limiter{counter: counter, limit: limit}
}

func key(userID uint, day time.Time) string {
	return fmt.Sprintf("quota:upload:%d:%s", userID, day.Format("2006-01-02"))
}

// CheckAndReserve atomically takes one upload slot for the user on the given
// day. When the limit is already spent the slot is handed back and the call
// reports allowed=false with remaining=0.
func (l *Limiter) CheckAndReserve(ctx context.Context, userID uint, day time.Time) (bool, int64, error) {
	k := key(userID, day)
	n, err := l.counter.Incr(ctx, k)
	if err != nil {
		return false, 0, err
	}
	if n == 1 {
		// Counter rows die on their own; 48h covers timezone skew.
		if err := l.counter.Expire(ctx, k, 48*time.Hour); err != nil {
			return false, 0, err
		}
	}
	if n > l.limit {
		if _, err := l.counter.Decr(ctx, k); err != nil {
			return false, 0, err
		}
		return false, 0, nil
	}
	return true, l.limit - n, nil
}

// Release hands a reserved slot back, for when the upload itself fails after
// the reservation. A failed release undercounts, which is accepted drift.
func (l *Limiter) Release(ctx context.Context, userID uint, day time.Time) {
	_, _ = l.counter.Decr(ctx, key(userID, day))
}

// RedisCounter adapts a go-redis client to the Counter interface.
type RedisCounter struct {
	Client *redis.Client
}

func (c RedisCounter) Incr(ctx context.Context, key string) (int64, error) {
	return c.Client.Incr(ctx, key).Result()
}

func (c RedisCounter) Decr(ctx context.Context, key string) (int64, error) {
	return c.Client.Decr(ctx, key).Result()
}

func (c RedisCounter) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.Client.Expire(ctx, key, ttl).Err()
}

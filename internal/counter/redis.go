package counter

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisCounterKey = "stats:images_produced"

// RedisCounter keeps the total in a single Redis key. INCRBY is atomic
// on the server, so concurrent job completions cannot clobber each
// other's increment.
type RedisCounter struct {
	client *redis.Client
}

func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

func (c *RedisCounter) Load(ctx context.Context) (int64, error) {
	total, err := c.client.Get(ctx, redisCounterKey).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("load counter: %w", err)
	}
	return total, nil
}

func (c *RedisCounter) Increment(ctx context.Context, by int64) (int64, error) {
	total, err := c.client.IncrBy(ctx, redisCounterKey, by).Result()
	if err != nil {
		return 0, fmt.Errorf("increment counter: %w", err)
	}
	return total, nil
}

package attempts

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "login_attempts:"

// Redis is a Counter backed by one integer key per identity whose TTL is
// the lockout window.
type Redis struct {
	cfg    Config
	client redis.UniversalClient
}

func NewRedis(cfg Config, client redis.UniversalClient) *Redis {
	return &Redis{cfg: cfg, client: client}
}

func redisKey(key string) string {
	return redisKeyPrefix + NormalizeKey(key)
}

func (r *Redis) RecordFailure(ctx context.Context, key string) (int, error) {
	k := redisKey(key)

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		ttl = pipe.PTTL(ctx, k)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis error: %w", err)
	}

	// A negative TTL means the key was just created (or lost its expiry).
	if ttl.Val() < 0 {
		if err := r.client.PExpire(ctx, k, r.cfg.LockoutTime).Err(); err != nil {
			return 0, fmt.Errorf("redis error: %w", err)
		}
	}

	return int(incr.Val()), nil
}

// Reserve relies on INCR being atomic: of any number of concurrent callers
// exactly MaxFailedAttempts see a count within the threshold.
func (r *Redis) Reserve(ctx context.Context, key string) (bool, int, error) {
	n, err := r.RecordFailure(ctx, key)
	if err != nil {
		return false, 0, err
	}
	return n <= r.cfg.MaxFailedAttempts, n, nil
}

func (r *Redis) IsLocked(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Get(ctx, redisKey(key)).Int()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis error: %w", err)
	}
	return n >= r.cfg.MaxFailedAttempts, nil
}

func (r *Redis) Clear(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}

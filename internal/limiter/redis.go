package limiter

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type Redis struct {
	client *redis.Client
	max    int
	window time.Duration
}

func NewRedis(addr string, password string, db int, max int, window time.Duration) *Redis {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &Redis{client: client, max: max, window: window}
}

func (l *Redis) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

func (l *Redis) Close() error {
	return l.client.Close()
}

// Allow counts attempts in a fixed window keyed by client. Redis failures
// fail open so a cache outage never locks everyone out.
func (l *Redis) Allow(ctx context.Context, key string) bool {
	redisKey := "login-attempts:" + key
	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return true
	}
	if count == 1 {
		_ = l.client.Expire(ctx, redisKey, l.window).Err()
	}
	return count <= int64(l.max)
}

var _ Limiter = (*Redis)(nil)

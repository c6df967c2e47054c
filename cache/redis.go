package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const generationKey = "leaderboard:generation"

// Redis shares cached rankings between server processes.
type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, prefix: "leaderboard:"}
}

func (r *Redis) Generation(ctx context.Context) (int64, error) {
	v, err := r.client.Get(ctx, generationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

func (r *Redis) key(gen int64, key string) string {
	return r.prefix + strconv.FormatInt(gen, 10) + ":" + key
}

func (r *Redis) Get(ctx context.Context, gen int64, key string) ([]byte, bool, error) {
	b, err := r.client.Get(ctx, r.key(gen, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// Set writes under gen. It is skipped once gen is no longer current.
func (r *Redis) Set(ctx context.Context, gen int64, key string, value []byte, ttl time.Duration) error {
	current, err := r.Generation(ctx)
	if err != nil {
		return err
	}
	if current != gen {
		return nil
	}
	return r.client.Set(ctx, r.key(gen, key), value, ttl).Err()
}

// Invalidate moves to a new generation. Old keys expire on their own TTL.
func (r *Redis) Invalidate(ctx context.Context) error {
	return r.client.Incr(ctx, generationKey).Err()
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

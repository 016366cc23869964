package cache

import (
	"context"
	"encoding/json"

	redis "github.com/redis/go-redis/v9"
)

// Redis backs the settings cache with a Redis instance so the store
// profile and theme survive restarts.
type Redis struct {
	client *redis.Client
}

func NewRedis(addr string, password string, db int) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &Redis{client: client}
}

func (c *Redis) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *Redis) Close() error {
	return c.client.Close()
}

func (c *Redis) Get(ctx context.Context, key string, out any) (bool, error) {
	val, err := c.client.Get(ctx, prefix+key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		// Corrupt entry, drop it so the next read starts clean.
		_ = c.client.Del(ctx, prefix+key).Err()
		return false, nil
	}
	return true, nil
}

func (c *Redis) Set(ctx context.Context, key string, value any) error {
	if value == nil {
		return c.Delete(ctx, key)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, prefix+key, payload, 0).Err()
}

func (c *Redis) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, prefix+key).Err()
}

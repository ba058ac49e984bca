package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// JSON is a cache-aside helper storing values as JSON under a key prefix
type JSON struct {
	R      *redis.Client
	Prefix string
}

func NewJSON(r *redis.Client, prefix string) *JSON { return &JSON{R: r, Prefix: prefix} }

// Get decodes the cached value into dst and reports whether it was found
func (c *JSON) Get(ctx context.Context, key string, dst any) (bool, error) {
	b, err := c.R.Get(ctx, c.Prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, dst)
}

func (c *JSON) Set(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.R.Set(ctx, c.Prefix+key, b, ttl).Err()
}

// internal/blob/redis.go
package blob

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis is the production blob store, keeping each blob under
// "{prefix}{key}" as a plain Redis string.
type Redis struct {
	Client *redis.Client
	Prefix string
}

// NewRedis wraps an already connected client.
func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{Client: client, Prefix: prefix}
}

func (r *Redis) Put(ctx context.Context, key string, data []byte) error {
	if err := r.Client.Set(ctx, r.Prefix+key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to store blob %s: %w", key, err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.Client.Get(ctx, r.Prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch blob %s: %w", key, err)
	}
	return data, nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	removed, err := r.Client.Del(ctx, r.Prefix+key).Result()
	if err != nil {
		return fmt.Errorf("failed to delete blob %s: %w", key, err)
	}
	if removed == 0 {
		return ErrNotFound
	}
	return nil
}

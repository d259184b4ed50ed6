package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vtype/vtype/internal/chat/store"
)

// KV backs store.KV with a redis instance.
type KV struct {
	client *redis.Client
}

func NewKV(addr, password string, db int) (*KV, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &KV{client: client}, nil
}

func (k *KV) Get(ctx context.Context, key string) (string, error) {
	val, err := k.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", store.ErrNotFound
	}
	return val, err
}

func (k *KV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return k.client.Set(ctx, key, value, ttl).Err()
}

func (k *KV) Del(ctx context.Context, key string) error {
	return k.client.Del(ctx, key).Err()
}

func (k *KV) Exists(ctx context.Context, key string) (bool, error) {
	n, err := k.client.Exists(ctx, key).Result()
	return n > 0, err
}

// Keys scans matching keys incrementally rather than blocking the server
// with a KEYS command.
func (k *KV) Keys(ctx context.Context, pattern string) ([]string, error) {
	var (
		keys   []string
		cursor uint64
	)
	for {
		batch, next, err := k.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, err
		}
		keys = append(keys, batch...)
		cursor = next
		if cursor == 0 {
			return keys, nil
		}
	}
}

func (k *KV) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := k.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	// go-redis passes the sentinel replies through as raw durations.
	switch d {
	case -2: // key does not exist
		return 0, store.ErrNotFound
	case -1: // key exists but has no expiry
		return store.NoTTL, nil
	}
	return d, nil
}

func (k *KV) Ping(ctx context.Context) error {
	return k.client.Ping(ctx).Err()
}

func (k *KV) Close() error {
	return k.client.Close()
}

package memory

import (
	"context"
	"path"
	"sync"
	"time"

	"github.com/vtype/vtype/internal/chat/store"
)

type entry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

func (e entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// KV is an in-process store.KV. It backs token bookkeeping when no redis
// address is configured; records do not survive a restart.
type KV struct {
	mu   sync.Mutex
	data map[string]entry
	now  func() time.Time
}

func NewKV() *KV {
	return &KV{
		data: make(map[string]entry),
		now:  time.Now,
	}
}

func (k *KV) Get(ctx context.Context, key string) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.data[key]
	if !ok {
		return "", store.ErrNotFound
	}
	if e.expired(k.now()) {
		delete(k.data, key)
		return "", store.ErrNotFound
	}
	return e.value, nil
}

func (k *KV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = k.now().Add(ttl)
	}
	k.data[key] = e
	return nil
}

func (k *KV) Del(ctx context.Context, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	delete(k.data, key)
	return nil
}

func (k *KV) Exists(ctx context.Context, key string) (bool, error) {
	_, err := k.Get(ctx, key)
	if err == store.ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (k *KV) Keys(ctx context.Context, pattern string) ([]string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	var keys []string
	for key, e := range k.data {
		if e.expired(now) {
			delete(k.data, key)
			continue
		}
		if ok, _ := path.Match(pattern, key); ok {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (k *KV) TTL(ctx context.Context, key string) (time.Duration, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	e, ok := k.data[key]
	if !ok {
		return 0, store.ErrNotFound
	}
	now := k.now()
	if e.expired(now) {
		delete(k.data, key)
		return 0, store.ErrNotFound
	}
	if e.expiresAt.IsZero() {
		return store.NoTTL, nil
	}
	return e.expiresAt.Sub(now), nil
}

func (k *KV) Ping(ctx context.Context) error { return nil }

func (k *KV) Close() error { return nil }

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vtype/vtype/internal/chat/store"
)

func newClockedKV(start time.Time) (*KV, *time.Time) {
	now := start
	kv := NewKV()
	kv.now = func() time.Time { return now }
	return kv, &now
}

func TestKVSetGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := NewKV()

	require.NoError(t, kv.Set(ctx, "k", "v", 0))

	val, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", val)

	_, err = kv.Get(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestKVExpiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv, now := newClockedKV(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	require.NoError(t, kv.Set(ctx, "k", "v", time.Minute))

	val, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", val)

	*now = now.Add(2 * time.Minute)

	_, err = kv.Get(ctx, "k")
	require.ErrorIs(t, err, store.ErrNotFound)

	exists, err := kv.Exists(ctx, "k")
	require.NoError(t, err)
	require.False(t, exists)
}

func TestKVTTL(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv, now := newClockedKV(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	require.NoError(t, kv.Set(ctx, "with-ttl", "v", time.Hour))
	require.NoError(t, kv.Set(ctx, "no-ttl", "v", 0))

	d, err := kv.TTL(ctx, "with-ttl")
	require.NoError(t, err)
	require.Equal(t, time.Hour, d)

	d, err = kv.TTL(ctx, "no-ttl")
	require.NoError(t, err)
	require.Equal(t, store.NoTTL, d)

	_, err = kv.TTL(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	*now = now.Add(30 * time.Minute)
	d, err = kv.TTL(ctx, "with-ttl")
	require.NoError(t, err)
	require.Equal(t, 30*time.Minute, d)
}

func TestKVKeysPattern(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv, now := newClockedKV(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	require.NoError(t, kv.Set(ctx, "refresh_token:alice", "1", time.Hour))
	require.NoError(t, kv.Set(ctx, "refresh_token:bob", "2", time.Minute))
	require.NoError(t, kv.Set(ctx, "blacklist:tok", "1", time.Hour))

	keys, err := kv.Keys(ctx, "refresh_token:*")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"refresh_token:alice", "refresh_token:bob"}, keys)

	// Expired keys drop out of pattern scans.
	*now = now.Add(5 * time.Minute)
	keys, err = kv.Keys(ctx, "refresh_token:*")
	require.NoError(t, err)
	require.Equal(t, []string{"refresh_token:alice"}, keys)
}

func TestKVDel(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	kv := NewKV()

	require.NoError(t, kv.Set(ctx, "k", "v", 0))
	require.NoError(t, kv.Del(ctx, "k"))
	require.NoError(t, kv.Del(ctx, "k")) // deleting a missing key is fine

	_, err := kv.Get(ctx, "k")
	require.ErrorIs(t, err, store.ErrNotFound)
}

package chat_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vtype/vtype/internal/chat/store"
)

func TestRedisKVRoundTrip(t *testing.T) {
	kv := setupRedisKV(t)
	ctx := t.Context()

	require.NoError(t, kv.Set(ctx, "greeting", "hello", 0))

	value, err := kv.Get(ctx, "greeting")
	require.NoError(t, err)
	require.Equal(t, "hello", value)

	exists, err := kv.Exists(ctx, "greeting")
	require.NoError(t, err)
	require.True(t, exists)

	require.NoError(t, kv.Del(ctx, "greeting"))

	_, err = kv.Get(ctx, "greeting")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRedisKVTTLSentinels(t *testing.T) {
	kv := setupRedisKV(t)
	ctx := t.Context()

	require.NoError(t, kv.Set(ctx, "persistent", "v", 0))
	ttl, err := kv.TTL(ctx, "persistent")
	require.NoError(t, err)
	require.Equal(t, store.NoTTL, ttl)

	require.NoError(t, kv.Set(ctx, "expiring", "v", time.Hour))
	ttl, err = kv.TTL(ctx, "expiring")
	require.NoError(t, err)
	require.Greater(t, ttl, 59*time.Minute)

	_, err = kv.TTL(ctx, "missing")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestRedisKVExpiry(t *testing.T) {
	kv := setupRedisKV(t)
	ctx := t.Context()

	require.NoError(t, kv.Set(ctx, "ephemeral", "v", 100*time.Millisecond))

	require.Eventually(t, func() bool {
		exists, err := kv.Exists(ctx, "ephemeral")
		return err == nil && !exists
	}, 5*time.Second, 50*time.Millisecond)
}

func TestRedisKVKeysPattern(t *testing.T) {
	kv := setupRedisKV(t)
	ctx := t.Context()

	require.NoError(t, kv.Set(ctx, "refresh_token:alice", "a", 0))
	require.NoError(t, kv.Set(ctx, "refresh_token:bob", "b", 0))
	require.NoError(t, kv.Set(ctx, "session:alice", "s", 0))

	keys, err := kv.Keys(ctx, "refresh_token:*")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"refresh_token:alice", "refresh_token:bob"}, keys)

	keys, err = kv.Keys(ctx, "blacklist:*")
	require.NoError(t, err)
	require.Empty(t, keys)
}

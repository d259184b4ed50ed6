package chat_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/vtype/vtype/internal/chat/store/drivers/redis"
)

/*
 * Common helpers for chat service end-to-end tests. These tests exercise
 * the redis-backed token store against a real Redis instance and are
 * skipped in -short mode.
 */

const redisImage = "redis:7-alpine"

// setupRedisKV starts a Redis container and returns a connected KV. The
// container and the connection are torn down via t.Cleanup.
func setupRedisKV(t *testing.T) *redis.KV {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping container-backed test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        redisImage,
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379/tcp")
	require.NoError(t, err)

	kv, err := redis.NewKV(fmt.Sprintf("%s:%s", host, port.Port()), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = kv.Close()
	})

	return kv
}

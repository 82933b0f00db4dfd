//go:build integration

package worker

import (
	"context"
	"os"
	"testing"
	"time"

	redisclient "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	redismodule "github.com/testcontainers/testcontainers-go/modules/redis"

	"mercado/internal/constants"
)

func setupRedis(t *testing.T) *redisclient.Client {
	t.Helper()
	ctx := context.Background()

	if os.Getenv("TESTCONTAINERS_RYUK_DISABLED") == "" {
		os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")
	}

	container, err := redismodule.Run(ctx, "redis:8.4.0-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() {
		container.Terminate(ctx)
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	opt, err := redisclient.ParseURL(uri)
	require.NoError(t, err)

	client := redisclient.NewClient(opt)
	t.Cleanup(func() {
		client.Close()
	})

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	require.NoError(t, client.Ping(pingCtx).Err())
	return client
}

func TestRedisAttemptTracker(t *testing.T) {
	client := setupRedis(t)
	tracker := NewRedisAttemptTracker(client, time.Minute)
	ctx := context.Background()

	for want := 1; want <= 3; want++ {
		n, err := tracker.Incr(ctx, "msg-1")
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	ttl, err := client.TTL(ctx, constants.CacheKeyPrefixAttempts+"msg-1").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, time.Minute)

	// survives a new tracker, as after a worker restart
	n, err := NewRedisAttemptTracker(client, time.Minute).Incr(ctx, "msg-1")
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	require.NoError(t, tracker.Reset(ctx, "msg-1"))
	n, err = tracker.Incr(ctx, "msg-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

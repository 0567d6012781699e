package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns a connected cache.
func setupRedis(t *testing.T, retention time.Duration) (*RedisCache, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30*time.Second),
			wait.ForListeningPort("6379/tcp"),
		),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client, err := NewRedisClient(ctx, fmt.Sprintf("%s:%s", host, port.Port()), "")
	require.NoError(t, err)

	cleanup := func() {
		client.Close()
		_ = container.Terminate(ctx)
	}

	return NewRedisCache(client, retention), cleanup
}

func TestRedisCache_SetGet(t *testing.T) {
	c, cleanup := setupRedis(t, time.Hour)
	defer cleanup()

	ctx := context.Background()
	stored := time.Unix(1700000000, 0).UTC()

	e, err := c.Get(ctx, "https://api.example.com/coins")
	require.NoError(t, err)
	assert.Nil(t, e)

	require.NoError(t, c.Set(ctx, "https://api.example.com/coins", &Entry{
		StatusCode: 200,
		Body:       []byte(`[{"coin":"eth"}]`),
		StoredAt:   stored,
	}))

	e, err = c.Get(ctx, "https://api.example.com/coins")
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, 200, e.StatusCode)
	assert.Equal(t, `[{"coin":"eth"}]`, string(e.Body))
	assert.True(t, stored.Equal(e.StoredAt))
}

func TestRedisCache_Expiry(t *testing.T) {
	c, cleanup := setupRedis(t, time.Second)
	defer cleanup()

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", &Entry{StatusCode: 200, Body: []byte("x"), StoredAt: time.Now()}))

	time.Sleep(1500 * time.Millisecond)

	e, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Nil(t, e)
}

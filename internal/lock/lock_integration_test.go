//go:build integration

package lock

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestRedisContainer runs the listing lock against a real Redis.
func TestRedisContainer(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping Redis integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start Redis container")
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: host + ":" + port.Port()})
	t.Cleanup(func() { client.Close() })

	r := NewRedis(client, 2*time.Second, nil)

	locked, err := r.LockTicket(ctx, "ticket-1", "buyer-1")
	require.NoError(t, err)
	assert.True(t, locked)

	locked, err = r.LockTicket(ctx, "ticket-1", "buyer-2")
	require.NoError(t, err)
	assert.False(t, locked, "Expected ticket to be already locked")

	require.NoError(t, r.UnlockTicket(ctx, "ticket-1", "buyer-2"))
	held, err := r.IsLocked(ctx, "ticket-1")
	require.NoError(t, err)
	assert.True(t, held, "only the owner may unlock")

	require.NoError(t, r.UnlockTicket(ctx, "ticket-1", "buyer-1"))
	locked, err = r.LockTicket(ctx, "ticket-1", "buyer-2")
	require.NoError(t, err)
	assert.True(t, locked, "Expected ticket to be lockable after unlock")

	assert.Eventually(t, func() bool {
		held, err := r.IsLocked(ctx, "ticket-1")
		return err == nil && !held
	}, 5*time.Second, 100*time.Millisecond, "lock should expire after its TTL")
}

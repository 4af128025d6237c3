package lock

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	if err := client.Ping(context.Background()).Err(); err != nil {
		mr.Close()
		t.Fatalf("Failed to connect to miniredis: %v", err)
	}

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestLockTicket(t *testing.T) {
	client, _ := setupTestRedis(t)
	r := NewRedis(client, time.Minute, nil)
	ctx := context.Background()

	locked, err := r.LockTicket(ctx, "ticket-1", "buyer-1")
	require.NoError(t, err)
	assert.True(t, locked)

	locked, err = r.LockTicket(ctx, "ticket-1", "buyer-2")
	require.NoError(t, err)
	assert.False(t, locked, "second buyer must not take a held ticket")

	held, err := r.IsLocked(ctx, "ticket-1")
	require.NoError(t, err)
	assert.True(t, held)

	require.NoError(t, r.UnlockTicket(ctx, "ticket-1", "buyer-1"))

	locked, err = r.LockTicket(ctx, "ticket-1", "buyer-2")
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestUnlockTicketOnlyReleasesOwnLock(t *testing.T) {
	client, _ := setupTestRedis(t)
	r := NewRedis(client, time.Minute, nil)
	ctx := context.Background()

	_, err := r.LockTicket(ctx, "ticket-1", "buyer-1")
	require.NoError(t, err)

	require.NoError(t, r.UnlockTicket(ctx, "ticket-1", "buyer-2"))

	val, err := client.Get(ctx, "ticket_lock:ticket-1").Result()
	require.NoError(t, err)
	assert.Equal(t, "buyer-1", val)

	require.NoError(t, r.UnlockTicket(ctx, "missing", "buyer-1"))
}

func TestLockExpires(t *testing.T) {
	client, mr := setupTestRedis(t)
	r := NewRedis(client, 5*time.Second, nil)
	ctx := context.Background()

	_, err := r.LockTicket(ctx, "ticket-1", "buyer-1")
	require.NoError(t, err)

	mr.FastForward(6 * time.Second)

	held, err := r.IsLocked(ctx, "ticket-1")
	require.NoError(t, err)
	assert.False(t, held)
}

func TestConcurrentLockSingleWinner(t *testing.T) {
	client, _ := setupTestRedis(t)
	r := NewRedis(client, time.Minute, nil)
	ctx := context.Background()

	const attempts = 20
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []string
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			owner := fmt.Sprintf("buyer-%d", n)
			ok, err := r.LockTicket(ctx, "ticket-hot", owner)
			if err == nil && ok {
				mu.Lock()
				winners = append(winners, owner)
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, winners, 1)
}

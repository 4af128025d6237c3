// Package lock holds short-lived redis locks on listings while a purchase is
// being written.
package lock

import (
	"context"
	"fmt"
	"time"

	"ms-resale/internal/logger"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "ticket_lock:"

type Redis struct {
	Client *redis.Client
	TTL    time.Duration
	Logger *logger.Logger
}

func NewRedis(client *redis.Client, ttl time.Duration, log *logger.Logger) *Redis {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &Redis{Client: client, TTL: ttl, Logger: log}
}

func key(ticketID string) string {
	return keyPrefix + ticketID
}

// IsLocked reports whether a purchase currently holds the listing.
func (r *Redis) IsLocked(ctx context.Context, ticketID string) (bool, error) {
	_, err := r.Client.Get(ctx, key(ticketID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// LockTicket takes the listing for owner until TTL elapses.
func (r *Redis) LockTicket(ctx context.Context, ticketID, owner string) (bool, error) {
	ok, err := r.Client.SetNX(ctx, key(ticketID), owner, r.TTL).Result()
	if err != nil {
		r.Logger.Error("REDIS", fmt.Sprintf("Failed to lock ticket %s: %v", ticketID, err))
	}
	return ok, err
}

// UnlockTicket releases the lock only if owner still holds it.
func (r *Redis) UnlockTicket(ctx context.Context, ticketID, owner string) error {
	val, err := r.Client.Get(ctx, key(ticketID)).Result()
	if err == redis.Nil {
		return nil // already unlocked
	}
	if err != nil {
		return err
	}
	if val == owner {
		_, err := r.Client.Del(ctx, key(ticketID)).Result()
		return err
	}
	return nil
}

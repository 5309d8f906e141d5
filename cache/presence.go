package cache

import (
	"context"
	"fmt"
	"time"
)

// OnlineTTL bounds how long a heartbeat keeps a user online.
const OnlineTTL = 90 * time.Second

const onlineUsersKey = "online:users"

type PresenceCache struct {
	redis *RedisCache
}

func NewPresenceCache(redis *RedisCache) *PresenceCache {
	return &PresenceCache{redis: redis}
}

func onlineKey(userID string) string {
	return "online:" + userID
}

// SetOnline records a heartbeat. Calling it again refreshes the TTL.
func (pc *PresenceCache) SetOnline(ctx context.Context, userID string) error {
	err := pc.redis.SetAdd(ctx, onlineUsersKey, userID)
	if err != nil {
		return fmt.Errorf("failed to add online user: %w", err)
	}

	err = pc.redis.Set(ctx, onlineKey(userID), []byte("1"), OnlineTTL)
	if err != nil {
		return fmt.Errorf("failed to set online key: %w", err)
	}

	return nil
}

func (pc *PresenceCache) SetOffline(ctx context.Context, userID string) error {
	err := pc.redis.SetRemove(ctx, onlineUsersKey, userID)
	if err != nil {
		return fmt.Errorf("failed to remove online user: %w", err)
	}

	err = pc.redis.Delete(ctx, onlineKey(userID))
	if err != nil {
		return fmt.Errorf("failed to delete online key: %w", err)
	}

	return nil
}

func (pc *PresenceCache) IsOnline(ctx context.Context, userID string) (bool, error) {
	online, err := pc.redis.Exists(ctx, onlineKey(userID))
	if err != nil {
		return false, fmt.Errorf("failed to check online key: %w", err)
	}

	return online, nil
}

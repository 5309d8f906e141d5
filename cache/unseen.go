package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

const UnseenCountTTL = time.Minute

type unseenEntry struct {
	Count    int       `msgpack:"c"`
	CachedAt time.Time `msgpack:"t"`
}

// UnseenCache memoizes per-user unseen counts keyed by reference. A nil
// *UnseenCache is valid and caches nothing.
type UnseenCache struct {
	redis *RedisCache
	ttl   time.Duration
}

func NewUnseenCache(redis *RedisCache) *UnseenCache {
	return &UnseenCache{redis: redis, ttl: UnseenCountTTL}
}

func unseenKey(userID, referenceID string) string {
	return fmt.Sprintf("unseen:%s:%s", userID, referenceID)
}

func (uc *UnseenCache) Get(ctx context.Context, userID, referenceID string) (int, bool) {
	if uc == nil || uc.redis == nil {
		return 0, false
	}

	data, err := uc.redis.Get(ctx, unseenKey(userID, referenceID))
	if err != nil {
		slog.WarnContext(ctx, "failed to read unseen count from cache", "error", err)

		return 0, false
	}

	if data == nil {
		return 0, false
	}

	var entry unseenEntry

	err = msgpack.Unmarshal(data, &entry)
	if err != nil {
		return 0, false
	}

	return entry.Count, true
}

func (uc *UnseenCache) Set(ctx context.Context, userID, referenceID string, count int) {
	if uc == nil || uc.redis == nil {
		return
	}

	data, err := msgpack.Marshal(unseenEntry{Count: count, CachedAt: time.Now().UTC()})
	if err != nil {
		slog.WarnContext(ctx, "failed to encode unseen count", "error", err)

		return
	}

	err = uc.redis.Set(ctx, unseenKey(userID, referenceID), data, uc.ttl)
	if err != nil {
		slog.WarnContext(ctx, "failed to cache unseen count", "error", err)
	}
}

// InvalidateReference drops the counts of every user for the reference.
func (uc *UnseenCache) InvalidateReference(ctx context.Context, referenceID string) {
	if uc == nil || uc.redis == nil {
		return
	}

	err := uc.redis.DeletePattern(ctx, unseenKey("*", referenceID))
	if err != nil {
		slog.WarnContext(ctx, "failed to invalidate unseen counts", "referenceId", referenceID, "error", err)
	}
}

// InvalidateUser drops every cached count of the user.
func (uc *UnseenCache) InvalidateUser(ctx context.Context, userID string) {
	if uc == nil || uc.redis == nil {
		return
	}

	err := uc.redis.DeletePattern(ctx, unseenKey(userID, "*"))
	if err != nil {
		slog.WarnContext(ctx, "failed to invalidate unseen counts", "userId", userID, "error", err)
	}
}

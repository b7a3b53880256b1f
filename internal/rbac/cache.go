package rbac

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// GrantCache is an additive fast-path over the grants table. It is never
// consulted for tenant-isolation checks and is explicitly deleted on
// grant, revoke, or role change; the TTL only bounds staleness for
// invalidations lost to Redis failures.
type GrantCache interface {
	Get(ctx context.Context, userID uuid.UUID) ([]string, bool)
	Set(ctx context.Context, userID uuid.UUID, codes []string)
	Invalidate(ctx context.Context, userID uuid.UUID)
}

// RedisGrantCache stores grant code lists as JSON values with a short TTL.
type RedisGrantCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisGrantCache creates a grant cache. A zero ttl defaults to one minute.
func NewRedisGrantCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisGrantCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisGrantCache{client: client, ttl: ttl, logger: logger}
}

func grantKey(userID uuid.UUID) string {
	return "rbac:grants:" + userID.String()
}

// Get returns cached grant codes. A miss or any Redis error reads through.
func (c *RedisGrantCache) Get(ctx context.Context, userID uuid.UUID) ([]string, bool) {
	raw, err := c.client.Get(ctx, grantKey(userID)).Bytes()
	if err != nil {
		return nil, false
	}
	var codes []string
	if err := json.Unmarshal(raw, &codes); err != nil {
		return nil, false
	}
	return codes, true
}

// Set caches grant codes with the configured TTL.
func (c *RedisGrantCache) Set(ctx context.Context, userID uuid.UUID, codes []string) {
	if codes == nil {
		codes = []string{}
	}
	raw, err := json.Marshal(codes)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, grantKey(userID), raw, c.ttl).Err(); err != nil {
		c.logger.Debug("grant cache set failed", zap.Error(err))
	}
}

// Invalidate removes the user's cached grants immediately.
func (c *RedisGrantCache) Invalidate(ctx context.Context, userID uuid.UUID) {
	if err := c.client.Del(ctx, grantKey(userID)).Err(); err != nil {
		c.logger.Warn("grant cache invalidate failed", zap.Error(err), zap.String("user_id", userID.String()))
	}
}

// NopGrantCache disables caching; every lookup reads the store.
type NopGrantCache struct{}

// Get implements GrantCache.
func (NopGrantCache) Get(context.Context, uuid.UUID) ([]string, bool) { return nil, false }

// Set implements GrantCache.
func (NopGrantCache) Set(context.Context, uuid.UUID, []string) {}

// Invalidate implements GrantCache.
func (NopGrantCache) Invalidate(context.Context, uuid.UUID) {}

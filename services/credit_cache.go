package services

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const creditBalanceTTL = 5 * time.Minute

// BalanceCache caches per-user available credit balances. Implementations
// must tolerate a cold or unreachable cache; callers treat misses and errors
// the same way.
type BalanceCache interface {
	Get(ctx context.Context, userID uuid.UUID) (int64, bool)
	Set(ctx context.Context, userID uuid.UUID, balanceCents int64)
	Invalidate(ctx context.Context, userID uuid.UUID)
}

// RedisBalanceCache is a cache-aside wrapper over Redis. The client is
// injected; there is no package-level singleton.
type RedisBalanceCache struct {
	client *redis.Client
}

// NewRedisBalanceCache creates a new RedisBalanceCache.
func NewRedisBalanceCache(client *redis.Client) *RedisBalanceCache {
	return &RedisBalanceCache{client: client}
}

func balanceKey(userID uuid.UUID) string {
	return "credit_balance:" + userID.String()
}

func (c *RedisBalanceCache) Get(ctx context.Context, userID uuid.UUID) (int64, bool) {
	val, err := c.client.Get(ctx, balanceKey(userID)).Result()
	if err != nil {
		return 0, false
	}
	cents, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false
	}
	return cents, true
}

func (c *RedisBalanceCache) Set(ctx context.Context, userID uuid.UUID, balanceCents int64) {
	c.client.Set(ctx, balanceKey(userID), strconv.FormatInt(balanceCents, 10), creditBalanceTTL)
}

func (c *RedisBalanceCache) Invalidate(ctx context.Context, userID uuid.UUID) {
	c.client.Del(ctx, balanceKey(userID))
}

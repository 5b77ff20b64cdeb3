package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/predictionleague/internal/domain"
)

// DefaultMarketTTL is how long provider lookups stay cached.
const DefaultMarketTTL = 5 * time.Minute

// MarketCache implements domain.MarketInfoCache with one JSON string per
// market.
//
// Key schema:
//
//	[namespace:]market:{conditionID} - JSON-encoded domain.MarketInfo
type MarketCache struct {
	c   *Client
	rdb *redis.Client
	ttl time.Duration
}

// NewMarketCache creates a MarketCache backed by the given Client. A
// non-positive ttl selects DefaultMarketTTL.
func NewMarketCache(c *Client, ttl time.Duration) *MarketCache {
	if ttl <= 0 {
		ttl = DefaultMarketTTL
	}
	return &MarketCache{c: c, rdb: c.Underlying(), ttl: ttl}
}

func (mc *MarketCache) key(id domain.MarketID) string { return mc.c.Key("market", id.Hex()) }

// Set stores info under its condition id.
func (mc *MarketCache) Set(ctx context.Context, info domain.MarketInfo) error {
	if info.ConditionID == (domain.MarketID{}) {
		return fmt.Errorf("redis: %w: market info without condition id", domain.ErrValidation)
	}
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("redis: marshal market %s: %w", info.ConditionID.Hex(), err)
	}
	if err := mc.rdb.Set(ctx, mc.key(info.ConditionID), data, mc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set market %s: %w", info.ConditionID.Hex(), err)
	}
	return nil
}

// Get returns the cached market, or domain.ErrNotFound when the key does not
// exist.
func (mc *MarketCache) Get(ctx context.Context, conditionID domain.MarketID) (domain.MarketInfo, error) {
	data, err := mc.rdb.Get(ctx, mc.key(conditionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.MarketInfo{}, domain.ErrNotFound
		}
		return domain.MarketInfo{}, fmt.Errorf("redis: get market %s: %w", conditionID.Hex(), err)
	}

	var info domain.MarketInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return domain.MarketInfo{}, fmt.Errorf("redis: unmarshal market %s: %w", conditionID.Hex(), err)
	}
	return info, nil
}

// Invalidate removes a market from the cache.
func (mc *MarketCache) Invalidate(ctx context.Context, conditionID domain.MarketID) error {
	if err := mc.rdb.Del(ctx, mc.key(conditionID)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate market %s: %w", conditionID.Hex(), err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.MarketInfoCache = (*MarketCache)(nil)

package oracle

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedOracle 在真实 Oracle 之上套一层 Redis 缓存。
// 报价的时效性仍由上层的 staleness 校验把关，缓存 TTL 只是为了削峰。
type CachedOracle struct {
	inner Oracle
	rdb   *redis.Client
	ttl   time.Duration
}

func NewCachedOracle(inner Oracle, rdb *redis.Client, ttl time.Duration) *CachedOracle {
	return &CachedOracle{inner: inner, rdb: rdb, ttl: ttl}
}

func (c *CachedOracle) GetPrice(ctx context.Context, assetID string) (*Quote, error) {
	key := "oracle:price:" + assetID

	// 1. 查缓存
	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var q Quote
		if json.Unmarshal(raw, &q) == nil {
			return &q, nil
		}
		// 缓存损坏则穿透
	}

	// 2. 回源
	q, err := c.inner.GetPrice(ctx, assetID)
	if err != nil {
		return nil, err
	}

	// 3. 写回 (失败不影响主流程)
	if raw, err := json.Marshal(q); err == nil {
		c.rdb.Set(ctx, key, raw, c.ttl)
	}

	return q, nil
}

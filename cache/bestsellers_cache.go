package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"marketplace-service/models"
)

const (
	BestSellersPrefix     = "bestsellers:v:"
	BestSellersVersionKey = "bestsellers:version"

	DefaultBestSellersTTL = 60 * time.Second
)

// BestSellersCache stores ranked lists under a versioned key. Invalidate bumps
// the version, so stale lists simply age out.
type BestSellersCache struct {
	redis  redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

func NewBestSellersCache(client redis.Cmdable, ttl time.Duration, logger *zap.Logger) *BestSellersCache {
	if ttl <= 0 {
		ttl = DefaultBestSellersTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BestSellersCache{redis: client, ttl: ttl, logger: logger}
}

// Get returns the cached ranking for limit along with the version it was read
// under. Any Redis error is a miss with version 0.
func (c *BestSellersCache) Get(ctx context.Context, limit int) ([]models.RankedProduct, int64, bool) {
	version, err := c.version(ctx)
	if err != nil {
		c.logger.Debug("best sellers cache unavailable", zap.Error(err))
		return nil, 0, false
	}

	data, err := c.redis.Get(ctx, listKey(version, limit)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Debug("best sellers cache read failed", zap.Error(err))
		}
		return nil, version, false
	}

	var ranked []models.RankedProduct
	if err := json.Unmarshal(data, &ranked); err != nil {
		c.logger.Warn("failed to unmarshal cached best sellers", zap.Error(err))
		return nil, version, false
	}
	return ranked, version, true
}

// Set stores ranked under the version returned by the Get that preceded the
// catalog scan. If an Invalidate ran in between, the entry lands under the old
// version and is never read.
func (c *BestSellersCache) Set(ctx context.Context, version int64, limit int, ranked []models.RankedProduct) {
	if version <= 0 {
		return
	}
	data, err := json.Marshal(ranked)
	if err != nil {
		c.logger.Warn("failed to marshal best sellers for cache", zap.Error(err))
		return
	}
	if err := c.redis.Set(ctx, listKey(version, limit), data, c.ttl).Err(); err != nil {
		c.logger.Warn("failed to cache best sellers", zap.Error(err))
	}
}

func (c *BestSellersCache) Invalidate(ctx context.Context) error {
	if _, err := c.redis.Incr(ctx, BestSellersVersionKey).Result(); err != nil {
		return fmt.Errorf("failed to invalidate best sellers cache: %w", err)
	}
	return nil
}

// version reads the current cache version, initialising it on first use.
func (c *BestSellersCache) version(ctx context.Context) (int64, error) {
	ver, err := c.redis.Get(ctx, BestSellersVersionKey).Int64()
	if err == nil {
		return ver, nil
	}
	if !errors.Is(err, redis.Nil) {
		return 0, err
	}
	// SetNX so a concurrent Invalidate is not overwritten.
	if err := c.redis.SetNX(ctx, BestSellersVersionKey, 1, 0).Err(); err != nil {
		return 0, err
	}
	return c.redis.Get(ctx, BestSellersVersionKey).Int64()
}

func listKey(version int64, limit int) string {
	return fmt.Sprintf("%s%d:l:%d", BestSellersPrefix, version, limit)
}

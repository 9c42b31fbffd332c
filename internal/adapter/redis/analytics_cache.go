package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pscheid92/blastdesk/internal/adapter/metrics"
	"github.com/pscheid92/blastdesk/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

const analyticsKey = "analytics:summary"

type AnalyticsCache struct {
	rdb     goredis.Cmdable
	metrics *metrics.CacheMetrics
}

// NewAnalyticsCache creates the cache; m may be nil.
func NewAnalyticsCache(rdb goredis.Cmdable, m *metrics.CacheMetrics) *AnalyticsCache {
	return &AnalyticsCache{rdb: rdb, metrics: m}
}

func (c *AnalyticsCache) Get(ctx context.Context) (*domain.Analytics, error) {
	data, err := c.rdb.Get(ctx, analyticsKey).Bytes()
	if errors.Is(err, goredis.Nil) {
		c.count(func(m *metrics.CacheMetrics) { m.Misses.Inc() })
		return nil, nil
	}
	if err != nil {
		c.count(func(m *metrics.CacheMetrics) { m.Errors.Inc() })
		return nil, fmt.Errorf("failed to read analytics cache: %w", err)
	}

	var summary domain.Analytics
	if err := json.Unmarshal(data, &summary); err != nil {
		c.count(func(m *metrics.CacheMetrics) { m.Errors.Inc() })
		return nil, fmt.Errorf("failed to decode analytics cache: %w", err)
	}

	c.count(func(m *metrics.CacheMetrics) { m.Hits.Inc() })
	return &summary, nil
}

func (c *AnalyticsCache) Set(ctx context.Context, summary *domain.Analytics, ttl time.Duration) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to encode analytics summary: %w", err)
	}
	if err := c.rdb.Set(ctx, analyticsKey, data, ttl).Err(); err != nil {
		c.count(func(m *metrics.CacheMetrics) { m.Errors.Inc() })
		return fmt.Errorf("failed to write analytics cache: %w", err)
	}
	return nil
}

func (c *AnalyticsCache) Invalidate(ctx context.Context) error {
	if err := c.rdb.Del(ctx, analyticsKey).Err(); err != nil {
		return fmt.Errorf("failed to invalidate analytics cache: %w", err)
	}
	c.count(func(m *metrics.CacheMetrics) { m.Invalidations.Inc() })
	return nil
}

func (c *AnalyticsCache) count(fn func(*metrics.CacheMetrics)) {
	if c.metrics != nil {
		fn(c.metrics)
	}
}

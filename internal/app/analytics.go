package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/pscheid92/blastdesk/internal/domain"
)

const (
	analyticsWindowDays = 30
	analyticsRecent     = 5
)

// AnalyticsService serves the dashboard summary through a read-through cache.
type AnalyticsService struct {
	repo  domain.AnalyticsRepository
	cache domain.AnalyticsCache
	ttl   time.Duration
	clock clockwork.Clock
	group singleflight.Group
}

func NewAnalyticsService(repo domain.AnalyticsRepository, cache domain.AnalyticsCache, ttl time.Duration, clock clockwork.Clock) *AnalyticsService {
	return &AnalyticsService{repo: repo, cache: cache, ttl: ttl, clock: clock}
}

// Summary returns the cached summary or computes it. Concurrent misses share
// one computation. Cache failures degrade to computing every time.
func (s *AnalyticsService) Summary(ctx context.Context) (*domain.Analytics, error) {
	cached, err := s.cache.Get(ctx)
	if err != nil {
		slog.Warn("Analytics cache read failed", "error", err)
	}
	if cached != nil {
		return cached, nil
	}

	v, err, _ := s.group.Do("summary", func() (any, error) {
		now := s.clock.Now().UTC()
		since := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(analyticsWindowDays - 1))

		summary, err := s.repo.Summary(ctx, since, analyticsRecent)
		if err != nil {
			return nil, err
		}
		summary.GeneratedAt = now

		if err := s.cache.Set(ctx, summary, s.ttl); err != nil {
			slog.Warn("Analytics cache write failed", "error", err)
		}
		return summary, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Analytics), nil
}

// invalidateAnalytics drops the cached summary after a mutation. Failure only
// means the dashboard is stale until the TTL runs out.
func invalidateAnalytics(ctx context.Context, cache domain.AnalyticsCache) {
	if cache == nil {
		return
	}
	if err := cache.Invalidate(ctx); err != nil {
		slog.Warn("Analytics cache invalidation failed", "error", err)
	}
}

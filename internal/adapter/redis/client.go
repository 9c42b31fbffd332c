package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pscheid92/blastdesk/internal/adapter/metrics"
	goredis "github.com/redis/go-redis/v9"
)

// NewClient creates a client from a URL (e.g. "redis://localhost:6379") and
// verifies it with a ping. When m is non-nil a MetricsHook is installed.
func NewClient(ctx context.Context, redisURL string, m *metrics.StoreMetrics) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := goredis.NewClient(opts)
	if m != nil {
		rdb.AddHook(NewMetricsHook(m))
	}

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	slog.Info("Redis connected", "addr", opts.Addr, "db", opts.DB)
	return rdb, nil
}

package cache

import (
	"context"
	"time"

	"vendarapida/backend/internal/domain"
)

// MetricsCache fronts the dashboard aggregation. Entries are keyed by
// month and date basis; any sale write purges the whole key space.
type MetricsCache interface {
	Get(ctx context.Context, key string) (*domain.DashboardMetrics, bool, error)
	Set(ctx context.Context, key string, value *domain.DashboardMetrics, ttl time.Duration) error
	Purge(ctx context.Context) error
}

type NoopMetricsCache struct{}

func (NoopMetricsCache) Get(_ context.Context, _ string) (*domain.DashboardMetrics, bool, error) {
	return nil, false, nil
}

func (NoopMetricsCache) Set(_ context.Context, _ string, _ *domain.DashboardMetrics, _ time.Duration) error {
	return nil
}

func (NoopMetricsCache) Purge(_ context.Context) error {
	return nil
}

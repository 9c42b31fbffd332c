package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type AnalyticsTotals struct {
	Departments  int
	Participants int
	Templates    int
	Blasts       int
	EmailsSent   int
	EmailsFailed int
}

type DepartmentStats struct {
	DepartmentID *uuid.UUID
	Name         string
	Participants int
}

type DailySends struct {
	Day    time.Time
	Sent   int
	Failed int
}

type Analytics struct {
	Totals        AnalyticsTotals
	PerDepartment []DepartmentStats
	RecentBlasts  []Blast
	DailySends    []DailySends
	GeneratedAt   time.Time
}

type AnalyticsRepository interface {
	// Summary aggregates everything; DailySends covers deliveries attempted at or after since.
	Summary(ctx context.Context, since time.Time, recent int) (*Analytics, error)
}

// AnalyticsCache holds the last computed summary. Get returns nil, nil on a miss.
type AnalyticsCache interface {
	Get(ctx context.Context) (*Analytics, error)
	Set(ctx context.Context, summary *Analytics, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

package storage

import (
	"context"
	"time"

	"github.com/trend-agent/internal/models"
)

// Repository defines the interface for the run history
type Repository interface {
	// Run operations. History is append-only.
	RecordRun(ctx context.Context, run *models.RunRecord) error
	ListRuns(ctx context.Context, filter RunFilter) ([]*models.RunRecord, error)
	CountByOutcome(ctx context.Context, since time.Time) (map[models.PostOutcome]int64, error)

	// Maintenance
	Close() error
	Migrate() error
}

// RunFilter defines filtering options for history queries
type RunFilter struct {
	Outcome *models.PostOutcome
	Trend   string
	Since   time.Time
	Limit   int
	Offset  int
}

// DefaultRunFilter returns the newest 20 runs
func DefaultRunFilter() RunFilter {
	return RunFilter{Limit: 20}
}

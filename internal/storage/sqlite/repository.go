package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/trend-agent/internal/models"
	"github.com/trend-agent/internal/storage"
)

// Repository implements storage.Repository using SQLite
type Repository struct {
	db *gorm.DB
}

// New creates a new SQLite repository
func New(dsn string) (*Repository, error) {
	// Ensure directory exists
	if path := dsnPath(dsn); path != "" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Repository{db: db}, nil
}

// dsnPath returns the file part of a DSN, empty for in-memory databases
func dsnPath(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" {
		return ""
	}
	return path
}

// Migrate runs database migrations
func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(&models.RunRecord{})
}

// Close closes the database connection
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordRun appends one run
func (r *Repository) RecordRun(ctx context.Context, run *models.RunRecord) error {
	if run.ID != 0 {
		return fmt.Errorf("run %d already recorded", run.ID)
	}
	return r.db.WithContext(ctx).Create(run).Error
}

// ListRuns returns runs newest first
func (r *Repository) ListRuns(ctx context.Context, filter storage.RunFilter) ([]*models.RunRecord, error) {
	var runs []*models.RunRecord
	query := r.db.WithContext(ctx).Model(&models.RunRecord{})

	if filter.Outcome != nil {
		query = query.Where("outcome = ?", *filter.Outcome)
	}
	if filter.Trend != "" {
		query = query.Where("LOWER(trend) = ?", strings.ToLower(filter.Trend))
	}
	if !filter.Since.IsZero() {
		query = query.Where("created_at >= ?", filter.Since)
	}

	query = query.Order("created_at DESC").Order("id DESC")

	// Pagination
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	if err := query.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// CountByOutcome tallies runs per outcome since the given time
func (r *Repository) CountByOutcome(ctx context.Context, since time.Time) (map[models.PostOutcome]int64, error) {
	var rows []struct {
		Outcome models.PostOutcome
		Count   int64
	}

	query := r.db.WithContext(ctx).Model(&models.RunRecord{}).
		Select("outcome, COUNT(*) AS count").
		Group("outcome")
	if !since.IsZero() {
		query = query.Where("created_at >= ?", since)
	}
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[models.PostOutcome]int64, len(rows))
	for _, row := range rows {
		counts[row.Outcome] = row.Count
	}
	return counts, nil
}

// Ensure Repository implements storage.Repository
var _ storage.Repository = (*Repository)(nil)

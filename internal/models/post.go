package models

import (
	"time"
)

// PostOutcome is the terminal state of one publish call
type PostOutcome string

const (
	PostOutcomePublished   PostOutcome = "published"
	PostOutcomeRateLimited PostOutcome = "rate_limited"
	PostOutcomeRejected    PostOutcome = "rejected"
	PostOutcomeFailed      PostOutcome = "failed"
	PostOutcomeSkipped     PostOutcome = "skipped"
)

// ContentOrigin tells whether the post text came from a backend or a template
type ContentOrigin string

const (
	ContentGenerated ContentOrigin = "generated"
	ContentFallback  ContentOrigin = "fallback"
)

// PostResult is what the publisher reports back
type PostResult struct {
	Outcome  PostOutcome `json:"outcome"`
	PostID   string      `json:"post_id,omitempty"`
	Attempts int         `json:"attempts"`
	Reason   string      `json:"reason,omitempty"`
}

// Published returns true when the platform accepted the post
func (r *PostResult) Published() bool {
	return r != nil && r.Outcome == PostOutcomePublished
}

// RunRecord is one row of the append-only run history
type RunRecord struct {
	ID              uint          `gorm:"primaryKey" json:"id"`
	Trend           string        `gorm:"size:255;index;not null" json:"trend"`
	TrendSource     string        `gorm:"size:50" json:"trend_source"`
	CandidateTrends StringSlice   `gorm:"type:json" json:"candidate_trends"`
	Prompt          string        `gorm:"type:text" json:"prompt"`
	Content         string        `gorm:"type:text;not null" json:"content"`
	ContentOrigin   ContentOrigin `gorm:"size:20" json:"content_origin"`
	Backend         string        `gorm:"size:100" json:"backend"`
	Outcome         PostOutcome   `gorm:"size:20;index" json:"outcome"`
	PostID          string        `gorm:"size:64" json:"post_id"`
	Attempts        int           `gorm:"default:0" json:"attempts"`
	Reason          string        `gorm:"type:text" json:"reason"`
	DryRun          bool          `json:"dry_run"`
	DurationMs      int64         `json:"duration_ms"`
	CreatedAt       time.Time     `gorm:"autoCreateTime;index" json:"created_at"`
}

// Duration returns the stored run duration
func (r *RunRecord) Duration() time.Duration {
	return time.Duration(r.DurationMs) * time.Millisecond
}

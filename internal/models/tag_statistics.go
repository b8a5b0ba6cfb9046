package models

import (
	"time"

	"github.com/google/uuid"
)

// TagStats represents aggregated usage counts for a single tag
type TagStats struct {
	Total     int `json:"total"`     // Total count of tasks carrying this tag
	Open      int `json:"open"`      // Count of incomplete tasks with this tag
	Completed int `json:"completed"` // Count of completed tasks with this tag
}

// TagStatistics represents per-user tag usage statistics, recomputed by the
// worker after tag mutations.
type TagStatistics struct {
	UserID          uuid.UUID           `json:"user_id"`
	TagStats        map[string]TagStats `json:"tag_stats"` // Maps tag name to usage counts
	Tainted         bool                `json:"tainted"`
	LastAnalyzedAt  *time.Time          `json:"last_analyzed_at,omitempty"`
	AnalysisVersion int                 `json:"analysis_version"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

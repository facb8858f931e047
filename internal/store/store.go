// Package store persists classified districts and the pipeline run log.
package store

import (
	"context"
	"time"

	"github.com/sells-group/coldspot-cli/internal/model"
)

// Default sink names.
const (
	DefaultTable    = "cold_spots"
	DefaultSchema   = "public"
	RunLogTable     = "coldspot_runs"
	defaultRecLimit = 10
	defaultRunLimit = 20
)

// RecommendFilter selects cold spots for the recommend query. Empty Region
// and Industry match everything.
type RecommendFilter struct {
	Region    string           `json:"region,omitempty"`
	Industry  string           `json:"industry,omitempty"`
	Bucket    model.TimeBucket `json:"bucket"`
	Ascending bool             `json:"ascending,omitempty"`
	Limit     int              `json:"limit,omitempty"`
}

// Store is a relational sink for classified districts.
type Store interface {
	// Districts
	ReplaceColdSpots(ctx context.Context, rows []model.ClassifiedDistrict, loadedAt time.Time) (int64, error)
	Recommend(ctx context.Context, filter RecommendFilter) ([]model.ClassifiedDistrict, error)
	Summarize(ctx context.Context, top int) (*model.Summary, error)

	// Run log
	StartRun(ctx context.Context, preset, thresholds string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, result model.RunResult) error
	FailRun(ctx context.Context, runID string, message string) error
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

package model

import "time"

// RunStatus represents the state of a pipeline run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one entry of the pipeline run log.
type Run struct {
	ID          string     `json:"id"`
	Status      RunStatus  `json:"status"`
	Preset      string     `json:"preset"`
	Thresholds  string     `json:"thresholds"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Merged      int64      `json:"merged"`
	Classified  int64      `json:"classified"`
	Rejected    int64      `json:"rejected"`
	ColdSpots   int64      `json:"cold_spots"`
	Error       string     `json:"error,omitempty"`
}

// RunResult holds the counts recorded when a run completes.
type RunResult struct {
	Merged     int64 `json:"merged"`
	Classified int64 `json:"classified"`
	Rejected   int64 `json:"rejected"`
	ColdSpots  int64 `json:"cold_spots"`
}

// GroupCount is a label with its number of cold-spot rows.
type GroupCount struct {
	Name  string `json:"name" yaml:"name"`
	Total int64  `json:"total" yaml:"total"`
	Cold  int64  `json:"cold" yaml:"cold"`
}

// Summary describes the contents of the classified sink.
type Summary struct {
	Total      int64        `json:"total" yaml:"total"`
	ColdSpots  int64        `json:"cold_spots" yaml:"cold_spots"`
	ColdRatio  float64      `json:"cold_ratio" yaml:"cold_ratio"`
	Regions    []GroupCount `json:"regions" yaml:"regions"`
	Industries []GroupCount `json:"industries" yaml:"industries"`
}

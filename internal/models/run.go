package models

import (
	"time"

	"github.com/chrisndirangu54/standstill/internal/segmenter"
)

// Run is one persisted segmentation of an uploaded track
type Run struct {
	ID           string `json:"id" db:"id"`
	Name         string `json:"name,omitempty" db:"name"`
	SourceFormat string `json:"sourceFormat" db:"source_format"` // geojson, gpx, nmea

	// Status
	Status       string `json:"status" db:"status"` // pending, running, completed, failed
	ErrorMessage string `json:"errorMessage,omitempty" db:"error_message"`

	// Results
	SampleCount int        `json:"sampleCount" db:"sample_count"`
	StopCount   int        `json:"stopCount" db:"stop_count"`
	RouteCount  int        `json:"routeCount" db:"route_count"`
	TrackStart  *time.Time `json:"trackStart,omitempty" db:"track_start"`
	TrackEnd    *time.Time `json:"trackEnd,omitempty" db:"track_end"`

	// Parameters
	MaxTimeGapMs      int64   `json:"maxTimeGapMs" db:"max_time_gap_ms"`
	StopTolerance     float64 `json:"stopTolerance" db:"stop_tolerance"`
	MinStopDurationMs int64   `json:"minStopDurationMs" db:"min_stop_duration_ms"`
	Metric            string  `json:"metric" db:"metric"`
	TimeLayout        string  `json:"timeLayout,omitempty" db:"time_layout"` // layout of the source timestamps

	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	CompletedAt *time.Time `json:"completedAt,omitempty" db:"completed_at"`
}

// RunStatus constants
const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// ValidRunStatus reports whether s is a known run status.
func ValidRunStatus(s string) bool {
	switch s {
	case RunStatusPending, RunStatusRunning, RunStatusCompleted, RunStatusFailed:
		return true
	}
	return false
}

// NewRun returns a pending run for a track segmented with cfg.
func NewRun(id, name, format string, cfg segmenter.Config, createdAt time.Time) *Run {
	return &Run{
		ID:                id,
		Name:              name,
		SourceFormat:      format,
		Status:            RunStatusPending,
		MaxTimeGapMs:      cfg.MaxTimeGap.Milliseconds(),
		StopTolerance:     cfg.StopTolerance,
		MinStopDurationMs: cfg.MinStopDuration.Milliseconds(),
		Metric:            string(cfg.Metric),
		CreatedAt:         createdAt,
	}
}

// SegmenterConfig returns the parameters the run was segmented with.
func (r *Run) SegmenterConfig() segmenter.Config {
	return segmenter.Config{
		MaxTimeGap:      time.Duration(r.MaxTimeGapMs) * time.Millisecond,
		StopTolerance:   r.StopTolerance,
		MinStopDuration: time.Duration(r.MinStopDurationMs) * time.Millisecond,
		Metric:          segmenter.Metric(r.Metric),
	}
}

// Finished reports whether the run reached a terminal status.
func (r *Run) Finished() bool {
	return r.Status == RunStatusCompleted || r.Status == RunStatusFailed
}

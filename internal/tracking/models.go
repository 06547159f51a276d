package tracking

import "time"

// Run is one playback session as recorded in the history store.
type Run struct {
	ID         string     `json:"id"`
	Provider   string     `json:"provider"`
	PointTotal int        `json:"point_total"`
	Speed      float64    `json:"speed"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
	EndReason  string     `json:"end_reason,omitempty"`
	DistanceM  float64    `json:"distance_m"`
}

// Point is one emitted track point of a run.
type Point struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"run_id"`
	Index      int       `json:"index"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	ElevationM *float64  `json:"elevation_m,omitempty"`
	PointTime  string    `json:"point_time,omitempty"`
	EmittedAt  time.Time `json:"emitted_at"`
}

type Summary struct {
	RunID        string  `json:"run_id"`
	Status       string  `json:"status"`
	PointCount   int     `json:"point_count"`
	PointTotal   int     `json:"point_total"`
	DistanceM    float64 `json:"distance_m"`
	DurationSec  int64   `json:"duration_sec"`
	AverageSpeed float64 `json:"average_speed_mps"`
}

package storage

import "time"

// Track is a stored GPX document that can be replayed by id.
type Track struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	PointCount int       `json:"point_count"`
	SizeBytes  int       `json:"size_bytes"`
	CreatedAt  time.Time `json:"created_at"`
}

type uploadRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	GPXData string `json:"gpx_data" validate:"required"`
}

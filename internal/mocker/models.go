package mocker

import "github.com/amrahmed242/location-mocker/internal/playback"

type startRequest struct {
	GPXData       string   `json:"gpx_data" validate:"required_without=TrackID"`
	TrackID       string   `json:"track_id" validate:"required_without=GPXData"`
	PlaybackSpeed *float64 `json:"playback_speed" validate:"omitempty,gt=0"`
}

type speedRequest struct {
	PlaybackSpeed *float64 `json:"playback_speed" validate:"omitempty,gt=0"`
}

// StatusView is the control surface's answer to a status query.
type StatusView struct {
	playback.Status
	Provider string `json:"provider,omitempty"`
}

type resultResponse struct {
	OK bool `json:"ok"`
}

package playback

import (
	"math"
	"time"

	"github.com/amrahmed242/location-mocker/internal/gpx"
)

// DefaultInterval is the cadence used when either point has no timestamp.
const DefaultInterval = 1000 * time.Millisecond

// Delay returns how long to wait before emitting next after current at the
// given speed factor. speed must be > 0.
func Delay(current, next gpx.TrackPoint, speed float64) time.Duration {
	raw := DefaultInterval
	from, okFrom := current.Time()
	to, okTo := next.Time()
	if okFrom && okTo {
		raw = to.Sub(from)
		if raw < 0 {
			raw = 0
		}
	}

	ms := math.Round(float64(raw.Milliseconds()) / speed)
	return time.Duration(ms) * time.Millisecond
}

// ValidSpeed reports whether speed can be used as a playback speed factor.
func ValidSpeed(speed float64) bool {
	return speed > 0 && !math.IsInf(speed, 0) && !math.IsNaN(speed)
}

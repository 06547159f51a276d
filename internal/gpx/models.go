package gpx

import (
	"math"
	"time"
)

// TrackPoint is one recorded fix. Values are copied on every With* call, so a
// point never changes once it is part of a Track.
type TrackPoint struct {
	lat, lon float64

	ele     float64
	hasEle  bool
	at      time.Time
	hasTime bool
	bearing float64
	hasBrg  bool
}

// Track is an ordered sequence of points; document order is playback order.
type Track []TrackPoint

// NewPoint builds a point with the required coordinates.
func NewPoint(lat, lon float64) TrackPoint {
	return TrackPoint{lat: lat, lon: lon}
}

func (p TrackPoint) WithElevation(ele float64) TrackPoint {
	p.ele, p.hasEle = ele, true
	return p
}

func (p TrackPoint) WithTime(t time.Time) TrackPoint {
	p.at, p.hasTime = t, true
	return p
}

func (p TrackPoint) WithBearing(deg float64) TrackPoint {
	p.bearing, p.hasBrg = deg, true
	return p
}

func (p TrackPoint) Latitude() float64  { return p.lat }
func (p TrackPoint) Longitude() float64 { return p.lon }

func (p TrackPoint) Elevation() (float64, bool) { return p.ele, p.hasEle }
func (p TrackPoint) Time() (time.Time, bool)    { return p.at, p.hasTime }
func (p TrackPoint) Bearing() (float64, bool)   { return p.bearing, p.hasBrg }

// ValidCoordinates reports whether lat/lon are finite and inside the WGS84 ranges.
func ValidCoordinates(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

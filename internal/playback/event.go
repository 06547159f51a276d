package playback

import (
	"context"
	"time"

	"github.com/amrahmed242/location-mocker/internal/gpx"
)

// TimeLayout renders event timestamps as ISO-8601 UTC with milliseconds.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// Event is one emitted track point as seen by sinks.
type Event struct {
	SessionID string `json:"-"`
	Index     int    `json:"-"`

	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Elevation *float64 `json:"elevation,omitempty"`
	Time      string   `json:"time,omitempty"`
	Bearing   *float64 `json:"bearing,omitempty"`
}

// NewEvent converts p into its emitted form.
func NewEvent(sessionID string, index int, p gpx.TrackPoint) Event {
	ev := Event{
		SessionID: sessionID,
		Index:     index,
		Latitude:  p.Latitude(),
		Longitude: p.Longitude(),
	}
	if ele, ok := p.Elevation(); ok {
		ev.Elevation = &ele
	}
	if t, ok := p.Time(); ok {
		ev.Time = t.UTC().Format(TimeLayout)
	}
	if brg, ok := p.Bearing(); ok {
		ev.Bearing = &brg
	}
	return ev
}

// Map returns the event as a mapping holding only the known keys.
func (e Event) Map() map[string]any {
	m := map[string]any{
		"latitude":  e.Latitude,
		"longitude": e.Longitude,
	}
	if e.Elevation != nil {
		m["elevation"] = *e.Elevation
	}
	if e.Time != "" {
		m["time"] = e.Time
	}
	if e.Bearing != nil {
		m["bearing"] = *e.Bearing
	}
	return m
}

// Fix is what the injector receives for every emitted point.
type Fix struct {
	Latitude  float64
	Longitude float64
	Altitude  float64
	Bearing   *float64

	Time    time.Time     // wall clock at delivery
	Elapsed time.Duration // monotonic time since process start

	Accuracy         float32
	BearingAccuracy  float32
	SpeedAccuracy    float32
	VerticalAccuracy float32
	Mock             bool
}

// Sink receives emitted points on the delivery goroutine.
type Sink interface {
	Emit(ev Event)
}

// SessionObserver is an optional Sink capability for session lifecycle.
type SessionObserver interface {
	SessionStarted(id string, points int, speed float64)
	SessionEnded(id string, reason EndReason)
}

// Injector projects fixes into the host location subsystem. Failures are
// logged by the scheduler and never stop playback.
type Injector interface {
	Inject(ctx context.Context, fix Fix) error
}

// MockMarker is an optional Injector capability: fixes it receives are
// flagged as coming from a mock provider.
type MockMarker interface {
	MarksMock() bool
}

// Sinks fans every call out to each member in order.
type Sinks []Sink

func (s Sinks) Emit(ev Event) {
	for _, sink := range s {
		sink.Emit(ev)
	}
}

func (s Sinks) SessionStarted(id string, points int, speed float64) {
	for _, sink := range s {
		if o, ok := sink.(SessionObserver); ok {
			o.SessionStarted(id, points, speed)
		}
	}
}

func (s Sinks) SessionEnded(id string, reason EndReason) {
	for _, sink := range s {
		if o, ok := sink.(SessionObserver); ok {
			o.SessionEnded(id, reason)
		}
	}
}

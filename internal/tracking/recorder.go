package tracking

import (
	"context"
	"log"
	"time"

	"github.com/amrahmed242/location-mocker/internal/playback"
)

const recordTimeout = 3 * time.Second

// Recorder writes playback activity to the history store. It is a
// playback.Sink and playback.SessionObserver; calls arrive one at a time on
// the delivery goroutine. Store failures are logged and never reach playback.
type Recorder struct {
	svc      *Service
	provider func() string
}

func NewRecorder(svc *Service, provider func() string) *Recorder {
	return &Recorder{svc: svc, provider: provider}
}

func (r *Recorder) SessionStarted(id string, points int, speed float64) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	run := Run{ID: id, PointTotal: points, Speed: speed}
	if r.provider != nil {
		run.Provider = r.provider()
	}
	if _, err := r.svc.StartRun(ctx, run); err != nil {
		log.Printf("record run %s: %v", id, err)
	}
}

func (r *Recorder) Emit(ev playback.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	_, err := r.svc.RecordPoint(ctx, ev.SessionID, Point{
		Index:      ev.Index,
		Lat:        ev.Latitude,
		Lon:        ev.Longitude,
		ElevationM: ev.Elevation,
		PointTime:  ev.Time,
	})
	if err != nil {
		log.Printf("record point %d of run %s: %v", ev.Index, ev.SessionID, err)
	}
}

func (r *Recorder) SessionEnded(id string, reason playback.EndReason) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := r.svc.FinishRun(ctx, id, string(reason)); err != nil {
		log.Printf("finish run %s: %v", id, err)
	}
}

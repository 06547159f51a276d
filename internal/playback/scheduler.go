// Package playback drives a parsed track forward in time, emitting one point
// per step through a sink and an injector.
package playback

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/amrahmed242/location-mocker/internal/gpx"

	"github.com/google/uuid"
)

var (
	ErrNoPoints     = errors.New("track has no points")
	ErrInvalidSpeed = errors.New("playback speed must be a positive number")
)

const injectTimeout = 2 * time.Second

var processStart = time.Now()

type timer interface {
	Stop() bool
}

type afterFunc func(d time.Duration, f func()) timer

var defaultAfterFunc afterFunc = func(d time.Duration, f func()) timer {
	return time.AfterFunc(d, f)
}

// Options carries the fix metadata attached to every injected point.
type Options struct {
	Accuracy float32
}

// Session is the mutable state of one playback run. It is owned by the
// Scheduler and only touched while holding its lock.
type Session struct {
	ID     string
	Points gpx.Track
	Cursor int
	Speed  float64
	State  State

	resumeSpeed float64
	timer       timer
	token       uint64
}

// Status is a point-in-time view of the scheduler.
type Status struct {
	SessionID string  `json:"session_id,omitempty"`
	State     State   `json:"state"`
	Cursor    int     `json:"cursor"`
	Total     int     `json:"total"`
	Speed     float64 `json:"speed"`
}

// Scheduler replays one track at a time. At most one step timer is pending;
// every transition that abandons a timer bumps the session token so a late
// callback finds itself stale and does nothing.
type Scheduler struct {
	sink     Sink
	injector Injector
	poster   Poster
	opts     Options

	afterFunc afterFunc
	now       func() time.Time
	newID     func() string

	mu      sync.Mutex
	session *Session
	// epoch changes on stop and replacement; queued deliveries of an older
	// epoch are dropped.
	epoch atomic.Uint64
}

func NewScheduler(sink Sink, injector Injector, poster Poster, opts Options) *Scheduler {
	if sink == nil {
		sink = Sinks(nil)
	}
	return &Scheduler{
		sink:      sink,
		injector:  injector,
		poster:    poster,
		opts:      opts,
		afterFunc: defaultAfterFunc,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Start replaces any running session with a new one over track, emits the
// first point right away and schedules the rest.
func (s *Scheduler) Start(track gpx.Track, speed float64) (Status, error) {
	if len(track) == 0 {
		return Status{}, ErrNoPoints
	}
	if !ValidSpeed(speed) {
		return Status{}, ErrInvalidSpeed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.teardownLocked(EndReplaced)

	sess := &Session{
		ID:     s.newID(),
		Points: track,
		Speed:  speed,
		State:  StateRunning,
	}
	s.session = sess
	s.notifyStarted(sess)
	s.advanceLocked(sess)
	return statusOf(sess), nil
}

// Pause cancels the pending step. It reports false unless running.
func (s *Scheduler) Pause() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.session
	if sess == nil || sess.State != StateRunning {
		return false
	}
	s.cancelTimerLocked(sess)
	sess.resumeSpeed = sess.Speed
	sess.Speed = 0
	sess.State = StatePaused
	return true
}

// Resume continues a paused session from the point it stopped at. A nil
// speed resumes at the speed in effect before the pause.
func (s *Scheduler) Resume(speed *float64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.session
	if sess == nil || sess.State != StatePaused {
		return false, nil
	}
	next := sess.resumeSpeed
	if speed != nil {
		if !ValidSpeed(*speed) {
			return false, ErrInvalidSpeed
		}
		next = *speed
	}

	sess.Speed = next
	sess.resumeSpeed = 0
	sess.State = StateRunning
	s.scheduleLocked(sess, Delay(sess.Points[sess.Cursor-1], sess.Points[sess.Cursor], next))
	return true, nil
}

// UpdateSpeed changes the speed used from the next step on; a step that is
// already scheduled keeps its delay. While paused it changes the resume speed.
func (s *Scheduler) UpdateSpeed(speed float64) (bool, error) {
	if !ValidSpeed(speed) {
		return false, ErrInvalidSpeed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.session
	if sess == nil {
		return false, nil
	}
	switch sess.State {
	case StateRunning:
		sess.Speed = speed
	case StatePaused:
		sess.resumeSpeed = speed
	default:
		return false, nil
	}
	return true, nil
}

// Stop ends the current session, if any. Nothing of that session is emitted
// after Stop returns. Calling it again is harmless.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked(EndStopped)
}

func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session == nil {
		return Status{State: StateIdle}
	}
	return statusOf(s.session)
}

func statusOf(sess *Session) Status {
	return Status{
		SessionID: sess.ID,
		State:     sess.State,
		Cursor:    sess.Cursor,
		Total:     len(sess.Points),
		Speed:     sess.Speed,
	}
}

func (s *Scheduler) fire(sess *Session, token uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != sess || sess.token != token || sess.State != StateRunning {
		return
	}
	sess.timer = nil
	s.advanceLocked(sess)
}

// advanceLocked emits points[cursor] and either schedules the next step or
// completes the session.
func (s *Scheduler) advanceLocked(sess *Session) {
	s.emitLocked(sess, sess.Cursor)
	sess.Cursor++

	if sess.Cursor >= len(sess.Points) {
		s.finishLocked(sess, EndCompleted)
		return
	}
	s.scheduleLocked(sess, Delay(sess.Points[sess.Cursor-1], sess.Points[sess.Cursor], sess.Speed))
}

func (s *Scheduler) scheduleLocked(sess *Session, d time.Duration) {
	s.cancelTimerLocked(sess)
	token := sess.token
	sess.timer = s.afterFunc(d, func() { s.fire(sess, token) })
}

func (s *Scheduler) cancelTimerLocked(sess *Session) {
	if sess.timer != nil {
		sess.timer.Stop()
		sess.timer = nil
	}
	sess.token++
}

func (s *Scheduler) teardownLocked(reason EndReason) {
	if s.session == nil {
		return
	}
	s.epoch.Add(1)
	s.finishLocked(s.session, reason)
}

func (s *Scheduler) finishLocked(sess *Session, reason EndReason) {
	s.cancelTimerLocked(sess)
	sess.State = StateIdle
	if s.session == sess {
		s.session = nil
	}

	obs, ok := s.sink.(SessionObserver)
	if !ok {
		return
	}
	id := sess.ID
	s.poster.Post(func() { obs.SessionEnded(id, reason) })
}

func (s *Scheduler) notifyStarted(sess *Session) {
	obs, ok := s.sink.(SessionObserver)
	if !ok {
		return
	}
	id, total, speed := sess.ID, len(sess.Points), sess.Speed
	s.poster.Post(func() { obs.SessionStarted(id, total, speed) })
}

func (s *Scheduler) emitLocked(sess *Session, index int) {
	p := sess.Points[index]
	ev := NewEvent(sess.ID, index, p)
	epoch := s.epoch.Load()

	s.poster.Post(func() {
		if s.epoch.Load() != epoch {
			return
		}
		s.deliver(ev, p)
	})
}

// deliver runs on the dispatcher: sink first, then the injector. An injector
// failure only gets logged.
func (s *Scheduler) deliver(ev Event, p gpx.TrackPoint) {
	s.sink.Emit(ev)

	if s.injector == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), injectTimeout)
	defer cancel()
	if err := s.injector.Inject(ctx, s.fixFor(p)); err != nil {
		log.Printf("inject point %d of session %s: %v", ev.Index, ev.SessionID, err)
	}
}

func (s *Scheduler) fixFor(p gpx.TrackPoint) Fix {
	fix := Fix{
		Latitude:         p.Latitude(),
		Longitude:        p.Longitude(),
		Time:             s.now(),
		Elapsed:          time.Since(processStart),
		Accuracy:         s.opts.Accuracy,
		BearingAccuracy:  0.1,
		SpeedAccuracy:    0.01,
		VerticalAccuracy: 0.1,
	}
	if ele, ok := p.Elevation(); ok {
		fix.Altitude = ele
	}
	if brg, ok := p.Bearing(); ok {
		fix.Bearing = &brg
	}
	if m, ok := s.injector.(MockMarker); ok {
		fix.Mock = m.MarksMock()
	}
	return fix
}

// Package mocker is the control surface over playback: it checks the host
// capability, parses the track, opens the mock provider and drives the
// scheduler, translating failures into coded errors.
package mocker

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/amrahmed242/location-mocker/internal/gpx"
	"github.com/amrahmed242/location-mocker/internal/playback"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const releaseTimeout = 3 * time.Second

// Provider is the host location collaborator: it injects fixes and owns the
// lifecycle of the mock provider they are injected under.
type Provider interface {
	playback.Injector
	Available(ctx context.Context) (bool, error)
	Open(ctx context.Context) (string, error)
	Close(ctx context.Context) error
}

type Options struct {
	DefaultSpeed float64
	Accuracy     float32
}

type Service struct {
	provider     Provider
	scheduler    *playback.Scheduler
	defaultSpeed float64
	tracer       trace.Tracer

	// mu serializes control operations so that opening the provider and
	// starting the scheduler happen as one step.
	mu           sync.Mutex
	current      string // session started by the latest successful Start
	providerName atomic.Value
}

// NewService builds the scheduler behind the control surface. Every sink in
// sinks receives each emitted point on poster's goroutine.
func NewService(provider Provider, poster playback.Poster, sinks []playback.Sink, opts Options) *Service {
	s := &Service{
		provider:     provider,
		defaultSpeed: opts.DefaultSpeed,
		tracer:       otel.Tracer("github.com/amrahmed242/location-mocker/internal/mocker"),
	}
	if !playback.ValidSpeed(s.defaultSpeed) {
		s.defaultSpeed = 1
	}
	s.providerName.Store("")

	all := make(playback.Sinks, 0, len(sinks)+1)
	all = append(all, sinks...)
	all = append(all, lifecycle{s})
	s.scheduler = playback.NewScheduler(all, provider, poster, playback.Options{Accuracy: opts.Accuracy})
	return s
}

// ProviderName is the mock provider opened by the latest Start.
func (s *Service) ProviderName() string {
	return s.providerName.Load().(string)
}

func (s *Service) MockingEnabled(ctx context.Context) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "mocker.MockingEnabled")
	defer span.End()

	ok, err := s.provider.Available(ctx)
	if err != nil {
		return false, fail(span, newError(CodeCheckMockError, "failed to check mock location status", err))
	}
	span.SetAttributes(attribute.Bool("mocker.enabled", ok))
	return ok, nil
}

// Start replaces any running playback with gpxData replayed at speed, or at
// the default speed when speed is nil.
func (s *Service) Start(ctx context.Context, gpxData string, speed *float64) (playback.Status, error) {
	ctx, span := s.tracer.Start(ctx, "mocker.Start")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	ok, err := s.provider.Available(ctx)
	if err != nil {
		return playback.Status{}, fail(span, newError(CodeCheckMockError, "failed to check mock location status", err))
	}
	if !ok {
		return playback.Status{}, fail(span, newError(CodeMockNotEnabled, "mock location is not enabled", nil))
	}

	track, err := gpx.Parse(gpxData)
	if err != nil {
		return playback.Status{}, fail(span, newError(CodeStartMockError, err.Error(), err))
	}

	v, err := s.speedOr(speed)
	if err != nil {
		return playback.Status{}, fail(span, err)
	}
	span.SetAttributes(
		attribute.Int("track.points", len(track)),
		attribute.Float64("playback.speed", v),
	)

	name, err := s.provider.Open(ctx)
	if err != nil {
		// the provider is gone, a running session has nothing left to inject into
		s.scheduler.Stop()
		return playback.Status{}, fail(span, newError(CodeStartMockError, "failed to open mock provider", err))
	}
	s.providerName.Store(name)
	span.SetAttributes(attribute.String("mocker.provider", name))

	status, err := s.scheduler.Start(track, v)
	if err != nil {
		s.closeProvider(ctx)
		return playback.Status{}, fail(span, newError(CodeStartMockError, err.Error(), err))
	}
	s.current = status.SessionID
	span.SetAttributes(attribute.String("playback.session", status.SessionID))
	return status, nil
}

// UpdateSpeed changes the speed from the next step on. It reports false when
// there is no session to apply it to.
func (s *Service) UpdateSpeed(ctx context.Context, speed *float64) (bool, error) {
	_, span := s.tracer.Start(ctx, "mocker.UpdateSpeed")
	defer span.End()

	v, err := s.speedOr(speed)
	if err != nil {
		return false, fail(span, err)
	}
	span.SetAttributes(attribute.Float64("playback.speed", v))

	ok, err := s.scheduler.UpdateSpeed(v)
	if err != nil {
		return false, fail(span, newError(CodeInvalidSpeed, err.Error(), err))
	}
	return ok, nil
}

// Stop ends playback and removes the mock provider.
func (s *Service) Stop(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "mocker.Stop")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.scheduler.Stop()
	if err := s.provider.Close(ctx); err != nil {
		return fail(span, newError(CodeStopMockError, "failed to remove mock provider", err))
	}
	return nil
}

func (s *Service) Pause(ctx context.Context) bool {
	_, span := s.tracer.Start(ctx, "mocker.Pause")
	defer span.End()

	ok := s.scheduler.Pause()
	span.SetAttributes(attribute.Bool("mocker.applied", ok))
	return ok
}

// Resume continues a paused session, at speed when given.
func (s *Service) Resume(ctx context.Context, speed *float64) (bool, error) {
	_, span := s.tracer.Start(ctx, "mocker.Resume")
	defer span.End()

	ok, err := s.scheduler.Resume(speed)
	if errors.Is(err, playback.ErrInvalidSpeed) {
		return false, fail(span, newError(CodeInvalidSpeed, err.Error(), err))
	}
	if err != nil {
		return false, fail(span, err)
	}
	span.SetAttributes(attribute.Bool("mocker.applied", ok))
	return ok, nil
}

func (s *Service) Status() StatusView {
	st := s.scheduler.Status()
	view := StatusView{Status: st}
	if st.State != playback.StateIdle {
		view.Provider = s.ProviderName()
	}
	return view
}

func (s *Service) speedOr(speed *float64) (float64, error) {
	if speed == nil {
		return s.defaultSpeed, nil
	}
	if !playback.ValidSpeed(*speed) {
		return 0, newError(CodeInvalidSpeed, playback.ErrInvalidSpeed.Error(), playback.ErrInvalidSpeed)
	}
	return *speed, nil
}

// releaseIfIdle closes the provider after session id ran to completion. A
// later Start owns the provider from then on, so a stale completion is ignored.
func (s *Service) releaseIfIdle(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id != s.current || s.scheduler.Status().State != playback.StateIdle {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	s.closeProvider(ctx)
}

// closeProvider removes the mock provider where no caller is left to report
// a failure to.
func (s *Service) closeProvider(ctx context.Context) {
	if err := s.provider.Close(ctx); err != nil {
		log.Printf("release mock provider %s: %v", s.ProviderName(), err)
	}
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// lifecycle releases the provider when playback completes on its own.
type lifecycle struct {
	svc *Service
}

func (lifecycle) Emit(playback.Event) {}

func (lifecycle) SessionStarted(string, int, float64) {}

func (l lifecycle) SessionEnded(id string, reason playback.EndReason) {
	if reason == playback.EndCompleted {
		l.svc.releaseIfIdle(id)
	}
}

package injector

import (
	"context"
	"log"

	"github.com/amrahmed242/location-mocker/internal/playback"
)

// LogInjector is used when no location store is configured: fixes are only
// written to the log.
type LogInjector struct {
	enabled  bool
	provider string
}

func NewLogInjector(enabled bool, provider string) *LogInjector {
	return &LogInjector{enabled: enabled, provider: provider}
}

func (l *LogInjector) Available(context.Context) (bool, error) {
	return l.enabled, nil
}

func (l *LogInjector) Open(context.Context) (string, error) {
	return l.provider, nil
}

func (l *LogInjector) Close(context.Context) error {
	return nil
}

func (l *LogInjector) Inject(_ context.Context, fix playback.Fix) error {
	log.Printf("mock fix provider=%s lat=%.6f lon=%.6f alt=%.1f", l.provider, fix.Latitude, fix.Longitude, fix.Altitude)
	return nil
}

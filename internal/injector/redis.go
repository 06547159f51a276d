// Package injector projects emitted fixes into the host location store.
package injector

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/amrahmed242/location-mocker/internal/playback"

	"github.com/redis/go-redis/v9"
)

const (
	locationsKey     = "mocker:locations"
	FallbackProvider = "mock_gps_provider"
)

var ErrProviderClosed = errors.New("mock provider is not open")

// RedisInjector keeps the latest fix of a mock provider in Redis: its position
// in a geo set, its full fix in a hash.
type RedisInjector struct {
	rdb     *redis.Client
	enabled bool

	// registerFn is swapped in tests to force the fallback path.
	registerFn func(ctx context.Context, name string) error

	mu       sync.Mutex
	provider string
	name     string
	open     bool
}

func NewRedisInjector(rdb *redis.Client, enabled bool, provider string) *RedisInjector {
	r := &RedisInjector{
		rdb:      rdb,
		enabled:  enabled,
		provider: provider,
	}
	r.registerFn = r.register
	return r
}

func providerKey(provider string) string {
	return "mocker:provider:" + provider
}

func fixKey(provider string) string {
	return "mocker:fix:" + provider
}

// Available reports whether mock fixes can be injected: the feature must be
// enabled and the store must accept a throwaway test provider.
func (r *RedisInjector) Available(ctx context.Context) (bool, error) {
	if !r.enabled {
		return false, nil
	}

	probe := providerKey("test_provider_" + strconv.FormatInt(time.Now().UnixMilli(), 10))
	if err := r.rdb.HSet(ctx, probe, "enabled", true).Err(); err != nil {
		return false, err
	}
	if err := r.rdb.Del(ctx, probe).Err(); err != nil {
		return false, err
	}
	return true, nil
}

// Open registers the mock provider, clearing whatever an earlier run left
// behind. When the configured provider cannot be registered it falls back to
// FallbackProvider. It returns the provider name in use.
func (r *RedisInjector) Open(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.open {
		_ = r.remove(ctx, r.name)
	}
	r.open = false
	// ignore errors: the provider might not exist yet
	_ = r.remove(ctx, r.provider)

	err := r.registerFn(ctx, r.provider)
	if err == nil {
		r.name, r.open = r.provider, true
		return r.name, nil
	}

	if ferr := r.registerFn(ctx, FallbackProvider); ferr != nil {
		return "", fmt.Errorf("failed to create test provider: %w", ferr)
	}
	r.name, r.open = FallbackProvider, true
	return r.name, nil
}

// Close disables and removes the provider registered by Open.
func (r *RedisInjector) Close(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.open {
		return nil
	}
	r.open = false
	return r.remove(ctx, r.name)
}

func (r *RedisInjector) register(ctx context.Context, name string) error {
	return r.rdb.HSet(ctx, providerKey(name), map[string]any{
		"enabled":           true,
		"supports_altitude": true,
		"supports_speed":    true,
		"supports_bearing":  true,
		"accuracy":          "fine",
		"power":             "low",
	}).Err()
}

func (r *RedisInjector) remove(ctx context.Context, name string) error {
	pipe := r.rdb.TxPipeline()
	pipe.Del(ctx, providerKey(name), fixKey(name))
	pipe.ZRem(ctx, locationsKey, name)
	_, err := pipe.Exec(ctx)
	return err
}

// Inject stores fix as the provider's current location. It holds the lock
// for the whole write so a concurrent Close cannot be undone by it.
func (r *RedisInjector) Inject(ctx context.Context, fix playback.Fix) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.open {
		return ErrProviderClosed
	}
	name := r.name

	fields := map[string]any{
		"latitude":               fix.Latitude,
		"longitude":              fix.Longitude,
		"altitude":               fix.Altitude,
		"time":                   fix.Time.UnixMilli(),
		"elapsed_realtime_nanos": fix.Elapsed.Nanoseconds(),
		"accuracy":               fix.Accuracy,
		"bearing_accuracy":       fix.BearingAccuracy,
		"speed_accuracy":         fix.SpeedAccuracy,
		"vertical_accuracy":      fix.VerticalAccuracy,
		"mock":                   fix.Mock,
	}

	pipe := r.rdb.TxPipeline()
	pipe.GeoAdd(ctx, locationsKey, &redis.GeoLocation{
		Name:      name,
		Longitude: fix.Longitude,
		Latitude:  fix.Latitude,
	})
	if fix.Bearing != nil {
		fields["bearing"] = *fix.Bearing
	} else {
		pipe.HDel(ctx, fixKey(name), "bearing")
	}
	pipe.HSet(ctx, fixKey(name), fields)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisInjector) MarksMock() bool { return true }

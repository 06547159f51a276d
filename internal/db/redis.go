package db

import (
	"time"

	"github.com/amrahmed242/location-mocker/internal/config"

	"github.com/redis/go-redis/v9"
)

// Every emitted point is written on the delivery goroutine, so a slow store
// must fail fast instead of holding up the next point.
const (
	redisDialTimeout = 2 * time.Second
	redisIOTimeout   = 500 * time.Millisecond
)

// ConnectRedis returns nil when no address is configured; callers then run
// with a log-only injector and a local stream hub.
func ConnectRedis(cfg config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}

	return redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		ClientName:   cfg.OTELServiceName,
		DialTimeout:  redisDialTimeout,
		ReadTimeout:  redisIOTimeout,
		WriteTimeout: redisIOTimeout,
	})
}

package server

import (
	"context"
	"log"

	"github.com/amrahmed242/location-mocker/internal/auth"
	"github.com/amrahmed242/location-mocker/internal/config"
	"github.com/amrahmed242/location-mocker/internal/injector"
	"github.com/amrahmed242/location-mocker/internal/mocker"
	"github.com/amrahmed242/location-mocker/internal/playback"
	"github.com/amrahmed242/location-mocker/internal/storage"
	"github.com/amrahmed242/location-mocker/internal/stream"
	"github.com/amrahmed242/location-mocker/internal/tracking"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	App        *fiber.App
	Cfg        config.Config
	DB         *pgxpool.Pool
	Redis      *redis.Client
	Stream     *stream.Hub
	Dispatcher *playback.Dispatcher
	Mocker     *mocker.Service
	History    *tracking.Service
	Tracks     *storage.Service
}

func NewServer(cfg config.Config, db *pgxpool.Pool, redisClient *redis.Client) *Server {
	app := fiber.New()
	app.Use(recover.New())
	app.Use(logger.New())

	s := &Server{
		App:        app,
		Cfg:        cfg,
		DB:         db,
		Redis:      redisClient,
		Stream:     stream.NewHub(redisClient),
		Dispatcher: playback.NewDispatcher(),
	}

	var provider mocker.Provider
	if redisClient != nil {
		provider = injector.NewRedisInjector(redisClient, cfg.MockLocationEnabled, cfg.MockProvider)
	} else {
		provider = injector.NewLogInjector(cfg.MockLocationEnabled, cfg.MockProvider)
	}

	sinks := []playback.Sink{s.Stream}
	if db != nil {
		s.History = tracking.NewService(db)
		s.Tracks = storage.NewService(db)
		sinks = append(sinks, tracking.NewRecorder(s.History, func() string { return s.Mocker.ProviderName() }))
	}

	s.Mocker = mocker.NewService(provider, s.Dispatcher, sinks, mocker.Options{
		DefaultSpeed: cfg.DefaultPlaybackSpeed,
		Accuracy:     cfg.MockAccuracyM,
	})

	registerRoutes(s)
	return s
}

func registerRoutes(s *Server) {
	s.App.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "playback": s.Mocker.Status().State})
	})

	jwtMiddleware := auth.JWTMiddleware(s.Cfg.JWTSecret)

	var tracks mocker.TrackSource
	if s.Tracks != nil {
		tracks = s.Tracks
		storage.RegisterRoutes(s.App.Group("/tracks"), s.Tracks, jwtMiddleware)
	}
	mocker.RegisterRoutes(s.App.Group("/mocker"), s.Mocker, jwtMiddleware, tracks)
	stream.RegisterRoutes(s.App.Group("/stream"), s.Stream)
	if s.History != nil {
		tracking.RegisterRoutes(s.App.Group("/history"), s.History)
	}
}

// Close stops playback, flushes pending deliveries and drops the hub's
// subscription. The HTTP app is shut down by the caller.
func (s *Server) Close(ctx context.Context) {
	if err := s.Mocker.Stop(ctx); err != nil {
		log.Printf("stop playback: %v", err)
	}
	s.Dispatcher.Close()
	if err := s.Stream.Close(); err != nil {
		log.Printf("close stream hub: %v", err)
	}
}

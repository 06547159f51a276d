package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amrahmed242/location-mocker/internal/config"
	"github.com/amrahmed242/location-mocker/internal/db"
	"github.com/amrahmed242/location-mocker/internal/platform/otel"
	"github.com/amrahmed242/location-mocker/internal/server"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	initLogging()
	mainRunner(mainDepsProvider())
}

func initLogging() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
}

type mainDeps struct {
	loadConfig      func() config.Config
	setupTracing    func(context.Context, config.Config) (func(context.Context) error, error)
	connectPostgres func(config.Config) (*pgxpool.Pool, error)
	migrate         func(context.Context, db.Querier) error
	connectRedis    func(config.Config) *redis.Client
	notify          func(chan<- os.Signal, ...os.Signal)
	run             func(context.Context, config.Config, *pgxpool.Pool, *redis.Client, <-chan os.Signal, ListenFunc) error
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig:      config.Load,
		setupTracing:    otel.Setup,
		connectPostgres: db.ConnectPostgres,
		migrate:         db.Migrate,
		connectRedis:    db.ConnectRedis,
		notify:          signal.Notify,
		run:             Run,
	}
}

func realMain(deps mainDeps) {
	ctx := context.Background()
	cfg := deps.loadConfig()

	shutdownTracing, err := deps.setupTracing(ctx, cfg)
	if err != nil {
		log.Printf("tracing setup failed: %v", err)
	}
	if shutdownTracing != nil {
		defer func() {
			if err := shutdownTracing(ctx); err != nil {
				log.Printf("tracing shutdown failed: %v", err)
			}
		}()
	}

	// history is optional: playback runs without postgres
	pg, err := deps.connectPostgres(cfg)
	if err != nil {
		log.Printf("postgres connection failed, replay history disabled: %v", err)
		pg = nil
	} else if err := deps.migrate(ctx, pg); err != nil {
		log.Printf("postgres migration failed, replay history disabled: %v", err)
		pg.Close()
		pg = nil
	}

	rdb := deps.connectRedis(cfg)

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := deps.run(ctx, cfg, pg, rdb, signals, nil); err != nil {
		log.Printf("server exited with error: %v", err)
	}
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

var shutdownFn = func(app *fiber.App, ctx context.Context) error {
	return app.ShutdownWithContext(ctx)
}

// Run starts the HTTP server and waits for termination signals. On the way
// out it stops any playback before closing the stores.
func Run(ctx context.Context, cfg config.Config, pg *pgxpool.Pool, rdb *redis.Client, signals <-chan os.Signal, listen ListenFunc) error {
	srv := server.NewServer(cfg, pg, rdb)

	if listen == nil {
		listen = defaultListen
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, cfg.ServerPort)
	}()

	select {
	case <-signals:
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			srv.Close(context.Background())
			closeStores(pg, rdb)
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := shutdownFn(srv.App, shutdownCtx)
	srv.Close(shutdownCtx)
	closeStores(pg, rdb)
	return err
}

func closeStores(pg *pgxpool.Pool, rdb *redis.Client) {
	if pg != nil {
		pg.Close()
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			log.Printf("redis close failed: %v", err)
		}
	}
}

package db

import (
	"context"
	"time"

	"github.com/amrahmed242/location-mocker/internal/config"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is what the history and track stores need from PostgreSQL.
// *pgxpool.Pool satisfies it, and so do pgxmock pools in tests.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var (
	newPoolFn  = pgxpool.New
	pingPoolFn = func(ctx context.Context, pool *pgxpool.Pool) error { return pool.Ping(ctx) }
)

func ConnectPostgres(cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := newPoolFn(ctx, cfg.PostgresURL)
	if err != nil {
		return nil, err
	}
	if err := pingPoolFn(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS replay_runs (
	id          TEXT PRIMARY KEY,
	provider    TEXT NOT NULL DEFAULT '',
	point_total INTEGER NOT NULL,
	speed       DOUBLE PRECISION NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	ended_at    TIMESTAMPTZ,
	end_reason  TEXT,
	distance_m  DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS replay_points (
	id          BIGSERIAL PRIMARY KEY,
	run_id      TEXT NOT NULL REFERENCES replay_runs(id) ON DELETE CASCADE,
	idx         INTEGER NOT NULL,
	lat         DOUBLE PRECISION NOT NULL,
	lon         DOUBLE PRECISION NOT NULL,
	elevation_m DOUBLE PRECISION,
	point_time  TEXT,
	emitted_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS replay_points_run_idx ON replay_points (run_id, idx);

CREATE TABLE IF NOT EXISTS replay_tracks (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	point_count INTEGER NOT NULL,
	document    TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Migrate creates the replay history and track library tables when they are
// missing.
func Migrate(ctx context.Context, q Querier) error {
	_, err := q.Exec(ctx, schema)
	return err
}

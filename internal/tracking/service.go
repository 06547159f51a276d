// Package tracking keeps an audit history of playback runs in Postgres.
package tracking

import (
	"context"
	"errors"
	"time"

	"github.com/amrahmed242/location-mocker/internal/db"
	"github.com/amrahmed242/location-mocker/internal/shared/geo"

	"github.com/jackc/pgx/v5"
)

var ErrRunNotFound = errors.New("replay run not found")

type Service struct {
	db  db.Querier
	now func() time.Time
}

func NewService(q db.Querier) *Service {
	return &Service{db: q, now: time.Now}
}

func (s *Service) StartRun(ctx context.Context, input Run) (Run, error) {
	if input.StartedAt.IsZero() {
		input.StartedAt = s.now()
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO replay_runs (id, provider, point_total, speed, started_at)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING started_at
	`, input.ID, input.Provider, input.PointTotal, input.Speed, input.StartedAt)
	if err := row.Scan(&input.StartedAt); err != nil {
		return Run{}, err
	}
	return input, nil
}

// RecordPoint appends an emitted point and adds the leg from the previous
// point to the run's distance.
func (s *Service) RecordPoint(ctx context.Context, runID string, input Point) (Point, error) {
	if input.EmittedAt.IsZero() {
		input.EmittedAt = s.now()
	}

	var lastLat, lastLon float64
	hasLast := true
	err := s.db.QueryRow(ctx, `
		SELECT lat, lon
		FROM replay_points
		WHERE run_id=$1
		ORDER BY idx DESC
		LIMIT 1
	`, runID).Scan(&lastLat, &lastLon)
	if errors.Is(err, pgx.ErrNoRows) {
		hasLast = false
	} else if err != nil {
		return Point{}, err
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO replay_points (run_id, idx, lat, lon, elevation_m, point_time, emitted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id
	`, runID, input.Index, input.Lat, input.Lon, input.ElevationM, nullText(input.PointTime), input.EmittedAt)
	if err := row.Scan(&input.ID); err != nil {
		return Point{}, err
	}
	input.RunID = runID

	if hasLast {
		deltaM := geo.HaversineKm(lastLat, lastLon, input.Lat, input.Lon) * 1000
		if _, err := s.db.Exec(ctx, `
			UPDATE replay_runs
			SET distance_m = distance_m + $2
			WHERE id=$1
		`, runID, deltaM); err != nil {
			return Point{}, err
		}
	}
	return input, nil
}

func (s *Service) FinishRun(ctx context.Context, runID, reason string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE replay_runs
		SET ended_at=$2, end_reason=$3
		WHERE id=$1 AND ended_at IS NULL
	`, runID, s.now(), reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRunNotFound
	}
	return nil
}

func (s *Service) Run(ctx context.Context, runID string) (Run, error) {
	var run Run
	var reason *string
	row := s.db.QueryRow(ctx, `
		SELECT id, provider, point_total, speed, started_at, ended_at, end_reason, distance_m
		FROM replay_runs WHERE id=$1
	`, runID)
	err := row.Scan(&run.ID, &run.Provider, &run.PointTotal, &run.Speed, &run.StartedAt, &run.EndedAt, &reason, &run.DistanceM)
	if errors.Is(err, pgx.ErrNoRows) {
		return Run{}, ErrRunNotFound
	}
	if err != nil {
		return Run{}, err
	}
	if reason != nil {
		run.EndReason = *reason
	}
	return run, nil
}

func (s *Service) Summary(ctx context.Context, runID string) (Summary, error) {
	run, err := s.Run(ctx, runID)
	if err != nil {
		return Summary{}, err
	}

	var pointCount int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM replay_points WHERE run_id=$1`, runID).Scan(&pointCount); err != nil {
		return Summary{}, err
	}

	status := "active"
	duration := s.now().Sub(run.StartedAt)
	if run.EndedAt != nil {
		status = run.EndReason
		duration = run.EndedAt.Sub(run.StartedAt)
	}
	avgSpeed := 0.0
	if duration.Seconds() > 0 {
		avgSpeed = run.DistanceM / duration.Seconds()
	}

	return Summary{
		RunID:        run.ID,
		Status:       status,
		PointCount:   pointCount,
		PointTotal:   run.PointTotal,
		DistanceM:    run.DistanceM,
		DurationSec:  int64(duration.Seconds()),
		AverageSpeed: avgSpeed,
	}, nil
}

func (s *Service) Points(ctx context.Context, runID string) ([]Point, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, run_id, idx, lat, lon, elevation_m, COALESCE(point_time,''), emitted_at
		FROM replay_points WHERE run_id=$1
		ORDER BY idx
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	points := []Point{}
	for rows.Next() {
		var p Point
		if err := rows.Scan(&p.ID, &p.RunID, &p.Index, &p.Lat, &p.Lon, &p.ElevationM, &p.PointTime, &p.EmittedAt); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// Recent lists the latest runs, newest first.
func (s *Service) Recent(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, provider, point_total, speed, started_at, ended_at, COALESCE(end_reason,''), distance_m
		FROM replay_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Provider, &r.PointTotal, &r.Speed, &r.StartedAt, &r.EndedAt, &r.EndReason, &r.DistanceM); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// nullText stores an empty string as NULL.
func nullText(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

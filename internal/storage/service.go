// Package storage is a small library of GPX tracks kept in Postgres.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/amrahmed242/location-mocker/internal/db"
	"github.com/amrahmed242/location-mocker/internal/gpx"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrTrackNotFound = errors.New("track not found")

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

// SaveTrack stores document after checking that it parses to a playable track.
func (s *Service) SaveTrack(ctx context.Context, name, document string) (Track, error) {
	track, err := gpx.Parse(document)
	if err != nil {
		return Track{}, err
	}

	t := Track{
		ID:         uuid.NewString(),
		Name:       name,
		PointCount: len(track),
		SizeBytes:  len(document),
	}
	row := s.db.QueryRow(ctx, `
		INSERT INTO replay_tracks (id, name, point_count, document)
		VALUES ($1,$2,$3,$4)
		RETURNING created_at
	`, t.ID, t.Name, t.PointCount, document)
	if err := row.Scan(&t.CreatedAt); err != nil {
		return Track{}, fmt.Errorf("save track: %w", err)
	}
	return t, nil
}

// Document returns the raw GPX of a stored track.
func (s *Service) Document(ctx context.Context, id string) (string, error) {
	var document string
	err := s.db.QueryRow(ctx, `SELECT document FROM replay_tracks WHERE id=$1`, id).Scan(&document)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrTrackNotFound
	}
	return document, err
}

func (s *Service) List(ctx context.Context) ([]Track, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, point_count, octet_length(document), created_at
		FROM replay_tracks
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tracks := []Track{}
	for rows.Next() {
		var t Track
		if err := rows.Scan(&t.ID, &t.Name, &t.PointCount, &t.SizeBytes, &t.CreatedAt); err != nil {
			return nil, err
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

func (s *Service) Delete(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM replay_tracks WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTrackNotFound
	}
	return nil
}

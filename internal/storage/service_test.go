package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amrahmed242/location-mocker/internal/gpx"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
)

const twoPoints = `<gpx><trk><trkseg>
<trkpt lat="47.0" lon="8.0"/>
<trkpt lat="47.1" lon="8.1"/>
</trkseg></trk></gpx>`

var errStore = errors.New("store error")

func newMockService(t *testing.T) (*Service, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	t.Cleanup(mock.Close)
	return NewService(mock), mock
}

func TestSaveTrack(t *testing.T) {
	svc, mock := newMockService(t)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO replay_tracks`).
		WithArgs(pgxmock.AnyArg(), "alps", 2, twoPoints).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(now))

	track, err := svc.SaveTrack(context.Background(), "alps", twoPoints)
	if err != nil {
		t.Fatalf("save track: %v", err)
	}
	if track.ID == "" || track.PointCount != 2 || track.SizeBytes != len(twoPoints) {
		t.Fatalf("unexpected track %+v", track)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSaveTrackRejectsUnplayable(t *testing.T) {
	svc, _ := newMockService(t)

	if _, err := svc.SaveTrack(context.Background(), "bad", "<gpx>"); !errors.Is(err, gpx.ErrMalformedDocument) {
		t.Fatalf("expected malformed document, got %v", err)
	}
	if _, err := svc.SaveTrack(context.Background(), "empty", "<gpx></gpx>"); !errors.Is(err, gpx.ErrEmptyTrack) {
		t.Fatalf("expected empty track, got %v", err)
	}
}

func TestSaveTrackError(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery(`INSERT INTO replay_tracks`).WillReturnError(errStore)

	if _, err := svc.SaveTrack(context.Background(), "alps", twoPoints); !errors.Is(err, errStore) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestDocument(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery(`SELECT document FROM replay_tracks`).
		WithArgs("track-1").
		WillReturnRows(pgxmock.NewRows([]string{"document"}).AddRow(twoPoints))
	mock.ExpectQuery(`SELECT document FROM replay_tracks`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	doc, err := svc.Document(context.Background(), "track-1")
	if err != nil || doc != twoPoints {
		t.Fatalf("document: %q %v", doc, err)
	}
	if _, err := svc.Document(context.Background(), "missing"); !errors.Is(err, ErrTrackNotFound) {
		t.Fatalf("expected ErrTrackNotFound, got %v", err)
	}
}

func TestListAndDelete(t *testing.T) {
	svc, mock := newMockService(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT id, name, point_count, octet_length\(document\), created_at`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "point_count", "size", "created_at"}).
			AddRow("track-1", "alps", 2, 120, now))

	tracks, err := svc.List(context.Background())
	if err != nil || len(tracks) != 1 || tracks[0].Name != "alps" {
		t.Fatalf("list: %v %v", tracks, err)
	}

	mock.ExpectExec(`DELETE FROM replay_tracks`).
		WithArgs("track-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM replay_tracks`).
		WithArgs("track-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	if err := svc.Delete(context.Background(), "track-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := svc.Delete(context.Background(), "track-1"); !errors.Is(err, ErrTrackNotFound) {
		t.Fatalf("expected ErrTrackNotFound, got %v", err)
	}
}

func TestListError(t *testing.T) {
	svc, mock := newMockService(t)

	mock.ExpectQuery(`FROM replay_tracks`).WillReturnError(errStore)

	if _, err := svc.List(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

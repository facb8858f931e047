package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/coldspot-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return newPostgresWithPool(mock, "", ""), mock
}

func TestPostgresStore_Defaults(t *testing.T) {
	s, _ := newMockPostgresStore(t)
	assert.Equal(t, `"public"."cold_spots"`, s.qualified())
	assert.Equal(t, `"public"."coldspot_runs"`, s.runLog())
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE SCHEMA IF NOT EXISTS "public"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Migrate_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS`).WillReturnError(errors.New("permission denied"))

	err := s.Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: migrate")
}

func TestPostgresStore_ReplaceColdSpots(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	rows := []model.ClassifiedDistrict{
		classified("1", "용산구", "한식음식점", 300, true),
		classified("2", "마포구", "한식음식점", 300, false),
	}

	mock.ExpectBegin()
	mock.ExpectExec(`TRUNCATE TABLE "public"."cold_spots"`).WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"public", "cold_spots"}, insertColumns()).WillReturnResult(2)
	mock.ExpectCommit()

	n, err := s.ReplaceColdSpots(context.Background(), rows, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplaceColdSpots_CopyFailsRollsBack(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`TRUNCATE TABLE`).WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"public", "cold_spots"}, insertColumns()).WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := s.ReplaceColdSpots(context.Background(), []model.ClassifiedDistrict{
		classified("1", "용산구", "한식음식점", 300, true),
	}, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO public.cold_spots")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplaceColdSpots_BeginFails(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	_, err := s.ReplaceColdSpots(context.Background(), nil, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin tx")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReplaceColdSpots_EmptyBatchTruncates(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`TRUNCATE TABLE`).WillReturnResult(pgxmock.NewResult("TRUNCATE", 0))
	mock.ExpectCommit()

	n, err := s.ReplaceColdSpots(context.Background(), nil, time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Recommend(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	want := classified("7", "용산구", "한식음식점", 700, true)

	values := make([]any, 0, len(selectColumns()))
	for _, dest := range scanDest(&want) {
		switch v := dest.(type) {
		case *string:
			values = append(values, *v)
		case **float64:
			values = append(values, *v)
		case **int64:
			values = append(values, *v)
		case *float64:
			values = append(values, *v)
		case *bool:
			values = append(values, *v)
		}
	}
	require.Len(t, values, len(selectColumns()))

	mock.ExpectQuery(`SELECT .* FROM "public"."cold_spots" WHERE is_cold_spot = \$1 AND region_name LIKE \$2 ESCAPE '\\' ORDER BY sales_17_21 DESC, district_name, industry_code LIMIT \$3`).
		WithArgs(true, "%용산%", 10).
		WillReturnRows(pgxmock.NewRows(selectColumns()).AddRow(values...))

	got, err := s.Recommend(context.Background(), RecommendFilter{Region: "용산", Bucket: model.Bucket1721})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "7", got[0].DistrictCode)
	assert.Equal(t, "용산구", got[0].RegionName)
	assert.True(t, got[0].IsColdSpot)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Summarize(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\), COALESCE\(SUM`).
		WillReturnRows(pgxmock.NewRows([]string{"count", "cold"}).AddRow(int64(10), int64(4)))
	mock.ExpectQuery(`GROUP BY region_name`).WithArgs(5).
		WillReturnRows(pgxmock.NewRows([]string{"region_name", "count", "cold"}).
			AddRow("용산구", int64(6), int64(3)).
			AddRow("마포구", int64(4), int64(1)))
	mock.ExpectQuery(`GROUP BY industry_name`).WithArgs(5).
		WillReturnRows(pgxmock.NewRows([]string{"industry_name", "count", "cold"}).
			AddRow("한식음식점", int64(10), int64(4)))

	sum, err := s.Summarize(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(10), sum.Total)
	assert.Equal(t, int64(4), sum.ColdSpots)
	assert.InDelta(t, 0.4, sum.ColdRatio, 1e-9)
	assert.Len(t, sum.Regions, 2)
	assert.Equal(t, "한식음식점", sum.Industries[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RunLog(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ctx := context.Background()

	mock.ExpectExec(`INSERT INTO "public"."coldspot_runs"`).
		WithArgs(pgxmock.AnyArg(), "running", "default", "conversion<5000", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	run, err := s.StartRun(ctx, "default", "conversion<5000")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)

	mock.ExpectExec(`UPDATE "public"."coldspot_runs" SET status = \$1, completed_at`).
		WithArgs("complete", pgxmock.AnyArg(), int64(3), int64(2), int64(1), int64(1), run.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, s.CompleteRun(ctx, run.ID, model.RunResult{Merged: 3, Classified: 2, Rejected: 1, ColdSpots: 1}))

	mock.ExpectExec(`UPDATE "public"."coldspot_runs" SET status = \$1, completed_at = \$2, error`).
		WithArgs("failed", pgxmock.AnyArg(), "boom", "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	err = s.FailRun(ctx, "missing", "boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")

	started := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`SELECT id, status, preset, thresholds, started_at, completed_at`).
		WithArgs(20).
		WillReturnRows(pgxmock.NewRows([]string{"id", "status", "preset", "thresholds", "started_at", "completed_at", "merged", "classified", "rejected", "cold_spots", "error"}).
			AddRow(run.ID, "complete", "default", "conversion<5000", started, &started, int64(3), int64(2), int64(1), int64(1), ""))
	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, model.RunStatusComplete, runs[0].Status)
	assert.Equal(t, started, runs[0].StartedAt)
	require.NotNil(t, runs[0].CompletedAt)
	assert.Equal(t, int64(1), runs[0].ColdSpots)

	assert.NoError(t, mock.ExpectationsWereMet())
}

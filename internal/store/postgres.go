package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/coldspot-cli/internal/db"
	"github.com/sells-group/coldspot-cli/internal/model"
)

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	pool   db.Pool
	schema string
	table  string
}

// NewPostgres connects to Postgres. Empty schema and table fall back to
// public.cold_spots.
func NewPostgres(ctx context.Context, connString string, maxConns int32, schema, table string) (*PostgresStore, error) {
	pool, err := db.Open(ctx, connString, maxConns)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return newPostgresWithPool(pool, schema, table), nil
}

func newPostgresWithPool(pool db.Pool, schema, table string) *PostgresStore {
	if schema == "" {
		schema = DefaultSchema
	}
	if table == "" {
		table = DefaultTable
	}
	return &PostgresStore{pool: pool, schema: schema, table: table}
}

func pgPlaceholder(n int) string { return "$" + strconv.Itoa(n) }

func (s *PostgresStore) qualified() string { return db.QualifiedName(s.schema, s.table) }

func (s *PostgresStore) runLog() string { return db.QualifiedName(s.schema, RunLogTable) }

func (s *PostgresStore) Migrate(ctx context.Context) error {
	ddl := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s;\n", quoteIdent(s.schema)) +
		districtDDL(s.qualified(), s.table, true) +
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	id           TEXT PRIMARY KEY,
	status       TEXT NOT NULL,
	preset       TEXT NOT NULL DEFAULT '',
	thresholds   TEXT NOT NULL DEFAULT '',
	started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ,
	merged       BIGINT NOT NULL DEFAULT 0,
	classified   BIGINT NOT NULL DEFAULT 0,
	rejected     BIGINT NOT NULL DEFAULT 0,
	cold_spots   BIGINT NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS %s ON %s (started_at DESC);
`, s.runLog(), quoteIdent("idx_"+RunLogTable+"_started_at"), s.runLog())

	_, err := s.pool.Exec(ctx, ddl)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// ReplaceColdSpots truncates the table and COPYs rows in one transaction.
func (s *PostgresStore) ReplaceColdSpots(ctx context.Context, rows []model.ClassifiedDistrict, loadedAt time.Time) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: replace: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, "TRUNCATE TABLE "+s.qualified()); err != nil {
		return 0, eris.Wrapf(err, "postgres: replace: truncate %s", s.table)
	}

	values := make([][]any, len(rows))
	for i := range rows {
		values[i] = rowValues(&rows[i], loadedAt)
	}
	n, err := db.CopyFromSchema(ctx, tx, s.schema, s.table, insertColumns(), values)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: replace")
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: replace: commit")
	}
	return n, nil
}

func (s *PostgresStore) Recommend(ctx context.Context, filter RecommendFilter) ([]model.ClassifiedDistrict, error) {
	q, args := recommendQuery(s.qualified(), filter, pgPlaceholder)
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: recommend")
	}
	defer rows.Close()

	var out []model.ClassifiedDistrict
	for rows.Next() {
		var d model.ClassifiedDistrict
		if err := rows.Scan(scanDest(&d)...); err != nil {
			return nil, eris.Wrap(err, "postgres: recommend scan")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "postgres: recommend iterate")
}

func (s *PostgresStore) Summarize(ctx context.Context, top int) (*model.Summary, error) {
	var sum model.Summary
	if err := s.pool.QueryRow(ctx, totalsQuery(s.qualified())).Scan(&sum.Total, &sum.ColdSpots); err != nil {
		return nil, eris.Wrap(err, "postgres: summarize totals")
	}
	sum.ColdRatio = coldRatio(sum.Total, sum.ColdSpots)

	var err error
	if sum.Regions, err = s.groupCounts(ctx, "region_name", top); err != nil {
		return nil, err
	}
	if sum.Industries, err = s.groupCounts(ctx, "industry_name", top); err != nil {
		return nil, err
	}
	return &sum, nil
}

func (s *PostgresStore) groupCounts(ctx context.Context, col string, top int) ([]model.GroupCount, error) {
	if top <= 0 {
		top = defaultRecLimit
	}
	rows, err := s.pool.Query(ctx, groupQuery(s.qualified(), col, "$1"), top)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: summarize %s", col)
	}
	defer rows.Close()

	var out []model.GroupCount
	for rows.Next() {
		var g model.GroupCount
		if err := rows.Scan(&g.Name, &g.Total, &g.Cold); err != nil {
			return nil, eris.Wrapf(err, "postgres: summarize %s scan", col)
		}
		out = append(out, g)
	}
	return out, eris.Wrapf(rows.Err(), "postgres: summarize %s iterate", col)
}

func (s *PostgresStore) StartRun(ctx context.Context, preset, thresholds string) (*model.Run, error) {
	run := &model.Run{
		ID:         uuid.New().String(),
		Status:     model.RunStatusRunning,
		Preset:     preset,
		Thresholds: thresholds,
		StartedAt:  time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (id, status, preset, thresholds, started_at) VALUES ($1, $2, $3, $4, $5)`, s.runLog()),
		run.ID, string(run.Status), run.Preset, run.Thresholds, run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: start run")
	}
	return run, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, result model.RunResult) error {
	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET status = $1, completed_at = $2, merged = $3, classified = $4, rejected = $5, cold_spots = $6 WHERE id = $7`, s.runLog()),
		string(model.RunStatusComplete), time.Now().UTC(),
		result.Merged, result.Classified, result.Rejected, result.ColdSpots, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, message string) error {
	tag, err := s.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET status = $1, completed_at = $2, error = $3 WHERE id = $4`, s.runLog()),
		string(model.RunStatusFailed), time.Now().UTC(), message, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = defaultRunLimit
	}
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT id, status, preset, thresholds, started_at, completed_at, merged, classified, rejected, cold_spots, error FROM %s ORDER BY started_at DESC LIMIT $1`, s.runLog()),
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var r model.Run
		var status string
		if err := rows.Scan(&r.ID, &status, &r.Preset, &r.Thresholds, &r.StartedAt, &r.CompletedAt,
			&r.Merged, &r.Classified, &r.Rejected, &r.ColdSpots, &r.Error); err != nil {
			return nil, eris.Wrap(err, "postgres: list runs scan")
		}
		r.Status = model.RunStatus(status)
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

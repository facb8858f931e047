package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/coldspot-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db    *sql.DB
	table string
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn, table string) (*SQLiteStore, error) {
	if table == "" {
		table = DefaultTable
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, table: table}, nil
}

func litePlaceholder(int) string { return "?" }

func (s *SQLiteStore) qualified() string { return quoteIdent(s.table) }

const sqliteRunLog = `
CREATE TABLE IF NOT EXISTS coldspot_runs (
	id           TEXT PRIMARY KEY,
	status       TEXT NOT NULL,
	preset       TEXT NOT NULL DEFAULT '',
	thresholds   TEXT NOT NULL DEFAULT '',
	started_at   DATETIME NOT NULL,
	completed_at DATETIME,
	merged       INTEGER NOT NULL DEFAULT 0,
	classified   INTEGER NOT NULL DEFAULT 0,
	rejected     INTEGER NOT NULL DEFAULT 0,
	cold_spots   INTEGER NOT NULL DEFAULT 0,
	error        TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_coldspot_runs_started_at ON coldspot_runs(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, districtDDL(s.qualified(), s.table, false)+sqliteRunLog)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ReplaceColdSpots deletes every row and inserts the batch in one transaction.
func (s *SQLiteStore) ReplaceColdSpots(ctx context.Context, rows []model.ClassifiedDistrict, loadedAt time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: replace: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+s.qualified()); err != nil {
		return 0, eris.Wrapf(err, "sqlite: replace: clear %s", s.table)
	}

	cols := insertColumns()
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.qualified(), strings.Join(cols, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")))
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: replace: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	for i := range rows {
		if _, err := stmt.ExecContext(ctx, liteArgs(rowValues(&rows[i], loadedAt.UTC()))...); err != nil {
			return 0, eris.Wrapf(err, "sqlite: replace: insert row %d", i)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: replace: commit")
	}
	return int64(len(rows)), nil
}

func (s *SQLiteStore) Recommend(ctx context.Context, filter RecommendFilter) ([]model.ClassifiedDistrict, error) {
	q, args := recommendQuery(s.qualified(), filter, litePlaceholder)
	rows, err := s.db.QueryContext(ctx, q, liteArgs(args)...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: recommend")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ClassifiedDistrict
	for rows.Next() {
		var d model.ClassifiedDistrict
		if err := rows.Scan(scanDest(&d)...); err != nil {
			return nil, eris.Wrap(err, "sqlite: recommend scan")
		}
		out = append(out, d)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: recommend iterate")
}

func (s *SQLiteStore) Summarize(ctx context.Context, top int) (*model.Summary, error) {
	var sum model.Summary
	if err := s.db.QueryRowContext(ctx, totalsQuery(s.qualified())).Scan(&sum.Total, &sum.ColdSpots); err != nil {
		return nil, eris.Wrap(err, "sqlite: summarize totals")
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

func (s *SQLiteStore) groupCounts(ctx context.Context, col string, top int) ([]model.GroupCount, error) {
	if top <= 0 {
		top = defaultRecLimit
	}
	rows, err := s.db.QueryContext(ctx, groupQuery(s.qualified(), col, "?"), top)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: summarize %s", col)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.GroupCount
	for rows.Next() {
		var g model.GroupCount
		if err := rows.Scan(&g.Name, &g.Total, &g.Cold); err != nil {
			return nil, eris.Wrapf(err, "sqlite: summarize %s scan", col)
		}
		out = append(out, g)
	}
	return out, eris.Wrapf(rows.Err(), "sqlite: summarize %s iterate", col)
}

func (s *SQLiteStore) StartRun(ctx context.Context, preset, thresholds string) (*model.Run, error) {
	run := &model.Run{
		ID:         uuid.New().String(),
		Status:     model.RunStatusRunning,
		Preset:     preset,
		Thresholds: thresholds,
		StartedAt:  time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO coldspot_runs (id, status, preset, thresholds, started_at) VALUES (?, ?, ?, ?, ?)`,
		run.ID, string(run.Status), run.Preset, run.Thresholds, run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: start run")
	}
	return run, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, result model.RunResult) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE coldspot_runs SET status = ?, completed_at = ?, merged = ?, classified = ?, rejected = ?, cold_spots = ? WHERE id = ?`,
		string(model.RunStatusComplete), time.Now().UTC(),
		result.Merged, result.Classified, result.Rejected, result.ColdSpots, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE coldspot_runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(model.RunStatusFailed), time.Now().UTC(), message, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = defaultRunLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, preset, thresholds, started_at, completed_at, merged, classified, rejected, cold_spots, error
		 FROM coldspot_runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// helpers

// liteArgs dereferences nullable numerics and maps booleans to 0/1.
func liteArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case *float64:
			if v != nil {
				out[i] = *v
			}
		case *int64:
			if v != nil {
				out[i] = *v
			}
		case bool:
			if v {
				out[i] = int64(1)
			} else {
				out[i] = int64(0)
			}
		default:
			out[i] = a
		}
	}
	return out
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var status string
	var completed sql.NullTime

	err := row.Scan(&r.ID, &status, &r.Preset, &r.Thresholds, &r.StartedAt, &completed,
		&r.Merged, &r.Classified, &r.Rejected, &r.ColdSpots, &r.Error)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}
	r.Status = model.RunStatus(status)
	if completed.Valid {
		t := completed.Time
		r.CompletedAt = &t
	}
	return &r, nil
}

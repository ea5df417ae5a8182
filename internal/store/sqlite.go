package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/sourcing-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	state        TEXT NOT NULL,
	found        INTEGER NOT NULL DEFAULT 0,
	cost_usd     REAL NOT NULL DEFAULT 0,
	run          TEXT NOT NULL,
	result       TEXT NOT NULL,
	started_at   INTEGER NOT NULL,
	completed_at INTEGER
);

CREATE TABLE IF NOT EXISTS manufacturers (
	run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	rank       INTEGER NOT NULL,
	name       TEXT NOT NULL,
	website    TEXT NOT NULL,
	score      REAL NOT NULL,
	confidence TEXT NOT NULL,
	data       TEXT NOT NULL,
	PRIMARY KEY (run_id, rank)
);

CREATE INDEX IF NOT EXISTS idx_runs_state ON runs(state);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_manufacturers_website ON manufacturers(website);
`

// Migrate creates the schema if it does not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun implements Store.
func (s *SQLiteStore) SaveRun(ctx context.Context, run model.PipelineRun, result model.RunResult) error {
	row, err := encodeRun(run, result)
	if err != nil {
		return err
	}
	mrows, err := manufacturerRows(run.ID, result.Manufacturers)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	var completedAt sql.NullInt64
	if run.CompletedAt != nil {
		completedAt = sql.NullInt64{Int64: run.CompletedAt.UnixMilli(), Valid: true}
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, state, found, cost_usd, run, result, started_at, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			state = excluded.state, found = excluded.found, cost_usd = excluded.cost_usd,
			run = excluded.run, result = excluded.result, completed_at = excluded.completed_at`,
		run.ID, string(run.State), len(result.Manufacturers), run.CostUSD,
		string(row.run), string(row.result), run.StartedAt.UnixMilli(), completedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert run %s", run.ID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM manufacturers WHERE run_id = ?`, run.ID); err != nil {
		return eris.Wrapf(err, "sqlite: clear manufacturers %s", run.ID)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO manufacturers (run_id, rank, name, website, score, confidence, data) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare manufacturer insert")
	}
	defer stmt.Close() //nolint:errcheck
	for _, r := range mrows {
		if _, err := stmt.ExecContext(ctx, r...); err != nil {
			return eris.Wrapf(err, "sqlite: insert manufacturer for run %s", run.ID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit run")
}

// GetRun implements Store.
func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*StoredRun, error) {
	var runJSON, resultJSON string
	err := s.db.QueryRowContext(ctx, `SELECT run, result FROM runs WHERE id = ?`, runID).
		Scan(&runJSON, &resultJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "%s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	sr, err := decodeRun([]byte(runJSON), []byte(resultJSON))
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT data FROM manufacturers WHERE run_id = ? ORDER BY rank`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list manufacturers %s", runID)
	}
	defer rows.Close() //nolint:errcheck
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan manufacturer")
		}
		m, err := decodeManufacturer([]byte(data))
		if err != nil {
			return nil, err
		}
		sr.Result.Manufacturers = append(sr.Result.Manufacturers, m)
	}
	return sr, eris.Wrap(rows.Err(), "sqlite: list manufacturers iterate")
}

// ListRuns implements Store. Runs are returned newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.PipelineRun, error) {
	query := `SELECT run FROM runs WHERE 1=1`
	var args []any

	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, string(filter.State))
	}
	query += ` ORDER BY started_at DESC, id`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.PipelineRun
	for rows.Next() {
		var runJSON string
		if err := rows.Scan(&runJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		sr, err := decodeRun([]byte(runJSON), []byte("{}"))
		if err != nil {
			return nil, err
		}
		runs = append(runs, sr.Run)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

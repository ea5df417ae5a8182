package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/sourcing-cli/internal/db"
	"github.com/sells-group/sourcing-cli/internal/model"
)

const manufacturersTable = "sourcing_manufacturers"

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS sourcing_runs (
	id           TEXT PRIMARY KEY,
	state        TEXT NOT NULL,
	found        INTEGER NOT NULL DEFAULT 0,
	cost_usd     DOUBLE PRECISION NOT NULL DEFAULT 0,
	run          JSONB NOT NULL,
	result       JSONB NOT NULL,
	started_at   TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS sourcing_manufacturers (
	run_id     TEXT NOT NULL REFERENCES sourcing_runs(id) ON DELETE CASCADE,
	rank       INTEGER NOT NULL,
	name       TEXT NOT NULL,
	website    TEXT NOT NULL,
	score      DOUBLE PRECISION NOT NULL,
	confidence TEXT NOT NULL,
	data       JSONB NOT NULL,
	PRIMARY KEY (run_id, rank)
);

CREATE INDEX IF NOT EXISTS idx_sourcing_runs_state ON sourcing_runs(state);
CREATE INDEX IF NOT EXISTS idx_sourcing_runs_started_at ON sourcing_runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_sourcing_manufacturers_website ON sourcing_manufacturers(website);
`

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// SaveRun implements Store. Manufacturers are bulk upserted scoped to
// the run, so a re-delivered run drops ranks it no longer has.
func (s *PostgresStore) SaveRun(ctx context.Context, run model.PipelineRun, result model.RunResult) error {
	row, err := encodeRun(run, result)
	if err != nil {
		return err
	}
	mrows, err := manufacturerRows(run.ID, result.Manufacturers)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO sourcing_runs (id, state, found, cost_usd, run, result, started_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
			state = EXCLUDED.state, found = EXCLUDED.found, cost_usd = EXCLUDED.cost_usd,
			run = EXCLUDED.run, result = EXCLUDED.result, completed_at = EXCLUDED.completed_at`,
		run.ID, string(run.State), len(result.Manufacturers), run.CostUSD,
		row.run, row.result, run.StartedAt, run.CompletedAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert run %s", run.ID)
	}

	if len(mrows) == 0 {
		_, err := s.pool.Exec(ctx, `DELETE FROM sourcing_manufacturers WHERE run_id = $1`, run.ID)
		return eris.Wrapf(err, "postgres: clear manufacturers %s", run.ID)
	}
	_, err = db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        manufacturersTable,
		Columns:      manufacturerColumns,
		ConflictKeys: []string{"run_id", "rank"},
		Scope:        &db.Scope{Column: "run_id", Value: run.ID},
	}, mrows)
	return eris.Wrapf(err, "postgres: upsert manufacturers %s", run.ID)
}

// GetRun implements Store.
func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*StoredRun, error) {
	var runJSON, resultJSON []byte
	err := s.pool.QueryRow(ctx, `SELECT run, result FROM sourcing_runs WHERE id = $1`, runID).
		Scan(&runJSON, &resultJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "%s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	sr, err := decodeRun(runJSON, resultJSON)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `SELECT data FROM sourcing_manufacturers WHERE run_id = $1 ORDER BY rank`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list manufacturers %s", runID)
	}
	defer rows.Close()
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, eris.Wrap(err, "postgres: scan manufacturer")
		}
		m, err := decodeManufacturer(data)
		if err != nil {
			return nil, err
		}
		sr.Result.Manufacturers = append(sr.Result.Manufacturers, m)
	}
	return sr, eris.Wrap(rows.Err(), "postgres: list manufacturers iterate")
}

// ListRuns implements Store. Runs are returned newest first.
func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.PipelineRun, error) {
	query := `SELECT run FROM sourcing_runs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.State != "" {
		query += fmt.Sprintf(` AND state = $%d`, argIdx)
		args = append(args, string(filter.State))
		argIdx++
	}
	query += ` ORDER BY started_at DESC, id`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.PipelineRun
	for rows.Next() {
		var runJSON []byte
		if err := rows.Scan(&runJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		sr, err := decodeRun(runJSON, []byte("{}"))
		if err != nil {
			return nil, err
		}
		runs = append(runs, sr.Run)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

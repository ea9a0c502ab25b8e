package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/research-mcp/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
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
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS research_runs (
	thread_id       TEXT PRIMARY KEY,
	ticker          TEXT NOT NULL,
	stage           TEXT NOT NULL,
	steps_completed INTEGER NOT NULL DEFAULT 0,
	total_steps     INTEGER NOT NULL,
	start_time      TIMESTAMPTZ NOT NULL,
	end_time        TIMESTAMPTZ,
	steps           JSONB,
	error           TEXT NOT NULL DEFAULT '',
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS research_records (
	thread_id  TEXT PRIMARY KEY,
	ticker     TEXT NOT NULL,
	record     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_research_runs_ticker ON research_runs(ticker);
CREATE INDEX IF NOT EXISTS idx_research_runs_start ON research_runs(start_time DESC);
`

// Migrate creates the tables.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveStatus(ctx context.Context, st model.WorkflowStatus) error {
	steps, err := json.Marshal(st.Steps)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal steps")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO research_runs (thread_id, ticker, stage, steps_completed, total_steps, start_time, end_time, steps, error, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		 ON CONFLICT (thread_id) DO UPDATE SET
			stage = EXCLUDED.stage,
			steps_completed = EXCLUDED.steps_completed,
			end_time = EXCLUDED.end_time,
			steps = EXCLUDED.steps,
			error = EXCLUDED.error,
			updated_at = now()`,
		st.ThreadID, st.Ticker, string(st.Stage), st.StepsCompleted, st.TotalSteps,
		st.StartTime, st.EndTime, steps, st.Error,
	)
	return eris.Wrapf(err, "postgres: save status %s", st.ThreadID)
}

const postgresStatusColumns = `thread_id, ticker, stage, steps_completed, total_steps, start_time, end_time, steps, error`

func (s *PostgresStore) GetStatus(ctx context.Context, threadID string) (*model.WorkflowStatus, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+postgresStatusColumns+` FROM research_runs WHERE thread_id = $1`, threadID)
	st, err := scanPostgresStatus(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get status %s", threadID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get status %s", threadID)
	}
	return st, nil
}

func (s *PostgresStore) ListStatuses(ctx context.Context, filter RunFilter) ([]model.WorkflowStatus, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+postgresStatusColumns+` FROM research_runs
		 WHERE ($1::text = '' OR ticker = $1) AND ($2::text = '' OR stage = $2)
		 ORDER BY start_time DESC LIMIT $3`,
		filter.Ticker, string(filter.Stage), filter.limit(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list statuses")
	}
	defer rows.Close()

	var out []model.WorkflowStatus
	for rows.Next() {
		st, err := scanPostgresStatus(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan status")
		}
		out = append(out, *st)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list statuses iterate")
}

func (s *PostgresStore) SaveRecord(ctx context.Context, rec *model.ResearchRecord) error {
	if rec == nil || rec.ThreadID == "" {
		return eris.New("postgres: record has no thread id")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal record")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO research_records (thread_id, ticker, record, created_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (thread_id) DO UPDATE SET record = EXCLUDED.record`,
		rec.ThreadID, rec.Ticker, data, rec.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: save record %s", rec.ThreadID)
}

func (s *PostgresStore) GetRecord(ctx context.Context, threadID string) (*model.ResearchRecord, error) {
	var data []byte
	err := s.pool.QueryRow(ctx,
		`SELECT record FROM research_records WHERE thread_id = $1`, threadID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get record %s", threadID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get record %s", threadID)
	}
	var rec model.ResearchRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal record")
	}
	return &rec, nil
}

func scanPostgresStatus(row pgx.Row) (*model.WorkflowStatus, error) {
	var (
		st    model.WorkflowStatus
		stage string
		end   pgtype.Timestamptz
		steps []byte
	)
	if err := row.Scan(&st.ThreadID, &st.Ticker, &stage, &st.StepsCompleted, &st.TotalSteps,
		&st.StartTime, &end, &steps, &st.Error); err != nil {
		return nil, err
	}
	st.Stage = model.Stage(stage)
	if end.Valid {
		t := end.Time
		st.EndTime = &t
	}
	if len(steps) > 0 && string(steps) != "null" {
		if err := json.Unmarshal(steps, &st.Steps); err != nil {
			return nil, eris.Wrap(err, "unmarshal steps")
		}
	}
	return &st, nil
}

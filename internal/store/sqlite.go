package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/research-mcp/internal/model"
)

// DefaultSQLitePath is used when no DSN is configured.
const DefaultSQLitePath = "research-mcp.db"

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	if dsn == "" {
		dsn = DefaultSQLitePath
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
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS research_runs (
	thread_id       TEXT PRIMARY KEY,
	ticker          TEXT NOT NULL,
	stage           TEXT NOT NULL,
	steps_completed INTEGER NOT NULL DEFAULT 0,
	total_steps     INTEGER NOT NULL,
	start_time      DATETIME NOT NULL,
	end_time        DATETIME,
	steps           TEXT,
	error           TEXT NOT NULL DEFAULT '',
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS research_records (
	thread_id  TEXT PRIMARY KEY,
	ticker     TEXT NOT NULL,
	record     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_research_runs_ticker ON research_runs(ticker);
CREATE INDEX IF NOT EXISTS idx_research_runs_start ON research_runs(start_time);
`

// Migrate creates the tables.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveStatus(ctx context.Context, st model.WorkflowStatus) error {
	steps, err := json.Marshal(st.Steps)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal steps")
	}
	var end sql.NullTime
	if st.EndTime != nil {
		end = sql.NullTime{Time: st.EndTime.UTC(), Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO research_runs (thread_id, ticker, stage, steps_completed, total_steps, start_time, end_time, steps, error, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(thread_id) DO UPDATE SET
			stage = excluded.stage,
			steps_completed = excluded.steps_completed,
			end_time = excluded.end_time,
			steps = excluded.steps,
			error = excluded.error,
			updated_at = excluded.updated_at`,
		st.ThreadID, st.Ticker, string(st.Stage), st.StepsCompleted, st.TotalSteps,
		st.StartTime.UTC(), end, string(steps), st.Error, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: save status %s", st.ThreadID)
}

const sqliteStatusColumns = `thread_id, ticker, stage, steps_completed, total_steps, start_time, end_time, steps, error`

func (s *SQLiteStore) GetStatus(ctx context.Context, threadID string) (*model.WorkflowStatus, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteStatusColumns+` FROM research_runs WHERE thread_id = ?`, threadID)
	st, err := scanSQLiteStatus(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get status %s", threadID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get status %s", threadID)
	}
	return st, nil
}

func (s *SQLiteStore) ListStatuses(ctx context.Context, filter RunFilter) ([]model.WorkflowStatus, error) {
	query := `SELECT ` + sqliteStatusColumns + ` FROM research_runs WHERE 1=1`
	var args []any
	if filter.Ticker != "" {
		query += ` AND ticker = ?`
		args = append(args, filter.Ticker)
	}
	if filter.Stage != "" {
		query += ` AND stage = ?`
		args = append(args, string(filter.Stage))
	}
	query += ` ORDER BY start_time DESC LIMIT ?`
	args = append(args, filter.limit())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list statuses")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.WorkflowStatus
	for rows.Next() {
		st, err := scanSQLiteStatus(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan status")
		}
		out = append(out, *st)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list statuses iterate")
}

func (s *SQLiteStore) SaveRecord(ctx context.Context, rec *model.ResearchRecord) error {
	if rec == nil || rec.ThreadID == "" {
		return eris.New("sqlite: record has no thread id")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal record")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO research_records (thread_id, ticker, record, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(thread_id) DO UPDATE SET record = excluded.record`,
		rec.ThreadID, rec.Ticker, string(data), rec.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: save record %s", rec.ThreadID)
}

func (s *SQLiteStore) GetRecord(ctx context.Context, threadID string) (*model.ResearchRecord, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT record FROM research_records WHERE thread_id = ?`, threadID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get record %s", threadID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get record %s", threadID)
	}
	var rec model.ResearchRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal record")
	}
	return &rec, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteStatus(row scannable) (*model.WorkflowStatus, error) {
	var (
		st    model.WorkflowStatus
		stage string
		end   sql.NullTime
		steps sql.NullString
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
	if steps.Valid && steps.String != "" && steps.String != "null" {
		if err := json.Unmarshal([]byte(steps.String), &st.Steps); err != nil {
			return nil, eris.Wrap(err, "unmarshal steps")
		}
	}
	return &st, nil
}

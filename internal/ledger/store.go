// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger persists scoring jobs and their status transitions in a
// SQLite database so long-running jobs can be inspected and resumed.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/repurpose-engine/pkg/types"
)

// Store manages the job ledger database.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the ledger at path and creates the schema if it
// does not exist.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			run_id TEXT PRIMARY KEY,
			job_id TEXT,
			status TEXT NOT NULL,
			submitted_at TEXT NOT NULL,
			last_polled_at TEXT,
			result_url TEXT,
			result_path TEXT,
			up_count INTEGER,
			down_count INTEGER,
			last_error TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_job_id ON jobs(job_id)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status)`,
		`CREATE TABLE IF NOT EXISTS transitions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES jobs(run_id),
			job_id TEXT,
			from_status TEXT NOT NULL,
			to_status TEXT NOT NULL,
			at TEXT NOT NULL,
			note TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transitions_run_id ON transitions(run_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// SaveJob inserts or replaces the record for job.RunID.
func (s *Store) SaveJob(ctx context.Context, job types.Job) error {
	if job.RunID == "" {
		return errors.New("job record has no run id")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (run_id, job_id, status, submitted_at, last_polled_at, result_url, result_path, up_count, down_count, last_error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id) DO UPDATE SET
			job_id = excluded.job_id,
			status = excluded.status,
			submitted_at = excluded.submitted_at,
			last_polled_at = excluded.last_polled_at,
			result_url = excluded.result_url,
			result_path = excluded.result_path,
			up_count = excluded.up_count,
			down_count = excluded.down_count,
			last_error = excluded.last_error`,
		job.RunID, job.ID, string(job.Status), formatTime(job.SubmittedAt), formatTime(job.LastPolledAt),
		job.ResultURL, job.ResultPath, job.UpCount, job.DownCount, job.LastError,
	)
	if err != nil {
		return fmt.Errorf("saving job %s: %w", job.RunID, err)
	}
	return nil
}

// RecordTransition appends a status change. The job record must exist or
// is created as a placeholder in the target state.
func (s *Store) RecordTransition(ctx context.Context, t types.Transition) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO jobs (run_id, job_id, status, submitted_at) VALUES (?, ?, ?, ?)`,
		t.RunID, t.JobID, string(t.To), formatTime(t.At),
	); err != nil {
		return fmt.Errorf("ensuring job row: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO transitions (run_id, job_id, from_status, to_status, at, note) VALUES (?, ?, ?, ?, ?, ?)`,
		t.RunID, t.JobID, string(t.From), string(t.To), formatTime(t.At), t.Note,
	); err != nil {
		return fmt.Errorf("inserting transition: %w", err)
	}
	return tx.Commit()
}

// LoadJob returns the most recent record carrying the service job id.
func (s *Store) LoadJob(ctx context.Context, jobID string) (types.Job, bool, error) {
	row := s.db.QueryRowContext(ctx, selectJobs+` WHERE job_id = ? ORDER BY submitted_at DESC LIMIT 1`, jobID)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Job{}, false, nil
	}
	if err != nil {
		return types.Job{}, false, fmt.Errorf("loading job %s: %w", jobID, err)
	}
	return job, true, nil
}

// QueryOptions filters Jobs.
type QueryOptions struct {
	// Status keeps only jobs in this state when set.
	Status types.JobStatus

	// Limit caps the number of jobs returned; zero means no limit.
	Limit int
}

// Jobs returns job records, newest submission first.
func (s *Store) Jobs(ctx context.Context, opts QueryOptions) ([]types.Job, error) {
	query := selectJobs
	var args []any
	if opts.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(opts.Status))
	}
	query += ` ORDER BY submitted_at DESC, run_id`
	if opts.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying jobs: %w", err)
	}
	defer rows.Close()

	var jobs []types.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Transitions returns the recorded transitions of a run in order.
func (s *Store) Transitions(ctx context.Context, runID string) ([]types.Transition, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, COALESCE(job_id, ''), from_status, to_status, at, COALESCE(note, '')
		 FROM transitions WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying transitions: %w", err)
	}
	defer rows.Close()

	var out []types.Transition
	for rows.Next() {
		var t types.Transition
		var from, to, at string
		if err := rows.Scan(&t.RunID, &t.JobID, &from, &to, &at, &t.Note); err != nil {
			return nil, fmt.Errorf("scanning transition: %w", err)
		}
		t.From, t.To, t.At = types.JobStatus(from), types.JobStatus(to), parseTime(at)
		out = append(out, t)
	}
	return out, rows.Err()
}

const selectJobs = `SELECT run_id, COALESCE(job_id, ''), status, submitted_at, COALESCE(last_polled_at, ''),
	COALESCE(result_url, ''), COALESCE(result_path, ''), COALESCE(up_count, 0), COALESCE(down_count, 0),
	COALESCE(last_error, '') FROM jobs`

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(sc scanner) (types.Job, error) {
	var job types.Job
	var status, submitted, polled string
	err := sc.Scan(&job.RunID, &job.ID, &status, &submitted, &polled,
		&job.ResultURL, &job.ResultPath, &job.UpCount, &job.DownCount, &job.LastError)
	if err != nil {
		return types.Job{}, err
	}
	job.Status = types.JobStatus(status)
	if !job.Status.Valid() {
		return types.Job{}, fmt.Errorf("run %s has unrecognized status %q", job.RunID, status)
	}
	job.SubmittedAt = parseTime(submitted)
	job.LastPolledAt = parseTime(polled)
	return job, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
